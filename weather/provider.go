package weather

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"trip_itinerary_planner/generator"
)

// Provider tries the live forecast and falls back to the seasonal table.
// Concurrent runs asking for the same city and dates share one API call.
type Provider struct {
	api    *Client
	group  singleflight.Group
	logger *slog.Logger
}

// NewProvider accepts a nil client, in which case only seasonal estimates
// are served.
func NewProvider(api *Client, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{api: api, logger: logger}
}

// Forecast implements generator.WeatherProvider. It returns (nil, nil) when
// neither source knows anything about the trip.
func (p *Provider) Forecast(ctx context.Context, city string, start, end time.Time) (*generator.WeatherSummary, error) {
	if p.api != nil {
		key := fmt.Sprintf("%s|%s|%s", city, start.Format(time.DateOnly), end.Format(time.DateOnly))
		v, err, _ := p.group.Do(key, func() (any, error) {
			return p.api.Forecast(ctx, city, start, end)
		})
		if err == nil {
			s := *v.(*generator.WeatherSummary)
			return &s, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		p.logger.Warn("weather api unavailable, using seasonal estimate", "city", city, "error", err)
	}
	return Seasonal(city, start.Month()), nil
}
