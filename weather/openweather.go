package weather

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/tidwall/gjson"

	"trip_itinerary_planner/generator"
)

const defaultBaseURL = "https://api.openweathermap.org"

// ErrNoForecast means the forecast window does not cover any trip day.
var ErrNoForecast = errors.New("no forecast covers the trip dates")

// Client talks to OpenWeatherMap: geocoding, then the free 5-day/3-hour
// forecast.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// Option customises a Client.
type Option func(*Client)

// WithBaseURL points the client at another host (tests, proxies).
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient replaces the default 10s-timeout client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func NewClient(apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("openweather api key is required")
	}
	c := &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Forecast summarises the forecast entries that fall on trip days.
func (c *Client) Forecast(ctx context.Context, city string, start, end time.Time) (*generator.WeatherSummary, error) {
	geo, err := c.get(ctx, "/geo/1.0/direct", url.Values{"q": {city}, "limit": {"1"}})
	if err != nil {
		return nil, fmt.Errorf("geocode %s: %w", city, err)
	}
	loc := gjson.GetBytes(geo, "0")
	if !loc.Exists() {
		return nil, fmt.Errorf("geocode %s: location not found", city)
	}

	body, err := c.get(ctx, "/data/2.5/forecast", url.Values{
		"lat":   {strconv.FormatFloat(loc.Get("lat").Float(), 'f', -1, 64)},
		"lon":   {strconv.FormatFloat(loc.Get("lon").Float(), 'f', -1, 64)},
		"units": {"metric"},
	})
	if err != nil {
		return nil, fmt.Errorf("forecast %s: %w", city, err)
	}
	return summarise(body, start, end)
}

func (c *Client) get(ctx context.Context, path string, q url.Values) ([]byte, error) {
	q.Set("appid", c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, gjson.GetBytes(body, "message").String())
	}
	if !gjson.ValidBytes(body) {
		return nil, errors.New("invalid JSON response")
	}
	return body, nil
}

// summarise keeps entries whose UTC date falls within [start, end]: lowest
// minimum, highest maximum, highest precipitation probability and the most
// frequent description.
func summarise(body []byte, start, end time.Time) (*generator.WeatherSummary, error) {
	first := start.UTC().Truncate(24 * time.Hour)
	last := end.UTC().Truncate(24 * time.Hour)

	var (
		s      generator.WeatherSummary
		n      int
		counts = map[string]int{}
		top    string
	)
	gjson.GetBytes(body, "list").ForEach(func(_, item gjson.Result) bool {
		day := time.Unix(item.Get("dt").Int(), 0).UTC().Truncate(24 * time.Hour)
		if day.Before(first) || day.After(last) {
			return true
		}
		lo, hi := item.Get("main.temp_min").Float(), item.Get("main.temp_max").Float()
		if n == 0 || lo < s.MinTempC {
			s.MinTempC = lo
		}
		if n == 0 || hi > s.MaxTempC {
			s.MaxTempC = hi
		}
		s.PrecipProbability = max(s.PrecipProbability, item.Get("pop").Float())
		if desc := item.Get("weather.0.description").String(); desc != "" {
			counts[desc]++
			if counts[desc] > counts[top] {
				top = desc
			}
		}
		n++
		return true
	})
	if n == 0 {
		return nil, ErrNoForecast
	}
	s.Conditions = top
	s.Source = generator.WeatherFromAPI
	return &s, nil
}
