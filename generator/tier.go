package generator

import (
	"fmt"
	"strings"
)

// Tier is the deployment tier. It is resolved once from configuration and
// injected into every step; prompts and default thresholds depend on it.
type Tier string

const (
	TierLite     Tier = "lite"
	TierStandard Tier = "standard"
)

// ParseTier accepts "lite" or "standard" (case-insensitive). Empty means standard.
func ParseTier(s string) (Tier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(TierStandard):
		return TierStandard, nil
	case string(TierLite):
		return TierLite, nil
	default:
		return "", fmt.Errorf("unknown model tier %q (want lite or standard)", s)
	}
}

// DefaultThreshold is the approval score used when none is configured.
func (t Tier) DefaultThreshold() float64 {
	if t == TierLite {
		return 7
	}
	return 8
}

// maxActivities is the per-day density the lite checklist tolerates, and the
// standard reviewer's hard limit, by pace.
func maxActivities(p Pace) int {
	switch p {
	case PaceRelaxed:
		return 3
	case PaceFast:
		return 6
	default:
		return 5
	}
}
