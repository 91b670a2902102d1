package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// RateLimit is a parsed "<count>/<period>" limit.
type RateLimit struct {
	Count  int
	Period time.Duration
}

func (r RateLimit) String() string {
	return fmt.Sprintf("%d/%s", r.Count, r.Period)
}

var ratePeriods = map[string]time.Duration{
	"s":      time.Second,
	"sec":    time.Second,
	"second": time.Second,
	"m":      time.Minute,
	"min":    time.Minute,
	"minute": time.Minute,
	"h":      time.Hour,
	"hour":   time.Hour,
	"d":      24 * time.Hour,
	"day":    24 * time.Hour,
	"month":  30 * 24 * time.Hour,
	"year":   12 * 30 * 24 * time.Hour,
}

// ParseRateLimit parses a single limit of the form "<count>/<period>" or
// "<count> per <period>", where period is an optional multiplier followed by a unit:
// "60/minute", "100/m", "5 per second", "1000/hours", "10/2 minutes", "3/month".
// A month is 30 days and a year 360 days. Lists of several limits are not accepted.
func ParseRateLimit(s string) (RateLimit, error) {
	raw := strings.ToLower(strings.TrimSpace(s))
	var countStr, periodStr string
	switch {
	case strings.Contains(raw, "/"):
		countStr, periodStr, _ = strings.Cut(raw, "/")
	case strings.Contains(raw, " per "):
		countStr, periodStr, _ = strings.Cut(raw, " per ")
	default:
		return RateLimit{}, fmt.Errorf("invalid rate limit %q: expected <count>/<period>", s)
	}

	count, err := strconv.Atoi(strings.TrimSpace(countStr))
	if err != nil || count <= 0 {
		return RateLimit{}, fmt.Errorf("invalid rate limit %q: count must be a positive integer", s)
	}

	periodStr = strings.TrimSpace(periodStr)
	multiplier := 1
	if i := strings.IndexFunc(periodStr, func(r rune) bool { return r < '0' || r > '9' }); i > 0 {
		multiplier, err = strconv.Atoi(periodStr[:i])
		if err != nil || multiplier <= 0 {
			return RateLimit{}, fmt.Errorf("invalid rate limit %q: period multiplier must be a positive integer", s)
		}
		periodStr = strings.TrimSpace(periodStr[i:])
	}

	unit, ok := ratePeriods[periodStr]
	if !ok {
		unit, ok = ratePeriods[strings.TrimSuffix(periodStr, "s")]
	}
	if !ok {
		return RateLimit{}, fmt.Errorf("invalid rate limit %q: unknown period %q", s, periodStr)
	}
	return RateLimit{Count: count, Period: time.Duration(multiplier) * unit}, nil
}
