package outgoing

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/ilpengine/engine/internal/store"
	"github.com/shopspring/decimal"
)

// checkBudget verifies contributed + requested fits within limit, all
// given as decimal minor-unit strings.
func checkBudget(contributed, requested, limit string) error {
	c, err := decimal.NewFromString(contributed)
	if err != nil {
		return fmt.Errorf("parsing contributed amount: %w", err)
	}
	r, err := decimal.NewFromString(requested)
	if err != nil {
		return fmt.Errorf("parsing requested amount: %w", err)
	}
	l, err := decimal.NewFromString(limit)
	if err != nil {
		return fmt.Errorf("parsing grant limit: %w", err)
	}
	if c.Add(r).GreaterThan(l) {
		return store.NewError(store.ErrInsufficientGrant, "requested amount exceeds remaining grant budget")
	}
	return nil
}

var isoIntervalRe = regexp.MustCompile(`^R(\d*)/([^/]+)/(.+)$`)

// intervalCoversNow reports whether the ISO 8601 repeating interval's
// current window contains now, per spec.md §4.3 "it must cover now".
func intervalCoversNow(interval string, now time.Time) (bool, error) {
	m := isoIntervalRe.FindStringSubmatch(interval)
	if m == nil {
		return false, fmt.Errorf("malformed repeating interval %q", interval)
	}
	start, err := time.Parse(time.RFC3339, m[2])
	if err != nil {
		return false, fmt.Errorf("parsing interval start: %w", err)
	}
	years, months, days, dur, err := parsePeriod(m[3])
	if err != nil {
		return false, err
	}

	limit := -1
	if m[1] != "" {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return false, fmt.Errorf("parsing interval repeat count: %w", err)
		}
		limit = n + 1
	}

	windowStart := start
	for i := 0; limit < 0 || i < limit; i++ {
		windowEnd := windowStart.AddDate(years, months, days).Add(dur)
		if !now.Before(windowStart) && now.Before(windowEnd) {
			return true, nil
		}
		if now.Before(windowEnd) {
			return false, nil
		}
		windowStart = windowEnd
	}
	return false, nil
}

var periodRe = regexp.MustCompile(`^P(?:(\d+)Y)?(?:(\d+)M)?(?:(\d+)W)?(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?)?$`)

func parsePeriod(p string) (years, months, days int, duration time.Duration, err error) {
	m := periodRe.FindStringSubmatch(p)
	if m == nil {
		return 0, 0, 0, 0, fmt.Errorf("malformed ISO 8601 period %q", p)
	}
	field := func(s string) int {
		if s == "" {
			return 0
		}
		n, _ := strconv.Atoi(s)
		return n
	}
	years = field(m[1])
	months = field(m[2])
	days = field(m[3])*7 + field(m[4])
	duration = time.Duration(field(m[5]))*time.Hour + time.Duration(field(m[6]))*time.Minute + time.Duration(field(m[7]))*time.Second
	return
}
