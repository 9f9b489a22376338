package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ilpengine/engine/internal/store"
)

const queryLockOutgoingPaymentGrant = `
	INSERT INTO outgoing_payment_grants (id) VALUES (?)
	ON CONFLICT (id) DO NOTHING`

// LockOutgoingPaymentGrant serializes concurrent outgoing-payment creations
// against the same grant. SQLite has no row-level SELECT ... FOR UPDATE, so
// mutual exclusion is taken at the connection level: a dedicated
// single-connection transaction holds SQLite's database-wide write lock for
// the caller's critical section, matching spec.md §9's "per-grant SELECT
// FOR UPDATE" design note adapted to SQLite's locking model. The returned
// func commits (releasing the lock); callers must defer it.
func (s *Service) LockOutgoingPaymentGrant(ctx context.Context, id string) (func(), error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("locking grant %s: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx, queryLockOutgoingPaymentGrant, id); err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("reserving grant row %s: %w", id, err)
	}
	return func() {
		if err := tx.Commit(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			tx.Rollback()
		}
	}, nil
}

var isoPeriodRe = regexp.MustCompile(`^P(?:(\d+)Y)?(?:(\d+)M)?(?:(\d+)W)?(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?)?$`)

// currentIntervalWindow parses an ISO 8601 repeating interval of the form
// R{n}/{start}/{period} (Open Payments grant limits, spec.md §3) and
// returns the [start, end) bounds of the window containing now.
func currentIntervalWindow(interval string) (time.Time, time.Time, error) {
	parts := strings.SplitN(interval, "/", 3)
	if len(parts) != 3 || !strings.HasPrefix(parts[0], "R") {
		return time.Time{}, time.Time{}, store.NewError(store.ErrInvalidQuote, "malformed interval: "+interval)
	}
	start, err := time.Parse(time.RFC3339, parts[1])
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parsing interval start %q: %w", parts[1], err)
	}
	years, months, days, duration, err := parsePeriod(parts[2])
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	now := time.Now()
	windowStart := start
	for {
		windowEnd := windowStart.AddDate(years, months, days).Add(duration)
		if now.Before(windowEnd) {
			return windowStart, windowEnd, nil
		}
		windowStart = windowEnd
	}
}

func parsePeriod(p string) (years, months, days int, duration time.Duration, err error) {
	m := isoPeriodRe.FindStringSubmatch(p)
	if m == nil {
		return 0, 0, 0, 0, store.NewError(store.ErrInvalidQuote, "malformed period: "+p)
	}
	atoi := func(s string) int {
		if s == "" {
			return 0
		}
		v, _ := strconv.Atoi(s)
		return v
	}
	years = atoi(m[1])
	months = atoi(m[2])
	weeks := atoi(m[3])
	days = atoi(m[4]) + weeks*7
	hours := atoi(m[5])
	minutes := atoi(m[6])
	seconds := atoi(m[7])
	duration = time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute + time.Duration(seconds)*time.Second
	return years, months, days, duration, nil
}
