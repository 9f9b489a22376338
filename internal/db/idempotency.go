package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const (
	queryInsertIdempotencyKey = `
		INSERT OR IGNORE INTO idempotency_keys (operation, key) VALUES (?, ?)`

	queryGetIdempotencyResult = `
		SELECT result FROM idempotency_keys WHERE operation = ? AND key = ?`

	queryUpdateIdempotencyResult = `
		UPDATE idempotency_keys SET result = ? WHERE operation = ? AND key = ?`
)

// ReserveIdempotencyKey races an INSERT OR IGNORE against concurrent callers
// of the same (operation, key); the loser reads back whatever the winner
// eventually stores, mirroring the teacher's queryInsertUser "INSERT OR
// IGNORE" idempotency idiom generalized to admin-API requests (spec.md §4.6).
func (s *Service) ReserveIdempotencyKey(ctx context.Context, operation, key string) (bool, []byte, error) {
	res, err := s.db.ExecContext(ctx, queryInsertIdempotencyKey, operation, key)
	if err != nil {
		return false, nil, fmt.Errorf("reserving idempotency key: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, nil, err
	}
	if n == 1 {
		return true, nil, nil
	}

	var result []byte
	row := s.db.QueryRowContext(ctx, queryGetIdempotencyResult, operation, key)
	if err := row.Scan(&result); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil, nil
		}
		return false, nil, err
	}
	return false, result, nil
}

func (s *Service) StoreIdempotencyResult(ctx context.Context, operation, key string, result []byte) error {
	_, err := s.db.ExecContext(ctx, queryUpdateIdempotencyResult, result, operation, key)
	return err
}
