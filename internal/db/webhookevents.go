package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ilpengine/engine/internal/models"
	"github.com/ilpengine/engine/internal/store"
)

const (
	queryInsertWebhookEvent = `
		INSERT INTO webhook_events (id, type, data, withdrawal_account_id, withdrawal_asset_id,
			withdrawal_amount, process_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	queryClaimWebhookEventsDue = `
		UPDATE webhook_events
		SET claimed_at = ?
		WHERE id IN (
			SELECT id FROM webhook_events
			WHERE process_at IS NOT NULL AND process_at <= ?
				AND (claimed_at IS NULL OR claimed_at <= ?)
			ORDER BY process_at
			LIMIT ?
		)
		RETURNING id, type, data, withdrawal_account_id, withdrawal_asset_id, withdrawal_amount,
			status_code, attempts, process_at, dead, created_at`

	queryUpdateWebhookEvent = `
		UPDATE webhook_events
		SET process_at = ?, attempts = ?, status_code = ?, dead = ?, claimed_at = NULL
		WHERE id = ?`

	queryDeleteWebhookEvent = `DELETE FROM webhook_events WHERE id = ?`

	queryGetWebhookEvent = `
		SELECT id, type, data, withdrawal_account_id, withdrawal_asset_id, withdrawal_amount,
			status_code, attempts, process_at, dead, created_at
		FROM webhook_events WHERE id = ?`

	queryListPendingWebhookEvents = `
		SELECT id, type, data, withdrawal_account_id, withdrawal_asset_id, withdrawal_amount,
			status_code, attempts, process_at, dead, created_at
		FROM webhook_events WHERE process_at IS NOT NULL ORDER BY process_at LIMIT ?`

	queryListDeadWebhookEvents = `
		SELECT id, type, data, withdrawal_account_id, withdrawal_asset_id, withdrawal_amount,
			status_code, attempts, process_at, dead, created_at
		FROM webhook_events WHERE dead = 1 ORDER BY created_at DESC LIMIT ?`
)

// insertWebhookEvent is shared by every state-transition method that must
// write its resulting event in the same transaction as the state change
// (spec.md §4.7 "written in the same DB transaction it reports").
func insertWebhookEvent(ctx context.Context, tx *sql.Tx, e *models.WebhookEvent) error {
	dataJSON, err := json.Marshal(e.Data)
	if err != nil {
		return fmt.Errorf("marshaling webhook event data: %w", err)
	}
	var accountID, assetID, amount *string
	if e.Withdrawal != nil {
		accountID, assetID, amount = &e.Withdrawal.AccountID, &e.Withdrawal.AssetID, &e.Withdrawal.Amount
	}
	_, err = tx.ExecContext(ctx, queryInsertWebhookEvent, e.ID, e.Type, string(dataJSON), accountID, assetID, amount, e.ProcessAt)
	if err != nil {
		return fmt.Errorf("inserting webhook event %s: %w", e.ID, err)
	}
	return nil
}

func scanWebhookEvent(row interface{ Scan(...any) error }) (*models.WebhookEvent, error) {
	e := &models.WebhookEvent{}
	var dataJSON string
	var accountID, assetID, amount sql.NullString
	var statusCode sql.NullInt64
	var processAt sql.NullTime
	if err := row.Scan(&e.ID, &e.Type, &dataJSON, &accountID, &assetID, &amount,
		&statusCode, &e.Attempts, &processAt, &e.Dead, &e.CreatedAt); err != nil {
		return nil, err
	}
	_ = json.Unmarshal([]byte(dataJSON), &e.Data)
	if accountID.Valid {
		e.Withdrawal = &models.WebhookWithdrawal{AccountID: accountID.String, AssetID: assetID.String, Amount: amount.String}
	}
	if statusCode.Valid {
		v := int(statusCode.Int64)
		e.StatusCode = &v
	}
	if processAt.Valid {
		t := processAt.Time
		e.ProcessAt = &t
	}
	return e, nil
}

// ClaimWebhookEventsDue marks the claimed batch with a claimed_at fence so a
// redelivery sweep started by a different process doesn't double-dispatch
// the same event while this one is still in flight (spec.md §4.7 retry with
// backoff, §5 cancellation/timeouts).
func (s *Service) ClaimWebhookEventsDue(ctx context.Context, now time.Time, limit int) ([]*models.WebhookEvent, error) {
	claimFence := now.Add(-30 * time.Second)
	rows, err := s.db.QueryContext(ctx, queryClaimWebhookEventsDue, now, now, claimFence, limit)
	if err != nil {
		return nil, fmt.Errorf("claiming due webhook events: %w", err)
	}
	defer rows.Close()

	var out []*models.WebhookEvent
	for rows.Next() {
		e, err := scanWebhookEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Service) GetWebhookEvent(ctx context.Context, id string) (*models.WebhookEvent, error) {
	e, err := scanWebhookEvent(s.db.QueryRowContext(ctx, queryGetWebhookEvent, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.NewError(store.ErrInvalidID, id)
		}
		return nil, fmt.Errorf("getting webhook event %s: %w", id, err)
	}
	return e, nil
}

// EnqueueWebhookEvent writes a standalone event outside of any other
// state-change transaction, used by workers (wallet address processing,
// the incoming-payment completion hook) that don't otherwise hold a tx.
func (s *Service) EnqueueWebhookEvent(ctx context.Context, e *models.WebhookEvent) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning webhook enqueue transaction: %w", err)
	}
	defer tx.Rollback()
	if err := insertWebhookEvent(ctx, tx, e); err != nil {
		return err
	}
	return tx.Commit()
}

// UpdateWebhookEvent persists the dispatcher's outcome for one delivery
// attempt. A delivered event (ProcessAt nil, not Dead) is garbage-collected
// outright; a dead-lettered one (ProcessAt nil, Dead) is kept so
// /debug/webhooks and the admin API can still surface it.
func (s *Service) UpdateWebhookEvent(ctx context.Context, e *models.WebhookEvent) error {
	if e.ProcessAt == nil && !e.Dead {
		_, err := s.db.ExecContext(ctx, queryDeleteWebhookEvent, e.ID)
		if err != nil {
			return fmt.Errorf("deleting delivered webhook event %s: %w", e.ID, err)
		}
		return nil
	}
	_, err := s.db.ExecContext(ctx, queryUpdateWebhookEvent, e.ProcessAt, e.Attempts, e.StatusCode, e.Dead, e.ID)
	if err != nil {
		return fmt.Errorf("updating webhook event %s: %w", e.ID, err)
	}
	return nil
}

// ListPendingWebhookEvents is a read-only peek at the due queue for the
// health/debug surface; unlike ClaimWebhookEventsDue it never sets
// claimed_at, so it can't steal work from the dispatcher.
func (s *Service) ListPendingWebhookEvents(ctx context.Context, limit int) ([]*models.WebhookEvent, error) {
	rows, err := s.db.QueryContext(ctx, queryListPendingWebhookEvents, limit)
	if err != nil {
		return nil, fmt.Errorf("listing pending webhook events: %w", err)
	}
	defer rows.Close()
	return scanWebhookEvents(rows)
}

// ListDeadWebhookEvents returns events that exhausted WebhookMaxAttempts.
func (s *Service) ListDeadWebhookEvents(ctx context.Context, limit int) ([]*models.WebhookEvent, error) {
	rows, err := s.db.QueryContext(ctx, queryListDeadWebhookEvents, limit)
	if err != nil {
		return nil, fmt.Errorf("listing dead webhook events: %w", err)
	}
	defer rows.Close()
	return scanWebhookEvents(rows)
}

func scanWebhookEvents(rows *sql.Rows) ([]*models.WebhookEvent, error) {
	var out []*models.WebhookEvent
	for rows.Next() {
		e, err := scanWebhookEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
