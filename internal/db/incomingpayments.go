package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ilpengine/engine/internal/models"
	"github.com/ilpengine/engine/internal/store"
)

const (
	queryInsertIncomingPayment = `
		INSERT INTO incoming_payments (id, wallet_address_id, asset_id, incoming_amount,
			received_amount, state, expires_at, connection_id, metadata, process_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetIncomingPayment = `
		SELECT id, wallet_address_id, asset_id, incoming_amount, received_amount, state,
			expires_at, connection_id, metadata, process_at, created_at
		FROM incoming_payments WHERE id = ?`

	queryUpdateIncomingPayment = `
		UPDATE incoming_payments
		SET received_amount = ?, state = ?, process_at = ?, connection_id = ?
		WHERE id = ?`

	queryClaimExpiredIncomingPayments = `
		UPDATE incoming_payments
		SET process_at = NULL, connection_id = NULL,
			state = CASE WHEN state = 'PENDING' OR state = 'PROCESSING' THEN 'EXPIRED' ELSE state END
		WHERE id IN (
			SELECT id FROM incoming_payments
			WHERE process_at IS NOT NULL AND process_at <= ? AND expires_at <= ?
			ORDER BY process_at
			LIMIT ?
		)
		RETURNING id, wallet_address_id, asset_id, incoming_amount, received_amount, state,
			expires_at, connection_id, metadata, process_at, created_at`
)

// wasAlreadyTerminal reports whether a payment claimed by
// ClaimExpiredIncomingPayments was already COMPLETED before the sweep ran,
// in which case no incoming_payment.expired event is due for it.
func wasAlreadyTerminal(p *models.IncomingPayment) bool {
	return p.State == models.IncomingPaymentCompleted
}

func scanIncomingPayment(row interface{ Scan(...any) error }) (*models.IncomingPayment, error) {
	p := &models.IncomingPayment{}
	var incomingAmount, connectionID sql.NullString
	var metadataJSON sql.NullString
	var processAt sql.NullTime
	if err := row.Scan(&p.ID, &p.WalletAddressID, &p.AssetID, &incomingAmount, &p.ReceivedAmount,
		&p.State, &p.ExpiresAt, &connectionID, &metadataJSON, &processAt, &p.CreatedAt); err != nil {
		return nil, err
	}
	if incomingAmount.Valid {
		p.IncomingAmount = &incomingAmount.String
	}
	if connectionID.Valid {
		p.ConnectionID = &connectionID.String
	}
	if metadataJSON.Valid && metadataJSON.String != "" {
		_ = json.Unmarshal([]byte(metadataJSON.String), &p.Metadata)
	}
	if processAt.Valid {
		t := processAt.Time
		p.ProcessAt = &t
	}
	return p, nil
}

func (s *Service) CreateIncomingPayment(ctx context.Context, p *models.IncomingPayment) error {
	metadataJSON, err := marshalMetadata(p.Metadata)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, queryInsertIncomingPayment, p.ID, p.WalletAddressID, p.AssetID,
		p.IncomingAmount, p.ReceivedAmount, p.State, p.ExpiresAt, p.ConnectionID, metadataJSON, p.ProcessAt)
	if err != nil {
		return fmt.Errorf("creating incoming payment %s: %w", p.ID, err)
	}
	return nil
}

func (s *Service) GetIncomingPayment(ctx context.Context, id string) (*models.IncomingPayment, error) {
	p, err := scanIncomingPayment(s.db.QueryRowContext(ctx, queryGetIncomingPayment, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.NewError(store.ErrUnknownPayment, id)
		}
		return nil, fmt.Errorf("getting incoming payment %s: %w", id, err)
	}
	return p, nil
}

func (s *Service) UpdateIncomingPayment(ctx context.Context, p *models.IncomingPayment, event *models.WebhookEvent) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning incoming payment update transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, queryUpdateIncomingPayment, p.ReceivedAmount, p.State, p.ProcessAt, p.ConnectionID, p.ID)
	if err != nil {
		return fmt.Errorf("updating incoming payment %s: %w", p.ID, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return store.NewError(store.ErrUnknownPayment, p.ID)
	}
	if event != nil {
		if err := insertWebhookEvent(ctx, tx, event); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ClaimExpiredIncomingPayments flips due, non-terminal payments to EXPIRED
// in the same UPDATE that selects them (spec.md §4.3's expiry sweep), and
// writes the incoming_payment.expired event for each one it actually
// transitioned in the same transaction.
func (s *Service) ClaimExpiredIncomingPayments(ctx context.Context, now time.Time, limit int) ([]*models.IncomingPayment, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning expiry sweep transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, queryClaimExpiredIncomingPayments, now, now, limit)
	if err != nil {
		return nil, fmt.Errorf("claiming expired incoming payments: %w", err)
	}
	var out []*models.IncomingPayment
	for rows.Next() {
		p, err := scanIncomingPayment(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for _, p := range out {
		if wasAlreadyTerminal(p) {
			continue
		}
		event := &models.WebhookEvent{
			ID:        uuid.NewString(),
			Type:      models.EventIncomingPaymentExpired,
			Data:      map[string]any{"id": p.ID, "walletAddressId": p.WalletAddressID},
			ProcessAt: timePtr(now),
			CreatedAt: now,
		}
		if err := insertWebhookEvent(ctx, tx, event); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing expiry sweep: %w", err)
	}
	return out, nil
}

func timePtr(t time.Time) *time.Time { return &t }

func marshalMetadata(m map[string]string) (*string, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshaling metadata: %w", err)
	}
	s := string(b)
	return &s, nil
}
