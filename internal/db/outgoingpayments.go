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
	queryInsertOutgoingPayment = `
		INSERT INTO outgoing_payments (id, wallet_address_id, quote_id, state, sent_amount,
			peer_id, grant_id, metadata, process_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetOutgoingPayment = `
		SELECT id, wallet_address_id, quote_id, state, sent_amount, state_attempts, error,
			peer_id, grant_id, metadata, process_at, created_at
		FROM outgoing_payments WHERE id = ?`

	queryUpdateOutgoingPayment = `
		UPDATE outgoing_payments
		SET state = ?, sent_amount = ?, state_attempts = ?, error = ?, peer_id = ?,
			process_at = ?, claimed_at = NULL
		WHERE id = ?`

	queryClaimNextOutgoingPayment = `
		UPDATE outgoing_payments
		SET claimed_at = ?
		WHERE id = (
			SELECT id FROM outgoing_payments
			WHERE process_at IS NOT NULL AND process_at <= ?
				AND (claimed_at IS NULL OR claimed_at <= ?)
			ORDER BY process_at
			LIMIT 1
		)
		RETURNING id, wallet_address_id, quote_id, state, sent_amount, state_attempts, error,
			peer_id, grant_id, metadata, process_at, created_at`

	// A Failed payment's contribution is its actual sent amount, not its
	// full quoted amount -- spec.md §4.3's grant accounting substitutes a
	// partial send for the quote, it never excludes a Failed payment
	// outright (a payment that sent nothing contributes zero either way).
)

// farFuture stands in for "no upper bound" in SumGrantContribution's
// created_at < ? filter when a grant limit carries no repeating interval.
var farFuture = time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC)

const (
	querySumGrantContributionDebit = `
		SELECT COALESCE(SUM(
			CASE WHEN op.state = 'FAILED' THEN CAST(op.sent_amount AS REAL)
				ELSE CAST(q.debit_amount AS REAL) END
		), 0)
		FROM outgoing_payments op
		JOIN quotes q ON q.id = op.quote_id
		WHERE op.grant_id = ?
			AND op.created_at >= ? AND op.created_at < ?`

	querySumGrantContributionReceive = `
		SELECT COALESCE(SUM(
			CASE WHEN op.state = 'FAILED' THEN CAST(op.sent_amount AS REAL)
				* CAST(q.receive_amount AS REAL) / NULLIF(CAST(q.debit_amount AS REAL), 0)
				ELSE CAST(q.receive_amount AS REAL) END
		), 0)
		FROM outgoing_payments op
		JOIN quotes q ON q.id = op.quote_id
		WHERE op.grant_id = ?
			AND op.created_at >= ? AND op.created_at < ?`
)

func scanOutgoingPayment(row interface{ Scan(...any) error }) (*models.OutgoingPayment, error) {
	p := &models.OutgoingPayment{}
	var errText, peerID, grantID, metadataJSON sql.NullString
	var processAt sql.NullTime
	if err := row.Scan(&p.ID, &p.WalletAddressID, &p.QuoteID, &p.State, &p.SentAmount, &p.StateAttempts,
		&errText, &peerID, &grantID, &metadataJSON, &processAt, &p.CreatedAt); err != nil {
		return nil, err
	}
	if errText.Valid {
		p.Error = &errText.String
	}
	if peerID.Valid {
		p.PeerID = &peerID.String
	}
	if grantID.Valid {
		p.GrantID = &grantID.String
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

// CreateOutgoingPayment and its webhook_events row commit atomically, per
// spec.md §4.7's "written in the same DB transaction it reports".
func (s *Service) CreateOutgoingPayment(ctx context.Context, p *models.OutgoingPayment, event *models.WebhookEvent) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning outgoing payment transaction: %w", err)
	}
	defer tx.Rollback()

	metadataJSON, err := marshalMetadata(p.Metadata)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, queryInsertOutgoingPayment, p.ID, p.WalletAddressID, p.QuoteID,
		p.State, p.SentAmount, p.PeerID, p.GrantID, metadataJSON, p.ProcessAt); err != nil {
		return fmt.Errorf("creating outgoing payment %s: %w", p.ID, err)
	}
	if event != nil {
		if err := insertWebhookEvent(ctx, tx, event); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Service) GetOutgoingPayment(ctx context.Context, id string) (*models.OutgoingPayment, error) {
	p, err := scanOutgoingPayment(s.db.QueryRowContext(ctx, queryGetOutgoingPayment, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.NewError(store.ErrUnknownPayment, id)
		}
		return nil, fmt.Errorf("getting outgoing payment %s: %w", id, err)
	}
	return p, nil
}

func (s *Service) UpdateOutgoingPayment(ctx context.Context, p *models.OutgoingPayment, event *models.WebhookEvent) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning outgoing payment update transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, queryUpdateOutgoingPayment, p.State, p.SentAmount, p.StateAttempts,
		p.Error, p.PeerID, p.ProcessAt, p.ID)
	if err != nil {
		return fmt.Errorf("updating outgoing payment %s: %w", p.ID, err)
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

// ClaimNextOutgoingPayment emulates spec.md §5's SELECT ... FOR UPDATE SKIP
// LOCKED with a single atomic UPDATE ... WHERE id = (SELECT ...) RETURNING,
// SQLite having neither row locks nor SKIP LOCKED: the claimed_at fence
// plays the role of the lock, and a stale claim (worker crashed mid-pay)
// becomes claimable again once it's older than the fence window.
func (s *Service) ClaimNextOutgoingPayment(ctx context.Context, now time.Time) (*models.OutgoingPayment, error) {
	claimFence := now.Add(-2 * time.Minute)
	row := s.db.QueryRowContext(ctx, queryClaimNextOutgoingPayment, now, now, claimFence)
	p, err := scanOutgoingPayment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNoRowsClaimed
		}
		return nil, fmt.Errorf("claiming next outgoing payment: %w", err)
	}
	return p, nil
}

// SumGrantContribution totals the grant's prior contribution within the
// given ISO 8601 repeating interval's current window (spec.md §4.3 grant
// accounting), in either debitAmount or receiveAmount units per
// debitLimited, returned as a decimal string for the caller to add the
// candidate payment's amount to before comparing against the grant limit.
// An empty interval means the grant's limit has no repeating window at
// all -- it applies over the grant's entire lifetime -- so the sum spans
// every payment the grant has ever made rather than one window's worth.
func (s *Service) SumGrantContribution(ctx context.Context, grantID string, interval string, debitLimited bool) (string, error) {
	start, end := time.Time{}, farFuture
	if interval != "" {
		var err error
		start, end, err = currentIntervalWindow(interval)
		if err != nil {
			return "0", err
		}
	}
	q := querySumGrantContributionReceive
	if debitLimited {
		q = querySumGrantContributionDebit
	}
	var total float64
	row := s.db.QueryRowContext(ctx, q, grantID, start, end)
	if err := row.Scan(&total); err != nil {
		return "0", fmt.Errorf("summing grant contribution for %s: %w", grantID, err)
	}
	return fmt.Sprintf("%g", total), nil
}
