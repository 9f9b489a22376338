package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ilpengine/engine/internal/models"
	"github.com/ilpengine/engine/internal/store"
)

const (
	queryInsertWalletAddress = `
		INSERT INTO wallet_addresses (id, url, asset_id, public_name, process_at)
		VALUES (?, ?, ?, ?, ?)`

	queryGetWalletAddress = `
		SELECT id, url, asset_id, public_name, total_events_amount, process_at, deactivated_at, created_at
		FROM wallet_addresses WHERE id = ?`

	queryFindWalletAddressByURL = `
		SELECT id, url, asset_id, public_name, total_events_amount, process_at, deactivated_at, created_at
		FROM wallet_addresses WHERE url = ?`

	queryUpdateWalletAddress = `
		UPDATE wallet_addresses SET public_name = ?, deactivated_at = ? WHERE id = ?`

	queryClaimWalletAddressesDue = `
		UPDATE wallet_addresses
		SET process_at = NULL
		WHERE id IN (
			SELECT id FROM wallet_addresses
			WHERE process_at IS NOT NULL AND process_at <= ?
			ORDER BY process_at
			LIMIT ?
		)
		RETURNING id, url, asset_id, public_name, total_events_amount, process_at, deactivated_at, created_at`

	queryAdvanceWalletAddressEvents = `
		UPDATE wallet_addresses SET total_events_amount = ?, process_at = ? WHERE id = ?`
)

func scanWalletAddress(row interface{ Scan(...any) error }) (*models.WalletAddress, error) {
	w := &models.WalletAddress{}
	var publicName sql.NullString
	var processAt, deactivatedAt sql.NullTime
	if err := row.Scan(&w.ID, &w.URL, &w.AssetID, &publicName, &w.TotalEventsAmount,
		&processAt, &deactivatedAt, &w.CreatedAt); err != nil {
		return nil, err
	}
	if publicName.Valid {
		w.PublicName = publicName.String
	}
	if processAt.Valid {
		t := processAt.Time
		w.ProcessAt = &t
	}
	if deactivatedAt.Valid {
		t := deactivatedAt.Time
		w.DeactivatedAt = &t
	}
	return w, nil
}

func (s *Service) CreateWalletAddress(ctx context.Context, w *models.WalletAddress) error {
	_, err := s.db.ExecContext(ctx, queryInsertWalletAddress, w.ID, w.URL, w.AssetID, w.PublicName, w.ProcessAt)
	if err != nil {
		return fmt.Errorf("creating wallet address %s: %w", w.ID, err)
	}
	return nil
}

func (s *Service) GetWalletAddress(ctx context.Context, id string) (*models.WalletAddress, error) {
	w, err := scanWalletAddress(s.db.QueryRowContext(ctx, queryGetWalletAddress, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.NewError(store.ErrUnknownWalletAddress, id)
		}
		return nil, fmt.Errorf("getting wallet address %s: %w", id, err)
	}
	return w, nil
}

func (s *Service) FindWalletAddressByURL(ctx context.Context, url string) (*models.WalletAddress, error) {
	w, err := scanWalletAddress(s.db.QueryRowContext(ctx, queryFindWalletAddressByURL, url))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.NewError(store.ErrUnknownWalletAddress, url)
		}
		return nil, fmt.Errorf("finding wallet address %s: %w", url, err)
	}
	return w, nil
}

func (s *Service) UpdateWalletAddress(ctx context.Context, w *models.WalletAddress) error {
	res, err := s.db.ExecContext(ctx, queryUpdateWalletAddress, w.PublicName, w.DeactivatedAt, w.ID)
	if err != nil {
		return fmt.Errorf("updating wallet address %s: %w", w.ID, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return store.NewError(store.ErrUnknownWalletAddress, w.ID)
	}
	return nil
}

// ClaimWalletAddressesDue atomically clears process_at on the batch it
// returns, the SQLite analog to spec.md §5's "claim via a single UPDATE"
// requirement -- no SELECT ... FOR UPDATE SKIP LOCKED available, so the
// UPDATE ... RETURNING clears the due marker in the same statement that
// selects it, preventing a second worker from claiming the same row.
func (s *Service) ClaimWalletAddressesDue(ctx context.Context, now time.Time, limit int) ([]*models.WalletAddress, error) {
	rows, err := s.db.QueryContext(ctx, queryClaimWalletAddressesDue, now, limit)
	if err != nil {
		return nil, fmt.Errorf("claiming due wallet addresses: %w", err)
	}
	defer rows.Close()

	var out []*models.WalletAddress
	for rows.Next() {
		w, err := scanWalletAddress(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (s *Service) AdvanceWalletAddressEvents(ctx context.Context, id string, newTotalEventsAmount string, nextProcessAt *time.Time) error {
	_, err := s.db.ExecContext(ctx, queryAdvanceWalletAddressEvents, newTotalEventsAmount, nextProcessAt, id)
	if err != nil {
		return fmt.Errorf("advancing wallet address events %s: %w", id, err)
	}
	return nil
}
