package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ilpengine/engine/internal/models"
	"github.com/ilpengine/engine/internal/store"
)

const (
	queryInsertQuote = `
		INSERT INTO quotes (id, wallet_address_id, asset_id, receiver, debit_amount, receive_amount,
			max_packet_amount, min_exchange_rate, low_estimated_exchange_rate, high_estimated_exchange_rate,
			receive_asset_code, receive_asset_scale, fee_id, expires_at, client)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetQuote = `
		SELECT id, wallet_address_id, asset_id, receiver, debit_amount, receive_amount,
			max_packet_amount, min_exchange_rate, low_estimated_exchange_rate, high_estimated_exchange_rate,
			receive_asset_code, receive_asset_scale, fee_id, expires_at, client, created_at
		FROM quotes WHERE id = ?`
)

func (s *Service) CreateQuote(ctx context.Context, q *models.Quote) error {
	_, err := s.db.ExecContext(ctx, queryInsertQuote, q.ID, q.WalletAddressID, q.AssetID, q.Receiver,
		q.DebitAmount, q.ReceiveAmount, q.MaxPacketAmount, q.MinExchangeRate,
		q.LowEstimatedExchangeRate, q.HighEstimatedExchangeRate, q.ReceiveAssetCode, q.ReceiveAssetScale,
		q.FeeID, q.ExpiresAt, q.Client)
	if err != nil {
		return fmt.Errorf("creating quote %s: %w", q.ID, err)
	}
	return nil
}

func (s *Service) GetQuote(ctx context.Context, id string) (*models.Quote, error) {
	q := &models.Quote{}
	var feeID, client sql.NullString
	row := s.db.QueryRowContext(ctx, queryGetQuote, id)
	if err := row.Scan(&q.ID, &q.WalletAddressID, &q.AssetID, &q.Receiver, &q.DebitAmount, &q.ReceiveAmount,
		&q.MaxPacketAmount, &q.MinExchangeRate, &q.LowEstimatedExchangeRate, &q.HighEstimatedExchangeRate,
		&q.ReceiveAssetCode, &q.ReceiveAssetScale, &feeID, &q.ExpiresAt, &client, &q.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.NewError(store.ErrUnknownQuote, id)
		}
		return nil, fmt.Errorf("getting quote %s: %w", id, err)
	}
	if feeID.Valid {
		q.FeeID = &feeID.String
	}
	if client.Valid {
		q.Client = &client.String
	}
	return q, nil
}
