package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ilpengine/engine/internal/models"
	"github.com/ilpengine/engine/internal/store"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var assetCodeCaser = cases.Upper(language.Und)

const (
	queryInsertAsset = `
		INSERT INTO assets (id, code, scale, withdrawal_threshold,
			sending_fee_fixed, sending_fee_bps, receiving_fee_fixed, receiving_fee_bps)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetAsset = `
		SELECT id, code, scale, withdrawal_threshold,
			sending_fee_fixed, sending_fee_bps, receiving_fee_fixed, receiving_fee_bps, created_at
		FROM assets WHERE id = ?`

	queryUpdateAssetWithdrawalThreshold = `
		UPDATE assets SET withdrawal_threshold = ? WHERE id = ?`

	queryUpdateAssetSendingFee = `
		UPDATE assets SET sending_fee_fixed = ?, sending_fee_bps = ? WHERE id = ?`

	queryUpdateAssetReceivingFee = `
		UPDATE assets SET receiving_fee_fixed = ?, receiving_fee_bps = ? WHERE id = ?`
)

func (s *Service) CreateAsset(ctx context.Context, a *models.Asset) error {
	var threshold *string
	if a.WithdrawalThreshold != nil {
		v := string(*a.WithdrawalThreshold)
		threshold = &v
	}
	var sendFixed, sendBps, recvFixed, recvBps *int64
	if a.SendingFee != nil {
		sendFixed, sendBps = &a.SendingFee.FixedFee, &a.SendingFee.BasisPoints
	}
	if a.ReceivingFee != nil {
		recvFixed, recvBps = &a.ReceivingFee.FixedFee, &a.ReceivingFee.BasisPoints
	}
	code := assetCodeCaser.String(a.Code)
	_, err := s.db.ExecContext(ctx, queryInsertAsset, a.ID, code, a.Scale, threshold, sendFixed, sendBps, recvFixed, recvBps)
	if err != nil {
		return fmt.Errorf("creating asset %s: %w", a.ID, err)
	}
	return nil
}

func (s *Service) GetAsset(ctx context.Context, id string) (*models.Asset, error) {
	row := s.db.QueryRowContext(ctx, queryGetAsset, id)
	a := &models.Asset{}
	var threshold sql.NullString
	var sendFixed, sendBps, recvFixed, recvBps sql.NullInt64
	if err := row.Scan(&a.ID, &a.Code, &a.Scale, &threshold, &sendFixed, &sendBps, &recvFixed, &recvBps, &a.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.NewError(store.ErrUnknownAsset, id)
		}
		return nil, fmt.Errorf("getting asset %s: %w", id, err)
	}
	if threshold.Valid {
		ds := models.DecimalString(threshold.String)
		a.WithdrawalThreshold = &ds
	}
	if sendFixed.Valid {
		a.SendingFee = &models.Fee{FixedFee: sendFixed.Int64, BasisPoints: sendBps.Int64}
	}
	if recvFixed.Valid {
		a.ReceivingFee = &models.Fee{FixedFee: recvFixed.Int64, BasisPoints: recvBps.Int64}
	}
	return a, nil
}

func (s *Service) UpdateAssetWithdrawalThreshold(ctx context.Context, id string, threshold *string) error {
	res, err := s.db.ExecContext(ctx, queryUpdateAssetWithdrawalThreshold, threshold, id)
	if err != nil {
		return fmt.Errorf("updating withdrawal threshold for %s: %w", id, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return store.NewError(store.ErrUnknownAsset, id)
	}
	return nil
}

func (s *Service) SetAssetFee(ctx context.Context, assetID string, sending bool, fee *models.Fee) error {
	var fixed, bps *int64
	if fee != nil {
		fixed, bps = &fee.FixedFee, &fee.BasisPoints
	}
	q := queryUpdateAssetReceivingFee
	if sending {
		q = queryUpdateAssetSendingFee
	}
	res, err := s.db.ExecContext(ctx, q, fixed, bps, assetID)
	if err != nil {
		return fmt.Errorf("setting fee for asset %s: %w", assetID, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return store.NewError(store.ErrUnknownAsset, assetID)
	}
	return nil
}
