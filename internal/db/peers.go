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
	queryInsertPeer = `
		INSERT INTO peers (id, asset_id, static_ilp_address, max_packet_amount,
			outgoing_token, incoming_token, liquidity_threshold)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	queryGetPeer = `
		SELECT id, asset_id, static_ilp_address, max_packet_amount,
			outgoing_token, incoming_token, liquidity_threshold, created_at
		FROM peers WHERE id = ?`

	queryFindPeerByAddressPrefix = `
		SELECT id, asset_id, static_ilp_address, max_packet_amount,
			outgoing_token, incoming_token, liquidity_threshold, created_at
		FROM peers
		WHERE ? = static_ilp_address OR ? LIKE static_ilp_address || '.%'
		ORDER BY LENGTH(static_ilp_address) DESC
		LIMIT 1`

	queryFindPeerByIncomingToken = `
		SELECT id, asset_id, static_ilp_address, max_packet_amount,
			outgoing_token, incoming_token, liquidity_threshold, created_at
		FROM peers WHERE incoming_token = ?`

	queryDeletePeer = `DELETE FROM peers WHERE id = ?`

	queryUpdatePeer = `
		UPDATE peers SET max_packet_amount = ?, outgoing_token = ?, incoming_token = ?,
			liquidity_threshold = ? WHERE id = ?`
)

func scanPeer(row interface{ Scan(...any) error }) (*models.Peer, error) {
	p := &models.Peer{}
	var maxPacket, liqThreshold sql.NullInt64
	if err := row.Scan(&p.ID, &p.AssetID, &p.StaticIlpAddress, &maxPacket,
		&p.OutgoingToken, &p.IncomingToken, &liqThreshold, &p.CreatedAt); err != nil {
		return nil, err
	}
	if maxPacket.Valid {
		p.MaxPacketAmount = &maxPacket.Int64
	}
	if liqThreshold.Valid {
		p.LiquidityThreshold = &liqThreshold.Int64
	}
	return p, nil
}

func (s *Service) CreatePeer(ctx context.Context, p *models.Peer) error {
	_, err := s.db.ExecContext(ctx, queryInsertPeer, p.ID, p.AssetID, p.StaticIlpAddress,
		p.MaxPacketAmount, p.OutgoingToken, p.IncomingToken, p.LiquidityThreshold)
	if err != nil {
		return fmt.Errorf("creating peer %s: %w", p.ID, err)
	}
	return nil
}

func (s *Service) GetPeer(ctx context.Context, id string) (*models.Peer, error) {
	p, err := scanPeer(s.db.QueryRowContext(ctx, queryGetPeer, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.NewError(store.ErrUnknownPeer, id)
		}
		return nil, fmt.Errorf("getting peer %s: %w", id, err)
	}
	return p, nil
}

// FindPeerByAddressPrefix implements the longest-prefix-match ILP address
// routing lookup (spec.md §4.2 stage "peer resolution"): an exact match on
// staticIlpAddress, or the longest staticIlpAddress that is a dot-segment
// prefix of destination.
func (s *Service) FindPeerByAddressPrefix(ctx context.Context, destination string) (*models.Peer, error) {
	p, err := scanPeer(s.db.QueryRowContext(ctx, queryFindPeerByAddressPrefix, destination, destination))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.NewError(store.ErrUnknownPeer, destination)
		}
		return nil, fmt.Errorf("finding peer for %s: %w", destination, err)
	}
	return p, nil
}

// FindPeerByIncomingToken authenticates an inbound packet by the bearer
// token it presented, the account-middleware stage's "incoming" lookup
// (spec.md §4.2 stage 3).
func (s *Service) FindPeerByIncomingToken(ctx context.Context, token string) (*models.Peer, error) {
	p, err := scanPeer(s.db.QueryRowContext(ctx, queryFindPeerByIncomingToken, token))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.NewError(store.ErrUnknownPeer, "no peer for incoming token")
		}
		return nil, fmt.Errorf("finding peer by incoming token: %w", err)
	}
	return p, nil
}

func (s *Service) DeletePeer(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, queryDeletePeer, id)
	if err != nil {
		return fmt.Errorf("deleting peer %s: %w", id, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return store.NewError(store.ErrUnknownPeer, id)
	}
	return nil
}

func (s *Service) UpdatePeer(ctx context.Context, p *models.Peer) error {
	res, err := s.db.ExecContext(ctx, queryUpdatePeer, p.MaxPacketAmount, p.OutgoingToken,
		p.IncomingToken, p.LiquidityThreshold, p.ID)
	if err != nil {
		return fmt.Errorf("updating peer %s: %w", p.ID, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return store.NewError(store.ErrUnknownPeer, p.ID)
	}
	return nil
}
