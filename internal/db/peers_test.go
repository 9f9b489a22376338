package db

import (
	"context"
	"testing"

	"github.com/ilpengine/engine/internal/models"
)

func seedAsset(t *testing.T, svc *Service, id string) {
	t.Helper()
	if err := svc.CreateAsset(context.Background(), &models.Asset{ID: id, Code: "USD", Scale: 2}); err != nil {
		t.Fatalf("seeding asset %s failed: %v", id, err)
	}
}

func TestCreateAndGetPeer(t *testing.T) {
	svc, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()
	seedAsset(t, svc, "asset1")

	maxPacket := int64(1000)
	peer := &models.Peer{
		ID:               "peer1",
		AssetID:          "asset1",
		StaticIlpAddress: "g.peer1",
		MaxPacketAmount:  &maxPacket,
		OutgoingToken:    "out-token",
		IncomingToken:    "in-token",
	}
	if err := svc.CreatePeer(ctx, peer); err != nil {
		t.Fatalf("CreatePeer failed: %v", err)
	}

	got, err := svc.GetPeer(ctx, "peer1")
	if err != nil {
		t.Fatalf("GetPeer failed: %v", err)
	}
	if got.StaticIlpAddress != "g.peer1" || got.OutgoingToken != "out-token" {
		t.Fatalf("unexpected peer: %+v", got)
	}
	if got.MaxPacketAmount == nil || *got.MaxPacketAmount != 1000 {
		t.Fatalf("expected max packet amount 1000, got %v", got.MaxPacketAmount)
	}
}

func TestFindPeerByAddressPrefix_LongestMatchWins(t *testing.T) {
	svc, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()
	seedAsset(t, svc, "asset1")

	for _, p := range []*models.Peer{
		{ID: "peer-short", AssetID: "asset1", StaticIlpAddress: "g.peer", OutgoingToken: "o1", IncomingToken: "i1"},
		{ID: "peer-long", AssetID: "asset1", StaticIlpAddress: "g.peer.sub", OutgoingToken: "o2", IncomingToken: "i2"},
	} {
		if err := svc.CreatePeer(ctx, p); err != nil {
			t.Fatalf("CreatePeer(%s) failed: %v", p.ID, err)
		}
	}

	got, err := svc.FindPeerByAddressPrefix(ctx, "g.peer.sub.account123")
	if err != nil {
		t.Fatalf("FindPeerByAddressPrefix failed: %v", err)
	}
	if got.ID != "peer-long" {
		t.Fatalf("expected longest-prefix match peer-long, got %s", got.ID)
	}
}

func TestFindPeerByAddressPrefix_NoMatch(t *testing.T) {
	svc, cleanup := setupTestDB(t)
	defer cleanup()

	if _, err := svc.FindPeerByAddressPrefix(context.Background(), "g.unknown"); err == nil {
		t.Fatal("expected an error when no peer matches")
	}
}

func TestFindPeerByIncomingToken(t *testing.T) {
	svc, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()
	seedAsset(t, svc, "asset1")

	peer := &models.Peer{ID: "peer1", AssetID: "asset1", StaticIlpAddress: "g.peer1", OutgoingToken: "out", IncomingToken: "secret-token"}
	if err := svc.CreatePeer(ctx, peer); err != nil {
		t.Fatalf("CreatePeer failed: %v", err)
	}

	got, err := svc.FindPeerByIncomingToken(ctx, "secret-token")
	if err != nil {
		t.Fatalf("FindPeerByIncomingToken failed: %v", err)
	}
	if got.ID != "peer1" {
		t.Fatalf("expected peer1, got %s", got.ID)
	}

	if _, err := svc.FindPeerByIncomingToken(ctx, "wrong-token"); err == nil {
		t.Fatal("expected an error for an unknown token")
	}
}
