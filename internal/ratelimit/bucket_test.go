package ratelimit

import "testing"

func TestPeerPacketsKey(t *testing.T) {
	if got, want := PeerPacketsKey("peer1"), "ratelimit:packets:peer1"; got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestPeerThroughputKey_Inbound(t *testing.T) {
	if got, want := PeerThroughputKey("peer1", false), "ratelimit:throughput:in:peer1"; got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestPeerThroughputKey_Outbound(t *testing.T) {
	if got, want := PeerThroughputKey("peer1", true), "ratelimit:throughput:out:peer1"; got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
}
