package pipeline

import (
	"testing"

	"github.com/ilpengine/engine/internal/ilp"
	"github.com/ilpengine/engine/internal/models"
)

func TestConvertCrossAsset_AppliesRate(t *testing.T) {
	p := newTestPipeline(models.Config{})
	pc := &ilp.PacketContext{Prepare: &ilp.Prepare{Amount: 1000}, MinExchangeRate: "0.5"}
	if got := p.convertCrossAsset(pc); got != 500 {
		t.Fatalf("expected 500, got %d", got)
	}
}

func TestConvertCrossAsset_FloorsFractionalResult(t *testing.T) {
	p := newTestPipeline(models.Config{})
	pc := &ilp.PacketContext{Prepare: &ilp.Prepare{Amount: 100}, MinExchangeRate: "0.333"}
	if got := p.convertCrossAsset(pc); got != 33 {
		t.Fatalf("expected 33, got %d", got)
	}
}

func TestConvertCrossAsset_NoRatePassesThrough(t *testing.T) {
	p := newTestPipeline(models.Config{})
	pc := &ilp.PacketContext{Prepare: &ilp.Prepare{Amount: 1000}}
	if got := p.convertCrossAsset(pc); got != 1000 {
		t.Fatalf("expected 1000 (passthrough), got %d", got)
	}
}

func TestConvertCrossAsset_InvalidRatePassesThrough(t *testing.T) {
	p := newTestPipeline(models.Config{})
	pc := &ilp.PacketContext{Prepare: &ilp.Prepare{Amount: 1000}, MinExchangeRate: "not-a-number"}
	if got := p.convertCrossAsset(pc); got != 1000 {
		t.Fatalf("expected 1000 (passthrough), got %d", got)
	}
}
