package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.ILPAddress != "test.engine" {
		t.Fatalf("expected default ILP address, got %s", cfg.ILPAddress)
	}
	if cfg.MaxPayAttempts != 5 {
		t.Fatalf("expected default max pay attempts 5, got %d", cfg.MaxPayAttempts)
	}
	if cfg.QuoteLifespan != 5*time.Minute {
		t.Fatalf("expected default quote lifespan 5m, got %v", cfg.QuoteLifespan)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("ILP_ADDRESS", "g.custom")
	t.Setenv("MAX_PAY_ATTEMPTS", "7")
	t.Setenv("QUOTE_LIFESPAN", "2m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.ILPAddress != "g.custom" {
		t.Fatalf("expected overridden ILP address, got %s", cfg.ILPAddress)
	}
	if cfg.MaxPayAttempts != 7 {
		t.Fatalf("expected overridden max pay attempts 7, got %d", cfg.MaxPayAttempts)
	}
	if cfg.QuoteLifespan != 2*time.Minute {
		t.Fatalf("expected overridden quote lifespan 2m, got %v", cfg.QuoteLifespan)
	}
}

func TestLoad_InvalidDurationErrors(t *testing.T) {
	t.Setenv("QUOTE_LIFESPAN", "not-a-duration")
	if _, err := Load(); err == nil {
		t.Fatal("expected an error for an invalid duration")
	}
}

func TestLoad_StreamSecretDecodesHex(t *testing.T) {
	t.Setenv("STREAM_SECRET", "00000000000000000000000000000000000000000000000000000000000000ab")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.StreamSecret[31] != 0xab {
		t.Fatalf("expected last byte 0xab, got %x", cfg.StreamSecret[31])
	}
}

func TestLoad_StreamSecretInvalidLengthErrors(t *testing.T) {
	t.Setenv("STREAM_SECRET", "abcd")
	if _, err := Load(); err == nil {
		t.Fatal("expected an error for a stream secret that doesn't decode to 32 bytes")
	}
}

func TestLoad_StreamSecretInvalidHexErrors(t *testing.T) {
	t.Setenv("STREAM_SECRET", "not-hex-at-all-zzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzz")
	if _, err := Load(); err == nil {
		t.Fatal("expected an error for invalid hex")
	}
}
