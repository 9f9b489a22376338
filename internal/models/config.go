package models

import "time"

// Config represents the application configuration, grounded on the
// teacher's nested Config/DatabaseConfig/ListenerConfig shape and expanded
// to the recognized environment variables in spec.md §6.
type Config struct {
	ILPAddress string

	OpenPaymentsURL    string
	WalletAddressURL   string
	AuthServerGrantURL string

	QuoteLifespan           time.Duration
	Slippage                float64
	WithdrawalThrottleDelay time.Duration

	ExchangeRatesURL      string
	ExchangeRatesLifetime time.Duration

	StreamSecret [32]byte
	KeyID        string
	PrivateKey   string

	RetryBackoffSeconds int
	MaxPayAttempts      int
	MaxHoldTime         time.Duration
	WebhookURL          string
	WebhookTimeout      time.Duration
	WebhookMaxAttempts  int
	WebhookBackoffBase  time.Duration
	WebhookBackoffMax   time.Duration

	Database DatabaseConfig
	Ledger   LedgerConfig
	Redis    RedisConfig
	Health   HealthConfig
}

// DatabaseConfig holds the relational domain-store connection settings.
type DatabaseConfig struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

// LedgerConfig selects and configures the external double-entry ledger.
type LedgerConfig struct {
	StackURL     string
	ClientID     string
	ClientSecret string
	LedgerName   string
}

// RedisConfig backs the distributed rate-limit/throughput token buckets.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// HealthConfig configures the internal fiber healthz/debug surface.
type HealthConfig struct {
	ListenAddr string
}
