/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/ilpengine/engine/internal/models"
)

func Load() (*models.Config, error) {
	quoteLifespan, err := getEnvDuration("QUOTE_LIFESPAN", 5*time.Minute)
	if err != nil {
		return nil, err
	}
	withdrawalThrottleDelay, err := getEnvDuration("WITHDRAWAL_THROTTLE_DELAY", time.Minute)
	if err != nil {
		return nil, err
	}
	ratesLifetime, err := getEnvDuration("EXCHANGE_RATES_LIFETIME", 15*time.Minute)
	if err != nil {
		return nil, err
	}
	maxHoldTime, err := getEnvDuration("MAX_HOLD_TIME", 30*time.Second)
	if err != nil {
		return nil, err
	}
	webhookTimeout, err := getEnvDuration("WEBHOOK_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	webhookBackoffBase, err := getEnvDuration("WEBHOOK_BACKOFF_BASE", time.Second)
	if err != nil {
		return nil, err
	}
	webhookBackoffMax, err := getEnvDuration("WEBHOOK_BACKOFF_MAX", 10*time.Minute)
	if err != nil {
		return nil, err
	}

	connMaxLifetime, err := getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute)
	if err != nil {
		return nil, err
	}
	connMaxIdleTime, err := getEnvDuration("DB_CONN_MAX_IDLE_TIME", 30*time.Second)
	if err != nil {
		return nil, err
	}
	pingTimeout, err := getEnvDuration("DB_PING_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}

	streamSecret, err := getEnvSecret32("STREAM_SECRET")
	if err != nil {
		return nil, err
	}

	return &models.Config{
		ILPAddress: getEnvString("ILP_ADDRESS", "test.engine"),

		OpenPaymentsURL:    getEnvString("OPEN_PAYMENTS_URL", ""),
		WalletAddressURL:   getEnvString("WALLET_ADDRESS_URL", ""),
		AuthServerGrantURL: getEnvString("AUTH_SERVER_GRANT_URL", ""),

		QuoteLifespan:           quoteLifespan,
		Slippage:                getEnvFloat("QUOTE_SLIPPAGE", 0.01),
		WithdrawalThrottleDelay: withdrawalThrottleDelay,

		ExchangeRatesURL:      getEnvString("EXCHANGE_RATES_URL", ""),
		ExchangeRatesLifetime: ratesLifetime,

		StreamSecret: streamSecret,
		KeyID:        getEnvString("KEY_ID", ""),
		PrivateKey:   getEnvString("PRIVATE_KEY", ""),

		RetryBackoffSeconds: getEnvInt("RETRY_BACKOFF_SECONDS", 1),
		MaxPayAttempts:      getEnvInt("MAX_PAY_ATTEMPTS", 5),
		MaxHoldTime:         maxHoldTime,
		WebhookURL:          getEnvString("WEBHOOK_URL", ""),
		WebhookTimeout:      webhookTimeout,
		WebhookMaxAttempts:  getEnvInt("WEBHOOK_MAX_ATTEMPTS", 10),
		WebhookBackoffBase:  webhookBackoffBase,
		WebhookBackoffMax:   webhookBackoffMax,

		Database: models.DatabaseConfig{
			Path:            getEnvString("DATABASE_PATH", "engine.db"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: connMaxLifetime,
			ConnMaxIdleTime: connMaxIdleTime,
			PingTimeout:     pingTimeout,
		},
		Ledger: models.LedgerConfig{
			StackURL:     getEnvString("FORMANCE_STACK_URL", ""),
			ClientID:     getEnvString("FORMANCE_CLIENT_ID", ""),
			ClientSecret: getEnvString("FORMANCE_CLIENT_SECRET", ""),
			LedgerName:   getEnvString("FORMANCE_LEDGER_NAME", "engine"),
		},
		Redis: models.RedisConfig{
			Addr:     getEnvString("REDIS_ADDR", "localhost:6379"),
			Password: getEnvString("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Health: models.HealthConfig{
			ListenAddr: getEnvString("HEALTH_LISTEN_ADDR", ":3001"),
		},
	}, nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	if value := os.Getenv(key); value != "" {
		duration, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid duration for %s: %q (%w)", key, value, err)
		}
		return duration, nil
	}
	return defaultValue, nil
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvSecret32 decodes a 64-character hex string into the 32-byte STREAM
// server secret; unset yields the zero key, fine for local development but
// never for a shared deployment.
func getEnvSecret32(key string) ([32]byte, error) {
	var secret [32]byte
	value := os.Getenv(key)
	if value == "" {
		return secret, nil
	}
	decoded, err := hex.DecodeString(value)
	if err != nil {
		return secret, fmt.Errorf("invalid hex for %s: %w", key, err)
	}
	if len(decoded) != 32 {
		return secret, fmt.Errorf("%s must decode to 32 bytes, got %d", key, len(decoded))
	}
	copy(secret[:], decoded)
	return secret, nil
}
