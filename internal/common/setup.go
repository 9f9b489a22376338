package common

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/ilpengine/engine/internal/admin"
	"github.com/ilpengine/engine/internal/db"
	"github.com/ilpengine/engine/internal/health"
	"github.com/ilpengine/engine/internal/incoming"
	"github.com/ilpengine/engine/internal/ledger"
	"github.com/ilpengine/engine/internal/models"
	"github.com/ilpengine/engine/internal/outgoing"
	"github.com/ilpengine/engine/internal/pipeline"
	"github.com/ilpengine/engine/internal/quote"
	"github.com/ilpengine/engine/internal/ratelimit"
	"github.com/ilpengine/engine/internal/receiver"
	"github.com/ilpengine/engine/internal/registry"
	"github.com/ilpengine/engine/internal/stream"
	"github.com/ilpengine/engine/internal/webhook"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"go.uber.org/zap"
)

// init loads environment variables from .env file if it exists
func init() {
	// Try to load .env file - if it doesn't exist, that's okay
	// Environment variables can be set via other means (shell export, docker, etc.)
	if err := godotenv.Load(); err != nil {
		log.Printf("Note: No .env file found or unable to load it: %v\n", err)
		log.Println("Make sure to set environment variables via export or other means")
	} else {
		log.Println("Loaded environment variables from .env file")
	}
}

// workerPollInterval governs the outgoing-payment worker's poll cadence;
// short enough that a funded payment starts sending almost immediately.
const workerPollInterval = time.Second

// Services bundles every wired package a cmd/* binary needs.
type Services struct {
	Config *models.Config

	Domain *db.Service
	Ledger *ledger.Service
	Redis  *redis.Client

	Registry *registry.Registry
	Pipeline *pipeline.Pipeline
	Server   *pipeline.Server

	OutgoingEngine *outgoing.Engine
	OutgoingWorker *outgoing.Worker

	ExpiryWorker        *incoming.ExpiryWorker
	WalletAddressWorker *incoming.WalletAddressWorker

	WebhookDispatcher *webhook.Dispatcher

	QuoteEngine *quote.Engine
	Resolver    *receiver.Resolver

	Admin  *admin.Service
	Health *health.Server
}

func InitializeLogger() (*zap.Logger, func()) {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	zap.ReplaceGlobals(logger)

	cleanup := func() {
		if err := logger.Sync(); err != nil {
			if !isIgnorableSyncError(err) {
				log.Printf("Failed to sync logger: %v\n", err)
			}
		}
	}

	return logger, cleanup
}

// InitializeServices builds and wires every package in dependency order:
// domain store and ledger first, then the registry's onCredit hooks, then
// everything that depends on them (quote engine, receiver resolver,
// outgoing-payment pipeline, the pay step, the workers, the admin API, and
// the health surface).
func InitializeServices(ctx context.Context, cfg *models.Config) (*Services, error) {
	domain, err := db.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("initializing domain store: %w", err)
	}

	zap.L().Info("Connecting to ledger")
	ledgerSvc, err := ledger.NewService(ctx, cfg.Ledger)
	if err != nil {
		domain.Close()
		return nil, fmt.Errorf("initializing ledger adapter: %w", err)
	}

	reg := registry.New(ledgerSvc)
	incoming.RegisterHooks(reg, domain)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	limiter := ratelimit.New(redisClient)

	codec := stream.New(cfg.StreamSecret, cfg.ILPAddress)
	recv := stream.NewReceiver()

	httpClient := &http.Client{Timeout: 10 * time.Second}

	var clientKey *receiver.ClientKey
	if cfg.KeyID != "" && cfg.PrivateKey != "" {
		clientKey = &receiver.ClientKey{
			KeyID:      cfg.KeyID,
			WalletURL:  cfg.WalletAddressURL,
			PrivateKey: []byte(cfg.PrivateKey),
		}
	}
	grants := receiver.NewGrantCache(httpClient, clientKey, zap.L())
	openPayments := receiver.NewOpenPaymentsClient(httpClient)
	resolver := receiver.NewResolver(domain, codec, cfg.WalletAddressURL, openPayments, grants)

	rates := quote.NewRatesClient(cfg.ExchangeRatesURL, cfg.ExchangeRatesLifetime)
	quoteEngine := quote.NewEngine(domain, rates, resolver, cfg.QuoteLifespan, cfg.Slippage)

	transport, err := pipeline.NewHTTPPeerTransport()
	if err != nil {
		ledgerSvc.Close()
		domain.Close()
		return nil, fmt.Errorf("initializing peer transport: %w", err)
	}
	pl := pipeline.New(domain, ledgerSvc, reg, codec, recv, limiter, transport, *cfg, zap.L())
	server := pipeline.NewServer(pl, domain, zap.L())

	pay := outgoing.NewStreamPay(resolver, pl, zap.L())
	retryBackoff := time.Duration(cfg.RetryBackoffSeconds) * time.Second
	outgoingEngine := outgoing.NewEngine(domain, ledgerSvc, pay, zap.L(), retryBackoff, cfg.MaxPayAttempts)
	outgoingWorker := outgoing.NewWorker(outgoingEngine, domain, workerPollInterval, zap.L())

	expiryWorker := incoming.NewExpiryWorker(domain, cfg.MaxHoldTime, zap.L())
	walletAddressWorker := incoming.NewWalletAddressWorker(domain, ledgerSvc, cfg.WithdrawalThrottleDelay, zap.L())

	dispatcher := webhook.NewDispatcher(domain, *cfg, zap.L())

	adminSvc := admin.New(domain, ledgerSvc)
	healthSrv := health.New(cfg.Health, domain, ledgerSvc, zap.L())

	zap.L().Info("Services initialized")
	return &Services{
		Config:              cfg,
		Domain:              domain,
		Ledger:              ledgerSvc,
		Redis:               redisClient,
		Registry:            reg,
		Pipeline:            pl,
		Server:              server,
		OutgoingEngine:      outgoingEngine,
		OutgoingWorker:      outgoingWorker,
		ExpiryWorker:        expiryWorker,
		WalletAddressWorker: walletAddressWorker,
		WebhookDispatcher:   dispatcher,
		QuoteEngine:         quoteEngine,
		Resolver:            resolver,
		Admin:               adminSvc,
		Health:              healthSrv,
	}, nil
}

// InitializeDatabaseOnly initializes just the domain store, for read-only
// command-line utilities that don't need the ledger or the pipeline.
func InitializeDatabaseOnly(ctx context.Context, cfg *models.Config) (*db.Service, error) {
	return db.NewService(ctx, cfg.Database)
}

func (s *Services) Close() {
	if s.Ledger != nil {
		s.Ledger.Close()
	}
	if s.Redis != nil {
		_ = s.Redis.Close()
	}
	if s.Domain != nil {
		s.Domain.Close()
	}
}

func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "sync /dev/stderr: inappropriate ioctl for device") ||
		strings.Contains(msg, "sync /dev/stdout: inappropriate ioctl for device")
}
