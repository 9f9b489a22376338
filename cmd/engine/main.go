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

// Command engine runs the packet pipeline's inbound HTTP listener plus
// every background worker (outgoing-payment pay step, incoming-payment
// expiry sweep, wallet-address web-monetization throttle, webhook
// dispatcher) and the /healthz debug surface, replacing the teacher's
// cmd/listener's one-goroutine-per-portfolio shape with one goroutine per
// worker (spec.md §5).
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/ilpengine/engine/internal/common"
	"github.com/ilpengine/engine/internal/config"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		_, _ = zap.NewProduction()
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	zap.L().Info("Starting ILP engine")

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	var wg sync.WaitGroup
	runWorker := func(name string, run func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			zap.L().Info("Starting worker", zap.String("worker", name))
			run(ctx)
			zap.L().Info("Worker stopped", zap.String("worker", name))
		}()
	}

	runWorker("outgoing-payment", services.OutgoingWorker.Run)
	runWorker("incoming-payment-expiry", services.ExpiryWorker.Run)
	runWorker("wallet-address", services.WalletAddressWorker.Run)
	runWorker("webhook-dispatcher", services.WebhookDispatcher.Run)
	runWorker("health-server", services.Health.Run)

	wg.Add(1)
	httpServer := &http.Server{Addr: ":7770", Handler: services.Server}
	go func() {
		defer wg.Done()
		zap.L().Info("Starting packet listener", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zap.L().Error("Packet listener stopped", zap.Error(err))
		}
	}()

	zap.L().Info("Engine running", zap.String("ilp_address", cfg.ILPAddress))
	zap.L().Info("Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	zap.L().Info("Shutdown signal received, stopping engine...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	_ = httpServer.Shutdown(shutdownCtx)

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		zap.L().Info("Engine stopped gracefully")
	case <-shutdownCtx.Done():
		zap.L().Warn("Forced shutdown after timeout")
	}
}
