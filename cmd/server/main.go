// Package main is the entry point for the Hyper Earning Engine backend, a REST service that
// reads yield positions from the HyperEngine contract and submits deposits, withdrawals and
// AI-driven rebalances on behalf of its operator account.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/jluxury929-hash/hyper/internal/api"
	"github.com/jluxury929-hash/hyper/internal/circuitbreaker"
	"github.com/jluxury929-hash/hyper/internal/config"
	"github.com/jluxury929-hash/hyper/internal/ledger"
	"github.com/jluxury929-hash/hyper/internal/notify"
	"github.com/jluxury929-hash/hyper/internal/orchestrator"
	"github.com/jluxury929-hash/hyper/internal/otel"
	"github.com/jluxury929-hash/hyper/internal/position"
	"github.com/jluxury929-hash/hyper/internal/prediction"
	"github.com/jluxury929-hash/hyper/internal/security"
)

func main() {
	setupLogging()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logrus.Fatal(err)
	}

	shutdownTracer := otel.InitTracer(cfg.OtelEndpoint)
	defer shutdownTracer()

	signer, err := security.NewSigner(cfg.PrivateKey)
	if err != nil {
		logrus.Fatalf("Failed to load signing key: %v", err)
	}

	breaker := circuitbreaker.New(circuitbreaker.Options{
		FailureThreshold: cfg.BreakerFailureThreshold,
		ResetDelay:       cfg.BreakerResetDelay,
		Answered:         ledger.IsAnswered,
		OnTrip: func(reason string) {
			logrus.WithField("reason", reason).Warn("Ledger calls suspended")
		},
	})

	dialCtx, cancelDial := context.WithTimeout(context.Background(), cfg.RequestTimeout)
	client, err := ledger.Dial(dialCtx, ledger.Options{
		RPCURL:       cfg.RPCURL,
		HyperEngine:  common.HexToAddress(cfg.HyperEngineAddress),
		AIOptimizer:  common.HexToAddress(cfg.AIOptimizerAddress),
		ChainID:      cfg.ChainID,
		Signer:       signer,
		RetryMax:     cfg.RPCRetryMax,
		PollInterval: cfg.ConfirmPollInterval,
		Breaker:      breaker,
	})
	cancelDial()
	if err != nil {
		logrus.Fatalf("Failed to connect to ledger: %v", err)
	}
	defer client.Close()

	reader := position.NewReader(client, cfg)
	predictor := prediction.NewClient(client, client, cfg)

	exporter := notify.NewExporter(notify.Config{
		WebhookURL:    cfg.WebhookURL,
		WebhookAPIKey: cfg.WebhookAPIKey,
		BatchSize:     cfg.WebhookBatchSize,
		Interval:      cfg.WebhookInterval,
		RetryMax:      cfg.RPCRetryMax,
	})

	orch := orchestrator.New(client, reader, predictor, cfg).WithEvents(exporter)

	server := api.NewServer(cfg, api.Deps{
		Reader:       reader,
		Orchestrator: orch,
		Prediction:   predictor,
		Breaker:      breaker,
		Exporter:     exporter,
	})

	logrus.WithFields(logrus.Fields{
		"port":            cfg.Port,
		"operator":        signer.Address().Hex(),
		"hyper_engine":    cfg.HyperEngineAddress,
		"ai_optimizer":    cfg.AIOptimizerAddress,
		"strategy_count":  cfg.StrategyCount,
		"confirm_timeout": cfg.ConfirmTimeout,
		"webhook":         exporter.Enabled(),
	}).Info("Server initialized")

	go func() {
		if err := server.Start(); err != nil {
			logrus.Fatal(err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logrus.Errorf("Server shutdown failed: %v", err)
	}
	exporter.Stop()

	logrus.Info("Server stopped")
}
