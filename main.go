package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	lapiv2 "github.com/chainsafe/canton-middleware/pkg/canton/lapi/v2"

	"github.com/ChainSafe/canton-middleware-sub001/auth"
	"github.com/ChainSafe/canton-middleware-sub001/config"
	"github.com/ChainSafe/canton-middleware-sub001/ledger"
	"github.com/ChainSafe/canton-middleware-sub001/processor"
	"github.com/ChainSafe/canton-middleware-sub001/server"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (optional, env vars apply on top)")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting canton bridge activity service",
		zap.String("rpc_url", cfg.Canton.RPCURL),
		zap.String("party", ledger.TruncateParty(cfg.Canton.RelayerParty)),
		zap.Bool("tls", cfg.Canton.TLS.Enabled),
		zap.Int("port", cfg.Service.Port))

	conn, err := ledger.Dial(cfg.Canton.RPCURL, cfg.Canton.TLS.Enabled)
	if err != nil {
		logger.Fatal("failed to connect to ledger", zap.Error(err))
	}
	defer conn.Close()

	stateClient := lapiv2.NewStateServiceClient(conn)
	updateClient := lapiv2.NewUpdateServiceClient(conn)

	provider := auth.NewTokenProvider(cfg.Canton.Auth, logger)
	proc := processor.NewBridgeProcessor(stateClient, updateClient, cfg.Canton.RelayerParty, logger)

	srv := server.NewServer(cfg, logger, proc, provider)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	var flowctl *server.FlowctlController
	if cfg.Flowctl.Enabled {
		flowctl = server.NewFlowctlController(cfg.Flowctl, logger, proc)
		if err := flowctl.Register(cfg.Service.Port); err != nil {
			logger.Warn("flowctl registration failed, continuing without control plane", zap.Error(err))
			flowctl = nil
		}
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutdown signal received")

	if flowctl != nil {
		flowctl.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("error during shutdown", zap.Error(err))
	}

	logger.Info("canton bridge activity service stopped")
}
