package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/bitagent/bitagent-go/internal/bus"
	"github.com/bitagent/bitagent-go/internal/chain"
	"github.com/bitagent/bitagent-go/internal/config"
	"github.com/bitagent/bitagent-go/internal/facilitator"
	"github.com/bitagent/bitagent-go/internal/facilitator/store"
	"github.com/bitagent/bitagent-go/pkg/utils"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "Path to configuration file")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error)")
	flag.Parse()

	level := *logLevel
	if level == "" {
		level = utils.GetEnv("LOG_LEVEL", "info")
	}
	logger := utils.ConfigureLogger(utils.LogConfig{
		Level:  level,
		Format: utils.GetEnv("LOG_FORMAT", "text"),
	})

	logger.Infof("Loading configuration from %s", *configPath)
	appConfig, err := config.LoadConfig(*configPath, logger)
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	ledger, blocks := connectChain(appConfig, logger)

	timeout := time.Duration(appConfig.Discovery.TimeoutMs) * time.Millisecond
	aggregator := facilitator.NewAggregator(
		appConfig.Discovery.Endpoints, ledger, blocks, appConfig.Chain.ChainID, timeout, logger)

	eventBus := bus.NewEventBus(logger)
	feed := facilitator.NewFeed()

	var archive *store.Postgres
	if databaseURL := utils.GetEnv("DATABASE_URL", ""); databaseURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		archive, err = store.NewPostgres(ctx, databaseURL)
		cancel()
		if err != nil {
			logger.Warnf("Event archive disabled: %v", err)
		} else {
			logger.Info("Event archive enabled")
		}
	}

	server := facilitator.NewServer(aggregator, feed, eventBus, archive, logger)

	go func() {
		if err := server.Start(appConfig.Facilitator.Port); err != nil {
			logger.Fatalf("Dashboard server error: %v", err)
		}
	}()

	logger.Info("Facilitator running. Press Ctrl+C to stop.")
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("Shutting down facilitator...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("Server shutdown error: %v", err)
	}
	eventBus.Stop()
	if archive != nil {
		archive.Close()
	}
	logger.Info("Facilitator stopped")
}

// connectChain binds the configured contracts. Everything is optional: a
// missing RPC or contract address just drops that enrichment source.
func connectChain(cfg *config.AppConfig, logger *logrus.Logger) (facilitator.Ledger, facilitator.BlockReader) {
	if cfg.Chain.RPC == "" {
		logger.Warn("Chain RPC not configured, stats will be degraded")
		return nil, nil
	}

	client, err := chain.Connect(cfg.Chain.RPC)
	if err != nil {
		logger.Warnf("Chain connection failed: %v", err)
		return nil, nil
	}

	var vault *chain.Vault
	if cfg.Chain.Vault != "" {
		if vault, err = chain.NewVault(common.HexToAddress(cfg.Chain.Vault), client); err != nil {
			logger.Warnf("Vault binding failed: %v", err)
		}
	}
	var identity *chain.Identity
	if cfg.Chain.Identity != "" {
		if identity, err = chain.NewIdentity(common.HexToAddress(cfg.Chain.Identity), client); err != nil {
			logger.Warnf("Identity binding failed: %v", err)
		}
	}
	var reputation *chain.Reputation
	if cfg.Chain.Reputation != "" {
		if reputation, err = chain.NewReputation(common.HexToAddress(cfg.Chain.Reputation), client); err != nil {
			logger.Warnf("Reputation binding failed: %v", err)
		}
	}

	return chain.NewReaders(vault, identity, reputation), client
}
