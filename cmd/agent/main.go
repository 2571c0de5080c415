package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/bitagent/bitagent-go/internal/agent"
	"github.com/bitagent/bitagent-go/internal/chain"
	"github.com/bitagent/bitagent-go/internal/config"
	"github.com/bitagent/bitagent-go/internal/llm"
	"github.com/bitagent/bitagent-go/internal/orchestrator"
	"github.com/bitagent/bitagent-go/internal/payment"
	"github.com/bitagent/bitagent-go/internal/registry"
	"github.com/bitagent/bitagent-go/internal/services"
	"github.com/bitagent/bitagent-go/pkg/utils"
)

// preset is a built-in service profile selectable with -service.
type preset struct {
	name        string
	description string
	agentID     int64
	port        int
	route       string
	price       string // minor units, 6 decimals
	stake       string // whole units
}

var presets = map[string]preset{
	"audit": {
		name:        "CodeAuditor",
		description: "AI-powered smart contract security audit",
		agentID:     1,
		port:        3001,
		route:       "/api/audit",
		price:       "10000",
		stake:       "0.005",
	},
	"translate": {
		name:        "TranslateBot",
		description: "High-quality Chinese-English translation for blockchain/AI content",
		agentID:     2,
		port:        3002,
		route:       "/api/translate",
		price:       "5000",
		stake:       "0.003",
	},
	"analyze": {
		name:        "DataAnalyst",
		description: "AI-powered data analysis for blockchain and DeFi datasets",
		agentID:     3,
		port:        3003,
		route:       "/api/analyze",
		price:       "20000",
		stake:       "0.008",
	},
	"orchestrate": {
		name:        "Orchestrator",
		description: "Meta-agent that routes tasks to audit/translate/analyze services",
		agentID:     4,
		port:        3004,
		route:       "/api/orchestrate",
		price:       "30000",
		stake:       "0.00001",
	},
}

func main() {
	configPath := flag.String("config", "config/config.yaml", "Path to configuration file")
	service := flag.String("service", "analyze", "Service profile (audit, translate, analyze, orchestrate)")
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

	profile, ok := presets[*service]
	if !ok {
		logger.Fatalf("Unknown service %q (expected audit, translate, analyze or orchestrate)", *service)
	}

	logger.Infof("Loading configuration from %s", *configPath)
	appConfig, err := config.LoadConfig(*configPath, logger)
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}
	applyPreset(appConfig, profile)

	completer := llm.NewClient(&appConfig.LLM, logger)
	verifier := payment.NewFacilitatorClient(appConfig.Facilitator.URL, logger)

	handler, err := buildHandler(*service, appConfig, completer, logger)
	if err != nil {
		logger.Fatalf("Failed to build %s handler: %v", *service, err)
	}

	agentInstance, err := agent.NewAgent(appConfig, handler, verifier, logger)
	if err != nil {
		logger.Fatalf("Failed to create agent: %v", err)
	}

	bootCtx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	if err := agentInstance.Boot(bootCtx); err != nil {
		cancel()
		logger.Fatalf("Failed to boot agent: %v", err)
	}
	cancel()

	logger.Infof("%s running. Press Ctrl+C to stop.", appConfig.Agent.Name)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("Shutting down agent...")
	if err := agentInstance.Shutdown(); err != nil {
		logger.Errorf("Agent shutdown error: %v", err)
	}
	logger.Info("Agent stopped")
}

// applyPreset overrides the agent section with the selected profile. The
// private key, chain and facilitator settings stay config/env driven.
func applyPreset(cfg *config.AppConfig, p preset) {
	cfg.Agent.Name = p.name
	cfg.Agent.Description = p.description
	cfg.Agent.AgentID = p.agentID
	cfg.Agent.Port = p.port
	cfg.Agent.ServiceRoute = p.route
	cfg.Agent.PriceMinorUnits = p.price
	cfg.Agent.StakeAmount = p.stake
}

// stakeReader binds the staking vault so discovery ranks providers by real
// stake. Returns nil when the chain or vault is unconfigured; every
// provider then scores with zero stake.
func stakeReader(cfg *config.AppConfig, logger *logrus.Logger) registry.StakeReader {
	if cfg.Chain.RPC == "" || cfg.Chain.Vault == "" {
		logger.Warn("StakingVault not configured, discovery will rank with zero stake")
		return nil
	}
	client, err := chain.Connect(cfg.Chain.RPC)
	if err != nil {
		logger.Warnf("Chain connection failed, discovery will rank with zero stake: %v", err)
		return nil
	}
	vault, err := chain.NewVault(common.HexToAddress(cfg.Chain.Vault), client)
	if err != nil {
		logger.Warnf("Vault binding failed, discovery will rank with zero stake: %v", err)
		return nil
	}
	return chain.NewReaders(vault, nil, nil)
}

func buildHandler(service string, cfg *config.AppConfig, completer *llm.Client, logger *logrus.Logger) (gin.HandlerFunc, error) {
	agentID := cfg.Agent.AgentID

	switch service {
	case "audit":
		return services.NewAuditorHandler(agentID, completer, logger), nil
	case "translate":
		return services.NewTranslatorHandler(agentID, completer, logger), nil
	case "analyze":
		return services.NewAnalystHandler(agentID, completer, logger), nil
	case "orchestrate":
		wallet, err := chain.NewWallet(cfg.Agent.PrivateKey, cfg.Chain.ChainID)
		if err != nil {
			return nil, err
		}
		discovery := registry.NewDiscovery(stakeReader(cfg, logger), time.Duration(cfg.Discovery.TimeoutMs)*time.Millisecond, logger)
		caller := payment.NewClient(wallet, logger)
		events := orchestrator.NewFeedPublisher(cfg.Facilitator.URL, wallet.Address(), logger)
		router := orchestrator.NewRouter(completer, discovery, caller, events, cfg.Discovery.Endpoints, logger)
		return orchestrator.NewOrchestratorHandler(agentID, router, logger), nil
	default:
		return nil, fmt.Errorf("unknown service %q", service)
	}
}
