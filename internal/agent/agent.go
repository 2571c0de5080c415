package agent

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/bitagent/bitagent-go/internal/chain"
	"github.com/bitagent/bitagent-go/internal/config"
	"github.com/bitagent/bitagent-go/internal/payment"
)

// Agent is a provider process: one priced HTTP service behind a payment
// gate, plus the unprotected liveness and metadata routes discovery needs.
type Agent struct {
	config     *config.AppConfig
	wallet     *chain.Wallet
	gate       *payment.Gate
	handler    gin.HandlerFunc
	router     *gin.Engine
	httpServer *http.Server
	logger     *logrus.Logger

	vault    *chain.Vault
	identity *chain.Identity

	started bool
	mu      sync.Mutex
}

// NewAgent creates a provider agent. The verifier is the settlement
// collaborator the payment gate consults; the handler is the priced service
// logic executed after a verified payment.
func NewAgent(cfg *config.AppConfig, handler gin.HandlerFunc, verifier payment.Verifier, logger *logrus.Logger) (*Agent, error) {
	wallet, err := chain.NewWallet(cfg.Agent.PrivateKey, cfg.Chain.ChainID)
	if err != nil {
		return nil, fmt.Errorf("failed to load agent wallet: %w", err)
	}

	gate := payment.NewGate(payment.GateConfig{
		Network:     cfg.Chain.Network,
		Amount:      cfg.Agent.PriceMinorUnits,
		Asset:       cfg.Chain.Asset,
		PayTo:       wallet.Address(),
		ResourceURL: fmt.Sprintf("http://localhost:%d%s", cfg.Agent.Port, cfg.Agent.ServiceRoute),
		Description: cfg.Agent.Description,
	}, verifier, nil, logger)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	a := &Agent{
		config:  cfg,
		wallet:  wallet,
		gate:    gate,
		handler: handler,
		router:  router,
		logger:  logger,
	}
	a.registerRoutes()
	return a, nil
}

// Address returns the agent's wallet address.
func (a *Agent) Address() string {
	return a.wallet.Address()
}

// Gate exposes the payment gate, mainly for tests and stats.
func (a *Agent) Gate() *payment.Gate {
	return a.gate
}

// Boot stakes the configured trust bond and registers the agent identity,
// both best-effort and at most once, then starts the HTTP server.
func (a *Agent) Boot(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.started {
		a.logger.Warn("Agent already started")
		return nil
	}

	a.logger.Infof("[%s] Booting, wallet %s", a.config.Agent.Name, a.wallet.Address())

	if a.config.Chain.Vault != "" {
		if err := a.setupChain(ctx); err != nil {
			a.logger.Warnf("[%s] Chain setup skipped: %v", a.config.Agent.Name, err)
		}
	} else {
		a.logger.Infof("[%s] StakingVault not configured, skipping staking", a.config.Agent.Name)
	}

	a.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", a.config.Agent.Port),
		Handler: a.router,
	}
	go func() {
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Errorf("HTTP server error: %v", err)
		}
	}()

	a.started = true
	a.logger.Infof("[%s] Listening on port %d, service %s, price %s",
		a.config.Agent.Name, a.config.Agent.Port, a.config.Agent.ServiceRoute, a.config.Agent.PriceMinorUnits)
	return nil
}

// Shutdown stops the HTTP server gracefully.
func (a *Agent) Shutdown() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.started || a.httpServer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("HTTP server shutdown error: %w", err)
	}
	a.started = false
	a.logger.Infof("[%s] Shutdown complete", a.config.Agent.Name)
	return nil
}

// setupChain connects to the ledger, stakes the configured bond if the
// agent has none yet, and registers the identity when a registry is set.
func (a *Agent) setupChain(ctx context.Context) error {
	client, err := chain.Connect(a.config.Chain.RPC)
	if err != nil {
		return err
	}

	vault, err := chain.NewVault(common.HexToAddress(a.config.Chain.Vault), client)
	if err != nil {
		return fmt.Errorf("failed to bind vault: %w", err)
	}
	a.vault = vault

	agentID := big.NewInt(a.config.Agent.AgentID)
	info, err := vault.GetStakeInfo(ctx, nil, agentID)
	if err == nil && info.Active {
		a.logger.Infof("[%s] Already staked: %s wei", a.config.Agent.Name, info.Amount)
	} else {
		stakeWei, ok := parseStakeWei(a.config.Agent.StakeAmount)
		if !ok {
			return fmt.Errorf("invalid stake amount %q", a.config.Agent.StakeAmount)
		}
		auth, err := a.wallet.TransactOpts(ctx)
		if err != nil {
			return err
		}
		auth.Value = stakeWei
		if err := vault.Stake(auth, agentID); err != nil {
			return fmt.Errorf("staking failed: %w", err)
		}
		a.logger.Infof("[%s] Staked %s", a.config.Agent.Name, a.config.Agent.StakeAmount)
	}

	if a.config.Chain.Identity != "" {
		identity, err := chain.NewIdentity(common.HexToAddress(a.config.Chain.Identity), client)
		if err != nil {
			return fmt.Errorf("failed to bind identity registry: %w", err)
		}
		a.identity = identity

		if _, err := identity.GetAgent(ctx, nil, agentID); err != nil {
			auth, err := a.wallet.TransactOpts(ctx)
			if err != nil {
				return err
			}
			uri := fmt.Sprintf("http://localhost:%d/info", a.config.Agent.Port)
			if err := identity.Register(auth, uri); err != nil {
				a.logger.Warnf("[%s] Identity registration failed: %v", a.config.Agent.Name, err)
			} else {
				a.logger.Infof("[%s] Registered identity %s", a.config.Agent.Name, uri)
			}
		}
	}
	return nil
}

// parseStakeWei converts a whole-unit decimal amount ("0.005") into wei.
func parseStakeWei(amount string) (*big.Int, bool) {
	r, ok := new(big.Rat).SetString(amount)
	if !ok || r.Sign() < 0 {
		return nil, false
	}
	wei := new(big.Rat).Mul(r, new(big.Rat).SetInt64(1e18))
	return new(big.Int).Quo(wei.Num(), wei.Denom()), true
}
