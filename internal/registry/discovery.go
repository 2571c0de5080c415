package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bitagent/bitagent-go/internal/trust"
)

// Defaults applied when no richer trust signal is available. New providers
// start at a mediocre reputation rather than zero so they are not starved
// out of selection before their first feedback.
const (
	DefaultReputation    = 50
	DefaultFeedbackCount = 0
	DefaultSlashCount    = 0
	DefaultUptimeDays    = 1
)

// ProviderDescriptor is the self-reported metadata a provider publishes on
// its /info route.
type ProviderDescriptor struct {
	AgentID         int64  `json:"agentId"`
	Name            string `json:"name"`
	Description     string `json:"description"`
	Wallet          string `json:"wallet"`
	ServiceRoute    string `json:"service"`
	PriceMinorUnits string `json:"price"`
	Network         string `json:"network"`
	StakeAmount     string `json:"stakeAmount"`
	Endpoint        string `json:"endpoint,omitempty"`
}

// ScoredProvider is a descriptor enriched with on-chain stake and the
// computed trust score.
type ScoredProvider struct {
	ProviderDescriptor
	EffectiveStake *big.Int        `json:"effectiveStake"`
	TrustScore     float64         `json:"trustScore"`
	Tier           trust.Tier      `json:"tier"`
	Breakdown      trust.Breakdown `json:"breakdown"`
}

// StakeReader reads a provider's effective stake (stake minus lifetime
// slashed amount) from the ledger.
type StakeReader interface {
	EffectiveStake(ctx context.Context, agentID int64) (*big.Int, error)
}

// Discovery probes known provider endpoints and ranks the reachable ones by
// trust score. Probing is best-effort: unreachable or malformed endpoints
// are excluded, never reported as errors.
type Discovery struct {
	stakes     StakeReader // may be nil when no ledger is configured
	httpClient *http.Client
	timeout    time.Duration
	logger     *logrus.Logger
}

// NewDiscovery creates a discovery instance. stakes may be nil; every
// provider then scores with zero stake.
func NewDiscovery(stakes StakeReader, timeout time.Duration, logger *logrus.Logger) *Discovery {
	if timeout <= 0 {
		timeout = 1500 * time.Millisecond
	}
	return &Discovery{
		stakes:     stakes,
		httpClient: &http.Client{Timeout: timeout},
		timeout:    timeout,
		logger:     logger,
	}
}

// Discover probes every endpoint concurrently and returns the surviving
// providers sorted by trust score descending, ties broken by ascending
// agent id.
func (d *Discovery) Discover(ctx context.Context, endpoints []string) []ScoredProvider {
	var (
		mu        sync.Mutex
		providers []ScoredProvider
		wg        sync.WaitGroup
	)

	for _, endpoint := range endpoints {
		wg.Add(1)
		go func(endpoint string) {
			defer wg.Done()
			provider, err := d.probe(ctx, endpoint)
			if err != nil {
				d.logger.Debugf("Excluding endpoint %s: %v", endpoint, err)
				return
			}
			mu.Lock()
			providers = append(providers, *provider)
			mu.Unlock()
		}(endpoint)
	}
	wg.Wait()

	sort.Slice(providers, func(i, j int) bool {
		if providers[i].TrustScore != providers[j].TrustScore {
			return providers[i].TrustScore > providers[j].TrustScore
		}
		return providers[i].AgentID < providers[j].AgentID
	})
	return providers
}

// FindByRoute returns the best-ranked provider serving the given route.
func (d *Discovery) FindByRoute(ctx context.Context, endpoints []string, route string) (*ScoredProvider, error) {
	for _, p := range d.Discover(ctx, endpoints) {
		if p.ServiceRoute == route {
			provider := p
			return &provider, nil
		}
	}
	return nil, fmt.Errorf("no provider found for route %s", route)
}

func (d *Discovery) probe(ctx context.Context, endpoint string) (*ScoredProvider, error) {
	probeCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, endpoint+"/info", nil)
	if err != nil {
		return nil, err
	}
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("info returned %d", resp.StatusCode)
	}

	var desc ProviderDescriptor
	if err := json.NewDecoder(resp.Body).Decode(&desc); err != nil {
		return nil, fmt.Errorf("malformed info body: %w", err)
	}
	desc.Endpoint = endpoint

	// A failed stake read means "not yet staked", not an error.
	stake := big.NewInt(0)
	if d.stakes != nil {
		if s, err := d.stakes.EffectiveStake(probeCtx, desc.AgentID); err == nil && s != nil {
			stake = s
		} else if err != nil {
			d.logger.Debugf("Stake read failed for agent %d: %v", desc.AgentID, err)
		}
	}

	result := trust.Score(trust.Input{
		StakeMinor:      stake,
		ReputationScore: DefaultReputation,
		FeedbackCount:   DefaultFeedbackCount,
		SlashCount:      DefaultSlashCount,
		UptimeDays:      DefaultUptimeDays,
	})

	return &ScoredProvider{
		ProviderDescriptor: desc,
		EffectiveStake:     stake,
		TrustScore:         result.Total,
		Tier:               result.Tier,
		Breakdown:          result.Breakdown,
	}, nil
}
