package facilitator

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

	"github.com/bitagent/bitagent-go/internal/registry"
	"github.com/bitagent/bitagent-go/internal/trust"
)

// Ledger is the read surface of the on-chain contracts the aggregator
// enriches provider entries with. Every method is best-effort: a failed
// read degrades to a default, never to a missing entry.
type Ledger interface {
	EffectiveStake(ctx context.Context, agentID int64) (*big.Int, error)
	SlashCount(ctx context.Context, agentID int64) (int64, error)
	ReputationSummary(ctx context.Context, agentID int64) (count int64, score float64, err error)
	AgentCount(ctx context.Context) (int64, error)
}

// BlockReader reports the current chain head, used for network stats.
type BlockReader interface {
	BlockNumber(ctx context.Context) (uint64, error)
}

// AgentView is the dashboard-ready, fully enriched picture of one provider.
type AgentView struct {
	AgentID         int64           `json:"agentId"`
	Name            string          `json:"name"`
	Description     string          `json:"description"`
	ServiceRoute    string          `json:"service"`
	Wallet          string          `json:"wallet"`
	PriceMinorUnits string          `json:"price"`
	StakeMinor      string          `json:"stakeMinor"`
	TrustScore      float64         `json:"trustScore"`
	Tier            trust.Tier      `json:"tier"`
	Breakdown       trust.Breakdown `json:"breakdown"`
	Online          bool            `json:"online"`
	RequestCount    int64           `json:"requestCount"`
	EarningsMinor   int64           `json:"earnings"`
	SlashCount      int64           `json:"slashCount"`
}

// NetworkStats are the network-wide counters shown on the dashboard header.
type NetworkStats struct {
	TotalAgents       int64  `json:"totalAgents"`
	TotalStakedMinor  string `json:"totalStakedMinor"`
	TotalTransactions int64  `json:"totalTransactions"`
	NetworkStatus     string `json:"networkStatus"`
	BlockHeight       uint64 `json:"blockHeight"`
	ChainID           int64  `json:"chainId"`
}

const (
	statusLive     = "live"
	statusDegraded = "degraded"
	statusOffline  = "offline"
)

// Aggregator composes provider metadata, liveness counters, on-chain stake
// and reputation into snapshot and stats views. Fan-out is concurrent with a
// bounded per-provider timeout so one unreachable provider cannot stall the
// whole response.
type Aggregator struct {
	endpoints  []string
	httpClient *http.Client
	timeout    time.Duration
	ledger     Ledger      // may be nil when no chain is configured
	blocks     BlockReader // may be nil
	chainID    int64
	logger     *logrus.Logger
}

// NewAggregator creates an aggregator over the given provider endpoints.
// ledger and blocks may be nil; entries then score with cold-start defaults
// and stats report a degraded network.
func NewAggregator(endpoints []string, ledger Ledger, blocks BlockReader, chainID int64, timeout time.Duration, logger *logrus.Logger) *Aggregator {
	if timeout <= 0 {
		timeout = 1500 * time.Millisecond
	}
	return &Aggregator{
		endpoints:  endpoints,
		httpClient: &http.Client{Timeout: timeout},
		timeout:    timeout,
		ledger:     ledger,
		blocks:     blocks,
		chainID:    chainID,
		logger:     logger,
	}
}

// Snapshot probes every known endpoint concurrently and returns the
// reachable providers, enriched and sorted by trust score descending with
// ascending agent id as the tiebreak.
func (a *Aggregator) Snapshot(ctx context.Context) []AgentView {
	var (
		mu    sync.Mutex
		views []AgentView
		wg    sync.WaitGroup
	)

	for _, endpoint := range a.endpoints {
		wg.Add(1)
		go func(endpoint string) {
			defer wg.Done()
			view, err := a.enrich(ctx, endpoint)
			if err != nil {
				a.logger.Debugf("Skipping endpoint %s: %v", endpoint, err)
				return
			}
			mu.Lock()
			views = append(views, *view)
			mu.Unlock()
		}(endpoint)
	}
	wg.Wait()

	sort.Slice(views, func(i, j int) bool {
		if views[i].TrustScore != views[j].TrustScore {
			return views[i].TrustScore > views[j].TrustScore
		}
		return views[i].AgentID < views[j].AgentID
	})
	return views
}

// Stats composes the network-wide counters from a fresh snapshot plus
// best-effort chain reads. A failed chain read degrades the reported status
// rather than failing the call.
func (a *Aggregator) Stats(ctx context.Context) NetworkStats {
	views := a.Snapshot(ctx)

	totalStaked := big.NewInt(0)
	var totalTx int64
	for _, v := range views {
		if stake, ok := new(big.Int).SetString(v.StakeMinor, 10); ok {
			totalStaked.Add(totalStaked, stake)
		}
		totalTx += v.RequestCount
	}

	totalAgents := int64(len(views))
	if a.ledger != nil {
		readCtx, cancel := context.WithTimeout(ctx, a.timeout)
		if count, err := a.ledger.AgentCount(readCtx); err == nil && count > totalAgents {
			totalAgents = count
		} else if err != nil {
			a.logger.Debugf("Agent count read failed: %v", err)
		}
		cancel()
	}

	status := statusLive
	var blockHeight uint64
	if a.blocks != nil {
		readCtx, cancel := context.WithTimeout(ctx, a.timeout)
		height, err := a.blocks.BlockNumber(readCtx)
		cancel()
		if err != nil {
			a.logger.Warnf("Block height read failed: %v", err)
			status = statusDegraded
		} else {
			blockHeight = height
		}
	} else {
		status = statusDegraded
	}
	if len(views) == 0 {
		status = statusOffline
	}

	return NetworkStats{
		TotalAgents:       totalAgents,
		TotalStakedMinor:  totalStaked.String(),
		TotalTransactions: totalTx,
		NetworkStatus:     status,
		BlockHeight:       blockHeight,
		ChainID:           a.chainID,
	}
}

// healthBody is the subset of the provider /health response the aggregator
// reads counters from.
type healthBody struct {
	Status string `json:"status"`
	Agent  struct {
		Earnings     int64 `json:"earnings"`
		RequestCount int64 `json:"requestCount"`
	} `json:"agent"`
}

// enrich builds one provider's view. An unreachable /info excludes the
// provider entirely; every later step degrades to its default instead
// (zero stake, zero slashes, reputation 50, zero counters). A provider with
// a reachable /info is considered online even when its counter probe fails.
func (a *Aggregator) enrich(ctx context.Context, endpoint string) (*AgentView, error) {
	probeCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	var desc registry.ProviderDescriptor
	if err := a.getJSON(probeCtx, endpoint+"/info", &desc); err != nil {
		return nil, err
	}

	view := &AgentView{
		AgentID:         desc.AgentID,
		Name:            desc.Name,
		Description:     desc.Description,
		ServiceRoute:    desc.ServiceRoute,
		Wallet:          desc.Wallet,
		PriceMinorUnits: desc.PriceMinorUnits,
		Online:          true,
	}

	var health healthBody
	if err := a.getJSON(probeCtx, endpoint+"/health", &health); err != nil {
		a.logger.Debugf("Health probe failed for %s: %v", endpoint, err)
	} else {
		view.RequestCount = health.Agent.RequestCount
		view.EarningsMinor = health.Agent.Earnings
	}

	stake := big.NewInt(0)
	repScore := float64(registry.DefaultReputation)
	var feedbackCount, slashCount int64
	if a.ledger != nil {
		if s, err := a.ledger.EffectiveStake(probeCtx, desc.AgentID); err == nil && s != nil {
			stake = s
		} else if err != nil {
			a.logger.Debugf("Stake read failed for agent %d: %v", desc.AgentID, err)
		}
		if n, err := a.ledger.SlashCount(probeCtx, desc.AgentID); err == nil {
			slashCount = n
		}
		if count, score, err := a.ledger.ReputationSummary(probeCtx, desc.AgentID); err == nil && count > 0 {
			feedbackCount = count
			repScore = score
		}
	}

	result := trust.Score(trust.Input{
		StakeMinor:      stake,
		ReputationScore: repScore,
		FeedbackCount:   int(feedbackCount),
		SlashCount:      int(slashCount),
		UptimeDays:      registry.DefaultUptimeDays,
	})

	view.StakeMinor = stake.String()
	view.SlashCount = slashCount
	view.TrustScore = result.Total
	view.Tier = result.Tier
	view.Breakdown = result.Breakdown
	return view, nil
}

func (a *Aggregator) getJSON(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned %d", url, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
