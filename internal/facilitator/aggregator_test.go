package facilitator

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitagent/bitagent-go/internal/registry"
	"github.com/bitagent/bitagent-go/internal/trust"
)

type mockLedger struct {
	stakes      map[int64]*big.Int
	slashes     map[int64]int64
	repCounts   map[int64]int64
	repScores   map[int64]float64
	agentCount  int64
	failReads   bool
	failCount   bool
}

func (m *mockLedger) EffectiveStake(ctx context.Context, agentID int64) (*big.Int, error) {
	if m.failReads {
		return nil, fmt.Errorf("rpc down")
	}
	if s, ok := m.stakes[agentID]; ok {
		return s, nil
	}
	return big.NewInt(0), nil
}

func (m *mockLedger) SlashCount(ctx context.Context, agentID int64) (int64, error) {
	if m.failReads {
		return 0, fmt.Errorf("rpc down")
	}
	return m.slashes[agentID], nil
}

func (m *mockLedger) ReputationSummary(ctx context.Context, agentID int64) (int64, float64, error) {
	if m.failReads {
		return 0, 0, fmt.Errorf("rpc down")
	}
	return m.repCounts[agentID], m.repScores[agentID], nil
}

func (m *mockLedger) AgentCount(ctx context.Context) (int64, error) {
	if m.failCount {
		return 0, fmt.Errorf("rpc down")
	}
	return m.agentCount, nil
}

type mockBlocks struct {
	height uint64
	err    error
}

func (m *mockBlocks) BlockNumber(ctx context.Context) (uint64, error) {
	return m.height, m.err
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return logger
}

// providerServer serves /info and /health the way a provider process does.
func providerServer(t *testing.T, desc registry.ProviderDescriptor, requestCount, earnings int64) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/info", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(desc)
	})
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status": "ok",
			"agent": map[string]interface{}{
				"requestCount": requestCount,
				"earnings":     earnings,
			},
		})
	})
	return httptest.NewServer(mux)
}

func TestSnapshotEnrichesProviders(t *testing.T) {
	auditor := providerServer(t, registry.ProviderDescriptor{
		AgentID: 1, Name: "CodeAuditor", ServiceRoute: "/api/audit", PriceMinorUnits: "10000",
	}, 7, 70000)
	defer auditor.Close()

	ledger := &mockLedger{
		stakes:    map[int64]*big.Int{1: new(big.Int).Mul(big.NewInt(100), big.NewInt(1e16))},
		slashes:   map[int64]int64{1: 1},
		repCounts: map[int64]int64{1: 10},
		repScores: map[int64]float64{1: 90},
	}

	agg := NewAggregator([]string{auditor.URL}, ledger, &mockBlocks{height: 1234}, 48816, 500*time.Millisecond, testLogger())
	views := agg.Snapshot(context.Background())

	require.Len(t, views, 1)
	view := views[0]
	assert.Equal(t, int64(1), view.AgentID)
	assert.True(t, view.Online)
	assert.Equal(t, int64(7), view.RequestCount)
	assert.Equal(t, int64(70000), view.EarningsMinor)
	assert.Equal(t, "1000000000000000000", view.StakeMinor)
	assert.Equal(t, int64(1), view.SlashCount)
	// stake 40 + rep 27 + feedback 3 + stability 7.17
	assert.Equal(t, 77.17, view.TrustScore)
	assert.Equal(t, trust.TierGold, view.Tier)
}

func TestSnapshotDegradesFailedEnrichment(t *testing.T) {
	// /info works, /health and all chain reads fail.
	mux := http.NewServeMux()
	mux.HandleFunc("/info", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(registry.ProviderDescriptor{AgentID: 2, Name: "TranslateBot"})
	})
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	agg := NewAggregator([]string{server.URL}, &mockLedger{failReads: true}, nil, 48816, 500*time.Millisecond, testLogger())
	views := agg.Snapshot(context.Background())

	require.Len(t, views, 1)
	view := views[0]
	assert.True(t, view.Online, "a reachable /info keeps the provider online")
	assert.Equal(t, int64(0), view.RequestCount)
	assert.Equal(t, "0", view.StakeMinor)
	assert.Equal(t, int64(0), view.SlashCount)
	// Cold-start defaults: reputation 50, clean slash history.
	assert.Equal(t, 15.0, view.Breakdown.ReputationScore)
}

func TestSnapshotSkipsUnreachableProviders(t *testing.T) {
	healthy := providerServer(t, registry.ProviderDescriptor{AgentID: 1, Name: "CodeAuditor"}, 0, 0)
	defer healthy.Close()

	agg := NewAggregator([]string{healthy.URL, "http://127.0.0.1:1"}, nil, nil, 48816, 300*time.Millisecond, testLogger())
	views := agg.Snapshot(context.Background())

	require.Len(t, views, 1)
	assert.Equal(t, "CodeAuditor", views[0].Name)
}

func TestStatsComposition(t *testing.T) {
	a := providerServer(t, registry.ProviderDescriptor{AgentID: 1, Name: "CodeAuditor"}, 5, 50000)
	defer a.Close()
	b := providerServer(t, registry.ProviderDescriptor{AgentID: 2, Name: "TranslateBot"}, 3, 15000)
	defer b.Close()

	ledger := &mockLedger{
		stakes: map[int64]*big.Int{
			1: big.NewInt(500),
			2: big.NewInt(300),
		},
		agentCount: 4,
	}

	agg := NewAggregator([]string{a.URL, b.URL}, ledger, &mockBlocks{height: 99}, 48816, 500*time.Millisecond, testLogger())
	stats := agg.Stats(context.Background())

	assert.Equal(t, int64(4), stats.TotalAgents, "identity count wins over snapshot size")
	assert.Equal(t, "800", stats.TotalStakedMinor)
	assert.Equal(t, int64(8), stats.TotalTransactions)
	assert.Equal(t, statusLive, stats.NetworkStatus)
	assert.Equal(t, uint64(99), stats.BlockHeight)
	assert.Equal(t, int64(48816), stats.ChainID)
}

func TestStatsDegradedWhenChainUnreachable(t *testing.T) {
	a := providerServer(t, registry.ProviderDescriptor{AgentID: 1, Name: "CodeAuditor"}, 0, 0)
	defer a.Close()

	agg := NewAggregator([]string{a.URL}, nil, &mockBlocks{err: fmt.Errorf("rpc down")}, 48816, 500*time.Millisecond, testLogger())
	stats := agg.Stats(context.Background())

	assert.Equal(t, statusDegraded, stats.NetworkStatus)
	assert.Equal(t, uint64(0), stats.BlockHeight)
}

func TestStatsOfflineWithoutProviders(t *testing.T) {
	agg := NewAggregator([]string{"http://127.0.0.1:1"}, nil, &mockBlocks{height: 5}, 48816, 200*time.Millisecond, testLogger())
	stats := agg.Stats(context.Background())

	assert.Equal(t, statusOffline, stats.NetworkStatus)
	assert.Equal(t, int64(0), stats.TotalAgents)
}
