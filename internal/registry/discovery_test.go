package registry

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
)

type mockStakes struct {
	stakes map[int64]*big.Int
	err    error
}

func (m *mockStakes) EffectiveStake(ctx context.Context, agentID int64) (*big.Int, error) {
	if m.err != nil {
		return nil, m.err
	}
	if s, ok := m.stakes[agentID]; ok {
		return s, nil
	}
	return big.NewInt(0), nil
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return logger
}

func infoServer(t *testing.T, desc ProviderDescriptor) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/info", r.URL.Path)
		_ = json.NewEncoder(w).Encode(desc)
	}))
}

func TestDiscoverExcludesBadEndpoints(t *testing.T) {
	healthy := infoServer(t, ProviderDescriptor{AgentID: 1, Name: "CodeAuditor", ServiceRoute: "/api/audit"})
	defer healthy.Close()

	malformed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "not json at all")
	}))
	defer malformed.Close()

	erroring := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer erroring.Close()

	d := NewDiscovery(nil, 500*time.Millisecond, testLogger())
	providers := d.Discover(context.Background(), []string{
		healthy.URL,
		malformed.URL,
		erroring.URL,
		"http://127.0.0.1:1", // unreachable
	})

	require.Len(t, providers, 1)
	assert.Equal(t, "CodeAuditor", providers[0].Name)
	assert.Equal(t, healthy.URL, providers[0].Endpoint)
}

func TestDiscoverTimeoutBoundsSlowProviders(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
	}))
	defer slow.Close()

	fast := infoServer(t, ProviderDescriptor{AgentID: 2, Name: "TranslateBot"})
	defer fast.Close()

	d := NewDiscovery(nil, 200*time.Millisecond, testLogger())

	start := time.Now()
	providers := d.Discover(context.Background(), []string{slow.URL, fast.URL})
	elapsed := time.Since(start)

	require.Len(t, providers, 1)
	assert.Equal(t, "TranslateBot", providers[0].Name)
	assert.Less(t, elapsed, time.Second, "a slow provider must not stall the pass")
}

func TestDiscoverRanksByScoreThenAgentID(t *testing.T) {
	rich := infoServer(t, ProviderDescriptor{AgentID: 3, Name: "DataAnalyst"})
	defer rich.Close()
	poorA := infoServer(t, ProviderDescriptor{AgentID: 1, Name: "CodeAuditor"})
	defer poorA.Close()
	poorB := infoServer(t, ProviderDescriptor{AgentID: 2, Name: "TranslateBot"})
	defer poorB.Close()

	stakes := &mockStakes{stakes: map[int64]*big.Int{
		3: new(big.Int).Mul(big.NewInt(100), big.NewInt(1e16)),
	}}

	d := NewDiscovery(stakes, 500*time.Millisecond, testLogger())
	providers := d.Discover(context.Background(), []string{rich.URL, poorA.URL, poorB.URL})

	require.Len(t, providers, 3)
	assert.Equal(t, int64(3), providers[0].AgentID, "highest stake ranks first")
	// Equal scores fall back to ascending agent id.
	assert.Equal(t, int64(1), providers[1].AgentID)
	assert.Equal(t, int64(2), providers[2].AgentID)
}

// A failing stake reader degrades to zero stake instead of excluding the
// provider.
func TestDiscoverStakeReadFailureScoresZeroStake(t *testing.T) {
	server := infoServer(t, ProviderDescriptor{AgentID: 1, Name: "CodeAuditor"})
	defer server.Close()

	d := NewDiscovery(&mockStakes{err: fmt.Errorf("rpc down")}, 500*time.Millisecond, testLogger())
	providers := d.Discover(context.Background(), []string{server.URL})

	require.Len(t, providers, 1)
	assert.Equal(t, int64(0), providers[0].EffectiveStake.Int64())
	assert.Equal(t, 0.0, providers[0].Breakdown.StakeScore)
}

func TestDiscoverColdStartDefaults(t *testing.T) {
	server := infoServer(t, ProviderDescriptor{AgentID: 1, Name: "CodeAuditor"})
	defer server.Close()

	d := NewDiscovery(nil, 500*time.Millisecond, testLogger())
	providers := d.Discover(context.Background(), []string{server.URL})

	require.Len(t, providers, 1)
	// Reputation 50 * 0.30 plus the clean-history stability bonus.
	assert.Equal(t, 15.0, providers[0].Breakdown.ReputationScore)
	assert.InDelta(t, 10.17, providers[0].Breakdown.StabilityScore, 0.001)
}

func TestFindByRoute(t *testing.T) {
	auditor := infoServer(t, ProviderDescriptor{AgentID: 1, Name: "CodeAuditor", ServiceRoute: "/api/audit"})
	defer auditor.Close()
	translator := infoServer(t, ProviderDescriptor{AgentID: 2, Name: "TranslateBot", ServiceRoute: "/api/translate"})
	defer translator.Close()

	d := NewDiscovery(nil, 500*time.Millisecond, testLogger())
	endpoints := []string{auditor.URL, translator.URL}

	found, err := d.FindByRoute(context.Background(), endpoints, "/api/translate")
	require.NoError(t, err)
	assert.Equal(t, "TranslateBot", found.Name)

	_, err = d.FindByRoute(context.Background(), endpoints, "/api/orchestrate")
	assert.Error(t, err)
}
