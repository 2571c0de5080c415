package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return logger
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"), testLogger())
	require.NoError(t, err)

	assert.Equal(t, "DataAnalyst", cfg.Agent.Name)
	assert.Equal(t, 3003, cfg.Agent.Port)
	assert.Equal(t, "eip155:48816", cfg.Chain.Network)
	assert.Equal(t, "http://localhost:4022", cfg.Facilitator.URL)
	assert.Len(t, cfg.Discovery.Endpoints, 3)
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
agent:
  name: CodeAuditor
  port: 3001
  service_route: /api/audit
  price_minor_units: "10000"
chain:
  chain_id: 48816
  network: eip155:48816
`), 0o644))

	cfg, err := LoadConfig(path, testLogger())
	require.NoError(t, err)
	assert.Equal(t, "CodeAuditor", cfg.Agent.Name)
	assert.Equal(t, 3001, cfg.Agent.Port)
	assert.Equal(t, "/api/audit", cfg.Agent.ServiceRoute)
	assert.Equal(t, "10000", cfg.Agent.PriceMinorUnits)
	// Untouched sections keep their defaults.
	assert.Equal(t, "http://localhost:4022", cfg.Facilitator.URL)
}

func TestLoadConfigExpandsEnvVars(t *testing.T) {
	t.Setenv("TEST_AGENT_KEY", "0xabc123")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
agent:
  name: CodeAuditor
  port: 3001
  service_route: /api/audit
  private_key: ${TEST_AGENT_KEY}
`), 0o644))

	cfg, err := LoadConfig(path, testLogger())
	require.NoError(t, err)
	assert.Equal(t, "0xabc123", cfg.Agent.PrivateKey)
}

func TestLoadConfigEnvironmentOverrides(t *testing.T) {
	t.Setenv("AGENT_NAME", "TranslateBot")
	t.Setenv("AGENT_PORT", "3002")
	t.Setenv("CHAIN_RPC_URL", "http://localhost:8545")
	t.Setenv("FACILITATOR_URL", "http://localhost:5000")
	t.Setenv("LLM_ENABLED", "false")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"), testLogger())
	require.NoError(t, err)

	assert.Equal(t, "TranslateBot", cfg.Agent.Name)
	assert.Equal(t, 3002, cfg.Agent.Port)
	assert.Equal(t, "http://localhost:8545", cfg.Chain.RPC)
	assert.Equal(t, "http://localhost:5000", cfg.Facilitator.URL)
	assert.False(t, cfg.LLM.Enabled)
}

func TestLoadConfigValidation(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"empty name", "agent:\n  name: \"\"\n  port: 3001\n  service_route: /api/audit\n"},
		{"bad port", "agent:\n  name: X\n  port: -1\n  service_route: /api/audit\n"},
		{"empty route", "agent:\n  name: X\n  port: 3001\n  service_route: \"\"\n"},
		{"bad price", "agent:\n  name: X\n  port: 3001\n  service_route: /x\n  price_minor_units: \"0.01\"\n"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tc.yaml), 0o644))

			_, err := LoadConfig(path, testLogger())
			assert.Error(t, err)
		})
	}
}
