package main

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitagent/bitagent-go/internal/config"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.FatalLevel)
	return l
}

func TestStakeReaderRequiresChainConfig(t *testing.T) {
	logger := testLogger()

	cfg := config.DefaultConfig()
	cfg.Chain.RPC = ""
	assert.Nil(t, stakeReader(cfg, logger))

	cfg = config.DefaultConfig()
	cfg.Chain.Vault = ""
	assert.Nil(t, stakeReader(cfg, logger))
}

func TestStakeReaderBindsConfiguredVault(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Chain.RPC = "http://127.0.0.1:1"
	cfg.Chain.Vault = "0x0000000000000000000000000000000000000001"

	// The RPC transport dials lazily; binding succeeds without a node.
	reader := stakeReader(cfg, testLogger())
	require.NotNil(t, reader)
}

func TestApplyPresetOverridesAgentSection(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Agent.PrivateKey = "0xdeadbeef"
	cfg.Chain.RPC = "https://rpc.example"

	applyPreset(cfg, presets["audit"])

	assert.Equal(t, "CodeAuditor", cfg.Agent.Name)
	assert.Equal(t, int64(1), cfg.Agent.AgentID)
	assert.Equal(t, 3001, cfg.Agent.Port)
	assert.Equal(t, "/api/audit", cfg.Agent.ServiceRoute)
	assert.Equal(t, "10000", cfg.Agent.PriceMinorUnits)

	// Key and chain settings stay config driven.
	assert.Equal(t, "0xdeadbeef", cfg.Agent.PrivateKey)
	assert.Equal(t, "https://rpc.example", cfg.Chain.RPC)
}
