package config

import "github.com/bitagent/bitagent-go/pkg/utils"

// AppConfig is the root configuration for an agent process.
type AppConfig struct {
	Agent       AgentConfig       `yaml:"agent"`
	Chain       ChainConfig       `yaml:"chain"`
	Facilitator FacilitatorConfig `yaml:"facilitator"`
	LLM         LLMConfig         `yaml:"llm"`
	Discovery   DiscoveryConfig   `yaml:"discovery"`
	Logging     utils.LogConfig   `yaml:"logging"`
}

// AgentConfig describes the provider this process runs.
type AgentConfig struct {
	Name            string `yaml:"name"`
	Description     string `yaml:"description"`
	AgentID         int64  `yaml:"agent_id"`
	Port            int    `yaml:"port"`
	ServiceRoute    string `yaml:"service_route"`
	PriceMinorUnits string `yaml:"price_minor_units"`
	StakeAmount     string `yaml:"stake_amount"` // whole units, e.g. "0.005"
	PrivateKey      string `yaml:"private_key"`
}

// ChainConfig points at the ledger and its contracts.
type ChainConfig struct {
	RPC        string `yaml:"rpc"`
	ChainID    int64  `yaml:"chain_id"`
	Network    string `yaml:"network"` // CAIP-2 id, e.g. "eip155:48816"
	Vault      string `yaml:"vault"`
	Identity   string `yaml:"identity"`
	Reputation string `yaml:"reputation"`
	Asset      string `yaml:"asset"` // payment token address
}

// FacilitatorConfig locates the payment facilitator collaborator.
type FacilitatorConfig struct {
	URL  string `yaml:"url"`
	Port int    `yaml:"port"` // aggregator dashboard listen port
}

// LLMConfig configures the text-completion collaborator.
type LLMConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Provider  string `yaml:"provider"`
	APIKey    string `yaml:"api_key"`
	BaseURL   string `yaml:"base_url"`
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"max_tokens"`
}

// DiscoveryConfig lists known provider endpoints to probe.
type DiscoveryConfig struct {
	Endpoints []string `yaml:"endpoints"`
	TimeoutMs int      `yaml:"timeout_ms"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Agent: AgentConfig{
			Name:            "DataAnalyst",
			Description:     "AI-powered data analysis for blockchain datasets",
			AgentID:         3,
			Port:            3003,
			ServiceRoute:    "/api/analyze",
			PriceMinorUnits: "20000",
			StakeAmount:     "0.008",
		},
		Chain: ChainConfig{
			RPC:     "https://rpc.testnet3.goat.network",
			ChainID: 48816,
			Network: "eip155:48816",
		},
		Facilitator: FacilitatorConfig{
			URL:  "http://localhost:4022",
			Port: 4022,
		},
		LLM: LLMConfig{
			Enabled:   true,
			Provider:  "openai",
			Model:     "gpt-4o",
			MaxTokens: 1024,
		},
		Discovery: DiscoveryConfig{
			Endpoints: []string{
				"http://localhost:3001",
				"http://localhost:3002",
				"http://localhost:3003",
			},
			TimeoutMs: 1500,
		},
		Logging: utils.DefaultLogConfig(),
	}
}
