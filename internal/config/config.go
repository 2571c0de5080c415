package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/bitagent/bitagent-go/pkg/utils"
)

// LoadConfig loads configuration from a YAML file.
// If the file doesn't exist, it returns the default configuration.
func LoadConfig(path string, logger *logrus.Logger) (*AppConfig, error) {
	config := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		logger.Warnf("Configuration file %s not found, using defaults", path)
		applyEnvironmentOverrides(config)
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	configString := utils.ExpandEnvVars(string(data))

	if err := yaml.Unmarshal([]byte(configString), config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	applyEnvironmentOverrides(config)

	return config, nil
}

// validateConfig checks if the configuration is valid
func validateConfig(config *AppConfig) error {
	if config.Agent.Name == "" {
		return fmt.Errorf("agent name cannot be empty")
	}
	if config.Agent.Port <= 0 {
		return fmt.Errorf("agent port must be positive")
	}
	if config.Agent.ServiceRoute == "" {
		return fmt.Errorf("agent service route cannot be empty")
	}
	if config.Agent.PriceMinorUnits != "" {
		if _, err := strconv.ParseInt(config.Agent.PriceMinorUnits, 10, 64); err != nil {
			return fmt.Errorf("price_minor_units must be an integer string: %w", err)
		}
	}

	if config.LLM.Enabled {
		if config.LLM.Provider == "" {
			return fmt.Errorf("LLM provider cannot be empty when LLM is enabled")
		}
	}

	return nil
}

// applyEnvironmentOverrides applies environment variable overrides to the configuration
func applyEnvironmentOverrides(config *AppConfig) {
	if name := os.Getenv("AGENT_NAME"); name != "" {
		config.Agent.Name = name
	}
	if desc := os.Getenv("AGENT_DESCRIPTION"); desc != "" {
		config.Agent.Description = desc
	}
	if key := os.Getenv("AGENT_PRIVATE_KEY"); key != "" {
		config.Agent.PrivateKey = key
	}
	if portStr := os.Getenv("AGENT_PORT"); portStr != "" {
		if v, err := strconv.Atoi(portStr); err != nil {
			logrus.Warnf("Invalid AGENT_PORT: %s", portStr)
		} else {
			config.Agent.Port = v
		}
	}

	if rpc := os.Getenv("CHAIN_RPC_URL"); rpc != "" {
		config.Chain.RPC = rpc
	}
	if vault := os.Getenv("STAKING_VAULT_ADDRESS"); vault != "" {
		config.Chain.Vault = vault
	}
	if identity := os.Getenv("IDENTITY_REGISTRY_ADDRESS"); identity != "" {
		config.Chain.Identity = identity
	}
	if rep := os.Getenv("REPUTATION_REGISTRY_ADDRESS"); rep != "" {
		config.Chain.Reputation = rep
	}
	if asset := os.Getenv("PAYMENT_ASSET_ADDRESS"); asset != "" {
		config.Chain.Asset = asset
	}

	if url := os.Getenv("FACILITATOR_URL"); url != "" {
		config.Facilitator.URL = url
	}
	if portStr := os.Getenv("FACILITATOR_PORT"); portStr != "" {
		if v, err := strconv.Atoi(portStr); err != nil {
			logrus.Warnf("Invalid FACILITATOR_PORT: %s", portStr)
		} else {
			config.Facilitator.Port = v
		}
	}

	config.LLM.Enabled = utils.BoolFromEnv("LLM_ENABLED", config.LLM.Enabled)
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		config.LLM.APIKey = apiKey
	}
	if base := os.Getenv("LLM_BASE_URL"); base != "" {
		config.LLM.BaseURL = base
	}
	if model := os.Getenv("LLM_MODEL"); model != "" {
		config.LLM.Model = model
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
}
