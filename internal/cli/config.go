package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/evcraddock/propchain/internal/identity"
	"github.com/evcraddock/propchain/internal/ledger"
)

// CLIConfig holds CLI configuration persisted to disk.
type CLIConfig struct {
	ServerURL       string `yaml:"server_url,omitempty"`
	Token           string `yaml:"token,omitempty"`
	UserID          string `yaml:"user_id,omitempty"`
	Wallet          string `yaml:"wallet,omitempty"`
	RPCURL          string `yaml:"rpc_url,omitempty"`
	ContractAddress string `yaml:"contract_address,omitempty"`
}

// configPath returns the path to the CLI config file.
func configPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("finding home directory: %w", err)
	}
	return filepath.Join(home, ".config", "propchain", "config.yaml"), nil
}

// loadConfig reads the CLI config from disk.
// Returns a zero-value config if the file doesn't exist.
func loadConfig() (CLIConfig, error) {
	path, err := configPath()
	if err != nil {
		return CLIConfig{}, err
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return CLIConfig{}, nil
	}
	if err != nil {
		return CLIConfig{}, fmt.Errorf("reading config: %w", err)
	}

	var cfg CLIConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return CLIConfig{}, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// saveConfig writes the CLI config to disk.
func saveConfig(cfg CLIConfig) error {
	path, err := configPath()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// fromEnvOrConfig returns the env var if set, else the config field.
func fromEnvOrConfig(env string, field func(CLIConfig) string) string {
	if v := os.Getenv(env); v != "" {
		return v
	}
	cfg, err := loadConfig()
	if err == nil {
		return field(cfg)
	}
	return ""
}

// getServerURL returns the server URL from env var, config, or default.
func getServerURL() string {
	if v := fromEnvOrConfig("PROPCHAIN_SERVER_URL", func(c CLIConfig) string { return c.ServerURL }); v != "" {
		return v
	}
	return "http://localhost:8080"
}

// getToken returns the identity token from env var or config.
func getToken() string {
	return fromEnvOrConfig("PROPCHAIN_TOKEN", func(c CLIConfig) string { return c.Token })
}

// getCaller returns the configured user id and wallet.
func getCaller() identity.Caller {
	return identity.Caller{
		ID:     fromEnvOrConfig("PROPCHAIN_USER_ID", func(c CLIConfig) string { return c.UserID }),
		Wallet: fromEnvOrConfig("PROPCHAIN_WALLET", func(c CLIConfig) string { return c.Wallet }),
	}
}

// getLedgerConfig returns the chain settings. The signing key is only read
// from the environment.
func getLedgerConfig() ledger.Config {
	return ledger.Config{
		RPCURL:          fromEnvOrConfig("PROPCHAIN_ETH_RPC_URL", func(c CLIConfig) string { return c.RPCURL }),
		ContractAddress: fromEnvOrConfig("PROPCHAIN_CONTRACT_ADDRESS", func(c CLIConfig) string { return c.ContractAddress }),
		PrivateKey:      os.Getenv("PROPCHAIN_ETH_PRIVATE_KEY"),
	}
}
