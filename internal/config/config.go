// Package config loads server configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds server configuration.
type Config struct {
	Port      int
	DevMode   bool
	PublicURL string // browser-facing origin; the passkey relying party
	DBDriver  string // sqlite3 or pgx
	DBDSN     string // file path for sqlite3, connection URL for pgx

	// Identity provider. Empty ClerkSecretKey selects the local SQL store.
	ClerkSecretKey string
	ClerkAPIURL    string
	JWTSecret      string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	S3Endpoint      string
	S3Region        string
	S3Bucket        string
	S3AccessKey     string
	S3SecretKey     string
	S3PublicBaseURL string

	EthRPCURL       string
	ContractAddress string
	EthPrivateKey   string // hex key used by the server to sign finalize/reconcile calls

	RewardRequireGPS bool
	NominatimURL     string

	IndexerInterval   time.Duration
	IndexerStartBlock uint64

	CORSOrigins []string
}

// Load reads a .env file if present, then builds a Config from environment variables.
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds a Config from environment variables only.
func FromEnv() (Config, error) {
	cfg := Config{
		DevMode:         os.Getenv("PROPCHAIN_DEV_MODE") == "true",
		PublicURL:       os.Getenv("PROPCHAIN_PUBLIC_URL"),
		DBDriver:        envOrDefault("PROPCHAIN_DB_DRIVER", "sqlite3"),
		DBDSN:           os.Getenv("PROPCHAIN_DB_DSN"),
		ClerkSecretKey:  os.Getenv("PROPCHAIN_CLERK_SECRET_KEY"),
		ClerkAPIURL:     envOrDefault("PROPCHAIN_CLERK_API_URL", "https://api.clerk.com/v1"),
		JWTSecret:       os.Getenv("PROPCHAIN_IDENTITY_JWT_SECRET"),
		RedisAddr:       os.Getenv("PROPCHAIN_REDIS_ADDR"),
		RedisPassword:   os.Getenv("PROPCHAIN_REDIS_PASSWORD"),
		S3Endpoint:      os.Getenv("PROPCHAIN_S3_ENDPOINT"),
		S3Region:        envOrDefault("PROPCHAIN_S3_REGION", "us-east-1"),
		S3Bucket:        envOrDefault("PROPCHAIN_S3_BUCKET", "property-images"),
		S3AccessKey:     os.Getenv("PROPCHAIN_S3_ACCESS_KEY"),
		S3SecretKey:     os.Getenv("PROPCHAIN_S3_SECRET_KEY"),
		S3PublicBaseURL: os.Getenv("PROPCHAIN_S3_PUBLIC_URL"),
		EthRPCURL:       os.Getenv("PROPCHAIN_ETH_RPC_URL"),
		ContractAddress: os.Getenv("PROPCHAIN_CONTRACT_ADDRESS"),
		EthPrivateKey:   os.Getenv("PROPCHAIN_ETH_PRIVATE_KEY"),
		NominatimURL:    envOrDefault("PROPCHAIN_NOMINATIM_URL", "https://nominatim.openstreetmap.org/reverse"),
		CORSOrigins:     splitList(envOrDefault("PROPCHAIN_CORS_ORIGINS", "http://localhost:3000")),
	}

	var err error
	if cfg.Port, err = envInt("PROPCHAIN_PORT", 8080); err != nil {
		return Config{}, err
	}
	if cfg.RedisDB, err = envInt("PROPCHAIN_REDIS_DB", 0); err != nil {
		return Config{}, err
	}
	if cfg.RewardRequireGPS, err = envBool("PROPCHAIN_REWARD_REQUIRE_GPS", false); err != nil {
		return Config{}, err
	}

	interval := envOrDefault("PROPCHAIN_INDEXER_INTERVAL", "15s")
	if cfg.IndexerInterval, err = time.ParseDuration(interval); err != nil {
		return Config{}, fmt.Errorf("parsing PROPCHAIN_INDEXER_INTERVAL: %w", err)
	}
	if v := os.Getenv("PROPCHAIN_INDEXER_START_BLOCK"); v != "" {
		if cfg.IndexerStartBlock, err = strconv.ParseUint(v, 10, 64); err != nil {
			return Config{}, fmt.Errorf("parsing PROPCHAIN_INDEXER_START_BLOCK: %w", err)
		}
	}

	if cfg.PublicURL == "" {
		cfg.PublicURL = fmt.Sprintf("http://localhost:%d", cfg.Port)
	}

	if cfg.DBDriver != "sqlite3" && cfg.DBDriver != "pgx" {
		return Config{}, fmt.Errorf("unsupported PROPCHAIN_DB_DRIVER %q (use sqlite3 or pgx)", cfg.DBDriver)
	}
	if cfg.DBDriver == "pgx" && cfg.DBDSN == "" {
		return Config{}, fmt.Errorf("PROPCHAIN_DB_DSN is required for the pgx driver")
	}

	return cfg, nil
}

// LedgerEnabled reports whether an EVM endpoint and contract are configured.
func (c Config) LedgerEnabled() bool {
	return c.EthRPCURL != "" && c.ContractAddress != ""
}

// PasskeysEnabled reports whether passkey login can issue identity tokens.
func (c Config) PasskeysEnabled() bool {
	return c.JWTSecret != ""
}

// StorageEnabled reports whether image uploads can be stored.
func (c Config) StorageEnabled() bool {
	return c.S3Bucket != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}
	return n, nil
}

func envBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("parsing %s: %w", key, err)
	}
	return b, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
