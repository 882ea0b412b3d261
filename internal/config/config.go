package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the application configuration loaded from config.yaml with
// environment-variable overrides applied on top.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	NATS       NATSConfig       `yaml:"nats"`
	Blockchain BlockchainConfig `yaml:"blockchain"`
	Indexer    IndexerConfig    `yaml:"indexer"`
	Miner      MinerConfig      `yaml:"miner"`
	Auth       AuthConfig       `yaml:"auth"`
}

// ServerConfig is the HTTP server configuration.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig points at the indexer's postgres store.
type DatabaseConfig struct {
	DSN    string `yaml:"dsn"`
	Driver string `yaml:"driver"`
}

// NATSConfig is the event-bus configuration.
type NATSConfig struct {
	URL           string `yaml:"url"`
	Timeout       int    `yaml:"timeout"`
	ReconnectWait int    `yaml:"reconnect_wait"`
	MaxReconnects int    `yaml:"max_reconnects"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// BlockchainConfig holds the chain connection and contract addresses.
type BlockchainConfig struct {
	ChainID         int64    `yaml:"chainId"`
	RPCEndpoints    []string `yaml:"rpcEndpoints"`
	FactoryContract string   `yaml:"factoryContract"`
	GasLimit        uint64   `yaml:"gasLimit"`
	GasPrice        string   `yaml:"gasPrice"` // wei, empty = suggest from node
	ReadRateLimit   int      `yaml:"readRateLimit"`
	LogRange        uint64   `yaml:"logRange"`         // block window for event-log reads
	LogRangeRetry   uint64   `yaml:"logRangeRetry"`    // fallback window when the node rejects LogRange
	PrivateKey      string   `yaml:"privateKey"`       // hex, no 0x prefix; signer for write calls
	SignerURL       string   `yaml:"signerUrl"`        // remote signer endpoint (alternative to privateKey)
	SignerAuthToken string   `yaml:"signerAuthToken"`  // bearer token for the remote signer
	SignerTimeout   int      `yaml:"signerTimeout"`    // seconds
	ShardPrefix     string   `yaml:"shardPrefix"`      // hex address prefix for CREATE2 mining
	WalletInitHash  string   `yaml:"walletInitHash"`   // keccak256 of the proxy deployment bytecode
	RecoveryModule  string   `yaml:"recoveryModule"`   // social recovery module address
	DailyLimitModule string  `yaml:"dailyLimitModule"` // daily limit module address
	WhitelistModule string   `yaml:"whitelistModule"`  // whitelist module address
}

// IndexerConfig is the secondary read-path configuration.
type IndexerConfig struct {
	HealthURL       string `yaml:"healthUrl"`
	WSURL           string `yaml:"wsUrl"`
	HealthTTL       int    `yaml:"healthTtl"`       // seconds between health re-checks
	HealthTimeout   int    `yaml:"healthTimeout"`   // seconds per probe
	MaxBlocksBehind uint64 `yaml:"maxBlocksBehind"` // sync lag beyond which the indexer is unavailable
}

// MinerConfig bounds the CREATE2 address search.
type MinerConfig struct {
	MaxAttempts      uint64 `yaml:"maxAttempts"`
	ProgressInterval uint64 `yaml:"progressInterval"`
}

// AuthConfig is the JWT configuration for the HTTP surface.
type AuthConfig struct {
	JWTSecret string `yaml:"jwtSecret"`
	TokenTTL  int    `yaml:"tokenTtl"` // hours
}

// HealthTTLDuration returns the health re-check window with its default.
func (c *IndexerConfig) HealthTTLDuration() time.Duration {
	if c.HealthTTL <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.HealthTTL) * time.Second
}

// HealthTimeoutDuration returns the per-probe timeout with its default.
func (c *IndexerConfig) HealthTimeoutDuration() time.Duration {
	if c.HealthTimeout <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.HealthTimeout) * time.Second
}

// LoadConfig reads the configuration file and applies env overrides.
// An empty path falls back to config.yaml, preferring config.local.yaml
// when it exists.
func LoadConfig(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.yaml"
		if _, err := os.Stat("config.local.yaml"); err == nil {
			configPath = "config.local.yaml"
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	overrideFromEnv(&config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate rejects configurations the services cannot start with.
func (c *Config) Validate() error {
	if len(c.Blockchain.RPCEndpoints) == 0 {
		return fmt.Errorf("config: no RPC endpoints configured")
	}
	if c.Blockchain.FactoryContract == "" {
		return fmt.Errorf("config: factory contract address not configured")
	}
	if c.Blockchain.LogRange == 0 {
		c.Blockchain.LogRange = 10000
	}
	if c.Blockchain.LogRangeRetry == 0 || c.Blockchain.LogRangeRetry >= c.Blockchain.LogRange {
		c.Blockchain.LogRangeRetry = c.Blockchain.LogRange / 10
	}
	if c.Blockchain.ReadRateLimit <= 0 {
		c.Blockchain.ReadRateLimit = 20
	}
	if c.Miner.MaxAttempts == 0 {
		c.Miner.MaxAttempts = 10_000_000
	}
	if c.Miner.ProgressInterval == 0 {
		c.Miner.ProgressInterval = 100_000
	}
	return nil
}

// overrideFromEnv applies environment-variable overrides on top of the
// file values. Environment always wins.
func overrideFromEnv(config *Config) {
	if dsn := os.Getenv("DATABASE_DSN"); dsn != "" {
		config.Database.DSN = dsn
	}

	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if natsURL := os.Getenv("NATS_URL"); natsURL != "" {
		config.NATS.URL = natsURL
	}
	if natsTimeout := os.Getenv("NATS_TIMEOUT"); natsTimeout != "" {
		if t, err := strconv.Atoi(natsTimeout); err == nil {
			config.NATS.Timeout = t
		}
	}

	if rpcEndpoints := os.Getenv("RPC_ENDPOINTS"); rpcEndpoints != "" {
		parts := strings.Split(rpcEndpoints, ",")
		endpoints := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				endpoints = append(endpoints, trimmed)
			}
		}
		if len(endpoints) > 0 {
			config.Blockchain.RPCEndpoints = endpoints
		}
	}
	if factory := os.Getenv("FACTORY_CONTRACT"); factory != "" {
		config.Blockchain.FactoryContract = factory
	}
	if privateKey := os.Getenv("PRIVATE_KEY"); privateKey != "" {
		config.Blockchain.PrivateKey = privateKey
	}
	if signerURL := os.Getenv("SIGNER_URL"); signerURL != "" {
		config.Blockchain.SignerURL = signerURL
	}
	if signerToken := os.Getenv("SIGNER_AUTH_TOKEN"); signerToken != "" {
		config.Blockchain.SignerAuthToken = signerToken
	}
	if gasLimit := os.Getenv("GAS_LIMIT"); gasLimit != "" {
		if limit, err := strconv.ParseUint(gasLimit, 10, 64); err == nil {
			config.Blockchain.GasLimit = limit
		}
	}
	if gasPrice := os.Getenv("GAS_PRICE"); gasPrice != "" {
		config.Blockchain.GasPrice = gasPrice
	}

	if healthURL := os.Getenv("INDEXER_HEALTH_URL"); healthURL != "" {
		config.Indexer.HealthURL = healthURL
	}
	if wsURL := os.Getenv("INDEXER_WS_URL"); wsURL != "" {
		config.Indexer.WSURL = wsURL
	}
	if ttl := os.Getenv("INDEXER_HEALTH_TTL"); ttl != "" {
		if t, err := strconv.Atoi(ttl); err == nil {
			config.Indexer.HealthTTL = t
		}
	}

	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		config.Auth.JWTSecret = secret
	}
}
