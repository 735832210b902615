package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Solana  SolanaConfig  `mapstructure:"solana"`
	Chains  ChainsConfig  `mapstructure:"chains"`
	Wallet  WalletConfig  `mapstructure:"wallet"`
	Flow    FlowConfig    `mapstructure:"flow"`
	Storage StorageConfig `mapstructure:"storage"`
	Log     LogConfig     `mapstructure:"log"`
}

// SolanaConfig holds Solana-specific configuration
type SolanaConfig struct {
	RPC        string `mapstructure:"rpc"`
	Cluster    string `mapstructure:"cluster"`
	ProgramID  string `mapstructure:"program_id"`
	IDLPath    string `mapstructure:"idl_path"`
	Commitment string `mapstructure:"commitment"`
	Timeout    int    `mapstructure:"timeout"` // in seconds
}

// ChainsConfig lists the selectable chains. An empty Items list selects the
// built-in descriptors.
type ChainsConfig struct {
	Default string        `mapstructure:"default"`
	Items   []ChainConfig `mapstructure:"items"`
}

// ChainConfig describes one selectable chain.
type ChainConfig struct {
	Key         string            `mapstructure:"key"`
	Kind        string            `mapstructure:"kind"` // evm or non-evm
	DisplayName string            `mapstructure:"display_name"`
	ChainIDHex  string            `mapstructure:"chain_id"`
	Contract    string            `mapstructure:"contract"`
	Cluster     string            `mapstructure:"cluster"`
	Endpoints   map[string]string `mapstructure:"endpoints"`
	Explorers   map[string]string `mapstructure:"explorers"`
	ProgramID   string            `mapstructure:"program_id"`
	IDLPath     string            `mapstructure:"idl_path"`
}

// WalletConfig selects the local signer.
type WalletConfig struct {
	Keypair string `mapstructure:"keypair"`
	Mode    string `mapstructure:"mode"` // sign-only or sign-and-send
}

// FlowConfig tunes the transaction flow.
type FlowConfig struct {
	SettleDelay         time.Duration `mapstructure:"settle_delay"`
	ConfirmPollInterval time.Duration `mapstructure:"confirm_poll_interval"`
	ConfirmCommitment   string        `mapstructure:"confirm_commitment"`
	Gate                string        `mapstructure:"gate"` // local or redis
	GateTTL             time.Duration `mapstructure:"gate_ttl"`
}

// StorageConfig selects and configures the persistence backend.
type StorageConfig struct {
	Type     string         `mapstructure:"type"` // file, memory, redis, postgres, mongodb
	File     FileConfig     `mapstructure:"file"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	MongoDB  MongoDBConfig  `mapstructure:"mongodb"`
}

// FileConfig holds the YAML state file location.
type FileConfig struct {
	Path string `mapstructure:"path"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	Database        string `mapstructure:"database"`
	SSLMode         string `mapstructure:"ssl_mode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"` // in seconds
}

// MongoDBConfig holds MongoDB connection settings.
type MongoDBConfig struct {
	URI            string `mapstructure:"uri"`
	Database       string `mapstructure:"database"`
	MaxPoolSize    uint64 `mapstructure:"max_pool_size"`
	MinPoolSize    uint64 `mapstructure:"min_pool_size"`
	ConnectTimeout int    `mapstructure:"connect_timeout"` // in seconds
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or text

	// File enables rotated file output when set.
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Solana: SolanaConfig{
			Cluster:    "devnet",
			ProgramID:  "HDNJ2F8CMHksj2EzuutDZiHrduCyi4KLZGabpdCs5BfZ",
			IDLPath:    "solana-idl.json",
			Commitment: "confirmed",
			Timeout:    30,
		},
		Chains: ChainsConfig{
			Default: "bsc",
		},
		Wallet: WalletConfig{
			Keypair: "~/.config/solana/id.json",
			Mode:    "sign-only",
		},
		Flow: FlowConfig{
			SettleDelay:         1200 * time.Millisecond,
			ConfirmPollInterval: 500 * time.Millisecond,
			ConfirmCommitment:   "confirmed",
			Gate:                "local",
			GateTTL:             2 * time.Minute,
		},
		Storage: StorageConfig{
			Type: "file",
			File: FileConfig{Path: "~/.anchorlite/state.yaml"},
			Redis: RedisConfig{
				Addr:      "localhost:6379",
				KeyPrefix: "anchorlite:",
			},
			Postgres: PostgresConfig{
				Host:            "localhost",
				Port:            5432,
				User:            "anchorlite",
				Database:        "anchorlite",
				SSLMode:         "disable",
				MaxOpenConns:    5,
				MaxIdleConns:    1,
				ConnMaxLifetime: 300,
			},
			MongoDB: MongoDBConfig{
				URI:            "mongodb://localhost:27017",
				Database:       "anchorlite",
				MaxPoolSize:    10,
				ConnectTimeout: 10,
			},
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  20,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Load loads configuration from file and environment
func Load(configPath string) (*Config, error) {
	return LoadWith(viper.GetViper(), configPath)
}

// LoadWith loads configuration through the given viper instance.
func LoadWith(v *viper.Viper, configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName(".anchorlite")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME")
	}

	// Environment variables
	v.SetEnvPrefix("ANCHORLITE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvKeys(v)

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// bindEnvKeys makes scalar keys visible to Unmarshal when they are only set
// through the environment.
func bindEnvKeys(v *viper.Viper) {
	for _, key := range []string{
		"solana.rpc", "solana.cluster", "solana.program_id", "solana.idl_path", "solana.commitment", "solana.timeout",
		"chains.default",
		"wallet.keypair", "wallet.mode",
		"flow.settle_delay", "flow.confirm_poll_interval", "flow.confirm_commitment", "flow.gate", "flow.gate_ttl",
		"storage.type", "storage.file.path",
		"storage.redis.addr", "storage.redis.password", "storage.redis.db", "storage.redis.key_prefix",
		"storage.postgres.host", "storage.postgres.port", "storage.postgres.user", "storage.postgres.password",
		"storage.postgres.database", "storage.postgres.ssl_mode",
		"storage.mongodb.uri", "storage.mongodb.database",
		"log.level", "log.format", "log.file",
	} {
		_ = v.BindEnv(key)
	}
}

// Validate checks enumerated settings.
func (c *Config) Validate() error {
	switch c.Wallet.Mode {
	case "sign-only", "sign-and-send":
	default:
		return fmt.Errorf("invalid wallet.mode %q: expected sign-only or sign-and-send", c.Wallet.Mode)
	}

	switch c.Flow.Gate {
	case "local", "redis":
	default:
		return fmt.Errorf("invalid flow.gate %q: expected local or redis", c.Flow.Gate)
	}

	switch c.Storage.Type {
	case "file", "memory", "redis", "postgres", "mongodb":
	default:
		return fmt.Errorf("unsupported storage.type %q", c.Storage.Type)
	}

	if c.Flow.SettleDelay < 0 {
		return fmt.Errorf("flow.settle_delay must not be negative")
	}
	if c.Flow.ConfirmPollInterval <= 0 {
		return fmt.Errorf("flow.confirm_poll_interval must be positive")
	}

	return nil
}

// GetRPCEndpoint returns the RPC endpoint for the configured cluster
func (c *SolanaConfig) GetRPCEndpoint() string {
	if c.RPC != "" {
		return c.RPC
	}

	switch c.Cluster {
	case "mainnet", "mainnet-beta":
		return "https://api.mainnet-beta.solana.com"
	case "testnet":
		return "https://api.testnet.solana.com"
	case "localnet", "localhost":
		return "http://localhost:8899"
	default:
		return "https://api.devnet.solana.com"
	}
}

// GetTimeout returns the RPC timeout as a duration.
func (c *SolanaConfig) GetTimeout() time.Duration {
	if c.Timeout <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Timeout) * time.Second
}
