package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "anchorlite.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Flow.SettleDelay != 1200*time.Millisecond {
		t.Errorf("expected settle delay 1.2s, got %s", cfg.Flow.SettleDelay)
	}
	if cfg.Chains.Default != "bsc" {
		t.Errorf("expected default chain bsc, got %s", cfg.Chains.Default)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected default config to validate, got %v", err)
	}
}

func TestLoadWithFile(t *testing.T) {
	path := writeConfig(t, `
solana:
  cluster: testnet
  program_id: HDNJ2F8CMHksj2EzuutDZiHrduCyi4KLZGabpdCs5BfZ
flow:
  settle_delay: 2s
  confirm_commitment: finalized
storage:
  type: memory
`)

	cfg, err := LoadWith(viper.New(), path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Solana.Cluster != "testnet" {
		t.Errorf("expected cluster testnet, got %s", cfg.Solana.Cluster)
	}
	if cfg.Flow.SettleDelay != 2*time.Second {
		t.Errorf("expected settle delay 2s, got %s", cfg.Flow.SettleDelay)
	}
	if cfg.Flow.ConfirmCommitment != "finalized" {
		t.Errorf("expected finalized, got %s", cfg.Flow.ConfirmCommitment)
	}
	if cfg.Storage.Type != "memory" {
		t.Errorf("expected memory storage, got %s", cfg.Storage.Type)
	}
	if cfg.Flow.Gate != "local" {
		t.Errorf("expected untouched default gate local, got %s", cfg.Flow.Gate)
	}
}

func TestLoadWithEnvOverride(t *testing.T) {
	path := writeConfig(t, "log:\n  level: debug\n")
	t.Setenv("ANCHORLITE_WALLET_MODE", "sign-and-send")

	cfg, err := LoadWith(viper.New(), path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Wallet.Mode != "sign-and-send" {
		t.Errorf("expected wallet mode from env, got %s", cfg.Wallet.Mode)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("expected log level debug, got %s", cfg.Log.Level)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}, wantErr: false},
		{name: "bad wallet mode", mutate: func(c *Config) { c.Wallet.Mode = "ledger" }, wantErr: true},
		{name: "bad gate", mutate: func(c *Config) { c.Flow.Gate = "etcd" }, wantErr: true},
		{name: "bad storage", mutate: func(c *Config) { c.Storage.Type = "mysql" }, wantErr: true},
		{name: "negative settle delay", mutate: func(c *Config) { c.Flow.SettleDelay = -time.Second }, wantErr: true},
		{name: "zero poll interval", mutate: func(c *Config) { c.Flow.ConfirmPollInterval = 0 }, wantErr: true},
		{name: "zero settle delay", mutate: func(c *Config) { c.Flow.SettleDelay = 0 }, wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("expected error %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestGetRPCEndpoint(t *testing.T) {
	tests := []struct {
		name     string
		cfg      SolanaConfig
		expected string
	}{
		{name: "override", cfg: SolanaConfig{RPC: "http://rpc.local", Cluster: "devnet"}, expected: "http://rpc.local"},
		{name: "mainnet", cfg: SolanaConfig{Cluster: "mainnet-beta"}, expected: "https://api.mainnet-beta.solana.com"},
		{name: "testnet", cfg: SolanaConfig{Cluster: "testnet"}, expected: "https://api.testnet.solana.com"},
		{name: "localnet", cfg: SolanaConfig{Cluster: "localnet"}, expected: "http://localhost:8899"},
		{name: "default", cfg: SolanaConfig{}, expected: "https://api.devnet.solana.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.GetRPCEndpoint(); got != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, got)
			}
		})
	}
}
