package config

import (
	"os"
	"path/filepath"
	"testing"
)

func validConfig() Config {
	return Config{
		Pool: PoolConfig{
			Address:       "pool.example.com:3333",
			WalletAddress: "wallet1",
		},
		Mining: MiningConfig{
			Variant:     "v7",
			Scratchpads: 4,
		},
		Security: SecurityConfig{
			MaxInvalidShareRatio: 0.5,
		},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		errMsg  string
		wantErr bool
	}{
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "missing pool address",
			mutate:  func(c *Config) { c.Pool.Address = "" },
			wantErr: true,
			errMsg:  "pool.address is required",
		},
		{
			name:    "missing wallet address",
			mutate:  func(c *Config) { c.Pool.WalletAddress = "" },
			wantErr: true,
			errMsg:  "pool.wallet_address is required",
		},
		{
			name:    "unknown variant",
			mutate:  func(c *Config) { c.Mining.Variant = "v9" },
			wantErr: true,
			errMsg:  `mining.variant must be one of v6, v7, v8, got "v9"`,
		},
		{
			name:    "non-positive scratchpads",
			mutate:  func(c *Config) { c.Mining.Scratchpads = 0 },
			wantErr: true,
			errMsg:  "mining.scratchpads must be > 0",
		},
		{
			name:    "invalid share ratio",
			mutate:  func(c *Config) { c.Security.MaxInvalidShareRatio = 0 },
			wantErr: true,
			errMsg:  "security.max_invalid_share_ratio must be in (0, 1]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if tt.errMsg != "" && err.Error() != tt.errMsg {
					t.Fatalf("error = %q, want %q", err.Error(), tt.errMsg)
				}
			} else if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestMiningConfigParsedVariant(t *testing.T) {
	if got := (MiningConfig{Variant: "v8"}).ParsedVariant().String(); got != "v8" {
		t.Fatalf("ParsedVariant() = %s, want v8", got)
	}
	if got := (MiningConfig{Variant: "bogus"}).ParsedVariant().String(); got != "v7" {
		t.Fatalf("ParsedVariant() fallback = %s, want v7", got)
	}
}

func TestLoadWithTempConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
pool:
  address: "pool.example.com:3333"
  wallet_address: "wallet1"
  password: "x"

mining:
  variant: "v8"
  scratchpads: 2
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Pool.Address != "pool.example.com:3333" {
		t.Fatalf("Pool.Address = %s, want pool.example.com:3333", cfg.Pool.Address)
	}
	if cfg.Mining.Variant != "v8" {
		t.Fatalf("Mining.Variant = %s, want v8", cfg.Mining.Variant)
	}
	if cfg.Mining.Scratchpads != 2 {
		t.Fatalf("Mining.Scratchpads = %d, want 2", cfg.Mining.Scratchpads)
	}
	// Defaults fill in untouched sections.
	if cfg.API.Bind == "" {
		t.Fatal("expected api.bind default to be set")
	}
}

func TestLoadInvalidConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
pool:
  address: "pool.example.com:3333"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	if _, err := Load(configPath); err == nil {
		t.Fatal("Load() should return an error when wallet_address is missing")
	}
}

func TestLoadNonexistentConfig(t *testing.T) {
	if _, err := Load("/nonexistent/path/config.yaml"); err == nil {
		t.Fatal("Load() should return an error for a non-existent explicit path")
	}
}
