package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "parallel", cfg.Approval.Mode)
	assert.Equal(t, "reject", cfg.Receipt.OverReceiptPolicy)
	assert.True(t, cfg.Budget.PrecheckOnCreate)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
approval:
  mode: sequential
  chain:
    - name: manager
      approver: alice
    - name: finance
      approver: bob
receipt:
  over_receipt_policy: flag
database:
  driver: sqlite
  path: test.db
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sequential", cfg.Approval.Mode)
	require.Len(t, cfg.Approval.Chain, 2)
	assert.Equal(t, "finance", cfg.Approval.Chain[1].Name)
	assert.Equal(t, "bob", cfg.Approval.Chain[1].Approver)
	assert.Equal(t, "flag", cfg.Receipt.OverReceiptPolicy)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("APP_SERVER_PORT", "9090")
	t.Setenv("APP_APPROVAL_MODE", "sequential")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "sequential", cfg.Approval.Mode)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"bad mode", func(c *Config) { c.Approval.Mode = "majority" }, true},
		{"bad policy", func(c *Config) { c.Receipt.OverReceiptPolicy = "clamp" }, true},
		{"bad driver", func(c *Config) { c.Database.Driver = "mysql" }, true},
		{"incomplete chain entry", func(c *Config) { c.Approval.Chain = []ChainEntry{{Name: "manager"}} }, true},
		{"production without secret", func(c *Config) { c.Env = "production" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
