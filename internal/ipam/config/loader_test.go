package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}

func TestLoadDefaults(t *testing.T) {
	// Run from a temp dir so a stray config.yaml cannot interfere
	chdir(t, t.TempDir())

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, ":8080", cfg.API.ListenAddr)
	assert.Equal(t, "./data/ipam.db", cfg.DB.Path)
	assert.Equal(t, 30*time.Second, cfg.Service.ShutdownTimeout)
	assert.Equal(t, "10.0.0.0/16", cfg.Pools.Primary.CIDR)
	assert.Equal(t, 20, cfg.Pools.Primary.MinBlockPrefix)
	assert.Equal(t, 26, cfg.Pools.Primary.MaxBlockPrefix)
	assert.Equal(t, "100.64.0.0/10", cfg.Pools.CGNAT.CIDR)
	assert.True(t, cfg.CircuitBreaker.Enabled)
}

func TestLoadWithPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
log:
  level: debug
  format: text
api:
  listen_addr: ":9090"
  api_key: "secret"
db:
  path: "/tmp/test-ipam.db"
pools:
  primary:
    cidr: "10.1.0.0/16"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadWithPath(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, ":9090", cfg.API.ListenAddr)
	assert.Equal(t, "secret", cfg.API.APIKey)
	assert.Equal(t, "/tmp/test-ipam.db", cfg.DB.Path)
	assert.Equal(t, "10.1.0.0/16", cfg.Pools.Primary.CIDR)
	// unset keys keep their defaults
	assert.Equal(t, 20, cfg.Pools.Primary.MinBlockPrefix)
	assert.Equal(t, "100.64.0.0/10", cfg.Pools.CGNAT.CIDR)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
	}{
		{name: "bad log level", content: "log:\n  level: verbose\n"},
		{name: "bad log format", content: "log:\n  format: xml\n"},
		{name: "bad pool cidr", content: "pools:\n  primary:\n    cidr: not-a-cidr\n"},
		{name: "unaligned pool cidr", content: "pools:\n  primary:\n    cidr: 10.0.0.1/16\n"},
		{name: "inverted block bounds", content: "pools:\n  primary:\n    min_block_prefix: 26\n    max_block_prefix: 20\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, "bad-config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			_, err := LoadWithPath(path)
			assert.Error(t, err)
		})
	}
}

func TestEnvOverride(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("IPAM_LOG_LEVEL", "warn")
	t.Setenv("IPAM_API_LISTEN_ADDR", ":7070")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, ":7070", cfg.API.ListenAddr)
}

func TestPoolConstruction(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	primary, err := cfg.PrimaryPool()
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.0/16", primary.Network.String())
	assert.Equal(t, 20, primary.MinBlockPrefix)

	cgnat, err := cfg.CGNATPool()
	require.NoError(t, err)
	assert.Equal(t, "100.64.0.0/10", cgnat.Network.String())
	assert.Equal(t, 21, cgnat.MaxBlockPrefix)
}
