package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const validYAML = `
environment: test
server:
  port: 8000
  read_timeout: 15s
  write_timeout: 15s
  shutdown_timeout: 10s
logging:
  level: info
  format: console
  output: stdout
database:
  path: data/test.db
market:
  mode: live
  interval: 15s
  symbols: [BTC, ETH]
oracle:
  base_url: http://localhost:11434/v1
  api_key: ollama
  default_model: llama3.1
  timeout: 90s
  history_depth: 4
equity:
  retention: 500
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	c, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)
	require.Equal(t, "test", c.Environment)
	require.Equal(t, 8000, c.Server.Port)
	require.Equal(t, 15*time.Second, c.Market.Interval)
	require.Equal(t, []string{"BTC", "ETH"}, c.Market.Symbols)
	require.Equal(t, "http://localhost:11434/v1", c.Oracle.BaseURL)
	require.Equal(t, 90*time.Second, c.Oracle.Timeout)
	require.Equal(t, 500, c.Equity.Retention)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		c, err := Load(writeConfig(t, validYAML))
		require.NoError(t, err)
		return c
	}

	c := base()
	c.Market.Mode = "simulated"
	require.ErrorContains(t, c.Validate(), "market.mode")

	c = base()
	c.Market.Mode = "replay"
	c.Market.ReplayFile = ""
	require.ErrorContains(t, c.Validate(), "replay_file")

	c = base()
	c.Market.Symbols = nil
	require.ErrorContains(t, c.Validate(), "symbols")

	c = base()
	c.Oracle.Timeout = 0
	require.ErrorContains(t, c.Validate(), "oracle.timeout")

	c = base()
	c.Equity.Retention = 0
	require.ErrorContains(t, c.Validate(), "equity.retention")
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("PHANTOMEX_DB", "/tmp/override.db")
	t.Setenv("OLLAMA_HOST", "http://gpu-box:11434/")
	t.Setenv("SYMBOLS", "BTC,SOL")
	t.Setenv("PORT", "9090")

	c, err := LoadWithEnv(writeConfig(t, validYAML))
	require.NoError(t, err)
	require.Equal(t, "/tmp/override.db", c.Database.Path)
	require.Equal(t, "http://gpu-box:11434/v1", c.Oracle.BaseURL, "host gains the /v1 suffix")
	require.Equal(t, []string{"BTC", "SOL"}, c.Market.Symbols)
	require.Equal(t, 9090, c.Server.Port)
}

func TestLoadWithEnvIgnoresBadPort(t *testing.T) {
	t.Setenv("PORT", "not-a-number")
	c, err := LoadWithEnv(writeConfig(t, validYAML))
	require.NoError(t, err)
	require.Equal(t, 8000, c.Server.Port)
}
