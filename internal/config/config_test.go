package config

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const testKey = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.True(t, cfg.Trading.Threshold.Equal(decimal.RequireFromString("0.015")))
	require.Equal(t, 30*time.Second, cfg.Trading.Cooldown)
	require.True(t, cfg.Trading.MinBalance.Equal(decimal.NewFromInt(500)))
	require.Equal(t, time.Second, cfg.Trading.DecisionInterval)
	require.Equal(t, 5*time.Second, cfg.Feeds.ReconnectDelay)
	require.Equal(t, "paper", cfg.Mode())
}

func TestLoad(t *testing.T) {
	path := writeYAML(t, `
trading:
  threshold: 0.02
  cooldown: 45s
  notional: "12.5"
  enable_trading: true
feeds:
  proprietary_url: wss://feed.example/ws
venue:
  rate_limit: 4
app:
  log_level: debug
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.True(t, cfg.Trading.Threshold.Equal(decimal.RequireFromString("0.02")))
	require.Equal(t, 45*time.Second, cfg.Trading.Cooldown)
	require.True(t, cfg.Trading.Notional.Equal(decimal.RequireFromString("12.5")))
	require.True(t, cfg.Trading.EnableTrading)
	require.Equal(t, "wss://feed.example/ws", cfg.Feeds.ProprietaryURL)
	require.Equal(t, float64(4), cfg.Venue.RateLimit)
	require.Equal(t, "debug", cfg.App.LogLevel)

	// untouched keys keep their defaults
	require.True(t, cfg.Trading.StopLoss.Equal(decimal.RequireFromString("0.005")))
	require.Equal(t, DefaultVenueURL, cfg.Feeds.VenueURL)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(envMap(map[string]string{
		"PRICE_DIFFERENCE_THRESHOLD": "0.03",
		"STOP_LOSS_AMOUNT":           "0.02",
		"TAKE_PROFIT_AMOUNT":         "0.04",
		"TRADE_COOLDOWN":             "60",
		"DEFAULT_TRADE_AMOUNT":       "25",
		"ENABLE_TRADING":             "true",
		"SOFTWARE_WS_URL":            "ws://localhost:9000",
		"CLOB_API_URL":               "https://clob.example",
		"PRIVATE_KEY":                "0xabc",
		"SIGNATURE_TYPE":             "2",
		"CLOB_USE_SERVER_TIME":       "true",
		"TRADES_OUT_FILE":            "trades.jsonl",
	}))
	require.NoError(t, err)
	require.True(t, cfg.Trading.Threshold.Equal(decimal.RequireFromString("0.03")))
	require.True(t, cfg.Trading.StopLoss.Equal(decimal.RequireFromString("0.02")))
	require.True(t, cfg.Trading.TakeProfit.Equal(decimal.RequireFromString("0.04")))
	require.Equal(t, time.Minute, cfg.Trading.Cooldown)
	require.True(t, cfg.Trading.Notional.Equal(decimal.NewFromInt(25)))
	require.True(t, cfg.Trading.EnableTrading)
	require.Equal(t, "live", cfg.Mode())
	require.Equal(t, "ws://localhost:9000", cfg.Feeds.ProprietaryURL)
	require.Equal(t, "https://clob.example", cfg.Venue.ClobURL)
	require.Equal(t, "0xabc", cfg.Wallet.PrivateKey)
	require.Equal(t, 2, cfg.Wallet.SignatureType)
	require.True(t, cfg.Venue.UseServerTime)
	require.Equal(t, "trades.jsonl", cfg.App.AuditLog)
}

func TestApplyEnv_CooldownAcceptsDuration(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.ApplyEnv(envMap(map[string]string{"TRADE_COOLDOWN": "1m30s"})))
	require.Equal(t, 90*time.Second, cfg.Trading.Cooldown)
}

func TestApplyEnv_PrefersClobPrefixedNames(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.ApplyEnv(envMap(map[string]string{
		"PRIVATE_KEY":      "plain",
		"CLOB_PRIVATE_KEY": "prefixed",
	})))
	require.Equal(t, "prefixed", cfg.Wallet.PrivateKey)
}

func TestApplyEnv_InvalidValues(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(envMap(map[string]string{
		"ENABLE_TRADING":             "maybe",
		"PRICE_DIFFERENCE_THRESHOLD": "abc",
	}))
	require.Error(t, err)
	require.Contains(t, err.Error(), "ENABLE_TRADING")
	require.Contains(t, err.Error(), "PRICE_DIFFERENCE_THRESHOLD")
}

func validConfig() Config {
	cfg := Default()
	cfg.Feeds.ProprietaryURL = "wss://feed.example/ws"
	cfg.Wallet.PrivateKey = testKey
	return cfg
}

func TestValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero threshold", func(c *Config) { c.Trading.Threshold = decimal.Zero }, "threshold"},
		{"threshold of one", func(c *Config) { c.Trading.Threshold = decimal.NewFromInt(1) }, "threshold must be < 1"},
		{"missing proprietary url", func(c *Config) { c.Feeds.ProprietaryURL = "" }, "proprietary_url required"},
		{"http venue url", func(c *Config) { c.Feeds.VenueURL = "https://x" }, "venue_url must be ws(s)"},
		{"missing key", func(c *Config) { c.Wallet.PrivateKey = "" }, "private key required"},
		{"one token only", func(c *Config) { c.Venue.UpToken = "1" }, "set together"},
		{"negative cooldown", func(c *Config) { c.Trading.Cooldown = -time.Second }, "cooldown"},
		{"bad tick", func(c *Config) { c.Trading.TickSize = "tick" }, "tick_size"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestExecutorConfig(t *testing.T) {
	cfg := validConfig()
	cfg.Trading.Notional = decimal.NewFromInt(10)
	cfg.Trading.NegRisk = true
	cfg.Trading.Cooldown = 45 * time.Second
	ec := cfg.ExecutorConfig()
	require.Equal(t, 45*time.Second, ec.Cooldown)
	require.True(t, ec.Notional.Equal(decimal.NewFromInt(10)))
	require.True(t, ec.TakeProfit.Equal(cfg.Trading.TakeProfit))
	require.Equal(t, cfg.Trading.SettleDelay, ec.SettleDelay)
	require.Equal(t, "0.001", ec.Tick.TickSize)
	require.True(t, ec.Tick.NegRisk)
}

func TestFlags_LayeringOrder(t *testing.T) {
	path := writeYAML(t, `
trading:
  threshold: 0.02
  notional: 7
feeds:
  proprietary_url: wss://yaml.example/ws
`)
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	f := BindFlags(fs)
	require.NoError(t, fs.Parse([]string{"--config", path, "--notional", "9", "--log-level", "debug"}))

	cfg, err := f.Resolve(envMap(map[string]string{
		"PRICE_DIFFERENCE_THRESHOLD": "0.025",
		"DEFAULT_TRADE_AMOUNT":       "8",
		"PRIVATE_KEY":                testKey,
	}))
	require.NoError(t, err)

	// env beats yaml, flags beat env
	require.True(t, cfg.Trading.Threshold.Equal(decimal.RequireFromString("0.025")))
	require.True(t, cfg.Trading.Notional.Equal(decimal.NewFromInt(9)))
	require.Equal(t, "wss://yaml.example/ws", cfg.Feeds.ProprietaryURL)
	require.Equal(t, "debug", cfg.App.LogLevel)
}

func TestFlags_UnsetFlagsDoNotOverride(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	f := BindFlags(fs)
	require.NoError(t, fs.Parse(nil))

	cfg := Default()
	cfg.Trading.EnableTrading = true
	require.NoError(t, f.Apply(&cfg))
	require.True(t, cfg.Trading.EnableTrading)
}

func TestFlags_InvalidDecimal(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	f := BindFlags(fs)
	require.NoError(t, fs.Parse([]string{"--threshold", "lots"}))
	cfg := Default()
	require.Error(t, f.Apply(&cfg))
}
