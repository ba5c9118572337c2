// Package config holds the trader's typed settings. Values are layered:
// Default, then an optional YAML file, then environment, then flags.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"poly-divergence/internal/clob"
	"poly-divergence/internal/executor"
)

const (
	DefaultVenueURL = "wss://ws-subscriptions-clob.polymarket.com/ws/market"
	DefaultGammaURL = "https://gamma-api.polymarket.com"
)

// Trading groups the strategy and gating parameters.
type Trading struct {
	Threshold  decimal.Decimal `yaml:"threshold"`
	StopLoss   decimal.Decimal `yaml:"stop_loss"`
	TakeProfit decimal.Decimal `yaml:"take_profit"`
	Cooldown   time.Duration   `yaml:"cooldown"`
	Notional   decimal.Decimal `yaml:"notional"`

	MinBalance    decimal.Decimal `yaml:"min_balance"`
	MinGasStartup decimal.Decimal `yaml:"min_gas_startup"`
	MinGasMonitor decimal.Decimal `yaml:"min_gas_monitor"`

	EnableTrading bool            `yaml:"enable_trading"`
	EntryBuffer   decimal.Decimal `yaml:"entry_buffer"`
	SettleDelay   time.Duration   `yaml:"settle_delay"`
	OrderTimeout  time.Duration   `yaml:"order_timeout"`
	TickSize      string          `yaml:"tick_size"`
	NegRisk       bool            `yaml:"neg_risk"`

	DecisionInterval time.Duration `yaml:"decision_interval"`
	WarmUp           time.Duration `yaml:"warm_up"`
}

// Feeds configures both streaming connections.
type Feeds struct {
	ProprietaryURL string        `yaml:"proprietary_url"`
	VenueURL       string        `yaml:"venue_url"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
	VenuePing      time.Duration `yaml:"venue_ping"`
}

// Venue configures the order venue, market discovery and chain access.
type Venue struct {
	ClobURL   string  `yaml:"clob_url"`
	GammaURL  string  `yaml:"gamma_url"`
	RPCURL    string  `yaml:"rpc_url"`
	RateLimit float64 `yaml:"rate_limit"`
	RateBurst int     `yaml:"rate_burst"`
	// UseServerTime stamps auth headers with the venue clock instead of ours.
	UseServerTime bool `yaml:"use_server_time"`

	// UpToken/DownToken skip market discovery when both are set.
	UpToken   string `yaml:"up_token"`
	DownToken string `yaml:"down_token"`
}

// Wallet holds signing material. It is normally supplied through the
// environment rather than the YAML file.
type Wallet struct {
	PrivateKey    string `yaml:"private_key"`
	Funder        string `yaml:"funder"`
	SignatureType int    `yaml:"signature_type"`

	APIKey        string `yaml:"api_key"`
	APISecret     string `yaml:"api_secret"`
	APIPassphrase string `yaml:"api_passphrase"`
	APINonce      uint64 `yaml:"api_nonce"`
}

// App captures process-wide runtime settings.
type App struct {
	LogLevel      string        `yaml:"log_level"`
	LogPretty     bool          `yaml:"log_pretty"`
	MetricsAddr   string        `yaml:"metrics_addr"`
	AuditLog      string        `yaml:"audit_log"`
	SnapshotEvery time.Duration `yaml:"snapshot_every"`
	BalanceEvery  time.Duration `yaml:"balance_every"`
}

type Config struct {
	Trading Trading `yaml:"trading"`
	Feeds   Feeds   `yaml:"feeds"`
	Venue   Venue   `yaml:"venue"`
	Wallet  Wallet  `yaml:"wallet"`
	App     App     `yaml:"app"`
}

func Default() Config {
	return Config{
		Trading: Trading{
			Threshold:        decimal.RequireFromString("0.015"),
			StopLoss:         decimal.RequireFromString("0.005"),
			TakeProfit:       decimal.RequireFromString("0.01"),
			Cooldown:         30 * time.Second,
			Notional:         decimal.RequireFromString("5"),
			MinBalance:       decimal.NewFromInt(500),
			MinGasStartup:    decimal.RequireFromString("0.05"),
			MinGasMonitor:    decimal.RequireFromString("0.02"),
			EntryBuffer:      decimal.RequireFromString("0.005"),
			SettleDelay:      3 * time.Second,
			OrderTimeout:     30 * time.Second,
			TickSize:         "0.001",
			DecisionInterval: time.Second,
			WarmUp:           5 * time.Second,
		},
		Feeds: Feeds{
			VenueURL:       DefaultVenueURL,
			ReconnectDelay: 5 * time.Second,
			VenuePing:      5 * time.Second,
		},
		Venue: Venue{
			ClobURL:   clob.DefaultHost,
			GammaURL:  DefaultGammaURL,
			RateLimit: 10,
			RateBurst: 5,
		},
		App: App{
			LogLevel:      "info",
			SnapshotEvery: 30 * time.Second,
			BalanceEvery:  60 * time.Second,
		},
	}
}

// Load reads a YAML file over Default. Keys missing from the file keep
// their defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	file, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	if err := yaml.NewDecoder(file).Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("decode yaml: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overlays environment variables read through getenv.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	env := func(names ...string) string {
		for _, n := range names {
			if v := strings.TrimSpace(getenv(n)); v != "" {
				return v
			}
		}
		return ""
	}
	decimalVar := func(dst *decimal.Decimal, names ...string) error {
		v := env(names...)
		if v == "" {
			return nil
		}
		d, err := decimal.NewFromString(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", names[0], v, err)
		}
		*dst = d
		return nil
	}
	durationVar := func(dst *time.Duration, names ...string) error {
		v := env(names...)
		if v == "" {
			return nil
		}
		d, err := parseSecondsOrDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", names[0], v, err)
		}
		*dst = d
		return nil
	}
	boolVar := func(dst *bool, names ...string) error {
		v := env(names...)
		if v == "" {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", names[0], v, err)
		}
		*dst = b
		return nil
	}
	stringVar := func(dst *string, names ...string) {
		if v := env(names...); v != "" {
			*dst = v
		}
	}

	errs := []error{
		decimalVar(&c.Trading.Threshold, "PRICE_DIFFERENCE_THRESHOLD"),
		decimalVar(&c.Trading.StopLoss, "STOP_LOSS_AMOUNT"),
		decimalVar(&c.Trading.TakeProfit, "TAKE_PROFIT_AMOUNT"),
		durationVar(&c.Trading.Cooldown, "TRADE_COOLDOWN"),
		decimalVar(&c.Trading.Notional, "DEFAULT_TRADE_AMOUNT"),
		decimalVar(&c.Trading.MinBalance, "MIN_SETTLEMENT_BALANCE"),
		boolVar(&c.Trading.EnableTrading, "ENABLE_TRADING"),
		boolVar(&c.Venue.UseServerTime, "CLOB_USE_SERVER_TIME"),
		durationVar(&c.Trading.SettleDelay, "FILL_SETTLE_DELAY"),
		durationVar(&c.Feeds.ReconnectDelay, "FEED_RECONNECT_DELAY"),
		boolVar(&c.App.LogPretty, "LOG_PRETTY"),
	}
	if v := env("CLOB_SIGNATURE_TYPE", "SIGNATURE_TYPE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid signature type env %q: %w", v, err))
		} else {
			c.Wallet.SignatureType = n
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	stringVar(&c.Feeds.ProprietaryURL, "SOFTWARE_WS_URL", "PROPRIETARY_WS_URL")
	stringVar(&c.Feeds.VenueURL, "VENUE_WS_URL", "CLOB_WS_URL")
	stringVar(&c.Venue.ClobURL, "CLOB_API_URL", "CLOB_URL")
	stringVar(&c.Venue.GammaURL, "GAMMA_URL")
	stringVar(&c.Venue.RPCURL, "RPC_URL", "POLYGON_RPC_URL")
	stringVar(&c.Venue.UpToken, "UP_TOKEN_ID")
	stringVar(&c.Venue.DownToken, "DOWN_TOKEN_ID")
	stringVar(&c.Wallet.PrivateKey, "CLOB_PRIVATE_KEY", "PRIVATE_KEY")
	stringVar(&c.Wallet.Funder, "CLOB_FUNDER", "FUNDER")
	stringVar(&c.Wallet.APIKey, "CLOB_API_KEY", "API_KEY")
	stringVar(&c.Wallet.APISecret, "CLOB_SECRET", "SECRET")
	stringVar(&c.Wallet.APIPassphrase, "CLOB_PASSPHRASE", "PASSPHRASE")
	stringVar(&c.App.LogLevel, "LOG_LEVEL")
	stringVar(&c.App.MetricsAddr, "METRICS_ADDR")
	stringVar(&c.App.AuditLog, "TRADES_OUT_FILE")
	return nil
}

// parseSecondsOrDuration accepts a bare number of seconds ("30", "2.5") or
// a Go duration ("30s").
func parseSecondsOrDuration(v string) (time.Duration, error) {
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	return time.ParseDuration(v)
}

// Validate rejects settings the trader cannot run with.
func (c Config) Validate() error {
	var errs []error
	positive := func(name string, d decimal.Decimal) {
		if !d.IsPositive() {
			errs = append(errs, fmt.Errorf("%s must be > 0, got %s", name, d))
		}
	}
	positive("threshold", c.Trading.Threshold)
	positive("stop_loss", c.Trading.StopLoss)
	positive("take_profit", c.Trading.TakeProfit)
	positive("notional", c.Trading.Notional)
	if c.Trading.Threshold.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		errs = append(errs, fmt.Errorf("threshold must be < 1, got %s", c.Trading.Threshold))
	}
	if c.Trading.MinBalance.IsNegative() {
		errs = append(errs, fmt.Errorf("min_balance must be >= 0"))
	}
	if c.Trading.Cooldown < 0 {
		errs = append(errs, fmt.Errorf("cooldown must be >= 0"))
	}
	if c.Trading.EntryBuffer.IsNegative() || c.Trading.EntryBuffer.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		errs = append(errs, fmt.Errorf("entry_buffer must be in [0,1)"))
	}
	if c.Trading.DecisionInterval <= 0 {
		errs = append(errs, fmt.Errorf("decision_interval must be > 0"))
	}
	if c.Feeds.ReconnectDelay <= 0 {
		errs = append(errs, fmt.Errorf("reconnect_delay must be > 0"))
	}
	if _, err := decimal.NewFromString(c.Trading.TickSize); err != nil {
		errs = append(errs, fmt.Errorf("invalid tick_size %q", c.Trading.TickSize))
	}
	if err := wsURL("proprietary_url", c.Feeds.ProprietaryURL); err != nil {
		errs = append(errs, err)
	}
	if err := wsURL("venue_url", c.Feeds.VenueURL); err != nil {
		errs = append(errs, err)
	}
	if strings.TrimSpace(c.Wallet.PrivateKey) == "" {
		errs = append(errs, fmt.Errorf("private key required: set PRIVATE_KEY/CLOB_PRIVATE_KEY"))
	}
	if (c.Venue.UpToken == "") != (c.Venue.DownToken == "") {
		errs = append(errs, fmt.Errorf("up_token and down_token must be set together"))
	}
	return errors.Join(errs...)
}

func wsURL(name, raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("%s required", name)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", name, raw, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("%s must be ws(s), got %q", name, raw)
	}
	return nil
}

// Mode is "live" when orders reach the venue, "paper" otherwise.
func (c Config) Mode() string {
	if c.Trading.EnableTrading {
		return "live"
	}
	return "paper"
}

// ExecutorConfig maps the trading section onto the executor's settings.
func (c Config) ExecutorConfig() executor.Config {
	cfg := executor.DefaultConfig()
	cfg.Cooldown = c.Trading.Cooldown
	cfg.Notional = c.Trading.Notional
	cfg.TakeProfit = c.Trading.TakeProfit
	cfg.StopLoss = c.Trading.StopLoss
	cfg.EntryBuffer = c.Trading.EntryBuffer
	cfg.SettleDelay = c.Trading.SettleDelay
	if c.Trading.OrderTimeout > 0 {
		cfg.OrderTimeout = c.Trading.OrderTimeout
	}
	cfg.Tick = clob.TickConfig{TickSize: c.Trading.TickSize, NegRisk: c.Trading.NegRisk}
	return cfg
}
