package config

import (
	"flag"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Flags binds the command-line overrides. Only flags the user actually
// passed are applied, so unset flags never mask env or YAML values.
type Flags struct {
	fs *flag.FlagSet

	ConfigPath string
	EnvFiles   string

	threshold     string
	stopLoss      string
	takeProfit    string
	notional      string
	cooldown      time.Duration
	enableTrading bool

	proprietaryURL string
	venueURL       string
	clobURL        string
	gammaURL       string
	rpcURL         string
	upToken        string
	downToken      string

	logLevel    string
	logPretty   bool
	metricsAddr string
	auditLog    string
}

func BindFlags(fs *flag.FlagSet) *Flags {
	f := &Flags{fs: fs}
	fs.StringVar(&f.ConfigPath, "config", "", "YAML config file (optional)")
	fs.StringVar(&f.EnvFiles, "env-file", "", "Comma-separated .env files to load (default: .env)")

	fs.StringVar(&f.threshold, "threshold", "", "Divergence threshold in probability units (PRICE_DIFFERENCE_THRESHOLD)")
	fs.StringVar(&f.stopLoss, "stop-loss", "", "Stop-loss distance from entry (STOP_LOSS_AMOUNT)")
	fs.StringVar(&f.takeProfit, "take-profit", "", "Take-profit distance from entry (TAKE_PROFIT_AMOUNT)")
	fs.StringVar(&f.notional, "notional", "", "Notional per trade in settlement currency (DEFAULT_TRADE_AMOUNT)")
	fs.DurationVar(&f.cooldown, "cooldown", 0, "Minimum time between executions (TRADE_COOLDOWN)")
	fs.BoolVar(&f.enableTrading, "enable-trading", false, "Submit real orders; otherwise paper-trade (ENABLE_TRADING)")

	fs.StringVar(&f.proprietaryURL, "proprietary-ws", "", "Proprietary probability feed websocket URL (SOFTWARE_WS_URL)")
	fs.StringVar(&f.venueURL, "venue-ws", "", "Venue market websocket URL (VENUE_WS_URL)")
	fs.StringVar(&f.clobURL, "clob-url", "", "CLOB REST URL (CLOB_API_URL)")
	fs.StringVar(&f.gammaURL, "gamma-url", "", "Gamma API URL (GAMMA_URL)")
	fs.StringVar(&f.rpcURL, "rpc-url", "", "Polygon RPC URL (RPC_URL)")
	fs.StringVar(&f.upToken, "up-token", "", "UP token id; skips market discovery together with --down-token")
	fs.StringVar(&f.downToken, "down-token", "", "DOWN token id")

	fs.StringVar(&f.logLevel, "log-level", "", "Log level: debug|info|warn|error (LOG_LEVEL)")
	fs.BoolVar(&f.logPretty, "log-pretty", false, "Human-readable console logs (LOG_PRETTY)")
	fs.StringVar(&f.metricsAddr, "metrics-addr", "", "Prometheus listen address, empty disables (METRICS_ADDR)")
	fs.StringVar(&f.auditLog, "out", "", "JSONL audit log path (TRADES_OUT_FILE)")
	return f
}

// Apply copies explicitly set flags into cfg. Call after fs.Parse.
func (f *Flags) Apply(cfg *Config) error {
	var err error
	setDecimal := func(dst *decimal.Decimal, name, v string) {
		if err != nil {
			return
		}
		d, perr := decimal.NewFromString(v)
		if perr != nil {
			err = fmt.Errorf("invalid --%s %q: %w", name, v, perr)
			return
		}
		*dst = d
	}
	f.fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "threshold":
			setDecimal(&cfg.Trading.Threshold, fl.Name, f.threshold)
		case "stop-loss":
			setDecimal(&cfg.Trading.StopLoss, fl.Name, f.stopLoss)
		case "take-profit":
			setDecimal(&cfg.Trading.TakeProfit, fl.Name, f.takeProfit)
		case "notional":
			setDecimal(&cfg.Trading.Notional, fl.Name, f.notional)
		case "cooldown":
			cfg.Trading.Cooldown = f.cooldown
		case "enable-trading":
			cfg.Trading.EnableTrading = f.enableTrading
		case "proprietary-ws":
			cfg.Feeds.ProprietaryURL = f.proprietaryURL
		case "venue-ws":
			cfg.Feeds.VenueURL = f.venueURL
		case "clob-url":
			cfg.Venue.ClobURL = f.clobURL
		case "gamma-url":
			cfg.Venue.GammaURL = f.gammaURL
		case "rpc-url":
			cfg.Venue.RPCURL = f.rpcURL
		case "up-token":
			cfg.Venue.UpToken = f.upToken
		case "down-token":
			cfg.Venue.DownToken = f.downToken
		case "log-level":
			cfg.App.LogLevel = f.logLevel
		case "log-pretty":
			cfg.App.LogPretty = f.logPretty
		case "metrics-addr":
			cfg.App.MetricsAddr = f.metricsAddr
		case "out":
			cfg.App.AuditLog = f.auditLog
		}
	})
	return err
}

// Resolve builds the effective configuration: Default, the YAML file when
// --config was given, environment, then flags.
func (f *Flags) Resolve(getenv func(string) string) (Config, error) {
	cfg := Default()
	if f.ConfigPath != "" {
		loaded, err := Load(f.ConfigPath)
		if err != nil {
			return Config{}, err
		}
		cfg = loaded
	}
	if err := cfg.ApplyEnv(getenv); err != nil {
		return Config{}, err
	}
	if err := f.Apply(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
