// Package config exposes strongly typed application configuration structs loaded from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Providers accepted by the broker and feed sections.
const (
	ProviderSmartAPI = "smartapi"
	ProviderPaper    = "paper"
	ProviderStub     = "stub"
)

// App captures process-wide runtime settings such as name, environment, metrics, and logging levels.
type App struct {
	Name        string `yaml:"name"`
	Env         string `yaml:"env"`
	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`
	PrettyLogs  bool   `yaml:"pretty_logs"`
}

// Broker selects the order/account API and where its credentials come from.
type Broker struct {
	Provider  string        `yaml:"provider"`
	BaseURL   string        `yaml:"base_url"`
	Exchange  string        `yaml:"exchange"`
	TimeoutMs int           `yaml:"timeout_ms"`
	Env       CredentialEnv `yaml:"env"`
}

// Backoff tunes feed reconnect delays.
type Backoff struct {
	MinMs  int     `yaml:"min_ms"`
	MaxMs  int     `yaml:"max_ms"`
	Factor float64 `yaml:"factor"`
	Jitter float64 `yaml:"jitter"`
}

// Feed describes the market data stream and the order-status stream.
type Feed struct {
	Provider        string  `yaml:"provider"`
	URL             string  `yaml:"url"`
	Mode            int     `yaml:"mode"`
	ExchangeType    int     `yaml:"exchange_type"`
	CorrelationID   string  `yaml:"correlation_id"`
	HeartbeatMs     int     `yaml:"heartbeat_ms"`
	Buffer          int     `yaml:"buffer"`
	StubIntervalMs  int     `yaml:"stub_interval_ms"`
	StubSeed        int64   `yaml:"stub_seed"`
	Backoff         Backoff `yaml:"backoff"`
	OrderUpdatesURL string  `yaml:"order_updates_url"`
}

// Strategy specifies which strategy is active along with its knobs.
type Strategy struct {
	Mode           string  `yaml:"mode"`
	Window         int     `yaml:"window"`
	SignalLog      int     `yaml:"signal_log"`
	BreakoutFactor float64 `yaml:"breakout_factor"`
}

// Execution controls order routing and the trade ledger.
type Execution struct {
	LedgerPath    string  `yaml:"ledger_path"`
	Async         bool    `yaml:"async"`
	QueueSize     int     `yaml:"queue_size"`
	StopLossPct   float64 `yaml:"stop_loss_pct"`
	SkipSeedHedge bool    `yaml:"skip_seed_hedge"`
}

// Risk encodes guard-rails for how much size the executor may take on.
type Risk struct {
	MaxNotionalPerTrade float64 `yaml:"max_notional_per_trade"`
}

// Paper captures paper-trading account settings.
type Paper struct {
	StartingCash         float64 `yaml:"starting_cash"`
	MaxPositionPerSymbol int64   `yaml:"max_position_per_symbol"`
	FillsPath            string  `yaml:"fills_path"`
}

// Config collects every configuration leaf for easy marshaling from YAML.
type Config struct {
	App       App       `yaml:"app"`
	Broker    Broker    `yaml:"broker"`
	Feed      Feed      `yaml:"feed"`
	Strategy  Strategy  `yaml:"strategy"`
	Execution Execution `yaml:"execution"`
	Risk      Risk      `yaml:"risk"`
	Paper     Paper     `yaml:"paper"`
	Symbols   []string  `yaml:"symbols"`
}

// Default returns a configuration with every knob set to its standard value and no symbols.
func Default() Config {
	return Config{
		App: App{Name: "zen-trade", Env: "dev", LogLevel: "info"},
		Broker: Broker{
			Provider:  ProviderSmartAPI,
			BaseURL:   "https://apiconnect.angelone.in",
			Exchange:  "NSE",
			TimeoutMs: 10_000,
			Env:       DefaultCredentialEnv(),
		},
		Feed: Feed{
			Provider:       ProviderSmartAPI,
			URL:            "wss://smartapisocket.angelone.in/smart-stream",
			Mode:           2,
			ExchangeType:   1,
			CorrelationID:  "",
			HeartbeatMs:    10_000,
			Buffer:         1024,
			StubIntervalMs: 500,
			StubSeed:       1,
			Backoff:        Backoff{MinMs: 1_000, MaxMs: 30_000, Factor: 1.8, Jitter: 0.2},

			OrderUpdatesURL: "wss://tns.angelone.in/smart-order-update",
		},
		Strategy: Strategy{
			Mode:           "volume_breakout",
			Window:         30,
			SignalLog:      10,
			BreakoutFactor: 1.1,
		},
		Execution: Execution{
			LedgerPath:  "trades.txt",
			QueueSize:   64,
			StopLossPct: 1,
		},
		Paper: Paper{
			StartingCash: 100_000,
			FillsPath:    "data/paper_fills.jsonl",
		},
	}
}

// Load reads a YAML file from disk over Default and validates the result.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	config := Default()
	if err := yaml.NewDecoder(file).Decode(&config); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// ErrConfigExists is returned by Init when the target file is already present.
var ErrConfigExists = errors.New("config file already exists")

// Init writes the default configuration with the given symbols to path. An existing file is kept
// unless force is set.
func Init(path string, symbols []string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%w: %s", ErrConfigExists, path)
		}
	}
	cfg := Default()
	cfg.Symbols = symbols
	if err := cfg.Validate(); err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
	}
	return Save(path, &cfg)
}

// Save persists a Config struct to disk as YAML.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Validate reports every problem with the configuration at once.
func (c *Config) Validate() error {
	var errs []error
	if len(c.Symbols) == 0 {
		errs = append(errs, errors.New("symbols: at least one symbol is required"))
	}
	seen := make(map[string]bool, len(c.Symbols))
	for _, raw := range c.Symbols {
		spec, err := ParseSymbol(raw)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if seen[spec.Name] {
			errs = append(errs, fmt.Errorf("symbols: duplicate %q", spec.Name))
		}
		seen[spec.Name] = true
	}
	switch c.Broker.Provider {
	case ProviderSmartAPI, ProviderPaper:
	default:
		errs = append(errs, fmt.Errorf("broker.provider: unknown %q", c.Broker.Provider))
	}
	switch c.Feed.Provider {
	case ProviderSmartAPI, ProviderStub:
	default:
		errs = append(errs, fmt.Errorf("feed.provider: unknown %q", c.Feed.Provider))
	}
	if c.Strategy.Window <= 0 {
		errs = append(errs, fmt.Errorf("strategy.window: must be positive, got %d", c.Strategy.Window))
	}
	if c.Strategy.SignalLog <= 0 {
		errs = append(errs, fmt.Errorf("strategy.signal_log: must be positive, got %d", c.Strategy.SignalLog))
	}
	if c.Strategy.BreakoutFactor <= 0 {
		errs = append(errs, fmt.Errorf("strategy.breakout_factor: must be positive, got %v", c.Strategy.BreakoutFactor))
	}
	if c.Execution.StopLossPct < 0 {
		errs = append(errs, fmt.Errorf("execution.stop_loss_pct: must not be negative, got %v", c.Execution.StopLossPct))
	}
	if c.Risk.MaxNotionalPerTrade < 0 {
		errs = append(errs, fmt.Errorf("risk.max_notional_per_trade: must not be negative"))
	}
	return errors.Join(errs...)
}

// SymbolSpec is one configured symbol: a stock name to resolve, or a name with an explicit token.
type SymbolSpec struct {
	Name  string
	Token string
}

// ParseSymbol accepts "NAME" or "NAME:TOKEN".
func ParseSymbol(raw string) (SymbolSpec, error) {
	name, token, _ := strings.Cut(strings.TrimSpace(raw), ":")
	name = strings.ToUpper(strings.TrimSpace(name))
	token = strings.TrimSpace(token)
	if name == "" {
		return SymbolSpec{}, fmt.Errorf("symbols: empty name in %q", raw)
	}
	if strings.Contains(raw, ":") && token == "" {
		return SymbolSpec{}, fmt.Errorf("symbols: empty token in %q", raw)
	}
	return SymbolSpec{Name: name, Token: token}, nil
}

// SymbolSpecs parses the configured symbols. Call Validate first.
func (c *Config) SymbolSpecs() []SymbolSpec {
	out := make([]SymbolSpec, 0, len(c.Symbols))
	for _, raw := range c.Symbols {
		if spec, err := ParseSymbol(raw); err == nil {
			out = append(out, spec)
		}
	}
	return out
}
