// Package config loads the trader configuration from defaults, a yaml file,
// command line flags and the environment, in that order of precedence.
package config

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/vadiminshakov/autotrader/internal/domain"
)

// Environment variables.
const (
	EnvAPIKey     = "OKX_API_KEY"
	EnvAPISecret  = "OKX_API_SECRET"
	EnvPassphrase = "OKX_API_PASSPHRASE"
	EnvDemo       = "OKX_DEMO"
	EnvLLMAPIKey  = "LLM_API_KEY"
)

// Recommendation providers.
const (
	ProviderAgent  = "agent"
	ProviderLLM    = "llm"
	ProviderGemini = "gemini"
	ProviderNoop   = "noop"
)

// Market data providers.
const (
	MarketOKX         = "okx"
	MarketCoinGecko   = "coingecko"
	MarketBinance     = "binance"
	MarketBybit       = "bybit"
	MarketHyperliquid = "hyperliquid"
)

// Cycle log formats.
const (
	LogFormatWAL   = "wal"
	LogFormatJSONL = "jsonl"
)

type Config struct {
	Query     string
	Interval  time.Duration
	Simulate  bool
	Demo      bool
	AgentPath string
	Quote     string
	// MaxCycles stops the loop after this many cycles, zero runs until shutdown.
	MaxCycles int
	Setup     bool

	Risk           RiskConfig
	SupportedCoins []string
	Recommendation RecommendationConfig
	MarketData     MarketDataConfig
	Retry          RetryConfig
	Log            LogConfig
	OKX            OKXConfig

	ShutdownGrace          time.Duration
	MetricsAddr            string
	Tracing                bool
	AuthWarnThreshold      int
	SimulateInitialBalance decimal.Decimal
	// SimulateStateDir keeps the paper wallet between runs, empty keeps it in memory.
	SimulateStateDir       string

	Credential domain.Credential
	LLMAPIKey  string

	raw ConfigTmp
}

type RiskConfig struct {
	MaxTradeSizeUSD          decimal.Decimal
	RiskTolerance            decimal.Decimal
	BlockOnDegradedValuation bool
}

type RecommendationConfig struct {
	Provider     string
	AgentCommand string
	LLMAPIURL    string
	Model        string
	Timeout      time.Duration
}

type MarketDataConfig struct {
	Provider string
	BaseURL  string
	APIKey   string
	// PriceIDs maps a symbol to the provider id, e.g. NEAR: near.
	PriceIDs map[string]string
}

type RetryConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

type LogConfig struct {
	Dir      string
	Format   string
	Level    string
	Encoding string
}

type OKXConfig struct {
	BaseURL   string
	SyncClock bool
	// RateLimit requests per second, zero disables the limiter.
	RateLimit float64
}

// ConfigTmp is the yaml form of Config, values are kept raw until parsed.
type ConfigTmp struct {
	Query                  string            `yaml:"query,omitempty"`
	Interval               int               `yaml:"interval,omitempty"`
	Simulate               bool              `yaml:"simulate,omitempty"`
	Demo                   *bool             `yaml:"demo,omitempty"`
	AgentPath              string            `yaml:"agent_path,omitempty"`
	QuoteCurrency          string            `yaml:"quote_currency,omitempty"`
	MaxCycles              int               `yaml:"max_cycles,omitempty"`
	Risk                   RiskTmp           `yaml:"risk,omitempty"`
	SupportedCoins         []string          `yaml:"supported_coins,omitempty"`
	Recommendation         RecommendationTmp `yaml:"recommendation,omitempty"`
	MarketData             MarketDataTmp     `yaml:"market_data,omitempty"`
	Retry                  RetryTmp          `yaml:"retry,omitempty"`
	Log                    LogTmp            `yaml:"log,omitempty"`
	ShutdownGrace          string            `yaml:"shutdown_grace,omitempty"`
	MetricsAddr            string            `yaml:"metrics_addr,omitempty"`
	Tracing                bool              `yaml:"tracing,omitempty"`
	OKX                    OKXTmp            `yaml:"okx,omitempty"`
	AuthWarnThreshold      int               `yaml:"auth_warn_threshold,omitempty"`
	SimulateInitialBalance string            `yaml:"simulate_initial_balance,omitempty"`
	SimulateStateDir       string            `yaml:"simulate_state_dir,omitempty"`
}

type RiskTmp struct {
	MaxTradeSizeUSD          string `yaml:"max_trade_size_usd,omitempty"`
	RiskTolerance            string `yaml:"risk_tolerance,omitempty"`
	BlockOnDegradedValuation bool   `yaml:"block_on_degraded_valuation,omitempty"`
}

type RecommendationTmp struct {
	Provider     string `yaml:"provider,omitempty"`
	AgentCommand string `yaml:"agent_command,omitempty"`
	LLMAPIURL    string `yaml:"llm_api_url,omitempty"`
	Model        string `yaml:"model,omitempty"`
	Timeout      string `yaml:"timeout,omitempty"`
}

type MarketDataTmp struct {
	Provider string            `yaml:"provider,omitempty"`
	BaseURL  string            `yaml:"base_url,omitempty"`
	APIKey   string            `yaml:"api_key,omitempty"`
	PriceIDs map[string]string `yaml:"price_ids,omitempty"`
}

type RetryTmp struct {
	MaxRetries      *int   `yaml:"max_retries,omitempty"`
	InitialInterval string `yaml:"initial_interval,omitempty"`
	MaxInterval     string `yaml:"max_interval,omitempty"`
}

type LogTmp struct {
	Dir      string `yaml:"dir,omitempty"`
	Format   string `yaml:"format,omitempty"`
	Level    string `yaml:"level,omitempty"`
	Encoding string `yaml:"encoding,omitempty"`
}

type OKXTmp struct {
	BaseURL   string `yaml:"base_url,omitempty"`
	SyncClock *bool  `yaml:"sync_clock,omitempty"`
	RateLimit string `yaml:"rate_limit,omitempty"`
}

// Defaults.
const (
	DefaultInterval          = 60 * time.Minute
	DefaultQuote             = "USDT"
	DefaultMaxTradeSizeUSD   = "1000"
	DefaultShutdownGrace     = 10 * time.Second
	DefaultAuthWarnThreshold = 3
	DefaultInitialBalance    = "10000"
	DefaultRecommendTimeout  = 5 * time.Minute
	DefaultLogDir            = "./cyclelog"
	DefaultOKXRateLimit      = "10"
	defaultMaxRetries        = 3
	defaultInitialRetry      = time.Second
	defaultMaxRetry          = 30 * time.Second
	defaultLLMAPIURL         = "https://openrouter.ai/api/v1/chat/completions"
)

// Load builds the configuration from command line args (without the program
// name) and the environment. A .env file in the working directory is loaded
// first, existing variables win. The result is not validated, see Validate.
func Load(args []string, getenv func(string) string) (Config, error) {
	fs := flag.NewFlagSet("autotrader", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	configPath := fs.String("config", "", "path to yaml config")
	query := fs.String("query", "", "trading strategy in natural language")
	interval := fs.Int("interval", 0, "minutes between cycle starts")
	simulate := fs.Bool("simulate", false, "simulate orders on a paper wallet")
	agentPath := fs.String("agent-path", "", "agent to ask for recommendations")
	setup := fs.Bool("setup", false, "run the interactive setup form")
	cycles := fs.Int("cycles", 0, "stop after this many cycles")

	if err := fs.Parse(args); err != nil {
		return Config{}, fmt.Errorf("%w: %v", domain.ErrConfiguration, err)
	}

	tmp := ConfigTmp{}
	if *configPath != "" {
		var err error
		tmp, err = ReadYaml(*configPath)
		if err != nil {
			return Config{}, err
		}
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "query":
			tmp.Query = *query
		case "interval":
			tmp.Interval = *interval
		case "simulate":
			tmp.Simulate = *simulate
		case "agent-path":
			tmp.AgentPath = *agentPath
		case "cycles":
			tmp.MaxCycles = *cycles
		}
	})
	if rest := fs.Args(); len(rest) > 0 {
		tmp.Query = strings.Join(rest, " ")
	}

	cfg, err := Parse(tmp)
	if err != nil {
		return Config{}, err
	}
	cfg.Setup = *setup

	if err := cfg.applyEnv(getenv); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// LoadDotEnv loads .env into the process environment when present.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("%w: load %s: %v", domain.ErrConfiguration, path, err)
	}
	return nil
}

// ReadYaml reads a yaml config file.
func ReadYaml(path string) (ConfigTmp, error) {
	var tmp ConfigTmp

	f, err := os.ReadFile(path)
	if err != nil {
		return tmp, fmt.Errorf("%w: read config: %v", domain.ErrConfiguration, err)
	}
	if err := yaml.Unmarshal(f, &tmp); err != nil {
		return tmp, fmt.Errorf("%w: parse yaml config %s: %v", domain.ErrConfiguration, path, err)
	}
	return tmp, nil
}

// WriteYaml writes tmp as a yaml config file.
func WriteYaml(path string, tmp ConfigTmp) error {
	data, err := yaml.Marshal(tmp)
	if err != nil {
		return fmt.Errorf("failed to generate yaml: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

// Parse converts raw values into a Config with defaults applied.
func Parse(c ConfigTmp) (Config, error) {
	cfg := Config{
		Query:          strings.TrimSpace(c.Query),
		Interval:       DefaultInterval,
		Simulate:       c.Simulate,
		Demo:           true,
		AgentPath:      c.AgentPath,
		Quote:          strings.ToUpper(orDefault(c.QuoteCurrency, DefaultQuote)),
		MaxCycles:      c.MaxCycles,
		SupportedCoins: upperAll(c.SupportedCoins),
		Recommendation: RecommendationConfig{
			Provider:     strings.ToLower(orDefault(c.Recommendation.Provider, ProviderAgent)),
			AgentCommand: c.Recommendation.AgentCommand,
			LLMAPIURL:    orDefault(c.Recommendation.LLMAPIURL, defaultLLMAPIURL),
			Model:        c.Recommendation.Model,
		},
		MarketData: MarketDataConfig{
			Provider: strings.ToLower(orDefault(c.MarketData.Provider, MarketOKX)),
			BaseURL:  c.MarketData.BaseURL,
			APIKey:   c.MarketData.APIKey,
			PriceIDs: make(map[string]string, len(c.MarketData.PriceIDs)),
		},
		Retry: RetryConfig{MaxRetries: defaultMaxRetries},
		Log: LogConfig{
			Dir:      orDefault(c.Log.Dir, DefaultLogDir),
			Format:   strings.ToLower(orDefault(c.Log.Format, LogFormatWAL)),
			Level:    orDefault(c.Log.Level, "info"),
			Encoding: orDefault(c.Log.Encoding, "json"),
		},
		OKX: OKXConfig{
			BaseURL:   c.OKX.BaseURL,
			SyncClock: true,
		},
		MetricsAddr:       c.MetricsAddr,
		Tracing:           c.Tracing,
		SimulateStateDir:  c.SimulateStateDir,
		AuthWarnThreshold: DefaultAuthWarnThreshold,
		raw:               c,
	}

	if c.Interval != 0 {
		cfg.Interval = time.Duration(c.Interval) * time.Minute
	}
	if c.Interval < 0 {
		return Config{}, fmt.Errorf("%w: interval must be positive minutes, got %d", domain.ErrConfiguration, c.Interval)
	}
	if c.Demo != nil {
		cfg.Demo = *c.Demo
	}
	if c.OKX.SyncClock != nil {
		cfg.OKX.SyncClock = *c.OKX.SyncClock
	}
	if c.AuthWarnThreshold > 0 {
		cfg.AuthWarnThreshold = c.AuthWarnThreshold
	}
	if c.Retry.MaxRetries != nil {
		cfg.Retry.MaxRetries = *c.Retry.MaxRetries
	}
	for sym, id := range c.MarketData.PriceIDs {
		cfg.MarketData.PriceIDs[strings.ToUpper(sym)] = id
	}

	var err error
	if cfg.Risk.MaxTradeSizeUSD, err = parseDecimal("risk.max_trade_size_usd", c.Risk.MaxTradeSizeUSD, DefaultMaxTradeSizeUSD); err != nil {
		return Config{}, err
	}
	if cfg.Risk.RiskTolerance, err = parseDecimal("risk.risk_tolerance", c.Risk.RiskTolerance, "0"); err != nil {
		return Config{}, err
	}
	cfg.Risk.BlockOnDegradedValuation = c.Risk.BlockOnDegradedValuation

	if cfg.SimulateInitialBalance, err = parseDecimal("simulate_initial_balance", c.SimulateInitialBalance, DefaultInitialBalance); err != nil {
		return Config{}, err
	}

	rateLimit, err := parseDecimal("okx.rate_limit", c.OKX.RateLimit, DefaultOKXRateLimit)
	if err != nil {
		return Config{}, err
	}
	cfg.OKX.RateLimit = rateLimit.InexactFloat64()

	if cfg.ShutdownGrace, err = parseDuration("shutdown_grace", c.ShutdownGrace, DefaultShutdownGrace); err != nil {
		return Config{}, err
	}
	if cfg.Recommendation.Timeout, err = parseDuration("recommendation.timeout", c.Recommendation.Timeout, DefaultRecommendTimeout); err != nil {
		return Config{}, err
	}
	if cfg.Retry.InitialInterval, err = parseDuration("retry.initial_interval", c.Retry.InitialInterval, defaultInitialRetry); err != nil {
		return Config{}, err
	}
	if cfg.Retry.MaxInterval, err = parseDuration("retry.max_interval", c.Retry.MaxInterval, defaultMaxRetry); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if getenv == nil {
		getenv = os.Getenv
	}

	c.Credential = domain.Credential{
		APIKey:     strings.TrimSpace(getenv(EnvAPIKey)),
		APISecret:  strings.TrimSpace(getenv(EnvAPISecret)),
		Passphrase: strings.TrimSpace(getenv(EnvPassphrase)),
	}
	c.LLMAPIKey = getenv(EnvLLMAPIKey)

	if v := getenv(EnvDemo); v != "" {
		demo, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: %s must be a boolean, got %q", domain.ErrConfiguration, EnvDemo, v)
		}
		c.Demo = demo
	}
	return nil
}

// Validate checks the configuration before any network activity.
func (c Config) Validate() error {
	var problems []string

	if c.Query == "" {
		problems = append(problems, "query is required (--query or positional words)")
	}
	if c.Interval <= 0 {
		problems = append(problems, "interval must be positive")
	}
	if c.Quote == "" {
		problems = append(problems, "quote_currency is required")
	}
	if !c.Risk.MaxTradeSizeUSD.IsPositive() {
		problems = append(problems, "risk.max_trade_size_usd must be positive")
	}
	if c.Risk.RiskTolerance.IsNegative() || c.Risk.RiskTolerance.GreaterThan(decimal.NewFromInt(1)) {
		problems = append(problems, "risk.risk_tolerance must be within [0, 1]")
	}
	if c.Retry.MaxRetries < 0 {
		problems = append(problems, "retry.max_retries must not be negative")
	}
	if c.ShutdownGrace < 0 {
		problems = append(problems, "shutdown_grace must not be negative")
	}
	if c.MaxCycles < 0 {
		problems = append(problems, "max_cycles must not be negative")
	}

	switch c.Recommendation.Provider {
	case ProviderAgent, ProviderGemini, ProviderNoop:
	case ProviderLLM:
		if c.Recommendation.Model == "" {
			problems = append(problems, "recommendation.model is required for the llm provider")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown recommendation.provider %q", c.Recommendation.Provider))
	}

	switch c.MarketData.Provider {
	case MarketOKX, MarketCoinGecko, MarketBinance, MarketBybit, MarketHyperliquid:
	default:
		problems = append(problems, fmt.Sprintf("unknown market_data.provider %q", c.MarketData.Provider))
	}

	switch c.Log.Format {
	case LogFormatWAL, LogFormatJSONL:
	default:
		problems = append(problems, fmt.Sprintf("unknown log.format %q", c.Log.Format))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", domain.ErrConfiguration, strings.Join(problems, "; "))
	}

	if c.Credential.Empty() {
		if !c.Simulate {
			return fmt.Errorf("%w: %s, %s and %s are required unless --simulate is set",
				domain.ErrConfiguration, EnvAPIKey, EnvAPISecret, EnvPassphrase)
		}
		return nil
	}
	return c.Credential.Validate()
}

// Raw returns the yaml form the configuration was parsed from, with flag
// overrides applied.
func (c Config) Raw() ConfigTmp {
	return c.raw
}

func parseDecimal(name, raw, def string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(orDefault(strings.TrimSpace(raw), def))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: incorrect '%s' param (must be a decimal), error: %v", domain.ErrConfiguration, name, err)
	}
	return d, nil
}

func parseDuration(name, raw string, def time.Duration) (time.Duration, error) {
	if strings.TrimSpace(raw) == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: incorrect '%s' param (e.g. 10s, 1m), error: %v", domain.ErrConfiguration, name, err)
	}
	return d, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func upperAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
