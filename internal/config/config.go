// Package config defines all configuration for the arbitrage engine.
// Config is loaded from a YAML file (default: configs/config.yaml) with
// secrets overridable via ARBY_*/BINANCE_*/KRAKEN_*/DB_* environment
// variables, matching the env surface named in the specification.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config is the top-level configuration.
type Config struct {
	DryRun    bool            `mapstructure:"dry_run"`
	Venues    []VenueConfig   `mapstructure:"venues"`
	Routes    RoutesConfig    `mapstructure:"routes"`
	Scanner   ScannerConfig   `mapstructure:"scanner"`
	Execution ExecutionConfig `mapstructure:"execution"`
	Store     StoreConfig     `mapstructure:"store"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
	DB        DBConfig        `mapstructure:"db"`
}

// VenueConfig configures one exchange adapter instance.
type VenueConfig struct {
	Name      string `mapstructure:"name"` // "binance" or "kraken"
	APIKey    string `mapstructure:"api_key"`
	APISecret string `mapstructure:"api_secret"`
	BaseURL   string `mapstructure:"base_url"`
	WSURL     string `mapstructure:"ws_url"`
}

// RoutesConfig selects currencies and optional per-trade base whitelist.
type RoutesConfig struct {
	Currencies    []string          `mapstructure:"currencies"`
	CurrencyBases map[string][]string `mapstructure:"currency_bases"`
}

// ScannerConfig tunes the route-evaluation tick loop.
type ScannerConfig struct {
	TickInterval time.Duration   `mapstructure:"tick_interval"` // default 100ms
	MaxBookAge   time.Duration   `mapstructure:"max_book_age"`  // default 5s
	MinProfit    decimal.Decimal `mapstructure:"-"`             // parsed from MinProfitStr
	MinProfitStr string          `mapstructure:"min_profit"`
	TopN         int             `mapstructure:"top_n"` // order book levels kept, >=10
}

// ExecutionConfig holds the execution timeouts and wallet-refresh settings.
// DirectTimeout and FollowUpTimeout bound the coordinator's wait and the
// WalletRefresh* fields drive the wallet refresher. MaxRetries,
// RetryBaseDelay, RetryMaxDelay and PostPlaceSettleWait are loaded but not
// read by the worker, which uses fixed values: 5 retries, a min(2^n, 30)s
// backoff and a 1s wait after each placement.
type ExecutionConfig struct {
	MaxRetries          int           `mapstructure:"max_retries"`
	RetryBaseDelay      time.Duration `mapstructure:"retry_base_delay"`
	RetryMaxDelay       time.Duration `mapstructure:"retry_max_delay"`
	DirectTimeout       time.Duration `mapstructure:"direct_timeout"`        // 60s
	FollowUpTimeout     time.Duration `mapstructure:"follow_up_timeout"`     // 120s
	PostPlaceSettleWait time.Duration `mapstructure:"post_place_settle_wait"` // 1s
	WalletRefreshDelay  time.Duration `mapstructure:"wallet_refresh_delay"`   // 1s
	WalletRefreshRetries int          `mapstructure:"wallet_refresh_retries"` // 3
}

// StoreConfig sets where opportunity/order-leg/balance records are appended.
type StoreConfig struct {
	DataDir string `mapstructure:"data_dir"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DashboardConfig controls the read-only control-plane HTTP server.
type DashboardConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// DBConfig is accepted and threaded through for a future SQL-backed
// persistence.Sink; no SQL driver is wired since the relational layer is an
// out-of-core external collaborator per spec.
type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
}

// Load reads config from a YAML file with env var overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("ARBY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	applyEnvOverrides(&cfg)

	minProfit, err := decimal.NewFromString(defaultString(cfg.Scanner.MinProfitStr, "0.001"))
	if err != nil {
		return nil, fmt.Errorf("parse scanner.min_profit: %w", err)
	}
	cfg.Scanner.MinProfit = minProfit

	if len(cfg.Routes.Currencies) == 0 {
		cfg.Routes.Currencies = []string{"ETH", "BTC", "XLM", "XRP", "ADA"}
	}

	return &cfg, nil
}

// applyEnvOverrides mirrors the per-venue credential and ARBY_* env vars
// named in the specification. Viper's AutomaticEnv only covers keys present
// in the YAML tree; per-venue secrets and the whitelist string need explicit
// handling since they don't map cleanly onto mapstructure dot-paths.
func applyEnvOverrides(cfg *Config) {
	for i := range cfg.Venues {
		name := strings.ToUpper(cfg.Venues[i].Name)
		if key := os.Getenv(name + "_API_KEY"); key != "" {
			cfg.Venues[i].APIKey = key
		}
		if secret := os.Getenv(name + "_API_SECRET"); secret != "" {
			cfg.Venues[i].APISecret = secret
		}
		if base := os.Getenv(name + "_API_BASE_URL"); base != "" {
			cfg.Venues[i].BaseURL = base
		}
	}

	if dr := os.Getenv("ARBY_DRY_RUN"); dr != "" {
		cfg.DryRun = isTruthy(dr)
	}
	if cur := os.Getenv("ARBY_CURRENCIES"); cur != "" {
		cfg.Routes.Currencies = splitTrim(cur, ",")
	}
	if mp := os.Getenv("ARBY_MIN_PROFIT"); mp != "" {
		cfg.Scanner.MinProfitStr = mp
	}
	if bases := os.Getenv("ARBY_CURRENCY_BASES"); bases != "" {
		cfg.Routes.CurrencyBases = parseCurrencyBases(bases)
	}

	if h := os.Getenv("DB_HOST"); h != "" {
		cfg.DB.Host = h
	}
	if p := os.Getenv("DB_PORT"); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			cfg.DB.Port = n
		}
	}
	if u := os.Getenv("DB_USER"); u != "" {
		cfg.DB.User = u
	}
	if pw := os.Getenv("DB_PASSWORD"); pw != "" {
		cfg.DB.Password = pw
	}
	if n := os.Getenv("DB_NAME"); n != "" {
		cfg.DB.Name = n
	}
}

// parseCurrencyBases parses "TRADE:BASE,BASE;TRADE:BASE" into a whitelist map.
func parseCurrencyBases(s string) map[string][]string {
	result := make(map[string][]string)
	for _, entry := range strings.Split(s, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 2)
		if len(parts) != 2 {
			continue
		}
		trade := strings.TrimSpace(parts[0])
		bases := splitTrim(parts[1], ",")
		if trade != "" && len(bases) > 0 {
			result[trade] = bases
		}
	}
	return result
}

func splitTrim(s, sep string) []string {
	var out []string
	for _, p := range strings.Split(s, sep) {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func isTruthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes":
		return true
	default:
		return false
	}
}

func defaultString(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	if len(c.Venues) < 2 {
		return fmt.Errorf("at least two venues are required")
	}
	for _, v := range c.Venues {
		if v.Name == "" {
			return fmt.Errorf("venue name is required")
		}
		if v.APIKey == "" || v.APISecret == "" {
			return fmt.Errorf("venue %s: api_key/api_secret required (set %s_API_KEY/%s_API_SECRET)",
				v.Name, strings.ToUpper(v.Name), strings.ToUpper(v.Name))
		}
	}
	if len(c.Routes.Currencies) == 0 {
		return fmt.Errorf("routes.currencies must not be empty")
	}
	if c.Scanner.TopN < 10 {
		return fmt.Errorf("scanner.top_n must be >= 10")
	}
	if c.Execution.MaxRetries <= 0 {
		return fmt.Errorf("execution.max_retries must be > 0")
	}
	return nil
}
