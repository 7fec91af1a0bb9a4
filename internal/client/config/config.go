package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/dmitrijs2005/sirchcoins/internal/validation"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "SIRCH_"

// Config holds runtime settings for the wallet CLI.
//
// Units: durations are time.Duration; FunctionCallRate is calls per second
// (0 disables throttling).
type Config struct {
	BackendURL        string        `env:"BACKEND_URL" validate:"required,url"`
	AnonKey           string        `env:"ANON_KEY" validate:"required"`
	QuoteProvider     string        `env:"QUOTE_PROVIDER" validate:"required"`
	RequestTimeout    time.Duration `env:"REQUEST_TIMEOUT" validate:"gt=0"`
	SearchDebounce    time.Duration `env:"SEARCH_DEBOUNCE" validate:"gt=0"`
	QuoteTTL          time.Duration `env:"QUOTE_TTL" validate:"gt=0"`
	FunctionCallRate  float64       `env:"FUNCTION_CALL_RATE" validate:"gte=0"`
	FunctionCallBurst int           `env:"FUNCTION_CALL_BURST" validate:"gte=1"`
	StoragePath       string        `env:"STORAGE_PATH" validate:"required"`
	LogLevel          string        `env:"LOG_LEVEL" validate:"oneof=debug info warn warning error"`
	LogFormat         string        `env:"LOG_FORMAT" validate:"oneof=text json"`
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.BackendURL = "http://127.0.0.1:54321"
	c.AnonKey = ""
	c.QuoteProvider = "stripe"
	c.RequestTimeout = 15 * time.Second
	c.SearchDebounce = time.Second
	c.QuoteTTL = 5 * time.Minute
	c.FunctionCallRate = 5
	c.FunctionCallBurst = 10
	c.StoragePath = defaultStoragePath()
	c.LogLevel = "info"
	c.LogFormat = "text"
}

func defaultStoragePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "sirchcoins.db"
	}
	return filepath.Join(dir, "sirchcoins", "local.db")
}

// Validate reports missing or out-of-range settings.
func (c *Config) Validate() error {
	return validation.Default.Validate(c)
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present), the environment (optionally seeded from a .env file)
// and command-line flags. Later sources take precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseEnv(cfg)
	parseFlags(cfg)
	return cfg
}
