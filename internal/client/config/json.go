package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/sirchcoins/internal/flagx"
	"github.com/dmitrijs2005/sirchcoins/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Durations are
// timex.Duration so the file may say "350ms" or give nanoseconds. Pointer
// fields distinguish "absent" from "zero".
type JsonConfig struct {
	BackendURL        *string         `json:"backend_url"`
	AnonKey           *string         `json:"anon_key"`
	QuoteProvider     *string         `json:"quote_provider"`
	RequestTimeout    *timex.Duration `json:"request_timeout"`
	SearchDebounce    *timex.Duration `json:"search_debounce"`
	QuoteTTL          *timex.Duration `json:"quote_ttl"`
	FunctionCallRate  *float64        `json:"function_call_rate"`
	FunctionCallBurst *int            `json:"function_call_burst"`
	StoragePath       *string         `json:"storage_path"`
	LogLevel          *string         `json:"log_level"`
	LogFormat         *string         `json:"log_format"`
}

// parseJson overlays Config with values loaded from the JSON file named by
// -c or -config. Without the flag nothing happens. Panics on read or
// unmarshal errors.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	setString(&cfg.BackendURL, jc.BackendURL)
	setString(&cfg.AnonKey, jc.AnonKey)
	setString(&cfg.QuoteProvider, jc.QuoteProvider)
	setString(&cfg.StoragePath, jc.StoragePath)
	setString(&cfg.LogLevel, jc.LogLevel)
	setString(&cfg.LogFormat, jc.LogFormat)
	if jc.RequestTimeout != nil {
		cfg.RequestTimeout = jc.RequestTimeout.Duration
	}
	if jc.SearchDebounce != nil {
		cfg.SearchDebounce = jc.SearchDebounce.Duration
	}
	if jc.QuoteTTL != nil {
		cfg.QuoteTTL = jc.QuoteTTL.Duration
	}
	if jc.FunctionCallRate != nil {
		cfg.FunctionCallRate = *jc.FunctionCallRate
	}
	if jc.FunctionCallBurst != nil {
		cfg.FunctionCallBurst = *jc.FunctionCallBurst
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
