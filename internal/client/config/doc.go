// Package config loads runtime configuration for the wallet CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected with -c or -config.
//  3. Environment variables prefixed SIRCH_, optionally seeded from a dotenv
//     file (-e/-env-file, or ./.env when present).
//  4. Command-line flags, which override everything else.
//
// # JSON schema
//
// Durations are strings like "350ms" or integer nanoseconds:
//
//	{
//	  "backend_url": "https://project.example.co",
//	  "anon_key": "public-anon-key",
//	  "quote_provider": "stripe",
//	  "request_timeout": "15s",
//	  "search_debounce": "1s",
//	  "quote_ttl": "5m",
//	  "function_call_rate": 5,
//	  "storage_path": "/home/me/.config/sirchcoins/local.db",
//	  "log_level": "info",
//	  "log_format": "text"
//	}
//
// # Environment
//
//	SIRCH_BACKEND_URL  SIRCH_ANON_KEY  SIRCH_QUOTE_PROVIDER  SIRCH_REQUEST_TIMEOUT
//	SIRCH_SEARCH_DEBOUNCE  SIRCH_QUOTE_TTL  SIRCH_FUNCTION_CALL_RATE
//	SIRCH_FUNCTION_CALL_BURST  SIRCH_STORAGE_PATH  SIRCH_LOG_LEVEL  SIRCH_LOG_FORMAT
package config
