package config

import (
	"flag"
	"os"

	"github.com/dmitrijs2005/sirchcoins/internal/flagx"
)

var knownFlags = []string{"-u", "-k", "-p", "-t", "-d", "-q", "-r", "-s", "-l", "-f"}

// parseFlags populates Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-u string     backend base URL
//	-k string     anon (publishable) API key
//	-p string     purchase quote provider
//	-t duration   request timeout
//	-d duration   recipient search debounce
//	-q duration   quote freshness window
//	-r float      function calls per second (0 = unlimited)
//	-s string     local storage file
//	-l string     log level
//	-f string     log format (text|json)
//
// os.Args is filtered with flagx.FilterArgs first so that -c/-e and REPL
// arguments do not interfere.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], knownFlags)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.BackendURL, "u", cfg.BackendURL, "backend base URL")
	fs.StringVar(&cfg.AnonKey, "k", cfg.AnonKey, "anon API key")
	fs.StringVar(&cfg.QuoteProvider, "p", cfg.QuoteProvider, "purchase quote provider")
	fs.DurationVar(&cfg.RequestTimeout, "t", cfg.RequestTimeout, "request timeout")
	fs.DurationVar(&cfg.SearchDebounce, "d", cfg.SearchDebounce, "recipient search debounce")
	fs.DurationVar(&cfg.QuoteTTL, "q", cfg.QuoteTTL, "quote freshness window")
	fs.Float64Var(&cfg.FunctionCallRate, "r", cfg.FunctionCallRate, "function calls per second")
	fs.StringVar(&cfg.StoragePath, "s", cfg.StoragePath, "local storage file")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")
	fs.StringVar(&cfg.LogFormat, "f", cfg.LogFormat, "log format (text|json)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
