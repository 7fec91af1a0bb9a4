package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, dir, name string, data map[string]any) string {
	t.Helper()
	if dir == "" {
		dir = t.TempDir()
	}
	if name == "" {
		name = "cfg.json"
	}
	path := filepath.Join(dir, name)
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJson_SourcesAndPrecedence(t *testing.T) {
	dir := t.TempDir()
	pathFlag := writeTempJSON(t, dir, "flag.json", map[string]any{
		"backend_url":        "https://project.example",
		"anon_key":           "anon",
		"request_timeout":    "3s",
		"search_debounce":    350000000,
		"quote_ttl":          "1m",
		"function_call_rate": 0,
		"log_format":         "json",
	})

	t.Run("loads from flags", func(t *testing.T) {
		withArgs(t, "-config", pathFlag)

		cfg := &Config{}
		cfg.LoadDefaults()
		want := *cfg
		want.BackendURL = "https://project.example"
		want.AnonKey = "anon"
		want.RequestTimeout = 3 * time.Second
		want.SearchDebounce = 350 * time.Millisecond
		want.QuoteTTL = time.Minute
		want.FunctionCallRate = 0
		want.LogFormat = "json"

		parseJson(cfg)

		assert.Empty(t, cmp.Diff(want, *cfg))
	})

	t.Run("short flag form", func(t *testing.T) {
		withArgs(t, "-c="+pathFlag)

		cfg := &Config{}
		parseJson(cfg)
		assert.Equal(t, "https://project.example", cfg.BackendURL)
	})

	t.Run("no CONFIG and no flags → no changes", func(t *testing.T) {
		withArgs(t)

		cfg := &Config{
			BackendURL:     "https://defaults.example",
			RequestTimeout: 42 * time.Second,
		}
		parseJson(cfg)

		assert.Equal(t, "https://defaults.example", cfg.BackendURL)
		assert.Equal(t, 42*time.Second, cfg.RequestTimeout)
	})

	t.Run("invalid JSON → panics", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{ this is not valid json`), 0o600))
		withArgs(t, "-config", bad)

		cfg := &Config{}
		require.Panics(t, func() { parseJson(cfg) })
	})

	t.Run("missing file → panics", func(t *testing.T) {
		withArgs(t, "-c", filepath.Join(dir, "absent.json"))
		require.Panics(t, func() { parseJson(&Config{}) })
	})
}
