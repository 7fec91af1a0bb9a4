package config

import (
	"errors"
	"io/fs"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/dmitrijs2005/sirchcoins/internal/flagx"
)

// parseEnv overlays Config with SIRCH_* environment variables. A dotenv file
// named by -e/-env-file is loaded first and must exist; otherwise ./.env is
// loaded when present. Variables already in the environment win over the
// file. Panics on unreadable files or unparsable values.
func parseEnv(cfg *Config) {
	if path := flagx.EnvFileFlags(); path != "" {
		if err := godotenv.Load(path); err != nil {
			panic(err)
		}
	} else if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		panic(err)
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		panic(err)
	}
}
