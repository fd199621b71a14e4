package loqui

import (
	"context"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// EnvConfig holds client settings read from the environment. A .env file in
// the working directory is honored when present.
type EnvConfig struct {
	BaseURL   string `env:"LOQUI_BASE_URL"`
	Token     string `env:"LOQUI_TOKEN"`
	CachePath string `env:"LOQUI_CACHE_PATH"`
}

// LoadEnv reads EnvConfig from the process environment.
func LoadEnv(ctx context.Context) (EnvConfig, error) {
	_ = godotenv.Load()

	var cfg EnvConfig
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return EnvConfig{}, fmt.Errorf("parsing env vars: %w", err)
	}
	return cfg, nil
}
