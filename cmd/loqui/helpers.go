package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/loqui-chat/loqui-go"
)

// buildClient assembles a client from the config file, with environment
// variables taking precedence. Environment overrides make the CLI usable in
// scripts and CI without touching ~/.loqui.
func buildClient(ctx context.Context) (*loqui.Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	env, err := loqui.LoadEnv(ctx)
	if err != nil {
		return nil, err
	}

	token := cfg.Default.Token
	if env.Token != "" {
		token = env.Token
	}
	if token == "" {
		return nil, fmt.Errorf("no access token configured; run 'loqui init <token>' first")
	}

	var opts []loqui.ClientOption
	baseURL := cfg.Default.BaseURL
	if env.BaseURL != "" {
		baseURL = env.BaseURL
	}
	if baseURL != "" {
		opts = append(opts, loqui.WithBaseURL(baseURL))
	}

	return loqui.NewClient(token, opts...), nil
}

// openCache opens the durable conversation cache. The path comes from the
// environment, then the config file, then defaults to ~/.loqui/cache.db.
func openCache(ctx context.Context) (*loqui.SQLiteStorage, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	env, err := loqui.LoadEnv(ctx)
	if err != nil {
		return nil, err
	}

	path := cfg.Default.CachePath
	if env.CachePath != "" {
		path = env.CachePath
	}
	if path == "" {
		dir, err := configDir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(dir, "cache.db")
	}

	return loqui.NewSQLiteStorage(path)
}

// resolveUserID returns the current user's id, preferring the configured
// value and falling back to a session lookup.
func resolveUserID(ctx context.Context, client *loqui.Client) (string, error) {
	cfg, err := loadConfig()
	if err != nil {
		return "", err
	}
	if cfg.Default.UserID != "" {
		return cfg.Default.UserID, nil
	}

	session, err := client.GetCurrentSession(ctx)
	if err != nil {
		return "", fmt.Errorf("cannot resolve current user: %w", err)
	}
	return session.UserID, nil
}
