// Package config loads application configuration from Viper-managed
// sources: the config file, CLAIMPILOT_ environment variables and flag
// bindings.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/clarivue/claimpilot/internal/common"
	"github.com/clarivue/claimpilot/internal/model"
)

// Config is the resolved application configuration.
type Config struct {
	DatabasePath     string
	ServerAddr       string
	AIProvider       string
	AIAPIKey         string
	AIModel          string
	KeywordsDir      string
	MatcherThreshold float64
	MatcherSources   []string
	AITimeout        time.Duration
	LogLevel         string
	LogFormat        string
}

// Load resolves configuration from Viper. Defaults cover everything except
// the AI API key, which must come from config or environment.
func Load() (*Config, error) {
	viper.SetDefault("database.path", "~/.local/share/claimpilot/claimpilot.db")
	viper.SetDefault("server.addr", ":8080")
	viper.SetDefault("ai.provider", "gemini")
	viper.SetDefault("ai.timeout", "3m")
	viper.SetDefault("matcher.threshold", 0.75)
	viper.SetDefault("matcher.sources", []string{model.SourceReference, model.SourceInternal})
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "console")

	cfg := &Config{
		DatabasePath:     ExpandPath(viper.GetString("database.path")),
		ServerAddr:       viper.GetString("server.addr"),
		AIProvider:       viper.GetString("ai.provider"),
		AIAPIKey:         viper.GetString("ai.api_key"),
		AIModel:          viper.GetString("ai.model"),
		KeywordsDir:      ExpandPath(viper.GetString("keywords.dir")),
		MatcherThreshold: viper.GetFloat64("matcher.threshold"),
		MatcherSources:   viper.GetStringSlice("matcher.sources"),
		AITimeout:        viper.GetDuration("ai.timeout"),
		LogLevel:         viper.GetString("logging.level"),
		LogFormat:        viper.GetString("logging.format"),
	}

	// Provider key env fallbacks, checked in provider-specific order.
	if cfg.AIAPIKey == "" {
		switch cfg.AIProvider {
		case "openai":
			cfg.AIAPIKey = os.Getenv("OPENAI_API_KEY")
		default:
			cfg.AIAPIKey = os.Getenv("GEMINI_API_KEY")
		}
	}

	if cfg.MatcherThreshold <= 0 || cfg.MatcherThreshold > 1 {
		return nil, common.NewUserError("matcher.threshold must be between 0 and 1", common.ErrInvalidConfig)
	}
	if len(cfg.MatcherSources) == 0 {
		return nil, common.NewUserError("matcher.sources cannot be empty", common.ErrInvalidConfig)
	}

	return cfg, nil
}

// ExpandPath expands a leading ~ and any $VAR environment references in a
// file path.
func ExpandPath(path string) string {
	switch {
	case path == "":
		return path
	case path == "~":
		if home, err := os.UserHomeDir(); err == nil {
			path = home
		}
	case strings.HasPrefix(path, "~/"):
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}
	return os.ExpandEnv(path)
}
