// Package config loads application settings from a YAML file, MEMORA_
// environment variables and command-line flags, in that order of
// precedence (flags win).
package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/conorfennell/memora/internal/queue"
)

// EnvPrefix is stripped from environment variables before they are mapped
// to keys: MEMORA_NEW_CARDS_PER_DAY sets new-cards-per-day.
const EnvPrefix = "MEMORA_"

// Config is the application configuration.
type Config struct {
	DB             string `koanf:"db" validate:"required"`
	Addr           string `koanf:"addr" validate:"required,hostname_port"`
	LogLevel       string `koanf:"log-level" validate:"oneof=debug info warn error"`
	ReposDir       string `koanf:"repos-dir" validate:"required"`
	NewCardsPerDay int    `koanf:"new-cards-per-day" validate:"gte=0"`
	ReviewLimit    int    `koanf:"review-limit" validate:"gte=0"`
	ExtraNewCards  int    `koanf:"extra-new-cards" validate:"gte=1"`
}

// Settings returns the queue limits the study session is built with.
func (c *Config) Settings() queue.Settings {
	return queue.Settings{
		NewCardsPerDay: c.NewCardsPerDay,
		ReviewLimit:    c.ReviewLimit,
	}
}

// Flags returns a flag set carrying every configuration key. Callers may
// add their own flags before parsing it.
func Flags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("memora", pflag.ContinueOnError)
	fs.String("config", "", "Path to a YAML config file")
	fs.String("db", "memora.db", "Path to the SQLite database file")
	fs.String("addr", "localhost:8080", "Address the web server listens on")
	fs.String("log-level", "info", "Log level: debug, info, warn or error")
	fs.String("repos-dir", "repos", "Directory git sources are cloned into")
	fs.Int("new-cards-per-day", 20, "New cards introduced per day")
	fs.Int("review-limit", 0, "Maximum cards in a freshly built queue, 0 for no limit")
	fs.Int("extra-new-cards", queue.ExtraBatchSize, "New cards added by one study-more request")
	return fs
}

// Load builds the configuration from a parsed flag set. The YAML file named
// by --config is read first when given, then the environment, then flags
// that were set explicitly. Flag defaults fill whatever is left.
func Load(fs *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	path, err := fs.GetString("config")
	if err != nil {
		return nil, fmt.Errorf("failed to read config flag: %w", err)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	if err := k.Load(posflag.Provider(fs, ".", k), nil); err != nil {
		return nil, fmt.Errorf("failed to load flags: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func envKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(s), "_", "-")
}

// NewLogger returns a text logger writing to w at the named level.
func NewLogger(level string, w io.Writer) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}
