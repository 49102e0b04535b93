package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"mag-systemv1/internal/engine"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Infrastructure
	RedisAddr     string
	RedisPassword string
	SQLitePath    string
	MetricsAddr   string
	GatewayAddr   string

	// Symbols whose bar streams the engine consumes (comma-separated)
	Symbols string

	// Optional path to a YAML file with personality presets
	PersonalitiesPath string

	// Personality preset applied to all engines at startup
	Personality string

	// Notification backends
	TelegramBotToken string
	TelegramChatID   string
	WebhookURL       string

	// Snapshot cadence in seconds (0 disables periodic snapshots)
	SnapshotIntervalSec int

	// Replay mode: when >= 0, the service feeds stored bars from SQLite
	// through the engine at this speed multiplier instead of consuming
	// live Redis streams (0 = as fast as possible). -1 disables.
	ReplaySpeed float64
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		SQLitePath:    getEnv("SQLITE_PATH", "data/signals.db"),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9090"),
		GatewayAddr:   getEnv("GATEWAY_ADDR", ":8080"),

		Symbols: getEnv("SYMBOLS", "BTCUSDT"),

		PersonalitiesPath: getEnv("PERSONALITIES_PATH", ""),
		Personality:       getEnv("PERSONALITY", "middle"),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnv("TELEGRAM_CHAT_ID", ""),
		WebhookURL:       getEnv("WEBHOOK_URL", ""),

		SnapshotIntervalSec: getEnvInt("SNAPSHOT_INTERVAL_SEC", 300),

		ReplaySpeed: getEnvFloat("REPLAY_SPEED", -1),
	}
}

// ParseSymbols parses the Symbols string into a slice of symbol names.
func (c *Config) ParseSymbols() []string {
	parts := strings.Split(c.Symbols, ",")
	symbols := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		symbols = append(symbols, p)
	}
	return symbols
}

// personalitiesFile is the YAML document shape for LoadPersonalities.
type personalitiesFile struct {
	Personalities map[string]engine.Config `yaml:"personalities"`
}

// LoadPersonalities reads named engine presets from a YAML file. Every preset
// must validate as a complete engine configuration.
func LoadPersonalities(path string) (map[string]engine.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read personalities: %w", err)
	}

	var f personalitiesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse personalities: %w", err)
	}
	if len(f.Personalities) == 0 {
		return nil, fmt.Errorf("personalities file %s defines no presets", path)
	}

	for name, cfg := range f.Personalities {
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("personality %q: %w", name, err)
		}
	}
	return f.Personalities, nil
}

// DefaultPersonalities returns the built-in presets used when no YAML file is
// configured. The engine parameters are shared; the tiers differ.
func DefaultPersonalities() map[string]engine.Config {
	conservative := engine.DefaultConfig()
	conservative.Tiers = engine.TierConfig{Full: 40, TopStructPct: 1.0, BottomReentry: 40}

	aggressive := engine.DefaultConfig()
	aggressive.Tiers = engine.TierConfig{Full: 100, TopStructPct: 0.5, BottomReentry: 70}

	middle := engine.DefaultConfig()

	return map[string]engine.Config{
		"conservative": conservative,
		"aggressive":   aggressive,
		"middle":       middle,
	}
}

// ResolvePersonalities loads presets from PersonalitiesPath when set, falling
// back to the built-in defaults.
func (c *Config) ResolvePersonalities() map[string]engine.Config {
	if c.PersonalitiesPath == "" {
		return DefaultPersonalities()
	}
	presets, err := LoadPersonalities(c.PersonalitiesPath)
	if err != nil {
		log.Printf("[config] %v; falling back to built-in presets", err)
		return DefaultPersonalities()
	}
	return presets
}

// EngineConfig resolves the active personality into an engine configuration.
func (c *Config) EngineConfig() engine.Config {
	presets := c.ResolvePersonalities()
	if cfg, ok := presets[c.Personality]; ok {
		return cfg
	}
	log.Printf("[config] unknown personality %q, using middle", c.Personality)
	return engine.DefaultConfig()
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %g", key, v, fallback)
		return fallback
	}
	return f
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}
