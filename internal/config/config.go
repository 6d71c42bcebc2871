// Package config provides centralized configuration management.
// This is the SINGLE SOURCE OF TRUTH for all match and server settings.
//
// IMPORTANT: When changing defaults, only modify this file.
// All other parts of the codebase should reference these values.
package config

import (
	"os"
	"strconv"
)

// MatchConfig holds the rules of the single match this process runs.
type MatchConfig struct {
	PlayerLimit      int // Lobby capacity; hitting it starts the match immediately
	CountdownSeconds int // Lobby countdown once at least two players wait
	TickRate         int // Server loop frequency in ticks per second
	Level            int // Maze selection (1-3); 0 means ask on stdin
}

// DefaultMatch returns the classic maze-wars match settings.
func DefaultMatch() MatchConfig {
	return MatchConfig{
		PlayerLimit:      10,
		CountdownSeconds: 20,
		TickRate:         60,
		Level:            0,
	}
}

// MatchFromEnv returns the match configuration with environment overrides.
func MatchFromEnv() MatchConfig {
	cfg := DefaultMatch()

	if v := getEnvInt("PLAYER_LIMIT", 0); v > 0 {
		cfg.PlayerLimit = v
	}
	if v := getEnvInt("COUNTDOWN_SECONDS", 0); v > 0 {
		cfg.CountdownSeconds = v
	}
	if v := getEnvInt("TICK_RATE", 0); v > 0 {
		cfg.TickRate = v
	}
	if v := getEnvInt("LEVEL", 0); v > 0 {
		cfg.Level = v
	}

	return cfg
}

// ServerConfig holds HTTP/websocket listener settings.
type ServerConfig struct {
	Port int
}

// DefaultServer returns the default listener configuration.
func DefaultServer() ServerConfig {
	return ServerConfig{
		Port: 8080,
	}
}

// ServerFromEnv returns the listener configuration with environment overrides.
func ServerFromEnv() ServerConfig {
	cfg := DefaultServer()

	if p := getEnvInt("PORT", 0); p > 0 {
		cfg.Port = p
	}

	return cfg
}

// AuditConfig holds the audit trail settings.
type AuditConfig struct {
	Path    string // JSONL output file
	Enabled bool
}

// DefaultAudit returns the default audit configuration.
func DefaultAudit() AuditConfig {
	return AuditConfig{
		Path:    "match-events.jsonl",
		Enabled: true,
	}
}

// AuditFromEnv returns the audit configuration with environment overrides.
func AuditFromEnv() AuditConfig {
	cfg := DefaultAudit()

	if p := os.Getenv("AUDIT_LOG_PATH"); p != "" {
		cfg.Path = p
	}
	if os.Getenv("AUDIT_LOG_ENABLED") == "false" {
		cfg.Enabled = false
	}

	return cfg
}

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Match  MatchConfig
	Server ServerConfig
	Audit  AuditConfig
}

// Load returns the complete configuration with environment overrides.
func Load() AppConfig {
	return AppConfig{
		Match:  MatchFromEnv(),
		Server: ServerFromEnv(),
		Audit:  AuditFromEnv(),
	}
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}
