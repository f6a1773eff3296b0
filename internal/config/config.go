// Package config loads process configuration from RENDEZVOUS_* environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/Wyydra/rendezvous/internal/core/domain"
	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog"
)

// Server configures cmd/server.
type Server struct {
	Addr      string        `env:"RENDEZVOUS_ADDR"        envDefault:":8080"`
	APIKey    string        `env:"RENDEZVOUS_API_KEY"`
	APISecret string        `env:"RENDEZVOUS_API_SECRET"`
	TokenTTL  time.Duration `env:"RENDEZVOUS_TOKEN_TTL"   envDefault:"6h"`
	LobbyRoom string        `env:"RENDEZVOUS_LOBBY_ROOM"  envDefault:"lobby"`
	StaticDir string        `env:"RENDEZVOUS_STATIC_DIR"  envDefault:"./static"`
	LogLevel  string        `env:"RENDEZVOUS_LOG_LEVEL"   envDefault:"info"`
}

// Client configures the participant CLI.
type Client struct {
	URL               string        `env:"RENDEZVOUS_URL"                 envDefault:"http://localhost:8080"`
	LobbyRoom         string        `env:"RENDEZVOUS_LOBBY_ROOM"          envDefault:"lobby"`
	CallTimeout       time.Duration `env:"RENDEZVOUS_CALL_TIMEOUT"        envDefault:"30s"`
	RoomsPollInterval time.Duration `env:"RENDEZVOUS_ROOMS_POLL_INTERVAL" envDefault:"5s"`
	LogLevel          string        `env:"RENDEZVOUS_LOG_LEVEL"           envDefault:"warn"`
}

// LoadServer parses and validates server configuration. Missing credentials
// are a domain.ErrConfiguration.
func LoadServer() (Server, error) {
	var cfg Server
	if err := env.Parse(&cfg); err != nil {
		return Server{}, fmt.Errorf("parse server env: %w", err)
	}
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.APISecret = strings.TrimSpace(cfg.APISecret)
	if cfg.APIKey == "" {
		return Server{}, fmt.Errorf("%w: RENDEZVOUS_API_KEY is required", domain.ErrConfiguration)
	}
	if cfg.APISecret == "" {
		return Server{}, fmt.Errorf("%w: RENDEZVOUS_API_SECRET is required", domain.ErrConfiguration)
	}
	if strings.TrimSpace(cfg.LobbyRoom) == "" {
		return Server{}, fmt.Errorf("%w: RENDEZVOUS_LOBBY_ROOM must not be blank", domain.ErrConfiguration)
	}
	return cfg, nil
}

func LoadClient() (Client, error) {
	var cfg Client
	if err := env.Parse(&cfg); err != nil {
		return Client{}, fmt.Errorf("parse client env: %w", err)
	}
	if strings.TrimSpace(cfg.URL) == "" {
		return Client{}, fmt.Errorf("%w: RENDEZVOUS_URL is required", domain.ErrConfiguration)
	}
	if cfg.CallTimeout <= 0 {
		return Client{}, fmt.Errorf("%w: RENDEZVOUS_CALL_TIMEOUT must be positive", domain.ErrConfiguration)
	}
	return cfg, nil
}

// Level maps a level name to zerolog, defaulting to info.
func Level(name string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(name)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}
