// Package config reads service configuration from environment variables
// and command line flags. Environment takes precedence over flags.
package config

import (
	"flag"
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds the runtime parameters of the API server.
type Config struct {
	RunAddress     string `env:"RUN_ADDRESS"`
	DatabaseURI    string `env:"DATABASE_URI"`
	GatewayAddress string `env:"GATEWAY_ADDRESS"`
	JWTSecret      string `env:"JWT_SECRET"`
	CORSOrigin     string `env:"CORS_ORIGIN"`
}

// Parse reads configuration from flags and the environment.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envGatewayAddress := cfg.GatewayAddress
	envJWTSecret := cfg.JWTSecret
	envCORSOrigin := cfg.CORSOrigin

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.GatewayAddress, "g", "", "payment gateway address")
	flag.StringVar(&cfg.JWTSecret, "s", "", "JWT signing secret")
	flag.StringVar(&cfg.CORSOrigin, "o", "http://localhost:3000", "allowed CORS origin")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envGatewayAddress != "" {
		cfg.GatewayAddress = envGatewayAddress
	}
	if envJWTSecret != "" {
		cfg.JWTSecret = envJWTSecret
	}
	if envCORSOrigin != "" {
		cfg.CORSOrigin = envCORSOrigin
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}
	if cfg.DatabaseURI == "" {
		return nil, fmt.Errorf("database URI is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT secret is required")
	}

	return cfg, nil
}
