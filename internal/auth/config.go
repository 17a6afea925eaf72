package auth

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds token secrets and lifetimes. It is read from the environment
// only, never from the YAML config files.
type Config struct {
	JWTSecret        string        `env:"JWT_SECRET,required,notEmpty"`
	Issuer           string        `env:"JWT_ISSUER" envDefault:"e-learning-lessons"`
	AccessTokenTTL   time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"15m"`
	RefreshTokenTTL  time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"168h"`
	PasswordResetTTL time.Duration `env:"PASSWORD_RESET_TTL" envDefault:"72h"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse auth env: %w", err)
	}
	return cfg, nil
}
