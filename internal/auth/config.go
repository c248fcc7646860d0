package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/ovaphlow/pitchfork/service-auth/internal/security"
)

// MinSecretLength is the shortest accepted HS256 secret, in bytes.
const MinSecretLength = 32

type Config struct {
	JWTSecret         string `env:"JWT_SECRET,required"`
	JWTIssuer         string `env:"JWT_ISSUER" envDefault:"auth-demo"`
	AccessTTLMinutes  int    `env:"ACCESS_TTL_MINUTES" envDefault:"15"`
	RefreshTTLDays    int    `env:"REFRESH_TTL_DAYS" envDefault:"30"`
	Argon2MemoryKiB   uint32 `env:"ARGON2_MEMORY_KIB" envDefault:"65536"`
	Argon2Iterations  uint32 `env:"ARGON2_ITERATIONS" envDefault:"3"`
	Argon2Parallelism uint8  `env:"ARGON2_PARALLELISM" envDefault:"2"`
}

// ConfigFromEnv reads token and hashing settings from env vars and validates them.
func ConfigFromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse auth env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if len(c.JWTSecret) < MinSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d bytes", MinSecretLength)
	}
	if c.JWTIssuer == "" {
		return errors.New("JWT_ISSUER must not be empty")
	}
	if c.AccessTTLMinutes <= 0 {
		return errors.New("ACCESS_TTL_MINUTES must be positive")
	}
	if c.RefreshTTLDays <= 0 {
		return errors.New("REFRESH_TTL_DAYS must be positive")
	}
	return nil
}

func (c Config) AccessTTL() time.Duration {
	return time.Duration(c.AccessTTLMinutes) * time.Minute
}

func (c Config) RefreshTTL() time.Duration {
	return time.Duration(c.RefreshTTLDays) * 24 * time.Hour
}

func (c Config) Argon2Params() security.Argon2Params {
	p := security.DefaultArgon2Params()
	p.MemoryKiB = c.Argon2MemoryKiB
	p.Iterations = c.Argon2Iterations
	p.Parallelism = c.Argon2Parallelism
	return p
}
