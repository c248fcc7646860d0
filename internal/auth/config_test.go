package auth

import (
	"strings"
	"testing"
	"time"
)

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("JWT_SECRET", strings.Repeat("s", 32))
	t.Setenv("REFRESH_TTL_DAYS", "7")
	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("ConfigFromEnv: %v", err)
	}
	if cfg.JWTIssuer != "auth-demo" {
		t.Fatalf("JWTIssuer = %q", cfg.JWTIssuer)
	}
	if cfg.AccessTTL() != 15*time.Minute || cfg.RefreshTTL() != 7*24*time.Hour {
		t.Fatalf("ttls = %v %v", cfg.AccessTTL(), cfg.RefreshTTL())
	}
	p := cfg.Argon2Params()
	if p.MemoryKiB != 65536 || p.Iterations != 3 || p.Parallelism != 2 || p.KeyLength != 32 {
		t.Fatalf("argon2 params = %+v", p)
	}
}

func TestConfigRejectsShortSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "too-short")
	if _, err := ConfigFromEnv(); err == nil {
		t.Fatal("expected error for short secret")
	}
}

func TestConfigValidate(t *testing.T) {
	good := Config{JWTSecret: strings.Repeat("k", 32), JWTIssuer: "x", AccessTTLMinutes: 1, RefreshTTLDays: 1}
	if err := good.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	bad := good
	bad.AccessTTLMinutes = 0
	if err := bad.Validate(); err == nil {
		t.Fatal("expected error for zero access ttl")
	}
}
