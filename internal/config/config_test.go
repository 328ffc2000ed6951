package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadConfig(t *testing.T) {
	os.Setenv("REDIS_HOST", "localhost")
	os.Setenv("REDIS_PORT", "6379")
	os.Setenv("JWT_SECRET", "testsecret123456789012345678901234")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Redis.Host == "" || cfg.JWT.Secret == "" {
		t.Fatalf("unexpected empty config values: %+v", cfg)
	}
	if cfg.Sessions.MaxAge != 86400*time.Second {
		t.Fatalf("unexpected session max age: %v", cfg.Sessions.MaxAge)
	}
	if cfg.Sessions.MaxConcurrentSessions != 5 {
		t.Fatalf("unexpected concurrent session limit: %d", cfg.Sessions.MaxConcurrentSessions)
	}
	if cfg.Gate.LoginPath != "/auth/login" || cfg.Gate.LandingPath != "/landing" {
		t.Fatalf("unexpected gate paths: %+v", cfg.Gate)
	}
}

func TestLoadConfigRedisPortDefault(t *testing.T) {
	os.Setenv("REDIS_HOST", "redis.internal")
	os.Unsetenv("REDIS_PORT")
	os.Setenv("JWT_SECRET", "testsecret123456789012345678901234")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	// REDIS_HOST alone must still yield a dialable host:port pair
	if cfg.Redis.Port != "6379" {
		t.Fatalf("unexpected redis port default: %q", cfg.Redis.Port)
	}
}
