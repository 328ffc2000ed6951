package config

import (
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	MongoDB   MongoDBConfig
	JWT       JWTConfig
	OIDC      OIDCConfig
	Sessions  SessionsConfig
	Gate      GateConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	Environment  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type RedisConfig struct {
	Host      string
	Port      string
	Password  string
	DB        int
	KeyPrefix string
}

type MongoDBConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

type JWTConfig struct {
	Secret         string
	AccessTokenTTL time.Duration
}

// OIDCConfig selects the asymmetric verifier when Issuer is set.
type OIDCConfig struct {
	Issuer   string
	ClientID string
}

type SessionsConfig struct {
	MaxAge                time.Duration
	MaxConcurrentSessions int
	TrackActivity         bool
	ExtendOnActivity      bool
	CleanupInterval       time.Duration
}

// GateConfig carries the dispatcher's redirect targets.
type GateConfig struct {
	LoginPath     string
	DashboardPath string
	LandingPath   string
	PricingPath   string
}

type RateLimitConfig struct {
	Enabled       bool
	UseRedis      bool
	RPS           float64
	Burst         int
	WindowSeconds int
}

// LoadConfig loads configuration from environment variables and .env file
func LoadConfig() (*Config, error) {
	_ = godotenv.Load(".env")

	viper.AutomaticEnv()

	viper.SetDefault("SERVER_PORT", "5002")
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("SERVER_ENVIRONMENT", "development")
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("REDIS_KEY_PREFIX", "quantlens:")
	viper.SetDefault("MONGODB_TIMEOUT", 10)
	viper.SetDefault("JWT_ACCESS_TOKEN_TTL", 15)
	viper.SetDefault("SESSION_MAX_AGE", 86400)
	viper.SetDefault("SESSION_MAX_CONCURRENT", 5)
	viper.SetDefault("SESSION_TRACK_ACTIVITY", true)
	viper.SetDefault("SESSION_EXTEND_ON_ACTIVITY", true)
	viper.SetDefault("SESSION_CLEANUP_INTERVAL", 600)
	viper.SetDefault("GATE_LOGIN_PATH", "/auth/login")
	viper.SetDefault("GATE_DASHBOARD_PATH", "/dashboard")
	viper.SetDefault("GATE_LANDING_PATH", "/landing")
	viper.SetDefault("GATE_PRICING_PATH", "/pricing")
	viper.SetDefault("RATE_LIMIT_ENABLED", false)
	viper.SetDefault("RATE_LIMIT_USE_REDIS", false)
	viper.SetDefault("RATE_LIMIT_RPS", 10.0)
	viper.SetDefault("RATE_LIMIT_BURST", 20)
	viper.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 1)

	cfg := &Config{
		Server: ServerConfig{
			Port:         viper.GetString("SERVER_PORT"),
			Host:         viper.GetString("SERVER_HOST"),
			Environment:  viper.GetString("SERVER_ENVIRONMENT"),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Redis: RedisConfig{
			Host:      viper.GetString("REDIS_HOST"),
			Port:      viper.GetString("REDIS_PORT"),
			Password:  os.Getenv("REDIS_PASSWORD"),
			DB:        0,
			KeyPrefix: viper.GetString("REDIS_KEY_PREFIX"),
		},
		MongoDB: MongoDBConfig{
			URI:      viper.GetString("MONGODB_URI"),
			Database: viper.GetString("MONGODB_DATABASE"),
			Timeout:  time.Duration(viper.GetInt("MONGODB_TIMEOUT")) * time.Second,
		},
		JWT: JWTConfig{
			Secret:         os.Getenv("JWT_SECRET"),
			AccessTokenTTL: time.Duration(viper.GetInt("JWT_ACCESS_TOKEN_TTL")) * time.Minute,
		},
		OIDC: OIDCConfig{
			Issuer:   viper.GetString("OIDC_ISSUER"),
			ClientID: viper.GetString("OIDC_CLIENT_ID"),
		},
		Sessions: SessionsConfig{
			MaxAge:                time.Duration(viper.GetInt("SESSION_MAX_AGE")) * time.Second,
			MaxConcurrentSessions: viper.GetInt("SESSION_MAX_CONCURRENT"),
			TrackActivity:         viper.GetBool("SESSION_TRACK_ACTIVITY"),
			ExtendOnActivity:      viper.GetBool("SESSION_EXTEND_ON_ACTIVITY"),
			CleanupInterval:       time.Duration(viper.GetInt("SESSION_CLEANUP_INTERVAL")) * time.Second,
		},
		Gate: GateConfig{
			LoginPath:     viper.GetString("GATE_LOGIN_PATH"),
			DashboardPath: viper.GetString("GATE_DASHBOARD_PATH"),
			LandingPath:   viper.GetString("GATE_LANDING_PATH"),
			PricingPath:   viper.GetString("GATE_PRICING_PATH"),
		},
		RateLimit: RateLimitConfig{
			Enabled:       viper.GetBool("RATE_LIMIT_ENABLED"),
			UseRedis:      viper.GetBool("RATE_LIMIT_USE_REDIS"),
			RPS:           viper.GetFloat64("RATE_LIMIT_RPS"),
			Burst:         viper.GetInt("RATE_LIMIT_BURST"),
			WindowSeconds: viper.GetInt("RATE_LIMIT_WINDOW_SECONDS"),
		},
	}

	// Basic validation
	if cfg.JWT.Secret == "" && cfg.OIDC.Issuer == "" {
		log.Println("WARNING: JWT_SECRET is not set; set a secure value in production")
	}

	return cfg, nil
}
