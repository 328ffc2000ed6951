package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/quantlens/quantlens/backend/gateway/handlers"
	"github.com/quantlens/quantlens/backend/gateway/internal/config"
	"github.com/quantlens/quantlens/backend/gateway/internal/database"
	"github.com/quantlens/quantlens/backend/gateway/internal/kvstore"
	"github.com/quantlens/quantlens/backend/gateway/internal/routes"
	"github.com/quantlens/quantlens/backend/gateway/internal/sessions"
	"github.com/quantlens/quantlens/backend/gateway/internal/tokens"
	"github.com/quantlens/quantlens/backend/gateway/internal/users"
	"github.com/quantlens/quantlens/backend/gateway/pkg/logger"
	"github.com/quantlens/quantlens/backend/gateway/pkg/metrics"
	"github.com/quantlens/quantlens/backend/gateway/pkg/middleware"
)

var startTime = time.Now()

func main() {
	// logging is controlled with LOG_LEVEL env: debug|info|warn|error|fatal
	logger.Init(os.Getenv("LOG_LEVEL"))

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Infof("config loaded: redis=%v mongo=%v oidc=%v", cfg.Redis.Host != "", cfg.MongoDB.URI != "", cfg.OIDC.Issuer != "")

	ctx := context.Background()

	// session store: Redis when configured, in-memory fallback for dev
	var store kvstore.Store
	var redisClient *redis.Client
	if cfg.Redis.Host != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Host + ":" + cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Fatalf("failed to connect to Redis (%s:%s): %v", cfg.Redis.Host, cfg.Redis.Port, err)
		}
		store = kvstore.NewRedisStore(redisClient, cfg.Redis.KeyPrefix)
		logger.Infof("using Redis session store at %s:%s", cfg.Redis.Host, cfg.Redis.Port)
	} else {
		store = kvstore.NewMemoryStore()
		logger.Warnf("REDIS_HOST not set; using the in-memory session store (single instance only)")
	}

	sessionMgr := sessions.NewManager(store, sessions.Options{
		MaxAge:                cfg.Sessions.MaxAge,
		MaxConcurrentSessions: cfg.Sessions.MaxConcurrentSessions,
		TrackActivity:         cfg.Sessions.TrackActivity,
		ExtendOnActivity:      cfg.Sessions.ExtendOnActivity,
	})

	// token verifier: OIDC issuer wins when configured, otherwise HS256
	var verifier tokens.Verifier
	if cfg.OIDC.Issuer != "" {
		v, err := tokens.NewOIDCVerifier(ctx, cfg.OIDC.Issuer, cfg.OIDC.ClientID)
		if err != nil {
			logger.Fatalf("failed to initialize OIDC verifier: %v", err)
		}
		verifier = v
	} else {
		if cfg.JWT.Secret == "" {
			logger.Fatalf("JWT_SECRET is required when no OIDC issuer is configured")
		}
		verifier = tokens.NewHMACVerifier(cfg.JWT.Secret)
	}

	// user service backs the login endpoint; optional when the gateway only gates
	var userSvc *users.Service
	if cfg.MongoDB.URI != "" {
		client, errConn := database.ConnectMongoWithRetry(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout)
		if errConn != nil {
			logger.Warnf("could not connect to MongoDB: %v; login endpoint disabled", errConn)
		} else {
			defer func() { _ = client.Disconnect(ctx) }()
			userSvc = users.NewService(users.NewMongoRepository(database.UsersCollection(client, cfg.MongoDB.Database)))
		}
	} else if cfg.Server.Environment == "development" {
		userSvc = users.NewService(users.NewMemoryRepository())
		logger.Warnf("MONGODB_URI not set; using empty in-memory user store")
	}

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	// permissive CORS for dev/test; production fronts this with a stricter policy
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	})

	// the gate examines every request before anything else runs
	table := routes.NewTable(routes.Config{})
	r.Use(middleware.Gate(verifier, sessionMgr, table, middleware.GateOptions{
		LoginPath:     cfg.Gate.LoginPath,
		DashboardPath: cfg.Gate.DashboardPath,
		LandingPath:   cfg.Gate.LandingPath,
		PricingPath:   cfg.Gate.PricingPath,
	}))

	// rate limiter runs after the gate so authenticated traffic is keyed per user
	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.UseRedis && redisClient != nil {
			win := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
			r.Use(middleware.RedisRateLimitMiddleware(redisClient, cfg.RateLimit.RPS, cfg.RateLimit.Burst, win))
		} else {
			r.Use(middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
		}
	}

	r.GET("/api/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})

	// readiness: 200 only when the session store answers
	r.GET("/api/ready", func(c *gin.Context) {
		deps := map[string]bool{"users": userSvc != nil}
		ready := true
		if redisClient != nil {
			deps["redis"] = redisClient.Ping(c.Request.Context()).Err() == nil
			ready = deps["redis"]
		} else {
			deps["redis"] = false
		}
		status := http.StatusOK
		state := "ready"
		if !ready {
			status = http.StatusServiceUnavailable
			state = "not_ready"
		}
		c.JSON(status, gin.H{"status": state, "deps": deps, "uptime": time.Since(startTime).String()})
	})

	if userSvc != nil {
		h := handlers.NewAuthHandler(cfg, userSvc, sessionMgr, verifier)
		h.Register(r.Group("/"))
	} else {
		logger.Warnf("auth handlers not registered because no user store is available")
	}

	metrics.RegisterCollectors(prometheus.DefaultRegisterer)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// periodic sweep of the global active-session index
	if cfg.Sessions.CleanupInterval > 0 {
		go func() {
			ticker := time.NewTicker(cfg.Sessions.CleanupInterval)
			defer ticker.Stop()
			for range ticker.C {
				n, err := sessionMgr.CleanupExpiredSessions(context.Background())
				if err != nil {
					logger.Warnf("session cleanup sweep failed: %v", err)
					continue
				}
				if n > 0 {
					logger.Debugf("session cleanup removed %d stale index entries", n)
				}
			}
		}()
	}

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	logger.Infof("starting gateway on %s", addr)
	if err := r.Run(addr); err != nil {
		logger.Fatalf("server failed: %v", err)
	}
}
