package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/matchbase/marketplace/handlers"
	"github.com/matchbase/marketplace/internal/app"
	"github.com/matchbase/marketplace/internal/config"
	"github.com/matchbase/marketplace/internal/oidc"
	"github.com/matchbase/marketplace/internal/reconcile"
	"github.com/matchbase/marketplace/pkg/logger"
	"github.com/matchbase/marketplace/pkg/metrics"
	"github.com/matchbase/marketplace/pkg/middleware"
)

var startTime = time.Now()

func main() {
	// LOG_LEVEL: debug|info|warn|error|fatal
	logger.Init(os.Getenv("LOG_LEVEL"))

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Infof("config loaded: keycloak=%v redis=%v meili=%v minio=%v", cfg.Keycloak.URL != "", cfg.Redis.Host != "", cfg.Meili.URL != "", cfg.MinIO.Endpoint != "")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		logger.Fatalf("startup failed: %v", err)
	}
	defer a.Close(context.Background())

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	})

	// Keycloak tokens for accounts; HS256 service tokens are accepted too so
	// the CLI and integration runs can act as an account.
	service := oidc.NewHMACVerifier(cfg.JWT.Secret)
	verifiers := oidc.Chain{}
	if v := keycloakVerifier(ctx, cfg); v != nil {
		verifiers = append(verifiers, v)
	}
	if cfg.JWT.Secret != "" {
		verifiers = append(verifiers, service)
	}
	if len(verifiers) == 0 {
		logger.Warnf("no token verifier configured; every API call will be rejected")
	}

	var limit gin.HandlerFunc
	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.UseRedis && a.Redis != nil {
			win := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
			limit = middleware.RedisRateLimitMiddleware(a.Redis, cfg.RateLimit.RPS, cfg.RateLimit.Burst, win)
		} else {
			limit = middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
		}
	}

	handlers.Router{
		Listings:    handlers.NewListingsHandler(a.Listings),
		Accounts:    handlers.NewAccountsHandler(a.Accounts),
		Engagements: handlers.NewEngagementsHandler(a.Gate, a.Engagement),
		Admin:       handlers.NewAdminHandler(a.Accounts, a.Reconciler, a.Writer, a.Log, a.Engagement),
		Auth:        middleware.AuthMiddleware(verifiers, a.Revocation),
		AdminAuth:   middleware.AuthMiddleware(service, nil),
		RateLimit:   limit,
	}.Register(r)
	handlers.RegisterSwagger(r)

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})
	r.GET("/ready", func(c *gin.Context) {
		deps := map[string]bool{
			"mongo":  a.Mongo.Ping(c.Request.Context(), nil) == nil,
			"search": a.Meili.Healthy(),
			"redis":  true,
		}
		if cfg.Redis.Host != "" {
			deps["redis"] = a.Redis != nil && a.Redis.Ping(c.Request.Context()).Err() == nil
		}
		uptime := time.Since(startTime).String()
		for _, ok := range deps {
			if !ok {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "deps": deps, "uptime": uptime})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready", "deps": deps, "uptime": uptime})
	})

	metrics.RegisterCollectors(prometheus.DefaultRegisterer)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	var sched *reconcile.Scheduler
	if cfg.Marketplace.EnableScheduledJob {
		sched = reconcile.NewScheduler(cfg.Marketplace.ReconcileCron, a.Reconciler, a.Writer)
		if err := sched.Start(ctx); err != nil {
			logger.Errorf("reconcile scheduler not started: %v", err)
			sched = nil
		}
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		logger.Infof("marketplace API listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Infof("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("graceful shutdown: %v", err)
	}
	if sched != nil {
		sched.Stop()
	}
}

func keycloakVerifier(ctx context.Context, cfg *config.Config) middleware.Verifier {
	kc := cfg.Keycloak
	if kc.URL == "" || kc.ClientID == "" {
		return nil
	}
	issuer := kc.URL
	if kc.Realm != "" {
		issuer = strings.TrimRight(kc.URL, "/") + "/realms/" + kc.Realm
	}
	v, err := oidc.NewVerifier(ctx, issuer, kc.ClientID)
	if err != nil {
		logger.Warnf("failed to initialize OIDC verifier: %v", err)
		return nil
	}
	return v
}
