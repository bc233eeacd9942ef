package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/gracefellowship/churchsite/backend/go-services/handlers"
	"github.com/gracefellowship/churchsite/backend/go-services/internal/admins"
	"github.com/gracefellowship/churchsite/backend/go-services/internal/assets"
	"github.com/gracefellowship/churchsite/backend/go-services/internal/carousel"
	"github.com/gracefellowship/churchsite/backend/go-services/internal/config"
	"github.com/gracefellowship/churchsite/backend/go-services/internal/contact"
	"github.com/gracefellowship/churchsite/backend/go-services/internal/database"
	"github.com/gracefellowship/churchsite/backend/go-services/internal/editor"
	"github.com/gracefellowship/churchsite/backend/go-services/internal/email"
	"github.com/gracefellowship/churchsite/backend/go-services/internal/oidc"
	"github.com/gracefellowship/churchsite/backend/go-services/internal/sessions"
	"github.com/gracefellowship/churchsite/backend/go-services/internal/site/repository"
	"github.com/gracefellowship/churchsite/backend/go-services/internal/storage"
	"github.com/gracefellowship/churchsite/backend/go-services/internal/tokens"
	"github.com/gracefellowship/churchsite/backend/go-services/pkg/logger"
	"github.com/gracefellowship/churchsite/backend/go-services/pkg/metrics"
	"github.com/gracefellowship/churchsite/backend/go-services/pkg/middleware"
)

var startTime = time.Now()

func main() {
	// LOG_LEVEL: debug|info|warn|error|fatal
	logger.Init(os.Getenv("LOG_LEVEL"))
	defer logger.Sync()

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Infof("config loaded: keycloak=%v mongo=%v redis=%v storage=%s admins=%d",
		cfg.Keycloak.URL != "", cfg.MongoDB.URI != "", cfg.Redis.Host != "", cfg.Storage.Backend, len(cfg.Admins.UIDs))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Redis backs the token blacklist, refresh sessions, the hash cache and
	// the shared rate limiter. Everything degrades to in-process state
	// without it.
	var rdb *redis.Client
	if cfg.Redis.Host != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Host + ":" + cfg.Redis.Port, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warnf("failed to connect to Redis (%s:%s): %v", cfg.Redis.Host, cfg.Redis.Port, err)
			_ = rdb.Close()
			rdb = nil
		} else {
			sessions.SetBlacklistClient(rdb)
			logger.Infof("connected to Redis at %s:%s", cfg.Redis.Host, cfg.Redis.Port)
		}
	}

	var mongoClient *mongo.Client
	if cfg.MongoDB.URI != "" {
		mongoClient, err = database.ConnectMongoWithRetry(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout, 5)
		if err != nil {
			logger.Fatalf("%v", err)
		}
		defer func() { _ = mongoClient.Disconnect(context.Background()) }()
	} else {
		logger.Warn("MONGODB_URI not set; site content, hashes and messages are kept in memory")
	}

	var (
		siteRepo    repository.Repository
		hashRepo    assets.Repository
		contactRepo contact.Repository
		sessionRepo sessions.Repository
	)
	if mongoClient != nil {
		db := mongoClient.Database(cfg.MongoDB.Database)
		siteRepo = repository.NewMongoRepo(db.Collection(cfg.Site.Collection), cfg.Site.DocumentID)
		hashRepo = assets.NewMongoRepo(db.Collection(cfg.Site.HashCollection))
		contactRepo = contact.NewMongoRepo(db.Collection(cfg.Contact.Collection))
		sessionRepo = sessions.NewMongoRepository(db.Collection("sessions"))
	} else {
		siteRepo = repository.NewMemoryRepo()
		hashRepo = assets.NewMemoryRepo()
		contactRepo = contact.NewMemoryRepo()
		sessionRepo = sessions.NewMemoryRepository()
	}
	if rdb != nil {
		hashRepo = assets.NewRedisCache(hashRepo, rdb, "filehash:", cfg.Redis.HashCacheTTL)
		sessionRepo = sessions.NewRedisRepository(rdb, "session:")
	}
	sessionsSvc := sessions.NewService(sessionRepo)

	blobs, err := storage.Open(ctx, &cfg.Storage)
	if err != nil {
		logger.Fatalf("failed to open blob storage: %v", err)
	}
	hero, err := carousel.Load(ctx, blobs, cfg.Site.HeroImageFolder)
	if err != nil {
		logger.Warnf("hero images unavailable: %v", err)
	}
	logger.Infof("loaded %d hero images", len(hero))

	allow := admins.NewAllowList(cfg.Admins.UIDs...)
	issuer := tokens.NewIssuer(cfg.JWT.Secret, cfg.JWT.AccessTokenTTL)

	var idp handlers.IdentityProvider
	if cfg.Keycloak.URL != "" && cfg.Keycloak.ClientID != "" {
		var idVerifier middleware.Verifier
		issuerURL := oidc.IssuerURL(cfg.Keycloak.URL, cfg.Keycloak.Realm)
		if cfg.Keycloak.AllowInsecure {
			logger.Warn("enabling insecure OIDC verifier (integration mode)")
			idVerifier = oidc.NewInsecureVerifier(issuerURL)
		} else if v, err := oidc.NewVerifier(ctx, issuerURL, cfg.Keycloak.ClientID); err != nil {
			logger.Warnf("failed to initialize OIDC verifier: %v", err)
		} else {
			idVerifier = v
		}
		if idVerifier != nil {
			idp = oidc.NewClient(cfg.Keycloak.URL, cfg.Keycloak.Realm, cfg.Keycloak.ClientID, cfg.Keycloak.ClientSecret, idVerifier)
		}
	}
	if idp == nil {
		logger.Warn("identity provider not configured; only anonymous sign-in is available")
	}

	editors := editor.NewStore(editor.Deps{
		Repo:     siteRepo,
		Admins:   allow,
		Registry: assets.NewRegistry(hashRepo),
		Store:    blobs,
	}, cfg.Editor.IdleTimeout)
	go editors.Run(ctx, cfg.Editor.SweepInterval)
	defer editors.CloseAll()

	var inline *contact.Notifier
	if cfg.Contact.NotifyInline {
		mailer := email.NewService(email.Config{
			Host: cfg.SMTP.Host, Port: cfg.SMTP.Port,
			Username: cfg.SMTP.Username, Password: cfg.SMTP.Password,
			From: cfg.SMTP.From, FromName: cfg.SMTP.FromName,
		})
		if mailer.IsConfigured() && cfg.Contact.OperatorEmail != "" {
			inline = contact.NewNotifier(mailer, cfg.Contact.OperatorEmail, cfg.Site.Name)
		} else {
			logger.Warn("CONTACT_NOTIFY_INLINE set but SMTP or operator address missing; notifications disabled")
		}
	}
	contactSvc := contact.NewService(contactRepo, inline)

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery(), cors())

	// per-user when authenticated, otherwise per-IP; each scope has its own budget
	limit := func(scope string) []gin.HandlerFunc {
		if !cfg.RateLimit.Enabled {
			return nil
		}
		if cfg.RateLimit.UseRedis && rdb != nil {
			win := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
			return []gin.HandlerFunc{middleware.RedisRateLimitMiddleware(rdb, scope, cfg.RateLimit.RPS, cfg.RateLimit.Burst, win)}
		}
		return []gin.HandlerFunc{middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst)}
	}

	auth := middleware.AuthMiddleware(issuer)
	authHandler := handlers.NewAuthHandler(sessionsSvc, issuer, idp, allow, cfg.JWT.RefreshTokenTTL)
	authHandler.Register(r.Group("/"), limit("auth")...)
	r.GET("/api/v1/me", auth, authHandler.Me)
	handlers.NewSiteHandler(siteRepo, allow, hero).Register(r, auth)
	handlers.NewEditorHandler(editors, allow).Register(r, auth)
	handlers.NewContactHandler(contactSvc).Register(r, limit("contact")...)
	handlers.RegisterSwagger(r)

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})
	r.GET("/ready", func(c *gin.Context) {
		rctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		deps := map[string]bool{"mongo": true, "redis": true}
		if mongoClient != nil {
			deps["mongo"] = mongoClient.Ping(rctx, nil) == nil
		}
		if rdb != nil {
			deps["redis"] = rdb.Ping(rctx).Err() == nil
		}
		status, code := "ready", http.StatusOK
		for _, ok := range deps {
			if !ok {
				status, code = "not_ready", http.StatusServiceUnavailable
			}
		}
		c.JSON(code, gin.H{"status": status, "deps": deps, "uptime": time.Since(startTime).String()})
	})

	metrics.RegisterCollectors(prometheus.DefaultRegisterer)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	srv := &http.Server{
		Addr:        fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:     r,
		ReadTimeout: cfg.Server.ReadTimeout,
	}
	go func() {
		logger.Infof("starting site service on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("graceful shutdown failed: %v", err)
	}
}

// cors answers preflight requests and sets permissive headers for the
// browser front end.
func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Length")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	}
}
