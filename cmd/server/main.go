package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/kvasnecov/institute_platform/internal/config"
	"github.com/kvasnecov/institute_platform/internal/events"
	"github.com/kvasnecov/institute_platform/internal/httpserver"
	"github.com/kvasnecov/institute_platform/internal/middleware"
	"github.com/kvasnecov/institute_platform/internal/oauth"
	"github.com/kvasnecov/institute_platform/internal/repo"
	"github.com/kvasnecov/institute_platform/internal/revocation"
	"github.com/kvasnecov/institute_platform/internal/service"
	"github.com/kvasnecov/institute_platform/pkg/logging"
	loggingmw "github.com/kvasnecov/institute_platform/pkg/middleware/logging"
	"github.com/kvasnecov/institute_platform/pkg/tokens"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.New(cfg.LogLevel)

	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatalf("db init error: %v", err)
	}

	var revoked revocation.Store
	var redisStore *revocation.RedisStore
	if cfg.RedisURL != "" {
		redisStore, err = revocation.NewRedisStore(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis init error: %v", err)
		}
		revoked = redisStore
	} else {
		logger.Warn("REDIS_URL not set, revocation store is in-memory only")
		revoked = revocation.NewMemoryStore()
	}

	var producer *events.Producer
	var publisher service.EventPublisher
	if len(cfg.KafkaBrokers) > 0 {
		producer = events.NewProducer(cfg.KafkaBrokers)
		publisher = producer
	}

	codec := &tokens.Codec{
		AccessSecret:  cfg.AccessSecret,
		RefreshSecret: cfg.RefreshSecret,
	}

	svc := service.NewSessionService(
		repo.NewGormUserRepo(db),
		codec,
		revoked,
		publisher,
		time.Duration(cfg.AccessTTLSeconds)*time.Second,
		time.Duration(cfg.RefreshTTLSeconds)*time.Second,
		time.Duration(cfg.LongRefreshTTLSeconds)*time.Second,
	)

	providers := map[string]oauth.Provider{}
	if cfg.GoogleClientID != "" {
		providers["google"] = oauth.NewGoogleProvider(oauth.GoogleConfig{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleCallbackURL,
		})
	}
	if cfg.GithubClientID != "" {
		providers["github"] = oauth.NewGithubProvider(oauth.GithubConfig{
			ClientID:     cfg.GithubClientID,
			ClientSecret: cfg.GithubClientSecret,
			RedirectURL:  cfg.GithubCallbackURL,
		})
	}

	e := echo.New()
	e.HideBanner = true
	e.Pre(echomw.RemoveTrailingSlash())
	e.Use(echomw.Recover(), echomw.RequestID())
	e.Use(loggingmw.RequestLogger(logger))

	httpserver.Register(e, &httpserver.Deps{
		AuthHandler: &httpserver.AuthHTTP{
			Svc:    svc,
			Secure: cfg.Production(),
		},
		OAuthHandler: &httpserver.OAuthHTTP{
			Svc:             svc,
			Providers:       providers,
			SuccessRedirect: cfg.OAuthSuccessRedirect,
			Secure:          cfg.Production(),
		},
		Auth: middleware.NewAuthMiddleware(codec),
	})

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Printf("db close error: %v", err)
		}
	}

	if redisStore != nil {
		if err := redisStore.Close(); err != nil {
			log.Printf("redis close error: %v", err)
		}
	}

	if producer != nil {
		if err := producer.Close(); err != nil {
			log.Printf("kafka close error: %v", err)
		}
	}

	logger.Info("shutdown complete")
}
