package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"fono/internal/auth"
	"fono/internal/channel"
	"fono/internal/cipher"
	"fono/internal/config"
	"fono/internal/notify"
	"fono/internal/observability/logging"
	"fono/internal/observability/metrics"
	"fono/internal/observability/middleware"
	"fono/internal/service"
	"fono/internal/store"
	transport "fono/internal/transport/http"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()

	logger := logging.NewLogger(logging.Config{
		ServiceName: "fono",
		Environment: cfg.Environment,
		Level:       cfg.LogLevel,
	})
	slog.SetDefault(logger)
	metrics.MustRegister("fono")

	logger.Info("starting service")

	key, err := cipher.KeyFromHex(cfg.EncryptionKeyHex)
	if err != nil {
		logger.Error("encryption key", "error", err)
		os.Exit(1)
	}
	engine, err := cipher.New(key)
	if err != nil {
		logger.Error("cipher init", "error", err)
		os.Exit(1)
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		logger.Error("gorm open", "error", err)
		os.Exit(1)
	}
	st := store.New(db)
	if err := st.AutoMigrate(context.Background()); err != nil {
		logger.Error("auto migrate", "error", err)
		os.Exit(1)
	}

	pub, err := notify.NewAMQPPublisher(cfg.AMQPUrl, cfg.Exchange)
	if err != nil {
		logger.Error("amqp connect", "error", err)
		os.Exit(1)
	}
	defer pub.Close()

	dispatcher := notify.NewDispatcher(pub, cfg.PublishTimeout, logger)
	messages := service.NewMessageService(st, engine, dispatcher, cfg.StoreTimeout, logger)
	signer := channel.NewSigner(cfg.ChannelAppKey, cfg.ChannelAppSecret)

	authMW, err := authMiddleware(cfg)
	if err != nil {
		logger.Error("auth setup", "error", err)
		os.Exit(1)
	}

	mux := transport.NewRouter(messages, dispatcher, signer, st, transport.RouterConfig{
		AuthMiddleware:  authMW,
		CORSOrigins:     cfg.CORSOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
	})

	handler := middleware.WithRequestAndTrace(middleware.WithMetrics(mux))

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("fono listening", "addr", cfg.Addr)
	if err := srv.ListenAndServe(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// authMiddleware picks the token validator: a shared HS256 secret when one is
// configured (local and test deployments), otherwise the identity provider's
// JWKS endpoint.
func authMiddleware(cfg config.Config) (func(http.Handler) http.Handler, error) {
	if cfg.SharedHS256 != "" {
		return auth.NewHMACValidator(cfg.SharedHS256, cfg.Issuer).Middleware, nil
	}
	v, err := auth.NewJWKSValidator(cfg.JWKSURL, cfg.Issuer)
	if err != nil {
		return nil, err
	}
	return v.Middleware, nil
}
