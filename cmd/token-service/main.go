package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"relief-tokens/internal/auth"
	"relief-tokens/internal/config"
	"relief-tokens/internal/database/migrations"
	eventdb "relief-tokens/internal/events/db"
	"relief-tokens/internal/events/event_api"
	events "relief-tokens/internal/events/service"
	housedb "relief-tokens/internal/houses/db"
	"relief-tokens/internal/kafka"
	"relief-tokens/internal/logger"
	"relief-tokens/internal/tokens/codegen"
	tokendb "relief-tokens/internal/tokens/db"
	"relief-tokens/internal/tokens/qr"
	tokens "relief-tokens/internal/tokens/service"
	"relief-tokens/internal/tokens/token_api"
)

func openDatabase(cfg *config.Config, log *logger.Logger) *bun.DB {
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		cfg.Database.Username, cfg.Database.Password,
		cfg.Database.Host, cfg.Database.Port,
		cfg.Database.Database, cfg.Database.SSLMode)

	sqldb, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to open postgres: %v", err))
	}
	sqldb.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.Database.MaxLifetime)

	if err := sqldb.Ping(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to postgres: %v", err))
	}
	log.Info("DATABASE", "Postgres connection successful")

	return bun.NewDB(sqldb, pgdialect.New())
}

func main() {
	_ = godotenv.Load() // Loads .env file if present

	cfg := config.Load()
	log := logger.NewLogger()
	defer log.Close()

	bunDB := openDatabase(cfg, log)
	defer bunDB.Close()

	runner := migrations.NewRunner(bunDB, migrations.DefaultOptions())
	if err := runner.MigrateUp(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Migrations failed: %v", err))
	}
	if version, _, err := runner.Version(); err == nil {
		log.Info("DATABASE", fmt.Sprintf("Schema version: %d", version))
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Warn("REDIS", fmt.Sprintf("Redis unavailable at %s: %v (login rate limiting disabled)", cfg.Redis.Addr, err))
		redisClient = nil
	}

	var publisher tokens.LifecyclePublisher
	if cfg.Kafka.Enabled {
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, []string{cfg.Kafka.Topic}); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic setup failed: %v", err))
		}
		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer producer.Close()
		publisher = producer
		log.Info("KAFKA", fmt.Sprintf("Lifecycle events on topic %s", cfg.Kafka.Topic))
	}

	renderer := qr.NewRenderer(cfg.QR.BaseURL, cfg.QR.OutputDir)

	tokenStore := &tokendb.DB{Bun: bunDB}
	eventStore := &eventdb.DB{Bun: bunDB}
	houseStore := &housedb.DB{Bun: bunDB}
	adminStore := &auth.DB{Bun: bunDB}

	tokenService := tokens.NewTokenService(tokenStore, codegen.New(), renderer, publisher, log)
	eventService := events.NewEventService(eventStore, houseStore, tokenService, tokenStore, log)

	tokenHandler := token_api.NewHandler(tokenService, log)
	eventHandler := event_api.NewHandler(eventService, log)

	var limiter *auth.LoginLimiter
	if redisClient != nil {
		limiter = auth.NewLoginLimiter(redisClient, cfg.Auth.LoginMaxAttempts, cfg.Auth.LoginWindow)
	}
	loginHandler := &auth.LoginHandler{
		DB:        adminStore,
		Limiter:   limiter,
		JWTSecret: cfg.Auth.JWTSecret,
		TokenTTL:  cfg.Auth.TokenTTL,
		Logger:    log,
	}

	r := chi.NewRouter()

	// Public scanner surface
	r.Route("/tokens", func(r chi.Router) {
		r.Get("/{code}", tokenHandler.GetToken)
		r.Post("/{code}/checkin", tokenHandler.CheckIn)
	})

	r.Post("/admin/login", loginHandler.Login)

	// Admin surface, JWT-protected
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(cfg.Auth.JWTSecret))
		r.Route("/admin", func(r chi.Router) {
			r.Get("/tokens", tokenHandler.ListTokens)
			r.Get("/tokens/{code}/audit", tokenHandler.AuditTrail)
			r.Post("/tokens/{code}/manual-checkin", tokenHandler.ManualCheckIn)
			r.Post("/tokens/{code}/undo-checkin", tokenHandler.UndoCheckIn)
			r.Post("/tokens/{code}/reissue", tokenHandler.Reissue)

			r.Get("/events", eventHandler.ListEvents)
			r.Post("/events", eventHandler.CreateEvent)
			r.Post("/events/{id}/status", eventHandler.SetStatus)
			r.Post("/events/{id}/issue", eventHandler.IssueTokens)

			r.Get("/reports", eventHandler.Reports)
			r.Get("/reports/{eventID}/csv", eventHandler.ReportCSV)
		})
	})

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("SERVER", "Token service on "+cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("SERVER", fmt.Sprintf("HTTP error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(ctxShutdown)
	log.Info("SERVER", "Token service shutdown complete")
}
