package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/school-notify-api/internal/config"
	"github.com/school-notify-api/internal/infrastructure/dynamo"
	jwtinfra "github.com/school-notify-api/internal/infrastructure/jwt"
	"github.com/school-notify-api/internal/infrastructure/push"
	redisinfra "github.com/school-notify-api/internal/infrastructure/redis"
	"github.com/school-notify-api/internal/infrastructure/roster"
	s3infra "github.com/school-notify-api/internal/infrastructure/s3"
	"github.com/school-notify-api/internal/infrastructure/sns"
	transporthttp "github.com/school-notify-api/internal/transport/http"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if !cfg.IsDevelopment() {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Bootstrap DynamoDB tables (creates them if they don't exist).
	dynamoClient, err := dynamo.NewClient(ctx, cfg)
	if err != nil {
		log.Fatalf("dynamo: %v", err)
	}
	dynamo.Bootstrap(ctx, dynamoClient, cfg.DynamoTables)

	jwtProvider, err := jwtinfra.NewProvider(cfg)
	if err != nil {
		log.Fatalf("jwt: %v", err)
	}

	readiness := map[string]func(context.Context) error{
		"dynamo": func(ctx context.Context) error {
			return dynamo.Ping(ctx, dynamoClient, cfg.DynamoTables.Identities)
		},
	}

	rosterGateway, err := newRoster(ctx, cfg, readiness)
	if err != nil {
		log.Fatalf("roster: %v", err)
	}

	pushProvider, err := newPushProvider(ctx, cfg)
	if err != nil {
		log.Fatalf("push: %v", err)
	}

	deps := &transporthttp.Deps{
		IdentityRepo:     dynamo.NewIdentityRepo(dynamoClient, cfg.DynamoTables.Identities),
		RegistrationRepo: dynamo.NewRegistrationRepo(dynamoClient, cfg.DynamoTables.Registrations, cfg.DynamoTables.AddressBindings),
		NotificationRepo: dynamo.NewNotificationRepo(dynamoClient, cfg.DynamoTables.Notifications),
		Roster:           rosterGateway,
		Push:             pushProvider,
		JWTProvider:      jwtProvider,
		ReadinessChecks:  readiness,
	}

	router := transporthttp.NewRouter(ctx, cfg, deps)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute, // broadcasts wait for every delivery
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on :%s (env=%s)", cfg.AppPort, cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}
	stop()
	log.Println("Server stopped")
}

// newRoster assembles the roster gateway: an API or S3 source, an optional S3
// snapshot fallback, and a Redis or in-process cache.
func newRoster(ctx context.Context, cfg *config.Config, readiness map[string]func(context.Context) error) (*roster.Gateway, error) {
	var store *s3infra.Store
	if cfg.Roster.Source == "s3" || cfg.Roster.Snapshot {
		s3Client, err := s3infra.NewClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		store = s3infra.NewStore(s3Client, cfg.S3BucketName)
	}

	var source roster.Source
	switch cfg.Roster.Source {
	case "s3":
		source = roster.NewS3Source(store, cfg.Roster.S3Key)
	case "api":
		source = roster.NewHTTPSource(roster.HTTPOptions{
			URL:         cfg.Roster.URL,
			APIKey:      cfg.Roster.APIKey,
			Timeout:     cfg.Roster.Timeout,
			MaxAttempts: cfg.Roster.MaxAttempts,
			RetryDelay:  cfg.Roster.RetryDelay,
		})
		if cfg.Roster.Snapshot {
			source = roster.NewSnapshotSource(source, store, cfg.Roster.S3Key)
		}
	default:
		return nil, fmt.Errorf("unknown roster source %q", cfg.Roster.Source)
	}

	var cache roster.Cache = roster.NewMemoryCache()
	if cfg.Roster.RedisURL != "" {
		client, err := redisinfra.NewClient(ctx, cfg.Roster.RedisURL)
		if err != nil {
			slog.Warn("redis unavailable, using in-process roster cache", "err", err)
		} else {
			cache = roster.NewRedisCache(client, "school-notify:")
			readiness["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
		}
	}
	return roster.NewGateway(source, cache, cfg.Roster.CacheTTL), nil
}

// newPushProvider builds the configured provider behind retries and a circuit
// breaker. A provider that cannot start is a startup error.
func newPushProvider(ctx context.Context, cfg *config.Config) (push.Provider, error) {
	var (
		provider push.Provider
		err      error
	)
	switch cfg.Push.Provider {
	case "fcm":
		provider, err = push.NewFCM(ctx, push.FCMOptions{
			CredentialsFile: cfg.Push.FCMCredentialsFile,
			ProjectID:       cfg.Push.FCMProjectID,
			ClientEmail:     cfg.Push.FCMClientEmail,
			PrivateKey:      cfg.Push.FCMPrivateKey,
		})
	case "expo":
		provider = push.NewExpo(cfg.Push.ExpoURL, cfg.Push.SendTimeout)
	case "sns":
		provider, err = sns.NewSender(ctx, cfg)
	case "log":
		if !cfg.IsDevelopment() {
			return nil, errors.New("log push provider is only allowed in development")
		}
		slog.Warn("push provider is log-only, notifications are not delivered")
		return push.LogProvider{}, nil
	default:
		err = fmt.Errorf("unknown push provider %q", cfg.Push.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("push provider %s: %w", cfg.Push.Provider, err)
	}
	return push.NewResilient(provider, push.ResilientOptions{
		Timeout:     cfg.Push.SendTimeout,
		MaxAttempts: cfg.Push.MaxAttempts,
		RetryDelay:  cfg.Push.RetryDelay,
	}), nil
}
