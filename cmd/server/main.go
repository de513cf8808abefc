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

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/m3connect/portal/internal/config"
	"github.com/m3connect/portal/internal/http/handlers"
	"github.com/m3connect/portal/internal/identity"
	"github.com/m3connect/portal/internal/identity/local"
	"github.com/m3connect/portal/internal/obs"
	"github.com/m3connect/portal/internal/recovery"
	"github.com/m3connect/portal/internal/server"
	"github.com/m3connect/portal/internal/storage"
	"github.com/m3connect/portal/internal/storage/memory"
	"github.com/m3connect/portal/internal/storage/postgres"
	"github.com/m3connect/portal/internal/visitor"
)

func main() {
	loadLocalEnv()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	obs.Init()

	ctx := context.Background()
	checks := map[string]handlers.Check{}

	var (
		profiles storage.ProfileStore
		content  storage.ContentStore
		leads    storage.LeadStore
	)
	if cfg.DatabaseURL != "" {
		store, err := postgres.NewStore(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("init database: %v", err)
		}
		defer store.Close()
		leadStore := postgres.NewLeadStoreFromStore(store)
		defer leadStore.Close()
		profiles, content, leads = store, store, leadStore
		checks["database"] = store.Ping
	} else {
		log.Println("DATABASE_URL not set; profiles and content are kept in memory")
		store := memory.New()
		profiles, content, leads = store, store, store
	}

	sessions := identity.Storage(identity.NewMemoryStorage())
	var guard recovery.Guard
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("parse redis url: %v", err)
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()
		sessions = identity.NewRedisStorage(rdb, "portal:session", cfg.IdentitySessionTTL)
		guard = recovery.NewRedisGuard(rdb, "portal:recovery:", 0)
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}

	registry, err := visitor.NewRegistry(cfg.VisitorCacheSize, providerFactory(cfg, sessions), profiles, guard, visitor.Settings{
		RecoveryPath:      cfg.RecoveryPath,
		HomePath:          cfg.HomePath,
		FetchTimeout:      cfg.ProfileFetchTimeout,
		MinPasswordLength: cfg.MinPasswordLength,
		RecoveryRedirect:  cfg.RecoveryRedirect,
	})
	if err != nil {
		log.Fatalf("init visitors: %v", err)
	}
	defer registry.Close()

	srv := server.New(cfg, server.Deps{
		Visitors: registry,
		Profiles: profiles,
		Content:  content,
		Leads:    leads,
		Checks:   checks,
	})

	go func() {
		log.Printf("portal BFF listening on %s (identity=%s)", cfg.HTTPAddress(), cfg.IdentityMode)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		log.Printf("graceful shutdown error: %v", err)
	}
}

// providerFactory returns how each new visitor gets its identity client.
func providerFactory(cfg config.Config, sessions identity.Storage) visitor.ProviderFactory {
	if cfg.IdentityMode == config.IdentityLocal {
		backend := local.NewBackend(identity.NewTokenManager(cfg.IdentityJWTSecret, "portal-local", time.Hour))
		return func(string) identity.Provider { return backend.Client() }
	}
	tokens := identity.NewTokenManager(cfg.IdentityJWTSecret, "", 0)
	return func(visitorID string) identity.Provider {
		return identity.NewClient(identity.ClientOptions{
			BaseURL:    cfg.IdentityURL,
			APIKey:     cfg.IdentityAPIKey,
			StorageKey: visitorID,
			Storage:    sessions,
			Tokens:     tokens,
		})
	}
}

func loadLocalEnv() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found; relying on existing environment")
	}
}
