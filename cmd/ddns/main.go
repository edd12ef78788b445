package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/poyrazK/dyndns/internal/adapters/api"
	"github.com/poyrazK/dyndns/internal/adapters/cache"
	"github.com/poyrazK/dyndns/internal/adapters/dnsprovider"
	"github.com/poyrazK/dyndns/internal/adapters/identity"
	"github.com/poyrazK/dyndns/internal/adapters/memory"
	"github.com/poyrazK/dyndns/internal/adapters/repository"
	"github.com/poyrazK/dyndns/internal/core/ports"
	"github.com/poyrazK/dyndns/internal/core/services"
	"github.com/poyrazK/dyndns/internal/dyndns"
	"github.com/poyrazK/dyndns/internal/infrastructure/config"
	"github.com/poyrazK/dyndns/internal/infrastructure/logging"
)

const shutdownTimeout = 15 * time.Second

type store interface {
	ports.KeyRepository
	ports.HistoryRepository
}

// app is the assembled service. close releases the pools it opened.
type app struct {
	handler http.Handler
	updates ports.UpdateService
	closers []func() error
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			slog.Warn("shutdown: close failed", "error", err)
		}
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(os.Stdout, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", srv.Addr, "zone", cfg.ZoneName, "provider", cfg.DNSProvider)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	// Audit writes and invalidations still in flight.
	a.updates.Wait()
	return nil
}

func buildApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{}
	fail := func(err error) (*app, error) {
		a.close()
		return nil, err
	}

	var db *sql.DB
	if cfg.StoreDriver == config.StoreDriverPostgres || cfg.DNSProvider == config.ProviderPostgres {
		var err error
		db, err = sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			return fail(fmt.Errorf("open database: %w", err))
		}
		a.closers = append(a.closers, db.Close)
		if err := repository.Migrate(ctx, db); err != nil {
			return fail(err)
		}
	}

	var st store
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		st = repository.NewPostgresRepository(db)
	default:
		logger.Warn("using in-memory store; ownership and keys are lost on restart")
		st = memory.NewStore()
	}

	var provider ports.DNSProvider
	switch cfg.DNSProvider {
	case config.ProviderPostgres:
		zp := repository.NewZoneProvider(db, cfg.ZoneName, "")
		if err := zp.EnsureZone(ctx); err != nil {
			return fail(err)
		}
		provider = zp
	case config.ProviderRFC2136:
		provider = dnsprovider.NewRFC2136Provider(dnsprovider.RFC2136Config{
			Server:        cfg.RFC2136.Server,
			Zone:          cfg.ZoneName,
			TSIGKeyName:   cfg.RFC2136.TSIGKeyName,
			TSIGSecret:    cfg.RFC2136.TSIGSecret,
			TSIGAlgorithm: cfg.RFC2136.TSIGAlgorithm,
			Timeout:       cfg.ProviderTimeout,
		})
	default:
		provider = memory.NewZone()
	}

	health := map[string]services.Pinger{"store": st, "dns": provider}

	var invalidator ports.RecordInvalidator
	if cfg.Redis.Addr != "" {
		rc := cache.NewRedisInvalidator(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		a.closers = append(a.closers, rc.Close)
		invalidator = rc
		health["redis"] = rc
	}

	keys := services.NewAPIKeyService(st, services.WithKeyLifetime(cfg.KeyLifetime))
	updater := services.NewRecordUpdater(provider, cfg.RecordTTL, cfg.ProviderTimeout)
	hostnames := dyndns.NewHostnameResolver(cfg.ZoneName, cfg.DDNSSubdomain)

	deps := services.UpdateDeps{
		Keys:        keys,
		Updater:     updater,
		History:     st,
		Invalidator: invalidator,
		Hostnames:   hostnames,
		IPs:         dyndns.NewIPResolver(cfg.ClientIPHeaders),
		Timeout:     cfg.ProviderTimeout,
		Health:      health,
	}
	if cfg.Legacy.Enabled {
		logger.Warn("legacy shared-credential auth is enabled")
		deps.Legacy = services.NewLegacyAuthenticator(true, cfg.Legacy.Username, cfg.Legacy.Password)
	}
	a.updates = services.NewUpdateService(deps)

	var chain identity.Chain
	if cfg.IdentityHeader != "" {
		chain = append(chain, identity.NewHeaderPrincipal(cfg.IdentityHeader))
	}
	var login *identity.Login
	if cfg.SessionSecret != "" {
		sessions := identity.NewSessions(cfg.SessionSecret, cfg.SessionTTL)
		chain = append(chain, sessions)
		login = identity.NewLogin(cfg.OIDC, sessions, cfg.IsProduction())
	}

	owners := services.NewOwnershipService(keys, st, updater, hostnames)
	a.handler = api.NewAPIHandler(a.updates, owners, api.Options{
		Logger:        logger,
		Identity:      chain,
		Login:         login,
		LoginURL:      cfg.LoginURL,
		SecureCookies: cfg.IsProduction(),
	}).Routes()
	return a, nil
}
