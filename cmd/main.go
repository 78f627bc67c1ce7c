package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/tinoosan/banking/internal/config"
	"github.com/tinoosan/banking/internal/events"
	httpapi "github.com/tinoosan/banking/internal/httpapi/v1"
	"github.com/tinoosan/banking/internal/ledger"
	"github.com/tinoosan/banking/internal/service/account"
	"github.com/tinoosan/banking/internal/storage/memory"
	"github.com/tinoosan/banking/internal/storage/orm"
	pgstore "github.com/tinoosan/banking/internal/storage/postgres"
)

// backend is what every storage option provides to the service.
type backend interface {
	account.Repo
	account.Writer
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	logger := buildLogger(cfg.Log)
	slog.SetDefault(logger)

	store, ready, closeFn, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open storage", "backend", cfg.Storage, "err", err)
		os.Exit(1)
	}
	defer closeFn()

	opts := []account.Option{account.WithCurrency(cfg.Curr()), account.WithLogger(logger)}
	if cfg.AMQP.URL != "" {
		pub, err := events.Dial(events.Config{URL: cfg.AMQP.URL, Exchange: cfg.AMQP.Exchange, RoutingPrefix: cfg.AMQP.RoutingPrefix})
		if err != nil {
			logger.Error("failed to connect to rabbitmq", "err", err)
			os.Exit(1)
		}
		defer pub.Close()
		opts = append(opts, account.WithPublisher(pub))
		logger.Info("publishing transactions", "exchange", cfg.AMQP.Exchange)
	}
	svc := account.New(store, store, opts...)

	if cfg.DevSeed {
		accs, err := seedDev(ctx, svc)
		if err != nil {
			logger.Error("dev seed failed", "err", err)
		} else {
			logDevSeed(logger, cfg.Storage, accs)
			printDevSeedBanner(accs)
		}
	}

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           httpapi.New(svc, logger, ready...).Handler(),
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("banking service listening", "addr", srv.Addr, "currency", cfg.Currency)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		ctxShutdown, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctxShutdown); err != nil {
			logger.Error("server shutdown error", "err", err)
		}
	case err := <-errCh:
		logger.Error("server error", "err", err)
	}
}

// openStore builds the configured backend. The returned checkers feed /readyz.
func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (backend, []httpapi.ReadyChecker, func(), error) {
	switch cfg.Storage {
	case config.StoragePostgres:
		pg, err := pgstore.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			pg.Close()
			return nil, nil, nil, fmt.Errorf("ensure schema: %w", err)
		}
		logger.Info("storage backend: postgres")
		return pg, []httpapi.ReadyChecker{pg}, pg.Close, nil
	case config.StorageORM:
		db, err := orm.Open(orm.Config{Dialect: cfg.ORM.Dialect, DSN: cfg.DatabaseURL, LogLevel: cfg.ORM.LogLevel})
		if err != nil {
			return nil, nil, nil, err
		}
		if err := db.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, nil, nil, fmt.Errorf("migrate: %w", err)
		}
		logger.Info("storage backend: orm", "dialect", cfg.ORM.Dialect)
		return db, []httpapi.ReadyChecker{db}, func() { _ = db.Close() }, nil
	default:
		logger.Info("storage backend: memory")
		return memory.New(), nil, func() {}, nil
	}
}

// seedDev opens two funded accounts so the API can be tried right away.
func seedDev(ctx context.Context, svc account.Service) ([]ledger.Account, error) {
	var out []ledger.Account
	for _, s := range []struct{ name, balance string }{{"Alice", "100"}, {"Bob", "50"}} {
		bal, err := ledger.ParseAmount(svc.Currency(), s.balance)
		if err != nil {
			return nil, err
		}
		acc, err := svc.CreateAccount(ctx, s.name, bal)
		if err != nil {
			return nil, err
		}
		out = append(out, acc)
	}
	return out, nil
}

// logDevSeed emits structured logs with useful IDs
func logDevSeed(l *slog.Logger, backend string, accs []ledger.Account) {
	ids := map[string]int64{}
	for _, a := range accs {
		ids[strings.ToLower(a.HolderName)+"_account_id"] = a.ID
	}
	l.Info("DEV seed ("+backend+")", "ids", ids)
}

// printDevSeedBanner prints a simple banner to stdout for easy copy/paste of IDs
func printDevSeedBanner(accs []ledger.Account) {
	fmt.Println("==================== DEV SEED ====================")
	for _, a := range accs {
		fmt.Printf("%s: id=%d balance=%s %s\n", a.HolderName, a.ID, ledger.FormatAmount(a.Balance), a.Balance.Curr().Code())
	}
	fmt.Println("==================================================")
}

// parseLogLevel maps config values to slog.Leveler
func parseLogLevel(s string) slog.Leveler {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error", "err":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func buildLogger(c config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(c.Level)}
	if strings.EqualFold(strings.TrimSpace(c.Format), "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	// default to JSON
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
