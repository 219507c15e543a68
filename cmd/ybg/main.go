package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/muflih795/YBG-Database-3/internal/auth"
	"github.com/muflih795/YBG-Database-3/internal/backup"
	"github.com/muflih795/YBG-Database-3/internal/config"
	"github.com/muflih795/YBG-Database-3/internal/database"
	"github.com/muflih795/YBG-Database-3/internal/email"
	"github.com/muflih795/YBG-Database-3/internal/handoff"
	"github.com/muflih795/YBG-Database-3/internal/logging"
	"github.com/muflih795/YBG-Database-3/internal/loyalty"
	"github.com/muflih795/YBG-Database-3/internal/metrics"
	"github.com/muflih795/YBG-Database-3/internal/server"
	"github.com/muflih795/YBG-Database-3/internal/store"
	"github.com/muflih795/YBG-Database-3/internal/store/postgres"
	"github.com/muflih795/YBG-Database-3/internal/tier"
	ws "github.com/muflih795/YBG-Database-3/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ybg: %v\n", err)
		os.Exit(1)
	}
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	if len(os.Args) > 1 && os.Args[1] == "restore" {
		if err := restore(cfg, logger, os.Args[2:]); err != nil {
			logger.Error("restore failed", "error", err)
			os.Exit(1)
		}
		return
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func backupConfig(cfg config.Config) backup.Config {
	return backup.Config{
		S3: backup.S3Config{
			Endpoint:  cfg.Backup.Endpoint,
			Bucket:    cfg.Backup.Bucket,
			Region:    cfg.Backup.Region,
			AccessKey: cfg.Backup.AccessKey,
			SecretKey: cfg.Backup.SecretKey,
		},
		Passphrase: cfg.Backup.Passphrase,
		Prefix:     "ledger",
		Interval:   cfg.Backup.Interval,
		Retention:  cfg.Backup.Retention,
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		st      store.Store
		ping    func(context.Context) error
		backups *backup.Manager
	)
	if cfg.DatabaseURL != "" {
		pool, err := database.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()
		pg, err := postgres.New(pool)
		if err != nil {
			return err
		}
		st, ping = pg, pool.Ping
		logger.Info("ledger on postgres")
	} else {
		db, err := database.Open(cfg.DBPath)
		if err != nil {
			return err
		}
		defer db.Close()
		st, ping = store.NewSQLite(db), db.PingContext
		backups = backup.NewManager(backupConfig(cfg), db, store.NewBackupLog(db), logger)
		logger.Info("ledger on sqlite", "path", cfg.DBPath)
	}

	tiers, err := tier.Load(cfg.TiersFile)
	if err != nil {
		return err
	}

	var linker *handoff.Linker
	if cfg.WhatsAppNumber != "" {
		if linker, err = handoff.NewLinker(cfg.WhatsAppNumber); err != nil {
			return fmt.Errorf("YBG_WHATSAPP_NUMBER: %w", err)
		}
	}

	m := metrics.New()
	hub := ws.NewHub(logger)
	opts := []loyalty.Option{
		loyalty.WithLocation(cfg.Timezone),
		loyalty.WithCreditTTL(cfg.CreditTTL),
		loyalty.WithWelcomePoints(cfg.WelcomePoints),
		loyalty.WithMetrics(m),
		loyalty.WithEvents(hub),
	}
	if mailer := email.NewClient(cfg.PostmarkToken, cfg.FromEmail, cfg.SAEmail); mailer.Configured() {
		opts = append(opts, loyalty.WithNotifier(mailer))
	}
	svc := loyalty.NewService(st, tiers, logger, opts...)

	srv := server.New(server.Options{
		Service:       svc,
		Verifier:      auth.NewVerifier(cfg.JWTSecret, cfg.JWTAudience),
		Hub:           hub,
		Metrics:       m,
		Backups:       backups,
		Linker:        linker,
		Ping:          ping,
		SessionCookie: cfg.SessionCookie,
		WSOrigins:     cfg.WSOrigins,
	}, logger)

	if backups != nil {
		backups.Start(ctx)
		defer backups.Stop()
	}

	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				srv.RateLimiter().Cleanup()
			}
		}
	}()

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// restore handles "ybg restore <backup-id> <output-path>". It writes a
// verified copy of the backup next to the live database; stop the server
// and swap the file in by hand.
func restore(cfg config.Config, logger *slog.Logger, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: ybg restore <backup-id> <output-path>")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("backup id: %w", err)
	}

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	mgr := backup.NewManager(backupConfig(cfg), db, store.NewBackupLog(db), logger)
	if err := mgr.Restore(context.Background(), id, args[1]); err != nil {
		return err
	}
	logger.Info("backup restored", "id", id, "path", args[1])
	return nil
}
