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

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"docmanager/internal/api"
	"docmanager/internal/auth"
	"docmanager/internal/config"
	"docmanager/internal/db"
	"docmanager/internal/files"
	"docmanager/internal/logging"
	"docmanager/internal/metrics"
	"docmanager/internal/notify"
	"docmanager/internal/service"
	"docmanager/internal/store"
	"docmanager/internal/version"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "docmanager",
		Short:         "Document library API server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          func(cmd *cobra.Command, args []string) error { return serve(cmd.Context()) },
	}
	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Args:  cobra.NoArgs,
			Short: "Run the HTTP API (default)",
			RunE:  func(cmd *cobra.Command, args []string) error { return serve(cmd.Context()) },
		},
		&cobra.Command{
			Use:   "migrate",
			Args:  cobra.NoArgs,
			Short: "Apply database migrations and exit",
			RunE:  func(cmd *cobra.Command, args []string) error { return migrate() },
		},
		&cobra.Command{
			Use:   "version",
			Args:  cobra.NoArgs,
			Short: "Print build information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintln(cmd.OutOrStdout(), version.Current().String())
			},
		},
	)
	return root
}

type runtime struct {
	cfg     config.Config
	log     *logrus.Logger
	closeFn []func()
}

func (rt *runtime) close() {
	for i := len(rt.closeFn) - 1; i >= 0; i-- {
		rt.closeFn[i]()
	}
}

func setup() (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		return nil, err
	}
	logger, closeLog, err := logging.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		return nil, err
	}
	return &runtime{cfg: cfg, log: logger, closeFn: []func(){closeLog}}, nil
}

func openDB(rt *runtime) (*store.Store, error) {
	dialect, err := db.ParseDialect(rt.cfg.DBDriver)
	if err != nil {
		return nil, err
	}
	sqdb, err := db.Open(db.Options{
		Dialect:     dialect,
		DSN:         rt.cfg.DBDSN,
		Path:        rt.cfg.DBPath,
		MaxOpen:     rt.cfg.DBMaxOpenConns,
		MaxIdle:     rt.cfg.DBMaxIdleConns,
		MaxLifetime: rt.cfg.DBConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	rt.closeFn = append(rt.closeFn, func() { _ = sqdb.Close() })
	if err := db.ApplyMigrations(sqdb, dialect); err != nil {
		return nil, fmt.Errorf("migration: %w", err)
	}
	return store.New(sqdb, dialect), nil
}

func migrate() error {
	rt, err := setup()
	if err != nil {
		return err
	}
	defer rt.close()
	if _, err := openDB(rt); err != nil {
		rt.log.WithError(err).Error("migrate failed")
		return err
	}
	rt.log.WithField("driver", rt.cfg.DBDriver).Info("migrations applied")
	return nil
}

func newRevoker(rt *runtime) auth.Revoker {
	if rt.cfg.RedisAddr == "" {
		return auth.NewMemoryRevoker(time.Now)
	}
	client := redis.NewClient(&redis.Options{
		Addr:     rt.cfg.RedisAddr,
		Password: rt.cfg.RedisPassword,
		DB:       rt.cfg.RedisDB,
	})
	rt.closeFn = append(rt.closeFn, func() { _ = client.Close() })
	rt.log.WithField("addr", rt.cfg.RedisAddr).Info("token revocation backed by redis")
	return auth.NewRedisRevoker(client)
}

func serve(ctx context.Context) error {
	rt, err := setup()
	if err != nil {
		return err
	}
	defer rt.close()
	cfg, log := rt.cfg, rt.log

	st, err := openDB(rt)
	if err != nil {
		log.WithError(err).Error("database setup failed")
		return err
	}
	fs, err := files.NewLocal(cfg.UploadDir)
	if err != nil {
		log.WithError(err).Error("upload dir setup failed")
		return err
	}
	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.JWTTTL, auth.WithRevoker(newRevoker(rt)))
	svc := service.New(cfg, st, tokens, fs, notify.NewSender(cfg, log), service.WithLogger(log))
	if err := svc.EnsureBootstrapAdmin(ctx); err != nil {
		log.WithError(err).Error("bootstrap admin failed")
		return err
	}
	if n, err := st.DeleteExpiredPasswordResets(ctx); err != nil {
		log.WithError(err).Warn("purge expired password resets")
	} else if n > 0 {
		log.WithField("count", n).Info("purged expired password resets")
	}

	hsrv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.NewRouter(cfg, svc, fs, metrics.New(), log),
		ReadTimeout:       time.Duration(cfg.HTTPReadTimeoutSec) * time.Second,
		ReadHeaderTimeout: time.Duration(cfg.HTTPReadHeaderTimeoutSec) * time.Second,
		WriteTimeout:      time.Duration(cfg.HTTPWriteTimeoutSec) * time.Second,
		IdleTimeout:       time.Duration(cfg.HTTPIdleTimeoutSec) * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	errCh := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{"addr": cfg.ListenAddr, "version": version.Current().Version}).Info("listening")
		errCh <- hsrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("server failed")
			return err
		}
		return nil
	case <-sigCtx.Done():
	}
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return hsrv.Shutdown(shutdownCtx)
}
