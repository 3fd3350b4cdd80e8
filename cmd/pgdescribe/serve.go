package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/koustreak/pgdescribe/internal/filestore/backend"
	"github.com/koustreak/pgdescribe/internal/offline"
	"github.com/koustreak/pgdescribe/internal/server"
	"github.com/koustreak/pgdescribe/internal/session"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve describes over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), root, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}

func runServe(ctx context.Context, root *rootOptions, addr string) error {
	cfg, log, err := root.load()
	if err != nil {
		return err
	}
	if err := cfg.RequireDSN(); err != nil {
		return err
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := backend.Open(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer store.Close()

	pool := server.NewPool(cfg.Database.PoolSize, func(ctx context.Context) (server.Session, error) {
		s, err := session.Open(ctx, cfg.Database, cfg.Describe)
		if err != nil {
			return nil, err
		}
		return s, nil
	}, log)

	srv := server.New(pool, server.Options{
		Logger:       log,
		Cache:        offline.New(store, log),
		QueryTimeout: cfg.Database.QueryTimeout,
	})
	httpSrv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.With().Str("addr", cfg.Server.Addr).Logger().Info("listening")
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		pool.Close(context.Background())
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	err = httpSrv.Shutdown(shutdownCtx)
	if err != nil {
		log.Error("http server did not shut down cleanly")
	}
	pool.Close(shutdownCtx)
	return err
}
