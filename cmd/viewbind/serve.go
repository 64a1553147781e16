// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AleutianAI/viewbind/services/viewbind"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

const (
	serviceName     = "viewbind"
	shutdownTimeout = 10 * time.Second
)

func newServeCmd(opts *options) *cobra.Command {
	var (
		addr  string
		watch bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve queries over HTTP",
		Long: `serve loads the project once and answers queries under /v1/viewbind.
Prometheus metrics are exposed at /metrics. With --watch, file changes
under a local root are re-parsed as they happen.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := opts.open(ctx, cmd)
			if err != nil {
				return err
			}
			if addr == "" {
				addr = a.cfg.Server.Address
			}

			tel, err := setupTelemetry(ctx, a.cfg.Telemetry, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				if err := tel.Shutdown(shutdownCtx); err != nil {
					a.logger.Warn("telemetry shutdown failed", slog.String("error", err.Error()))
				}
			}()

			if watch {
				go func() {
					if err := a.ws.Watch(ctx); err != nil {
						a.logger.Error("watch stopped", slog.String("error", err.Error()))
					}
				}()
			}

			return serve(ctx, a, addr, tel.MetricsHandler)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	cmd.Flags().BoolVar(&watch, "watch", false, "re-parse files as they change")
	return cmd
}

// newServer builds the HTTP handler tree: query routes plus /metrics.
func newServer(a *app, metrics http.Handler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := viewbind.NewRouter(viewbind.NewHandlers(a.svc), viewbind.RouterOptions{
		ServiceName:       serviceName,
		RequestsPerSecond: a.cfg.Server.RequestsPerSecond,
		Burst:             a.cfg.Server.Burst,
	})
	router.GET("/metrics", gin.WrapH(metrics))
	return router
}

// serve runs the server until ctx is canceled, then drains in-flight
// requests.
func serve(ctx context.Context, a *app, addr string, metrics http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           newServer(a, metrics),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("starting viewbind server",
			slog.String("address", addr),
			slog.String("root", a.ws.Root()))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	a.logger.Info("shutting down viewbind server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
