package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/dusk-indust/esimctl/internal/hostrpc"
	"github.com/dusk-indust/esimctl/internal/mcptools"
)

func serveHostCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve-host",
		Short: "Expose the configured host over JSON-RPC",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a.serveMetrics(ctx)

			srv := hostrpc.NewServer(a.host,
				hostrpc.WithLogger(a.logger),
				hostrpc.WithRateLimit(a.cfg.RPCRateLimit, a.cfg.RPCRateBurst),
			)
			if _, err := srv.Start(ctx, addr); err != nil {
				return err
			}

			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Stop(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:7070", "listen address")
	return cmd
}

func serveMCPCmd(a *app) *cobra.Command {
	var httpAddr string
	cmd := &cobra.Command{
		Use:   "serve-mcp",
		Short: "Run the profile tools as an MCP server (stdio unless --http is set)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a.serveMetrics(ctx)

			server := mcptools.NewProfileMCPServer(a.svc)
			if httpAddr != "" {
				a.logger.Info("serving MCP over HTTP", "addr", httpAddr)
				return mcptools.RunHTTP(ctx, server, httpAddr)
			}
			return mcptools.RunStdio(ctx, server)
		},
	}
	cmd.Flags().StringVar(&httpAddr, "http", "", "serve streamable HTTP on this address instead of stdio")
	return cmd
}

// serveMetrics exposes /metrics on the configured address until ctx ends.
func (a *app) serveMetrics(ctx context.Context) {
	if a.cfg.MetricsAddr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", a.collector.Handler())
	srv := &http.Server{
		Addr:              a.cfg.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server failed", "error", err)
		}
	}()
	a.logger.Info("serving metrics", "addr", a.cfg.MetricsAddr)
}
