package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dgnsrekt/twintype/internal/api"
	"github.com/dgnsrekt/twintype/internal/netutil"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and event stream",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := setupLogger(cfg, true); err != nil {
		_, _ = io.WriteString(os.Stderr, "logger setup failed: "+err.Error()+"\n")
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := startApp(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	ln, err := netutil.Listen(cfg.BindAddr, cfg.PortCandidates, cfg.AutoFallback)
	if err != nil {
		stop()
		return err
	}

	srv := serveAPI(a, ln)
	<-ctx.Done()
	shutdownAPI(srv)
	return nil
}

// serveAPI starts the HTTP server on ln in the background.
func serveAPI(a *app, ln net.Listener) *http.Server {
	srv := &http.Server{
		Handler:           api.NewServer(a.gw, a.panel, a.broker),
		ReadHeaderTimeout: 10 * time.Second,
	}
	addr := ln.Addr().String()
	go func() {
		slog.Info("api listening", "addr", addr, "docs", "http://"+addr+"/docs")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("api server failed", "error", err)
		}
	}()
	return srv
}

func shutdownAPI(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("api shutdown failed", "error", err)
	}
}
