package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/dgnsrekt/twintype/internal/config"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "twintype",
	Short: "Type once, send to ChatGPT, Gemini and Claude",
	Long: `TwinType drives provider chat tabs in a Chromium started with remote
debugging. One master buffer is mirrored into two target tabs and sent to
both with a single keystroke.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override TWINTYPE_LOG_LEVEL (debug, info, warn, error)")
	rootCmd.AddCommand(serveCmd, panelCmd, probeCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "twintype:", err)
		os.Exit(1)
	}
}

// loadConfig reads the environment and applies flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	return cfg, nil
}

// setupLogger sends slog to the rotating log file and, when console is set,
// to stdout as well.
func setupLogger(cfg *config.Config, console bool) error {
	if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o755); err != nil {
		return err
	}

	logWriter := &lumberjack.Logger{
		Filename:   cfg.LogFile,
		MaxSize:    25,
		MaxBackups: 10,
		MaxAge:     14,
		Compress:   true,
	}

	var out io.Writer = logWriter
	if console {
		out = io.MultiWriter(os.Stdout, logWriter)
	}
	h := slog.NewTextHandler(out, &slog.HandlerOptions{Level: cfg.SlogLevel()})
	slog.SetDefault(slog.New(h))
	return nil
}
