package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dgnsrekt/twintype/internal/netutil"
	"github.com/dgnsrekt/twintype/internal/panel"
	"github.com/dgnsrekt/twintype/internal/tui"
)

var panelServe bool

var panelCmd = &cobra.Command{
	Use:   "panel",
	Short: "Open the terminal control panel",
	Long: `Open the terminal control panel. Logs go to the log file only.
With --serve the HTTP API runs alongside, sharing the same panel state.`,
	RunE: runPanel,
}

func init() {
	panelCmd.Flags().BoolVar(&panelServe, "serve", false, "also run the HTTP API")
}

func runPanel(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := setupLogger(cfg, false); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var sink *tui.ToastSink
	a, err := startApp(ctx, cfg, func(next panel.Sink) panel.Sink {
		sink = tui.NewToastSink(next)
		return sink
	})
	if err != nil {
		return err
	}
	defer a.Close()

	if panelServe {
		ln, err := netutil.Listen(cfg.BindAddr, cfg.PortCandidates, cfg.AutoFallback)
		if err != nil {
			stop()
			return err
		}
		srv := serveAPI(a, ln)
		defer shutdownAPI(srv)
	}

	err = tui.Run(ctx, a.panel, sink.Toasts())
	stop()
	return err
}
