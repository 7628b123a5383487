package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/dgnsrekt/twintype/internal/probe"
	"github.com/dgnsrekt/twintype/internal/provider"
)

var probeTimeout time.Duration

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Report which composer and send selectors match in each provider tab",
	Long: `Probe attaches to every open provider tab and evaluates the provider's
selector lists read-only. Nothing is injected and no text is written.`,
	RunE: runProbe,
}

func init() {
	probeCmd.Flags().DurationVar(&probeTimeout, "tab-timeout", 10*time.Second, "per-tab evaluation timeout")
}

func runProbe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := setupLogger(cfg, false); err != nil {
		return err
	}

	registry := provider.NewRegistry()
	if err := registry.LoadFile(cfg.ProfilesFile); err != nil {
		return err
	}

	p := &probe.Prober{Registry: registry, TabTimeout: probeTimeout}
	reports, err := p.Run(cmd.Context(), cfg.CDPURL())
	if err != nil {
		return err
	}
	return probe.WriteReports(cmd.OutOrStdout(), reports)
}
