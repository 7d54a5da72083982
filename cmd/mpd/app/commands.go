// SPDX-FileCopyrightText: Copyright 2026 The MPD Authors
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mpd-project/mpd/pkg/config"
	"github.com/mpd-project/mpd/pkg/linkapi"
	"github.com/mpd-project/mpd/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:               "mpd",
	DisableAutoGenTag: true,
	Short:             "Link-level authentication and accounting daemon",
	Long: `mpd is the link authentication and session accounting subsystem of a PPP
daemon: PAP/CHAP/MS-CHAP/EAP negotiation, a pluggable backend chain
(external script, RADIUS, system password database, OPIE, internal
secrets file), and RADIUS/UTMP accounting.

This binary owns no link framing or packet routing — those are provided
by the embedding process through the narrow linkapi interfaces. serve
validates and wires the configured links and exposes accounting metrics;
a real deployment embeds this module directly rather than running it
standalone.`,
	Run: func(cmd *cobra.Command, _ []string) {
		if err := cmd.Help(); err != nil {
			logger.Errorf("error displaying help: %v", err)
		}
	},
}

// NewRootCmd creates the mpd root command.
func NewRootCmd() *cobra.Command {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to mpd configuration file")
	if err := viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config")); err != nil {
		logger.Errorf("error binding config flag: %v", err)
	}

	rootCmd.AddCommand(newValidateCmd())
	rootCmd.AddCommand(newServeCmd())

	rootCmd.SilenceUsage = true
	return rootCmd
}

func loadConfig() (*config.Config, error) {
	path := viper.GetString("config")
	if path == "" {
		return nil, fmt.Errorf("no configuration file specified, use --config")
	}
	return config.Load(path)
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration file and print configured links",
		RunE: func(*cobra.Command, []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return renderLinksTable(cfg)
		},
	}
}

func renderLinksTable(cfg *config.Config) error {
	names := make([]string, 0, len(cfg.Links))
	for name := range cfg.Links {
		names = append(names, name)
	}
	sort.Strings(names)

	table := tablewriter.NewWriter(os.Stdout)
	table.Options(
		tablewriter.WithHeader([]string{"Link", "Max Logins", "Timeout", "Backends"}),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.Border{Left: tw.State(1), Top: tw.State(1), Right: tw.State(1), Bottom: tw.State(1)},
		}),
		tablewriter.WithAlignment(tw.MakeAlign(4, tw.AlignLeft)),
	)

	for _, name := range names {
		opts := cfg.Links[name]
		if err := table.Append([]string{
			name,
			fmt.Sprintf("%d", opts.MaxLogins),
			opts.Timeout.String(),
			enabledBackends(opts),
		}); err != nil {
			return fmt.Errorf("mpd: append row: %w", err)
		}
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("mpd: render table: %w", err)
	}
	return nil
}

func enabledBackends(opts config.LinkOptions) string {
	var names []string
	if opts.EnableExternal {
		names = append(names, "external")
	}
	if opts.EnableRadius {
		names = append(names, "radius")
	}
	if opts.EnableSystem {
		names = append(names, "system")
	}
	if opts.EnableOPIE {
		names = append(names, "opie")
	}
	if opts.EnableInternal {
		names = append(names, "internal")
	}
	if len(names) == 0 {
		return "(none)"
	}
	out := names[0]
	for _, n := range names[1:] {
		out += ", " + n
	}
	return out
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Wire the configured links and serve accounting metrics",
		Long: `serve loads the configuration, constructs a Controller and Accountant for
every configured link, registers accounting metrics with Prometheus, and
blocks serving them over HTTP until interrupted.

Frame I/O and LCP negotiation are provided by the embedding process; this
command uses an in-memory linkapi.Fake so it can run standalone for
wiring verification and metrics inspection.`,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	daemon, err := NewDaemon(cfg, linkapi.NewFake(), linkapi.NewFake(), HostDeps{}, reg)
	if err != nil {
		return fmt.Errorf("mpd: wiring links: %w", err)
	}
	logger.Infof("wired %d link(s)", len(daemon.Links))

	addr := cfg.Daemon.MetricsAddr
	if addr == "" {
		addr = ":9100"
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.ListenAndServe() }()
	logger.Infof("serving accounting metrics on %s/metrics", addr)

	ctx := cmd.Context()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-ctx.Done():
	case <-sigCh:
		logger.Info("shutdown signal received")
	case err := <-serveErr:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("mpd: metrics server: %w", err)
		}
	}

	return srv.Close()
}
