package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"carvana-workflows/internal/di"
	"carvana-workflows/internal/infrastructure/env"

	"github.com/spf13/cobra"
)

var flags struct {
	catalog   []string
	store     string
	ephemeral bool
	url       string
	html      string
	headless  bool
	logLevel  string
	logFormat string
}

var rootCmd = &cobra.Command{
	Use:           "autoflow",
	Short:         "Run declarative browser workflows against the open page",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringSliceVar(&flags.catalog, "catalog", nil, "catalog file or directory (repeatable)")
	pf.StringVar(&flags.store, "store", "", "preferences file")
	pf.BoolVar(&flags.ephemeral, "ephemeral", false, "keep preferences in memory only")
	pf.StringVar(&flags.url, "url", "", "page to open after launch")
	pf.StringVar(&flags.html, "html", "", "run against a saved HTML file instead of a browser")
	pf.BoolVar(&flags.headless, "headless", false, "launch the browser headless")
	pf.StringVar(&flags.logLevel, "log-level", "", "debug, info, warn or error")
	pf.StringVar(&flags.logFormat, "log-format", "", "console or json")

	rootCmd.AddCommand(detectCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(prefsCmd)
}

// config layers the command line over AUTOFLOW_* settings.
func config(cmd *cobra.Command) di.Config {
	cfg := di.ConfigFromEnv(env.NewEnvService())
	changed := cmd.Flags().Changed
	if changed("catalog") {
		cfg.CatalogPaths = flags.catalog
	}
	if changed("store") {
		cfg.StorePath = flags.store
	}
	if changed("ephemeral") {
		cfg.EphemeralStore = flags.ephemeral
	}
	if changed("url") {
		cfg.URL = flags.url
	}
	if changed("html") {
		cfg.HTMLFile = flags.html
	}
	if changed("headless") {
		cfg.Browser.Headless = flags.headless
	}
	if changed("log-level") {
		cfg.Log.Level = flags.logLevel
	}
	if changed("log-format") {
		cfg.Log.Format = flags.logFormat
	}
	return cfg
}

func container(cmd *cobra.Command, detached bool) (*di.Container, error) {
	cfg := config(cmd)
	cfg.Detached = detached
	c, err := di.NewContainer(cmd.Context(), cfg)
	if err != nil {
		return nil, fmt.Errorf("initialization failed: %w", err)
	}
	return c, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
