package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/samvad-hq/samvad-feed-digest/internal/app"
	"github.com/samvad-hq/samvad-feed-digest/internal/config"
	"github.com/samvad-hq/samvad-feed-digest/internal/logger"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "digest failed: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "digest",
		Short: "Fetch RSS/Atom feeds and emit a digest of recent articles",
		Long: `digest polls a catalog of RSS and Atom feeds, keeps the articles published
within the time window and writes them newest first as a JSON report.

Example usage:
  digest                                  # built-in catalog, last 48h, report on stdout
  digest --hours 24 --output out/today.json
  digest --feeds feeds.yaml --concurrency 20 --timeout 5000
  digest --interval 3600 --publishers configs/publishers.yaml`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd)
		},
	}

	flags := cmd.Flags()
	flags.Int("hours", 48, "time window in hours; older articles are dropped")
	flags.StringP("output", "o", "", "write the JSON report to this path (default stdout)")
	flags.Int("concurrency", 10, "feeds fetched in parallel per group")
	flags.Int("timeout", 15000, "per-feed fetch timeout in milliseconds")
	flags.String("feeds", "", "feed catalog file, YAML or JSON (default built-in catalog)")
	flags.String("publishers", "", "publishers file, YAML or JSON (default none)")
	flags.Int("interval", 0, "seconds between digests; 0 runs once")
	flags.String("parser", "tolerant", "feed parser: tolerant or gofeed")
	flags.String("log-level", "info", "log level: debug, info, warn, error")
	flags.Bool("enrich", false, "scrape article pages for missing descriptions")

	return cmd
}

func run(cmd *cobra.Command) error {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.Init(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()

	logger.InfoObj("digest starting", "config", cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	digester, err := app.NewDigester(ctx, cfg, log)
	if err != nil {
		logger.ErrorObj("failed to initialize digester", "error", err)
		return err
	}

	if err := digester.Run(ctx); err != nil {
		if app.IsNoArticles(err) {
			logger.ErrorObj("digest produced no articles", "error", err)
		}
		return fmt.Errorf("digest run: %w", err)
	}

	return nil
}
