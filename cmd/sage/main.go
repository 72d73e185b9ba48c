package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tokensage/tokensage/internal/broadcast"
	"github.com/tokensage/tokensage/internal/config"
	"github.com/tokensage/tokensage/internal/metrics"
	"github.com/tokensage/tokensage/internal/queue"
)

const (
	appName = "tokensage"
	version = "v0.3.0"
)

var configPath string

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	rootCmd := &cobra.Command{
		Use:     "sage",
		Short:   "Token discovery, scoring and prophecy pipeline",
		Version: version,
		Long: `TokenSage discovers trending on-chain tokens, scores them from market,
social and risk telemetry, and mints ranked prophecies with a written thesis
for the strongest signals.`,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "configs/config.yaml", "Path to YAML config")

	workerCmd := &cobra.Command{
		Use:   "worker",
		Short: "Run the full pipeline: queue workers, scheduler, relay and metrics",
		RunE:  runWorker,
	}

	scanCmd := &cobra.Command{
		Use:   "scan",
		Short: "Enqueue a market search job",
		RunE:  runScan,
	}
	scanCmd.Flags().String("query", "", "Pair search query (required)")
	scanCmd.MarkFlagRequired("query")

	trendingCmd := &cobra.Command{
		Use:   "trending",
		Short: "One-shot trending discovery, printed to stdout",
		RunE:  runTrending,
	}

	prophecyCmd := &cobra.Command{
		Use:   "prophecy",
		Short: "Run prophecy scheduling",
		RunE:  runProphecy,
	}
	prophecyCmd.Flags().Bool("once", false, "Run a single cycle and exit")

	rootCmd.AddCommand(workerCmd, scanCmd, trendingCmd, prophecyCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, err
	}
	return cfg, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func runWorker(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := newApp(cfg, false)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signalContext()
	defer stop()

	for _, w := range a.workers() {
		go w.Run(ctx)
	}

	go a.scheduler.Run(ctx)
	a.thesis.StartHealthChecks(ctx)

	server := metrics.NewServer(cfg.Metrics.Addr)
	server.AddCheck("redis", func(ctx context.Context) error {
		return a.redis.Ping(ctx).Err()
	})
	if a.postgres != nil {
		server.AddCheck("postgres", a.postgres.Ping)
	}

	relay := broadcast.NewRelay(a.redis)
	server.Mount("/ws", relay)
	go func() {
		if err := relay.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("Relay stopped")
		}
	}()

	log.Info().Str("version", version).Msg("TokenSage worker up")
	if err := server.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	log.Info().Msg("Shutdown complete")
	return nil
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	query, _ := cmd.Flags().GetString("query")

	a, err := newApp(cfg, false)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signalContext()
	defer stop()

	job := queue.MarketJob{Kind: queue.MarketJobSearch, Query: query}
	if err := a.queue.Push(ctx, queue.QueueMarket, job); err != nil {
		return err
	}
	fmt.Printf("Enqueued market search for %q\n", query)
	return nil
}

func runTrending(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := newApp(cfg, true)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signalContext()
	defer stop()

	candidates, err := a.connector.Trending(ctx)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(candidates)
}

func runProphecy(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	once, _ := cmd.Flags().GetBool("once")

	a, err := newApp(cfg, false)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signalContext()
	defer stop()

	if once {
		created, err := a.scheduler.RunOnce(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Created %d prophecies\n", len(created))
		return nil
	}

	a.scheduler.Run(ctx)
	return nil
}
