// Package main provides the catalog-browser CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Sternrassler/catalog-sync/internal/config"
	"github.com/Sternrassler/catalog-sync/pkg/client"
	"github.com/Sternrassler/catalog-sync/pkg/logging"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	version    = "0.1.0-dev"
	configPath string
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	rootCmd := newRootCmd()
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "catalog-browser",
		Short:         "Browse a paginated remote catalog incrementally",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a YAML config file")

	rootCmd.AddCommand(
		newServeCmd(),
		newBrowseCmd(),
		newShowCmd(),
	)
	return rootCmd
}

// setup loads the configuration and configures logging.
func setup() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logging.Setup(cfg.LoggingConfig())
	return cfg, nil
}

// withClient builds the catalog client, connecting to Redis when configured,
// and closes the Redis connection once fn returns.
func withClient(ctx context.Context, cfg *config.Config, fn func(*client.Client) error) error {
	opts, err := cfg.RedisOptions()
	if err != nil {
		return err
	}

	var rdb *redis.Client
	if opts != nil {
		rdb = redis.NewClient(opts)
		defer rdb.Close()

		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connecting to redis at %s: %w", opts.Addr, err)
		}
		log.Info().Str("addr", opts.Addr).Msg("Connected to Redis")
	}

	c, err := client.New(cfg.ClientConfig(rdb))
	if err != nil {
		return fmt.Errorf("creating catalog client: %w", err)
	}
	return fn(c)
}
