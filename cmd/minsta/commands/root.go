package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/dyluth/minsta/internal/config"
	"github.com/dyluth/minsta/internal/printer"
	"github.com/dyluth/minsta/pkg/registry"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

var (
	version string
	commit  string
	date    string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "minsta",
	Short: "Minsta - proxy minter that credits the previous minter",
	Long: `Minsta forwards mint requests to collectible-issuing services on behalf
of callers. Each new mint is owned by the previous minter of the same
service, and the caller becomes the latest minter once the service has
answered.

The latest-minter registry lives in Redis; mint lifecycle events are
published on Redis Pub/Sub.`,
	Version: version,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
	FParseErrWhitelist: cobra.FParseErrWhitelist{},
}

// Execute runs the root command. Called by main.main().
func Execute() error {
	// Errors are printed in colour by the printer package
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

// registryFlags are shared by the commands that read Redis directly.
type registryFlags struct {
	redisURL     string
	instanceName string
}

func (f *registryFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.redisURL, "redis-url", envOr("REDIS_URL", "redis://localhost:6379"), "Redis URL of the registry")
	cmd.Flags().StringVarP(&f.instanceName, "name", "n", envOr("MINSTA_INSTANCE_NAME", config.DefaultInstanceName), "Instance name")
}

// connect opens and pings the registry.
func (f *registryFlags) connect(ctx context.Context) (*registry.Client, error) {
	redisOpts, err := redis.ParseURL(f.redisURL)
	if err != nil {
		return nil, printer.Error(
			"invalid Redis URL",
			fmt.Sprintf("Could not parse %q: %v", f.redisURL, err),
			[]string{"Use the form redis://host:port/db"},
		)
	}

	client, err := registry.NewClient(redisOpts, f.instanceName)
	if err != nil {
		return nil, fmt.Errorf("failed to create registry client: %w", err)
	}

	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, printer.ErrorWithContext(
			"Redis connection failed",
			fmt.Sprintf("Could not connect to Redis: %v", err),
			map[string]string{"Redis URL": f.redisURL, "Instance": f.instanceName},
			[]string{"Check that Redis is running and --redis-url is correct"},
		)
	}

	return client, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
