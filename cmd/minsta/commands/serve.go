package commands

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dyluth/minsta/internal/api"
	"github.com/dyluth/minsta/internal/config"
	"github.com/dyluth/minsta/internal/engine"
	"github.com/dyluth/minsta/internal/minter"
	"github.com/dyluth/minsta/internal/printer"
	"github.com/dyluth/minsta/internal/transport"
	"github.com/dyluth/minsta/pkg/registry"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

var serveConfigPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the proxy minter",
	Long: `Run the proxy minter HTTP API.

Reads minsta.yml, connects to the Redis registry and serves:
  POST /v1/mint                     submit a mint (caller from the caller header)
  POST /v1/cb_mint                  reconciliation callback (contract only)
  GET  /v1/latest-minter/{target}   query the registry
  GET  /v1/receipts/{id}            state of a submitted mint
  GET  /healthz                     Redis health

Environment overrides: REDIS_URL, MINSTA_INSTANCE_NAME, MINSTA_LISTEN_ADDR.

On SIGINT/SIGTERM the server stops accepting requests and waits for every
in-flight mint to reach its callback before exiting.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&serveConfigPath, "config", "c", "minsta.yml", "Path to minsta.yml")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(serveConfigPath)
	if err != nil {
		return printer.Error(
			"failed to load configuration",
			err.Error(),
			[]string{fmt.Sprintf("Check %s", serveConfigPath)},
		)
	}

	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("invalid redis.url: %w", err)
	}

	regClient, err := registry.NewClient(redisOpts, cfg.Redis.InstanceName)
	if err != nil {
		return fmt.Errorf("failed to create registry client: %w", err)
	}
	defer regClient.Close()

	ctx := context.Background()
	if err := regClient.Ping(ctx); err != nil {
		return printer.ErrorWithContext(
			"Redis connection failed",
			fmt.Sprintf("Could not connect to Redis: %v", err),
			map[string]string{"Instance": cfg.Redis.InstanceName},
			[]string{"Check that Redis is running and redis.url (or REDIS_URL) is correct"},
		)
	}

	m, err := minter.New(minter.NewRegistryStore(regClient), minter.AccountID(cfg.ContractID))
	if err != nil {
		return fmt.Errorf("failed to create minter: %w", err)
	}

	eng := engine.NewEngine(m, transport.NewFromConfig(cfg), regClient, engine.Options{
		InstanceName:    cfg.Redis.InstanceName,
		CallbackTimeout: cfg.Timeouts.Callback,
	})
	server := api.NewServer(eng, regClient, cfg.Server.ListenAddr, cfg.Server.CallerHeader)

	log.Printf("[Minsta] Starting contract '%s' for instance '%s' (%d configured targets)",
		cfg.ContractID, cfg.Redis.InstanceName, len(cfg.Targets))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	if err := server.Start(); err != nil {
		return printer.ErrorWithContext(
			"failed to start API server",
			err.Error(),
			map[string]string{"Listen address": cfg.Server.ListenAddr},
			[]string{"Choose a free address with server.listen_addr"},
		)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- eng.Run(runCtx)
	}()

	var serveErr error
	select {
	case sig := <-sigCh:
		log.Printf("[Minsta] Received signal %v, shutting down gracefully...", sig)
	case serveErr = <-server.Err():
		log.Printf("[Minsta] API server stopped: %v, shutting down...", serveErr)
	case runErr := <-errCh:
		return runErr
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, cfg.Timeouts.Shutdown)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("[Minsta] API server shutdown: %v", err)
	}

	cancel()
	if err := <-errCh; err != nil {
		return err
	}
	if serveErr != nil {
		return fmt.Errorf("API server failed: %w", serveErr)
	}

	log.Printf("[Minsta] Stopped")
	return nil
}
