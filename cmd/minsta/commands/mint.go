package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dyluth/minsta/internal/api"
	"github.com/dyluth/minsta/internal/config"
	"github.com/dyluth/minsta/internal/engine"
	"github.com/dyluth/minsta/internal/printer"
	"github.com/dyluth/minsta/internal/watch"
	"github.com/spf13/cobra"
)

var (
	mintServer       string
	mintAs           string
	mintCallerHeader string
	mintTarget       string
	mintMetadata     string
	mintMetadataFile string
	mintWait         bool
	mintWaitRegistry time.Duration
	mintTimeout      time.Duration
	mintRegistry     registryFlags
)

var mintCmd = &cobra.Command{
	Use:   "mint",
	Short: "Submit a mint to a running minsta server",
	Long: `Submit a mint on behalf of an account.

The new token is owned by the previous minter of the target service (or by
the caller for the first mint), and the caller becomes the latest minter
once the service has answered.

Examples:
  # Submit and return immediately
  minsta mint --as alice.near --target nft.example.near --metadata '{"title":"Sunset"}'

  # Wait for the callback
  minsta mint --as bob.near --target nft.example.near --metadata-file meta.json --wait

  # Wait until the registry shows the caller
  minsta mint --as bob.near --target nft.example.near --metadata '{}' --wait-registry 10s`,
	RunE: runMint,
}

func init() {
	mintCmd.Flags().StringVar(&mintServer, "server", envOr("MINSTA_SERVER", "http://localhost:8080"), "minsta server URL")
	mintCmd.Flags().StringVar(&mintAs, "as", "", "Caller account (required)")
	mintCmd.Flags().StringVar(&mintCallerHeader, "caller-header", config.DefaultCallerHeader, "Header carrying the caller account")
	mintCmd.Flags().StringVar(&mintTarget, "target", "", "Target service account (required)")
	mintCmd.Flags().StringVar(&mintMetadata, "metadata", "", "Token metadata as a JSON document")
	mintCmd.Flags().StringVar(&mintMetadataFile, "metadata-file", "", "Read token metadata from a file")
	mintCmd.Flags().BoolVar(&mintWait, "wait", false, "Wait for the reconciliation callback")
	mintCmd.Flags().DurationVar(&mintWaitRegistry, "wait-registry", 0, "Poll the registry until the caller is recorded (e.g. 10s)")
	mintCmd.Flags().DurationVar(&mintTimeout, "timeout", time.Minute, "Request timeout")
	mintRegistry.register(mintCmd)

	mintCmd.MarkFlagRequired("as")
	mintCmd.MarkFlagRequired("target")
	mintCmd.MarkFlagsMutuallyExclusive("metadata", "metadata-file")

	rootCmd.AddCommand(mintCmd)
}

func runMint(cmd *cobra.Command, args []string) error {
	metadata, err := readMetadata()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), mintTimeout)
	defer cancel()

	client := api.NewClient(mintServer, mintAs, mintCallerHeader, mintTimeout)
	status, err := client.Mint(ctx, metadata, mintTarget, mintWait)
	if err != nil {
		var apiErr *api.APIError
		if errors.As(err, &apiErr) {
			return printer.ErrorWithContext(
				"mint rejected",
				apiErr.Message,
				map[string]string{"Status": fmt.Sprintf("%d", apiErr.StatusCode), "Code": apiErr.Code},
				nil,
			)
		}
		return printer.Error(
			"minsta server unreachable",
			err.Error(),
			[]string{"Start the server:\n  minsta serve", "Point at a running server:\n  minsta mint --server <url>"},
		)
	}

	printer.Receipt(status)
	if status.State == engine.MintStateFailed {
		return fmt.Errorf("mint %s failed", status.ID)
	}

	if mintWaitRegistry <= 0 {
		return nil
	}

	regClient, err := mintRegistry.connect(ctx)
	if err != nil {
		return err
	}
	defer regClient.Close()

	printer.Step("Waiting for registry to record %s...\n", mintAs)
	if _, err := watch.PollForLatestMinter(ctx, regClient, mintTarget, mintAs, mintWaitRegistry); err != nil {
		return printer.Error("registry not updated", err.Error(), nil)
	}
	printer.Success("Registry records %s as latest minter of %s\n", mintAs, mintTarget)
	return nil
}

func readMetadata() (string, error) {
	if mintMetadataFile == "" {
		if mintMetadata == "" {
			return "", printer.Error(
				"metadata required",
				"No token metadata given.",
				[]string{"Pass --metadata '{...}'", "Pass --metadata-file <path>"},
			)
		}
		return mintMetadata, nil
	}

	data, err := os.ReadFile(mintMetadataFile)
	if err != nil {
		return "", printer.Error("failed to read metadata file", err.Error(), nil)
	}
	return string(data), nil
}
