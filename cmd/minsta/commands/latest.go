package commands

import (
	"context"
	"fmt"

	"github.com/dyluth/minsta/internal/printer"
	"github.com/dyluth/minsta/pkg/registry"
	"github.com/spf13/cobra"
)

var latestRegistry registryFlags

var latestCmd = &cobra.Command{
	Use:   "latest NFT_CONTRACT_ID",
	Short: "Show the latest minter of a target service",
	Long: `Show the account that will own the next token minted through the proxy
for a target service.

Exits non-zero when nobody has minted through the proxy for the target yet.`,
	Args: cobra.ExactArgs(1),
	RunE: runLatest,
}

func init() {
	latestRegistry.register(latestCmd)
	rootCmd.AddCommand(latestCmd)
}

func runLatest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	target := args[0]

	client, err := latestRegistry.connect(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	minter, err := client.LatestMinter(ctx, target)
	if err != nil {
		if registry.IsNotFound(err) {
			return printer.Error(
				fmt.Sprintf("no minter recorded for %s", target),
				fmt.Sprintf("Nobody has minted %s through instance '%s' yet.", target, latestRegistry.instanceName),
				[]string{"The first minter will own their own token"},
			)
		}
		return fmt.Errorf("failed to query registry: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), minter)
	return nil
}
