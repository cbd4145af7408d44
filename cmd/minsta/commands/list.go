package commands

import (
	"context"
	"fmt"

	"github.com/dyluth/minsta/internal/filter"
	"github.com/dyluth/minsta/internal/listing"
	"github.com/dyluth/minsta/internal/printer"
	"github.com/spf13/cobra"
)

var (
	listRegistry     registryFlags
	listOutputFormat string
	listTarget       string
	listMinter       string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List every target service and its latest minter",
	Long: `List the latest-minter registry.

Output Formats:
  default - Human-readable table
  jsonl   - Line-delimited JSON, one entry per line

Filters:
  --target - Glob on the target service id ("*.paras.near")
  --minter - Exact match on the latest minter

Examples:
  minsta list
  minsta list --target "*.paras.near"
  minsta list --output=jsonl | jq -r .latest_minter_id`,
	RunE: runList,
}

func init() {
	listRegistry.register(listCmd)
	listCmd.Flags().StringVarP(&listOutputFormat, "output", "o", "default", "Output format: default or jsonl")
	listCmd.Flags().StringVar(&listTarget, "target", "", "Filter by target service (glob pattern)")
	listCmd.Flags().StringVar(&listMinter, "minter", "", "Filter by latest minter (exact match)")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	format, err := listing.ParseOutputFormat(listOutputFormat)
	if err != nil {
		return printer.Error(
			"invalid output format",
			fmt.Sprintf("Unknown format: %s", listOutputFormat),
			[]string{"Valid formats: default, jsonl"},
		)
	}

	criteria := &filter.Criteria{TargetGlob: listTarget, Minter: listMinter}
	if err := criteria.Validate(); err != nil {
		return printer.Error("invalid filter", err.Error(), nil)
	}

	ctx := context.Background()
	client, err := listRegistry.connect(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	entries, err := client.ListLatestMinters(ctx)
	if err != nil {
		return fmt.Errorf("failed to list registry: %w", err)
	}
	entries = criteria.Entries(entries)

	if format == listing.OutputFormatJSONL {
		return listing.FormatJSONL(cmd.OutOrStdout(), entries)
	}
	_, err = listing.FormatTable(cmd.OutOrStdout(), entries, client.InstanceName())
	return err
}
