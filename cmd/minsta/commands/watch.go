package commands

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dyluth/minsta/internal/filter"
	"github.com/dyluth/minsta/internal/listing"
	"github.com/dyluth/minsta/internal/printer"
	"github.com/dyluth/minsta/internal/watch"
	"github.com/dyluth/minsta/pkg/registry"
	"github.com/spf13/cobra"
)

var (
	watchRegistry     registryFlags
	watchOutputFormat string
	watchTarget       string
	watchMinter       string
	watchKinds        string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream mint lifecycle events",
	Long: `Stream mint events as they happen: issued, committed, dropped and failed.

Events are not stored; only events published while watching are shown.

Output Formats:
  default - Human-readable lines with timestamps
  jsonl   - Line-delimited JSON for programmatic processing

Filters:
  --target - Glob on the target service id
  --minter - Exact match on the caller of the mint
  --kind   - Comma-separated event kinds (issued,committed,dropped,failed)

Examples:
  minsta watch
  minsta watch --kind dropped,failed
  minsta watch --name prod --output=jsonl > events.jsonl`,
	RunE: runWatch,
}

func init() {
	watchRegistry.register(watchCmd)
	watchCmd.Flags().StringVarP(&watchOutputFormat, "output", "o", "default", "Output format: default or jsonl")
	watchCmd.Flags().StringVar(&watchTarget, "target", "", "Filter by target service (glob pattern)")
	watchCmd.Flags().StringVar(&watchMinter, "minter", "", "Filter by minter (exact match)")
	watchCmd.Flags().StringVar(&watchKinds, "kind", "", "Filter by event kind (comma-separated)")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	format, err := listing.ParseOutputFormat(watchOutputFormat)
	if err != nil {
		return printer.Error(
			"invalid output format",
			fmt.Sprintf("Unknown format: %s", watchOutputFormat),
			[]string{"Valid formats: default, jsonl"},
		)
	}

	criteria := &filter.Criteria{TargetGlob: watchTarget, Minter: watchMinter}
	for _, k := range strings.Split(watchKinds, ",") {
		if k = strings.TrimSpace(k); k != "" {
			criteria.Kinds = append(criteria.Kinds, registry.EventKind(k))
		}
	}
	if err := criteria.Validate(); err != nil {
		return printer.Error("invalid filter", err.Error(), nil)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := watchRegistry.connect(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	if format == listing.OutputFormatDefault {
		printer.Step("Watching mint events for instance '%s' (Ctrl-C to stop)\n", client.InstanceName())
	}
	return watch.StreamEvents(ctx, client, criteria, cmd.OutOrStdout(), cmd.ErrOrStderr(), format)
}
