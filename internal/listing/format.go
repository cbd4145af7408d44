// Package listing renders registry entries and mint events for the CLI.
package listing

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dyluth/minsta/pkg/registry"
	"github.com/olekukonko/tablewriter"
)

// OutputFormat selects how entries are written.
type OutputFormat string

const (
	// OutputFormatDefault is a human-readable table
	OutputFormatDefault OutputFormat = "default"

	// OutputFormatJSONL is one JSON object per line
	OutputFormatJSONL OutputFormat = "jsonl"
)

// ParseOutputFormat validates a --output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputFormatDefault, OutputFormatJSONL:
		return OutputFormat(s), nil
	}
	return "", fmt.Errorf("unknown output format %q (valid: default, jsonl)", s)
}

// FormatTable writes registry entries as a table and returns how many were
// written.
func FormatTable(w io.Writer, entries []registry.Entry, instanceName string) (int, error) {
	if len(entries) == 0 {
		fmt.Fprintf(w, "No minters recorded for instance '%s'\n", instanceName)
		return 0, nil
	}

	fmt.Fprintf(w, "Latest minters for instance '%s':\n\n", instanceName)

	table := tablewriter.NewWriter(w)
	table.Header("NFT CONTRACT", "LATEST MINTER")
	for _, e := range entries {
		if err := table.Append([]string{e.Target, e.LatestMinter}); err != nil {
			return 0, fmt.Errorf("failed to append row: %w", err)
		}
	}
	if err := table.Render(); err != nil {
		return 0, fmt.Errorf("failed to render table: %w", err)
	}

	noun := "contract"
	if len(entries) != 1 {
		noun = "contracts"
	}
	fmt.Fprintf(w, "\n%d %s found\n", len(entries), noun)

	return len(entries), nil
}

// FormatJSONL writes registry entries as line-delimited JSON.
func FormatJSONL(w io.Writer, entries []registry.Entry) error {
	for _, e := range entries {
		if err := writeJSONLine(w, e); err != nil {
			return err
		}
	}
	return nil
}

// FormatEvent writes one mint event in the requested format.
func FormatEvent(w io.Writer, ev *registry.MintEvent, format OutputFormat) error {
	if format == OutputFormatJSONL {
		return writeJSONLine(w, ev)
	}

	ts := time.UnixMilli(ev.TimestampMs).Format("15:04:05")
	line := fmt.Sprintf("[%s] %s %-9s %s minter=%s owner=%s receipt=%s",
		ts, eventSymbol(ev.Kind), ev.Kind, ev.Target, ev.Minter, ev.Owner, shortID(ev.ReceiptID))
	if ev.Reason != "" {
		line += fmt.Sprintf(" reason=%q", ev.Reason)
	}

	_, err := fmt.Fprintln(w, line)
	return err
}

func writeJSONLine(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal to JSON: %w", err)
	}
	if _, err := fmt.Fprintf(w, "%s\n", data); err != nil {
		return fmt.Errorf("failed to write JSONL output: %w", err)
	}
	return nil
}

func eventSymbol(kind registry.EventKind) string {
	switch kind {
	case registry.EventKindIssued:
		return "→"
	case registry.EventKindCommitted:
		return "✓"
	case registry.EventKindDropped:
		return "-"
	default:
		return "✗"
	}
}

// shortID truncates a receipt id to its first 8 characters.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
