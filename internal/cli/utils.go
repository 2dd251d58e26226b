// Package cli renders tokcache command output.
package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/goccy/go-json"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/hyperjump/tokcache/internal/stats"
	"github.com/hyperjump/tokcache/internal/storage"
	"github.com/hyperjump/tokcache/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat accepts "text", "json" or empty (text).
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(strings.TrimSpace(s))) {
	case "", OutputText:
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	}
	return "", fmt.Errorf("unknown output format %q (use text or json)", s)
}

// hashDisplayLen is how much of an entry hash the text table shows.
const hashDisplayLen = 12

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteTokens writes one line per sentence. Text output joins tokens with a
// single space; JSON output is an array of token arrays.
func WriteTokens(w io.Writer, tokens [][]string, format OutputFormat) error {
	if format == OutputJSON {
		if tokens == nil {
			tokens = [][]string{}
		}
		return writeJSON(w, tokens)
	}
	for _, sent := range tokens {
		if _, err := fmt.Fprintln(w, strings.Join(sent, " ")); err != nil {
			return err
		}
	}
	return nil
}

// WriteSummary writes corpus statistics.
func WriteSummary(w io.Writer, s *stats.Summary, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, s)
	}
	stats.Print(w, s)
	return nil
}

// WriteEntries lists cache entries, most recently used first in text output.
func WriteEntries(w io.Writer, entries []*storage.CacheEntry, format OutputFormat) error {
	if format == OutputJSON {
		if entries == nil {
			entries = []*storage.CacheEntry{}
		}
		return writeJSON(w, entries)
	}
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "Cache is empty.")
		return err
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"hash", "sentences", "tokens", "size", "last used", "hits"})
	var total int64
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		total += e.Bytes
		tw.AppendRow(table.Row{
			utils.Truncate(e.Hash, hashDisplayLen),
			countOrDash(e.Sentences),
			countOrDash(e.Tokens),
			humanize.Bytes(uint64(e.Bytes)),
			lastUsed(e.LastUsedAt),
			e.Hits,
		})
	}
	tw.AppendFooter(table.Row{fmt.Sprintf("%d entries", len(entries)), "", "", humanize.Bytes(uint64(total)), "", ""})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
	})
	_, err := fmt.Fprintln(w, tw.Render())
	return err
}

// Sentence and token counts are only known for entries in the manifest.
func countOrDash(n int) string {
	if n == 0 {
		return "-"
	}
	return fmt.Sprint(n)
}

func lastUsed(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.Time(t)
}

// CacheStats is the summary printed by "cache stats".
type CacheStats struct {
	Dir      string `json:"dir"`
	Entries  int    `json:"entries"`
	Bytes    int64  `json:"bytes"`
	Manifest int64  `json:"manifest_rows"`
}

// WriteCacheStats writes entry count and disk usage.
func WriteCacheStats(w io.Writer, s CacheStats, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, s)
	}
	fmt.Fprintf(w, "Cache directory: %s\n", s.Dir)
	fmt.Fprintf(w, "Entries: %d\n", s.Entries)
	fmt.Fprintf(w, "Manifest rows: %d\n", s.Manifest)
	_, err := fmt.Fprintf(w, "Disk usage: %s\n", humanize.Bytes(uint64(s.Bytes)))
	return err
}

// WritePruneReport writes what Prune removed (or would remove when dryRun).
func WritePruneReport(w io.Writer, pruned []storage.PrunedEntry, dryRun bool, format OutputFormat) error {
	if format == OutputJSON {
		if pruned == nil {
			pruned = []storage.PrunedEntry{}
		}
		return writeJSON(w, pruned)
	}
	verb := "Removed"
	if dryRun {
		verb = "Would remove"
	}
	var freed int64
	for _, p := range pruned {
		freed += p.Bytes
		fmt.Fprintf(w, "  %s  %-11s %s\n", p.Hash, p.Reason, humanize.Bytes(uint64(p.Bytes)))
	}
	_, err := fmt.Fprintf(w, "%s %d entries, %s\n", verb, len(pruned), humanize.Bytes(uint64(freed)))
	return err
}
