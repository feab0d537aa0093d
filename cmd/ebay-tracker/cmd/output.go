package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	domain "github.com/skireal/ebay-tracker/pkg/types"
)

// tabWriter wraps tabwriter with error tracking.
type tabWriter struct {
	*tabwriter.Writer
	err error
}

func newTabWriter(w io.Writer) *tabWriter {
	return &tabWriter{Writer: tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)}
}

func (tw *tabWriter) writef(format string, args ...any) {
	if tw.err != nil {
		return
	}
	_, tw.err = fmt.Fprintf(tw.Writer, format, args...)
}

func (tw *tabWriter) finish() error {
	if tw.err != nil {
		return tw.err
	}
	return tw.Flush()
}

func printItemsTable(items []domain.Item) error {
	tw := newTabWriter(os.Stdout)
	tw.writef("ITEM ID\tTITLE\tPRICE\tTYPE\tLOCATION\tKEYWORD\tFIRST SEEN\n")
	for i := range items {
		it := &items[i]
		price := "-"
		if it.Price != "" {
			price = it.Price + " " + it.Currency
		}
		tw.writef("%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			it.ItemID,
			truncate(it.Title, 40),
			price,
			it.ListingType,
			truncate(it.FullLocation(), 24),
			it.Keyword,
			it.FirstSeenAt.Format("2006-01-02 15:04"),
		)
	}
	return tw.finish()
}

func printStats(stats *domain.Stats) error {
	tw := newTabWriter(os.Stdout)
	tw.writef("Total items:\t%d\n", stats.TotalItems)
	tw.writef("Items today:\t%d\n", stats.ItemsToday)

	keywords := make([]string, 0, len(stats.ItemsByKeyword))
	for kw := range stats.ItemsByKeyword {
		keywords = append(keywords, kw)
	}
	sort.Strings(keywords)
	for _, kw := range keywords {
		tw.writef("  %s:\t%d\n", kw, stats.ItemsByKeyword[kw])
	}
	return tw.finish()
}

func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// truncate shortens s to maxLen runes, ending in "..." when cut. Counting
// runes keeps multi-byte titles from being split mid-character.
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
