package output

import (
	"bytes"
	"fmt"
	"text/tabwriter"

	"github.com/jamesainslie/dupsweep/pkg/dupsweep/types"
)

// PlainFormatter writes an uncolored listing: a summary line, then each
// group framed by separator lines with numbered members.
type PlainFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PlainFormatter) Format(w *bytes.Buffer, r *types.DuplicateReport) error {
	fmt.Fprintf(w, "Went through: %d unique files\n", r.Stats.UniqueDigests)
	if r.Interrupted {
		w.WriteString("Scan interrupted, results are partial\n")
	}

	if len(r.Groups) == 0 {
		fmt.Fprintf(w, "No duplicates found with %s comparison.\n", r.Algorithm)
	}

	for _, g := range r.Groups {
		fmt.Fprintf(w, "------- Multiple Entries Found (%s) -------\n", types.FormatSize(g.Size))
		for i, path := range g.Paths {
			fmt.Fprintf(w, "%5d -> `%s`\n", i+1, path)
		}
		w.WriteString("--------------------------------------\n")
	}

	if len(r.Warnings) == 0 {
		return nil
	}

	w.WriteString("\n")
	tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)
	if _, err := fmt.Fprintln(tw, "WARNING\tPATH\tERROR"); err != nil {
		return err
	}
	for _, warn := range r.Warnings {
		if _, err := fmt.Fprintf(tw, "%s\t%s\t%s\n", warn.Kind, warn.Path, warn.Error); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func init() {
	Register("plain", func() Formatter {
		return &PlainFormatter{}
	})
}

var _ Formatter = (*PlainFormatter)(nil)
