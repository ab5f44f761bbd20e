package output

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"github.com/jamesainslie/dupsweep/pkg/dupsweep/types"
)

// CSVFormatter writes one row per member path with RFC 4180 quoting.
// Warnings are not included.
type CSVFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *CSVFormatter) Format(w *bytes.Buffer, r *types.DuplicateReport) error {
	writer := csv.NewWriter(w)

	if err := writer.Write([]string{"group", "digest", "size", "path"}); err != nil {
		return err
	}

	for i, g := range r.Groups {
		group := strconv.Itoa(i + 1)
		digest := g.Digest.String()
		size := strconv.FormatInt(g.Size, 10)
		for _, path := range g.Paths {
			if err := writer.Write([]string{group, digest, size, path}); err != nil {
				return err
			}
		}
	}

	writer.Flush()
	return writer.Error()
}

func init() {
	Register("csv", func() Formatter {
		return &CSVFormatter{}
	})
}

var _ Formatter = (*CSVFormatter)(nil)

// TSVFormatter writes one tab-separated row per member path.
type TSVFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *TSVFormatter) Format(w *bytes.Buffer, r *types.DuplicateReport) error {
	w.WriteString("GROUP\tSIZE\tDIGEST\tPATH\n")

	for i, g := range r.Groups {
		for _, path := range g.Paths {
			fmt.Fprintf(w, "%d\t%d\t%s\t%s\n", i+1, g.Size, g.Digest, path)
		}
	}

	return nil
}

func init() {
	Register("tsv", func() Formatter {
		return &TSVFormatter{}
	})
}

var _ Formatter = (*TSVFormatter)(nil)

// MarkdownFormatter writes a GitHub-flavored Markdown table of the groups,
// followed by a warnings list.
type MarkdownFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *MarkdownFormatter) Format(w *bytes.Buffer, r *types.DuplicateReport) error {
	fmt.Fprintf(w, "# Duplicates in %s\n\n", escapeMarkdownPipe(r.Root))

	if len(r.Groups) == 0 {
		w.WriteString("No duplicates found.\n")
	} else {
		w.WriteString("| GROUP | SIZE | DIGEST | PATH |\n")
		w.WriteString("|-------|------|--------|------|\n")
		for i, g := range r.Groups {
			for _, path := range g.Paths {
				fmt.Fprintf(w, "| %d | %s | `%s` | %s |\n",
					i+1, types.FormatSize(g.Size), shortDigest(g.Digest), escapeMarkdownPipe(path))
			}
		}
		fmt.Fprintf(w, "\n**Reclaimable:** %s in %d groups\n",
			types.FormatSize(r.Stats.Reclaimable), len(r.Groups))
	}

	if len(r.Warnings) > 0 {
		w.WriteString("\n## Warnings\n\n")
		for _, warn := range r.Warnings {
			fmt.Fprintf(w, "- `%s`: %s (%s)\n", warn.Path, warn.Error, warn.Kind)
		}
	}

	return nil
}

// escapeMarkdownPipe escapes pipe characters so they don't break the table.
func escapeMarkdownPipe(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}

func init() {
	Register("markdown", func() Formatter {
		return &MarkdownFormatter{}
	})
}

var _ Formatter = (*MarkdownFormatter)(nil)
