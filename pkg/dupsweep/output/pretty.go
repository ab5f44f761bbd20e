package output

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jamesainslie/dupsweep/pkg/dupsweep/types"
)

// PrettyFormatter renders groups with colors and boxes using lipgloss.
type PrettyFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PrettyFormatter) Format(w *bytes.Buffer, r *types.DuplicateReport) error {
	w.WriteString(f.formatHeader(r))
	w.WriteString("\n")

	w.WriteString(f.formatGroups(r))

	if len(r.Groups) > 0 {
		w.WriteString(f.formatFooter(r))
		w.WriteString("\n")
	}

	if len(r.Warnings) > 0 {
		w.WriteString("\n")
		w.WriteString(formatWarnings(r.Warnings))
	}

	return nil
}

func (f *PrettyFormatter) formatHeader(r *types.DuplicateReport) string {
	lines := []string{
		fmt.Sprintf("%s %s", LabelStyle.Render("Root:"), ValueStyle.Render(r.Root)),
		strings.Join([]string{
			fmt.Sprintf("%s %s", LabelStyle.Render("Algorithm:"), ValueStyle.Render(r.Algorithm)),
			fmt.Sprintf("%s %s", LabelStyle.Render("Went through:"),
				ValueStyle.Render(fmt.Sprintf("%d unique files in %s",
					r.Stats.UniqueDigests, formatDuration(r.Stats.Elapsed)))),
		}, "  "),
	}

	if r.Stats.CacheHits > 0 {
		lines = append(lines, MutedStyle.Render(fmt.Sprintf("cache: %d hits, %d misses",
			r.Stats.CacheHits, r.Stats.CacheMisses)))
	}

	if r.Interrupted {
		lines = append(lines, WarningStyle.Bold(true).Render("Scan interrupted, results are partial"))
	}

	return HeaderBox.Render(strings.Join(lines, "\n"))
}

func (f *PrettyFormatter) formatGroups(r *types.DuplicateReport) string {
	if len(r.Groups) == 0 {
		return SuccessStyle.Render("  No duplicates found") + "\n"
	}

	var sb strings.Builder
	for i, g := range r.Groups {
		if i > 0 {
			sb.WriteString("\n")
		}
		title := fmt.Sprintf("%s x %d",
			SizeStyle.Render(types.FormatSize(g.Size)), g.Count())
		sb.WriteString(fmt.Sprintf("%s  %s\n", title, MutedStyle.Render(shortDigest(g.Digest))))

		for j, path := range g.Paths {
			sb.WriteString(fmt.Sprintf("%s  %s\n",
				IndexStyle.Render(fmt.Sprintf("%d", j+1)), PathStyle.Render(path)))
		}
	}

	return sb.String()
}

func (f *PrettyFormatter) formatFooter(r *types.DuplicateReport) string {
	parts := []string{
		fmt.Sprintf("%s %s", LabelStyle.Render("Groups:"), ValueStyle.Render(fmt.Sprintf("%d", len(r.Groups)))),
		fmt.Sprintf("%s %s", LabelStyle.Render("Duplicates:"), ValueStyle.Render(fmt.Sprintf("%d", r.Stats.DuplicateFiles))),
		fmt.Sprintf("%s %s", LabelStyle.Render("Reclaimable:"), SizeStyle.Render(types.FormatSize(r.Stats.Reclaimable))),
		MutedStyle.Render("Use -o plain for unformatted output"),
	}
	return FooterBox.Render(strings.Join(parts, "  "))
}

// formatWarnings builds a styled warning block.
func formatWarnings(warnings []types.Warning) string {
	var sb strings.Builder

	sb.WriteString(WarningStyle.Bold(true).Render(fmt.Sprintf("Warnings (%d):", len(warnings))))
	sb.WriteString("\n")
	for _, w := range warnings {
		sb.WriteString(WarningStyle.Render("  " + w.String()))
		sb.WriteString("\n")
	}

	return sb.String()
}

func init() {
	Register("pretty", func() Formatter {
		return &PrettyFormatter{}
	})
}

var _ Formatter = (*PrettyFormatter)(nil)
