package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/jamesainslie/dupsweep/pkg/dupsweep/hasher"
	"github.com/spf13/cobra"
)

var algorithmsCmd = &cobra.Command{
	Use:   "algorithms",
	Short: "List supported digest algorithms",
	Long: `List the digest algorithms accepted by --algorithm.

Non-cryptographic algorithms are much faster but a deliberately crafted file
can collide with another. Use a cryptographic algorithm when the input may be
adversarial.`,
	RunE: runAlgorithms,
}

func init() {
	rootCmd.AddCommand(algorithmsCmd)
}

func runAlgorithms(cmd *cobra.Command, _ []string) error {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tBITS\tCRYPTOGRAPHIC\t")

	for _, alg := range hasher.Algorithms() {
		name := alg.Name
		if name == hasher.DefaultAlgorithm {
			name += " (default)"
		}
		fmt.Fprintf(tw, "%s\t%d\t%t\t\n", name, alg.Size*8, alg.Cryptographic)
	}

	return tw.Flush()
}
