package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// calculateCmd represents the calculate command
var calculateCmd = &cobra.Command{
	Use:   "calculate",
	Short: "Preview the sizing for a host count or prefix length",
	Long: `Preview which primary and CGNAT prefixes a request would resolve to.
This is a pure calculation: pool state is neither consulted nor modified.`,
	Run: func(cmd *cobra.Command, args []string) {
		hosts, _ := cmd.Flags().GetInt("hosts")
		prefixLength, _ := cmd.Flags().GetInt("prefix-length")

		var hostsArg, prefixArg *int
		if cmd.Flags().Changed("hosts") {
			hostsArg = &hosts
		}
		if cmd.Flags().Changed("prefix-length") {
			prefixArg = &prefixLength
		}

		result, err := newClient().Calculate(context.Background(), hostsArg, prefixArg)
		if err != nil {
			fail(err)
		}

		fmt.Printf("Primary prefix: /%d (%d usable hosts)\n", result.PrimaryPrefix, result.UsablePrimary)
		fmt.Printf("CGNAT prefix:   /%d (%d usable hosts)\n", result.CGNATPrefix, result.UsableCGNAT)
	},
}

func init() {
	rootCmd.AddCommand(calculateCmd)

	calculateCmd.Flags().Int("hosts", 0, "Number of usable hosts required (1-4091)")
	calculateCmd.Flags().Int("prefix-length", 0, "Explicit primary prefix length (20-26)")
}
