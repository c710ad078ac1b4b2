package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List allocations",
	Run: func(cmd *cobra.Command, args []string) {
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")
		vpc, _ := cmd.Flags().GetString("vpc")

		list, err := newClient().ListAllocations(context.Background(), limit, offset, vpc)
		if err != nil {
			fail(err)
		}

		if list.TotalCount == 0 {
			fmt.Println("No allocations found")
			return
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tVPC\tPRIMARY\tCGNAT\tENV\tREGION\tCREATED")
		for _, item := range list.Items {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				item.AllocationID,
				item.VPC,
				item.PrimaryCIDR,
				item.CGNATCIDR,
				item.Labels.Environment,
				item.Labels.Region,
				item.CreatedAt.Format("2006-01-02 15:04:05"))
		}
		w.Flush()

		fmt.Printf("\nShowing %d of %d allocations (offset %d)\n", len(list.Items), list.TotalCount, list.Offset)
	},
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().Int("limit", 50, "Maximum number of allocations to return (1-100)")
	listCmd.Flags().Int("offset", 0, "Number of allocations to skip")
	listCmd.Flags().String("vpc", "", "Only show allocations of this VPC")
}
