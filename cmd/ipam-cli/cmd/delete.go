package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// deleteCmd represents the delete command
var deleteCmd = &cobra.Command{
	Use:   "delete <allocation-id>",
	Short: "Delete an allocation and return its blocks to the pools",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		result, err := newClient().Delete(context.Background(), args[0])
		if err != nil {
			fail(err)
		}

		fmt.Printf("Allocation %s deleted\n", result.ID)
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}
