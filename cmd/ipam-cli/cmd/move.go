package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// moveCmd represents the move command
var moveCmd = &cobra.Command{
	Use:   "move <allocation-id>",
	Short: "Move an allocation to another VPC",
	Long: `Move an allocation to another VPC. The blocks themselves never change;
only the owning VPC does. The target VPC is created if it does not exist.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		newVPC, _ := cmd.Flags().GetString("to")

		if err := newClient().Move(context.Background(), args[0], newVPC); err != nil {
			fail(err)
		}

		fmt.Printf("Allocation %s moved to VPC %s\n", args[0], newVPC)
	},
}

func init() {
	rootCmd.AddCommand(moveCmd)

	moveCmd.Flags().String("to", "", "Target VPC name")
	_ = moveCmd.MarkFlagRequired("to")
}
