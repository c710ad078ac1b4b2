package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// vpcCmd groups VPC management subcommands
var vpcCmd = &cobra.Command{
	Use:   "vpc",
	Short: "Manage VPCs",
}

// vpcCreateCmd represents the vpc create command
var vpcCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Register a VPC explicitly",
	Long: `Register a VPC without allocating anything. Allocating into an unknown
VPC creates it implicitly, so this is only needed to pre-register names.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		result, err := newClient().CreateVPC(context.Background(), args[0])
		if err != nil {
			fail(err)
		}

		fmt.Printf("VPC %s created\n", result.Name)
	},
}

// vpcDeleteCmd represents the vpc delete command
var vpcDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a VPC and all its allocations",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		result, err := newClient().DeleteVPC(context.Background(), args[0])
		if err != nil {
			fail(err)
		}

		fmt.Printf("VPC %s deleted (%d allocations released)\n", result.Name, result.DeletedCount)
	},
}

func init() {
	rootCmd.AddCommand(vpcCmd)
	vpcCmd.AddCommand(vpcCreateCmd)
	vpcCmd.AddCommand(vpcDeleteCmd)
}
