package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MikeAA97/IPAM-Prefix-Allocator/pkg/api"
)

// allocateCmd represents the allocate command
var allocateCmd = &cobra.Command{
	Use:   "allocate",
	Short: "Allocate a paired primary/CGNAT block for a VPC",
	Long: `Allocate a primary block and its paired CGNAT block for a VPC.
Size the allocation with exactly one of --hosts or --prefix-length.
Use --dry-run to preview the blocks without committing anything.`,
	Run: func(cmd *cobra.Command, args []string) {
		vpc, _ := cmd.Flags().GetString("vpc")
		hosts, _ := cmd.Flags().GetInt("hosts")
		prefixLength, _ := cmd.Flags().GetInt("prefix-length")
		environment, _ := cmd.Flags().GetString("environment")
		region, _ := cmd.Flags().GetString("region")
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		req := &api.AllocateRequest{
			VPC: vpc,
			Labels: api.Labels{
				Environment: environment,
				Region:      region,
			},
		}
		if cmd.Flags().Changed("hosts") {
			req.Hosts = &hosts
		}
		if cmd.Flags().Changed("prefix-length") {
			req.PrefixLength = &prefixLength
		}

		info, err := newClient().Allocate(context.Background(), req, dryRun)
		if err != nil {
			fail(err)
		}

		if dryRun {
			fmt.Println("Dry run: no allocation was created")
		} else {
			fmt.Printf("Allocation ID: %s\n", info.AllocationID)
		}
		fmt.Printf("VPC:           %s\n", info.VPC)
		fmt.Printf("Primary:       %s (%d usable)\n", info.PrimaryCIDR, info.UsablePrimary)
		fmt.Printf("CGNAT:         %s (%d usable)\n", info.CGNATCIDR, info.UsableCGNAT)
		if info.Labels.Environment != "" {
			fmt.Printf("Environment:   %s\n", info.Labels.Environment)
		}
		if info.Labels.Region != "" {
			fmt.Printf("Region:        %s\n", info.Labels.Region)
		}
	},
}

func init() {
	rootCmd.AddCommand(allocateCmd)

	allocateCmd.Flags().String("vpc", "", "VPC name (created implicitly if missing)")
	allocateCmd.Flags().Int("hosts", 0, "Number of usable hosts required (1-4091)")
	allocateCmd.Flags().Int("prefix-length", 0, "Explicit primary prefix length (20-26)")
	allocateCmd.Flags().String("environment", "", "Environment label (dev, stage, prod)")
	allocateCmd.Flags().String("region", "", "Region label")
	allocateCmd.Flags().Bool("dry-run", false, "Preview the allocation without committing")
	_ = allocateCmd.MarkFlagRequired("vpc")
}
