package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show service health",
	Run: func(cmd *cobra.Command, args []string) {
		health, err := newClient().Health(context.Background())
		if err != nil {
			fail(err)
		}

		fmt.Printf("Status:  %s\n", health.Status)
		if health.Version != "" {
			fmt.Printf("Version: %s\n", health.Version)
		}
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
