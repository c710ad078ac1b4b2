package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MikeAA97/IPAM-Prefix-Allocator/internal/ipam/client"
	"github.com/MikeAA97/IPAM-Prefix-Allocator/internal/shared/logger"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "ipam-cli",
	Short: "Command line client for the IPAM allocation service",
	Long: `ipam-cli talks to the IPAM service to manage paired CIDR allocations:
a primary block from 10.0.0.0/16 and a CGNAT block from 100.64.0.0/10 per VPC.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("server", "http://localhost:8080", "Base URL of the IPAM service")
	rootCmd.PersistentFlags().String("api-key", "", "API key for authenticated endpoints")
	rootCmd.PersistentFlags().Bool("verbose", false, "Enable debug logging")

	viper.SetEnvPrefix("IPAM")
	viper.AutomaticEnv()
	_ = viper.BindPFlag("server", rootCmd.PersistentFlags().Lookup("server"))
	_ = viper.BindPFlag("api_key", rootCmd.PersistentFlags().Lookup("api-key"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

// newClient builds an API client from the global flags.
func newClient() *client.Client {
	var log *logger.Logger
	if viper.GetBool("verbose") {
		log = logger.NewDevelopment("ipam-cli")
	} else {
		log = logger.New(logger.Config{
			Level:     logger.LevelWarn,
			Format:    logger.FormatText,
			Component: "ipam-cli",
		})
	}

	return client.NewClient(viper.GetString("server"), viper.GetString("api_key"), log)
}

// fail prints the error and exits non-zero, surfacing the request ID when the
// server provided one.
func fail(err error) {
	if apiErr, ok := err.(*client.APIError); ok && apiErr.RequestID != "" {
		fmt.Fprintf(os.Stderr, "Error: %v (request %s)\n", err, apiErr.RequestID)
	} else {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(1)
}
