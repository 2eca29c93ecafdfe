package commands

import (
	"context"
	"fmt"
	"os"
	"tripbook-backend/lib/telemetry"

	"github.com/spf13/cobra"
)

var (
	verbose    *bool
	configPath *string
)

func init() {
	verbose = rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging.")
	configPath = rootCmd.PersistentFlags().StringP("config", "C", "", "Path to an optional json5 config file. Environment variables win over it.")
}

var rootCmd = &cobra.Command{
	Use:   "tripbook",
	Short: "tripbook scrapes a club website's trip records and answers questions about them.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		telemetry.InitSlog(*verbose)
	},
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
