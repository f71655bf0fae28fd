package cli

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// version can be overridden at build time via:
	// go build -ldflags "-X github.com/marvin-agent/marvin/internal/cli.version=1.2.3"
	version = "0.3.0"
	logo    = "\n" +
		"  __  __                  _\n" +
		" |  \\/  | __ _ _ ____   _(_)_ __\n" +
		" | |\\/| |/ _` | '__\\ \\ / / | '_ \\\n" +
		" | |  | | (_| | |   \\ V /| | | | |\n" +
		" |_|  |_|\\__,_|_|    \\_/ |_|_| |_|\n"
)

var rootCmd = &cobra.Command{
	Use:   "marvin",
	Short: "Marvin - Multi-Agent Task Orchestrator",
	Long:  color.CyanString(logo) + "\nA multi-agent pipeline that deliberates, dispatches, verifies and decides.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(taskCmd)
	rootCmd.AddCommand(memoryCmd)
}
