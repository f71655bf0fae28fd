package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marvin-agent/marvin/internal/config"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		printHeader("🏷️ Marvin Version")
		fmt.Printf("Version: %s\n", version)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show system status",
	Run: func(cmd *cobra.Command, args []string) {
		printHeader("📊 Marvin Status")
		fmt.Printf("Version: %s\n", version)

		configPath, err := config.ConfigPath()
		if err == nil {
			if _, statErr := os.Stat(configPath); statErr == nil {
				fmt.Println("Config:  ✓ Found (" + configPath + ")")
			} else {
				fmt.Println("Config:  ✗ Not found (defaults in effect)")
			}
		}

		cfg, err := config.Load()
		if err != nil {
			fmt.Println("API Key: ? Unable to load config")
			return
		}
		if cfg.Model.APIKey != "" {
			fmt.Println("API Key: ✓ Found")
		} else {
			fmt.Println("API Key: ✗ Not found")
		}
		if cfg.Broker.Enabled {
			fmt.Printf("Broker:  ✓ Enabled (%s)\n", cfg.Broker.Brokers)
		} else {
			fmt.Println("Broker:  ✗ Disabled (in-process bus)")
		}
		if cfg.Notify.SlackEnabled {
			fmt.Println("Slack:   ✓ Enabled")
		} else {
			fmt.Println("Slack:   ✗ Disabled")
		}
		fmt.Printf("Data:    %s\n", cfg.Paths.DataDir)
		fmt.Println("Status:  Ready")
	},
}
