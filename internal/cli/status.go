package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/personakit/personakit/internal/config"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		printHeader("🏷️ PersonaKit Version")
		fmt.Printf("Version: %s\n", version)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		printHeader("📊 PersonaKit Status")
		fmt.Printf("Version: %s\n", version)

		path, _ := config.ConfigPath()
		if _, err := os.Stat(path); err == nil {
			fmt.Println("Config:  ✓ Found (" + path + ")")
		} else {
			fmt.Println("Config:  ✗ Not found (defaults in effect)")
		}

		a, err := openApp(cmd.Context())
		if err != nil {
			fmt.Printf("Database: ✗ %v\n", err)
			return nil
		}
		defer a.close()
		fmt.Println("Database: ✓ " + a.cfg.Paths.DatabasePath)

		pending, err := a.tasks.PendingCount(cmd.Context())
		if err == nil {
			fmt.Printf("Pending tasks: %d\n", pending)
		}
		if a.cfg.Staleness.KafkaEnabled {
			fmt.Printf("Kafka: ✓ Enabled (%s → %s)\n", a.cfg.Staleness.Brokers, a.cfg.Staleness.Topic)
		} else {
			fmt.Println("Kafka: ✗ Disabled (in-process events only)")
		}
		if a.cfg.Narrative.Enabled {
			fmt.Println("Narrative search: ✓ " + a.cfg.Narrative.BaseURL)
		} else {
			fmt.Println("Narrative search: ✗ Disabled")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
}
