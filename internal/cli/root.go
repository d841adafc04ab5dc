// Package cli implements the personakit command line interface.
package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// version can be overridden at build time via:
	// go build -ldflags "-X github.com/personakit/personakit/internal/cli.version=1.2.3"
	version = "0.4.0"
	logo    = "\n" +
		"  ____                                  _  ___ _\n" +
		" |  _ \\ ___ _ __ ___  ___  _ __   __ _ | |/ (_) |_\n" +
		" | |_) / _ \\ '__/ __|/ _ \\| '_ \\ / _` || ' /| | __|\n" +
		" |  __/  __/ |  \\__ \\ (_) | | | | (_| || . \\| | |_\n" +
		" |_|   \\___|_|  |___/\\___/|_| |_|\\__,_||_|\\_\\_|\\__|\n"
)

var rootCmd = &cobra.Command{
	Use:   "personakit",
	Short: "PersonaKit - behavioral persona pipeline",
	Long:  color.CyanString(logo) + "\nTurns raw behavioral observations into expiring, feedback-tuned personas.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func printHeader(title string) {
	fmt.Println(color.CyanString(logo))
	if title != "" {
		fmt.Println(title)
		fmt.Println("─────────────────────")
	}
}
