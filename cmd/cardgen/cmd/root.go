package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "cardgen",
	Short: "Generate personalized holiday cards from family photos",
	Long: `cardgen turns family photos into an AI-generated holiday card.

Available commands:
  generate    Generate a card from photo files on disk
  presets     List the scene, style and overlay presets
  version     Print the cardgen version

Use "cardgen [command] --help" for more information about a specific command.`,
}

// Execute executes the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
