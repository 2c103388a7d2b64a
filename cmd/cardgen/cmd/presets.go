package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/cvandijck/card-generator/internal/preset"
)

var presetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "List the scene, style and overlay presets",
	Long: `Presets prints the catalog of selectable scene, style and overlay texts.
The built-in catalog is used unless --presets-file or PRESETS_FILE points at
a replacement YAML file. Default selections are marked with *.`,
	Run: presetsHandler,
}

var presetsFilePath string

func presetsHandler(cmd *cobra.Command, args []string) {
	_ = godotenv.Load()

	path := presetsFilePath
	if path == "" {
		path = strings.TrimSpace(os.Getenv("PRESETS_FILE"))
	}
	catalog, err := preset.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	printPresetSection("Scenes", catalog.Scenes)
	printPresetSection("Styles", catalog.Styles)
	printPresetSection("Overlays", catalog.Overlays)
}

func printPresetSection(title string, list []preset.Preset) {
	fmt.Printf("%s:\n", title)
	for _, p := range list {
		marker := " "
		if p.Default {
			marker = "*"
		}
		fmt.Printf("  %s %s\n", marker, p.Name)
		if p.Text != "" {
			fmt.Printf("      %s\n", p.Text)
		}
	}
	fmt.Println()
}

func init() {
	rootCmd.AddCommand(presetsCmd)

	presetsCmd.Flags().StringVar(&presetsFilePath, "presets-file", "", "YAML preset catalog overriding the built-in one")
}
