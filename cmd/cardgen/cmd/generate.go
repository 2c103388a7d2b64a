package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/cvandijck/card-generator/internal/card"
	"github.com/cvandijck/card-generator/internal/config"
	"github.com/cvandijck/card-generator/internal/gemini"
	"github.com/cvandijck/card-generator/internal/httpclient"
	"github.com/cvandijck/card-generator/internal/preset"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a holiday card from photo files on disk",
	Long: `Generate builds a card from one or more --member flags, renders it with the
image model and writes the finished PNG to --output.

Each --member value is PHOTO[:NAME[:DESCRIPTION]], for example:

  cardgen generate \
    --member photos/alice.jpg:Alice:"a smiling woman with red hair" \
    --member photos/bob.jpg:Bob \
    --scene-preset "Christmas Sled Ride" --style "soft watercolor painting"

Scene, style and overlay fall back to the catalog defaults unless a preset
name or custom text is given. GEMINI_API_KEY must be set (a .env file next
to the binary is loaded automatically).`,
	Run: generateHandler,
}

var (
	genMembers       []string
	genTopic         string
	genScene         string
	genScenePreset   string
	genStyle         string
	genStylePreset   string
	genOverlay       string
	genOverlayPreset string
	genExpand        bool
	genEnhanceScene  bool
	genEnhanceStyle  bool
	genResolution    string
	genOutput        string
	genPresetsFile   string
	genTimeout       time.Duration
	genShowPrompt    bool
)

func generateHandler(cmd *cobra.Command, args []string) {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	logger := newLogger(cfg)

	presetsPath := genPresetsFile
	if presetsPath == "" {
		presetsPath = cfg.PresetsFile
	}
	catalog, err := preset.Load(presetsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	members, err := loadMembers(genMembers)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	flags := cmd.Flags()
	scene, err := resolveSelection(catalog.Scenes, genScenePreset, genScene, flags.Changed("scene"), catalog.DefaultScene(), "scene")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	style, err := resolveSelection(catalog.Styles, genStylePreset, genStyle, flags.Changed("style"), catalog.DefaultStyle(), "style")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	overlay, err := resolveSelection(catalog.Overlays, genOverlayPreset, genOverlay, flags.Changed("overlay"), catalog.DefaultOverlay(), "overlay")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	resolution := strings.ToUpper(strings.TrimSpace(genResolution))
	switch resolution {
	case "", "1K", "2K", "4K":
	default:
		fmt.Fprintf(os.Stderr, "Error: invalid --resolution %q (use 1K, 2K or 4K)\n", genResolution)
		os.Exit(1)
	}

	httpClient := httpclient.New(httpclient.Options{
		PreferIPv4: cfg.PreferIPv4,
		Timeout:    cfg.HTTPTimeout,
	})
	model := gemini.New(gemini.Options{
		APIKey:     cfg.GeminiAPIKey,
		BaseURL:    cfg.GeminiBaseURL,
		APIVersion: cfg.GeminiAPIVersion,
		HTTPClient: httpClient,
		Logger:     logger,
	})
	generator := card.NewGenerator(card.GeneratorOptions{Model: model, Logger: logger})

	timeout := genTimeout
	if timeout <= 0 {
		timeout = cfg.RequestTimeout
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if genEnhanceScene {
		fmt.Fprintln(os.Stderr, "Expanding scene instructions...")
		enhanced, err := generator.Enhancer().EnhanceScene(ctx, card.SceneContext{
			Instructions: scene,
			Style:        style,
			Profiles:     memberDescriptionsText(members),
		})
		if err != nil {
			logger.Warn("scene enhancement failed, keeping original text", "error", err)
		} else {
			scene = enhanced
		}
	}
	if genEnhanceStyle {
		fmt.Fprintln(os.Stderr, "Expanding style instructions...")
		enhanced, err := generator.Enhancer().EnhanceStyle(ctx, card.StyleContext{
			Instructions: style,
			Scene:        scene,
			Profiles:     memberDescriptionsText(members),
		})
		if err != nil {
			logger.Warn("style enhancement failed, keeping original text", "error", err)
		} else {
			style = enhanced
		}
	}

	req := card.Request{
		Members:    members,
		Topic:      genTopic,
		Scene:      scene,
		Style:      style,
		Overlay:    overlay,
		Expand:     genExpand,
		Resolution: resolution,
	}

	fmt.Fprintf(os.Stderr, "Generating a card with %d family member(s)...\n", len(members))
	result, err := generator.Generate(ctx, req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if genShowPrompt {
		fmt.Fprintln(os.Stderr, result.Prompt)
	}

	if err := os.WriteFile(genOutput, result.PNG, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Card written to %s (%d bytes)\n", genOutput, len(result.PNG))
}

// loadMembers reads every member spec into a profile. A spec with an
// unreadable photo fails the whole run.
func loadMembers(specs []string) ([]card.Profile, error) {
	members := make([]card.Profile, 0, len(specs))
	for _, spec := range specs {
		path, name, description, err := parseMemberSpec(spec)
		if err != nil {
			return nil, err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read member photo: %w", err)
		}
		members = append(members, card.Profile{
			Name:        name,
			Description: description,
			Photo:       data,
			PhotoMime:   photoMime(path, data),
		})
	}
	return members, nil
}

// parseMemberSpec splits PHOTO[:NAME[:DESCRIPTION]]. Name and description
// are optional; the description may itself contain colons.
func parseMemberSpec(spec string) (path, name, description string, err error) {
	parts := strings.SplitN(spec, ":", 3)
	path = strings.TrimSpace(parts[0])
	if path == "" {
		return "", "", "", fmt.Errorf("member %q: photo path is required", spec)
	}
	if len(parts) > 1 {
		name = strings.TrimSpace(parts[1])
	}
	if len(parts) > 2 {
		description = strings.TrimSpace(parts[2])
	}
	return path, name, description, nil
}

// photoMime resolves the reference photo MIME type: file extension first,
// content sniffing second, JPEG as the last resort.
func photoMime(path string, data []byte) string {
	byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if i := strings.Index(byExt, ";"); i != -1 {
		byExt = strings.TrimSpace(byExt[:i])
	}
	if strings.HasPrefix(byExt, "image/") {
		return byExt
	}
	if sniffed := http.DetectContentType(data); strings.HasPrefix(sniffed, "image/") {
		return sniffed
	}
	return "image/jpeg"
}

// resolveSelection picks the text for one card section: a named preset wins,
// then explicitly set custom text (even empty), then the catalog default.
func resolveSelection(list []preset.Preset, presetName, custom string, customSet bool, fallback preset.Preset, what string) (string, error) {
	if presetName != "" {
		p, ok := preset.Find(list, presetName)
		if !ok {
			return "", fmt.Errorf("unknown %s preset %q", what, presetName)
		}
		return p.Text, nil
	}
	if customSet {
		return custom, nil
	}
	return fallback.Text, nil
}

func memberDescriptionsText(members []card.Profile) string {
	lines := make([]string, 0, len(members))
	for _, m := range members {
		if strings.TrimSpace(m.Description) == "" {
			continue
		}
		lines = append(lines, "- "+strings.TrimSpace(m.Description))
	}
	return strings.Join(lines, "\n")
}

func newLogger(cfg config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().StringArrayVarP(&genMembers, "member", "m", nil, "family member as PHOTO[:NAME[:DESCRIPTION]] (repeatable)")
	generateCmd.Flags().StringVar(&genTopic, "topic", "", "card topic (defaults to Holiday)")
	generateCmd.Flags().StringVar(&genScene, "scene", "", "custom scene instructions")
	generateCmd.Flags().StringVar(&genScenePreset, "scene-preset", "", "scene preset name from the catalog")
	generateCmd.Flags().StringVar(&genStyle, "style", "", "custom style instructions")
	generateCmd.Flags().StringVar(&genStylePreset, "style-preset", "", "style preset name from the catalog")
	generateCmd.Flags().StringVar(&genOverlay, "overlay", "", "custom overlay text")
	generateCmd.Flags().StringVar(&genOverlayPreset, "overlay-preset", "", "overlay preset name from the catalog")
	generateCmd.Flags().BoolVar(&genExpand, "expand", false, "expand member descriptions from their photos before prompt assembly")
	generateCmd.Flags().BoolVar(&genEnhanceScene, "enhance-scene", false, "expand the scene instructions with the text model first")
	generateCmd.Flags().BoolVar(&genEnhanceStyle, "enhance-style", false, "expand the style instructions with the text model first")
	generateCmd.Flags().StringVar(&genResolution, "resolution", "1K", "card resolution: 1K, 2K or 4K")
	generateCmd.Flags().StringVarP(&genOutput, "output", "o", "holiday_card.png", "output PNG path")
	generateCmd.Flags().StringVar(&genPresetsFile, "presets-file", "", "YAML preset catalog overriding the built-in one")
	generateCmd.Flags().DurationVar(&genTimeout, "timeout", 0, "overall request timeout (defaults to REQUEST_TIMEOUT_SECONDS)")
	generateCmd.Flags().BoolVar(&genShowPrompt, "show-prompt", false, "print the assembled prompt to stderr")

	generateCmd.MarkFlagsMutuallyExclusive("scene", "scene-preset")
	generateCmd.MarkFlagsMutuallyExclusive("style", "style-preset")
	generateCmd.MarkFlagsMutuallyExclusive("overlay", "overlay-preset")
	generateCmd.MarkFlagRequired("member")
}
