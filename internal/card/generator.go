package card

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/cvandijck/card-generator/internal/gemini"
	"github.com/cvandijck/card-generator/pkg/metrics"
)

const (
	cardAspectRatio   = "4:3"
	defaultResolution = "1K"
)

// Model is the slice of the generative service the card flow depends on.
// *gemini.Client satisfies it.
type Model interface {
	GenerateText(ctx context.Context, prompt string, images []gemini.ImageInput) (string, error)
	GenerateImage(ctx context.Context, prompt string, refs []gemini.ImageInput, opts gemini.ImageOptions) (gemini.Image, error)
}

type GeneratorOptions struct {
	Model  Model
	Logger *slog.Logger
}

// Generator runs the whole card flow: validate, optionally expand member
// descriptions, assemble the prompt, render the image, normalize to PNG.
type Generator struct {
	model    Model
	enhancer *Enhancer
	logger   *slog.Logger
}

func NewGenerator(opts GeneratorOptions) *Generator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Generator{
		model:    opts.Model,
		enhancer: NewEnhancer(opts.Model, logger),
		logger:   logger,
	}
}

// Enhancer exposes the text pre-pass for callers that offer scene or style
// enhancement as a standalone action.
func (g *Generator) Enhancer() *Enhancer { return g.enhancer }

// Generate produces one card. The request is validated before any network
// call is made. Member photos travel with the prompt as identity references
// in member order, and the result always comes back as PNG.
func (g *Generator) Generate(ctx context.Context, req Request) (Card, error) {
	if err := req.Validate(); err != nil {
		return Card{}, err
	}

	resolution := req.Resolution
	if resolution == "" {
		resolution = defaultResolution
	}

	descriptions := g.memberDescriptions(ctx, req)
	prompt := BuildPrompt(req, descriptions)

	refs := make([]gemini.ImageInput, len(req.Members))
	for i, m := range req.Members {
		refs[i] = gemini.ImageInput{Data: m.Photo, MimeType: m.PhotoMime}
	}

	g.logger.Info("generating card",
		"members", len(req.Members),
		"expand", req.Expand,
		"resolution", resolution,
		"prompt_chars", len(prompt))

	img, err := g.model.GenerateImage(ctx, prompt, refs, gemini.ImageOptions{
		AspectRatio: cardAspectRatio,
		Resolution:  resolution,
		Grounding:   true,
	})
	if err != nil {
		return Card{}, err
	}

	data, err := normalizePNG(img.Data)
	if err != nil {
		return Card{}, fmt.Errorf("normalize card image: %w", err)
	}

	return Card{PNG: data, Prompt: prompt}, nil
}

// memberDescriptions returns one description per member. With Expand set it
// rewrites them all in parallel from the photos; a failed rewrite keeps the
// member's own text, so the pre-pass never blocks the card.
func (g *Generator) memberDescriptions(ctx context.Context, req Request) []string {
	descriptions := make([]string, len(req.Members))
	for i, m := range req.Members {
		descriptions[i] = m.Description
	}
	if !req.Expand {
		return descriptions
	}

	eg, egCtx := errgroup.WithContext(ctx)
	for i := range req.Members {
		i := i
		eg.Go(func() error {
			enhanced, err := g.enhancer.EnhanceProfile(egCtx, req.Members[i])
			if err != nil {
				metrics.EnhancementFailures.WithLabelValues("profile").Inc()
				g.logger.Warn("profile enhancement failed, keeping original description",
					"member", req.Members[i].Name, "error", err)
				return nil
			}
			descriptions[i] = enhanced
			return nil
		})
	}
	_ = eg.Wait()
	return descriptions
}
