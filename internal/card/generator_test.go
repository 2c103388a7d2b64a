package card

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cvandijck/card-generator/internal/gemini"
)

type fakeModel struct {
	mu         sync.Mutex
	textCalls  []string
	imageCalls int
	lastPrompt string
	lastRefs   []gemini.ImageInput
	lastOpts   gemini.ImageOptions

	textFn  func(prompt string, images []gemini.ImageInput) (string, error)
	imageFn func(prompt string) (gemini.Image, error)
}

func (f *fakeModel) GenerateText(ctx context.Context, prompt string, images []gemini.ImageInput) (string, error) {
	f.mu.Lock()
	f.textCalls = append(f.textCalls, prompt)
	f.mu.Unlock()
	if f.textFn != nil {
		return f.textFn(prompt, images)
	}
	return "", errors.New("text model not stubbed")
}

func (f *fakeModel) GenerateImage(ctx context.Context, prompt string, refs []gemini.ImageInput, opts gemini.ImageOptions) (gemini.Image, error) {
	f.mu.Lock()
	f.imageCalls++
	f.lastPrompt = prompt
	f.lastRefs = refs
	f.lastOpts = opts
	f.mu.Unlock()
	if f.imageFn != nil {
		return f.imageFn(prompt)
	}
	return gemini.Image{Data: fakePNG(), MimeType: "image/png"}, nil
}

func fakePNG() []byte {
	return append(append([]byte{}, pngMagic...), []byte("payload")...)
}

func fakeJPEG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	for x := 0; x < 4; x++ {
		for y := 0; y < 3; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: 30, B: 30, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func validRequest() Request {
	return Request{
		Members: []Profile{
			{Name: "Alice", Description: "a smiling woman", Photo: []byte("photo-a"), PhotoMime: "image/jpeg"},
			{Name: "Bob", Description: "a laughing man", Photo: []byte("photo-b"), PhotoMime: "image/png"},
		},
		Scene:   "building a snowman",
		Style:   "cartoon",
		Overlay: "Happy Holidays",
	}
}

func TestGenerateRejectsEmptyRequest(t *testing.T) {
	model := &fakeModel{}
	gen := NewGenerator(GeneratorOptions{Model: model})

	_, err := gen.Generate(context.Background(), Request{Scene: "snow"})
	require.ErrorIs(t, err, ErrNoMembers)
	assert.Zero(t, model.imageCalls)
	assert.Empty(t, model.textCalls)
}

func TestGenerateRejectsMemberWithoutPhoto(t *testing.T) {
	model := &fakeModel{}
	gen := NewGenerator(GeneratorOptions{Model: model})

	req := validRequest()
	req.Members[1].Photo = nil

	_, err := gen.Generate(context.Background(), req)
	require.ErrorIs(t, err, ErrMissingPhoto)
	assert.Contains(t, err.Error(), "member 2")
	assert.Zero(t, model.imageCalls)
}

func TestGenerate(t *testing.T) {
	model := &fakeModel{}
	gen := NewGenerator(GeneratorOptions{Model: model})

	result, err := gen.Generate(context.Background(), validRequest())
	require.NoError(t, err)

	assert.Equal(t, fakePNG(), result.PNG)
	assert.Contains(t, result.Prompt, "Alice")
	assert.Contains(t, result.Prompt, "Bob")

	assert.Equal(t, 1, model.imageCalls)
	assert.Empty(t, model.textCalls, "no enhancement without Expand")

	require.Len(t, model.lastRefs, 2)
	assert.Equal(t, []byte("photo-a"), model.lastRefs[0].Data)
	assert.Equal(t, "image/jpeg", model.lastRefs[0].MimeType)
	assert.Equal(t, []byte("photo-b"), model.lastRefs[1].Data)

	assert.Equal(t, "4:3", model.lastOpts.AspectRatio)
	assert.Equal(t, "1K", model.lastOpts.Resolution)
	assert.True(t, model.lastOpts.Grounding)
}

func TestGenerateResolution(t *testing.T) {
	model := &fakeModel{}
	gen := NewGenerator(GeneratorOptions{Model: model})

	req := validRequest()
	req.Resolution = "2K"

	_, err := gen.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "2K", model.lastOpts.Resolution)
}

func TestGenerateExpandUsesEnhancedDescriptions(t *testing.T) {
	model := &fakeModel{
		textFn: func(prompt string, images []gemini.ImageInput) (string, error) {
			switch {
			case strings.Contains(prompt, "a smiling woman"):
				return "a radiant woman with auburn hair", nil
			case strings.Contains(prompt, "a laughing man"):
				return "a tall man with a booming laugh", nil
			}
			return "", errors.New("unexpected prompt")
		},
	}
	gen := NewGenerator(GeneratorOptions{Model: model})

	req := validRequest()
	req.Expand = true

	result, err := gen.Generate(context.Background(), req)
	require.NoError(t, err)

	assert.Len(t, model.textCalls, 2)
	assert.Contains(t, result.Prompt, "- Alice: a radiant woman with auburn hair")
	assert.Contains(t, result.Prompt, "- Bob: a tall man with a booming laugh")
}

func TestGenerateExpandDegradesOnEnhancementFailure(t *testing.T) {
	model := &fakeModel{
		textFn: func(prompt string, images []gemini.ImageInput) (string, error) {
			if strings.Contains(prompt, "a laughing man") {
				return "", errors.New("model overloaded")
			}
			return "a radiant woman with auburn hair", nil
		},
	}
	gen := NewGenerator(GeneratorOptions{Model: model})

	req := validRequest()
	req.Expand = true

	result, err := gen.Generate(context.Background(), req)
	require.NoError(t, err, "enhancement failure must not block the card")

	assert.Contains(t, result.Prompt, "- Alice: a radiant woman with auburn hair")
	assert.Contains(t, result.Prompt, "- Bob: a laughing man")
	assert.Equal(t, 1, model.imageCalls)
}

func TestGeneratePassesModelErrorThrough(t *testing.T) {
	wantErr := &gemini.BlockedError{Reason: "PROHIBITED_CONTENT"}
	model := &fakeModel{
		imageFn: func(string) (gemini.Image, error) {
			return gemini.Image{}, wantErr
		},
	}
	gen := NewGenerator(GeneratorOptions{Model: model})

	_, err := gen.Generate(context.Background(), validRequest())
	var blocked *gemini.BlockedError
	require.ErrorAs(t, err, &blocked)
	assert.Equal(t, "PROHIBITED_CONTENT", blocked.Reason)
}

func TestGenerateTranscodesNonPNG(t *testing.T) {
	jpegBytes := fakeJPEG(t)
	model := &fakeModel{
		imageFn: func(string) (gemini.Image, error) {
			return gemini.Image{Data: jpegBytes, MimeType: "image/jpeg"}, nil
		},
	}
	gen := NewGenerator(GeneratorOptions{Model: model})

	result, err := gen.Generate(context.Background(), validRequest())
	require.NoError(t, err)

	assert.True(t, bytes.HasPrefix(result.PNG, pngMagic), "output must be PNG")
	decoded, format, err := image.Decode(bytes.NewReader(result.PNG))
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, 4, decoded.Bounds().Dx())
	assert.Equal(t, 3, decoded.Bounds().Dy())
}

func TestNormalizePNGPassthrough(t *testing.T) {
	data := fakePNG()
	out, err := normalizePNG(data)
	require.NoError(t, err)
	assert.Equal(t, data, out, "png bytes must pass through untouched")
}

func TestNormalizePNGRejectsGarbage(t *testing.T) {
	_, err := normalizePNG([]byte("not an image"))
	require.Error(t, err)
}
