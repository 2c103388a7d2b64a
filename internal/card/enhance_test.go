package card

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cvandijck/card-generator/internal/gemini"
)

func TestEnhanceProfile(t *testing.T) {
	var gotPrompt string
	var gotImages []gemini.ImageInput

	model := &fakeModel{
		textFn: func(prompt string, images []gemini.ImageInput) (string, error) {
			gotPrompt = prompt
			gotImages = images
			return "a detailed profile", nil
		},
	}
	enhancer := NewEnhancer(model, nil)

	member := Profile{
		Name:        "Alice",
		Description: "a smiling woman",
		Photo:       []byte("photo-bytes"),
		PhotoMime:   "image/jpeg",
	}

	out, err := enhancer.EnhanceProfile(context.Background(), member)
	require.NoError(t, err)
	assert.Equal(t, "a detailed profile", out)

	assert.Contains(t, gotPrompt, "<UserProvidedDescription>\na smiling woman\n</UserProvidedDescription>")
	require.Len(t, gotImages, 1)
	assert.Equal(t, []byte("photo-bytes"), gotImages[0].Data)
	assert.Equal(t, "image/jpeg", gotImages[0].MimeType)
}

func TestEnhanceProfileEmptyDescription(t *testing.T) {
	var gotPrompt string
	model := &fakeModel{
		textFn: func(prompt string, images []gemini.ImageInput) (string, error) {
			gotPrompt = prompt
			return "described from photo alone", nil
		},
	}
	enhancer := NewEnhancer(model, nil)

	_, err := enhancer.EnhanceProfile(context.Background(), Profile{Photo: []byte("p")})
	require.NoError(t, err)
	assert.Contains(t, gotPrompt, "<UserProvidedDescription>\nN/A\n</UserProvidedDescription>")
}

func TestEnhanceProfileError(t *testing.T) {
	model := &fakeModel{
		textFn: func(string, []gemini.ImageInput) (string, error) {
			return "", errors.New("overloaded")
		},
	}
	enhancer := NewEnhancer(model, nil)

	_, err := enhancer.EnhanceProfile(context.Background(), Profile{Photo: []byte("p")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "enhance profile")
}

func TestEnhanceScene(t *testing.T) {
	var gotPrompt string
	var gotImages []gemini.ImageInput

	model := &fakeModel{
		textFn: func(prompt string, images []gemini.ImageInput) (string, error) {
			gotPrompt = prompt
			gotImages = images
			return "an expanded scene", nil
		},
	}
	enhancer := NewEnhancer(model, nil)

	out, err := enhancer.EnhanceScene(context.Background(), SceneContext{
		Instructions: "sledding down a hill",
		Style:        "oil painting",
	})
	require.NoError(t, err)
	assert.Equal(t, "an expanded scene", out)
	assert.Empty(t, gotImages)

	assert.Contains(t, gotPrompt, "<UserProvidedSceneInstructions>\nsledding down a hill\n</UserProvidedSceneInstructions>")
	assert.Contains(t, gotPrompt, "<UserProvidedConstraints>\nN/A\n</UserProvidedConstraints>")
	assert.Contains(t, gotPrompt, "<StyleInstructions>\noil painting\n</StyleInstructions>")
	assert.Contains(t, gotPrompt, "<ProfileDescriptions>\nN/A\n</ProfileDescriptions>")
}

func TestEnhanceStyle(t *testing.T) {
	var gotPrompt string

	model := &fakeModel{
		textFn: func(prompt string, images []gemini.ImageInput) (string, error) {
			gotPrompt = prompt
			return "an expanded style", nil
		},
	}
	enhancer := NewEnhancer(model, nil)

	out, err := enhancer.EnhanceStyle(context.Background(), StyleContext{
		Instructions: "cartoon",
		Scene:        "a snowy village",
	})
	require.NoError(t, err)
	assert.Equal(t, "an expanded style", out)

	assert.Contains(t, gotPrompt, "<StyleInstructions>\ncartoon\n</StyleInstructions>")
	assert.Contains(t, gotPrompt, "<SceneInstructions>\na snowy village\n</SceneInstructions>")
	assert.Contains(t, gotPrompt, "<PeopleDescriptions>\nN/A\n</PeopleDescriptions>")
}
