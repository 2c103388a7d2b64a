package gemini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Options{
		APIKey:     "test-key",
		BaseURL:    srv.URL,
		HTTPClient: srv.Client(),
	})
}

func imageResponse(mimeType string, data []byte) string {
	body, _ := json.Marshal(map[string]any{
		"candidates": []map[string]any{{
			"content": map[string]any{
				"parts": []map[string]any{{
					"inlineData": map[string]string{
						"mimeType": mimeType,
						"data":     base64.StdEncoding.EncodeToString(data),
					},
				}},
			},
			"finishReason": "STOP",
		}},
	})
	return string(body)
}

func TestGenerateImage(t *testing.T) {
	pngBytes := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}

	var gotRequest generateContentRequest
	var gotPath, gotKey string

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &gotRequest))
		fmt.Fprint(w, imageResponse("image/png", pngBytes))
	})

	img, err := client.GenerateImage(context.Background(), "a festive card",
		[]ImageInput{{Data: []byte("photo"), MimeType: "image/jpeg"}},
		ImageOptions{AspectRatio: "4:3", Grounding: true},
	)
	require.NoError(t, err)

	assert.Equal(t, pngBytes, img.Data)
	assert.Equal(t, "image/png", img.MimeType)

	assert.Equal(t, "/v1beta/models/gemini-3-pro-image-preview:generateContent", gotPath)
	assert.Equal(t, "test-key", gotKey)

	assert.Equal(t, []string{"IMAGE"}, gotRequest.GenerationConfig.ResponseModalities)
	require.NotNil(t, gotRequest.GenerationConfig.ImageConfig)
	assert.Equal(t, "4:3", gotRequest.GenerationConfig.ImageConfig.AspectRatio)
	assert.Equal(t, "1K", gotRequest.GenerationConfig.ImageConfig.ImageSize)
	require.Len(t, gotRequest.Tools, 1)
	assert.NotNil(t, gotRequest.Tools[0].GoogleSearch)

	require.Len(t, gotRequest.Contents, 1)
	parts := gotRequest.Contents[0].Parts
	require.Len(t, parts, 2)
	assert.Equal(t, "a festive card", parts[0].Text)
	require.NotNil(t, parts[1].InlineData)
	assert.Equal(t, "image/jpeg", parts[1].InlineData.MimeType)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("photo")), parts[1].InlineData.Data)
}

func TestGenerateImageRetriesWithoutImageConfig(t *testing.T) {
	pngBytes := []byte{0x89, 'P', 'N', 'G'}

	var calls int
	var secondRequest generateContentRequest

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		body, _ := io.ReadAll(r.Body)
		if calls == 1 {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"error":{"message":"Invalid JSON payload received. Unknown name \"imageConfig\""}}`)
			return
		}
		require.NoError(t, json.Unmarshal(body, &secondRequest))
		fmt.Fprint(w, imageResponse("image/png", pngBytes))
	})

	img, err := client.GenerateImage(context.Background(), "prompt", nil, ImageOptions{AspectRatio: "4:3"})
	require.NoError(t, err)

	assert.Equal(t, 2, calls)
	assert.Nil(t, secondRequest.GenerationConfig.ImageConfig)
	assert.Equal(t, pngBytes, img.Data)
}

func TestGenerateImageDataURLPayload(t *testing.T) {
	pngBytes := []byte{0x89, 'P', 'N', 'G'}
	payload := "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngBytes)

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"candidates":[{"content":{"parts":[{"inlineData":{"mimeType":"","data":%q}}]},"finishReason":"STOP"}]}`, payload)
	})

	img, err := client.GenerateImage(context.Background(), "prompt", nil, ImageOptions{})
	require.NoError(t, err)
	assert.Equal(t, pngBytes, img.Data)
	assert.Equal(t, "image/png", img.MimeType)
}

func TestSplitDataPayload(t *testing.T) {
	payload, mimeType := splitDataPayload("aGk=", "image/jpeg")
	assert.Equal(t, "aGk=", payload)
	assert.Equal(t, "image/jpeg", mimeType)

	payload, mimeType = splitDataPayload("data:image/png;base64,aGk=", "")
	assert.Equal(t, "aGk=", payload)
	assert.Equal(t, "image/png", mimeType)

	payload, mimeType = splitDataPayload("data:;base64,aGk=", "image/webp")
	assert.Equal(t, "aGk=", payload)
	assert.Equal(t, "image/webp", mimeType)
}

func TestGenerateImageBlocked(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"promptFeedback":{"blockReason":"PROHIBITED_CONTENT"}}`)
	})

	_, err := client.GenerateImage(context.Background(), "prompt", nil, ImageOptions{})
	require.Error(t, err)

	var blocked *BlockedError
	require.ErrorAs(t, err, &blocked)
	assert.Equal(t, "PROHIBITED_CONTENT", blocked.Reason)
}

func TestGenerateImageSafetyFinish(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"candidates":[{"content":{"parts":[]},"finishReason":"IMAGE_SAFETY"}]}`)
	})

	_, err := client.GenerateImage(context.Background(), "prompt", nil, ImageOptions{})
	require.Error(t, err)

	var blocked *BlockedError
	require.ErrorAs(t, err, &blocked)
	assert.Equal(t, "IMAGE_SAFETY", blocked.Reason)
}

func TestGenerateImageNoImagePart(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"candidates":[{"content":{"parts":[{"text":"I cannot draw that."}]},"finishReason":"STOP"}]}`)
	})

	_, err := client.GenerateImage(context.Background(), "prompt", nil, ImageOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no image in response")
	assert.Contains(t, err.Error(), "I cannot draw that.")
}

func TestGenerateImageStatusError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, `{"error":{"message":"overloaded"}}`)
	})

	_, err := client.GenerateImage(context.Background(), "prompt", nil, ImageOptions{})
	require.Error(t, err)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
	assert.Contains(t, statusErr.Error(), "gemini API")
}

func TestGenerateText(t *testing.T) {
	var gotRequest generateContentRequest

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &gotRequest))
		fmt.Fprint(w, `{"candidates":[{"content":{"parts":[{"text":"A tall man "},{"text":"with a red scarf."}]},"finishReason":"STOP"}]}`)
	})

	text, err := client.GenerateText(context.Background(), "describe this person",
		[]ImageInput{{Data: []byte("photo"), MimeType: "image/jpeg"}})
	require.NoError(t, err)

	assert.Equal(t, "A tall man with a red scarf.", text)
	assert.Equal(t, []string{"TEXT"}, gotRequest.GenerationConfig.ResponseModalities)
	assert.Nil(t, gotRequest.GenerationConfig.ImageConfig)
	assert.Empty(t, gotRequest.Tools)
}

func TestGenerateTextEmptyPrompt(t *testing.T) {
	client := New(Options{APIKey: "k", HTTPClient: http.DefaultClient})

	_, err := client.GenerateText(context.Background(), "   ", nil)
	require.Error(t, err)
}

func TestIsUnknownFieldError(t *testing.T) {
	err := &StatusError{
		StatusCode: 400,
		Status:     "400 Bad Request",
		Body:       `{"error":{"message":"Unknown name \"imageConfig\" at 'generation_config'"}}`,
	}
	assert.True(t, isUnknownFieldError(err, "imageConfig"))
	assert.False(t, isUnknownFieldError(err, "tools"))
	assert.False(t, isUnknownFieldError(errors.New("connection refused"), "imageConfig"))
}
