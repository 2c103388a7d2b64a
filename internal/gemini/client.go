package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

const (
	modelText  = "gemini-2.5-flash"
	modelImage = "gemini-3-pro-image-preview"
)

type Options struct {
	APIKey     string
	BaseURL    string
	APIVersion string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

type Client struct {
	apiKey     string
	baseURL    string
	apiVersion string
	httpClient *http.Client
	logger     *slog.Logger
}

func New(opts Options) *Client {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com"
	}

	apiVersion := strings.TrimSpace(opts.APIVersion)
	if apiVersion == "" {
		apiVersion = "v1beta"
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{
		apiKey:     opts.APIKey,
		baseURL:    baseURL,
		apiVersion: apiVersion,
		httpClient: opts.HTTPClient,
		logger:     logger,
	}
}

// GenerateText runs prompt against the flash text model and returns the
// concatenated text parts. Attached images are passed as inline data so the
// model can describe them.
func (c *Client) GenerateText(ctx context.Context, prompt string, images []ImageInput) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("prompt is empty")
	}

	req := generateContentRequest{
		Contents: []content{{Role: "user", Parts: buildParts(prompt, images)}},
		GenerationConfig: generationConfig{
			ResponseModalities: []string{"TEXT"},
		},
	}

	resp, err := c.generateContent(ctx, modelText, req)
	if err != nil {
		return "", err
	}

	text, _, err := extractParts(resp)
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.New("no text in response")
	}
	return text, nil
}

// GenerateImage renders prompt into an image, with refs attached in order as
// identity references. It returns the first image part of the response; a
// reply with zero image parts is an error.
func (c *Client) GenerateImage(ctx context.Context, prompt string, refs []ImageInput, opts ImageOptions) (Image, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return Image{}, errors.New("prompt is empty")
	}

	aspectRatio := opts.AspectRatio
	if aspectRatio == "" {
		aspectRatio = "1:1"
	}
	resolution := opts.Resolution
	if resolution == "" {
		resolution = "1K"
	}

	req := generateContentRequest{
		Contents: []content{{Role: "user", Parts: buildParts(prompt, refs)}},
		GenerationConfig: generationConfig{
			ResponseModalities: []string{"IMAGE"},
			ImageConfig: &imageConfig{
				AspectRatio: aspectRatio,
				ImageSize:   resolution,
			},
		},
	}
	if opts.Grounding {
		req.Tools = []tool{{GoogleSearch: &googleSearch{}}}
	}

	resp, err := c.generateContent(ctx, modelImage, req)
	if err != nil && req.GenerationConfig.ImageConfig != nil && isUnknownFieldError(err, "imageConfig") {
		req.GenerationConfig.ImageConfig = nil
		resp, err = c.generateContent(ctx, modelImage, req)
	}
	if err != nil && len(req.Tools) > 0 && isUnknownFieldError(err, "tools") {
		req.Tools = nil
		resp, err = c.generateContent(ctx, modelImage, req)
	}
	if err != nil {
		return Image{}, err
	}

	text, images, err := extractParts(resp)
	if err != nil {
		return Image{}, err
	}
	if len(images) == 0 {
		if text = strings.TrimSpace(text); text != "" {
			return Image{}, fmt.Errorf("no image in response: %s", truncate(text, 300))
		}
		return Image{}, errors.New("no image in response")
	}
	if len(images) > 1 {
		c.logger.Warn("multiple images in response, using the first", "count", len(images))
	}
	return images[0], nil
}

func buildParts(prompt string, images []ImageInput) []part {
	parts := []part{{Text: prompt}}
	for _, img := range images {
		mimeType := img.MimeType
		if mimeType == "" {
			mimeType = "image/png"
		}
		parts = append(parts, part{
			InlineData: &blob{
				Data:     base64.StdEncoding.EncodeToString(img.Data),
				MimeType: mimeType,
			},
		})
	}
	return parts
}

func (c *Client) generateContent(ctx context.Context, model string, payload generateContentRequest) (generateContentResponse, error) {
	if c.httpClient == nil {
		return generateContentResponse{}, errors.New("http client is nil")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return generateContentResponse{}, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s/models/%s:generateContent", c.baseURL, c.apiVersion, model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return generateContentResponse{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("content-type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return generateContentResponse{}, fmt.Errorf("request: %w", err)
	}
	defer httpResp.Body.Close()

	rawBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return generateContentResponse{}, fmt.Errorf("read response: %w", err)
	}

	if httpResp.StatusCode >= 400 {
		return generateContentResponse{}, &StatusError{
			StatusCode: httpResp.StatusCode,
			Status:     httpResp.Status,
			Body:       string(rawBody),
		}
	}

	var decoded generateContentResponse
	if err := json.Unmarshal(rawBody, &decoded); err != nil {
		return generateContentResponse{}, fmt.Errorf("decode response: %w", err)
	}

	if decoded.PromptFeedback != nil && decoded.PromptFeedback.BlockReason != "" {
		return generateContentResponse{}, &BlockedError{Reason: decoded.PromptFeedback.BlockReason}
	}

	return decoded, nil
}

// extractParts splits a response into its text and decoded image parts. A
// candidate that finished for a non-STOP reason without producing any parts
// is treated as blocked.
func extractParts(resp generateContentResponse) (string, []Image, error) {
	if len(resp.Candidates) == 0 {
		return "", nil, errors.New("no candidates in response")
	}

	cand := resp.Candidates[0]

	var textBuilder strings.Builder
	var images []Image

	for _, p := range cand.Content.Parts {
		if p.Text != "" {
			textBuilder.WriteString(p.Text)
		}
		if p.InlineData != nil && p.InlineData.Data != "" {
			payload, mimeType := splitDataPayload(p.InlineData.Data, p.InlineData.MimeType)
			data, err := base64.StdEncoding.DecodeString(payload)
			if err != nil {
				return "", nil, fmt.Errorf("decode image data: %w", err)
			}
			images = append(images, Image{
				Data:     data,
				MimeType: mimeType,
			})
		}
	}

	if len(cand.Content.Parts) == 0 && cand.FinishReason != "" && cand.FinishReason != "STOP" {
		return "", nil, &BlockedError{Reason: cand.FinishReason}
	}

	return textBuilder.String(), images, nil
}

// splitDataPayload accepts inline image payloads that arrive as a data URL
// instead of bare base64, returning the base64 part and the effective MIME
// type.
func splitDataPayload(payload, declaredMime string) (string, string) {
	if !strings.HasPrefix(payload, "data:") {
		return payload, declaredMime
	}
	meta, data, ok := strings.Cut(payload[len("data:"):], ",")
	if !ok {
		return payload, declaredMime
	}
	if mimeType := strings.TrimSuffix(meta, ";base64"); mimeType != "" {
		return data, mimeType
	}
	return data, declaredMime
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && s[limit]&0xC0 == 0x80 {
		limit--
	}
	return s[:limit] + "..."
}

type generateContentRequest struct {
	Contents         []content        `json:"contents"`
	Tools            []tool           `json:"tools,omitempty"`
	GenerationConfig generationConfig `json:"generationConfig,omitempty"`
}

type generationConfig struct {
	ResponseModalities []string     `json:"responseModalities,omitempty"`
	ImageConfig        *imageConfig `json:"imageConfig,omitempty"`
}

type imageConfig struct {
	AspectRatio string `json:"aspectRatio,omitempty"`
	ImageSize   string `json:"imageSize,omitempty"`
}

type tool struct {
	GoogleSearch *googleSearch `json:"googleSearch,omitempty"`
}

type googleSearch struct{}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text       string `json:"text,omitempty"`
	InlineData *blob  `json:"inlineData,omitempty"`
}

type blob struct {
	Data     string `json:"data"`
	MimeType string `json:"mimeType"`
}

type generateContentResponse struct {
	Candidates     []candidate     `json:"candidates"`
	PromptFeedback *promptFeedback `json:"promptFeedback"`
}

type candidate struct {
	Content      content `json:"content"`
	FinishReason string  `json:"finishReason"`
}

type promptFeedback struct {
	BlockReason string `json:"blockReason"`
}
