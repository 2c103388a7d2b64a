package gemini

// ImageInput is an inline image attached to a request, typically a family
// member photo used as an identity reference.
type ImageInput struct {
	Data     []byte
	MimeType string
}

// Image is a single generated image as returned by the service.
type Image struct {
	Data     []byte
	MimeType string
}

// ImageOptions tune an image generation call.
type ImageOptions struct {
	// AspectRatio is one of the ratios the service accepts ("1:1", "4:3",
	// "16:9", ...). Empty means "1:1".
	AspectRatio string
	// Resolution is "1K", "2K" or "4K". Empty means "1K".
	Resolution string
	// Grounding attaches the googleSearch tool so the model can look up
	// real-world detail while composing the scene.
	Grounding bool
}
