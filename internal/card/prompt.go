package card

import (
	"fmt"
	"strings"
)

const cardPrompt = `You are an expert at creating personalized greeting cards by generating family images based on provided pictures and descriptions.

Task: Generate a %s card image featuring the family members shown in the provided images.

=== FAMILY MEMBERS ===
The following individuals must appear in the image (in order of provided pictures):
%s

=== CRITICAL REQUIREMENTS ===
- PRESERVE IDENTITY: Maintain exact facial structure, distinctive features, and identity of each person from their input image
- ACCURATE REPRESENTATION: Keep facial proportions, expressions, and key characteristics faithful to the original images
- NATURAL INTEGRATION: Blend all family members naturally into the scene while preserving their individual likenesses

=== SCENE DESCRIPTION ===
%s

=== STYLE INSTRUCTIONS ===
%s

=== OVERLAY/ADDITIONAL ELEMENTS ===
%s

Generate a high-quality greeting card image that balances creative scene composition with accurate representation of the family members.`

const (
	defaultTopic   = "Holiday"
	defaultStyle   = "Photorealistic style with vibrant colors."
	defaultOverlay = "N/A"
)

// BuildPrompt assembles the full instruction text for an image generation
// call. descriptions must be nil or hold one entry per member; a non-empty
// entry replaces that member's own description. The output keeps every member
// name and description verbatim so the model can anchor each reference photo
// to its text.
func BuildPrompt(req Request, descriptions []string) string {
	lines := make([]string, len(req.Members))
	for i, m := range req.Members {
		desc := m.Description
		if i < len(descriptions) && strings.TrimSpace(descriptions[i]) != "" {
			desc = descriptions[i]
		}
		lines[i] = memberLine(i, m.Name, desc)
	}

	topic := strings.TrimSpace(req.Topic)
	if topic == "" {
		topic = defaultTopic
	}
	style := strings.TrimSpace(req.Style)
	if style == "" {
		style = defaultStyle
	}
	overlay := strings.TrimSpace(req.Overlay)
	if overlay == "" {
		overlay = defaultOverlay
	}

	return fmt.Sprintf(cardPrompt,
		topic,
		strings.Join(lines, "\n"),
		strings.TrimSpace(req.Scene),
		style,
		overlay,
	)
}

func memberLine(index int, name, description string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = fmt.Sprintf("Person %d", index+1)
	}
	description = strings.TrimSpace(description)
	if description == "" {
		description = "Family member"
	}
	return fmt.Sprintf("- %s: %s", name, description)
}
