package bot

import "strings"

// ParseCaption splits a photo caption into a member name and description.
// "Anna - loves skiing" names and describes; a caption without the separator
// is the name alone; a multi-line caption uses the first line as the name and
// the rest as the description. Empty parts fall back to defaults at prompt
// assembly.
func ParseCaption(caption string) (name, description string) {
	caption = strings.TrimSpace(caption)
	if caption == "" {
		return "", ""
	}

	if before, after, ok := strings.Cut(caption, " - "); ok {
		return strings.TrimSpace(before), strings.TrimSpace(after)
	}
	if before, after, ok := strings.Cut(caption, "\n"); ok {
		return strings.TrimSpace(before), strings.TrimSpace(after)
	}
	return caption, ""
}
