package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCaption(t *testing.T) {
	tests := []struct {
		caption     string
		name        string
		description string
	}{
		{"Anna - loves skiing, red coat", "Anna", "loves skiing, red coat"},
		{"Anna", "Anna", ""},
		{"  Anna  ", "Anna", ""},
		{"Anna\nloves skiing\nred coat", "Anna", "loves skiing\nred coat"},
		{"Uncle Bob - tall, gray beard", "Uncle Bob", "tall, gray beard"},
		{"", "", ""},
		{"   ", "", ""},
		{" - just a description", "", "just a description"},
	}

	for _, tt := range tests {
		name, description := ParseCaption(tt.caption)
		assert.Equal(t, tt.name, name, "caption %q", tt.caption)
		assert.Equal(t, tt.description, description, "caption %q", tt.caption)
	}
}
