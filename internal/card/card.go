package card

import (
	"errors"
	"fmt"
)

// Profile is one family member: a reference photo plus how to describe them.
type Profile struct {
	Name        string
	Description string
	Photo       []byte
	PhotoMime   string
}

// Request aggregates every input for one generation attempt. It carries no
// identity: each Generate action builds a fresh one.
type Request struct {
	Members []Profile
	Topic   string
	Scene   string
	Style   string
	Overlay string

	// Expand asks for an AI pre-pass that rewrites each member description
	// from their photo before prompt assembly.
	Expand bool

	// Resolution of the rendered card: "1K", "2K" or "4K". Empty means "1K".
	Resolution string
}

// Card is a finished result. PNG holds the normalized image bytes; Prompt is
// the full instruction text the image was generated from.
type Card struct {
	PNG    []byte
	Prompt string
}

var (
	ErrNoMembers    = errors.New("at least one family member with a photo is required")
	ErrMissingPhoto = errors.New("family member has no photo")
)

// Validate enforces the one precondition for a generation call: at least one
// member, each with a photo. It must pass before any network call is made.
func (r *Request) Validate() error {
	if len(r.Members) == 0 {
		return ErrNoMembers
	}
	for i := range r.Members {
		if len(r.Members[i].Photo) == 0 {
			return fmt.Errorf("%w: member %d", ErrMissingPhoto, i+1)
		}
	}
	return nil
}
