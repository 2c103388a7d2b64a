package session

import (
	"errors"
	"sync"
	"time"

	"github.com/cvandijck/card-generator/pkg/metrics"
)

// Phase tracks where a chat's draft is in the card flow.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseCollecting Phase = "collecting"
	PhaseSubmitting Phase = "submitting"
	PhaseSucceeded  Phase = "succeeded"
	PhaseFailed     Phase = "failed"
)

// Member is one collected family member.
type Member struct {
	Name        string
	Description string
	Photo       []byte
	PhotoMime   string
}

// Draft is the card being assembled in one chat. Scene, Style and Overlay
// hold resolved instruction texts; the *Name fields remember which preset
// they came from for display.
type Draft struct {
	ChatID       int64
	Phase        Phase
	Members      []Member
	Topic        string
	Scene        string
	SceneName    string
	Style        string
	StyleName    string
	Overlay      string
	OverlayName  string
	Expand       bool
	Resolution   string
	LastActivity time.Time
}

var (
	ErrBusy           = errors.New("a generation is already running for this chat")
	ErrTooManyMembers = errors.New("family member limit reached")
)

type Options struct {
	MaxMembers int
}

type Store struct {
	mu         sync.Mutex
	drafts     map[int64]*Draft
	maxMembers int
}

func NewStore(opts Options) *Store {
	maxMembers := opts.MaxMembers
	if maxMembers <= 0 {
		maxMembers = 10
	}

	return &Store{
		drafts:     make(map[int64]*Draft),
		maxMembers: maxMembers,
	}
}

// MaxMembers reports the per-draft member cap.
func (s *Store) MaxMembers() int { return s.maxMembers }

// Snapshot returns a copy of the chat's draft.
func (s *Store) Snapshot(chatID int64) Draft {
	s.mu.Lock()
	defer s.mu.Unlock()

	draft := s.getOrCreateLocked(chatID)
	return cloneDraft(draft)
}

// Update applies fn to the chat's draft under the lock and returns the
// result. An edit after a finished generation moves the draft back to
// collecting; a draft mid-generation keeps its phase.
func (s *Store) Update(chatID int64, fn func(*Draft)) Draft {
	s.mu.Lock()
	defer s.mu.Unlock()

	draft := s.getOrCreateLocked(chatID)
	fn(draft)
	markEditedLocked(draft)
	draft.LastActivity = time.Now()
	return cloneDraft(draft)
}

// AddMembers appends members up to the configured cap and reports how many
// were taken.
func (s *Store) AddMembers(chatID int64, members ...Member) (Draft, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	draft := s.getOrCreateLocked(chatID)
	taken := 0
	for _, m := range members {
		if len(draft.Members) >= s.maxMembers {
			break
		}
		draft.Members = append(draft.Members, m)
		taken++
	}
	if taken > 0 {
		markEditedLocked(draft)
	}
	draft.LastActivity = time.Now()
	return cloneDraft(draft), taken
}

// BeginSubmit moves the draft into submitting and returns the snapshot the
// generation should run from. Only one generation may be in flight per chat.
func (s *Store) BeginSubmit(chatID int64) (Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	draft := s.getOrCreateLocked(chatID)
	if draft.Phase == PhaseSubmitting {
		return Draft{}, ErrBusy
	}
	draft.Phase = PhaseSubmitting
	draft.LastActivity = time.Now()
	return cloneDraft(draft), nil
}

// FinishSubmit records the outcome of a generation started with BeginSubmit.
func (s *Store) FinishSubmit(chatID int64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	draft, ok := s.drafts[chatID]
	if !ok {
		return
	}
	if err != nil {
		draft.Phase = PhaseFailed
	} else {
		draft.Phase = PhaseSucceeded
	}
	draft.LastActivity = time.Now()
}

// Clear drops the chat's draft entirely.
func (s *Store) Clear(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.drafts[chatID]; ok {
		delete(s.drafts, chatID)
		metrics.ActiveDrafts.Dec()
	}
}

func (s *Store) getOrCreateLocked(chatID int64) *Draft {
	if draft, ok := s.drafts[chatID]; ok {
		return draft
	}

	draft := &Draft{
		ChatID:       chatID,
		Phase:        PhaseIdle,
		LastActivity: time.Now(),
	}
	s.drafts[chatID] = draft
	metrics.ActiveDrafts.Inc()
	return draft
}

func markEditedLocked(draft *Draft) {
	switch draft.Phase {
	case PhaseIdle, PhaseSucceeded, PhaseFailed:
		draft.Phase = PhaseCollecting
	}
}

// cloneDraft copies the draft with its members slice. Photo bytes stay
// shared: they are never mutated in place.
func cloneDraft(draft *Draft) Draft {
	out := *draft
	out.Members = make([]Member, len(draft.Members))
	copy(out.Members, draft.Members)
	return out
}
