package session

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateMovesIdleToCollecting(t *testing.T) {
	store := NewStore(Options{})

	draft := store.Snapshot(1)
	assert.Equal(t, PhaseIdle, draft.Phase)

	draft = store.Update(1, func(d *Draft) { d.Scene = "sledding" })
	assert.Equal(t, PhaseCollecting, draft.Phase)
	assert.Equal(t, "sledding", draft.Scene)
}

func TestSubmitLifecycle(t *testing.T) {
	store := NewStore(Options{})
	store.Update(7, func(d *Draft) { d.Scene = "snow" })

	draft, err := store.BeginSubmit(7)
	require.NoError(t, err)
	assert.Equal(t, PhaseSubmitting, draft.Phase)

	_, err = store.BeginSubmit(7)
	require.ErrorIs(t, err, ErrBusy)

	store.FinishSubmit(7, nil)
	assert.Equal(t, PhaseSucceeded, store.Snapshot(7).Phase)

	draft, err = store.BeginSubmit(7)
	require.NoError(t, err)
	assert.Equal(t, PhaseSubmitting, draft.Phase)

	store.FinishSubmit(7, errors.New("boom"))
	assert.Equal(t, PhaseFailed, store.Snapshot(7).Phase)
}

func TestEditAfterResultReturnsToCollecting(t *testing.T) {
	store := NewStore(Options{})

	_, err := store.BeginSubmit(3)
	require.NoError(t, err)
	store.FinishSubmit(3, nil)

	draft := store.Update(3, func(d *Draft) { d.Style = "cartoon" })
	assert.Equal(t, PhaseCollecting, draft.Phase)

	_, err = store.BeginSubmit(3)
	require.NoError(t, err)
	store.FinishSubmit(3, errors.New("boom"))

	draft, _ = store.AddMembers(3, Member{Name: "Alice", Photo: []byte("p")})
	assert.Equal(t, PhaseCollecting, draft.Phase)
}

func TestUpdateDuringSubmitKeepsPhase(t *testing.T) {
	store := NewStore(Options{})

	_, err := store.BeginSubmit(4)
	require.NoError(t, err)

	draft := store.Update(4, func(d *Draft) { d.Topic = "Birthday" })
	assert.Equal(t, PhaseSubmitting, draft.Phase)
	assert.Equal(t, "Birthday", draft.Topic)
}

func TestAddMembersCap(t *testing.T) {
	store := NewStore(Options{MaxMembers: 2})

	draft, taken := store.AddMembers(1,
		Member{Name: "A", Photo: []byte("a")},
		Member{Name: "B", Photo: []byte("b")},
		Member{Name: "C", Photo: []byte("c")},
	)
	assert.Equal(t, 2, taken)
	assert.Len(t, draft.Members, 2)
	assert.Equal(t, "A", draft.Members[0].Name)
	assert.Equal(t, "B", draft.Members[1].Name)

	_, taken = store.AddMembers(1, Member{Name: "D"})
	assert.Zero(t, taken)
}

func TestSnapshotIsACopy(t *testing.T) {
	store := NewStore(Options{})
	store.AddMembers(9, Member{Name: "A", Photo: []byte("a")})

	draft := store.Snapshot(9)
	draft.Members[0].Name = "mutated"
	draft.Scene = "mutated"

	fresh := store.Snapshot(9)
	assert.Equal(t, "A", fresh.Members[0].Name)
	assert.Empty(t, fresh.Scene)
}

func TestClear(t *testing.T) {
	store := NewStore(Options{})
	store.Update(5, func(d *Draft) { d.Scene = "snow" })

	store.Clear(5)
	draft := store.Snapshot(5)
	assert.Equal(t, PhaseIdle, draft.Phase)
	assert.Empty(t, draft.Scene)
}

func TestConcurrentUpdates(t *testing.T) {
	store := NewStore(Options{MaxMembers: 1000})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			store.AddMembers(1, Member{Name: "x", Photo: []byte("p")})
		}()
	}
	wg.Wait()

	assert.Len(t, store.Snapshot(1).Members, 50)
}
