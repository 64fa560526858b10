package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sketchrelay/game"
	"sketchrelay/store"
)

func TestCreate(t *testing.T) {
	ctx := context.Background()
	svc := New(store.NewMemory())

	m, err := svc.Create(ctx, "ABC123", "Alice")
	require.NoError(t, err)
	defer m.Release()

	assert.Equal(t, "ABC123", m.Session.Code)
	assert.Equal(t, 0, m.Index)
	assert.Equal(t, 0, m.Session.Round)
	assert.Equal(t, map[string]int{"Alice": 0}, m.Session.Players)
	assert.NotEmpty(t, m.Session.Word)

	_, err = svc.Create(ctx, "ABC123", "Eve")
	assert.ErrorIs(t, err, store.ErrExists)
}

func TestCreateGeneratesCode(t *testing.T) {
	ctx := context.Background()
	svc := New(store.NewMemory())

	m, err := svc.Create(ctx, "", "Alice")
	require.NoError(t, err)
	defer m.Release()
	assert.Len(t, m.Session.Code, game.CodeLength)
}

func TestCreateRequiresName(t *testing.T) {
	_, err := New(store.NewMemory()).Create(context.Background(), "ABC123", "")
	assert.ErrorIs(t, err, ErrNoName)
}

func TestJoin(t *testing.T) {
	ctx := context.Background()
	svc := New(store.NewMemory())

	host, err := svc.Create(ctx, "ABC123", "Alice")
	require.NoError(t, err)
	defer host.Release()

	bob, err := svc.Join(ctx, "ABC123", "Bob")
	require.NoError(t, err)
	defer bob.Release()
	assert.Equal(t, 1, bob.Index)
	assert.Equal(t, map[string]int{"Alice": 0, "Bob": 1}, bob.Session.Players)

	// Third seat does not exist.
	_, err = svc.Join(ctx, "ABC123", "Carol")
	assert.ErrorIs(t, err, ErrSessionFull)
}

func TestJoinErrors(t *testing.T) {
	ctx := context.Background()
	svc := New(store.NewMemory())

	host, err := svc.Create(ctx, "ABC123", "Alice")
	require.NoError(t, err)
	defer host.Release()

	_, err = svc.Join(ctx, "NOPE42", "Bob")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = svc.Join(ctx, "ABC123", "Alice")
	assert.ErrorIs(t, err, ErrNameTaken)

	_, err = svc.Join(ctx, "ABC123", "")
	assert.ErrorIs(t, err, ErrNoName)
}

func TestJoinIndicesArePermutation(t *testing.T) {
	// Regardless of joins and departures, live indices stay 0..count-1.
	ctx := context.Background()
	st := store.NewMemory()
	svc := New(st)

	host, err := svc.Create(ctx, "ABC123", "Alice")
	require.NoError(t, err)
	defer host.Release()

	bob, err := svc.Join(ctx, "ABC123", "Bob")
	require.NoError(t, err)
	bob.Release()

	require.NoError(t, svc.Leave(ctx, "ABC123", "Bob"))

	// Carol refills Bob's slot.
	carol, err := svc.Join(ctx, "ABC123", "Carol")
	require.NoError(t, err)
	defer carol.Release()
	assert.Equal(t, 1, carol.Index)

	sess, err := st.Load(ctx, "ABC123")
	require.NoError(t, err)
	seen := map[int]bool{}
	for _, i := range sess.Players {
		assert.False(t, seen[i], "duplicate join index %d", i)
		seen[i] = true
		assert.GreaterOrEqual(t, i, 0)
		assert.Less(t, i, len(sess.Players))
	}
}

func TestLeaveIdempotent(t *testing.T) {
	ctx := context.Background()
	svc := New(store.NewMemory())

	host, err := svc.Create(ctx, "ABC123", "Alice")
	require.NoError(t, err)
	defer host.Release()

	require.NoError(t, svc.Leave(ctx, "ABC123", "Bob"))
	require.NoError(t, svc.Leave(ctx, "ABC123", "Bob"))
	require.NoError(t, svc.Leave(ctx, "NOPE42", "Bob"))
}

func TestStart(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	svc := New(st)

	host, err := svc.Create(ctx, "ABC123", "Alice")
	require.NoError(t, err)
	defer host.Release()
	word := host.Session.Word

	require.NoError(t, svc.Start(ctx, "ABC123"))

	sess, err := st.Load(ctx, "ABC123")
	require.NoError(t, err)
	assert.Equal(t, 1, sess.Round)
	assert.Equal(t, word, sess.Word, "starting keeps the word chosen at creation")

	// The duplicate trigger is a no-op, not a second advance.
	require.NoError(t, svc.Start(ctx, "ABC123"))
	sess, err = st.Load(ctx, "ABC123")
	require.NoError(t, err)
	assert.Equal(t, 1, sess.Round)
}

func TestGuess(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	svc := New(st)

	host, err := svc.Create(ctx, "ABC123", "Alice")
	require.NoError(t, err)
	defer host.Release()
	require.NoError(t, svc.Start(ctx, "ABC123"))

	sess, err := st.Load(ctx, "ABC123")
	require.NoError(t, err)
	word := sess.Word

	// Miss: nothing moves.
	correct, err := svc.Guess(ctx, "ABC123", "Alice", "definitely wrong")
	require.NoError(t, err)
	assert.False(t, correct)

	sess, err = st.Load(ctx, "ABC123")
	require.NoError(t, err)
	assert.Equal(t, 1, sess.Round)
	assert.Equal(t, word, sess.Word)

	// Padding is not forgiven.
	correct, err = svc.Guess(ctx, "ABC123", "Alice", "  "+word)
	require.NoError(t, err)
	assert.False(t, correct, "no trimming: padded guess is a miss")

	correct, err = svc.Guess(ctx, "ABC123", "Alice", word)
	require.NoError(t, err)
	assert.True(t, correct)

	sess, err = st.Load(ctx, "ABC123")
	require.NoError(t, err)
	assert.Equal(t, 2, sess.Round)
	assert.NotEmpty(t, sess.Word)
}

// racingStore sneaks a competing round advance in between a client's read
// and its conditional write, once.
type racingStore struct {
	store.SessionStore
	raced bool
}

func (r *racingStore) AdvanceRound(ctx context.Context, code string, from int, word string) error {
	if !r.raced {
		r.raced = true
		if err := r.SessionStore.AdvanceRound(ctx, code, from, game.RandomWord()); err != nil {
			return err
		}
	}
	return r.SessionStore.AdvanceRound(ctx, code, from, word)
}

func TestGuessRaceStaysIdempotent(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	svc := New(st)

	host, err := svc.Create(ctx, "ABC123", "Alice")
	require.NoError(t, err)
	defer host.Release()
	require.NoError(t, svc.Start(ctx, "ABC123"))

	sess, err := st.Load(ctx, "ABC123")
	require.NoError(t, err)
	word := sess.Word

	// Both players guess right at the same moment; the second write finds
	// the round already moved and must not advance it again.
	correct, err := New(&racingStore{SessionStore: st}).Guess(ctx, "ABC123", "Alice", word)
	require.NoError(t, err)
	assert.True(t, correct, "the guess was right for the round it was made in")

	sess, err = st.Load(ctx, "ABC123")
	require.NoError(t, err)
	assert.Equal(t, 2, sess.Round, "round advanced once, not twice")
}

func TestJoinRace(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	svc := New(st)

	host, err := svc.Create(ctx, "ABC123", "Alice")
	require.NoError(t, err)
	defer host.Release()

	// Two joins land concurrently. Exactly one may take index 1, and the
	// loser must come out as SessionFull, never as a duplicate index.
	type result struct {
		m   *Membership
		err error
	}
	results := make(chan result, 2)
	for _, name := range []string{"Bob", "Carol"} {
		go func(name string) {
			m, err := svc.Join(ctx, "ABC123", name)
			results <- result{m, err}
		}(name)
	}

	var wins, fulls int
	for i := 0; i < 2; i++ {
		select {
		case r := <-results:
			if r.err == nil {
				assert.Equal(t, 1, r.m.Index)
				defer r.m.Release()
				wins++
			} else {
				assert.ErrorIs(t, r.err, ErrSessionFull)
				fulls++
			}
		case <-time.After(5 * time.Second):
			t.Fatal("join race did not resolve")
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, fulls)
}
