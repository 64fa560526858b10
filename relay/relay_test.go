package relay

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sketchrelay/game"
	"sketchrelay/store"
	"sketchrelay/stroke"
)

func newSession(t *testing.T, st *store.Memory) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, st.Create(ctx, game.NewSession("ABC123", "Alice")))
	s, err := st.Load(ctx, "ABC123")
	require.NoError(t, err)
	require.NoError(t, st.AddPlayer(ctx, "ABC123", "Bob", 1, s.Rev))
}

func TestPublishFetch(t *testing.T) {
	// Bob draws, Alice's next fetch sees exactly what he published.
	ctx := context.Background()
	st := store.NewMemory()
	newSession(t, st)

	drawn := stroke.Drawing{
		{Points: []stroke.Point{{X: 1, Y: 1}, {X: 2, Y: 3}, {X: 4, Y: 5}}, Color: stroke.Red},
	}
	require.NoError(t, NewPublisher(st, "ABC123", "Bob").Publish(ctx, drawn))

	got, err := NewPoller(st, "ABC123", "Bob").Fetch(ctx)
	require.NoError(t, err)
	if diff := cmp.Diff(drawn, got); diff != "" {
		t.Errorf("fetched drawing differs from published (-want +got):\n%s", diff)
	}
}

func TestFetchBeforePublish(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	newSession(t, st)

	got, err := NewPoller(st, "ABC123", "Bob").Fetch(ctx)
	require.NoError(t, err)
	assert.Empty(t, got, "nothing published reads as an empty drawing")
}

func TestPublishOverwrites(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	newSession(t, st)

	pub := NewPublisher(st, "ABC123", "Bob")
	first := stroke.Drawing{{Points: []stroke.Point{{X: 1, Y: 1}}, Color: stroke.Blue}}
	second := stroke.Drawing{{Points: []stroke.Point{{X: 9, Y: 9}}, Color: stroke.Pink}}
	require.NoError(t, pub.Publish(ctx, first))
	require.NoError(t, pub.Publish(ctx, second))

	got, err := NewPoller(st, "ABC123", "Bob").Fetch(ctx)
	require.NoError(t, err)
	if diff := cmp.Diff(second, got); diff != "" {
		t.Errorf("publish should replace, not append (-want +got):\n%s", diff)
	}
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	newSession(t, st)

	pub := NewPublisher(st, "ABC123", "Bob")
	require.NoError(t, pub.Publish(ctx, stroke.Drawing{{Points: []stroke.Point{{X: 1, Y: 1}}, Color: stroke.Blue}}))
	require.NoError(t, pub.Clear(ctx))

	got, err := NewPoller(st, "ABC123", "Bob").Fetch(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPollerRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st := store.NewMemory()
	newSession(t, st)

	drawn := stroke.Drawing{{Points: []stroke.Point{{X: 5, Y: 5}}, Color: stroke.Purple}}
	require.NoError(t, NewPublisher(st, "ABC123", "Bob").Publish(ctx, drawn))

	got := make(chan stroke.Drawing, 1)
	go NewPoller(st, "ABC123", "Bob").WithInterval(5*time.Millisecond).Run(ctx, func(d stroke.Drawing) {
		select {
		case got <- d:
		default:
		}
	})

	select {
	case d := <-got:
		assert.Len(t, d, 1)
	case <-time.After(time.Second):
		t.Fatal("poller never delivered a drawing")
	}
}
