// Package client is the per-player engine: it joins or hosts a session,
// follows roster and round changes from the store, works out whether this
// player draws or guesses right now, and runs the stroke relay in whichever
// direction the current round calls for. UIs sit on top of it: they feed in
// gestures and guesses and paint whatever comes out of Snapshots and
// PeerDrawings.
package client

import (
	"context"
	"sync"
	"time"

	"github.com/jinzhu/copier"
	"go.uber.org/zap"

	"sketchrelay/game"
	"sketchrelay/relay"
	"sketchrelay/service"
	"sketchrelay/store"
	"sketchrelay/stroke"
)

type Client struct {
	store store.SessionStore
	svc   *service.Service
	name  string
	code  string
	index int

	release func()

	mu      sync.Mutex
	sess    game.Session
	drawing stroke.Drawing
	color   stroke.Color

	pub        *relay.Publisher
	pollCancel context.CancelFunc
	pollTarget string

	snapshots chan game.Session
	peer      chan stroke.Drawing

	// PollEvery is the guesser-side fetch cadence. Set it before Run to
	// override the default.
	PollEvery time.Duration
}

// Host creates a new session and returns the client for its first player.
// An empty code asks the service to generate one.
func Host(ctx context.Context, st store.SessionStore, code, name string) (*Client, error) {
	svc := service.New(st)
	m, err := svc.Create(ctx, code, name)
	if err != nil {
		return nil, err
	}
	return fromMembership(st, svc, name, m), nil
}

// Join enters an existing session.
func Join(ctx context.Context, st store.SessionStore, code, name string) (*Client, error) {
	svc := service.New(st)
	m, err := svc.Join(ctx, code, name)
	if err != nil {
		return nil, err
	}
	return fromMembership(st, svc, name, m), nil
}

func fromMembership(st store.SessionStore, svc *service.Service, name string, m *service.Membership) *Client {
	return &Client{
		store:     st,
		svc:       svc,
		name:      name,
		code:      m.Session.Code,
		index:     m.Index,
		release:   m.Release,
		sess:      *m.Session,
		color:     stroke.Green,
		pub:       relay.NewPublisher(st, m.Session.Code, name),
		snapshots: make(chan game.Session, 16),
		peer:      make(chan stroke.Drawing, 16),
		PollEvery: relay.DefaultInterval,
	}
}

// Code returns the session code (for the host to hand to the other player).
func (c *Client) Code() string { return c.code }

// Index returns this player's join index.
func (c *Client) Index() int { return c.index }

// Snapshots delivers a deep-copied session snapshot on every observed
// change. Consumers diff against what they last saw.
func (c *Client) Snapshots() <-chan game.Session { return c.snapshots }

// PeerDrawings delivers the counterpart's drawing while this player is
// guessing. A round change delivers an empty drawing before any fetch from
// the new round, so a stale-round drawing is never shown.
func (c *Client) PeerDrawings() <-chan stroke.Drawing { return c.peer }

// Run follows the session until ctx ends. It drives Snapshots,
// PeerDrawings, the round-change canvas resets, and the guesser-side
// poller. Call it once, in its own goroutine or not as the caller prefers.
func (c *Client) Run(ctx context.Context) error {
	watch, err := c.store.Watch(ctx, c.code)
	if err != nil {
		return err
	}
	defer c.stopPolling()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sess, ok := <-watch:
			if !ok {
				return nil
			}
			c.apply(ctx, sess)
		}
	}
}

func (c *Client) apply(ctx context.Context, sess game.Session) {
	c.mu.Lock()
	roundChanged := sess.Round != c.sess.Round
	c.sess = sess
	if roundChanged {
		c.drawing = nil
	}
	role, _ := sess.Role(c.name)
	target, hasTarget := sess.Target(c.name)
	c.mu.Unlock()

	if roundChanged {
		// The cleared canvas is itself state the peer must see.
		if role == game.Drawer {
			if err := c.pub.Clear(ctx); err != nil {
				zap.L().Warn("canvas reset publish failed",
					zap.String("code", c.code), zap.Error(err))
			}
		}
		select {
		case c.peer <- stroke.Drawing{}:
		default:
		}
	}

	shouldPoll := sess.Started() && sess.Ready() && role == game.Guesser && hasTarget
	c.retarget(ctx, shouldPoll, target)

	var snap game.Session
	if err := copier.CopyWithOption(&snap, &sess, copier.Option{DeepCopy: true}); err != nil {
		zap.L().Warn("snapshot copy failed", zap.Error(err))
		return
	}
	select {
	case c.snapshots <- snap:
	default:
	}
}

// retarget starts, stops, or re-aims the guesser-side poller to match the
// current round. Roster changes invalidate the old target, so a poller
// aimed at anyone else is torn down first.
func (c *Client) retarget(ctx context.Context, shouldPoll bool, target string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !shouldPoll || target != c.pollTarget {
		if c.pollCancel != nil {
			c.pollCancel()
			c.pollCancel = nil
			c.pollTarget = ""
		}
	}
	if !shouldPoll || c.pollCancel != nil {
		return
	}

	pollCtx, cancel := context.WithCancel(ctx)
	c.pollCancel = cancel
	c.pollTarget = target

	poller := relay.NewPoller(c.store, c.code, target).WithInterval(c.PollEvery)
	go poller.Run(pollCtx, func(d stroke.Drawing) {
		select {
		case c.peer <- d:
		default:
		}
	})
}

func (c *Client) stopPolling() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pollCancel != nil {
		c.pollCancel()
		c.pollCancel = nil
		c.pollTarget = ""
	}
}

// Session returns a deep copy of the latest observed snapshot.
func (c *Client) Session() game.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out game.Session
	if err := copier.CopyWithOption(&out, &c.sess, copier.Option{DeepCopy: true}); err != nil {
		return c.sess
	}
	return out
}

// Role returns this player's role in the current round. Only meaningful
// once the session is ready and started.
func (c *Client) Role() game.Role {
	c.mu.Lock()
	defer c.mu.Unlock()
	return game.RoleFor(c.index, c.sess.Round)
}

// Target returns the counterpart's name, or "" while the roster is short.
func (c *Client) Target() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, _ := c.sess.Target(c.name)
	return t
}

// Word returns the current secret. The UI shows it to the drawer only.
func (c *Client) Word() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess.Word
}

// Start moves the session out of the lobby. Safe to call twice.
func (c *Client) Start(ctx context.Context) error {
	return c.svc.Start(ctx, c.code)
}

// SubmitGuess checks a guess and advances the round on a hit.
func (c *Client) SubmitGuess(ctx context.Context, guess string) (bool, error) {
	return c.svc.Guess(ctx, c.code, c.name, guess)
}

// SetColor picks the pen color for strokes started from now on.
func (c *Client) SetColor(col stroke.Color) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.color = col
}

// StartStroke begins a new stroke at a point, as a pointer-down does.
// Publish failures are non-fatal: drawing goes on and the peer catches up
// on the next successful publish.
func (c *Client) StartStroke(ctx context.Context, p stroke.Point) {
	c.mu.Lock()
	c.drawing = c.drawing.Append(p, c.color)
	d := c.drawing.Clone()
	c.mu.Unlock()
	c.publish(ctx, d)
}

// ContinueStroke extends the current stroke, as a drag does.
func (c *Client) ContinueStroke(ctx context.Context, p stroke.Point) {
	c.mu.Lock()
	c.drawing = c.drawing.Extend(p)
	d := c.drawing.Clone()
	c.mu.Unlock()
	c.publish(ctx, d)
}

// ClearCanvas wipes the drawing locally and for the peer.
func (c *Client) ClearCanvas(ctx context.Context) {
	c.mu.Lock()
	c.drawing = nil
	c.mu.Unlock()
	c.publish(ctx, stroke.Drawing{})
}

// Drawing returns a copy of the local canvas contents.
func (c *Client) Drawing() stroke.Drawing {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.drawing.Clone()
}

func (c *Client) publish(ctx context.Context, d stroke.Drawing) {
	if err := c.pub.Publish(ctx, d); err != nil {
		zap.L().Warn("stroke publish failed",
			zap.String("code", c.code), zap.String("player", c.name), zap.Error(err))
	}
}

// Leave releases this player's presence lease, which removes their roster
// and stroke entries. Idempotent.
func (c *Client) Leave() {
	if c.release != nil {
		c.release()
	}
}
