// Package relay moves stroke data between the drawer and the guesser
// through the session store. The drawer publishes its whole drawing on
// every edit; the guesser polls the drawer's document on a fixed interval.
// There is no merging anywhere: the latest published drawing is the
// drawing.
package relay

import (
	"context"
	"time"

	"go.uber.org/zap"

	"sketchrelay/store"
	"sketchrelay/stroke"
)

// DefaultInterval is the guesser's poll cadence. Once a second trades a
// little latency for not hammering the store on every pointer move.
const DefaultInterval = time.Second

// Publisher is the drawer's side of the channel.
type Publisher struct {
	store store.SessionStore
	code  string
	name  string
}

func NewPublisher(st store.SessionStore, code, name string) *Publisher {
	return &Publisher{store: st, code: code, name: name}
}

// Publish overwrites the player's stored drawing. Called on every local
// edit, on clear, and with an empty drawing when a round change resets the
// canvas.
func (p *Publisher) Publish(ctx context.Context, d stroke.Drawing) error {
	doc, err := stroke.Encode(d)
	if err != nil {
		return err
	}
	return p.store.PutStrokes(ctx, p.code, p.name, doc)
}

// Clear publishes an empty drawing so the peer's canvas empties too.
func (p *Publisher) Clear(ctx context.Context) error {
	return p.Publish(ctx, stroke.Drawing{})
}

// Poller is the guesser's side of the channel, bound to one target player.
type Poller struct {
	store    store.SessionStore
	code     string
	target   string
	interval time.Duration
}

func NewPoller(st store.SessionStore, code, target string) *Poller {
	return &Poller{store: st, code: code, target: target, interval: DefaultInterval}
}

// WithInterval overrides the poll cadence. Mostly for tests.
func (p *Poller) WithInterval(d time.Duration) *Poller {
	p.interval = d
	return p
}

// Fetch reads the target's current drawing once. A target that has not
// published yet reads as an empty drawing.
func (p *Poller) Fetch(ctx context.Context) (stroke.Drawing, error) {
	doc, err := p.store.GetStrokes(ctx, p.code, p.target)
	if err != nil {
		return nil, err
	}
	return stroke.Decode(doc), nil
}

// Run fetches on the poll interval and hands each drawing to fn, until ctx
// ends. Fetch failures are logged and skipped; the peer just keeps seeing
// the previous drawing until the store answers again.
func (p *Poller) Run(ctx context.Context, fn func(stroke.Drawing)) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		d, err := p.Fetch(ctx)
		if err != nil {
			zap.L().Warn("stroke fetch failed",
				zap.String("code", p.code), zap.String("target", p.target), zap.Error(err))
			continue
		}
		fn(d)
	}
}
