package store

import (
	"context"
	"sync"

	"github.com/jinzhu/copier"

	"sketchrelay/game"
)

// Memory is an in-process SessionStore. It backs the tests and same-process
// demo play, and doubles as the reference semantics for the remote backends.
type Memory struct {
	mu       sync.Mutex
	sessions map[string]*memSession
}

type memSession struct {
	sess     game.Session
	strokes  map[string][]byte
	watchers map[int]chan game.Session
	nextID   int
	leases   int
}

func NewMemory() *Memory {
	return &Memory{sessions: make(map[string]*memSession)}
}

// snapshot deep-copies a session so watchers never share the roster map
// with the store's own copy.
func snapshot(s *game.Session) game.Session {
	var out game.Session
	// copier only fails on non-struct inputs, which cannot happen here.
	_ = copier.CopyWithOption(&out, s, copier.Option{DeepCopy: true})
	return out
}

func (m *Memory) Create(ctx context.Context, s *game.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[s.Code]; ok {
		return ErrExists
	}
	m.sessions[s.Code] = &memSession{
		sess:     snapshot(s),
		strokes:  make(map[string][]byte),
		watchers: make(map[int]chan game.Session),
	}
	return nil
}

func (m *Memory) Load(ctx context.Context, code string) (*game.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.sessions[code]
	if !ok {
		return nil, ErrNotFound
	}
	s := snapshot(&e.sess)
	return &s, nil
}

func (m *Memory) AddPlayer(ctx context.Context, code, name string, index int, rev int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.sessions[code]
	if !ok {
		return ErrNotFound
	}
	if e.sess.Rev != rev {
		return ErrConflict
	}
	e.sess.Players[name] = index
	e.sess.Rev++
	e.notify()
	return nil
}

func (m *Memory) RemovePlayer(ctx context.Context, code, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removePlayerLocked(code, name)
	return nil
}

func (m *Memory) removePlayerLocked(code, name string) {
	e, ok := m.sessions[code]
	if !ok {
		return
	}
	if _, present := e.sess.Players[name]; !present {
		return
	}
	delete(e.sess.Players, name)
	delete(e.strokes, name)
	e.sess.Rev++
	e.notify()
}

func (m *Memory) AdvanceRound(ctx context.Context, code string, from int, word string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.sessions[code]
	if !ok {
		return ErrNotFound
	}
	if e.sess.Round != from {
		return ErrConflict
	}
	e.sess.Round = from + 1
	e.sess.Word = word
	e.notify()
	return nil
}

func (m *Memory) PutStrokes(ctx context.Context, code, name string, doc []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.sessions[code]
	if !ok {
		return ErrNotFound
	}
	e.strokes[name] = append([]byte(nil), doc...)
	return nil
}

func (m *Memory) GetStrokes(ctx context.Context, code, name string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.sessions[code]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), e.strokes[name]...), nil
}

func (m *Memory) Watch(ctx context.Context, code string) (<-chan game.Session, error) {
	m.mu.Lock()

	e, ok := m.sessions[code]
	if !ok {
		m.mu.Unlock()
		return nil, ErrNotFound
	}

	ch := make(chan game.Session, 16)
	id := e.nextID
	e.nextID++
	e.watchers[id] = ch
	ch <- snapshot(&e.sess)
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		if e, ok := m.sessions[code]; ok {
			delete(e.watchers, id)
		}
		close(ch)
		m.mu.Unlock()
	}()

	return ch, nil
}

// notify fans the current snapshot out to watchers. Callers hold m.mu.
// A watcher that has fallen 16 snapshots behind misses this one; it will
// catch up on the next change, which always carries the full state.
func (e *memSession) notify() {
	for _, ch := range e.watchers {
		select {
		case ch <- snapshot(&e.sess):
		default:
		}
	}
}

func (m *Memory) Announce(ctx context.Context, code, name string) (func(), error) {
	m.mu.Lock()
	e, ok := m.sessions[code]
	if !ok {
		m.mu.Unlock()
		return nil, ErrNotFound
	}
	e.leases++
	m.mu.Unlock()

	var once sync.Once
	release := func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			m.removePlayerLocked(code, name)
			if e, ok := m.sessions[code]; ok {
				e.leases--
				if e.leases <= 0 && len(e.sess.Players) == 0 {
					delete(m.sessions, code)
				}
			}
		})
	}

	go func() {
		<-ctx.Done()
		release()
	}()

	return release, nil
}
