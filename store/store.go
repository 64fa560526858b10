// Package store declares how session state is shared between players and
// implements it against the backends the game can run on. Clients never
// talk to each other directly; every mutation and every observation goes
// through a SessionStore.
package store

import (
	"context"
	"errors"

	"sketchrelay/game"
)

var (
	// ErrNotFound means no session exists under the requested code.
	ErrNotFound = errors.New("session not found")
	// ErrExists means a session already exists under the code on create.
	ErrExists = errors.New("session code already in use")
	// ErrConflict means a conditional write lost a race: the roster
	// revision or round the caller observed is no longer current. The
	// caller decides whether to re-read and retry.
	ErrConflict = errors.New("conditional write conflict")
)

// SessionStore is the shared document store contract. Implementations must
// serialize conditional writes per session; everything else is best-effort.
type SessionStore interface {
	// Create writes a brand-new session, failing with ErrExists if the
	// code is taken.
	Create(ctx context.Context, s *game.Session) error

	// Load returns a snapshot of the session, or ErrNotFound.
	Load(ctx context.Context, code string) (*game.Session, error)

	// AddPlayer writes name at the given join index, conditional on the
	// roster revision the caller observed. ErrConflict when any roster
	// write interleaved since that read.
	AddPlayer(ctx context.Context, code, name string, index int, rev int64) error

	// RemovePlayer removes the player's roster entry and stroke document.
	// Idempotent; removing an absent player is not an error.
	RemovePlayer(ctx context.Context, code, name string) error

	// AdvanceRound bumps the round from the given value to the next one
	// and installs the new word, conditional on the round still being
	// `from`. ErrConflict when another client advanced first, which makes
	// duplicate triggers no-ops rather than double advances.
	AdvanceRound(ctx context.Context, code string, from int, word string) error

	// PutStrokes overwrites the player's stroke document. Last write wins.
	PutStrokes(ctx context.Context, code, name string, doc []byte) error

	// GetStrokes returns the player's current stroke document, or an
	// empty document when none has been published yet.
	GetStrokes(ctx context.Context, code, name string) ([]byte, error)

	// Watch delivers session snapshots: one for the current state, then
	// one per observed change, until ctx ends. Slow consumers may miss
	// intermediate snapshots but always eventually see the latest.
	Watch(ctx context.Context, code string) (<-chan game.Session, error)

	// Announce registers the player's presence so that the store removes
	// their roster and stroke entries when they go away. Cleanup runs when
	// the returned release func is called, when ctx ends, or when the
	// lease expires server-side; it is eventual, never synchronous.
	Announce(ctx context.Context, code, name string) (func(), error)
}
