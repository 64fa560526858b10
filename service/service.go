// Package service implements the session operations players trigger:
// creating and joining sessions, leaving them, starting the game, and
// submitting guesses. It owns the roster rules (two-player cap, unique
// names, join-index assignment) and the round transitions; the store
// underneath provides the serialization that keeps racing clients honest.
package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"sketchrelay/game"
	"sketchrelay/store"
)

var (
	// ErrNameTaken means the player name is already on the roster.
	ErrNameTaken = errors.New("player name already in use")
	// ErrSessionFull means the roster already holds two players.
	ErrSessionFull = errors.New("session is full")
	// ErrNoName rejects the empty player name.
	ErrNoName = errors.New("player name required")
)

// joinAttempts bounds how often a join re-reads after losing a conditional
// write. Three racing roster changes back to back means something is wrong.
const joinAttempts = 3

type Service struct {
	store store.SessionStore
}

func New(st store.SessionStore) *Service {
	return &Service{store: st}
}

// Membership is what a successful create or join hands back: the session
// snapshot as of admission, the player's join index, and the release func
// that tears down the presence lease (call it on leave).
type Membership struct {
	Session *game.Session
	Index   int
	Release func()
}

// Create starts a new session with the given player as host at index 0.
// An empty code means "generate one"; a caller-supplied code that is
// already taken fails with store.ErrExists.
func (s *Service) Create(ctx context.Context, code, host string) (*Membership, error) {
	if host == "" {
		return nil, ErrNoName
	}

	generate := code == ""
	for attempt := 0; ; attempt++ {
		if generate {
			var err error
			code, err = game.NewCode()
			if err != nil {
				return nil, err
			}
		}

		sess := game.NewSession(code, host)
		err := s.store.Create(ctx, sess)
		if err == nil {
			release, err := s.store.Announce(ctx, code, host)
			if err != nil {
				return nil, fmt.Errorf("session created but presence registration failed: %w", err)
			}
			zap.L().Info("session created",
				zap.String("code", code), zap.String("host", host))
			return &Membership{Session: sess, Index: 0, Release: release}, nil
		}
		if generate && errors.Is(err, store.ErrExists) && attempt < joinAttempts {
			continue
		}
		return nil, err
	}
}

// Join admits a player to an existing session, assigning the lowest free
// join index (the roster size, unless a departed slot is being refilled)
// and registering disconnect cleanup. The index write is conditional on the
// roster revision read here, so two players joining at once can never end
// up sharing an index.
func (s *Service) Join(ctx context.Context, code, name string) (*Membership, error) {
	if name == "" {
		return nil, ErrNoName
	}

	for attempt := 0; attempt < joinAttempts; attempt++ {
		sess, err := s.store.Load(ctx, code)
		if err != nil {
			return nil, err
		}
		if _, taken := sess.Players[name]; taken {
			return nil, ErrNameTaken
		}
		if len(sess.Players) >= game.MaxPlayers {
			return nil, ErrSessionFull
		}

		index := sess.FreeIndex()
		err = s.store.AddPlayer(ctx, code, name, index, sess.Rev)
		if errors.Is(err, store.ErrConflict) {
			// Roster moved under us; re-read and reclassify.
			continue
		}
		if err != nil {
			return nil, err
		}

		release, err := s.store.Announce(ctx, code, name)
		if err != nil {
			// The join is reported failed as a unit, so undo the
			// roster write rather than leave a player with no cleanup.
			if rmErr := s.store.RemovePlayer(ctx, code, name); rmErr != nil {
				zap.L().Warn("join rollback failed",
					zap.String("code", code), zap.String("player", name), zap.Error(rmErr))
			}
			return nil, err
		}

		sess.Players[name] = index
		sess.Rev++
		zap.L().Info("player joined",
			zap.String("code", code), zap.String("player", name), zap.Int("index", index))
		return &Membership{Session: sess, Index: index, Release: release}, nil
	}
	return nil, fmt.Errorf("join %s: %w", code, store.ErrConflict)
}

// Leave removes the player from the session. Idempotent; leaving a session
// one is not in, or that no longer exists, is not an error.
func (s *Service) Leave(ctx context.Context, code, name string) error {
	err := s.store.RemovePlayer(ctx, code, name)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	return err
}

// Start moves a session out of the lobby by bumping round 0 to 1. The word
// chosen at creation stays. A session already past the lobby is left alone,
// so concurrent start triggers collapse into one transition.
func (s *Service) Start(ctx context.Context, code string) error {
	sess, err := s.store.Load(ctx, code)
	if err != nil {
		return err
	}
	if sess.Started() {
		return nil
	}

	err = s.store.AdvanceRound(ctx, code, 0, sess.Word)
	if errors.Is(err, store.ErrConflict) {
		// Someone else started it first. Same outcome.
		return nil
	}
	if err != nil {
		return err
	}
	zap.L().Info("game started", zap.String("code", code))
	return nil
}

// Guess checks a guess against the current word and, on a hit, advances the
// round and installs a fresh word. The advance is conditional on the round
// the guess was made in: a duplicate trigger finds the round already moved
// and changes nothing. A miss changes nothing and is not an error.
func (s *Service) Guess(ctx context.Context, code, name, guess string) (bool, error) {
	sess, err := s.store.Load(ctx, code)
	if err != nil {
		return false, err
	}
	if !sess.Matches(guess) {
		return false, nil
	}

	err = s.store.AdvanceRound(ctx, code, sess.Round, game.RandomWord())
	if errors.Is(err, store.ErrConflict) {
		// The round already advanced; the guess was right for the round
		// it was made in, and the duplicate advance stays suppressed.
		return true, nil
	}
	if err != nil {
		return false, err
	}
	zap.L().Info("correct guess",
		zap.String("code", code), zap.String("player", name), zap.Int("round", sess.Round+1))
	return true, nil
}
