// Package game implements the core rules of the drawing relay:
// who draws, who guesses, and for whom, in any given round.
package game

import (
	"crypto/rand"
	"strings"
)

const (
	// MaxPlayers is the roster cap. The turn rotation below generalizes
	// to more players, but the session layer never admits a third.
	MaxPlayers = 2

	CodeLength = 6
)

// Role is what a player does in a given round.
type Role int

const (
	Guesser Role = iota
	Drawer
)

func (r Role) String() string {
	if r == Drawer {
		return "drawer"
	}
	return "guesser"
}

// Session is a snapshot of one game's shared state. It is a plain value;
// stores hand out copies and never share the Players map across snapshots.
type Session struct {
	Code    string
	Round   int
	Word    string
	Players map[string]int
	// Rev counts roster mutations. Conditional roster writes are keyed on
	// the revision observed at read time.
	Rev int64
}

// NewSession builds a fresh session for a host: round 0, the host at
// index 0, and a word already drawn so the first round can start on a
// pure round-number bump.
func NewSession(code, host string) *Session {
	return &Session{
		Code:    code,
		Round:   0,
		Word:    RandomWord(),
		Players: map[string]int{host: 0},
	}
}

// RoleFor returns the role of the player at the given join index for a round.
// Even (index+round) draws, odd guesses, so two players strictly alternate.
func RoleFor(index, round int) Role {
	if (index+round)%2 == 0 {
		return Drawer
	}
	return Guesser
}

// TargetIndex returns the join index of the counterpart the player at index
// should draw for or guess from: the next index, wrapping back to 0.
func TargetIndex(index, count int) int {
	if index < count-1 {
		return index + 1
	}
	return 0
}

// Index returns the join index for a player name.
func (s *Session) Index(name string) (int, bool) {
	i, ok := s.Players[name]
	return i, ok
}

// NameAt returns the player name holding a join index.
func (s *Session) NameAt(index int) (string, bool) {
	for name, i := range s.Players {
		if i == index {
			return name, true
		}
	}
	return "", false
}

// Ready reports whether the roster is complete. Role and Target are not
// meaningful for gameplay until this returns true.
func (s *Session) Ready() bool {
	return len(s.Players) == MaxPlayers
}

// Started reports whether the game has left the lobby.
func (s *Session) Started() bool {
	return s.Round >= 1
}

// Role returns the named player's role in the current round.
func (s *Session) Role(name string) (Role, bool) {
	i, ok := s.Players[name]
	if !ok {
		return Guesser, false
	}
	return RoleFor(i, s.Round), true
}

// Target returns the name of the counterpart the named player observes:
// the peer they draw for when drawing, or whose strokes they watch when
// guessing.
func (s *Session) Target(name string) (string, bool) {
	i, ok := s.Players[name]
	if !ok || len(s.Players) < 2 {
		return "", false
	}
	return s.NameAt(TargetIndex(i, len(s.Players)))
}

// FreeIndex returns the lowest join index not currently held. In the normal
// append case this equals len(Players); after a departure it refills the
// hole so indices stay a permutation of 0..count-1.
func (s *Session) FreeIndex() int {
	taken := make(map[int]bool, len(s.Players))
	for _, i := range s.Players {
		taken[i] = true
	}
	for i := 0; ; i++ {
		if !taken[i] {
			return i
		}
	}
}

// Matches reports whether a guess hits the current word. Comparison is
// lowercase equality, nothing fancier: no trimming, no distance metric.
func (s *Session) Matches(guess string) bool {
	return strings.ToLower(guess) == strings.ToLower(s.Word)
}

const codeLetters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NewCode returns a random session code: CodeLength uppercase alphanumerics.
func NewCode() (string, error) {
	data := make([]byte, CodeLength)
	if _, err := rand.Read(data); err != nil {
		return "", err
	}
	for i, b := range data {
		data[i] = codeLetters[b%byte(len(codeLetters))]
	}
	return string(data), nil
}
