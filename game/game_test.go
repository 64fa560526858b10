package game

import (
	"strings"
	"testing"
)

func TestRoleAlternates(t *testing.T) {
	for index := 0; index < MaxPlayers; index++ {
		for round := 0; round < 20; round++ {
			if RoleFor(index, round) == RoleFor(index, round+1) {
				t.Errorf("player %d kept the same role across rounds %d and %d", index, round, round+1)
			}
		}
	}
}

func TestRolesNeverShared(t *testing.T) {
	for round := 0; round < 20; round++ {
		if RoleFor(0, round) == RoleFor(1, round) {
			t.Errorf("both players had role %s in round %d", RoleFor(0, round), round)
		}
	}
}

func TestRoundOneRoles(t *testing.T) {
	// In round 1 the second joiner draws and the host guesses.
	if RoleFor(0, 1) != Guesser {
		t.Errorf("index 0 should guess in round 1")
	}
	if RoleFor(1, 1) != Drawer {
		t.Errorf("index 1 should draw in round 1")
	}
}

func TestMutualTargets(t *testing.T) {
	s := &Session{Players: map[string]int{"Alice": 0, "Bob": 1}}

	for _, name := range []string{"Alice", "Bob"} {
		target, ok := s.Target(name)
		if !ok {
			t.Fatalf("no target for %s", name)
		}
		back, ok := s.Target(target)
		if !ok || back != name {
			t.Errorf("target of %s is %s, whose target is %s", name, target, back)
		}
	}
}

func TestTargetUndefinedBeforeFull(t *testing.T) {
	s := NewSession("ABC123", "Alice")
	if _, ok := s.Target("Alice"); ok {
		t.Errorf("a lone player should have no target")
	}
	if s.Ready() {
		t.Errorf("session with one player should not be ready")
	}
}

func TestFreeIndex(t *testing.T) {
	s := NewSession("ABC123", "Alice")
	if got := s.FreeIndex(); got != 1 {
		t.Errorf("append case: want index 1, got %d", got)
	}

	// Alice leaves, Bob (index 1) stays. The next join refills slot 0.
	s.Players = map[string]int{"Bob": 1}
	if got := s.FreeIndex(); got != 0 {
		t.Errorf("refill case: want index 0, got %d", got)
	}
}

func TestMatches(t *testing.T) {
	s := &Session{Word: "Helicopter"}
	if !s.Matches("helicopter") {
		t.Errorf("guess should match case-insensitively")
	}
	if !s.Matches("HELICOPTER") {
		t.Errorf("guess should match case-insensitively")
	}
	if s.Matches(" helicopter") {
		t.Errorf("no trimming: a padded guess is a miss")
	}
	if s.Matches("helicopters") {
		t.Errorf("near miss should not match")
	}
}

func TestNewCode(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		code, err := NewCode()
		if err != nil {
			t.Fatalf("code generation failed: %s", err)
		}
		if len(code) != CodeLength {
			t.Fatalf("code %q has wrong length", code)
		}
		if strings.ToUpper(code) != code {
			t.Errorf("code %q should be uppercase", code)
		}
		seen[code] = true
	}
	if len(seen) < 2 {
		t.Errorf("50 generated codes were all identical")
	}
}

func TestRandomWord(t *testing.T) {
	for i := 0; i < 20; i++ {
		if RandomWord() == "" {
			t.Fatalf("word bank produced an empty word")
		}
	}
}
