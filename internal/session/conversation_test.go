package session

import (
	"fmt"
	"strings"
	"testing"
)

func sessionWithTurns(n int) Session {
	sess := Session{ID: "s1", Description: "Logo test"}
	for i := 0; i < n; i++ {
		sess.Turns = append(sess.Turns, Turn{
			Seq:  i + 1,
			Role: RoleUser,
			Text: fmt.Sprintf("turn %d", i+1),
		})
	}
	return sess
}

func TestContextBuilder_Build(t *testing.T) {
	tests := []struct {
		name      string
		turnCount int
		wantLen   int
		wantFirst int // Seq of first retained turn
	}{
		{"empty", 0, 0, 0},
		{"below cap", 10, 10, 1},
		{"at cap", 50, 50, 1},
		{"above cap", 51, 50, 2},
		{"well above cap", 120, 50, 71},
	}

	b := NewContextBuilder(DefaultContextTurns)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := b.Build(sessionWithTurns(tt.turnCount))
			if len(got) != tt.wantLen {
				t.Fatalf("Build() len = %d, want %d", len(got), tt.wantLen)
			}
			if tt.wantLen == 0 {
				return
			}
			if got[0].Seq != tt.wantFirst {
				t.Errorf("Build() first seq = %d, want %d", got[0].Seq, tt.wantFirst)
			}
			for i := 1; i < len(got); i++ {
				if got[i].Seq != got[i-1].Seq+1 {
					t.Fatalf("Build() retained turns out of order at %d", i)
				}
			}
		})
	}
}

func TestContextBuilder_BuildDoesNotMutate(t *testing.T) {
	b := NewContextBuilder(5)
	sess := sessionWithTurns(10)

	got := b.Build(sess)
	got[0].Text = "mutated"

	if sess.Turns[5].Text == "mutated" {
		t.Error("Build() returned a slice aliasing session turns")
	}
	if len(sess.Turns) != 10 {
		t.Errorf("Build() changed session turn count to %d", len(sess.Turns))
	}
}

func TestContextBuilder_Prompt(t *testing.T) {
	b := NewContextBuilder(DefaultContextTurns)

	t.Run("no history returns instruction verbatim", func(t *testing.T) {
		got := b.Prompt(Session{}, "blue circle logo")
		if got != "blue circle logo" {
			t.Errorf("Prompt() = %q, want raw instruction", got)
		}
	})

	t.Run("history and image references included", func(t *testing.T) {
		sess := sessionWithTurns(2)
		sess.Turns = append(sess.Turns, Turn{Seq: 3, Role: RoleImage, ImageID: "img-9", Text: "first draft"})

		got := b.Prompt(sess, "make it darker")
		for _, want := range []string{"Logo test", "turn 1", "turn 2", "img-9", "make it darker"} {
			if !strings.Contains(got, want) {
				t.Errorf("Prompt() missing %q in:\n%s", want, got)
			}
		}
	})
}
