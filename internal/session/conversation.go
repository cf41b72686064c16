package session

import "strings"

// DefaultContextTurns caps how much history is replayed to the upstream
// model. History beyond the cap is dropped oldest-first; there is no
// semantic summarization.
const DefaultContextTurns = 50

// ContextBuilder trims a session's turn history down to a bounded window.
type ContextBuilder struct {
	maxTurns int
}

func NewContextBuilder(maxTurns int) *ContextBuilder {
	if maxTurns <= 0 {
		maxTurns = DefaultContextTurns
	}
	return &ContextBuilder{maxTurns: maxTurns}
}

// Build returns the most recent maxTurns turns in original order. It is a
// pure function of the session: no side effects, no failure modes.
func (b *ContextBuilder) Build(sess Session) []Turn {
	turns := sess.Turns
	if len(turns) > b.maxTurns {
		turns = turns[len(turns)-b.maxTurns:]
	}
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out
}

// Prompt renders the bounded context plus the new instruction into a single
// upstream prompt. Image turns become short references so the model keeps
// continuity without replaying artifact bytes.
func (b *ContextBuilder) Prompt(sess Session, instruction string) string {
	turns := b.Build(sess)
	if len(turns) == 0 {
		return instruction
	}

	var sb strings.Builder
	sb.WriteString("Continue this image conversation.\n")
	if sess.Description != "" {
		sb.WriteString("Goal: ")
		sb.WriteString(sess.Description)
		sb.WriteString("\n")
	}
	sb.WriteString("History:\n")
	for _, t := range turns {
		switch t.Role {
		case RoleImage:
			sb.WriteString("- [generated image ")
			sb.WriteString(t.ImageID)
			if t.Text != "" {
				sb.WriteString(": ")
				sb.WriteString(t.Text)
			}
			sb.WriteString("]\n")
		default:
			sb.WriteString("- ")
			sb.WriteString(t.Text)
			sb.WriteString("\n")
		}
	}
	sb.WriteString("Next instruction: ")
	sb.WriteString(instruction)
	return sb.String()
}
