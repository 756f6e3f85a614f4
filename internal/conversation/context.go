package conversation

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Role identifies the author of a turn or prompt message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Default limits applied when the corresponding config value is zero.
const (
	DefaultMaxRounds = 5

	// summaryContentLimit is the per-turn content truncation applied when
	// old turns are collapsed into the summary turn.
	summaryContentLimit = 100

	summaryPrefix = "Previous conversation summary:\n"
)

// DefaultSystemPrompt is used when no system prompt is configured.
const DefaultSystemPrompt = "You are a helpful AI assistant for English conversation practice. " +
	"Respond naturally and engagingly in English. Keep responses concise " +
	"but meaningful for conversation flow. Focus on helping the user " +
	"practice English speaking skills."

// Turn is one utterance in the conversation log. Turns are immutable once
// appended.
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Message is a prompt-window element: a turn stripped down to what the
// language model backend consumes.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Context is the bounded ordered log of conversation turns. After any
// mutation the log holds at most 2*maxRounds turns; when an append pushes it
// past that bound, the oldest turns are collapsed into a single summary turn
// prepended before the retained recent turns.
//
// The fixed system prompt is not stored in the log; PromptWindow prepends it
// when building the sequence for the model.
//
// A single conversation has a single writer (the pipeline orchestrator), but
// Append and PromptWindow are guarded by a mutex so the type stays correct if
// a per-session deployment ever drives it from more than one goroutine.
type Context struct {
	systemPrompt string
	maxRounds    int

	mu    sync.Mutex
	turns []Turn
	trims uint64
}

// NewContext creates a conversation context. An empty systemPrompt falls back
// to DefaultSystemPrompt; maxRounds < 1 falls back to DefaultMaxRounds.
func NewContext(systemPrompt string, maxRounds int) *Context {
	if strings.TrimSpace(systemPrompt) == "" {
		systemPrompt = DefaultSystemPrompt
	}
	if maxRounds < 1 {
		maxRounds = DefaultMaxRounds
	}
	return &Context{
		systemPrompt: systemPrompt,
		maxRounds:    maxRounds,
	}
}

// Append adds a turn to the log. Content that is empty after trimming
// whitespace is ignored. Appending may trigger trim/summarize when the log
// exceeds 2*maxRounds turns.
func (c *Context) Append(role Role, content string) {
	if strings.TrimSpace(content) == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.turns = append(c.turns, Turn{
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	})

	if len(c.turns) > 2*c.maxRounds {
		c.trimLocked()
	}
}

// trimLocked collapses everything before the last maxRounds turns into one
// synthetic assistant summary turn. The summary is lossy; it bounds prompt
// size rather than preserving old turns verbatim.
func (c *Context) trimLocked() {
	if len(c.turns) <= c.maxRounds {
		return
	}

	recent := c.turns[len(c.turns)-c.maxRounds:]
	old := c.turns[:len(c.turns)-c.maxRounds]
	if len(old) == 0 {
		return
	}

	var b strings.Builder
	b.WriteString(summaryPrefix)
	for _, turn := range old {
		content := turn.Content
		if len(content) > summaryContentLimit {
			content = content[:summaryContentLimit]
		}
		fmt.Fprintf(&b, "%s: %s...\n", turn.Role, content)
	}

	trimmed := make([]Turn, 0, len(recent)+1)
	trimmed = append(trimmed, Turn{
		Role:      RoleAssistant,
		Content:   b.String(),
		Timestamp: time.Now(),
	})
	trimmed = append(trimmed, recent...)
	c.turns = trimmed
	c.trims++
}

// PromptWindow returns the fixed system turn followed by up to 2*maxRounds
// most recent turns, oldest first. It never mutates the log and is safe to
// call repeatedly.
func (c *Context) PromptWindow() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	window := make([]Message, 0, len(c.turns)+1)
	window = append(window, Message{Role: RoleSystem, Content: c.systemPrompt})

	start := 0
	if len(c.turns) > 2*c.maxRounds {
		start = len(c.turns) - 2*c.maxRounds
	}
	for _, turn := range c.turns[start:] {
		window = append(window, Message{Role: turn.Role, Content: turn.Content})
	}
	return window
}

// History returns a read-only copy of the turn log.
func (c *Context) History() []Turn {
	c.mu.Lock()
	defer c.mu.Unlock()

	history := make([]Turn, len(c.turns))
	copy(history, c.turns)
	return history
}

// Len returns the current number of turns in the log.
func (c *Context) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.turns)
}

// Trims returns how many times the log has been summarized.
func (c *Context) Trims() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.trims
}

// Clear empties the log. The system prompt is unaffected since it is not
// stored in the log. Idempotent.
func (c *Context) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.turns = nil
}
