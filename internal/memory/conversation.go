package memory

import (
	"context"
	"sync"
	"time"

	"github.com/codescope/codescope/internal/llm"
)

// Message is one stored conversation turn
type Message struct {
	Role      string    `db:"role" json:"role"`
	Content   string    `db:"content" json:"content"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Store persists conversation history per session. Implementations cap
// history at a fixed number of turns; Recent always returns oldest first.
type Store interface {
	Append(ctx context.Context, sessionID string, msg Message) error
	Recent(ctx context.Context, sessionID string, n int) ([]Message, error)
	Close() error
}

// DefaultMaxHistory caps how many turns a session keeps
const DefaultMaxHistory = 20

// Conversation is the in-process Store. Appends are serialized per store
// so interleaved turns from concurrent sessions never corrupt a window.
type Conversation struct {
	mu         sync.Mutex
	sessions   map[string][]Message
	maxHistory int
}

// NewConversation creates an in-memory conversation store
func NewConversation(maxHistory int) *Conversation {
	if maxHistory <= 0 {
		maxHistory = DefaultMaxHistory
	}
	return &Conversation{
		sessions:   make(map[string][]Message),
		maxHistory: maxHistory,
	}
}

func (c *Conversation) Append(ctx context.Context, sessionID string, msg Message) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	window := append(c.sessions[sessionID], msg)
	if len(window) > c.maxHistory {
		window = window[len(window)-c.maxHistory:]
	}
	c.sessions[sessionID] = window
	return nil
}

func (c *Conversation) Recent(ctx context.Context, sessionID string, n int) ([]Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	window := c.sessions[sessionID]
	if n > 0 && len(window) > n {
		window = window[len(window)-n:]
	}

	out := make([]Message, len(window))
	copy(out, window)
	return out, nil
}

func (c *Conversation) Close() error { return nil }

// ToLLMMessages converts stored turns into completion history
func ToLLMMessages(msgs []Message) []llm.Message {
	out := make([]llm.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, llm.Message{Role: m.Role, Content: m.Content})
	}
	return out
}
