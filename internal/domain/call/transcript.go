package call

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// ChatMessage is one transcript entry. Immutable once created.
type ChatMessage struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	IsVoice   bool      `json:"is_voice"`
}

// Transcript is an append-only ordered sequence of chat messages.
// Insertion order is display order: messages are appended in the order
// their triggering events resolve.
type Transcript struct {
	mu       sync.Mutex
	messages []ChatMessage
	onAppend func(ChatMessage)
}

func NewTranscript(onAppend func(ChatMessage)) *Transcript {
	return &Transcript{onAppend: onAppend}
}

func (t *Transcript) Append(role, content string, isVoice bool) ChatMessage {
	msg := ChatMessage{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
		IsVoice:   isVoice,
	}
	t.mu.Lock()
	t.messages = append(t.messages, msg)
	cb := t.onAppend
	t.mu.Unlock()
	if cb != nil {
		cb(msg)
	}
	return msg
}

// Messages returns a snapshot of the transcript.
func (t *Transcript) Messages() []ChatMessage {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]ChatMessage, len(t.messages))
	copy(out, t.messages)
	return out
}

func (t *Transcript) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.messages)
}
