// Package memory keeps per-thread conversation history for the agent.
package memory

import (
	"context"
	"sync"

	openai "github.com/sashabaranov/go-openai"
)

// Store loads and saves the message history of a conversation thread.
// Save replaces the whole history of the thread.
type Store interface {
	Load(ctx context.Context, threadID string) ([]openai.ChatCompletionMessage, error)
	Save(ctx context.Context, threadID string, messages []openai.ChatCompletionMessage) error
	Close() error
}

// InMemory holds histories for the life of the process.
type InMemory struct {
	mu      sync.Mutex
	threads map[string][]openai.ChatCompletionMessage
}

func NewInMemory() *InMemory {
	return &InMemory{threads: make(map[string][]openai.ChatCompletionMessage)}
}

func (m *InMemory) Load(_ context.Context, threadID string) ([]openai.ChatCompletionMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneMessages(m.threads[threadID]), nil
}

func (m *InMemory) Save(_ context.Context, threadID string, messages []openai.ChatCompletionMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.threads[threadID] = cloneMessages(messages)
	return nil
}

func (m *InMemory) Close() error { return nil }

func cloneMessages(in []openai.ChatCompletionMessage) []openai.ChatCompletionMessage {
	if len(in) == 0 {
		return nil
	}
	out := make([]openai.ChatCompletionMessage, len(in))
	copy(out, in)
	return out
}
