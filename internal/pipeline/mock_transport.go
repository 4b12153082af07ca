// ABOUTME: In-memory Transport that records replies for tests
// ABOUTME: Shared by the pipeline, identity, credential and assistant test suites

package pipeline

import (
	"context"
	"errors"
	"sync"
)

// ErrFileNotFound is returned by MockTransport.GetFile for unknown ids.
var ErrFileNotFound = errors.New("file not found")

// SentReply is one recorded outbound message.
type SentReply struct {
	ChatID string
	Text   string
	Opts   FormatOptions
}

// MockTransport records replies and serves files from a map.
type MockTransport struct {
	mu      sync.Mutex
	replies []SentReply
	typing  []bool
	Files   map[string][]byte
	// Err is returned from SendReply when set.
	Err error
}

// NewMockTransport returns an empty recorder.
func NewMockTransport() *MockTransport {
	return &MockTransport{Files: make(map[string][]byte)}
}

func (m *MockTransport) SendReply(_ context.Context, chatID, text string, opts FormatOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.replies = append(m.replies, SentReply{ChatID: chatID, Text: text, Opts: opts})
	return nil
}

func (m *MockTransport) SendTyping(_ context.Context, _ string, on bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.typing = append(m.typing, on)
	return nil
}

func (m *MockTransport) GetFile(_ context.Context, fileID string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.Files[fileID]
	if !ok {
		return nil, ErrFileNotFound
	}
	return data, nil
}

// Replies returns a copy of the recorded replies.
func (m *MockTransport) Replies() []SentReply {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentReply, len(m.replies))
	copy(out, m.replies)
	return out
}

// Texts returns the recorded reply bodies.
func (m *MockTransport) Texts() []string {
	replies := m.Replies()
	out := make([]string, len(replies))
	for i, r := range replies {
		out[i] = r.Text
	}
	return out
}

// Last returns the most recent reply text, or "".
func (m *MockTransport) Last() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.replies) == 0 {
		return ""
	}
	return m.replies[len(m.replies)-1].Text
}

// Typing returns the recorded typing toggles.
func (m *MockTransport) Typing() []bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]bool, len(m.typing))
	copy(out, m.typing)
	return out
}

// Reset forgets recorded replies and typing toggles.
func (m *MockTransport) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies = nil
	m.typing = nil
}
