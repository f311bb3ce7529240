package chat

import (
	"slices"
	"sync"

	"github.com/MrWong99/funcall/pkg/provider/llm"
)

// History is an ordered conversation. It is safe for concurrent use, but a
// single History should only be driven by one [Runner] call at a time.
type History struct {
	mu   sync.Mutex
	msgs []llm.Message
}

// NewHistory returns a History, seeded with a system message when system is
// not empty.
func NewHistory(system string) *History {
	h := &History{}
	if system != "" {
		h.AddSystem(system)
	}
	return h
}

// AddSystem appends a system message.
func (h *History) AddSystem(text string) { h.Add(llm.Message{Role: llm.RoleSystem, Content: text}) }

// AddUser appends a user message.
func (h *History) AddUser(text string) { h.Add(llm.Message{Role: llm.RoleUser, Content: text}) }

// AddAssistant appends a plain assistant message.
func (h *History) AddAssistant(text string) {
	h.Add(llm.Message{Role: llm.RoleAssistant, Content: text})
}

// Add appends msg.
func (h *History) Add(msg llm.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	msg.ToolCalls = slices.Clone(msg.ToolCalls)
	h.msgs = append(h.msgs, msg)
}

// Messages returns a copy of the conversation.
func (h *History) Messages() []llm.Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.msgs)
}

// Last returns the most recent message.
func (h *History) Last() (llm.Message, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.msgs) == 0 {
		return llm.Message{}, false
	}
	return h.msgs[len(h.msgs)-1], true
}

// Len returns the number of messages.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.msgs)
}

// truncate drops every message after the first n.
func (h *History) truncate(n int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if n < len(h.msgs) {
		clear(h.msgs[n:])
		h.msgs = h.msgs[:n]
	}
}
