package document

import (
	"context"
	"sync"
)

// Memory is a document that never loads anything by itself. Loads are settled
// by calling Load or Fail, which makes it suitable for tests and dry runs.
type Memory struct {
	mu       sync.Mutex
	elements []*Element
	autoLoad bool
}

type MemoryOption func(*Memory)

// WithAutoLoad makes AppendChild dispatch the load event before returning
func WithAutoLoad() MemoryOption {
	return func(m *Memory) {
		m.autoLoad = true
	}
}

func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) HasScript(src string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, el := range m.elements {
		if el.Src == src {
			return true
		}
	}
	return false
}

func (m *Memory) CreateScript() *Element {
	return NewElement()
}

func (m *Memory) AppendChild(ctx context.Context, el *Element) {
	m.mu.Lock()
	m.elements = append(m.elements, el)
	autoLoad := m.autoLoad
	m.mu.Unlock()

	if autoLoad {
		el.Dispatch(Event{Type: EventLoad})
	}
}

// Preload inserts an element for src that nobody listens to, like a script
// tag that was already part of the page
func (m *Memory) Preload(src string) *Element {
	el := NewElement()
	el.Src = src
	m.AppendChild(context.Background(), el)
	return el
}

// Load dispatches a load event on every element for src. Returns the number
// of elements the event was dispatched on.
func (m *Memory) Load(src string) int {
	return m.dispatch(src, Event{Type: EventLoad})
}

// Fail dispatches an error event carrying err on every element for src
func (m *Memory) Fail(src string, err error) int {
	return m.dispatch(src, Event{Type: EventError, Err: err})
}

func (m *Memory) dispatch(src string, event Event) int {
	targets := []*Element{}
	m.mu.Lock()
	for _, el := range m.elements {
		if el.Src == src {
			targets = append(targets, el)
		}
	}
	m.mu.Unlock()

	for _, el := range targets {
		el.Dispatch(event)
	}
	return len(targets)
}

// Appended returns the inserted elements in insertion order
func (m *Memory) Appended() []*Element {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]*Element{}, m.elements...)
}

// Type assertion
var _ Document = (*Memory)(nil)
