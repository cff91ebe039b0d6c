package document

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Document is the host a script cache inserts script elements into
type Document interface {
	// HasScript reports whether an element for src is already present
	HasScript(src string) bool
	CreateScript() *Element
	// AppendChild inserts el, which begins loading it. Load and error events
	// are dispatched on el once the load settles.
	AppendChild(ctx context.Context, el *Element)
}

type EventType string

const (
	EventLoad  EventType = "load"
	EventError EventType = "error"
)

type Event struct {
	Type   EventType
	Target *Element
	// Set for EventError
	Err error
}

const TypeJavaScript = "text/javascript"

// Element is a script handle. Src, Type and Async must be set before the
// element is appended to a document.
type Element struct {
	ID    uuid.UUID
	Src   string
	Type  string
	Async bool

	mu        sync.Mutex
	listeners map[EventType][]func(Event)
}

func NewElement() *Element {
	return &Element{
		ID:        uuid.New(),
		Type:      TypeJavaScript,
		Async:     true,
		listeners: make(map[EventType][]func(Event)),
	}
}

func (e *Element) AddEventListener(eventType EventType, listener func(Event)) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.listeners[eventType] = append(e.listeners[eventType], listener)
}

// Dispatch calls the listeners for event.Type in the order they were added
func (e *Element) Dispatch(event Event) {
	event.Target = e

	e.mu.Lock()
	listeners := append([]func(Event){}, e.listeners[event.Type]...)
	e.mu.Unlock()

	for _, listener := range listeners {
		listener(event)
	}
}
