package scriptcache

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Amund211/scriptcache/internal/adapters/document"
	"github.com/Amund211/scriptcache/internal/future"
)

var (
	// Returned when a load settles for a name missing from the registry.
	// Seeing this means the registry was written after the load started.
	ErrScriptDoesNotExist  = errors.New("script does not exist")
	ErrScriptNotRegistered = errors.New("script not registered")
)

// LoadError is the failure payload of a rejected script
type LoadError struct {
	Name string
	URL  string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load script %s (%s): %v", e.Name, e.URL, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Record is the load state of one script name. It is created on the first
// registration of the name and settles once, to loaded or rejected.
type Record struct {
	name    string
	url     string
	element *document.Element
	signal  *future.Future[*Record]

	mu          sync.Mutex
	hasLoaded   bool
	wasRejected bool
	err         error
	startedAt   time.Time
	settledAt   time.Time
}

func (r *Record) Name() string {
	return r.name
}

// URL is the url the record was created for. Later registrations of the same
// name with another url do not change it.
func (r *Record) URL() string {
	return r.url
}

func (r *Record) Element() *document.Element {
	return r.element
}

// Signal settles with the record when it loads, or with Err when it fails
func (r *Record) Signal() *future.Future[*Record] {
	return r.signal
}

func (r *Record) HasLoaded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.hasLoaded
}

func (r *Record) WasRejected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.wasRejected
}

// Err is nil unless WasRejected
func (r *Record) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.err
}

func (r *Record) StartedAt() time.Time {
	return r.startedAt
}

// SettledAt is the zero time while the load is pending
func (r *Record) SettledAt() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.settledAt
}

func (r *Record) markLoaded(at time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.hasLoaded || r.wasRejected {
		return false
	}
	r.hasLoaded = true
	r.settledAt = at
	return true
}

// err must be readable by the time wasRejected is
func (r *Record) markRejected(err error, at time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.hasLoaded || r.wasRejected {
		return false
	}
	r.err = err
	r.wasRejected = true
	r.settledAt = at
	return true
}
