package domain

import "time"

type LoadStatus string

const (
	LoadStatusLoaded   LoadStatus = "loaded"
	LoadStatusRejected LoadStatus = "rejected"
)

// LoadOutcome describes how a single script load settled
type LoadOutcome struct {
	InstanceID string
	Name       string
	URL        string
	Status     LoadStatus
	// Empty unless Status is LoadStatusRejected
	Error     string
	StartedAt time.Time
	SettledAt time.Time
}

func (o LoadOutcome) Duration() time.Duration {
	return o.SettledAt.Sub(o.StartedAt)
}
