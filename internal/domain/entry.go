package domain

import (
	"fmt"
	"slices"
)

// Entry names a script and the URL it is loaded from
type Entry struct {
	Name string
	URL  string
}

func (e Entry) Validate() error {
	if e.Name == "" {
		return fmt.Errorf("%w: empty name (url: '%s')", ErrInvalidEntry, e.URL)
	}
	if e.URL == "" {
		return fmt.Errorf("%w: empty url (name: '%s')", ErrInvalidEntry, e.Name)
	}
	return nil
}

// EntriesFromMap converts a name -> url mapping to entries sorted by name.
//
// NOTE: Insertion order decides execution order, so prefer building []Entry
// directly when the order matters.
func EntriesFromMap(scripts map[string]string) []Entry {
	names := make([]string, 0, len(scripts))
	for name := range scripts {
		names = append(names, name)
	}
	slices.Sort(names)

	entries := make([]Entry, 0, len(names))
	for _, name := range names {
		entries = append(entries, Entry{Name: name, URL: scripts[name]})
	}
	return entries
}
