// Package manifest reads script manifests: YAML mappings of script name to
// url, in load order.
//
//	maps: https://cdn.example.com/maps.js
//	charts: https://cdn.example.com/charts.js
package manifest

import (
	"errors"
	"fmt"
	"os"

	"github.com/Amund211/scriptcache/internal/domain"
	"gopkg.in/yaml.v3"
)

var ErrInvalidManifest = errors.New("invalid manifest")

// Load reads and parses the manifest at path
func Load(path string) ([]domain.Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	entries, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}
	return entries, nil
}

// Parse returns the entries of the manifest in document order
func Parse(data []byte) ([]domain.Entry, error) {
	var document yaml.Node
	if err := yaml.Unmarshal(data, &document); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidManifest, err)
	}

	// Empty input
	if document.Kind == 0 {
		return []domain.Entry{}, nil
	}

	if document.Kind != yaml.DocumentNode || len(document.Content) != 1 {
		return nil, fmt.Errorf("%w: expected a single document", ErrInvalidManifest)
	}

	root := document.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: line %d: expected a mapping of name to url", ErrInvalidManifest, root.Line)
	}

	entries := make([]domain.Entry, 0, len(root.Content)/2)
	seen := make(map[string]int, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, value := root.Content[i], root.Content[i+1]

		if key.Kind != yaml.ScalarNode || value.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("%w: line %d: names and urls must be strings", ErrInvalidManifest, key.Line)
		}

		if line, ok := seen[key.Value]; ok {
			return nil, fmt.Errorf("%w: line %d: duplicate name '%s' (first seen on line %d)", ErrInvalidManifest, key.Line, key.Value, line)
		}
		seen[key.Value] = key.Line

		entry := domain.Entry{Name: key.Value, URL: value.Value}
		if err := entry.Validate(); err != nil {
			return nil, fmt.Errorf("%w: line %d: %w", ErrInvalidManifest, key.Line, err)
		}

		entries = append(entries, entry)
	}

	return entries, nil
}
