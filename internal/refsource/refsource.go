// Package refsource resolves reference paths like "Likutei Moharan.61.1.3"
// to text paragraphs in a source-text JSON file. The file is a nested
// structure of objects and arrays; path segments are separated by dots,
// object segments select keys, and numeric segments index arrays 1-based,
// matching how the references in the dataset are written.
package refsource

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

var (
	// ErrNotFound means the source file is missing or the path does not
	// resolve to any node.
	ErrNotFound = errors.New("reference not found")
	// ErrNotText means the path resolves to a structural node rather than a
	// text paragraph.
	ErrNotText = errors.New("reference does not point to a text paragraph")
)

// Source reads paragraphs out of a reference JSON file. The file is reloaded
// on every lookup: a sibling tool regenerates it in place and lookups are
// rare enough that caching is not worth the invalidation problem.
type Source struct {
	path string
}

// New creates a Source over the JSON file at path. The file may not exist
// yet; lookups report ErrNotFound until it does.
func New(path string) *Source {
	return &Source{path: path}
}

// Paragraph resolves refPath to a text paragraph. "%2C_" sequences decode to
// ", " so references like "Likutei Moharan%2C_Part_II.23.1.5" resolve even
// when a proxy did not unescape them.
func (s *Source) Paragraph(refPath string) (string, error) {
	data, err := os.ReadFile(s.path) //nolint:gosec // G304: path is derived from configuration
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: source file missing", ErrNotFound)
		}
		return "", fmt.Errorf("failed to read source file %s: %w", s.path, err)
	}
	var root any
	if err := json.Unmarshal(data, &root); err != nil {
		return "", fmt.Errorf("failed to parse source file %s: %w", s.path, err)
	}

	ref := strings.ReplaceAll(refPath, "%2C_", ", ")
	current := root
	for _, part := range strings.Split(ref, ".") {
		switch node := current.(type) {
		case map[string]any:
			current = node[part]
		case []any:
			idx, err := strconv.Atoi(part)
			if err != nil || idx < 1 || idx > len(node) {
				current = nil
			} else {
				current = node[idx-1]
			}
		default:
			current = nil
		}
		if current == nil {
			return "", fmt.Errorf("%w: %s", ErrNotFound, ref)
		}
	}

	text, ok := current.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotText, ref)
	}
	return text, nil
}
