// Package box manages per-submission workspaces. A box is a directory
// holding the source file and any compiled artifacts; it is exclusively
// owned by one pipeline and removed when the pipeline finishes.
package box

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type Box struct {
	path string
}

// New creates the workspace directory for a submission under root.
func New(root, submissionID string) (*Box, error) {
	id := sanitize(submissionID)
	if id == "" {
		return nil, fmt.Errorf("invalid submission id %q", submissionID)
	}
	path := filepath.Join(root, id)
	// A leftover directory from a crashed run must not leak artifacts into
	// this one.
	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("failed to clean workspace: %w", err)
	}
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}
	return &Box{path: path}, nil
}

func (b *Box) Path() string {
	return b.path
}

func (b *Box) AddFile(name string, content []byte) error {
	return os.WriteFile(filepath.Join(b.path, name), content, 0644)
}

func (b *Box) HasFile(name string) bool {
	_, err := os.Stat(filepath.Join(b.path, name))
	return err == nil
}

func (b *Box) GetFile(name string) ([]byte, error) {
	return os.ReadFile(filepath.Join(b.path, name))
}

func (b *Box) Close() error {
	return os.RemoveAll(b.path)
}

// sanitize keeps the id safe to use as a path component.
func sanitize(id string) string {
	var sb strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '-', r == '_':
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
