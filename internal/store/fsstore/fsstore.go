// Package fsstore keeps submission results as zstd-compressed JSON files
// on local disk, one file per submission.
package fsstore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/arbiter-oj/arbiter/api"
)

type FsStore struct {
	dir string
}

func New(dir string) (*FsStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create result dir: %w", err)
	}
	return &FsStore{dir: dir}, nil
}

func (s *FsStore) Save(_ context.Context, res *api.SubmissionResult) error {
	body, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	// Write to a temp file first so a crash mid-write never leaves a
	// half-written record behind the final name.
	tmp, err := os.CreateTemp(s.dir, "result-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	enc, err := zstd.NewWriter(tmp)
	if err != nil {
		tmp.Close()
		return fmt.Errorf("failed to init zstd writer: %w", err)
	}
	if _, err := enc.Write(body); err != nil {
		enc.Close()
		tmp.Close()
		return fmt.Errorf("failed to write result: %w", err)
	}
	if err := enc.Close(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to flush zstd stream: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path(res.SubmissionID)); err != nil {
		return fmt.Errorf("failed to move result into place: %w", err)
	}
	return nil
}

func (s *FsStore) Load(_ context.Context, submID string) (*api.SubmissionResult, error) {
	f, err := os.Open(s.path(submID))
	if err != nil {
		return nil, fmt.Errorf("no stored result for %s: %w", submID, err)
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to init zstd reader: %w", err)
	}
	defer dec.Close()

	body, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("failed to read result for %s: %w", submID, err)
	}

	res := &api.SubmissionResult{}
	if err := json.Unmarshal(body, res); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result for %s: %w", submID, err)
	}
	return res, nil
}

func (s *FsStore) path(submID string) string {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '.':
			return r
		}
		return '_'
	}, submID)
	return filepath.Join(s.dir, safe+".json.zst")
}
