// Package memstore holds submission results in memory. It backs the
// single-submission CLI mode and tests.
package memstore

import (
	"context"
	"fmt"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/arbiter-oj/arbiter/api"
)

type MemStore struct {
	results *xsync.MapOf[string, *api.SubmissionResult]
}

func New() *MemStore {
	return &MemStore{results: xsync.NewMapOf[string, *api.SubmissionResult]()}
}

func (s *MemStore) Save(_ context.Context, res *api.SubmissionResult) error {
	s.results.Store(res.SubmissionID, res)
	return nil
}

func (s *MemStore) Load(_ context.Context, submID string) (*api.SubmissionResult, error) {
	res, ok := s.results.Load(submID)
	if !ok {
		return nil, fmt.Errorf("no stored result for %s", submID)
	}
	return res, nil
}

func (s *MemStore) Len() int {
	return s.results.Size()
}
