package memory

import (
	"context"
	"fmt"
	"sync"

	"budget/internal/core"
	ports "budget/internal/sheets"
)

// Store keeps exported rows in memory.
type Store struct {
	mu   sync.Mutex
	rows [][]any
}

var _ ports.Exporter = (*Store)(nil)

func New() *Store { return &Store{} }

// Export appends the rows and returns a synthetic reference to the last one.
func (s *Store) Export(_ context.Context, txs []core.Transaction) (string, error) {
	if len(txs) == 0 {
		return "", &core.ValidationError{Field: "transactions", Reason: "nothing to export"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, ports.Rows(txs)...)
	return fmt.Sprintf("mem:%d", len(s.rows)), nil
}

// Rows returns a copy of every exported row.
func (s *Store) Rows() [][]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]any, len(s.rows))
	for i, r := range s.rows {
		out[i] = append([]any(nil), r...)
	}
	return out
}
