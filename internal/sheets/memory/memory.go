// Package memory is an in-process audit sheet, used when no spreadsheet is
// configured and in tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"spendly/internal/amqp"
	"spendly/internal/sheets"
)

var _ sheets.AuditAppender = (*Sheet)(nil)

type Sheet struct {
	mu   sync.Mutex
	rows [][]any
	err  error
}

func New() *Sheet {
	return &Sheet{rows: [][]any{sheets.Header}}
}

// AppendEvent stores the event row and returns a synthetic A1 reference.
func (s *Sheet) AppendEvent(_ context.Context, ev *amqp.ExpenseEvent) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.rows = append(s.rows, sheets.EventRow(ev))
	n := len(s.rows)
	return fmt.Sprintf("mem!A%d:H%d", n, n), nil
}

// FailWith makes subsequent appends return err; nil restores success.
func (s *Sheet) FailWith(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// Rows returns a copy of the sheet, header included.
func (s *Sheet) Rows() [][]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]any, len(s.rows))
	for i, r := range s.rows {
		out[i] = append([]any(nil), r...)
	}
	return out
}
