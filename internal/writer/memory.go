package writer

import (
	"context"
	"sync"
	"time"

	"github.com/drogue-iot/drogue-postgresql-pusher/internal/models"
)

// MemoryWriter records rendered statements instead of executing them.
type MemoryWriter struct {
	Table      string
	TimeColumn string
	// Err, when set, is returned from every Write as a target error.
	Err error

	mu         sync.Mutex
	statements []*Statement
	insertions []*Insertion
}

func NewMemoryWriter(table, timeColumn string) *MemoryWriter {
	return &MemoryWriter{Table: table, TimeColumn: timeColumn}
}

func (w *MemoryWriter) NewInsertion(ts time.Time) *Insertion {
	return NewInsertion(w.TimeColumn, ts)
}

func (w *MemoryWriter) Write(_ context.Context, ins *Insertion) error {
	if w.Err != nil {
		return models.TargetError(w.Err)
	}
	stmt, err := ins.Statement(w.Table)
	if err != nil {
		return models.TargetError(err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.statements = append(w.statements, stmt)
	w.insertions = append(w.insertions, ins)
	return nil
}

// Statements returns a copy of everything written so far.
func (w *MemoryWriter) Statements() []*Statement {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]*Statement(nil), w.statements...)
}

// Insertions returns a copy of every written row.
func (w *MemoryWriter) Insertions() []*Insertion {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]*Insertion(nil), w.insertions...)
}
