package writer

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/drogue-iot/drogue-postgresql-pusher/internal/models"
)

// PostgresWriter inserts one row per call through a pooled connection.
type PostgresWriter struct {
	db           *sql.DB
	table        string
	timeColumn   string
	writeTimeout time.Duration
}

// NewPostgresWriter creates a writer for table. A zero writeTimeout disables the bound.
func NewPostgresWriter(db *sql.DB, table, timeColumn string, writeTimeout time.Duration) (*PostgresWriter, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle is required")
	}
	if err := ValidateTable(table); err != nil {
		return nil, err
	}
	if timeColumn == "" {
		return nil, fmt.Errorf("timestamp column is required")
	}
	return &PostgresWriter{
		db:           db,
		table:        table,
		timeColumn:   timeColumn,
		writeTimeout: writeTimeout,
	}, nil
}

func (w *PostgresWriter) NewInsertion(ts time.Time) *Insertion {
	return NewInsertion(w.timeColumn, ts)
}

// Write prepares and executes the insert on a single connection. Once started,
// a write is not cancelled with the caller's context; only the write timeout
// bounds it. Every failure is returned as a target error.
func (w *PostgresWriter) Write(ctx context.Context, ins *Insertion) error {
	stmt, err := ins.Statement(w.table)
	if err != nil {
		return models.TargetError(fmt.Errorf("build statement: %w", err))
	}

	ctx = context.WithoutCancel(ctx)
	if w.writeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.writeTimeout)
		defer cancel()
	}

	conn, err := w.db.Conn(ctx)
	if err != nil {
		return models.TargetError(fmt.Errorf("acquire connection: %w", err))
	}
	defer conn.Close()

	prepared, err := conn.PrepareContext(ctx, stmt.PreparedSQL)
	if err != nil {
		return models.TargetError(fmt.Errorf("prepare insert: %w", err))
	}
	defer prepared.Close()

	res, err := prepared.ExecContext(ctx, stmt.Args...)
	if err != nil {
		return models.TargetError(fmt.Errorf("execute insert: %w", err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return models.TargetError(fmt.Errorf("read rows affected: %w", err))
	}
	if affected != 1 {
		return models.TargetError(fmt.Errorf("insert affected %d rows, expected 1", affected))
	}
	return nil
}
