package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
)

// TargetGauge receives the result of every check.
type TargetGauge interface {
	SetTargetUp(up bool)
}

// Monitor pings the pool on a cron schedule and remembers the last result.
type Monitor struct {
	db          *sql.DB
	gauge       TargetGauge
	pingTimeout time.Duration
	cronRunner  *cron.Cron
	ready       atomic.Bool
}

func NewMonitor(db *sql.DB, gauge TargetGauge, pingTimeout time.Duration) *Monitor {
	return &Monitor{
		db:          db,
		gauge:       gauge,
		pingTimeout: pingTimeout,
		cronRunner: cron.New(
			cron.WithSeconds(),
			cron.WithChain(
				cron.SkipIfStillRunning(cron.DefaultLogger),
				cron.Recover(cron.DefaultLogger),
			),
		),
	}
}

// Check pings the database once and records the result.
func (m *Monitor) Check(ctx context.Context) error {
	if m.pingTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.pingTimeout)
		defer cancel()
	}

	err := m.db.PingContext(ctx)
	up := err == nil
	if m.ready.Swap(up) != up {
		if up {
			log.Println("Database is reachable")
		} else {
			log.Printf("Database is unreachable: %v", err)
		}
	}
	if m.gauge != nil {
		m.gauge.SetTargetUp(up)
	}
	if err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

// Ready reports the result of the last check.
func (m *Monitor) Ready() bool {
	return m.ready.Load()
}

// Start schedules the check and runs it once immediately.
// Schedules accept descriptors such as "@every 30s".
func (m *Monitor) Start(schedule string) error {
	entryID, err := m.cronRunner.AddFunc(schedule, func() {
		_ = m.Check(context.Background())
	})
	if err != nil {
		return fmt.Errorf("invalid health check schedule %q: %w", schedule, err)
	}
	log.Printf("Scheduled database health check, EntryID: %d, Schedule: '%s'", entryID, schedule)

	_ = m.Check(context.Background())
	m.cronRunner.Start()
	return nil
}

// Stop waits for a running check to finish, up to the given timeout.
func (m *Monitor) Stop(timeout time.Duration) {
	ctx := m.cronRunner.Stop()
	select {
	case <-ctx.Done():
		log.Println("Health check runner stopped.")
	case <-time.After(timeout):
		log.Println("Health check runner shutdown timed out.")
	}
}
