// Package metrics exposes pipeline counters to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/drogue-iot/drogue-postgresql-pusher/internal/models"
)

// Recorder receives pipeline outcomes.
type Recorder interface {
	EventReceived(transport string)
	RowWritten()
	EventSkipped()
	EventFailed(kind models.ErrorKind)
	ObserveWrite(d time.Duration)
	SetTargetUp(up bool)
}

// Nop discards everything.
type Nop struct{}

func (Nop) EventReceived(string)         {}
func (Nop) RowWritten()                  {}
func (Nop) EventSkipped()                {}
func (Nop) EventFailed(models.ErrorKind) {}
func (Nop) ObserveWrite(time.Duration)   {}
func (Nop) SetTargetUp(bool)             {}

// Prom is the Prometheus-backed Recorder.
type Prom struct {
	received      *prometheus.CounterVec
	written       prometheus.Counter
	skipped       prometheus.Counter
	failed        *prometheus.CounterVec
	writeDuration prometheus.Histogram
	targetUp      prometheus.Gauge
}

// NewProm creates the collectors and registers them with reg.
func NewProm(reg prometheus.Registerer) (*Prom, error) {
	p := &Prom{
		received: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pusher_events_received_total",
			Help: "Events received, by transport.",
		}, []string{"transport"}),
		written: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pusher_rows_written_total",
			Help: "Rows inserted into the target table.",
		}),
		skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pusher_events_skipped_total",
			Help: "Events where no field matched and nothing was written.",
		}),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pusher_event_errors_total",
			Help: "Events that failed, by error kind.",
		}, []string{"kind"}),
		writeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pusher_write_duration_seconds",
			Help:    "Time spent preparing and executing the insert.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		targetUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pusher_target_up",
			Help: "1 if the last scheduled database check succeeded.",
		}),
	}

	for _, c := range []prometheus.Collector{p.received, p.written, p.skipped, p.failed, p.writeDuration, p.targetUp} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *Prom) EventReceived(transport string) { p.received.WithLabelValues(transport).Inc() }
func (p *Prom) RowWritten()                    { p.written.Inc() }
func (p *Prom) EventSkipped()                  { p.skipped.Inc() }

func (p *Prom) EventFailed(kind models.ErrorKind) {
	p.failed.WithLabelValues(kind.String()).Inc()
}

func (p *Prom) ObserveWrite(d time.Duration) { p.writeDuration.Observe(d.Seconds()) }

func (p *Prom) SetTargetUp(up bool) {
	if up {
		p.targetUp.Set(1)
		return
	}
	p.targetUp.Set(0)
}
