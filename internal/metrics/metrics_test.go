package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drogue-iot/drogue-postgresql-pusher/internal/models"
)

func TestPromRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	p, err := NewProm(reg)
	require.NoError(t, err)

	p.EventReceived("http")
	p.EventReceived("http")
	p.EventReceived("nats")
	assert.Equal(t, 2.0, testutil.ToFloat64(p.received.WithLabelValues("http")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.received.WithLabelValues("nats")))

	p.RowWritten()
	p.EventSkipped()
	assert.Equal(t, 1.0, testutil.ToFloat64(p.written))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.skipped))

	p.EventFailed(models.ErrorKindSelector)
	p.EventFailed(models.ErrorKindTarget)
	p.EventFailed(models.ErrorKindTarget)
	assert.Equal(t, 1.0, testutil.ToFloat64(p.failed.WithLabelValues("selector")))
	assert.Equal(t, 2.0, testutil.ToFloat64(p.failed.WithLabelValues("target")))

	p.ObserveWrite(5 * time.Millisecond)
	assert.Equal(t, 1, testutil.CollectAndCount(p.writeDuration))

	p.SetTargetUp(true)
	assert.Equal(t, 1.0, testutil.ToFloat64(p.targetUp))
	p.SetTargetUp(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(p.targetUp))
}

func TestNewPromRejectsDoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewProm(reg)
	require.NoError(t, err)

	_, err = NewProm(reg)
	assert.Error(t, err)
}
