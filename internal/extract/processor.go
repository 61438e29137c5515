// Package extract turns an inbound CloudEvent into a row and persists it.
package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/cloudevents/sdk-go/v2/event"

	"github.com/drogue-iot/drogue-postgresql-pusher/internal/coerce"
	"github.com/drogue-iot/drogue-postgresql-pusher/internal/mapping"
	"github.com/drogue-iot/drogue-postgresql-pusher/internal/metrics"
	"github.com/drogue-iot/drogue-postgresql-pusher/internal/models"
	"github.com/drogue-iot/drogue-postgresql-pusher/internal/writer"
)

// ErrNoFields is returned by Extract when no field selector matched the
// payload. Tags alone never produce a row.
var ErrNoFields = errors.New("no field matched the event payload")

// Processor holds only read-only state and may be used concurrently.
type Processor struct {
	registry      *mapping.Registry
	writer        writer.Writer
	allowFallback bool
	recorder      metrics.Recorder
	now           func() time.Time
}

// NewProcessor creates a processor. A nil recorder records nothing.
func NewProcessor(registry *mapping.Registry, w writer.Writer, allowFallback bool, recorder metrics.Recorder) *Processor {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &Processor{
		registry:      registry,
		writer:        w,
		allowFallback: allowFallback,
		recorder:      recorder,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Extract builds the row for e. Fields are selected from the payload, tags
// from the whole event envelope.
func (p *Processor) Extract(e *event.Event) (*writer.Insertion, error) {
	payload := e.Data()
	if payload == nil {
		return nil, models.PayloadParseError("Unknown event payload")
	}
	doc, err := coerce.DecodeJSON(payload)
	if err != nil {
		return nil, &models.ServiceError{
			Kind:    models.ErrorKindPayloadParse,
			Message: fmt.Sprintf("Failed to parse payload: %v", err),
			Err:     err,
		}
	}

	ts := e.Time()
	if ts.IsZero() {
		ts = p.now()
	}
	ins := p.writer.NewInsertion(ts)

	fields := 0
	for _, spec := range p.registry.Fields() {
		added, err := p.apply(ins, spec, doc)
		if err != nil {
			return nil, err
		}
		if added {
			fields++
		}
	}

	envelope, err := p.envelope(e)
	if err != nil {
		return nil, err
	}
	for _, spec := range p.registry.Tags() {
		if _, err := p.apply(ins, spec, envelope); err != nil {
			return nil, err
		}
	}

	if fields == 0 {
		return nil, ErrNoFields
	}
	return ins, nil
}

func (p *Processor) envelope(e *event.Event) (interface{}, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return nil, &models.ServiceError{
			Kind:    models.ErrorKindPayloadParse,
			Message: fmt.Sprintf("Failed to serialize event: %v", err),
			Err:     err,
		}
	}
	doc, err := coerce.DecodeJSON(raw)
	if err != nil {
		return nil, &models.ServiceError{
			Kind:    models.ErrorKindPayloadParse,
			Message: fmt.Sprintf("Failed to parse serialized event: %v", err),
			Err:     err,
		}
	}
	return doc, nil
}

// apply evaluates one selector and appends its value. It reports whether a
// value was added; zero matches are not an error.
func (p *Processor) apply(ins *writer.Insertion, spec mapping.PathSpec, doc interface{}) (bool, error) {
	matches := p.registry.Evaluate(spec, doc)
	switch len(matches) {
	case 0:
		return false, nil
	case 1:
	default:
		return false, models.SelectorError("Selector found more than one value: %d - path: %s", len(matches), spec.Expression)
	}

	value, err := coerce.Coerce(matches[0], spec.Kind, p.allowFallback)
	if errors.Is(err, coerce.ErrMissingValue) {
		return false, models.PayloadParseError("Missing value - path: %s", spec.Expression)
	}
	var svcErr *models.ServiceError
	if errors.As(err, &svcErr) {
		return false, &models.ServiceError{
			Kind:    svcErr.Kind,
			Message: fmt.Sprintf("%s - path: %s", svcErr.Message, spec.Expression),
			Err:     svcErr.Err,
		}
	}
	if err != nil {
		return false, err
	}

	ins.Add(spec.Name, value)
	return true, nil
}

// Process extracts and writes e. It returns 1 when a row was written and 0
// when nothing matched. Errors are *models.ServiceError.
func (p *Processor) Process(ctx context.Context, e *event.Event) (int, error) {
	ins, err := p.Extract(e)
	if errors.Is(err, ErrNoFields) {
		log.Printf("Event %s: no fields matched, skipping", e.ID())
		p.recorder.EventSkipped()
		return 0, nil
	}
	if err != nil {
		log.Printf("Event %s: extraction failed: %v", e.ID(), err)
		p.recorder.EventFailed(models.KindOf(err))
		return 0, err
	}

	start := time.Now()
	err = p.writer.Write(ctx, ins)
	p.recorder.ObserveWrite(time.Since(start))
	if err != nil {
		log.Printf("Event %s: write failed: %v", e.ID(), err)
		p.recorder.EventFailed(models.KindOf(err))
		return 0, err
	}

	p.recorder.RowWritten()
	return 1, nil
}
