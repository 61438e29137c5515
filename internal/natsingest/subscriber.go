// Package natsingest feeds structured-mode CloudEvents from a NATS subject
// into the same pipeline as the HTTP endpoint.
package natsingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/cloudevents/sdk-go/v2/event"
	"github.com/nats-io/nats.go"

	"github.com/drogue-iot/drogue-postgresql-pusher/internal/metrics"
	"github.com/drogue-iot/drogue-postgresql-pusher/internal/models"
)

// EventProcessor persists one event; see extract.Processor.
type EventProcessor interface {
	Process(ctx context.Context, e *event.Event) (int, error)
}

// Publisher sends replies. *nats.Conn satisfies it.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Reply is published to the message's reply subject, when it has one.
type Reply struct {
	Status  string `json:"status"`
	Rows    int    `json:"rows"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

const (
	StatusStored  = "stored"
	StatusSkipped = "skipped"
	StatusError   = "error"
)

type Subscriber struct {
	processor EventProcessor
	publisher Publisher
	recorder  metrics.Recorder
	sub       *nats.Subscription
}

func NewSubscriber(processor EventProcessor, recorder metrics.Recorder) *Subscriber {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &Subscriber{processor: processor, recorder: recorder}
}

// Connect opens a NATS connection that keeps reconnecting in the background.
func Connect(url string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("drogue-postgresql-pusher"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Printf("Disconnected from NATS: %v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("Reconnected to NATS server: %s", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("error connecting to NATS at %s: %w", url, err)
	}
	log.Printf("Connected to NATS server: %s", url)
	return nc, nil
}

// Start subscribes with a queue group so several instances share the load.
func (s *Subscriber) Start(nc *nats.Conn, subject, queue string) error {
	s.publisher = nc
	sub, err := nc.QueueSubscribe(subject, queue, s.handleMsg)
	if err != nil {
		return fmt.Errorf("error subscribing to NATS subject '%s': %w", subject, err)
	}
	s.sub = sub
	log.Printf("Subscribed to NATS subject '%s' with queue group '%s'", subject, queue)
	return nil
}

// Stop drains the subscription, letting in-flight messages finish.
func (s *Subscriber) Stop() error {
	if s.sub == nil {
		return nil
	}
	return s.sub.Drain()
}

func (s *Subscriber) handleMsg(msg *nats.Msg) {
	e := event.New()
	if err := json.Unmarshal(msg.Data, &e); err != nil {
		log.Printf("Error decoding CloudEvent on subject '%s': %v", msg.Subject, err)
		s.reply(msg, Reply{Status: StatusError, Code: models.ErrorCodeInvalidEvent, Message: err.Error()})
		return
	}
	if err := e.Validate(); err != nil {
		log.Printf("Invalid CloudEvent on subject '%s': %v", msg.Subject, err)
		s.reply(msg, Reply{Status: StatusError, Code: models.ErrorCodeInvalidEvent, Message: err.Error()})
		return
	}

	s.recorder.EventReceived("nats")
	rows, err := s.processor.Process(context.Background(), &e)
	switch {
	case err != nil:
		log.Printf("Failed to process event %s from subject '%s': %v", e.ID(), msg.Subject, err)
		s.reply(msg, Reply{Status: StatusError, Code: models.KindOf(err).ErrorCode(), Message: err.Error()})
	case rows == 0:
		s.reply(msg, Reply{Status: StatusSkipped})
	default:
		s.reply(msg, Reply{Status: StatusStored, Rows: rows})
	}
}

func (s *Subscriber) reply(msg *nats.Msg, r Reply) {
	if msg.Reply == "" || s.publisher == nil {
		return
	}
	data, err := json.Marshal(r)
	if err != nil {
		log.Printf("Error encoding reply: %v", err)
		return
	}
	if err := s.publisher.Publish(msg.Reply, data); err != nil {
		log.Printf("Error publishing reply to '%s': %v", msg.Reply, err)
	}
}
