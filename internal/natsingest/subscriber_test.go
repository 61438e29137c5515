package natsingest

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/cloudevents/sdk-go/v2/event"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drogue-iot/drogue-postgresql-pusher/internal/models"
)

type mockProcessor struct {
	ProcessFunc func(ctx context.Context, e *event.Event) (int, error)
	received    []*event.Event
}

func (m *mockProcessor) Process(ctx context.Context, e *event.Event) (int, error) {
	m.received = append(m.received, e)
	if m.ProcessFunc != nil {
		return m.ProcessFunc(ctx, e)
	}
	return 1, nil
}

type published struct {
	subject string
	reply   Reply
}

type mockPublisher struct {
	t        *testing.T
	messages []published
}

func (m *mockPublisher) Publish(subject string, data []byte) error {
	var r Reply
	require.NoError(m.t, json.Unmarshal(data, &r))
	m.messages = append(m.messages, published{subject: subject, reply: r})
	return nil
}

const structuredEvent = `{"specversion": "1.0", "id": "e1", "source": "my-app", "type": "t", "subject": "device-1", "datacontenttype": "application/json", "data": {"temp": 1.5}}`

func newTestSubscriber(t *testing.T, p EventProcessor) (*Subscriber, *mockPublisher) {
	pub := &mockPublisher{t: t}
	s := NewSubscriber(p, nil)
	s.publisher = pub
	return s, pub
}

func TestHandleMsgStored(t *testing.T) {
	p := &mockProcessor{}
	s, pub := newTestSubscriber(t, p)

	s.handleMsg(&nats.Msg{Subject: "events", Reply: "_INBOX.1", Data: []byte(structuredEvent)})

	require.Len(t, p.received, 1)
	assert.Equal(t, "e1", p.received[0].ID())
	assert.Equal(t, "device-1", p.received[0].Subject())
	assert.JSONEq(t, `{"temp": 1.5}`, string(p.received[0].Data()))

	require.Len(t, pub.messages, 1)
	assert.Equal(t, "_INBOX.1", pub.messages[0].subject)
	assert.Equal(t, Reply{Status: StatusStored, Rows: 1}, pub.messages[0].reply)
}

func TestHandleMsgSkipped(t *testing.T) {
	p := &mockProcessor{ProcessFunc: func(context.Context, *event.Event) (int, error) { return 0, nil }}
	s, pub := newTestSubscriber(t, p)

	s.handleMsg(&nats.Msg{Subject: "events", Reply: "_INBOX.2", Data: []byte(structuredEvent)})

	require.Len(t, pub.messages, 1)
	assert.Equal(t, StatusSkipped, pub.messages[0].reply.Status)
}

func TestHandleMsgProcessingError(t *testing.T) {
	p := &mockProcessor{ProcessFunc: func(context.Context, *event.Event) (int, error) {
		return 0, models.TargetError(errors.New("connection refused"))
	}}
	s, pub := newTestSubscriber(t, p)

	s.handleMsg(&nats.Msg{Subject: "events", Reply: "_INBOX.3", Data: []byte(structuredEvent)})

	require.Len(t, pub.messages, 1)
	r := pub.messages[0].reply
	assert.Equal(t, StatusError, r.Status)
	assert.Equal(t, models.ErrorCodeTarget, r.Code)
	assert.Equal(t, "Error connecting target: connection refused", r.Message)
}

func TestHandleMsgInvalidEvent(t *testing.T) {
	p := &mockProcessor{}
	s, pub := newTestSubscriber(t, p)

	s.handleMsg(&nats.Msg{Subject: "events", Reply: "_INBOX.4", Data: []byte(`not json`)})
	s.handleMsg(&nats.Msg{Subject: "events", Reply: "_INBOX.5", Data: []byte(`{"specversion": "1.0", "id": "x"}`)})

	assert.Empty(t, p.received)
	require.Len(t, pub.messages, 2)
	for _, m := range pub.messages {
		assert.Equal(t, StatusError, m.reply.Status)
		assert.Equal(t, models.ErrorCodeInvalidEvent, m.reply.Code)
	}
}

func TestHandleMsgWithoutReplySubject(t *testing.T) {
	p := &mockProcessor{}
	s, pub := newTestSubscriber(t, p)

	s.handleMsg(&nats.Msg{Subject: "events", Data: []byte(structuredEvent)})

	assert.Len(t, p.received, 1)
	assert.Empty(t, pub.messages)
}

func TestStopWithoutStart(t *testing.T) {
	s := NewSubscriber(&mockProcessor{}, nil)
	assert.NoError(t, s.Stop())
}
