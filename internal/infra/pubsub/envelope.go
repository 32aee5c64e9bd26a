package pubsub

import (
	"encoding/base64"
	"encoding/json"
	"time"

	"darshan/internal/domain/service"

	"github.com/pkg/errors"
)

// Message attribute keys carried next to the encoded event.
const (
	AttrEventID   = "event_id"
	AttrType      = "type"
	AttrRecipient = "recipient"
	AttrActor     = "actor"
	AttrRequestID = "request_id"
)

// PushEnvelope is the JSON body a push subscription POSTs to the notifier.
type PushEnvelope struct {
	Message struct {
		Data        string            `json:"data"`
		Attributes  map[string]string `json:"attributes,omitempty"`
		MessageID   string            `json:"messageId"`
		PublishTime string            `json:"publishTime"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// NewPushEnvelope wraps event the way the push subscription delivers it.
func NewPushEnvelope(event *service.NotificationEvent, subscription string) (*PushEnvelope, error) {
	payload, attrs, err := encodeEvent(event)
	if err != nil {
		return nil, err
	}

	env := &PushEnvelope{Subscription: subscription}
	env.Message.Data = base64.StdEncoding.EncodeToString(payload)
	env.Message.Attributes = attrs
	env.Message.MessageID = event.EventID
	env.Message.PublishTime = time.Now().UTC().Format(time.RFC3339)

	return env, nil
}

// Event decodes the wrapped notification event.
func (e *PushEnvelope) Event() (*service.NotificationEvent, error) {
	raw, err := base64.StdEncoding.DecodeString(e.Message.Data)
	if err != nil {
		return nil, errors.Wrap(err, "message data is not base64")
	}

	return DecodeEvent(raw)
}

// DecodeEvent parses a JSON notification event.
func DecodeEvent(raw []byte) (*service.NotificationEvent, error) {
	var event service.NotificationEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		return nil, errors.Wrap(err, "malformed notification event")
	}

	return &event, nil
}

// encodeEvent returns the JSON payload plus the attributes used for routing and tracing.
func encodeEvent(event *service.NotificationEvent) ([]byte, map[string]string, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, nil, errors.WithStack(err)
	}

	attrs := map[string]string{
		AttrEventID:   event.EventID,
		AttrType:      event.Type,
		AttrRecipient: event.Recipient,
	}
	if event.Actor != "" {
		attrs[AttrActor] = event.Actor
	}
	if event.RequestID != "" {
		attrs[AttrRequestID] = event.RequestID
	}

	return payload, attrs, nil
}
