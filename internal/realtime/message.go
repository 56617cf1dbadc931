package realtime

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/nhle/shopnotify/internal/model"
)

// MessageKind identifies a recognized inbound frame.
type MessageKind string

const (
	KindNotification MessageKind = "notification"
	KindStats        MessageKind = "stats"
	KindPong         MessageKind = "pong"
)

// Message is a classified inbound frame. Only the field matching Kind is
// populated.
type Message struct {
	Kind         MessageKind
	Notification model.Notification
	Stats        model.Stats
	Timestamp    time.Time
}

// pingFrame is the only frame the client sends.
var pingFrame = []byte(`{"type":"ping"}`)

type envelope struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp string          `json:"timestamp"`
}

// Classify parses a raw frame into a Message. It reports false for
// anything that is not JSON or does not match a known shape.
func Classify(frame []byte) (Message, bool) {
	var env envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Message{}, false
	}

	switch MessageKind(env.Type) {
	case KindNotification:
		var n model.Notification
		if !decodeObject(env.Data, &n) || n.ID == "" {
			return Message{}, false
		}
		return Message{Kind: KindNotification, Notification: n}, true

	case KindStats:
		var s model.Stats
		if !decodeObject(env.Data, &s) {
			return Message{}, false
		}
		if s.ByType == nil {
			s.ByType = make(map[model.NotificationType]int)
		}
		return Message{Kind: KindStats, Stats: s}, true

	case KindPong:
		// An unparseable timestamp still counts as a liveness reply.
		ts, _ := model.ParseTimestamp(env.Timestamp)
		return Message{Kind: KindPong, Timestamp: ts}, true
	}

	return Message{}, false
}

// decodeObject unmarshals raw into v only if raw is a JSON object.
func decodeObject(raw json.RawMessage, v any) bool {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return false
	}
	return json.Unmarshal(trimmed, v) == nil
}
