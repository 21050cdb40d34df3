package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"yesan/internal/core"
)

// Kind says what the worker should do with a message.
type Kind string

const (
	// KindChange reports a local edit; the worker pushes after the
	// debounce period.
	KindChange Kind = "change"
	// KindReset reports a wipe that is pushed right away.
	KindReset Kind = "reset"
	KindPull  Kind = "pull"
	KindPush  Kind = "push"
)

func (k Kind) valid() bool {
	switch k {
	case KindChange, KindReset, KindPull, KindPush:
		return true
	}
	return false
}

// SyncMessage is a lightweight hand-off. It carries no expense data; the
// worker reads the shared database.
type SyncMessage struct {
	Kind      Kind      `json:"kind"`
	Origin    string    `json:"origin"`
	Timestamp time.Time `json:"timestamp"`
}

func NewSyncMessage(kind Kind) *SyncMessage {
	return &SyncMessage{
		Kind:      kind,
		Origin:    core.OriginLocal.String(),
		Timestamp: time.Now(),
	}
}

// MessageForChange maps a change of the expense list to a message.
func MessageForChange(c core.Change) *SyncMessage {
	kind := KindChange
	if c.Reset {
		kind = KindReset
	}
	msg := NewSyncMessage(kind)
	msg.Origin = c.Origin.String()
	return msg
}

// Change is the inverse of MessageForChange.
func (m *SyncMessage) Change() (core.Change, error) {
	origin, err := core.ParseOrigin(m.Origin)
	if err != nil {
		return core.Change{}, err
	}
	return core.Change{Origin: origin, Reset: m.Kind == KindReset}, nil
}

func (m *SyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// SyncMessageFromJSON decodes a message and rejects unknown kinds.
func SyncMessageFromJSON(data []byte) (*SyncMessage, error) {
	var msg SyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if !msg.Kind.valid() {
		return nil, fmt.Errorf("unknown message kind %q", msg.Kind)
	}
	if msg.Origin == "" {
		msg.Origin = core.OriginLocal.String()
	}
	return &msg, nil
}
