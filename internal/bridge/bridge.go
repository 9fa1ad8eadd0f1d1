// Package bridge defines what the injected page script reports back: raw
// page events and the cross-context messages carried inside them.
package bridge

import (
	"encoding/json"
	"fmt"
	"strings"
)

// EventType names a page event.
type EventType string

const (
	EventKeydown    EventType = "keydown"
	EventMutation   EventType = "mutation"
	EventPagination EventType = "pagination"
	EventScoreClick EventType = "scoreclick"
	EventMessage    EventType = "message"
)

// Event is one report from the page script.
type Event struct {
	Type EventType `json:"type"`
	// Key is the pressed key for keydown events.
	Key string `json:"key,omitempty"`
	// InTextField is true when focus was in an input, textarea or
	// contenteditable element at keydown time.
	InTextField bool   `json:"inTextField,omitempty"`
	URL         string `json:"url,omitempty"`
	// SlideIn reports the slide-in marker at mutation time.
	SlideIn bool            `json:"slideIn,omitempty"`
	Message json.RawMessage `json:"message,omitempty"`
}

// MessageType names a cross-context message.
type MessageType string

const (
	ScoreRequest       MessageType = "SCORE_REQUEST"
	ScoreOverlayUpdate MessageType = "SCORE_OVERLAY_UPDATE"
	ScoreOverlayClose  MessageType = "SCORE_OVERLAY_CLOSE"
	TestSelector       MessageType = "TEST_SELECTOR"
)

const legacyPrefix = "LIQA_"

// Message is a fire-and-forget request. Only the fields of its type are set.
type Message struct {
	Type MessageType `json:"type"`
	// JobIndex is kept raw: anything other than a number means "first job".
	JobIndex   any      `json:"jobIndex,omitempty"`
	Score      any      `json:"score,omitempty"`
	Strengths  []string `json:"strengths,omitempty"`
	Weaknesses []string `json:"weaknesses,omitempty"`
	Kind       string   `json:"kind,omitempty"`
	Selector   *string  `json:"selector,omitempty"`
}

// Index returns the requested job index, or 0 when it is not a number.
func (m Message) Index() int {
	switch v := m.JobIndex.(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

// DecodeEvent parses one event payload.
func DecodeEvent(payload string) (Event, error) {
	var ev Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return Event{}, fmt.Errorf("decode page event: %w", err)
	}
	if ev.Type == "" {
		return Event{}, fmt.Errorf("decode page event: missing type")
	}
	return ev, nil
}

// DecodeMessage parses a message. Type names with the legacy "LIQA_" prefix
// are accepted.
func DecodeMessage(raw []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return Message{}, fmt.Errorf("decode message: %w", err)
	}
	msg.Type = MessageType(strings.TrimPrefix(string(msg.Type), legacyPrefix))
	switch msg.Type {
	case ScoreRequest, ScoreOverlayUpdate, ScoreOverlayClose, TestSelector:
		return msg, nil
	default:
		return Message{}, fmt.Errorf("unknown message type %q", msg.Type)
	}
}
