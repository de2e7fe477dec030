package wire

import (
	"encoding/json"
	"fmt"
)

// Envelope is the wire format for every message pushed to a room subscriber.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

const (
	TypeState        = "state"
	TypeSirenPulse   = "sirenPulse"
	TypeNotification = "notification"
	TypePlayJingle   = "playJingle"
	TypeObsScene     = "obsScene"
	TypeShowView     = "showView"
)

// PenaltyEntry mirrors one active penalty inside a Snapshot.
type PenaltyEntry struct {
	ID           int    `json:"id"`
	Team         string `json:"team"`
	PlayerNumber string `json:"player_number"`
	Remaining    int    `json:"remaining"`
}

// Snapshot is the full serialized match state sent to the "game" room after
// every state-changing event, and returned by the public state endpoint.
type Snapshot struct {
	HomeName         string         `json:"homeName"`
	AwayName         string         `json:"awayName"`
	ColorHome        string         `json:"colorHome"`
	ColorAway        string         `json:"colorAway"`
	ScoreHome        int            `json:"scoreHome"`
	ScoreAway        int            `json:"scoreAway"`
	ShotsHome        int            `json:"shotsHome"`
	ShotsAway        int            `json:"shotsAway"`
	Period           string         `json:"period"`
	PeriodIndex      int            `json:"periodIndex"`
	TimerRunning     bool           `json:"timerRunning"`
	TimerRemaining   int            `json:"timerRemaining"`
	InInterval       bool           `json:"inInterval"`
	PeriodDuration   int            `json:"periodDuration"`
	IntervalDuration int            `json:"intervalDuration"`
	TimeoutRemaining int            `json:"timeoutRemaining"`
	SirenOn          bool           `json:"sirenOn"`
	SirenEveryMinute bool           `json:"sirenEveryMinute"`
	OBSVisible       bool           `json:"obsVisible"`
	Penalties        []PenaltyEntry `json:"penalties"`
}

// SirenPulse is the sideband one-shot cue that drives the horn on clients.
type SirenPulse struct {
	At int64 `json:"at"`
}

// Notification is an operational broadcast on the notification rooms.
type Notification struct {
	Kind    string         `json:"notification_type"` // info|success|warning|danger
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

// PlayJingle cues the audio player ahead of a public-skating session.
type PlayJingle struct {
	SessionID int64 `json:"sessionId"`
}

// ObsScene asks the AV console to switch OBS to a named scene.
type ObsScene struct {
	Scene string `json:"scene"`
}

// ShowView switches the public display to a named view.
type ShowView struct {
	View    string `json:"view"`
	Seconds int    `json:"seconds,omitempty"`
}

// Marshal serializes a payload into a JSON Envelope. The type tag must be one
// of the Type* constants; anything else is rejected rather than passed through.
func Marshal(typ string, payload any) ([]byte, error) {
	if !known(typ) {
		return nil, fmt.Errorf("unknown envelope type: %s", typ)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return json.Marshal(Envelope{Type: typ, Payload: raw})
}

// Message is a decoded envelope with a concretely typed payload.
type Message struct {
	Type    string
	Payload any
}

// Decode deserializes a JSON Envelope back into a typed Message.
func Decode(data []byte) (Message, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Message{}, fmt.Errorf("unmarshal envelope: %w", err)
	}

	msg := Message{Type: env.Type}

	switch env.Type {
	case TypeState:
		var s Snapshot
		if err := json.Unmarshal(env.Payload, &s); err != nil {
			return msg, fmt.Errorf("unmarshal state: %w", err)
		}
		msg.Payload = s
	case TypeSirenPulse:
		var p SirenPulse
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return msg, fmt.Errorf("unmarshal sirenPulse: %w", err)
		}
		msg.Payload = p
	case TypeNotification:
		var n Notification
		if err := json.Unmarshal(env.Payload, &n); err != nil {
			return msg, fmt.Errorf("unmarshal notification: %w", err)
		}
		msg.Payload = n
	case TypePlayJingle:
		var j PlayJingle
		if err := json.Unmarshal(env.Payload, &j); err != nil {
			return msg, fmt.Errorf("unmarshal playJingle: %w", err)
		}
		msg.Payload = j
	case TypeObsScene:
		var o ObsScene
		if err := json.Unmarshal(env.Payload, &o); err != nil {
			return msg, fmt.Errorf("unmarshal obsScene: %w", err)
		}
		msg.Payload = o
	case TypeShowView:
		var v ShowView
		if err := json.Unmarshal(env.Payload, &v); err != nil {
			return msg, fmt.Errorf("unmarshal showView: %w", err)
		}
		msg.Payload = v
	default:
		return msg, fmt.Errorf("unknown envelope type: %s", env.Type)
	}

	return msg, nil
}

func known(typ string) bool {
	switch typ {
	case TypeState, TypeSirenPulse, TypeNotification, TypePlayJingle, TypeObsScene, TypeShowView:
		return true
	}
	return false
}
