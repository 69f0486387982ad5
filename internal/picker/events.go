package picker

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/roach88/cloudywindow/internal/ir"
)

// ErrInvalidEvent is returned for envelopes that cannot become an Event.
var ErrInvalidEvent = errors.New("invalid picker event")

// EventType names a picker message.
type EventType string

const (
	EventPicked  EventType = "picked"
	EventAutoZap EventType = "auto-zap"
	EventUndo    EventType = "undo"
	EventReset   EventType = "reset"
	EventCancel  EventType = "cancel"
)

// Location is where the picker was when it emitted.
type Location struct {
	URL  string `json:"url"`
	Host string `json:"host"`
	Path string `json:"path"`
}

// Picked is a manual pick waiting for review.
type Picked struct {
	Location
	Selector string  `json:"selector"`
	Hints    HintSet `json:"hints"`
}

// AutoZap is a pick committed straight to the store.
type AutoZap struct {
	Location
	Action   Action `json:"action"`
	Selector string `json:"selector"`
	CSSText  string `json:"cssText"`
}

// Reset asks for every user rule of Host to be removed.
type Reset struct {
	Host string `json:"host"`
	URL  string `json:"url,omitempty"`
}

// Event is a decoded picker message. Exactly one payload field is set for
// picked, auto-zap and reset; undo and cancel carry only Location.
type Event struct {
	Type     EventType
	Location Location
	Picked   *Picked
	AutoZap  *AutoZap
	Reset    *Reset
}

type envelope struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Decode parses and validates one envelope.
func Decode(data []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	payload := env.Payload
	if len(payload) == 0 || string(payload) == "null" {
		payload = []byte("{}")
	}

	ev := Event{Type: env.Type}
	switch env.Type {
	case EventPicked:
		var p Picked
		if err := json.Unmarshal(payload, &p); err != nil {
			return Event{}, fmt.Errorf("%w: picked: %v", ErrInvalidEvent, err)
		}
		p.Selector = strings.TrimSpace(p.Selector)
		if p.Selector == "" {
			return Event{}, fmt.Errorf("%w: picked: missing selector", ErrInvalidEvent)
		}
		if p.Hints == (HintSet{}) {
			p.Hints = Hints(p.Selector)
		}
		p.Location = fillHost(p.Location)
		ev.Picked, ev.Location = &p, p.Location

	case EventAutoZap:
		var z AutoZap
		if err := json.Unmarshal(payload, &z); err != nil {
			return Event{}, fmt.Errorf("%w: auto-zap: %v", ErrInvalidEvent, err)
		}
		action, err := ParseAction(string(z.Action))
		if err != nil {
			return Event{}, fmt.Errorf("%w: auto-zap: %v", ErrInvalidEvent, err)
		}
		z.Action = action
		z.Selector = strings.TrimSpace(z.Selector)
		if z.Selector == "" && action == ActionPage {
			z.Selector = PageSelector()
		}
		if z.CSSText == "" {
			css, err := ZapCSS(action, z.Selector)
			if err != nil {
				return Event{}, err
			}
			z.CSSText = css
		}
		if z.Selector == "" {
			return Event{}, fmt.Errorf("%w: auto-zap: missing selector", ErrInvalidEvent)
		}
		z.Location = fillHost(z.Location)
		ev.AutoZap, ev.Location = &z, z.Location

	case EventReset:
		var r Reset
		if err := json.Unmarshal(payload, &r); err != nil {
			return Event{}, fmt.Errorf("%w: reset: %v", ErrInvalidEvent, err)
		}
		loc := fillHost(Location{URL: r.URL, Host: r.Host})
		if loc.Host == "" {
			return Event{}, fmt.Errorf("%w: reset: missing host", ErrInvalidEvent)
		}
		r.Host = loc.Host
		ev.Reset, ev.Location = &r, loc

	case EventUndo, EventCancel:
		var loc Location
		_ = json.Unmarshal(payload, &loc)
		ev.Location = fillHost(loc)

	default:
		return Event{}, fmt.Errorf("%w: unknown type %q", ErrInvalidEvent, env.Type)
	}
	return ev, nil
}

// Encode renders ev as the envelope the script would have sent.
func Encode(ev Event) ([]byte, error) {
	var payload any
	switch ev.Type {
	case EventPicked:
		payload = ev.Picked
	case EventAutoZap:
		payload = ev.AutoZap
	case EventReset:
		payload = ev.Reset
	case EventUndo, EventCancel:
		payload = ev.Location
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidEvent, ev.Type)
	}
	raw, err := ir.MarshalCompact(payload)
	if err != nil {
		return nil, err
	}
	return ir.MarshalCompact(envelope{Type: ev.Type, Payload: raw})
}

// fillHost derives Host and Path from URL when the script left them empty.
func fillHost(loc Location) Location {
	loc.Host = strings.ToLower(strings.TrimSpace(loc.Host))
	if loc.URL == "" || (loc.Host != "" && loc.Path != "") {
		return loc
	}
	u, err := url.Parse(loc.URL)
	if err != nil {
		return loc
	}
	if loc.Host == "" {
		loc.Host = strings.ToLower(u.Hostname())
	}
	if loc.Path == "" && u.Host != "" {
		loc.Path = u.EscapedPath()
		if loc.Path == "" {
			loc.Path = "/"
		}
	}
	return loc
}
