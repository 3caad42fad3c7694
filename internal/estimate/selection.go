package estimate

import (
	"bytes"
	"encoding/json"
	"fmt"
)

type pickKind uint8

const (
	pickToggle pickKind = iota + 1
	pickChoice
)

// Pick is one entry of a Selection: a boolean toggle or a chosen choice value.
type Pick struct {
	kind  pickKind
	on    bool
	value string
}

// Toggle returns a pick for a boolean option.
func Toggle(on bool) Pick {
	return Pick{kind: pickToggle, on: on}
}

// Choose returns a pick for a select option.
func Choose(value string) Pick {
	return Pick{kind: pickChoice, value: value}
}

// IsToggle reports whether the pick is a boolean.
func (p Pick) IsToggle() bool { return p.kind == pickToggle }

// IsChoice reports whether the pick is a choice value.
func (p Pick) IsChoice() bool { return p.kind == pickChoice }

// On returns the toggle state; false for choice picks.
func (p Pick) On() bool { return p.kind == pickToggle && p.on }

// Value returns the chosen value; empty for toggles.
func (p Pick) Value() string {
	if p.kind != pickChoice {
		return ""
	}
	return p.value
}

// String renders the pick the way it appears in requests.
func (p Pick) String() string {
	switch p.kind {
	case pickToggle:
		return fmt.Sprintf("%t", p.on)
	case pickChoice:
		return fmt.Sprintf("%q", p.value)
	default:
		return "<unset>"
	}
}

// MarshalJSON encodes toggles as JSON booleans and choices as strings.
func (p Pick) MarshalJSON() ([]byte, error) {
	switch p.kind {
	case pickToggle:
		return json.Marshal(p.on)
	case pickChoice:
		return json.Marshal(p.value)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts a JSON boolean or string.
func (p *Pick) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("true")):
		*p = Toggle(true)
	case bytes.Equal(data, []byte("false")):
		*p = Toggle(false)
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = Choose(s)
	default:
		return fmt.Errorf("selection value must be a boolean or a string, got %s", data)
	}
	return nil
}

// Selection maps option ids to picks. It is request-scoped.
type Selection map[string]Pick
