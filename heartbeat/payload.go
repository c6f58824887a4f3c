package heartbeat

import (
	"encoding/base64"
	"encoding/json"
	"time"

	hberrors "github.com/vinayprograms/heartbeatkit/errors"
)

// PayloadVersion is the wire format version.
const PayloadVersion = 2

// DateLayout formats payload dates. Dates are always rendered in UTC.
const DateLayout = "2006-01-02"

// UserAgentPayload lists the days one agent logged.
type UserAgentPayload struct {
	Agent string
	Dates []time.Time
}

// Payload is the transmitted projection of a bundle.
type Payload struct {
	Version           int
	UserAgentPayloads []UserAgentPayload
}

// EmptyPayload returns the payload carrying no heartbeats.
func EmptyPayload() Payload {
	return Payload{Version: PayloadVersion, UserAgentPayloads: []UserAgentPayload{}}
}

// NewPayload groups heartbeats by agent. Agents appear in first-seen order
// and each agent's dates keep the order given.
func NewPayload(heartbeats ...Heartbeat) Payload {
	p := EmptyPayload()
	index := make(map[string]int)
	for _, hb := range heartbeats {
		i, ok := index[hb.Agent]
		if !ok {
			i = len(p.UserAgentPayloads)
			index[hb.Agent] = i
			p.UserAgentPayloads = append(p.UserAgentPayloads, UserAgentPayload{Agent: hb.Agent})
		}
		p.UserAgentPayloads[i].Dates = append(p.UserAgentPayloads[i].Dates, NormalizeDate(hb.Date))
	}
	return p
}

// IsEmpty reports whether the payload carries no agents.
func (p Payload) IsEmpty() bool {
	return len(p.UserAgentPayloads) == 0
}

type wirePayload struct {
	Version    int         `json:"version"`
	Heartbeats []wireAgent `json:"heartbeats"`
}

type wireAgent struct {
	Agent string   `json:"agent"`
	Dates []string `json:"dates"`
}

// MarshalJSON implements json.Marshaler.
func (p Payload) MarshalJSON() ([]byte, error) {
	w := wirePayload{
		Version:    p.Version,
		Heartbeats: make([]wireAgent, 0, len(p.UserAgentPayloads)),
	}
	for _, ua := range p.UserAgentPayloads {
		dates := make([]string, 0, len(ua.Dates))
		for _, d := range ua.Dates {
			dates = append(dates, d.UTC().Format(DateLayout))
		}
		w.Heartbeats = append(w.Heartbeats, wireAgent{Agent: ua.Agent, Dates: dates})
	}
	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *Payload) UnmarshalJSON(data []byte) error {
	var w wirePayload
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	out := Payload{Version: w.Version, UserAgentPayloads: make([]UserAgentPayload, 0, len(w.Heartbeats))}
	for _, a := range w.Heartbeats {
		ua := UserAgentPayload{Agent: a.Agent, Dates: make([]time.Time, 0, len(a.Dates))}
		for _, s := range a.Dates {
			d, err := time.ParseInLocation(DateLayout, s, time.UTC)
			if err != nil {
				return err
			}
			ua.Dates = append(ua.Dates, d)
		}
		out.UserAgentPayloads = append(out.UserAgentPayloads, ua)
	}
	*p = out
	return nil
}

// HeaderValue returns the header-safe encoding of the payload, or "" when
// the payload is empty or cannot be encoded.
func (p Payload) HeaderValue() string {
	if p.IsEmpty() {
		return ""
	}
	data, err := json.Marshal(p)
	if err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(data)
}

// DecodeHeaderValue parses a value produced by HeaderValue. The empty
// string decodes to EmptyPayload.
func DecodeHeaderValue(value string) (Payload, error) {
	if value == "" {
		return EmptyPayload(), nil
	}
	data, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return Payload{}, hberrors.WrapWithCode(err, hberrors.ErrCodeEncoding, "decode header base64")
	}
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return Payload{}, hberrors.WrapWithCode(err, hberrors.ErrCodeEncoding, "decode header json")
	}
	return p, nil
}
