package observerproto

import "encoding/json"

// Version is the status protocol version (separate from the command WS protocol).
const Version = "0.1"

// Client -> Server. First message on the status WS connection; can be re-sent
// to change the interval.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	IntervalMS      int    `json:"interval_ms"`
}

// Server -> Client, every interval, and the body of GET /admin/v1/status.
type StatusMsg struct {
	Type            string                     `json:"type"`
	ProtocolVersion string                     `json:"protocol_version"`
	Seq             uint64                     `json:"seq"`
	Time            string                     `json:"time"`
	Sections        map[string]json.RawMessage `json:"sections"`
}
