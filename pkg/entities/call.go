package entities

import "encoding/json"

// CallSession is the single-slot mailbox record at calls/{handle}. Signaling
// writes always target the other party's mailbox; the only self-write is the
// terminal cleanup delete.
type CallSession struct {
	From          string                     `json:"from,omitempty"`
	To            string                     `json:"to,omitempty"`
	Type          string                     `json:"type,omitempty"`
	Status        string                     `json:"status,omitempty"`
	CallID        string                     `json:"callId,omitempty"`
	Timestamp     int64                      `json:"timestamp,omitempty"`
	EndedBy       string                     `json:"endedBy,omitempty"`
	Offer         json.RawMessage            `json:"offer,omitempty"`
	Answer        json.RawMessage            `json:"answer,omitempty"`
	ICECandidates map[string]json.RawMessage `json:"iceCandidates,omitempty"`
}

// GatewayEvent is one engine-to-UI push over the local websocket.
type GatewayEvent struct {
	Kind string      `json:"kind"`
	Data interface{} `json:"data,omitempty"`
}
