package telnet

import "encoding/json"

// DisconnectReason classifies why a connection is shutting down.
type DisconnectReason int

const (
	ReasonUnknown DisconnectReason = iota
	ReasonClientDisconnect
	ReasonRemoteDisconnect
	ReasonAborted
	ReasonBufferOverflow
	ReasonAppdataOverflow
	ReasonProtocolError
	ReasonError
)

// String returns the reason name.
func (r DisconnectReason) String() string {
	switch r {
	case ReasonClientDisconnect:
		return "client_disconnect"
	case ReasonRemoteDisconnect:
		return "remote_disconnect"
	case ReasonAborted:
		return "aborted"
	case ReasonBufferOverflow:
		return "buffer_overflow"
	case ReasonAppdataOverflow:
		return "appdata_overflow"
	case ReasonProtocolError:
		return "protocol_error"
	case ReasonError:
		return "error"
	}
	return "unknown"
}

// Disconnect carries a shutdown reason across the message channels.
type Disconnect struct {
	Reason DisconnectReason
}

// ChangeCapabilities notifies the game side of changed client
// capabilities. Capabilities is a JSON object holding only the fields
// that changed.
type ChangeCapabilities struct {
	Capabilities json.RawMessage
}

// ToGame is a message delivered on the to-game channel: AppData lines,
// Gmcp messages, ChangeCapabilities deltas, or a Disconnect.
type ToGame interface {
	isToGame()
}

func (AppData) isToGame()            {}
func (Gmcp) isToGame()               {}
func (ChangeCapabilities) isToGame() {}
func (Disconnect) isToGame()         {}

// ToTelnet is a message delivered on the to-telnet channel by the game
// side: AppData to render, Gmcp or Mssp to frame as subnegotiations, or a
// Disconnect to close the session.
type ToTelnet interface {
	isToTelnet()
}

func (AppData) isToTelnet()    {}
func (Gmcp) isToTelnet()       {}
func (Mssp) isToTelnet()       {}
func (Disconnect) isToTelnet() {}

// outgoingMessage is what the writer task drains: a wire message or a
// disconnect marker.
type outgoingMessage interface {
	isOutgoing()
}

func (AppData) isOutgoing()        {}
func (Subnegotiation) isOutgoing() {}
func (Negotiation) isOutgoing()    {}
func (Command) isOutgoing()        {}
func (Gmcp) isOutgoing()           {}
func (Mssp) isOutgoing()           {}
func (Disconnect) isOutgoing()     {}
