// Package telnet implements the portal's client-facing telnet session:
// byte-level framing, per-option negotiation state machines, MCCP2/MCCP3
// stream compression, and the connection task model that couples a socket
// to the to-game and to-telnet message channels.
package telnet

import (
	"bytes"
	"encoding/json"
	"errors"
)

// Telnet protocol bytes per RFC 854/855.
const (
	NUL  byte = 0
	BEL  byte = 7
	SE   byte = 240 // Subnegotiation End
	NOP  byte = 241
	AYT  byte = 246 // Are You There
	SB   byte = 250 // Subnegotiation Begin
	WILL byte = 251
	WONT byte = 252
	DO   byte = 253
	DONT byte = 254
	IAC  byte = 255 // Interpret As Command
)

// Telnet option codes.
const (
	OptSGA      byte = 3  // Suppress Go-Ahead
	OptMTTS     byte = 24 // Terminal Type / MTTS
	OptEOR      byte = 25 // End Of Record
	OptNAWS     byte = 31 // Negotiate About Window Size
	OptLinemode byte = 34
	OptMNES     byte = 39 // Mud New Environ
	OptCharset  byte = 42
	OptMSSP     byte = 70 // Mud Server Status Protocol
	OptMCCP2    byte = 86 // outbound compression
	OptMCCP3    byte = 87 // inbound compression
	OptGMCP     byte = 201 // Generic Mud Communication Protocol
)

// ErrIncomplete reports that the buffer does not yet hold a complete
// message; the caller must preserve the bytes and read more.
var ErrIncomplete = errors.New("telnet: incomplete message")

// Message is one parsed telnet wire element: AppData, Subnegotiation,
// Negotiation, Command, Gmcp, or Mssp.
type Message interface {
	isMessage()
}

// AppData is a run of application bytes with IAC escaping removed.
type AppData struct {
	Data []byte
}

// Subnegotiation is an option payload framed by IAC SB ... IAC SE.
type Subnegotiation struct {
	Option byte
	Data   []byte
}

// Negotiation is a WILL/WONT/DO/DONT exchange for one option.
type Negotiation struct {
	Command byte
	Option  byte
}

// Command is a bare two-byte telnet command such as NOP or AYT.
type Command struct {
	Code byte
}

// Gmcp is a GMCP message: a dotted package name with an optional JSON body.
// A nil Data means the package came without a body or with one that failed
// to parse.
type Gmcp struct {
	Package string
	Data    json.RawMessage
}

// MsspVariable is one MSSP name/value pair.
type MsspVariable struct {
	Name  string
	Value string
}

// Mssp is a set of MSSP server status variables.
type Mssp struct {
	Variables []MsspVariable
}

func (AppData) isMessage()        {}
func (Subnegotiation) isMessage() {}
func (Negotiation) isMessage()    {}
func (Command) isMessage()        {}
func (Gmcp) isMessage()           {}
func (Mssp) isMessage()           {}

// Parse decodes the next message from data. It returns the message and the
// number of bytes consumed, or ErrIncomplete when the buffer cannot yet be
// decoded; the caller retries with more data appended.
func Parse(data []byte) (Message, int, error) {
	if len(data) == 0 {
		return nil, 0, ErrIncomplete
	}

	if data[0] != IAC {
		// regular data up to the next IAC
		end := bytes.IndexByte(data, IAC)
		if end < 0 {
			end = len(data)
		}
		out := make([]byte, end)
		copy(out, data[:end])
		return AppData{Data: out}, end, nil
	}

	if len(data) < 2 {
		return nil, 0, ErrIncomplete
	}

	switch data[1] {
	case WILL, WONT, DO, DONT:
		if len(data) < 3 {
			return nil, 0, ErrIncomplete
		}
		return Negotiation{Command: data[1], Option: data[2]}, 3, nil

	case SB:
		// IAC SB <opt> [<data>] IAC SE, with literal 0xFF doubled
		if len(data) < 5 {
			return nil, 0, ErrIncomplete
		}
		opt := data[2]
		pos := 3
		for pos+1 < len(data) {
			if data[pos] != IAC {
				pos++
				continue
			}
			switch data[pos+1] {
			case SE:
				payload := make([]byte, 0, pos-3)
				for i := 3; i < pos; {
					if data[i] == IAC && i+1 < pos && data[i+1] == IAC {
						payload = append(payload, IAC)
						i += 2
					} else {
						payload = append(payload, data[i])
						i++
					}
				}
				return Subnegotiation{Option: opt, Data: payload}, pos + 2, nil
			case IAC:
				pos += 2
			default:
				pos++
			}
		}
		return nil, 0, ErrIncomplete

	case IAC:
		// escaped 0xFF data byte
		return AppData{Data: []byte{IAC}}, 2, nil

	default:
		return Command{Code: data[1]}, 2, nil
	}
}

// ParseSubnegotiation lifts a raw subnegotiation payload into its
// option-specific message where one exists. GMCP payloads split at the
// first space with the suffix parsed as JSON. Other options pass through
// unchanged; MSSP in particular is outbound-only, the portal never
// receives it.
func ParseSubnegotiation(option byte, data []byte) Message {
	if option == OptGMCP {
		space := bytes.IndexByte(data, ' ')
		if space < 0 {
			return Gmcp{Package: string(data)}
		}
		pkg := string(data[:space])
		body := data[space+1:]
		if !json.Valid(body) {
			return Gmcp{Package: pkg}
		}
		raw := make(json.RawMessage, len(body))
		copy(raw, body)
		return Gmcp{Package: pkg, Data: raw}
	}

	out := make([]byte, len(data))
	copy(out, data)
	return Subnegotiation{Option: option, Data: out}
}

func appendIACEscaped(out []byte, data []byte) []byte {
	for _, b := range data {
		out = append(out, b)
		if b == IAC {
			out = append(out, IAC)
		}
	}
	return out
}

func appendSubnegotiation(out []byte, option byte, data []byte) []byte {
	out = append(out, IAC, SB, option)
	out = appendIACEscaped(out, data)
	return append(out, IAC, SE)
}

// Encode renders a message as wire bytes. AppData passes through verbatim;
// the caller IAC-escapes application bytes before framing if needed.
func Encode(msg Message) []byte {
	switch m := msg.(type) {
	case AppData:
		return m.Data
	case Negotiation:
		return []byte{IAC, m.Command, m.Option}
	case Command:
		return []byte{IAC, m.Code}
	case Subnegotiation:
		return appendSubnegotiation(nil, m.Option, m.Data)
	case Gmcp:
		return appendSubnegotiation(nil, OptGMCP, gmcpPayload(m))
	case Mssp:
		payload := make([]byte, 0, 64)
		for _, v := range m.Variables {
			payload = append(payload, 1)
			payload = append(payload, v.Name...)
			payload = append(payload, 2)
			payload = append(payload, v.Value...)
		}
		return appendSubnegotiation(nil, OptMSSP, payload)
	}
	return nil
}

func gmcpPayload(m Gmcp) []byte {
	payload := []byte(m.Package)
	if len(m.Data) > 0 {
		payload = append(payload, ' ')
		compact := &bytes.Buffer{}
		if err := json.Compact(compact, m.Data); err == nil {
			payload = append(payload, compact.Bytes()...)
		} else {
			payload = append(payload, m.Data...)
		}
	}
	return payload
}
