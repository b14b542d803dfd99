package telnet

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestParse_Empty(t *testing.T) {
	_, _, err := Parse(nil)
	assert.ErrorIs(t, err, ErrIncomplete)
}

func TestParse_AppData(t *testing.T) {
	msg, consumed, err := Parse([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, consumed)
	assert.Equal(t, AppData{Data: []byte("hello")}, msg)
}

func TestParse_AppDataStopsAtIAC(t *testing.T) {
	msg, consumed, err := Parse([]byte{'h', 'i', IAC, WILL, OptNAWS})
	require.NoError(t, err)
	assert.Equal(t, 2, consumed)
	assert.Equal(t, AppData{Data: []byte("hi")}, msg)
}

func TestParse_Negotiation(t *testing.T) {
	msg, consumed, err := Parse([]byte{0xFF, 0xFB, 0x1F})
	require.NoError(t, err)
	assert.Equal(t, 3, consumed)
	assert.Equal(t, Negotiation{Command: WILL, Option: 31}, msg)
}

func TestParse_NegotiationIncomplete(t *testing.T) {
	_, _, err := Parse([]byte{IAC, DO})
	assert.ErrorIs(t, err, ErrIncomplete)
}

func TestParse_SubnegotiationWithEscapedIAC(t *testing.T) {
	input := []byte{0xFF, 0xFA, 0x2A, 0x02, 0x55, 0x54, 0x46, 0xFF, 0xFF, 0xFF, 0xF0}
	msg, consumed, err := Parse(input)
	require.NoError(t, err)
	assert.Equal(t, len(input), consumed)
	assert.Equal(t, Subnegotiation{Option: OptCharset, Data: []byte("\x02UTF\xFF")}, msg)
}

func TestParse_SubnegotiationMissingTerminator(t *testing.T) {
	_, _, err := Parse([]byte{IAC, SB, OptGMCP, 'a', 'b', 'c'})
	assert.ErrorIs(t, err, ErrIncomplete)
}

func TestParse_SubnegotiationSplitTerminator(t *testing.T) {
	full := []byte{IAC, SB, OptNAWS, 0, 80, 0, 24, IAC, SE}

	// first read ends between IAC and SE
	_, _, err := Parse(full[:8])
	assert.ErrorIs(t, err, ErrIncomplete)

	msg, consumed, err := Parse(full)
	require.NoError(t, err)
	assert.Equal(t, len(full), consumed)
	assert.Equal(t, Subnegotiation{Option: OptNAWS, Data: []byte{0, 80, 0, 24}}, msg)
}

func TestParse_EscapedIACData(t *testing.T) {
	msg, consumed, err := Parse([]byte{IAC, IAC, 'x'})
	require.NoError(t, err)
	assert.Equal(t, 2, consumed)
	assert.Equal(t, AppData{Data: []byte{IAC}}, msg)
}

func TestParse_Command(t *testing.T) {
	msg, consumed, err := Parse([]byte{IAC, NOP})
	require.NoError(t, err)
	assert.Equal(t, 2, consumed)
	assert.Equal(t, Command{Code: NOP}, msg)
}

func TestEncode_Negotiation(t *testing.T) {
	assert.Equal(t, []byte{IAC, DO, OptGMCP}, Encode(Negotiation{Command: DO, Option: OptGMCP}))
}

func TestEncode_SubnegotiationEscapesIAC(t *testing.T) {
	wire := Encode(Subnegotiation{Option: OptCharset, Data: []byte{0x02, 0xFF, 0x41}})
	assert.Equal(t, []byte{IAC, SB, OptCharset, 0x02, 0xFF, 0xFF, 0x41, IAC, SE}, wire)
}

func TestEncode_GmcpWithBody(t *testing.T) {
	wire := Encode(Gmcp{Package: "Core.Hello", Data: json.RawMessage(`{"client": "Mudlet"}`)})
	expected := append([]byte{IAC, SB, OptGMCP}, []byte(`Core.Hello {"client":"Mudlet"}`)...)
	expected = append(expected, IAC, SE)
	assert.Equal(t, expected, wire)
}

func TestEncode_GmcpBare(t *testing.T) {
	wire := Encode(Gmcp{Package: "Core.Ping"})
	expected := append([]byte{IAC, SB, OptGMCP}, []byte("Core.Ping")...)
	expected = append(expected, IAC, SE)
	assert.Equal(t, expected, wire)
}

func TestEncode_Mssp(t *testing.T) {
	wire := Encode(Mssp{Variables: []MsspVariable{
		{Name: "NAME", Value: "Volcano"},
		{Name: "PLAYERS", Value: "3"},
	}})
	expected := []byte{IAC, SB, OptMSSP}
	expected = append(expected, 1)
	expected = append(expected, "NAME"...)
	expected = append(expected, 2)
	expected = append(expected, "Volcano"...)
	expected = append(expected, 1)
	expected = append(expected, "PLAYERS"...)
	expected = append(expected, 2)
	expected = append(expected, '3')
	expected = append(expected, IAC, SE)
	assert.Equal(t, expected, wire)
}

func TestParseSubnegotiation_Gmcp(t *testing.T) {
	msg := ParseSubnegotiation(OptGMCP, []byte(`Core.Hello {"client":"Mudlet","version":"4.0"}`))
	gmcp, ok := msg.(Gmcp)
	require.True(t, ok)
	assert.Equal(t, "Core.Hello", gmcp.Package)
	assert.JSONEq(t, `{"client":"Mudlet","version":"4.0"}`, string(gmcp.Data))
}

func TestParseSubnegotiation_GmcpNoBody(t *testing.T) {
	gmcp := ParseSubnegotiation(OptGMCP, []byte("Core.Ping")).(Gmcp)
	assert.Equal(t, "Core.Ping", gmcp.Package)
	assert.Nil(t, gmcp.Data)
}

func TestParseSubnegotiation_GmcpBadJSONBecomesNil(t *testing.T) {
	gmcp := ParseSubnegotiation(OptGMCP, []byte("Core.Hello {broken")).(Gmcp)
	assert.Equal(t, "Core.Hello", gmcp.Package)
	assert.Nil(t, gmcp.Data)
}

func TestParseSubnegotiation_OtherPassesThrough(t *testing.T) {
	sub := ParseSubnegotiation(OptNAWS, []byte{0, 80, 0, 24}).(Subnegotiation)
	assert.Equal(t, OptNAWS, sub.Option)
	assert.Equal(t, []byte{0, 80, 0, 24}, sub.Data)
}

// Property: encode then decode is the identity on well-formed messages.
func TestPropertyEncodeDecode_RoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		original := genWireMessage(t)
		wire := Encode(original)

		msg, consumed, err := Parse(wire)
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		if consumed != len(wire) {
			t.Fatalf("consumed %d of %d", consumed, len(wire))
		}
		switch m := original.(type) {
		case Negotiation:
			if msg != m {
				t.Fatalf("got %#v, want %#v", msg, m)
			}
		case Command:
			if msg != m {
				t.Fatalf("got %#v, want %#v", msg, m)
			}
		case Subnegotiation:
			parsed, ok := msg.(Subnegotiation)
			if !ok || parsed.Option != m.Option || !equalBytes(parsed.Data, m.Data) {
				t.Fatalf("got %#v, want %#v", msg, m)
			}
		}
	})
}

// Property: feeding a stream of encoded messages through repeated Parse
// calls reconstructs the list.
func TestPropertyParse_StreamReassembly(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		count := rapid.IntRange(1, 8).Draw(t, "count")
		var wire []byte
		var originals []Message
		for i := 0; i < count; i++ {
			msg := genWireMessage(t)
			originals = append(originals, msg)
			wire = append(wire, Encode(msg)...)
		}

		var parsed []Message
		for len(wire) > 0 {
			msg, consumed, err := Parse(wire)
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			parsed = append(parsed, msg)
			wire = wire[consumed:]
		}

		if len(parsed) != len(originals) {
			t.Fatalf("parsed %d messages, want %d", len(parsed), len(originals))
		}
	})
}

func equalBytes(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// genWireMessage draws a well-formed non-AppData message. AppData is
// excluded because adjacent app-data runs coalesce on reparse.
func genWireMessage(t *rapid.T) Message {
	switch rapid.IntRange(0, 2).Draw(t, "kind") {
	case 0:
		commands := []byte{WILL, WONT, DO, DONT}
		return Negotiation{
			Command: commands[rapid.IntRange(0, 3).Draw(t, "cmd")],
			Option:  byte(rapid.IntRange(0, 254).Draw(t, "opt")),
		}
	case 1:
		// command codes that are not negotiation/SB/IAC markers
		codes := []byte{NOP, AYT, 242, 243, 244}
		return Command{Code: codes[rapid.IntRange(0, 4).Draw(t, "code")]}
	default:
		data := rapid.SliceOfN(rapid.Byte(), 0, 64).Draw(t, "data")
		return Subnegotiation{
			Option: byte(rapid.IntRange(0, 254).Draw(t, "opt")),
			Data:   data,
		}
	}
}
