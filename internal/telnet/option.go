package telnet

import (
	"encoding/binary"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// optionState tracks one side of an option negotiation.
type optionState struct {
	enabled     bool
	negotiating bool
}

// optionHost is the narrow connection surface the option machinery needs:
// emitting wire messages, publishing capability deltas, and completing the
// negotiation barrier. The connection implements it. Client data mutations
// go through updateClientData so the connection can serialize access.
type optionHost interface {
	sendNegotiation(command, opt byte)
	sendSubnegotiation(opt byte, data []byte)
	publishCapabilities(delta map[string]any)
	registerPending(name string)
	markNegotiationComplete(name string)
	forwardToGame(msg ToGame)
	updateClientData(fn func(cd *ClientData))
}

// optionKind tags the option variant the shared state machine dispatches on.
type optionKind int

const (
	optSGA optionKind = iota
	optNAWS
	optCharset
	optMTTS
	optMSSP
	optMCCP2
	optMCCP3
	optGMCP
	optLinemode
	optEOR
)

// MTTS bitmask flags, per the Mud Terminal Type Standard.
const (
	mttsAnsi         = 1
	mttsVT100        = 2
	mttsUTF8         = 4
	mttsXterm256     = 8
	mttsMouse        = 16
	mttsOSCPalette   = 32
	mttsScreenReader = 64
	mttsProxy        = 128
	mttsTrueColor    = 256
	mttsMNES         = 512
	mttsMSLP         = 1024
	mttsEncryption   = 2048
)

const (
	charsetRequest = 0x01
	charsetAccept  = 0x02
	mttsIs         = 0x00
	mttsSend       = 0x01
)

// option is one negotiated telnet option: the shared WILL/WONT/DO/DONT
// state machine plus variant-specific subnegotiation handling selected by
// kind.
type option struct {
	kind   optionKind
	code   byte
	host   optionHost
	local  optionState
	remote optionState

	// MTTS handshake progress
	mttsResponses int
	mttsLast      string
	mttsComplete  bool

	// CHARSET request guard
	charsetRequested bool
}

// newOptions builds the full option set for a connection.
func newOptions(host optionHost) map[byte]*option {
	table := []struct {
		kind optionKind
		code byte
	}{
		{optSGA, OptSGA},
		{optNAWS, OptNAWS},
		{optCharset, OptCharset},
		{optMTTS, OptMTTS},
		{optMSSP, OptMSSP},
		{optMCCP2, OptMCCP2},
		{optMCCP3, OptMCCP3},
		{optGMCP, OptGMCP},
		{optLinemode, OptLinemode},
		{optEOR, OptEOR},
	}
	options := make(map[byte]*option, len(table))
	for _, entry := range table {
		options[entry.code] = &option{kind: entry.kind, code: entry.code, host: host}
	}
	return options
}

func (o *option) name() string {
	switch o.kind {
	case optSGA:
		return "SGA"
	case optNAWS:
		return "NAWS"
	case optCharset:
		return "CHARSET"
	case optMTTS:
		return "MTTS"
	case optMSSP:
		return "MSSP"
	case optMCCP2:
		return "MCCP2"
	case optMCCP3:
		return "MCCP3"
	case optGMCP:
		return "GMCP"
	case optLinemode:
		return "LINEMODE"
	case optEOR:
		return "EOR"
	}
	return "OPTION"
}

// supportInfo returns (supported, auto-start) for the local and remote
// sides of this option.
func (o *option) supportInfo() (localSup, localAuto, remoteSup, remoteAuto bool) {
	switch o.kind {
	case optSGA, optMSSP, optMCCP2, optMCCP3, optGMCP, optLinemode:
		return true, true, false, false
	case optNAWS:
		return false, false, true, true
	case optCharset, optMTTS:
		return true, true, true, true
	case optEOR:
		return false, false, false, false
	}
	return false, false, false, false
}

// start registers the pending barrier signal and proactively opens
// negotiation on each side whose policy is (supported, auto-start).
func (o *option) start() {
	localSup, localAuto, remoteSup, remoteAuto := o.supportInfo()
	if !localSup && !remoteSup {
		return
	}
	o.host.registerPending(o.name())

	if localSup && localAuto {
		o.host.sendNegotiation(WILL, o.code)
		o.local.negotiating = true
	}
	if remoteSup && remoteAuto {
		o.host.sendNegotiation(DO, o.code)
		o.remote.negotiating = true
	}
}

// receiveNegotiation runs the shared state machine on an incoming
// WILL/WONT/DO/DONT for this option. Repeated commands for an already
// settled side are no-ops.
func (o *option) receiveNegotiation(command byte) {
	localSup, _, remoteSup, _ := o.supportInfo()

	switch command {
	case WILL:
		if !remoteSup {
			o.host.sendNegotiation(DONT, o.code)
			o.atRemoteReject()
			return
		}
		if !o.remote.enabled {
			o.remote.enabled = true
			if !o.remote.negotiating {
				o.host.sendNegotiation(DO, o.code)
			}
			o.atRemoteEnable()
		}

	case DO:
		if !localSup {
			o.host.sendNegotiation(WONT, o.code)
			o.atLocalReject()
			return
		}
		if !o.local.enabled {
			o.local.enabled = true
			if !o.local.negotiating {
				o.host.sendNegotiation(WILL, o.code)
			}
			o.atLocalEnable()
		}

	case WONT:
		if remoteSup {
			if o.remote.enabled {
				o.remote.enabled = false
				o.atRemoteDisable()
			}
			if o.remote.negotiating {
				o.remote.negotiating = false
				o.atRemoteReject()
			}
		}

	case DONT:
		if localSup {
			if o.local.enabled {
				o.local.enabled = false
				o.atLocalDisable()
			}
			if o.local.negotiating {
				o.local.negotiating = false
				o.atLocalReject()
			}
		}
	}
}

func (o *option) complete() {
	o.host.markNegotiationComplete(o.name())
}

func (o *option) atLocalReject()  { o.complete() }
func (o *option) atRemoteReject() { o.complete() }

func (o *option) atLocalDisable()  {}
func (o *option) atRemoteDisable() {}

// setFlag sets one capability flag and publishes the matching delta.
func (o *option) setFlag(name string, set func(cd *ClientData)) {
	o.host.updateClientData(set)
	o.host.publishCapabilities(map[string]any{name: true})
}

// atLocalEnable completes the barrier and applies the variant-specific
// local side effects: capability flags and opening subnegotiations.
func (o *option) atLocalEnable() {
	o.complete()

	switch o.kind {
	case optSGA:
		o.setFlag("sga", func(cd *ClientData) { cd.Sga = true })
	case optMSSP:
		o.setFlag("mssp", func(cd *ClientData) { cd.Mssp = true })
	case optMCCP2:
		o.setFlag("mccp2", func(cd *ClientData) { cd.Mccp2 = true })
		// The writer flips outbound compression on after this frame.
		o.host.sendSubnegotiation(OptMCCP2, nil)
	case optMCCP3:
		o.setFlag("mccp3", func(cd *ClientData) { cd.Mccp3 = true })
	case optGMCP:
		o.setFlag("gmcp", func(cd *ClientData) { cd.Gmcp = true })
	case optLinemode:
		o.setFlag("linemode", func(cd *ClientData) { cd.Linemode = true })
	case optCharset:
		o.requestCharsets()
	case optNAWS, optMTTS, optEOR:
	}
}

// atRemoteEnable completes the barrier and applies the variant-specific
// remote side effects.
func (o *option) atRemoteEnable() {
	o.complete()

	switch o.kind {
	case optNAWS:
		o.setFlag("naws", func(cd *ClientData) { cd.Naws = true })
	case optCharset:
		o.requestCharsets()
	case optMTTS:
		o.setFlag("mtts", func(cd *ClientData) { cd.Mtts = true })
		o.host.sendSubnegotiation(OptMTTS, []byte{mttsSend})
	case optSGA, optMSSP, optMCCP2, optMCCP3, optGMCP, optLinemode, optEOR:
	}
}

// requestCharsets sends the CHARSET REQUEST exactly once, whichever side
// enables first.
func (o *option) requestCharsets() {
	if o.charsetRequested {
		return
	}
	o.charsetRequested = true
	o.host.sendSubnegotiation(OptCharset, append([]byte{charsetRequest}, " ascii utf-8"...))
}

// receiveSubnegotiation applies an inbound subnegotiation payload.
// Malformed payloads are dropped silently.
func (o *option) receiveSubnegotiation(data []byte) {
	switch o.kind {
	case optNAWS:
		o.handleNAWS(data)
	case optCharset:
		o.handleCharset(data)
	case optMTTS:
		o.handleMTTS(data)
	case optGMCP:
		o.handleGMCP(data)
	case optSGA, optMSSP, optMCCP2, optMCCP3, optLinemode, optEOR:
	}
}

func (o *option) handleNAWS(data []byte) {
	if len(data) != 4 {
		return
	}
	width := binary.BigEndian.Uint16(data[0:2])
	height := binary.BigEndian.Uint16(data[2:4])

	changed := false
	o.host.updateClientData(func(cd *ClientData) {
		if width == cd.Width && height == cd.Height {
			return
		}
		cd.Width = width
		cd.Height = height
		changed = true
	})
	if changed {
		o.host.publishCapabilities(map[string]any{"width": width, "height": height})
	}
}

func (o *option) handleCharset(data []byte) {
	if len(data) < 2 || data[0] != charsetAccept {
		return
	}
	encoding := string(data[1:])
	o.host.updateClientData(func(cd *ClientData) {
		cd.Encoding = encoding
		cd.Charset = true
	})
	o.host.publishCapabilities(map[string]any{"charset": true, "encoding": encoding})
	o.complete()
}

func (o *option) handleMTTS(data []byte) {
	if len(data) < 2 || data[0] != mttsIs || o.mttsComplete {
		return
	}
	response := string(data[1:])
	o.mttsResponses++

	if o.mttsResponses > 1 && response == o.mttsLast {
		o.mttsComplete = true
		o.complete()
		return
	}
	o.mttsLast = response

	delta := map[string]any{}
	o.host.updateClientData(func(cd *ClientData) {
		switch o.mttsResponses {
		case 1:
			// client name, optionally followed by a version
			name, version, hasVersion := strings.Cut(response, " ")
			cd.ClientName = name
			delta["client_name"] = name
			if hasVersion {
				cd.ClientVersion = version
				delta["client_version"] = version
			}
		case 2:
			// terminal type: the token before any '-' suffix
			term, _, _ := strings.Cut(response, "-")
			switch strings.ToUpper(term) {
			case "ANSI":
				if cd.RaiseColor(ColorAnsi16) {
					delta["color"] = cd.Color
				}
			case "VT100":
				cd.Vt100 = true
				delta["vt100"] = true
			case "XTERM":
				if cd.RaiseColor(ColorXterm256) {
					delta["color"] = cd.Color
				}
			}
		case 3:
			applyMTTSBitmask(cd, response, delta)
		}
	})

	if len(delta) > 0 {
		o.host.publishCapabilities(delta)
	}

	if o.mttsResponses >= 3 {
		o.mttsComplete = true
		o.complete()
		return
	}
	o.host.sendSubnegotiation(OptMTTS, []byte{mttsSend})
}

func applyMTTSBitmask(cd *ClientData, response string, delta map[string]any) {
	rest, ok := strings.CutPrefix(response, "MTTS ")
	if !ok {
		return
	}
	mask, err := strconv.Atoi(strings.TrimSpace(rest))
	if err != nil {
		return
	}

	if mask&mttsVT100 != 0 {
		cd.Vt100 = true
		delta["vt100"] = true
	}
	if mask&mttsUTF8 != 0 {
		cd.Encoding = "utf-8"
		delta["encoding"] = cd.Encoding
	}
	if mask&mttsMouse != 0 {
		cd.MouseTracking = true
		delta["mouse_tracking"] = true
	}
	if mask&mttsOSCPalette != 0 {
		cd.OscColorPalette = true
		delta["osc_color_palette"] = true
	}
	if mask&mttsScreenReader != 0 {
		cd.ScreenReader = true
		delta["screen_reader"] = true
	}
	if mask&mttsProxy != 0 {
		cd.Proxy = true
		delta["proxy"] = true
	}
	if mask&mttsMNES != 0 {
		cd.Mnes = true
		delta["mnes"] = true
	}
	if mask&mttsEncryption != 0 {
		cd.TLSSupport = true
		delta["tls_support"] = true
	}

	level := ColorNone
	switch {
	case mask&mttsTrueColor != 0:
		level = ColorTrueColor
	case mask&mttsXterm256 != 0:
		level = ColorXterm256
	case mask&mttsAnsi != 0:
		level = ColorAnsi16
	}
	if cd.RaiseColor(level) {
		delta["color"] = cd.Color
	}
}

// handleGMCP parses an inbound GMCP payload, applies Core.Hello client
// identification, and forwards the message to the game side.
func (o *option) handleGMCP(data []byte) {
	msg, ok := ParseSubnegotiation(OptGMCP, data).(Gmcp)
	if !ok {
		return
	}

	if strings.EqualFold(msg.Package, "Core.Hello") && len(msg.Data) > 0 {
		delta := map[string]any{}
		o.host.updateClientData(func(cd *ClientData) {
			if client := gjson.GetBytes(msg.Data, "client"); client.Exists() {
				cd.ClientName = client.String()
				delta["client_name"] = cd.ClientName
			}
			if version := gjson.GetBytes(msg.Data, "version"); version.Exists() {
				cd.ClientVersion = version.String()
				delta["client_version"] = cd.ClientVersion
			}
		})
		if len(delta) > 0 {
			o.host.publishCapabilities(delta)
		}
	}

	o.host.forwardToGame(msg)
}
