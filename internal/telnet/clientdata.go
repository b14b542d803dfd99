package telnet

// Color depth levels reported in ClientData.Color.
const (
	ColorNone      uint8 = 0
	ColorAnsi16    uint8 = 1
	ColorXterm256  uint8 = 2
	ColorTrueColor uint8 = 3
)

// ClientData describes everything the portal has learned about the remote
// client: protocol, declared client name and version, encoding, color
// depth, geometry, and per-feature flags. It JSON-round-trips with stable
// field names so the game side and session storage agree on the layout.
type ClientData struct {
	ClientAddress   string `json:"client_address,omitempty"`
	ClientHostname  string `json:"client_hostname,omitempty"`
	ClientProtocol  string `json:"client_protocol"`
	ClientName      string `json:"client_name"`
	ClientVersion   string `json:"client_version"`
	Encoding        string `json:"encoding"`
	TLS             bool   `json:"tls"`
	Color           uint8  `json:"color"`
	Width           uint16 `json:"width"`
	Height          uint16 `json:"height"`
	Mssp            bool   `json:"mssp"`
	Mccp2           bool   `json:"mccp2"`
	Mccp2Enabled    bool   `json:"mccp2_enabled"`
	Mccp3           bool   `json:"mccp3"`
	Mccp3Enabled    bool   `json:"mccp3_enabled"`
	Gmcp            bool   `json:"gmcp"`
	Mtts            bool   `json:"mtts"`
	Naws            bool   `json:"naws"`
	Charset         bool   `json:"charset"`
	Mnes            bool   `json:"mnes"`
	Linemode        bool   `json:"linemode"`
	Sga             bool   `json:"sga"`
	ForceEndline    bool   `json:"force_endline"`
	ScreenReader    bool   `json:"screen_reader"`
	MouseTracking   bool   `json:"mouse_tracking"`
	Vt100           bool   `json:"vt100"`
	OscColorPalette bool   `json:"osc_color_palette"`
	Proxy           bool   `json:"proxy"`
	TLSSupport      bool   `json:"tls_support"`
}

// NewClientData returns the defaults for a fresh connection: unknown
// client, ascii encoding, no color, 78x24 geometry.
func NewClientData() ClientData {
	return ClientData{
		ClientAddress:  "UNKNOWN",
		ClientHostname: "UNKNOWN",
		ClientProtocol: "UNKNOWN",
		ClientName:     "UNKNOWN",
		ClientVersion:  "UNKNOWN",
		Encoding:       "ascii",
		Width:          78,
		Height:         24,
	}
}

// RaiseColor bumps the color depth to at least level. Reports whether the
// level changed.
func (cd *ClientData) RaiseColor(level uint8) bool {
	if level > cd.Color {
		cd.Color = level
		return true
	}
	return false
}
