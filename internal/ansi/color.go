// Package ansi provides palette-aware terminal styling: color types for the
// 16-color, 256-color, and truecolor palettes, composable text styles, and
// escape-sequence rendering of styled text at a client's color depth.
package ansi

import "strconv"

// Mode is the color depth a client can display.
type Mode uint8

const (
	ModeNone Mode = iota
	ModeAnsi16
	ModeXterm256
	ModeTrueColor
)

// Color is one of Ansi16, Xterm256, or TrueColor.
type Color interface {
	isColor()
}

// Ansi16 is a classic 16-color palette index (0-15).
type Ansi16 struct {
	Index uint8
}

// Xterm256 is an xterm 256-color palette index.
type Xterm256 struct {
	Index uint8
}

// TrueColor is a 24-bit RGB color.
type TrueColor struct {
	R, G, B uint8
}

func (Ansi16) isColor()    {}
func (Xterm256) isColor()  {}
func (TrueColor) isColor() {}

// NewAnsi16 constructs an Ansi16, masking out-of-range indices.
func NewAnsi16(index uint8) Ansi16 {
	return Ansi16{Index: index % 16}
}

// Attribute is a bitset of terminal display attributes.
type Attribute uint16

const (
	AttrBold Attribute = 1 << iota
	AttrDim
	AttrItalic
	AttrUnderline
	AttrBlink
	AttrBlink2
	AttrReverse
	AttrConceal
	AttrStrike
	AttrUnderline2
	AttrFrame
	AttrEncircle
	AttrOverline
)

// Has reports whether all attributes in attr are set.
func (a Attribute) Has(attr Attribute) bool {
	return a&attr == attr
}

// Style is an optional foreground, optional background, and attribute set.
// The zero value is the empty style.
type Style struct {
	Foreground Color
	Background Color
	Attrs      Attribute
}

// Merge composes two styles: other's foreground and background win when set,
// attributes are the union. The empty style is the identity.
func (s Style) Merge(other Style) Style {
	out := s
	if other.Foreground != nil {
		out.Foreground = other.Foreground
	}
	if other.Background != nil {
		out.Background = other.Background
	}
	out.Attrs = s.Attrs | other.Attrs
	return out
}

// IsZero reports whether the style is the empty style.
func (s Style) IsZero() bool {
	return s.Foreground == nil && s.Background == nil && s.Attrs == 0
}

// ansi16Palette holds the canonical RGB values of the standard xterm
// 16-color palette: mid-intensity bases, full-intensity brights.
var ansi16Palette = [16]TrueColor{
	{0, 0, 0},       // black
	{205, 0, 0},     // red
	{0, 205, 0},     // green
	{205, 205, 0},   // yellow
	{0, 0, 238},     // blue
	{205, 0, 205},   // magenta
	{0, 205, 205},   // cyan
	{229, 229, 229}, // white (light gray)
	{127, 127, 127}, // bright black (dark gray)
	{255, 0, 0},     // bright red
	{0, 255, 0},     // bright green
	{255, 255, 0},   // bright yellow
	{92, 92, 255},   // bright blue
	{255, 0, 255},   // bright magenta
	{0, 255, 255},   // bright cyan
	{255, 255, 255}, // bright white
}

// cubeLevels are the channel values of the 6x6x6 xterm color cube.
var cubeLevels = [6]uint8{0, 95, 135, 175, 215, 255}

// XtermToTrueColor expands an xterm palette index to its canonical RGB value.
// Indices below 16 use the 16-color palette, 232 and above the grey ramp,
// and the rest the 6x6x6 color cube.
func XtermToTrueColor(index uint8) TrueColor {
	if index < 16 {
		return ansi16Palette[index]
	}
	if index >= 232 {
		grey := 8 + (index-232)*10
		return TrueColor{grey, grey, grey}
	}
	idx := index - 16
	return TrueColor{
		R: cubeLevels[idx/36],
		G: cubeLevels[(idx/6)%6],
		B: cubeLevels[idx%6],
	}
}

// ToTrueColor converts any color to RGB.
func ToTrueColor(c Color) TrueColor {
	switch v := c.(type) {
	case TrueColor:
		return v
	case Ansi16:
		return ansi16Palette[v.Index%16]
	case Xterm256:
		return XtermToTrueColor(v.Index)
	}
	return TrueColor{}
}

func dist2(a, b TrueColor) uint32 {
	dr := int(a.R) - int(b.R)
	dg := int(a.G) - int(b.G)
	db := int(a.B) - int(b.B)
	return uint32(dr*dr + dg*dg + db*db)
}

// NearestAnsi16Index returns the 16-color palette index closest to c by
// squared RGB distance.
func NearestAnsi16Index(c TrueColor) uint8 {
	best := uint32(0xFFFFFFFF)
	bestIdx := uint8(0)
	for i, p := range ansi16Palette {
		if d := dist2(c, p); d < best {
			best = d
			bestIdx = uint8(i)
		}
	}
	return bestIdx
}

// TrueColorToXterm maps an RGB color onto the xterm 256 palette, choosing
// the nearer of the 6x6x6 cube cell and the 24-step grey ramp. Ties go to
// the cube.
func TrueColorToXterm(c TrueColor) uint8 {
	toCube := func(v uint8) uint8 {
		if v < 48 {
			return 0
		}
		if v < 114 {
			return 1
		}
		return (v - 35) / 40
	}

	r := toCube(c.R)
	g := toCube(c.G)
	b := toCube(c.B)
	cubeIndex := 16 + 36*r + 6*g + b
	cubeColor := TrueColor{cubeLevels[r], cubeLevels[g], cubeLevels[b]}

	greyAvg := (int(c.R) + int(c.G) + int(c.B)) / 3
	greyIndex := (greyAvg - 8) / 10
	if greyIndex < 0 {
		greyIndex = 0
	} else if greyIndex > 23 {
		greyIndex = 23
	}
	greyLevel := uint8(8 + greyIndex*10)
	greyColor := TrueColor{greyLevel, greyLevel, greyLevel}
	greyXterm := uint8(232 + greyIndex)

	if dist2(c, cubeColor) <= dist2(c, greyColor) {
		return cubeIndex
	}
	return greyXterm
}

// ToAnsi16 reduces any color to the 16-color palette.
func ToAnsi16(c Color) Ansi16 {
	switch v := c.(type) {
	case Ansi16:
		return v
	case Xterm256:
		if v.Index < 16 {
			return Ansi16{Index: v.Index}
		}
		return Ansi16{Index: NearestAnsi16Index(XtermToTrueColor(v.Index))}
	}
	return Ansi16{Index: NearestAnsi16Index(ToTrueColor(c))}
}

// ToXterm256 reduces any color to the 256-color palette.
func ToXterm256(c Color) Xterm256 {
	switch v := c.(type) {
	case Xterm256:
		return v
	case Ansi16:
		return Xterm256{Index: v.Index % 16}
	}
	return Xterm256{Index: TrueColorToXterm(ToTrueColor(c))}
}

// attributeCodes pairs each attribute with its SGR code, in emission order.
var attributeCodes = []struct {
	attr Attribute
	code int
}{
	{AttrBold, 1},
	{AttrDim, 2},
	{AttrItalic, 3},
	{AttrUnderline, 4},
	{AttrBlink, 5},
	{AttrBlink2, 6},
	{AttrReverse, 7},
	{AttrConceal, 8},
	{AttrStrike, 9},
	{AttrUnderline2, 21},
	{AttrFrame, 51},
	{AttrEncircle, 52},
	{AttrOverline, 53},
}

// Escape renders a style as an SGR escape sequence for the given color mode.
// Attribute codes come first, then foreground, then background. Returns the
// empty string when the mode is ModeNone or the style produces no codes.
func Escape(style Style, mode Mode) string {
	if mode == ModeNone {
		return ""
	}

	codes := make([]int, 0, 8)
	for _, ac := range attributeCodes {
		if style.Attrs.Has(ac.attr) {
			codes = append(codes, ac.code)
		}
	}

	addColor := func(c Color, background bool) {
		switch mode {
		case ModeAnsi16:
			a := ToAnsi16(c)
			bright := a.Index >= 8
			base := 30
			if background {
				base = 40
				if bright {
					base = 100
				}
			} else if bright {
				base = 90
			}
			codes = append(codes, base+int(a.Index%8))
		case ModeXterm256:
			x := ToXterm256(c)
			sel := 38
			if background {
				sel = 48
			}
			codes = append(codes, sel, 5, int(x.Index))
		case ModeTrueColor:
			rgb := ToTrueColor(c)
			sel := 38
			if background {
				sel = 48
			}
			codes = append(codes, sel, 2, int(rgb.R), int(rgb.G), int(rgb.B))
		}
	}

	if style.Foreground != nil {
		addColor(style.Foreground, false)
	}
	if style.Background != nil {
		addColor(style.Background, true)
	}

	if len(codes) == 0 {
		return ""
	}

	out := make([]byte, 0, 4+len(codes)*4)
	out = append(out, 0x1b, '[')
	for i, code := range codes {
		if i > 0 {
			out = append(out, ';')
		}
		out = strconv.AppendInt(out, int64(code), 10)
	}
	out = append(out, 'm')
	return string(out)
}
