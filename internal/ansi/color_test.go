package ansi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestEscape_NoneMode(t *testing.T) {
	style := Style{Foreground: Ansi16{Index: 1}, Attrs: AttrBold}
	assert.Empty(t, Escape(style, ModeNone))
}

func TestEscape_EmptyStyle(t *testing.T) {
	assert.Empty(t, Escape(Style{}, ModeTrueColor))
}

func TestEscape_BoldBlueAnsi16(t *testing.T) {
	style := Style{Foreground: Ansi16{Index: 4}, Attrs: AttrBold}
	assert.Equal(t, "\x1b[1;34m", Escape(style, ModeAnsi16))
}

func TestEscape_BrightForeground(t *testing.T) {
	style := Style{Foreground: Ansi16{Index: 9}}
	assert.Equal(t, "\x1b[91m", Escape(style, ModeAnsi16))
}

func TestEscape_BrightBackground(t *testing.T) {
	style := Style{Background: Ansi16{Index: 12}}
	assert.Equal(t, "\x1b[104m", Escape(style, ModeAnsi16))
}

func TestEscape_Xterm256(t *testing.T) {
	style := Style{Foreground: Xterm256{Index: 196}}
	assert.Equal(t, "\x1b[38;5;196m", Escape(style, ModeXterm256))
}

func TestEscape_TrueColor(t *testing.T) {
	style := Style{
		Foreground: TrueColor{R: 10, G: 20, B: 30},
		Background: TrueColor{R: 1, G: 2, B: 3},
	}
	assert.Equal(t, "\x1b[38;2;10;20;30;48;2;1;2;3m", Escape(style, ModeTrueColor))
}

func TestEscape_AttributeOrder(t *testing.T) {
	style := Style{Attrs: AttrOverline | AttrBold | AttrStrike}
	assert.Equal(t, "\x1b[1;9;53m", Escape(style, ModeAnsi16))
}

func TestXtermToTrueColor_Ansi16Range(t *testing.T) {
	assert.Equal(t, TrueColor{0, 0, 0}, XtermToTrueColor(0))
	assert.Equal(t, TrueColor{205, 0, 0}, XtermToTrueColor(1))
	assert.Equal(t, TrueColor{255, 255, 255}, XtermToTrueColor(15))
}

func TestXtermToTrueColor_GreyRamp(t *testing.T) {
	assert.Equal(t, TrueColor{8, 8, 8}, XtermToTrueColor(232))
	assert.Equal(t, TrueColor{238, 238, 238}, XtermToTrueColor(255))
}

func TestXtermToTrueColor_Cube(t *testing.T) {
	// 196 = 16 + 36*5: pure red cell
	assert.Equal(t, TrueColor{255, 0, 0}, XtermToTrueColor(196))
	// 21 = 16 + 5: pure blue cell
	assert.Equal(t, TrueColor{0, 0, 255}, XtermToTrueColor(21))
}

func TestTrueColorToXterm_CubeCorners(t *testing.T) {
	assert.Equal(t, uint8(196), TrueColorToXterm(TrueColor{255, 0, 0}))
	assert.Equal(t, uint8(46), TrueColorToXterm(TrueColor{0, 255, 0}))
	assert.Equal(t, uint8(21), TrueColorToXterm(TrueColor{0, 0, 255}))
}

func TestTrueColorToXterm_GreyPrefersRamp(t *testing.T) {
	got := TrueColorToXterm(TrueColor{128, 128, 128})
	assert.GreaterOrEqual(t, got, uint8(232))
}

func TestNearestAnsi16Index(t *testing.T) {
	assert.Equal(t, uint8(0), NearestAnsi16Index(TrueColor{0, 0, 0}))
	assert.Equal(t, uint8(9), NearestAnsi16Index(TrueColor{255, 10, 10}))
	assert.Equal(t, uint8(15), NearestAnsi16Index(TrueColor{250, 250, 250}))
}

func TestToAnsi16_MasksXtermLow(t *testing.T) {
	assert.Equal(t, Ansi16{Index: 7}, ToAnsi16(Xterm256{Index: 7}))
}

func TestMerge_Override(t *testing.T) {
	a := Style{Foreground: Ansi16{Index: 1}, Attrs: AttrBold}
	b := Style{Foreground: Ansi16{Index: 2}, Background: Ansi16{Index: 3}, Attrs: AttrUnderline}
	merged := a.Merge(b)
	assert.Equal(t, Ansi16{Index: 2}, merged.Foreground)
	assert.Equal(t, Ansi16{Index: 3}, merged.Background)
	assert.Equal(t, AttrBold|AttrUnderline, merged.Attrs)
}

// Property: the empty style is the identity of Merge on both sides.
func TestPropertyMerge_Identity(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		style := genStyle(t)
		assert.Equal(t, style, Style{}.Merge(style))
		assert.Equal(t, style, style.Merge(Style{}))
	})
}

// Property: Merge is associative.
func TestPropertyMerge_Associative(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a, b, c := genStyle(t), genStyle(t), genStyle(t)
		assert.Equal(t, a.Merge(b).Merge(c), a.Merge(b.Merge(c)))
	})
}

// Property: a truecolor round trip through the xterm palette stays within
// the palette's discretisation bound of 75 per channel.
func TestPropertyPaletteRoundTripBound(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		rgb := TrueColor{
			R: uint8(rapid.IntRange(0, 255).Draw(t, "r")),
			G: uint8(rapid.IntRange(0, 255).Draw(t, "g")),
			B: uint8(rapid.IntRange(0, 255).Draw(t, "b")),
		}
		back := XtermToTrueColor(TrueColorToXterm(rgb))
		assert.LessOrEqual(t, absDiff(rgb.R, back.R), 75)
		assert.LessOrEqual(t, absDiff(rgb.G, back.G), 75)
		assert.LessOrEqual(t, absDiff(rgb.B, back.B), 75)
	})
}

func absDiff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}

func genStyle(t *rapid.T) Style {
	style := Style{
		Attrs: Attribute(rapid.IntRange(0, int(AttrOverline)<<1-1).Draw(t, "attrs")),
	}
	if rapid.Bool().Draw(t, "hasFg") {
		style.Foreground = Ansi16{Index: uint8(rapid.IntRange(0, 15).Draw(t, "fg"))}
	}
	if rapid.Bool().Draw(t, "hasBg") {
		style.Background = Xterm256{Index: uint8(rapid.IntRange(0, 255).Draw(t, "bg"))}
	}
	return style
}

func TestNamedColor(t *testing.T) {
	c, ok := NamedColor("red")
	assert.True(t, ok)
	assert.Equal(t, Ansi16{Index: 1}, c)

	c, ok = NamedColor("dark_sea_green")
	assert.True(t, ok)
	assert.Equal(t, Xterm256{Index: 108}, c)

	// hyphen and compact variants resolve to the same color
	hyphen, ok := NamedColor("dark-sea-green")
	assert.True(t, ok)
	assert.Equal(t, c, hyphen)
	compact, ok := NamedColor("darkseagreen")
	assert.True(t, ok)
	assert.Equal(t, c, compact)

	_, ok = NamedColor("not_a_color")
	assert.False(t, ok)
}
