package colorcode

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cory-johannsen/portal/internal/ansi"
)

func red() ansi.Color {
	c, _ := ansi.NamedColor("red")
	return c
}

func TestToText_PlainPassThrough(t *testing.T) {
	text := ToText("hello world", nil)
	assert.Equal(t, "hello world", text.Plain())
	assert.Empty(t, text.Spans())
}

func TestToText_EscapedAt(t *testing.T) {
	text := ToText("user@@host", nil)
	assert.Equal(t, "user@host", text.Plain())
}

func TestToText_TrailingAtIsLiteral(t *testing.T) {
	text := ToText("dangling@", nil)
	assert.Equal(t, "dangling@", text.Plain())
}

func TestToText_BoldRedAndReset(t *testing.T) {
	text := ToText("@Rhi@n there", nil)
	assert.Equal(t, "hi there", text.Plain())

	spans := text.Spans()
	assert.Len(t, spans, 1)
	assert.Equal(t, 0, spans[0].Start)
	assert.Equal(t, 2, spans[0].End)
	assert.Equal(t, red(), spans[0].Style.Foreground)
	assert.True(t, spans[0].Style.Attrs.Has(ansi.AttrBold))
}

func TestToText_BackgroundDigit(t *testing.T) {
	text := ToText("@1on blue@n", nil)
	spans := text.Spans()
	assert.Len(t, spans, 1)
	blue, _ := ansi.NamedColor("blue")
	assert.Equal(t, blue, spans[0].Style.Background)
	assert.Nil(t, spans[0].Style.Foreground)
}

func TestToText_Attributes(t *testing.T) {
	text := ToText("@u@ldecorated", nil)
	spans := text.Spans()
	assert.Len(t, spans, 1)
	assert.True(t, spans[0].Style.Attrs.Has(ansi.AttrUnderline))
	assert.True(t, spans[0].Style.Attrs.Has(ansi.AttrBlink))
}

func TestToText_ExpandedRGB(t *testing.T) {
	text := ToText("@<255, 128, 0>lava", nil)
	spans := text.Spans()
	assert.Len(t, spans, 1)
	assert.Equal(t, ansi.TrueColor{R: 255, G: 128, B: 0}, spans[0].Style.Foreground)
}

func TestToText_ExpandedIndex(t *testing.T) {
	low := ToText("@<3>x", nil)
	assert.Equal(t, ansi.Ansi16{Index: 3}, low.Spans()[0].Style.Foreground)

	high := ToText("@<196>x", nil)
	assert.Equal(t, ansi.Xterm256{Index: 196}, high.Spans()[0].Style.Foreground)
}

func TestToText_ExpandedName(t *testing.T) {
	text := ToText("@<Dark Sea Green>moss", nil)
	assert.Equal(t, ansi.Xterm256{Index: 108}, text.Spans()[0].Style.Foreground)
}

func TestToText_ExpandedUnknownFallsBackToBlack(t *testing.T) {
	text := ToText("@<mystery>x", nil)
	black, _ := ansi.NamedColor("black")
	assert.Equal(t, black, text.Spans()[0].Style.Foreground)
}

func TestToText_ExpandedBadRGBFallsBackToBlack(t *testing.T) {
	black, _ := ansi.NamedColor("black")
	for _, src := range []string{"@<1,2>x", "@<300,0,0>x", "@<a,b,c>x", "@<>x"} {
		text := ToText(src, nil)
		assert.Equal(t, black, text.Spans()[0].Style.Foreground, "src=%s", src)
	}
}

func TestToText_ExpandedUnterminatedIgnored(t *testing.T) {
	text := ToText("@<255,0,0 no close", nil)
	assert.Equal(t, "255,0,0 no close", text.Plain())
	assert.Empty(t, text.Spans())
}

func TestToText_UserColor(t *testing.T) {
	custom := map[uint8]string{7: "green1"}
	text := ToText("@[7grass", custom)
	assert.Equal(t, "grass", text.Plain())
	assert.Equal(t, ansi.Xterm256{Index: 46}, text.Spans()[0].Style.Foreground)
}

func TestToText_UserColorUnknownIndexIsBlack(t *testing.T) {
	text := ToText("@[250x", nil)
	black, _ := ansi.NamedColor("black")
	assert.Equal(t, black, text.Spans()[0].Style.Foreground)
}

func TestToText_UserColorWithoutDigitsSkipsBracket(t *testing.T) {
	text := ToText("@[oops", nil)
	assert.Equal(t, "oops", text.Plain())
	assert.Empty(t, text.Spans())
}

func TestProcess_RendersAtMode(t *testing.T) {
	out := Process("@Rhi@n there", ansi.ModeAnsi16, nil)
	assert.Equal(t, "\x1b[1;31mhi\x1b[0m there", out)
}

func TestProcess_NoneModeStripsCodes(t *testing.T) {
	out := Process("@Rhi@n there", ansi.ModeNone, nil)
	assert.Equal(t, "hi there", out)
}

func TestCountColors(t *testing.T) {
	assert.Equal(t, 0, CountColors("plain"))
	assert.Equal(t, 4, CountColors("@Rhi@n"))
	// @@ collapses to one literal byte
	assert.Equal(t, 1, CountColors("a@@b"))
}

func TestIsColorChar(t *testing.T) {
	assert.True(t, IsColorChar('n'))
	assert.True(t, IsColorChar('R'))
	assert.True(t, IsColorChar('u'))
	assert.False(t, IsColorChar('x'))
	assert.False(t, IsColorChar('z'))
}

func TestToText_RandomColorProducesSpan(t *testing.T) {
	text := ToText("@xdice", nil)
	assert.Equal(t, "dice", text.Plain())
	spans := text.Spans()
	assert.Len(t, spans, 1)
	assert.NotNil(t, spans[0].Style.Foreground)
}
