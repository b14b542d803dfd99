package ansi

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRender_Xterm256Span(t *testing.T) {
	text := NewText("hi")
	text.AddStyle(Style{Foreground: Xterm256{Index: 196}}, 0, 2)
	assert.Equal(t, "\x1b[38;5;196mhi\x1b[0m", text.Render(ModeXterm256))
}

func TestRender_NoneModeDropsEscapes(t *testing.T) {
	text := NewText("hi")
	text.AddStyle(Style{Foreground: Xterm256{Index: 196}}, 0, 2)
	assert.Equal(t, "hi", text.Render(ModeNone))
}

func TestRender_UnstyledPassThrough(t *testing.T) {
	text := NewText("plain text")
	assert.Equal(t, "plain text", text.Render(ModeTrueColor))
}

func TestRender_Empty(t *testing.T) {
	text := &Text{}
	assert.Empty(t, text.Render(ModeAnsi16))
}

func TestSegments_OverlappingSpansMerge(t *testing.T) {
	text := NewText("abcd")
	text.AddStyle(Style{Foreground: Ansi16{Index: 1}}, 0, 3)
	text.AddStyle(Style{Attrs: AttrBold}, 2, 4)

	segments := text.Segments()
	assert.Len(t, segments, 3)

	assert.Equal(t, "ab", segments[0].Text)
	assert.Equal(t, Style{Foreground: Ansi16{Index: 1}}, segments[0].Style)

	assert.Equal(t, "c", segments[1].Text)
	assert.Equal(t, Style{Foreground: Ansi16{Index: 1}, Attrs: AttrBold}, segments[1].Style)

	assert.Equal(t, "d", segments[2].Text)
	assert.Equal(t, Style{Attrs: AttrBold}, segments[2].Style)
}

func TestSegments_LaterSpanOverridesColor(t *testing.T) {
	text := NewText("xy")
	text.AddStyle(Style{Foreground: Ansi16{Index: 1}}, 0, 2)
	text.AddStyle(Style{Foreground: Ansi16{Index: 2}}, 0, 2)

	segments := text.Segments()
	assert.Len(t, segments, 1)
	assert.Equal(t, Style{Foreground: Ansi16{Index: 2}}, segments[0].Style)
}

func TestSegments_SpanBeyondTextClamped(t *testing.T) {
	text := NewText("ab")
	text.AddStyle(Style{Attrs: AttrBold}, 1, 99)

	segments := text.Segments()
	assert.Len(t, segments, 2)
	assert.Equal(t, "b", segments[1].Text)
	assert.True(t, segments[1].Styled)
}

func TestAppend_StyledAndPlain(t *testing.T) {
	text := &Text{}
	text.Append("hello ", Style{}, false)
	text.Append("world", Style{Foreground: Ansi16{Index: 4}}, true)

	assert.Equal(t, "hello world", text.Plain())
	assert.Len(t, text.Spans(), 1)
	assert.Equal(t, 6, text.Spans()[0].Start)
	assert.Equal(t, 11, text.Spans()[0].End)
}

func TestAddStyle_IgnoresInvertedRange(t *testing.T) {
	text := NewText("abc")
	text.AddStyle(Style{Attrs: AttrBold}, 2, 2)
	text.AddStyle(Style{Attrs: AttrBold}, 3, 1)
	assert.Empty(t, text.Spans())
}
