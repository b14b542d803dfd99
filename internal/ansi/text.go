package ansi

import "strings"

// Span applies a style to the half-open byte range [Start, End) of a text.
// Spans may overlap; at each position the effective style is the merge of
// all covering spans in insertion order.
type Span struct {
	Start int
	End   int
	Style Style
}

// Segment is a maximal run of bytes sharing one effective style. Styled
// reports whether any span covered the run.
type Segment struct {
	Text   string
	Style  Style
	Styled bool
}

// Text is a plain string with styled spans layered over it.
type Text struct {
	plain strings.Builder
	spans []Span
}

// NewText creates a Text with the given plain content and no spans.
func NewText(plain string) *Text {
	t := &Text{}
	t.plain.WriteString(plain)
	return t
}

// Plain returns the unstyled text.
func (t *Text) Plain() string {
	return t.plain.String()
}

// Spans returns the styled spans in insertion order.
func (t *Text) Spans() []Span {
	return t.spans
}

// Append adds text to the end. When styled is true the appended range is
// covered by a new span carrying style.
func (t *Text) Append(text string, style Style, styled bool) {
	start := t.plain.Len()
	t.plain.WriteString(text)
	if styled {
		t.spans = append(t.spans, Span{Start: start, End: t.plain.Len(), Style: style})
	}
}

// AddSpan layers a span over the existing text.
func (t *Text) AddSpan(span Span) {
	t.spans = append(t.spans, span)
}

// AddStyle layers style over [start, end). Empty or inverted ranges are
// ignored.
func (t *Text) AddStyle(style Style, start, end int) {
	if start >= end {
		return
	}
	t.spans = append(t.spans, Span{Start: start, End: end, Style: style})
}

type appliedStyle struct {
	style  Style
	styled bool
}

// Segments computes the effective style per byte by merging covering spans
// in insertion order, then coalesces adjacent equal styles into maximal
// runs.
func (t *Text) Segments() []Segment {
	plain := t.plain.String()
	if len(plain) == 0 {
		return nil
	}

	perByte := make([]appliedStyle, len(plain))
	for _, span := range t.spans {
		start := min(span.Start, len(plain))
		end := min(span.End, len(plain))
		for i := start; i < end; i++ {
			if perByte[i].styled {
				perByte[i].style = perByte[i].style.Merge(span.Style)
			} else {
				perByte[i] = appliedStyle{style: span.Style, styled: true}
			}
		}
	}

	var segments []Segment
	runStart := 0
	current := perByte[0]
	for i := 1; i < len(plain); i++ {
		if perByte[i] != current {
			segments = append(segments, Segment{
				Text:   plain[runStart:i],
				Style:  current.style,
				Styled: current.styled,
			})
			runStart = i
			current = perByte[i]
		}
	}
	segments = append(segments, Segment{
		Text:   plain[runStart:],
		Style:  current.style,
		Styled: current.styled,
	})
	return segments
}

const reset = "\x1b[0m"

// Render emits the text with escape sequences for the given color mode.
// Each styled segment is prefixed with its escape and followed by a reset
// when the mode emits escapes at all.
func (t *Text) Render(mode Mode) string {
	segments := t.Segments()
	if len(segments) == 0 {
		return ""
	}

	var out strings.Builder
	for _, segment := range segments {
		if segment.Styled {
			out.WriteString(Escape(segment.Style, mode))
			out.WriteString(segment.Text)
			if mode != ModeNone {
				out.WriteString(reset)
			}
		} else {
			out.WriteString(segment.Text)
		}
	}
	return out.String()
}
