// Package colorcode transliterates legacy @-prefixed color markup into
// styled text for the ansi renderer. The markup is the classic MUD scheme:
// @r for red foreground, @R for bold red, @1 for a blue background, @n to
// reset, @<...> for extended palette colors, and @[N for server-defined
// color slots.
package colorcode

import (
	"math/rand"
	"strconv"
	"strings"

	"github.com/cory-johannsen/portal/internal/ansi"
)

// randomCodes are the codes @x picks from, uniformly.
const randomCodes = "bgcrmywBGCRMWY"

type builder struct {
	text   *ansi.Text
	buffer strings.Builder
	style  ansi.Style
	styled bool
	custom map[uint8]string
}

// flush appends any accumulated plain bytes as a run carrying the style
// that was current while they were read.
func (b *builder) flush() {
	if b.buffer.Len() == 0 {
		return
	}
	b.text.Append(b.buffer.String(), b.style, b.styled)
	b.buffer.Reset()
}

func (b *builder) ensureStyle() {
	b.styled = true
}

func (b *builder) addAttribute(attr ansi.Attribute) {
	b.flush()
	b.ensureStyle()
	b.style.Attrs |= attr
}

func black() ansi.Color {
	c, _ := ansi.NamedColor("black")
	return c
}

func baseColor(code byte) (ansi.Color, bool) {
	var name string
	switch code {
	case 'd', '0':
		name = "black"
	case 'b', '1':
		name = "blue"
	case 'g', '2':
		name = "green"
	case 'c', '3':
		name = "cyan"
	case 'r', '4':
		name = "red"
	case 'm', '5':
		name = "magenta"
	case 'y', '6':
		name = "yellow"
	case 'w', '7':
		name = "white"
	default:
		return nil, false
	}
	c, _ := ansi.NamedColor(name)
	return c, true
}

func (b *builder) setBaseColor(code byte, bold, background bool) {
	color, ok := baseColor(code)
	if !ok {
		return
	}
	b.flush()
	b.ensureStyle()
	if background {
		b.style.Background = color
	} else {
		b.style.Foreground = color
	}
	if bold {
		b.style.Attrs |= ansi.AttrBold
	}
}

func (b *builder) setUserColor(index int) {
	b.flush()
	b.ensureStyle()
	color := black()
	if name, ok := b.custom[uint8(index)]; ok {
		if named, found := ansi.NamedColor(name); found {
			color = named
		}
	}
	b.style.Foreground = color
}

// setExpandedColor resolves an @<...> body: an r,g,b triple, a palette
// index, or a color name. Anything unresolvable falls back to black.
func (b *builder) setExpandedColor(sub string) {
	b.flush()
	b.ensureStyle()

	setBlack := func() {
		b.style.Foreground = black()
	}

	sub = strings.TrimSpace(sub)
	if sub == "" {
		setBlack()
		return
	}

	if strings.Contains(sub, ",") {
		parts := strings.Split(sub, ",")
		if len(parts) != 3 {
			setBlack()
			return
		}
		var channels [3]uint8
		for i, part := range parts {
			v, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil || v < 0 || v > 255 {
				setBlack()
				return
			}
			channels[i] = uint8(v)
		}
		b.style.Foreground = ansi.TrueColor{R: channels[0], G: channels[1], B: channels[2]}
		return
	}

	if index, err := strconv.Atoi(sub); err == nil {
		if index < 0 || index > 255 {
			setBlack()
			return
		}
		if index < 16 {
			b.style.Foreground = ansi.Ansi16{Index: uint8(index)}
		} else {
			b.style.Foreground = ansi.Xterm256{Index: uint8(index)}
		}
		return
	}

	name := strings.ToLower(sub)
	name = strings.ReplaceAll(name, " ", "_")
	if color, ok := ansi.NamedColor(name); ok {
		b.style.Foreground = color
	} else {
		setBlack()
	}
}

// ToText transliterates @-prefixed markup into styled text. custom maps
// server-defined @[N color slots to color names; it may be nil.
func ToText(src string, custom map[uint8]string) *ansi.Text {
	b := &builder{text: &ansi.Text{}, custom: custom}

	pos := 0
	for {
		if pos >= len(src) {
			b.flush()
			break
		}
		if src[pos] != '@' {
			b.buffer.WriteByte(src[pos])
			pos++
			continue
		}
		pos++

		if pos >= len(src) {
			// trailing @ is a literal
			b.buffer.WriteByte('@')
			b.flush()
			break
		}

		code := src[pos]
		switch {
		case code == '@':
			b.buffer.WriteByte('@')
			pos++
		case code == 'n':
			b.flush()
			b.style = ansi.Style{}
			b.styled = false
			pos++
		case code == 'd' || code == 'b' || code == 'g' || code == 'c' ||
			code == 'r' || code == 'm' || code == 'y' || code == 'w':
			b.setBaseColor(code, false, false)
			pos++
		case code == 'D' || code == 'B' || code == 'G' || code == 'C' ||
			code == 'R' || code == 'M' || code == 'Y' || code == 'W':
			b.setBaseColor(code+'a'-'A', true, false)
			pos++
		case code >= '0' && code <= '7':
			b.setBaseColor(code, false, true)
			pos++
		case code == 'l':
			b.addAttribute(ansi.AttrBlink)
			pos++
		case code == 'o':
			b.addAttribute(ansi.AttrBold)
			pos++
		case code == 'u':
			b.addAttribute(ansi.AttrUnderline)
			pos++
		case code == 'e':
			b.addAttribute(ansi.AttrReverse)
			pos++
		case code == 'x':
			picked := randomCodes[rand.Intn(len(randomCodes))]
			lower := picked
			bold := false
			if picked >= 'A' && picked <= 'Z' {
				lower = picked + 'a' - 'A'
				bold = true
			}
			b.setBaseColor(lower, bold, false)
			pos++
		case code == '[':
			start := pos + 1
			end := start
			for end < len(src) && src[end] >= '0' && src[end] <= '9' {
				end++
			}
			if start == end {
				// no digits: emit nothing, skip the bracket
				pos++
				continue
			}
			index, _ := strconv.Atoi(src[start:end])
			pos = end
			b.setUserColor(index)
		case code == '<':
			start := pos + 1
			end := strings.IndexByte(src[start:], '>')
			if end < 0 {
				// unterminated: ignore the marker
				pos++
				continue
			}
			b.setExpandedColor(src[start : start+end])
			pos = start + end + 1
		default:
			// unknown code: the @ is dropped, the byte itself passes through
		}
	}

	return b.text
}

// Process transliterates markup and renders it at the given color mode.
func Process(src string, mode ansi.Mode, custom map[uint8]string) string {
	return ToText(src, custom).Render(mode)
}

// CountColors returns the number of markup bytes in src, defined as the
// difference between the raw length and the transliterated plain length.
func CountColors(src string) int {
	return len(src) - len(ToText(src, nil).Plain())
}

// IsColorChar reports whether c is in the legacy color-character set
// n, b/B, g/G, m/M, r/R, y/Y, w/W, k/K, 0 and 2-7, l, u, o, e. The set is
// fixed and is not the set of codes ToText handles: c/C, d/D, 1, x, [ and
// < are not in it, while k/K are.
func IsColorChar(c byte) bool {
	switch c {
	case 'n', 'b', 'B', 'g', 'G', 'm', 'M', 'r', 'R', 'y', 'Y', 'w', 'W',
		'k', 'K', '0', '2', '3', '4', '5', '6', '7', 'l', 'u', 'o', 'e':
		return true
	}
	return false
}
