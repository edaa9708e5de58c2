package prettymd

import "strings"

// EscapeContext describes where an escaped text run is written.
type EscapeContext struct {
	// LineStart is set when the run begins a line (after any container prefix
	// or block marker), where block-level markers would be recognized.
	LineStart bool
	// Heading is set inside an ATX heading, where a trailing '#' run closes it.
	Heading bool
}

// maxListDigits is the longest digit run CommonMark accepts as an ordered list marker.
const maxListDigits = 9

// Escape backslash-escapes the characters of s that a CommonMark parser would
// otherwise read as markup at this position. The decision for each character
// depends only on the character, its neighbours within s and ctx.
//
// A '!' is left bare; only a following link can make it markup, and the
// Printer escapes it there.
//
// Unescape(Escape(s, ctx)) == s for every s and ctx.
func Escape(s string, ctx EscapeContext) string {
	if !needsEscape(s, ctx) {
		return s
	}
	return string(appendEscaped(make([]byte, 0, len(s)+8), s, ctx))
}

func needsEscape(s string, ctx EscapeContext) bool {
	if ctx.LineStart || strings.ContainsRune(s, '\n') {
		return true
	}
	for i := 0; i < len(s); i++ {
		if escapeAt(s, i, ctx.Heading) {
			return true
		}
	}
	return false
}

func appendEscaped(dst []byte, s string, ctx EscapeContext) []byte {
	lineStart := ctx.LineStart
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\n' {
			dst = append(dst, c)
			lineStart = true
			continue
		}
		if lineStart {
			if c == ' ' || c == '\t' {
				dst = append(dst, c)
				continue
			}
			lineStart = false
			switch c {
			case '#', '>', '-', '+', '=', '~':
				dst = append(dst, '\\', c)
				continue
			}
			if isDigit(c) {
				j := i
				for j < len(s) && isDigit(s[j]) {
					j++
				}
				if j-i <= maxListDigits && j < len(s) && (s[j] == '.' || s[j] == ')') {
					dst = append(dst, s[i:j]...)
					dst = append(dst, '\\', s[j])
					i = j
					continue
				}
			}
		}
		if escapeAt(s, i, ctx.Heading) {
			dst = append(dst, '\\')
		}
		dst = append(dst, c)
	}
	return dst
}

// escapeAt reports whether s[i] needs a backslash anywhere on a line.
func escapeAt(s string, i int, heading bool) bool {
	switch s[i] {
	case '\\', '`', '*', '[', ']', '<', '|':
		return true
	case '_':
		return !(i > 0 && isAlnum(s[i-1]) && i+1 < len(s) && isAlnum(s[i+1]))
	case '&':
		return entityLike(s[i+1:])
	case '#':
		return heading && (i == 0 || s[i-1] == ' ' || s[i-1] == '\t')
	}
	return false
}

// entityLike reports whether s (the text after '&') would be read as an
// entity or numeric character reference.
func entityLike(s string) bool {
	const maxEntity = 32
	j := 0
	for j < len(s) && j < maxEntity && (isAlnum(s[j]) || s[j] == '#') {
		j++
	}
	return j > 0 && j < len(s) && s[j] == ';'
}

// Unescape removes the backslash from every backslash escape of an ASCII
// punctuation character.
func Unescape(s string) string {
	if !strings.ContainsRune(s, '\\') {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) && isASCIIPunct(s[i+1]) {
			i++
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// appendLinkDest writes a link destination, switching to the <...> form when
// the bare form cannot carry it.
func appendLinkDest(dst []byte, url string) []byte {
	angle := url == "" || url[0] == '<'
	for i := 0; i < len(url) && !angle; i++ {
		c := url[i]
		angle = c <= ' ' || c == 0x7f || c == '(' || c == ')'
	}
	if angle {
		dst = append(dst, '<')
	}
	for i := 0; i < len(url); i++ {
		c := url[i]
		switch {
		case c == '\n':
			dst = append(dst, "%0A"...)
			continue
		case c == '\\', angle && (c == '<' || c == '>'):
			dst = append(dst, '\\')
		case c == '&' && entityLike(url[i+1:]):
			dst = append(dst, '\\')
		}
		dst = append(dst, c)
	}
	if angle {
		dst = append(dst, '>')
	}
	return dst
}

// appendLinkTitle writes a double-quoted link title.
func appendLinkTitle(dst []byte, title string) []byte {
	dst = append(dst, '"')
	for i := 0; i < len(title); i++ {
		c := title[i]
		if c == '"' || c == '\\' || (c == '&' && entityLike(title[i+1:])) {
			dst = append(dst, '\\')
		}
		dst = append(dst, c)
	}
	return append(dst, '"')
}

// appendInfo writes a fenced code block info string.
func appendInfo(dst []byte, info string) []byte {
	for i := 0; i < len(info); i++ {
		c := info[i]
		if c == '\\' || (c == '&' && entityLike(info[i+1:])) {
			dst = append(dst, '\\')
		}
		dst = append(dst, c)
	}
	return dst
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isAlnum(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isASCIIPunct(c byte) bool {
	return (c >= '!' && c <= '/') || (c >= ':' && c <= '@') || (c >= '[' && c <= '`') || (c >= '{' && c <= '~')
}

// longestRun returns the length of the longest run of c in s.
func longestRun(s string, c byte) int {
	longest, run := 0, 0
	for i := 0; i < len(s); i++ {
		if s[i] != c {
			run = 0
			continue
		}
		run++
		longest = max(longest, run)
	}
	return longest
}
