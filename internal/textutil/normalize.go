// Package textutil converts marked-up or binary-origin text into clean,
// bounded plain text.
package textutil

import (
	"html"
	"strings"
	"unicode"
)

// TruncationMarker is appended whenever text is cut to fit a budget.
const TruncationMarker = "\n... [truncated]"

// NormalizeWhitespace collapses runs of spaces while preserving newlines.
func NormalizeWhitespace(text string) string {
	var result strings.Builder
	lastWasSpace := false

	for _, r := range text {
		if unicode.IsSpace(r) {
			if !lastWasSpace {
				if r == '\n' {
					result.WriteRune('\n')
					lastWasSpace = false
				} else {
					result.WriteRune(' ')
					lastWasSpace = true
				}
			} else if r == '\n' {
				// A newline still wins over a pending space run.
				result.WriteRune('\n')
				lastWasSpace = false
			}
		} else {
			result.WriteRune(r)
			lastWasSpace = false
		}
	}

	return result.String()
}

// StripHTML removes tags, scripts, and styles, unescapes entities, and
// normalizes the remaining whitespace. Block-level closers become newlines
// so paragraph structure survives.
func StripHTML(markup string) string {
	if markup == "" {
		return ""
	}

	lower := strings.ToLower(markup)
	var sb strings.Builder
	i := 0
	for i < len(markup) {
		if markup[i] != '<' {
			sb.WriteByte(markup[i])
			i++
			continue
		}

		// Drop script/style bodies entirely.
		if strings.HasPrefix(lower[i:], "<script") {
			if end := strings.Index(lower[i:], "</script>"); end >= 0 {
				i += end + len("</script>")
				continue
			}
			break
		}
		if strings.HasPrefix(lower[i:], "<style") {
			if end := strings.Index(lower[i:], "</style>"); end >= 0 {
				i += end + len("</style>")
				continue
			}
			break
		}

		end := strings.IndexByte(markup[i:], '>')
		if end < 0 {
			break
		}
		tag := lower[i+1 : i+end]
		if isBlockTag(tag) {
			sb.WriteByte('\n')
		}
		i += end + 1
	}

	text := html.UnescapeString(sb.String())
	text = strings.ReplaceAll(text, "\x00", "")
	text = NormalizeWhitespace(text)
	return CollapseBlankLines(strings.TrimSpace(text))
}

// CollapseBlankLines reduces runs of blank lines to a single paragraph break.
func CollapseBlankLines(text string) string {
	for strings.Contains(text, "\n\n\n") {
		text = strings.ReplaceAll(text, "\n\n\n", "\n\n")
	}
	return text
}

// Truncate hard-caps text at maxChars, appending the truncation marker.
// The marker counts against the cap, so the result never exceeds maxChars.
// Caps too small to fit the marker get a bare cut. The cut lands on a rune
// boundary.
func Truncate(text string, maxChars int) string {
	if maxChars <= 0 || len(text) <= maxChars {
		return text
	}
	cut := maxChars - len(TruncationMarker)
	marker := TruncationMarker
	if cut <= 0 {
		cut = maxChars
		marker = ""
	}
	for cut > 0 && !isRuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + marker
}

// Clamp bounds a secondary free-text field so one oversized entry cannot
// dominate a section. Unlike Truncate it tries to break at a word boundary.
func Clamp(text string, maxChars int) string {
	if maxChars <= 0 || len(text) <= maxChars {
		return text
	}
	cut := maxChars
	for cut > 0 && !isRuneStart(text[cut]) {
		cut--
	}
	clipped := text[:cut]
	if lastSpace := strings.LastIndex(clipped, " "); lastSpace > maxChars/2 {
		clipped = clipped[:lastSpace]
	}
	return clipped + "..."
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

func isBlockTag(tag string) bool {
	tag = strings.TrimPrefix(tag, "/")
	if idx := strings.IndexAny(tag, " \t\n/"); idx >= 0 {
		tag = tag[:idx]
	}
	switch tag {
	case "p", "div", "br", "li", "ul", "ol", "tr", "table",
		"h1", "h2", "h3", "h4", "h5", "h6", "blockquote", "section", "article":
		return true
	}
	return false
}
