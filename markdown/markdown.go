// Package markdown reduces the light Markdown that language models wrap
// their answers in to plain text, one line at a time.
package markdown

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	reBold             = regexp.MustCompile(`\*\*(.+?)\*\*`)
	reBoldUnderscore   = regexp.MustCompile(`__(.+?)__`)
	reItalic           = regexp.MustCompile(`\*([^*\s][^*]*)\*`)
	reItalicUnderscore = regexp.MustCompile(`(^|\W)_([^_\s][^_]*)_(\W|$)`)
	reInlineCode       = regexp.MustCompile("`([^`]+)`")
	reLink             = regexp.MustCompile(`\[(.*?)\]\((.*?)\)(\^)?`)
	reHeading          = regexp.MustCompile(`^#{1,6}\s+`)
	reQuote            = regexp.MustCompile(`^>\s?`)
	reBullet           = regexp.MustCompile(`^[-*+]\s+`)
	reOrderedList      = regexp.MustCompile(`^\d+[.)]\s+`)
)

// Plain strips block markers and inline formatting from every line of md.
// Fenced code blocks lose their fences; their content is kept as written.
func Plain(md string) string {
	lines := strings.Split(md, "\n")
	out := make([]string, 0, len(lines))
	inCode := false
	for _, raw := range lines {
		line := strings.TrimRight(raw, "\r")
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inCode = !inCode
			continue
		}
		if inCode {
			out = append(out, line)
			continue
		}
		out = append(out, StripLine(line))
	}
	return strings.Join(out, "\n")
}

// StripLine removes a heading, quote, bullet or list-number prefix and then
// the inline formatting of a single line.
func StripLine(line string) string {
	s := strings.TrimSpace(line)
	s = reHeading.ReplaceAllString(s, "")
	s = reQuote.ReplaceAllString(s, "")
	s = reBullet.ReplaceAllString(s, "")
	s = reOrderedList.ReplaceAllString(s, "")
	return StripInline(s)
}

// StripInline replaces links with their text and drops emphasis and code
// markers. Text inside backticks is kept verbatim.
func StripInline(s string) string {
	s = reLink.ReplaceAllString(s, "$1")

	// Park inline code so emphasis patterns cannot reach into it.
	var code []string
	s = reInlineCode.ReplaceAllStringFunc(s, func(m string) string {
		match := reInlineCode.FindStringSubmatch(m)
		code = append(code, match[1])
		return "\x00IC" + strconv.Itoa(len(code)-1) + "\x00"
	})

	s = reBold.ReplaceAllString(s, "$1")
	s = reBoldUnderscore.ReplaceAllString(s, "$1")
	s = reItalic.ReplaceAllString(s, "$1")
	s = reItalicUnderscore.ReplaceAllString(s, "$1$2$3")

	for i, c := range code {
		s = strings.Replace(s, "\x00IC"+strconv.Itoa(i)+"\x00", c, 1)
	}
	return s
}
