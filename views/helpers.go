package views

import (
	"net/url"
	"strconv"
	"strings"
)

// JoinTags formats a tag slice as a comma-separated string.
func JoinTags(tags []string) string {
	return strings.Join(tags, ", ")
}

// SafeURL returns u when it is an absolute http(s) URL and "#" otherwise,
// so untrusted values never become javascript: links.
func SafeURL(u string) string {
	parsed, err := url.Parse(strings.TrimSpace(u))
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return "#"
	}
	return parsed.String()
}

// Plural renders n with word, adding "s" unless n is one.
func Plural(n int, word string) string {
	s := strconv.Itoa(n) + " " + word
	if n != 1 {
		s += "s"
	}
	return s
}
