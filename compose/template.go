package compose

import (
	"bytes"
	"errors"
	"regexp"
	"slices"
	"strings"

	"golang.org/x/net/html"
)

// ErrEmptyTemplate is returned by Parse for a blank template.
var ErrEmptyTemplate = errors.New("compose: empty template")

// Anchor names a fragment insertion point.
type Anchor string

const (
	// AnchorStyle sits immediately before </head>.
	AnchorStyle Anchor = "head-end"
	// AnchorStory sits immediately after the opening <amp-story> tag, and
	// only exists when that tag is directly followed by the analytics element.
	AnchorStory Anchor = "story-start"
)

const (
	headTag      = "head"
	storyTag     = "amp-story"
	analyticsTag = "amp-story-auto-analytics"
)

var markerPattern = regexp.MustCompile(`\{\{([A-Za-z0-9_]+)\}\}`)

type nodeKind uint8

const (
	textNode nodeKind = iota
	tokenNode
	anchorNode
)

// escapeMode is how a substituted value is encoded for the place its marker
// sits in.
type escapeMode uint8

const (
	// escapeNone leaves style blocks and comments untouched.
	escapeNone escapeMode = iota
	// escapeHTML covers element text and attribute values.
	escapeHTML
	// escapeScript covers script bodies such as JSON-LD string literals.
	escapeScript
)

type node struct {
	kind   nodeKind
	text   string // literal text, or the marker as written for tokens
	token  Token
	anchor Anchor
	escape escapeMode
}

// Template is a parsed master template: literal text, token references and
// anchor positions, in document order. A Template is immutable and safe to
// render concurrently.
type Template struct {
	nodes   []node
	tokens  []Token
	anchors []Anchor
	size    int
}

// Parse tokenizes src once. Token markers may appear anywhere, including in
// attribute values. Anchors are located by tag, so case and attribute
// variations in <head> or <amp-story> are tolerated.
func Parse(src string) (*Template, error) {
	if strings.TrimSpace(src) == "" {
		return nil, ErrEmptyTemplate
	}

	t := &Template{size: len(src)}
	modes := locateModes(src)
	pos := 0
	for _, c := range locateAnchors(src) {
		t.appendText(src[pos:c.at], pos, modes)
		t.nodes = append(t.nodes, node{kind: anchorNode, anchor: c.anchor})
		t.anchors = append(t.anchors, c.anchor)
		pos = c.at
	}
	t.appendText(src[pos:], pos, modes)
	return t, nil
}

func (t *Template) appendText(s string, base int, modes []modeSpan) {
	last := 0
	for _, m := range markerPattern.FindAllStringSubmatchIndex(s, -1) {
		if m[0] > last {
			t.nodes = append(t.nodes, node{kind: textNode, text: s[last:m[0]]})
		}
		tok := Token(s[m[2]:m[3]])
		t.nodes = append(t.nodes, node{
			kind:   tokenNode,
			text:   s[m[0]:m[1]],
			token:  tok,
			escape: modeAt(modes, base+m[0]),
		})
		if !slices.Contains(t.tokens, tok) {
			t.tokens = append(t.tokens, tok)
		}
		last = m[1]
	}
	if last < len(s) {
		t.nodes = append(t.nodes, node{kind: textNode, text: s[last:]})
	}
}

// Tokens returns the distinct tokens referenced by the template in order of
// first appearance.
func (t *Template) Tokens() []Token {
	return slices.Clone(t.tokens)
}

// HasAnchor reports whether the template provides insertion point a.
func (t *Template) HasAnchor(a Anchor) bool {
	return slices.Contains(t.anchors, a)
}

type cut struct {
	at     int
	anchor Anchor
}

// locateAnchors scans tag boundaries and returns anchor offsets in order.
func locateAnchors(src string) []cut {
	var cuts []cut
	var offset int
	var headSeen, storySeen bool
	storyOpen := -1

	z := html.NewTokenizer(strings.NewReader(src))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		start := offset
		offset += len(z.Raw())

		var name string
		if tt == html.StartTagToken || tt == html.EndTagToken || tt == html.SelfClosingTagToken {
			n, _ := z.TagName()
			name = string(n)
		}

		if storyOpen >= 0 {
			if tt == html.CommentToken || (tt == html.TextToken && len(bytes.TrimSpace(z.Raw())) == 0) {
				continue
			}
			if tt == html.StartTagToken && name == analyticsTag {
				cuts = append(cuts, cut{at: storyOpen, anchor: AnchorStory})
			}
			storyOpen = -1
		}

		switch {
		case tt == html.EndTagToken && name == headTag && !headSeen:
			headSeen = true
			cuts = append(cuts, cut{at: start, anchor: AnchorStyle})
		case tt == html.StartTagToken && name == storyTag && !storySeen:
			storySeen = true
			storyOpen = offset
		}
	}

	slices.SortStableFunc(cuts, func(a, b cut) int { return a.at - b.at })
	return cuts
}

type modeSpan struct {
	end  int
	mode escapeMode
}

// locateModes splits src at tag boundaries and records the escape mode of
// each piece. Spans are contiguous and in order.
func locateModes(src string) []modeSpan {
	var spans []modeSpan
	var offset int
	var rawText string

	z := html.NewTokenizer(strings.NewReader(src))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		offset += len(z.Raw())

		mode := escapeNone
		switch tt {
		case html.StartTagToken, html.SelfClosingTagToken:
			mode = escapeHTML
			if tt == html.StartTagToken {
				if n, _ := z.TagName(); string(n) == "script" || string(n) == "style" {
					rawText = string(n)
				}
			}
		case html.EndTagToken:
			rawText = ""
		case html.TextToken:
			switch rawText {
			case "script":
				mode = escapeScript
			case "":
				mode = escapeHTML
			}
		}
		spans = append(spans, modeSpan{end: offset, mode: mode})
	}
	return spans
}

func modeAt(spans []modeSpan, at int) escapeMode {
	i, _ := slices.BinarySearchFunc(spans, at, func(s modeSpan, at int) int {
		if s.end <= at {
			return -1
		}
		return 1
	})
	if i == len(spans) {
		return escapeHTML
	}
	return spans[i].mode
}
