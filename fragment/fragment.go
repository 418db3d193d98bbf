// Package fragment pulls the custom style block and the story pages out of an
// uploaded AMP story document.
//
// Extraction is a tag-boundary scan with golang.org/x/net/html's tokenizer.
// Returned blocks are the exact source bytes between the located tags; the
// scan does not validate nesting or well-formedness beyond counting
// amp-story-page depth.
package fragment

import (
	"errors"
	"strings"

	"golang.org/x/net/html"
)

var (
	// ErrStyleNotFound means the document has no complete <style amp-custom> element.
	ErrStyleNotFound = errors.New("fragment: no <style amp-custom> block")
	// ErrStoryNotFound means the document has no complete <amp-story-page> element.
	ErrStoryNotFound = errors.New("fragment: no <amp-story-page> block")
)

const (
	styleTag     = "style"
	customAttr   = "amp-custom"
	storyPageTag = "amp-story-page"
)

// Fragment holds the blocks lifted from an uploaded document. Either may be
// empty.
type Fragment struct {
	Style string
	Story string
}

// HasStyle reports whether a style block was found.
func (f Fragment) HasStyle() bool { return f.Style != "" }

// HasStory reports whether a story block was found.
func (f Fragment) HasStory() bool { return f.Story != "" }

type span struct{ start, end int }

func (s span) valid() bool { return s.end > s.start }

// Extract scans raw and returns its fragments. The style block is the first
// <style amp-custom> element, open tag through close tag. The story block
// runs from the first <amp-story-page> open tag to the close tag that ends
// the last top-level page, so every sibling page is kept. A missing block is
// reported in the returned diagnostics, never as a failure.
func Extract(raw string) (Fragment, []error) {
	var style, story span
	var depth, offset int
	styleOpen, pageStart := -1, -1

	z := html.NewTokenizer(strings.NewReader(raw))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			// A strings.Reader source only ends with io.EOF.
			break
		}
		start := offset
		offset += len(z.Raw())

		switch tt {
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			switch string(name) {
			case styleTag:
				if !style.valid() && styleOpen < 0 && hasAttr && hasAttribute(z, customAttr) {
					styleOpen = start
				}
			case storyPageTag:
				if pageStart < 0 {
					pageStart = start
				}
				if tt == html.SelfClosingTagToken {
					if depth == 0 {
						story.end = offset
					}
					continue
				}
				depth++
			}

		case html.EndTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case styleTag:
				if styleOpen >= 0 && !style.valid() {
					style = span{start: styleOpen, end: offset}
					styleOpen = -1
				}
			case storyPageTag:
				if depth == 0 {
					continue
				}
				depth--
				if depth == 0 {
					story.end = offset
				}
			}
		}
	}

	var (
		frag  Fragment
		diags []error
	)
	if style.valid() {
		frag.Style = raw[style.start:style.end]
	} else {
		diags = append(diags, ErrStyleNotFound)
	}
	if pageStart >= 0 && story.end > pageStart {
		frag.Story = raw[pageStart:story.end]
	} else {
		diags = append(diags, ErrStoryNotFound)
	}
	return frag, diags
}

// hasAttribute consumes the current tag's attributes looking for key.
func hasAttribute(z *html.Tokenizer, key string) bool {
	for {
		k, _, more := z.TagAttr()
		if string(k) == key {
			return true
		}
		if !more {
			return false
		}
	}
}
