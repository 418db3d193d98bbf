// Package oracle drafts story metadata with a text-completion model and
// parses the free-text answer back into fields.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/eringen/storyengine/markdown"
)

// ErrEmptyTitle is returned by Drafter.Draft for a blank title.
var ErrEmptyTitle = errors.New("oracle: empty title")

// Completer turns a prompt into free text.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, prompt string) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// Draft is suggested metadata for a title. Any field may be empty.
type Draft struct {
	Description string `json:"description"`
	Keywords    string `json:"keywords"`
	FilterTags  string `json:"filter_tags"`
}

// ParseError reports a completion in which no label was found. The Draft
// returned alongside it is empty, not invalid.
type ParseError struct {
	Text string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("oracle: no Description, Keywords or Filter Tags label in %d-byte response", len(e.Text))
}

var (
	reDescription = regexp.MustCompile(`[Dd]escription\s*[:\-]\s*(.+)`)
	reKeywords    = regexp.MustCompile(`[Kk]eywords\s*[:\-]\s*(.+)`)
	reFilterTags  = regexp.MustCompile(`[Ff]ilter\s*[Tt]ags\s*[:\-]\s*(.+)`)
)

// Prompt is the request sent for a title.
func Prompt(title string) string {
	return fmt.Sprintf(`Generate the following for a web story titled '%s':
1. A short SEO-friendly meta description
2. Meta keywords (comma separated)
3. Relevant filter tags (comma separated, suitable for categorization and content filtering)`, title)
}

// ParseDraft pulls the labelled lines out of text. Markdown decoration is
// stripped first. Each label is optional; a ParseError is returned only when
// none matched.
func ParseDraft(text string) (Draft, error) {
	plain := markdown.Plain(text)
	d := Draft{
		Description: firstMatch(reDescription, plain),
		Keywords:    firstMatch(reKeywords, plain),
		FilterTags:  firstMatch(reFilterTags, plain),
	}
	if d == (Draft{}) {
		return d, &ParseError{Text: text}
	}
	return d, nil
}

func firstMatch(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// Drafter asks a Completer for metadata.
type Drafter struct {
	c Completer
}

// NewDrafter returns a Drafter backed by c.
func NewDrafter(c Completer) *Drafter {
	return &Drafter{c: c}
}

// Draft prompts for title and parses the answer. A ParseError comes back
// with an empty Draft; callers treat it as a warning.
func (d *Drafter) Draft(ctx context.Context, title string) (Draft, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return Draft{}, ErrEmptyTitle
	}
	text, err := d.c.Complete(ctx, Prompt(title))
	if err != nil {
		return Draft{}, fmt.Errorf("oracle: complete: %w", err)
	}
	return ParseDraft(text)
}
