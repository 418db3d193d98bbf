// Package compose renders the master story template: token substitution in a
// single pass over the parsed template, and fragment splicing at anchors.
// Substituted values are escaped for where their marker sits: HTML escaping
// in element text and attributes, JSON string escaping in script bodies.
package compose

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/net/html"

	"github.com/eringen/storyengine/fragment"
)

// ErrBracedURLs reports that the final repair pass rewrote attribute values.
var ErrBracedURLs = errors.New("compose: repaired brace-wrapped urls")

// MissingAnchorError reports a fragment that had nowhere to go.
type MissingAnchorError struct {
	Anchor Anchor
}

func (e *MissingAnchorError) Error() string {
	switch e.Anchor {
	case AnchorStyle:
		return "compose: template has no </head>; style block not inserted"
	case AnchorStory:
		return "compose: template has no <amp-story> followed by <amp-story-auto-analytics>; story block not inserted"
	}
	return fmt.Sprintf("compose: template has no %s anchor", e.Anchor)
}

// UnresolvedTokenError lists markers left in the output because no value
// was supplied for them.
type UnresolvedTokenError struct {
	Tokens []Token
}

func (e *UnresolvedTokenError) Error() string {
	names := make([]string, len(e.Tokens))
	for i, t := range e.Tokens {
		names[i] = t.Marker()
	}
	return "compose: unresolved tokens: " + strings.Join(names, ", ")
}

// Document is a rendered story and the non-fatal problems met on the way.
type Document struct {
	HTML        string
	Diagnostics []error
}

type options struct {
	strict       bool
	repairPrefix string
}

// Option configures Compose.
type Option func(*options)

// Strict turns unresolved tokens into a failure.
func Strict(on bool) Option {
	return func(o *options) { o.strict = on }
}

// WithRepairPrefix sets the URL prefix the brace repair pass acts on.
// The default is "https://".
func WithRepairPrefix(prefix string) Option {
	return func(o *options) { o.repairPrefix = prefix }
}

// Compose renders t with values and splices frag in at the template's
// anchors. The style block goes before </head>; the story pages go after the
// opening <amp-story> tag, ahead of the analytics element. A fragment with no
// matching anchor is dropped and reported as a MissingAnchorError.
//
// The only error is an UnresolvedTokenError in strict mode; otherwise every
// problem is returned in Document.Diagnostics.
func Compose(t *Template, values Values, frag fragment.Fragment, opts ...Option) (*Document, error) {
	o := options{repairPrefix: "https://"}
	for _, opt := range opts {
		opt(&o)
	}

	var (
		seg        strings.Builder
		out        strings.Builder
		diags      []error
		unresolved []Token
		repairs    int
	)
	out.Grow(t.size + len(frag.Style) + len(frag.Story) + 8)

	// Template text is repaired segment by segment so fragments stay verbatim.
	flush := func() {
		fixed, n := RepairBracedURLs(seg.String(), o.repairPrefix)
		repairs += n
		out.WriteString(fixed)
		seg.Reset()
	}

	for _, n := range t.nodes {
		switch n.kind {
		case textNode:
			seg.WriteString(n.text)
		case tokenNode:
			v, ok := values[n.token]
			if !ok {
				seg.WriteString(n.text)
				if !slices.Contains(unresolved, n.token) {
					unresolved = append(unresolved, n.token)
				}
				continue
			}
			seg.WriteString(n.escape.apply(v))
		case anchorNode:
			flush()
			switch n.anchor {
			case AnchorStyle:
				if frag.HasStyle() {
					out.WriteString("\n" + frag.Style + "\n")
				}
			case AnchorStory:
				if frag.HasStory() {
					out.WriteString("\n\n" + frag.Story + "\n\n")
				}
			}
		}
	}
	flush()

	if frag.HasStyle() && !t.HasAnchor(AnchorStyle) {
		diags = append(diags, &MissingAnchorError{Anchor: AnchorStyle})
	}
	if frag.HasStory() && !t.HasAnchor(AnchorStory) {
		diags = append(diags, &MissingAnchorError{Anchor: AnchorStory})
	}
	if len(unresolved) > 0 {
		err := &UnresolvedTokenError{Tokens: unresolved}
		if o.strict {
			return nil, err
		}
		diags = append(diags, err)
	}
	if repairs > 0 {
		diags = append(diags, fmt.Errorf("%w: %d attribute(s)", ErrBracedURLs, repairs))
	}
	return &Document{HTML: out.String(), Diagnostics: diags}, nil
}

// apply encodes v for its position in the template. Values are plain text:
// markup or entities inside them are escaped, not interpreted.
func (m escapeMode) apply(v string) string {
	switch m {
	case escapeHTML:
		return html.EscapeString(v)
	case escapeScript:
		b, err := json.Marshal(v)
		if err != nil {
			return v
		}
		return string(b[1 : len(b)-1])
	}
	return v
}
