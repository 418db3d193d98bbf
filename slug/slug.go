// Package slug derives URL slugs and story identifiers from titles.
package slug

import (
	"errors"
	"math/rand/v2"
	"strings"
)

const (
	// ShortIDLength is the number of random characters in a short id.
	ShortIDLength = 10
	// ShortIDSuffix tags every generated short id.
	ShortIDSuffix = "_G"

	alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789_-"
)

// ErrInvalidInput is matched by InvalidInputError via errors.Is.
var ErrInvalidInput = errors.New("invalid input")

// InvalidInputError reports a title that cannot produce an identity.
type InvalidInputError struct {
	Reason string
}

func (e *InvalidInputError) Error() string {
	return "slug: invalid title: " + e.Reason
}

func (e *InvalidInputError) Is(target error) bool { return target == ErrInvalidInput }

// Identity is everything derived from a story title.
type Identity struct {
	ShortID          string `json:"story_uid"`
	Slug             string `json:"slug"`
	CombinedSlug     string `json:"urlslug"`
	CanonicalURL     string `json:"story_link"`
	CanonicalHTMLURL string `json:"storyhtmlurl"`
}

// HTMLKey is the storage key of the rendered story document.
func (id Identity) HTMLKey() string {
	return id.CombinedSlug + ".html"
}

// Generator builds identities. It is not safe for concurrent use because the
// random source is not; create one per submission.
type Generator struct {
	rnd          *rand.Rand
	storyBase    string
	renderedBase string
}

// NewGenerator returns a Generator drawing from rnd. storyBase is the
// canonical page prefix (e.g. "https://suvichaar.org/stories/") and
// renderedBase the static HTML prefix (e.g. "https://stories.suvichaar.org/").
func NewGenerator(rnd *rand.Rand, storyBase, renderedBase string) *Generator {
	return &Generator{
		rnd:          rnd,
		storyBase:    withTrailingSlash(storyBase),
		renderedBase: withTrailingSlash(renderedBase),
	}
}

// Generate derives a fresh identity for title. A title with no slug
// characters (e.g. all Devanagari) yields an empty Slug, and the combined
// slug is then "_" followed by the short id.
func (g *Generator) Generate(title string) (Identity, error) {
	if strings.TrimSpace(title) == "" {
		return Identity{}, &InvalidInputError{Reason: "title is empty"}
	}
	s := Make(title)
	short := g.ShortID()
	combined := s + "_" + short
	return Identity{
		ShortID:          short,
		Slug:             s,
		CombinedSlug:     combined,
		CanonicalURL:     g.storyBase + combined,
		CanonicalHTMLURL: g.renderedBase + combined + ".html",
	}, nil
}

// ShortID returns ShortIDLength random characters followed by ShortIDSuffix.
func (g *Generator) ShortID() string {
	var b strings.Builder
	b.Grow(ShortIDLength + len(ShortIDSuffix))
	for range ShortIDLength {
		b.WriteByte(alphabet[g.rnd.IntN(len(alphabet))])
	}
	b.WriteString(ShortIDSuffix)
	return b.String()
}

// Make lowercases title, turns spaces and underscores into hyphens, drops
// every other character outside [a-z0-9-] and trims hyphens from both ends.
// Runs of hyphens are kept as they are.
func Make(title string) string {
	var b strings.Builder
	b.Grow(len(title))
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		case r == ' ', r == '_':
			b.WriteByte('-')
		}
	}
	return strings.Trim(b.String(), "-")
}

func withTrailingSlash(s string) string {
	if s == "" || strings.HasSuffix(s, "/") {
		return s
	}
	return s + "/"
}
