package bundle

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/eringen/storyengine/slug"
)

// DefaultLogoLink is the publisher logo recorded in every manifest.
const DefaultLogoLink = "https://media.suvichaar.org/filters:resize/96x96/media/brandasset/suvichaariconblack.png"

// Manifest describes a story for the publishing backend. Field order is the
// serialized key order.
type Manifest struct {
	StoryTitle      string   `json:"story_title"`
	Category        int      `json:"categories"`
	FilterTags      []string `json:"filterTags"`
	StoryUID        string   `json:"story_uid"`
	StoryLink       string   `json:"story_link"`
	StoryHTMLURL    string   `json:"storyhtmlurl"`
	URLSlug         string   `json:"urlslug"`
	CoverImageLink  string   `json:"cover_image_link"`
	PublisherID     int      `json:"publisher_id"`
	StoryLogoLink   string   `json:"story_logo_link"`
	Keywords        string   `json:"keywords"`
	MetaDescription string   `json:"metadescription"`
	Lang            string   `json:"lang"`
	ContentType     string   `json:"contenttype"`
}

// SetIdentity copies the identifier fields from id.
func (m *Manifest) SetIdentity(id slug.Identity) {
	m.StoryUID = id.ShortID
	m.StoryLink = id.CanonicalURL
	m.StoryHTMLURL = id.CanonicalHTMLURL
	m.URLSlug = id.CombinedSlug
}

// Marshal encodes m as four-space indented JSON. HTML characters in values
// are left unescaped.
func (m Manifest) Marshal() ([]byte, error) {
	if m.FilterTags == nil {
		m.FilterTags = []string{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(m); err != nil {
		return nil, fmt.Errorf("bundle: encode manifest: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// ParseManifest decodes a manifest produced by Marshal.
func ParseManifest(data []byte) (Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("bundle: decode manifest: %w", err)
	}
	return m, nil
}
