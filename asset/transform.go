package asset

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// Preset is a named resize applied by the image transform service.
type Preset struct {
	Name   string
	Width  int
	Height int
}

// DefaultPresets are the resize variants every story template references.
var DefaultPresets = []Preset{
	{Name: "potraitcoverurl", Width: 640, Height: 853},
	{Name: "msthumbnailcoverurl", Width: 300, Height: 300},
}

// Resize is the resize edit understood by the transform service.
type Resize struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Fit    string `json:"fit"`
}

// Edits groups the edits applied to the source object.
type Edits struct {
	Resize Resize `json:"resize"`
}

// TransformDescriptor is the JSON document encoded into a transform URL.
type TransformDescriptor struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
	Edits  Edits  `json:"edits"`
}

// TransformURL returns prefix followed by the base64url encoding of the
// compact JSON descriptor for a cover-fit resize of bucket/key.
func TransformURL(prefix, bucket, key string, width, height int) string {
	d := TransformDescriptor{
		Bucket: bucket,
		Key:    key,
		Edits:  Edits{Resize: Resize{Width: width, Height: height, Fit: "cover"}},
	}
	// Marshal of this struct cannot fail.
	raw, _ := json.Marshal(d)
	return prefix + base64.URLEncoding.EncodeToString(raw)
}

// DecodeTransformURL reverses TransformURL. Padded and unpadded encodings
// are both accepted.
func DecodeTransformURL(prefix, u string) (TransformDescriptor, error) {
	var d TransformDescriptor
	enc, ok := strings.CutPrefix(u, prefix)
	if !ok {
		return d, fmt.Errorf("asset: %q does not start with transform prefix %q", u, prefix)
	}
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(enc, "="))
	if err != nil {
		return d, fmt.Errorf("asset: decode transform descriptor: %w", err)
	}
	if err := json.Unmarshal(raw, &d); err != nil {
		return d, fmt.Errorf("asset: parse transform descriptor: %w", err)
	}
	return d, nil
}

// Transforms builds one transform URL per preset, keyed by preset name.
func Transforms(prefix, bucket, key string, presets []Preset) map[string]string {
	out := make(map[string]string, len(presets))
	for _, p := range presets {
		out[p.Name] = TransformURL(prefix, bucket, key, p.Width, p.Height)
	}
	return out
}
