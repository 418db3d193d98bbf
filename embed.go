package storyengine

import "embed"

// EmbeddedAssets contains files shipped with the engine: the default
// master story template.
//
//go:embed embedded/*
var EmbeddedAssets embed.FS

// DefaultTemplate returns the embedded master template source.
func DefaultTemplate() string {
	src, err := EmbeddedAssets.ReadFile("embedded/master.html")
	if err != nil {
		panic("storyengine: embedded master template missing: " + err.Error())
	}
	return string(src)
}
