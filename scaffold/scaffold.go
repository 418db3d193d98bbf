// Package scaffold provides embedded starter files for the storyengine init
// command.
package scaffold

import "embed"

// Templates contains all scaffold files. Files with a .tmpl suffix use Go
// text/template syntax; the rest are copied as they are.
//
//go:embed all:templates
var Templates embed.FS
