// Package bundle packages a rendered story with its manifest and publishes
// the HTML to the story bucket.
package bundle

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/eringen/storyengine/blob"
	"github.com/eringen/storyengine/logger"
)

const (
	htmlContentType = "text/html"
	htmlExt         = ".html"
	manifestSuffix  = "_metadata.json"
	archiveSuffix   = "_story_bundle.zip"
	maxEntrySize    = 32 << 20
)

// ErrIncompleteArchive is returned by ReadArchive when an entry is missing.
var ErrIncompleteArchive = errors.New("bundle: archive must hold one .html and one _metadata.json entry")

// ArchiveName is the download file name for a story bundle.
func ArchiveName(combinedSlug string) string { return combinedSlug + archiveSuffix }

// HTMLEntry is the archive entry and storage key of the story document.
func HTMLEntry(combinedSlug string) string { return combinedSlug + htmlExt }

// ManifestEntry is the archive entry of the manifest.
func ManifestEntry(combinedSlug string) string { return combinedSlug + manifestSuffix }

// Bundle is a finished submission.
type Bundle struct {
	Name        string
	HTML        string
	Manifest    []byte
	Archive     []byte
	ArchiveName string
}

// Emitter builds bundles and uploads story documents.
type Emitter struct {
	store     blob.Store
	bucket    string
	storyBase string
	now       func() time.Time
	log       logger.Logger
}

// Option configures an Emitter.
type Option func(*Emitter)

// WithClock sets the modification time stamped on archive entries.
func WithClock(now func() time.Time) Option {
	return func(e *Emitter) { e.now = now }
}

// WithLogger sets the emitter logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Emitter) { e.log = l }
}

// NewEmitter returns an Emitter uploading to bucket in store. storyBase is
// the public story prefix reported after an upload.
func NewEmitter(store blob.Store, bucket, storyBase string, opts ...Option) *Emitter {
	if storyBase != "" && !strings.HasSuffix(storyBase, "/") {
		storyBase += "/"
	}
	e := &Emitter{
		store:     store,
		bucket:    bucket,
		storyBase: storyBase,
		now:       time.Now,
		log:       logger.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Emit serializes m and packs it with html into a two-entry archive named
// after m.URLSlug.
func (e *Emitter) Emit(html string, m Manifest) (*Bundle, error) {
	if m.URLSlug == "" {
		return nil, errors.New("bundle: manifest has no urlslug")
	}
	manifest, err := m.Marshal()
	if err != nil {
		return nil, err
	}
	archive, err := e.Archive(m.URLSlug, html, manifest)
	if err != nil {
		return nil, err
	}
	return &Bundle{
		Name:        m.URLSlug,
		HTML:        html,
		Manifest:    manifest,
		Archive:     archive,
		ArchiveName: ArchiveName(m.URLSlug),
	}, nil
}

// Archive zips the document and manifest as <name>.html and
// <name>_metadata.json.
func (e *Emitter) Archive(name, html string, manifest []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	modified := e.now().UTC()

	entries := []struct {
		name string
		body []byte
	}{
		{HTMLEntry(name), []byte(html)},
		{ManifestEntry(name), manifest},
	}
	for _, ent := range entries {
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     ent.name,
			Method:   zip.Deflate,
			Modified: modified,
		})
		if err != nil {
			return nil, fmt.Errorf("bundle: create %s: %w", ent.name, err)
		}
		if _, err := w.Write(ent.body); err != nil {
			return nil, fmt.Errorf("bundle: write %s: %w", ent.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("bundle: close archive: %w", err)
	}
	return buf.Bytes(), nil
}

// Upload stores html under key in the story bucket and returns the public
// story URL, which drops the .html extension.
func (e *Emitter) Upload(ctx context.Context, key, html string) (string, error) {
	if err := e.store.Put(ctx, e.bucket, key, []byte(html), htmlContentType); err != nil {
		return "", fmt.Errorf("bundle: upload %s/%s: %w", e.bucket, key, err)
	}
	u := e.storyBase + strings.TrimSuffix(key, htmlExt)
	e.log.Info("story uploaded",
		logger.String("bucket", e.bucket),
		logger.String("key", key),
		logger.String("url", u))
	return u, nil
}

// ReadArchive unpacks an archive written by Archive.
func ReadArchive(data []byte) (html string, m Manifest, err error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", m, fmt.Errorf("bundle: open archive: %w", err)
	}

	var gotHTML, gotManifest bool
	for _, f := range zr.File {
		switch {
		case strings.HasSuffix(f.Name, manifestSuffix):
			body, err := readEntry(f)
			if err != nil {
				return "", m, err
			}
			if m, err = ParseManifest(body); err != nil {
				return "", m, err
			}
			gotManifest = true
		case strings.HasSuffix(f.Name, htmlExt):
			body, err := readEntry(f)
			if err != nil {
				return "", m, err
			}
			html = string(body)
			gotHTML = true
		}
	}
	if !gotHTML || !gotManifest {
		return "", m, ErrIncompleteArchive
	}
	return html, m, nil
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("bundle: open %s: %w", f.Name, err)
	}
	defer rc.Close()
	body, err := io.ReadAll(io.LimitReader(rc, maxEntrySize))
	if err != nil {
		return nil, fmt.Errorf("bundle: read %s: %w", f.Name, err)
	}
	return body, nil
}
