// Package asset resolves a story's source image into a URL on the owned CDN,
// re-uploading it when it lives somewhere the CDN cannot serve, and builds
// the signed resize URLs the story template references.
package asset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/eringen/storyengine/blob"
	"github.com/eringen/storyengine/logger"
)

const (
	defaultFetchTimeout = 10 * time.Second
	defaultContentType  = "image/jpeg"
	defaultExt          = ".jpg"
	maxFetchSize        = 10 << 20 // 10MB
)

// ErrNoSource is returned when Resolve is called with an empty URL.
var ErrNoSource = errors.New("asset: no source url")

// Kind records how a source URL was resolved.
type Kind string

const (
	KindRendered   Kind = "rendered"
	KindMedia      Kind = "media"
	KindThirdParty Kind = "third_party"
	KindUploaded   Kind = "uploaded"
	KindNone       Kind = "none"
)

// FetchError reports a failed download of a source image.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string { return fmt.Sprintf("fetch %s: %v", e.URL, e.Err) }
func (e *FetchError) Unwrap() error { return e.Err }

// UploadError reports a failed write of a fetched image to the blob store.
type UploadError struct {
	Key string
	Err error
}

func (e *UploadError) Error() string { return fmt.Sprintf("upload %s: %v", e.Key, e.Err) }
func (e *UploadError) Unwrap() error { return e.Err }

// Config describes the owned domains and the upload target.
type Config struct {
	// RenderedBase is the prefix of already-published story assets,
	// e.g. "https://stories.suvichaar.org/".
	RenderedBase string `yaml:"rendered_base"`
	// MediaHost is the owned media CDN host, e.g. "media.suvichaar.org".
	MediaHost string `yaml:"media_host"`
	// MediaBase serves keys from Bucket, e.g. "https://media.suvichaar.org/".
	MediaBase string `yaml:"media_base"`
	// TransformPrefix precedes encoded resize descriptors.
	TransformPrefix string `yaml:"transform_prefix"`
	// CDNBase serves uploaded keys. Defaults to MediaBase.
	CDNBase         string        `yaml:"cdn_base" env:"CDN_BASE"`
	Bucket          string        `yaml:"bucket" env:"AWS_BUCKET"`
	UploadPrefix    string        `yaml:"upload_prefix" env:"S3_PREFIX"`
	ThirdPartyHosts []string      `yaml:"third_party_hosts"`
	AllowedExts     []string      `yaml:"allowed_exts"`
	FetchTimeout    time.Duration `yaml:"fetch_timeout"`
	Presets         []Preset      `yaml:"-"`
}

// SetDefaults fills unset fields with the Suvichaar production values.
func (c *Config) SetDefaults() {
	if c.RenderedBase == "" {
		c.RenderedBase = "https://stories.suvichaar.org/"
	}
	if c.MediaHost == "" {
		c.MediaHost = "media.suvichaar.org"
	}
	if c.MediaBase == "" {
		c.MediaBase = "https://" + c.MediaHost + "/"
	}
	if c.TransformPrefix == "" {
		c.TransformPrefix = c.MediaBase
	}
	if c.CDNBase == "" {
		c.CDNBase = c.MediaBase
	}
	if c.UploadPrefix == "" {
		c.UploadPrefix = "media/"
	}
	if c.ThirdPartyHosts == nil {
		c.ThirdPartyHosts = []string{"res.cloudinary.com"}
	}
	if len(c.AllowedExts) == 0 {
		c.AllowedExts = []string{".jpg", ".jpeg", ".png", ".gif"}
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = defaultFetchTimeout
	}
	if c.Presets == nil {
		c.Presets = DefaultPresets
	}
}

// Reference is a resolved image. A zero Key means resolution degraded.
type Reference struct {
	SourceURL   string
	Kind        Kind
	Key         string
	URL         string
	Transforms  map[string]string
	ContentType string
	Width       int
	Height      int
}

// Resolver classifies and, when needed, re-hosts source images.
type Resolver struct {
	cfg     Config
	store   blob.Store
	client  *http.Client
	log     logger.Logger
	newName func() string
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithHTTPClient overrides the client used for fallback downloads.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Resolver) { r.client = c }
}

// WithLogger sets the resolver logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Resolver) { r.log = l }
}

// WithNameFunc overrides how re-uploaded files are named (sans extension).
func WithNameFunc(fn func() string) Option {
	return func(r *Resolver) { r.newName = fn }
}

// NewResolver returns a Resolver uploading fallbacks into store.
func NewResolver(cfg Config, store blob.Store, opts ...Option) *Resolver {
	cfg.SetDefaults()
	r := &Resolver{
		cfg:     cfg,
		store:   store,
		client:  &http.Client{Timeout: cfg.FetchTimeout},
		log:     logger.NewNop(),
		newName: func() string { return strings.ReplaceAll(uuid.NewString(), "-", "") },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve classifies src and returns its CDN reference. Cases are checked
// in order: rendered-story domain, owned media CDN, known third-party host,
// then download and re-upload. Only the last case touches the network.
// On FetchError or UploadError the returned Reference carries SourceURL and
// KindNone only.
func (r *Resolver) Resolve(ctx context.Context, src string) (Reference, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return Reference{Kind: KindNone}, ErrNoSource
	}
	u, err := url.Parse(src)
	if err != nil {
		return Reference{SourceURL: src, Kind: KindNone}, &FetchError{URL: src, Err: err}
	}

	switch {
	case strings.HasPrefix(src, r.cfg.RenderedBase):
		segs := strings.Split(u.Path, "/")
		key := ""
		if len(segs) > 2 {
			key = strings.Join(segs[2:], "/")
		}
		return r.reference(src, KindRendered, key, src), nil

	case isHTTP(u) && strings.EqualFold(u.Hostname(), r.cfg.MediaHost):
		key := strings.TrimLeft(u.Path, "/")
		return r.reference(src, KindMedia, key, src), nil

	case isHTTP(u) && r.isThirdParty(u.Hostname()):
		key := "media/" + path.Base(u.Path)
		return r.reference(src, KindThirdParty, key, r.cfg.MediaBase+key), nil
	}

	return r.rehost(ctx, src, u.Path)
}

func (r *Resolver) reference(src string, kind Kind, key, resolved string) Reference {
	ref := Reference{SourceURL: src, Kind: kind, Key: key, URL: resolved}
	if key != "" {
		ref.Transforms = Transforms(r.cfg.TransformPrefix, r.cfg.Bucket, key, r.cfg.Presets)
	}
	return ref
}

func (r *Resolver) rehost(ctx context.Context, src, srcPath string) (Reference, error) {
	degraded := Reference{SourceURL: src, Kind: KindNone}

	body, contentType, err := r.fetch(ctx, src)
	if err != nil {
		return degraded, &FetchError{URL: src, Err: err}
	}

	var width, height int
	if info, err := inspectImage(body); err != nil {
		r.log.Debug("fetched image header unreadable", logger.String("url", src), logger.Error(err))
	} else {
		width, height = info.Width, info.Height
	}

	key := r.cfg.UploadPrefix + r.newName() + r.extension(srcPath)
	if err := r.store.Put(ctx, r.cfg.Bucket, key, body, contentType); err != nil {
		return degraded, &UploadError{Key: key, Err: err}
	}
	r.log.Info("image re-hosted",
		logger.String("source", src),
		logger.String("key", key),
		logger.Int("bytes", len(body)))

	ref := r.reference(src, KindUploaded, key, r.cfg.CDNBase+key)
	ref.ContentType = contentType
	ref.Width, ref.Height = width, height
	return ref, nil
}

func (r *Resolver) fetch(ctx context.Context, src string) ([]byte, string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.FetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("read body: %w", err)
	}
	if len(body) > maxFetchSize {
		return nil, "", fmt.Errorf("image larger than %d bytes", maxFetchSize)
	}
	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = defaultContentType
	}
	return body, ct, nil
}

// extension keeps the source extension when it is allow-listed.
func (r *Resolver) extension(p string) string {
	ext := strings.ToLower(path.Ext(path.Base(p)))
	if slices.Contains(r.cfg.AllowedExts, ext) {
		return ext
	}
	return defaultExt
}

func (r *Resolver) isThirdParty(host string) bool {
	for _, h := range r.cfg.ThirdPartyHosts {
		if strings.EqualFold(host, h) {
			return true
		}
	}
	return false
}

func isHTTP(u *url.URL) bool {
	return u.Scheme == "http" || u.Scheme == "https"
}

// Cover returns the custom cover URL when one is given, else the source.
func Cover(custom, source string) string {
	if c := strings.TrimSpace(custom); c != "" {
		return c
	}
	return source
}
