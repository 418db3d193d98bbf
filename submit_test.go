package storyengine

import (
	"context"
	"errors"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/storyengine/asset"
	"github.com/eringen/storyengine/blob"
	"github.com/eringen/storyengine/bundle"
	"github.com/eringen/storyengine/compose"
	"github.com/eringen/storyengine/fragment"
	"github.com/eringen/storyengine/logger"
	"github.com/eringen/storyengine/oracle"
	"github.com/eringen/storyengine/slug"
)

const (
	testStyle = `<style amp-custom>.page{color:#222}</style>`
	testStory = `<amp-story-page id="cover"><amp-story-grid-layer template="fill"><p>One</p></amp-story-grid-layer></amp-story-page>` +
		`<amp-story-page id="end"><p>Two</p></amp-story-page>`
	testRaw = `<!doctype html><html amp><head><style amp-boilerplate>body{}</style>` + testStyle +
		`</head><body><amp-story standalone>` + testStory + `</amp-story></body></html>`
	testImage = "https://media.suvichaar.org/media/lata/cover.jpg"
)

var testNow = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func testRand() *rand.Rand { return rand.New(rand.NewPCG(7, 11)) }

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func offlineClient(t *testing.T) *http.Client {
	return &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		t.Errorf("unexpected network request to %s", r.URL)
		return nil, errors.New("network disabled")
	})}
}

func testSubmission() Submission {
	return Submission{
		Title:           "Lata Mangeshkar",
		MetaDescription: "The nightingale of India",
		MetaKeywords:    "lata, music, playback",
		ContentType:     ContentArticle,
		Language:        "en-US",
		Category:        "Travel",
		FilterTags:      "Music, , Legends ",
		ImageURL:        testImage,
		RawHTML:         testRaw,
	}
}

func newTestApp(t *testing.T, cfg Config, opts ...Option) (*App, *blob.MemoryStore) {
	t.Helper()
	store := blob.NewMemoryStore()
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = DriverMemory
	}
	base := []Option{
		WithStore(store),
		WithLogger(logger.NewNop()),
		WithClock(func() time.Time { return testNow }),
		WithRand(testRand),
		WithHTTPClient(offlineClient(t)),
	}
	a, err := New(cfg, append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a, store
}

func TestSubmitBuildsBundle(t *testing.T) {
	a, store := newTestApp(t, Config{})

	res, err := a.Submit(context.Background(), testSubmission())
	require.NoError(t, err)
	assert.Empty(t, res.Warnings)

	id := res.Identity
	assert.Equal(t, "lata-mangeshkar", id.Slug)
	assert.True(t, strings.HasPrefix(id.CombinedSlug, "lata-mangeshkar_"))
	assert.True(t, strings.HasSuffix(id.ShortID, slug.ShortIDSuffix))
	assert.Equal(t, "https://suvichaar.org/stories/"+id.CombinedSlug, id.CanonicalURL)
	assert.Equal(t, "https://stories.suvichaar.org/"+id.CombinedSlug+".html", id.CanonicalHTMLURL)

	assert.Equal(t, 22, res.CategoryCode)
	assert.Equal(t, asset.KindMedia, res.Asset.Kind)
	assert.Contains(t, compose.DefaultDirectory().Names(), res.Author.Name)

	html := res.Bundle.HTML
	assert.NotContains(t, html, "{{")
	assert.Contains(t, html, "<title>Lata Mangeshkar | Suvichaar</title>")
	assert.Contains(t, html, `content="2024-05-01T10:00:00+00:00"`)
	assert.Contains(t, html, `href="`+id.CanonicalURL+`"`)
	assert.Contains(t, html, res.Asset.Transforms["potraitcoverurl"])
	assert.Contains(t, html, "\n"+testStyle+"\n</head>")
	assert.Contains(t, html, "\n\n"+testStory+"\n\n")
	assert.Less(t, strings.Index(html, testStory), strings.Index(html, "<amp-story-auto-analytics"))

	m := res.Manifest
	assert.Equal(t, "Lata Mangeshkar", m.StoryTitle)
	assert.Equal(t, []string{"Music", "Legends"}, m.FilterTags)
	assert.Equal(t, testImage, m.CoverImageLink)
	assert.Equal(t, 3, m.PublisherID)
	assert.Equal(t, id.CombinedSlug, m.URLSlug)

	gotHTML, gotManifest, err := bundle.ReadArchive(res.Bundle.Archive)
	require.NoError(t, err)
	assert.Equal(t, html, gotHTML)
	assert.Equal(t, m, gotManifest)
	assert.Equal(t, id.CombinedSlug+"_story_bundle.zip", res.Bundle.ArchiveName)

	assert.Empty(t, res.StoryURL)
	assert.Zero(t, store.Puts())
}

func TestSubmitIsDeterministic(t *testing.T) {
	a, _ := newTestApp(t, Config{})
	first, err := a.Submit(context.Background(), testSubmission())
	require.NoError(t, err)

	b, _ := newTestApp(t, Config{})
	second, err := b.Submit(context.Background(), testSubmission())
	require.NoError(t, err)

	assert.Equal(t, first.Identity, second.Identity)
	assert.Equal(t, first.Author, second.Author)
	assert.Equal(t, first.Bundle.Archive, second.Bundle.Archive)
}

func TestSubmitCustomCover(t *testing.T) {
	a, _ := newTestApp(t, Config{})
	s := testSubmission()
	s.CoverURL = " https://cdn.example.com/cover.png "

	res, err := a.Submit(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/cover.png", res.Manifest.CoverImageLink)
}

func TestSubmitValidation(t *testing.T) {
	a, store := newTestApp(t, Config{})

	s := testSubmission()
	s.Title = ""
	s.RawHTML = ""
	s.ContentType = "Blog"
	s.Language = "fr"

	_, err := a.Submit(context.Background(), s)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []string{"content_type", "language", "raw_html", "title"}, verr.Names())
	assert.Zero(t, store.Puts())
}

func TestSubmitValidationBlankFields(t *testing.T) {
	a, store := newTestApp(t, Config{})

	s := testSubmission()
	s.MetaDescription = "   "
	s.MetaKeywords = " "
	s.FilterTags = "  "
	s.ImageURL = " "
	s.RawHTML = "\n\t"

	_, err := a.Submit(context.Background(), s)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []string{"filter_tags", "image_url", "meta_description", "meta_keywords", "raw_html"}, verr.Names())
	assert.Zero(t, store.Puts())
}

func TestSubmissionNormalize(t *testing.T) {
	s := testSubmission()
	s.Title = "  Lata Mangeshkar \n"
	s.Language = " en-US"
	require.NoError(t, s.Validate([]string{"en-US"}))
	assert.Equal(t, "Lata Mangeshkar", s.Title)
	assert.Equal(t, "en-US", s.Language)
}

func TestSubmitUnknownCategory(t *testing.T) {
	a, store := newTestApp(t, Config{})
	s := testSubmission()
	s.Category = "Food"

	_, err := a.Submit(context.Background(), s)
	var cerr *compose.UnknownCategoryError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, "Food", cerr.Name)
	assert.Zero(t, store.Puts())
}

func TestSubmitTitleWithoutSlugCharacters(t *testing.T) {
	a, _ := newTestApp(t, Config{})
	s := testSubmission()
	s.Title = "लता मंगेशकर"

	res, err := a.Submit(context.Background(), s)
	require.NoError(t, err)
	assert.Empty(t, res.Identity.Slug)
	assert.Equal(t, "_"+res.Identity.ShortID, res.Identity.CombinedSlug)
	assert.Equal(t, res.Identity.CombinedSlug, res.Manifest.URLSlug)
	assert.Equal(t, "लता मंगेशकर", res.Manifest.StoryTitle)
	assert.Contains(t, res.Bundle.HTML, "<title>लता मंगेशकर | Suvichaar</title>")
	assert.Equal(t, res.Identity.CombinedSlug+"_story_bundle.zip", res.Bundle.ArchiveName)
}

func TestSubmitWithoutFragmentsWarns(t *testing.T) {
	a, _ := newTestApp(t, Config{})
	s := testSubmission()
	s.RawHTML = "<p>just a paragraph</p>"

	res, err := a.Submit(context.Background(), s)
	require.NoError(t, err)
	require.Len(t, res.Warnings, 2)
	assert.ErrorIs(t, res.Warnings[0], fragment.ErrStyleNotFound)
	assert.ErrorIs(t, res.Warnings[1], fragment.ErrStoryNotFound)
	assert.NotContains(t, res.Bundle.HTML, "just a paragraph")
	assert.Contains(t, res.Bundle.HTML, "<amp-story-auto-analytics")
}

func TestSubmitRehostsForeignImage(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n not really")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(png)
	}))
	defer srv.Close()

	a, store := newTestApp(t, Config{}, WithHTTPClient(srv.Client()))
	s := testSubmission()
	s.ImageURL = srv.URL + "/photos/lata.png"

	res, err := a.Submit(context.Background(), s)
	require.NoError(t, err)
	assert.Empty(t, res.Warnings)
	assert.Equal(t, asset.KindUploaded, res.Asset.Kind)

	obj, ok := store.Get(a.Config.Assets.Bucket, res.Asset.Key)
	require.True(t, ok)
	assert.Equal(t, png, obj.Body)
	assert.Equal(t, "image/png", obj.ContentType)
	assert.Contains(t, res.Bundle.HTML, res.Asset.URL)
	assert.Equal(t, s.ImageURL, res.Manifest.CoverImageLink)
}

func TestSubmitFetchFailureDegrades(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	a, _ := newTestApp(t, Config{}, WithHTTPClient(srv.Client()))
	s := testSubmission()
	s.ImageURL = srv.URL + "/missing.jpg"

	res, err := a.Submit(context.Background(), s)
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	var ferr *asset.FetchError
	assert.True(t, errors.As(res.Warnings[0], &ferr))
	assert.Equal(t, asset.KindNone, res.Asset.Kind)
	assert.NotContains(t, res.Bundle.HTML, "{{image0}}")
}

func TestSubmitUploadsHTML(t *testing.T) {
	a, store := newTestApp(t, Config{UploadHTML: true})

	res, err := a.Submit(context.Background(), testSubmission())
	require.NoError(t, err)
	assert.Empty(t, res.Warnings)
	assert.Equal(t, res.Identity.CanonicalURL, res.StoryURL)

	obj, ok := store.Get("suvichaarstories", res.Identity.HTMLKey())
	require.True(t, ok)
	assert.Equal(t, "text/html", obj.ContentType)
	assert.Equal(t, res.Bundle.HTML, string(obj.Body))
}

func TestSubmitUploadFailureWarns(t *testing.T) {
	a, _ := newTestApp(t, Config{UploadHTML: true}, WithStore(blob.Nop{}))

	res, err := a.Submit(context.Background(), testSubmission())
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	assert.ErrorIs(t, res.Warnings[0], blob.ErrNotConfigured)
	assert.Empty(t, res.StoryURL)
	assert.NotEmpty(t, res.Bundle.Archive)
}

func TestSubmitRegeneratesCollidingIdentity(t *testing.T) {
	a, store := newTestApp(t, Config{})
	gen := slug.NewGenerator(testRand(), a.Config.Site.StoryBase, a.Config.Site.RenderedBase)
	taken, err := gen.Generate("Lata Mangeshkar")
	require.NoError(t, err)
	require.NoError(t, store.Put(context.Background(), "suvichaarstories", taken.HTMLKey(), []byte("x"), "text/html"))

	res, err := a.Submit(context.Background(), testSubmission())
	require.NoError(t, err)
	assert.NotEqual(t, taken.CombinedSlug, res.Identity.CombinedSlug)
	assert.Equal(t, taken.Slug, res.Identity.Slug)
}

func TestSubmitIdentityExhausted(t *testing.T) {
	a, store := newTestApp(t, Config{})
	gen := slug.NewGenerator(testRand(), a.Config.Site.StoryBase, a.Config.Site.RenderedBase)
	for range identityAttempts {
		id, err := gen.Generate("Lata Mangeshkar")
		require.NoError(t, err)
		require.NoError(t, store.Put(context.Background(), "suvichaarstories", id.HTMLKey(), nil, "text/html"))
	}

	_, err := a.Submit(context.Background(), testSubmission())
	assert.ErrorIs(t, err, ErrIdentityExhausted)
}

func TestSubmitUnresolvedTokens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "master.html")
	src := `<html><head><title>{{pagetitle}}</title></head><body><amp-story standalone>` +
		`<amp-story-auto-analytics gtag-id="G-1"></amp-story-auto-analytics></amp-story>{{subtitle}}</body></html>`
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))

	a, _ := newTestApp(t, Config{Template: TemplateConfig{Path: path}})
	res, err := a.Submit(context.Background(), testSubmission())
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	var terr *compose.UnresolvedTokenError
	require.True(t, errors.As(res.Warnings[0], &terr))
	assert.Equal(t, []compose.Token{"subtitle"}, terr.Tokens)
	assert.Contains(t, res.Bundle.HTML, "{{subtitle}}")

	strict, _ := newTestApp(t, Config{Template: TemplateConfig{Path: path, Strict: true}})
	_, err = strict.Submit(context.Background(), testSubmission())
	assert.True(t, errors.As(err, &terr))
}

func TestSubmitRepairPrefixFromConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "master.html")
	src := `<html><head></head><body><a href="{https://suvichaar.org/about}">a</a>` +
		`<a href="{https://elsewhere.org/}">b</a></body></html>`
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))

	a, _ := newTestApp(t, Config{Template: TemplateConfig{Path: path, RepairPrefix: "https://suvichaar.org/"}})
	s := testSubmission()
	s.RawHTML = testStyle
	res, err := a.Submit(context.Background(), s)
	require.NoError(t, err)
	assert.Contains(t, res.Bundle.HTML, `href="https://suvichaar.org/about"`)
	assert.Contains(t, res.Bundle.HTML, `href="{https://elsewhere.org/}"`)

	var braced bool
	for _, w := range res.Warnings {
		braced = braced || errors.Is(w, compose.ErrBracedURLs)
	}
	assert.True(t, braced)
}

func TestSubmitEscapesQuotedTitle(t *testing.T) {
	a, _ := newTestApp(t, Config{})
	s := testSubmission()
	s.Title = `Lata "Didi" Mangeshkar`

	res, err := a.Submit(context.Background(), s)
	require.NoError(t, err)
	html := res.Bundle.HTML
	assert.Contains(t, html, `<meta property="og:title" content="Lata &#34;Didi&#34; Mangeshkar">`)
	assert.Contains(t, html, `"headline": "Lata \"Didi\" Mangeshkar"`)
	assert.Contains(t, html, `<title>Lata &#34;Didi&#34; Mangeshkar | Suvichaar</title>`)
	assert.Equal(t, `Lata "Didi" Mangeshkar`, res.Manifest.StoryTitle)
}

func TestSubmitMissingTemplate(t *testing.T) {
	a, _ := newTestApp(t, Config{Template: TemplateConfig{Path: filepath.Join(t.TempDir(), "nope.html")}})
	_, err := a.Submit(context.Background(), testSubmission())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDraft(t *testing.T) {
	c := oracle.CompleterFunc(func(_ context.Context, prompt string) (string, error) {
		assert.Contains(t, prompt, "'Taj Mahal'")
		return "**Description:** A marble dream\nKeywords: taj, agra\nFilter Tags: Travel, History", nil
	})
	a, _ := newTestApp(t, Config{}, WithCompleter(c))

	d, err := a.Draft(context.Background(), " Taj Mahal ")
	require.NoError(t, err)
	assert.Equal(t, oracle.Draft{
		Description: "A marble dream",
		Keywords:    "taj, agra",
		FilterTags:  "Travel, History",
	}, d)
}

func TestDraftUnparsedAnswer(t *testing.T) {
	c := oracle.CompleterFunc(func(context.Context, string) (string, error) {
		return "I am not sure.", nil
	})
	a, _ := newTestApp(t, Config{}, WithCompleter(c))

	d, err := a.Draft(context.Background(), "Taj Mahal")
	var perr *oracle.ParseError
	assert.True(t, errors.As(err, &perr))
	assert.Equal(t, oracle.Draft{}, d)
}

func TestDraftWithoutOracle(t *testing.T) {
	a, _ := newTestApp(t, Config{})
	_, err := a.Draft(context.Background(), "Taj Mahal")
	assert.ErrorIs(t, err, ErrOracleNotConfigured)
}
