package storyengine

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/eringen/storyengine/asset"
	"github.com/eringen/storyengine/blob"
	"github.com/eringen/storyengine/bundle"
	"github.com/eringen/storyengine/compose"
	"github.com/eringen/storyengine/fragment"
	"github.com/eringen/storyengine/logger"
	"github.com/eringen/storyengine/oracle"
	"github.com/eringen/storyengine/slug"
)

// identityAttempts bounds identity regeneration on short-id collisions.
const identityAttempts = 3

var (
	// ErrIdentityExhausted is returned when every generated identity
	// collided with an existing story document.
	ErrIdentityExhausted = errors.New("storyengine: no unused story identity after retries")
	// ErrOracleNotConfigured is returned by Draft when no completer is set.
	ErrOracleNotConfigured = errors.New("storyengine: metadata oracle not configured")
)

// Submit runs the full pipeline for s. The returned error is fatal; every
// degraded step is recorded in Result.Warnings instead.
func (a *App) Submit(ctx context.Context, s Submission) (res *Result, err error) {
	started := a.now()
	defer func() {
		status := "ok"
		switch {
		case err != nil:
			status = "failed"
		case len(res.Warnings) > 0:
			status = "degraded"
		}
		a.metrics.observeSubmission(status, started, a.now())
	}()

	if err := s.Validate(a.Config.Languages); err != nil {
		return nil, err
	}
	code, err := a.Config.Categories.Code(s.Category)
	if err != nil {
		return nil, err
	}
	tmpl, err := a.templates.Get()
	if err != nil {
		return nil, fmt.Errorf("load master template: %w", err)
	}

	rnd := a.newRand()
	id, err := a.newIdentity(ctx, rnd, s.Title)
	if err != nil {
		return nil, err
	}

	res = &Result{Identity: id, CategoryCode: code}
	log := a.log.With(logger.String("urlslug", id.CombinedSlug))
	warn := func(msg string, w error) {
		res.Warnings = append(res.Warnings, w)
		a.metrics.observeWarning(w)
		log.Warn(msg, logger.Error(w))
	}

	ref, err := a.resolver.Resolve(ctx, s.ImageURL)
	if err != nil {
		warn("image not resolved", err)
	}
	res.Asset = ref
	a.metrics.observeAsset(ref.Kind)

	author, err := a.Config.Attribution.Pick(rnd)
	if err != nil {
		warn("no author picked", err)
	}
	res.Author = author

	values := a.values(s, id, ref, author)

	frag, diags := fragment.Extract(s.RawHTML)
	for _, d := range diags {
		warn("fragment not extracted", d)
	}

	doc, err := compose.Compose(tmpl, values, frag,
		compose.Strict(a.Config.Template.Strict),
		compose.WithRepairPrefix(a.Config.Template.RepairPrefix))
	if err != nil {
		return nil, fmt.Errorf("compose story: %w", err)
	}
	for _, d := range doc.Diagnostics {
		warn("story composed with problems", d)
	}

	res.Manifest = a.manifest(s, id, code)
	b, err := a.emitter.Emit(doc.HTML, res.Manifest)
	if err != nil {
		return nil, fmt.Errorf("emit bundle: %w", err)
	}
	res.Bundle = b

	if a.Config.UploadHTML {
		u, err := a.emitter.Upload(ctx, id.HTMLKey(), doc.HTML)
		if err != nil {
			warn("story html not uploaded", &asset.UploadError{Key: id.HTMLKey(), Err: err})
		} else {
			res.StoryURL = u
		}
	}

	log.Info("story bundled",
		logger.String("asset_kind", string(ref.Kind)),
		logger.String("author", author.Name),
		logger.Int("warnings", len(res.Warnings)))
	return res, nil
}

// newIdentity generates an identity whose document key is not yet taken in
// the HTML bucket. Stores that cannot answer existence checks accept the
// first identity.
func (a *App) newIdentity(ctx context.Context, rnd *rand.Rand, title string) (slug.Identity, error) {
	gen := slug.NewGenerator(rnd, a.Config.Site.StoryBase, a.Config.Site.RenderedBase)
	st, canStat := a.store.(blob.Stater)

	for attempt := 1; attempt <= identityAttempts; attempt++ {
		id, err := gen.Generate(title)
		if err != nil {
			return slug.Identity{}, err
		}
		if !canStat {
			return id, nil
		}
		taken, err := st.Exists(ctx, a.Config.Storage.HTMLBucket, id.HTMLKey())
		if err != nil {
			a.log.Warn("identity collision check failed",
				logger.String("urlslug", id.CombinedSlug), logger.Error(err))
			return id, nil
		}
		if !taken {
			return id, nil
		}
		a.log.Warn("short id collision",
			logger.String("urlslug", id.CombinedSlug), logger.Int("attempt", attempt))
	}
	return slug.Identity{}, ErrIdentityExhausted
}

func (a *App) values(s Submission, id slug.Identity, ref asset.Reference, author compose.Person) compose.Values {
	v := compose.Values{
		compose.TokenStoryTitle:      s.Title,
		compose.TokenMetaDescription: s.MetaDescription,
		compose.TokenMetaKeywords:    s.MetaKeywords,
		compose.TokenContentType:     s.ContentType,
		compose.TokenLang:            s.Language,
		compose.TokenPageTitle:       PageTitle(s.Title, a.Config.Site.Name),
		compose.TokenCanonicalURL:    id.CanonicalURL,
		compose.TokenCanonicalHTML:   id.CanonicalHTMLURL,
		compose.TokenImage:           ref.URL,
	}
	v.SetTimes(a.now())
	v.SetAttribution(author)
	for _, p := range a.Config.Assets.Presets {
		v[compose.Token(p.Name)] = ref.Transforms[p.Name]
	}
	return v
}

func (a *App) manifest(s Submission, id slug.Identity, code int) bundle.Manifest {
	m := bundle.Manifest{
		StoryTitle:      s.Title,
		Category:        code,
		FilterTags:      SplitTags(s.FilterTags),
		CoverImageLink:  asset.Cover(s.CoverURL, s.ImageURL),
		PublisherID:     a.Config.Site.PublisherID,
		StoryLogoLink:   a.Config.Site.LogoLink,
		Keywords:        s.MetaKeywords,
		MetaDescription: s.MetaDescription,
		Lang:            s.Language,
		ContentType:     s.ContentType,
	}
	m.SetIdentity(id)
	return m
}

// Draft asks the oracle for metadata suggestions for title. A response
// without any recognizable label yields an empty Draft and an
// *oracle.ParseError.
func (a *App) Draft(ctx context.Context, title string) (oracle.Draft, error) {
	if a.drafter == nil {
		return oracle.Draft{}, ErrOracleNotConfigured
	}
	d, err := a.drafter.Draft(ctx, strings.TrimSpace(title))
	var perr *oracle.ParseError
	switch {
	case err == nil:
		a.metrics.observeDraft("ok")
	case errors.As(err, &perr):
		a.metrics.observeDraft("unparsed")
		a.metrics.observeWarning(err)
		a.log.Warn("oracle answer had no labels", logger.String("title", title), logger.Error(err))
	default:
		a.metrics.observeDraft("failed")
	}
	return d, err
}
