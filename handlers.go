package storyengine

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/eringen/storyengine/oracle"
	"github.com/eringen/storyengine/slug"
	"github.com/eringen/storyengine/views"
)

// maxHTMLFile caps an uploaded raw HTML file.
const maxHTMLFile = 5 << 20

func (a *App) setupRoutes() {
	e := a.Echo

	e.GET("/healthz", handleHealth)
	e.GET("/metrics", echo.WrapHandler(a.metrics.Handler()))

	api := e.Group("/api")
	api.POST("/stories", a.handleSubmit, a.rateLimit)
	api.POST("/drafts", a.handleDraft, a.rateLimit)
}

func handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// submitResponse is the JSON form of a Result.
type submitResponse struct {
	Identity    slug.Identity   `json:"identity"`
	Category    int             `json:"category"`
	Author      string          `json:"author"`
	AssetKind   string          `json:"asset_kind"`
	ImageURL    string          `json:"image_url"`
	StoryURL    string          `json:"story_url,omitempty"`
	Manifest    json.RawMessage `json:"manifest"`
	HTML        string          `json:"html"`
	ArchiveName string          `json:"archive_name"`
	Archive     []byte          `json:"archive"`
	Warnings    []string        `json:"warnings"`
}

func (a *App) handleSubmit(c echo.Context) error {
	var s Submission
	if err := c.Bind(&s); err != nil {
		return err
	}
	if err := bindHTMLFile(c, &s); err != nil {
		return err
	}

	res, err := a.Submit(c.Request().Context(), s)
	if err != nil {
		return err
	}
	b := res.Bundle

	switch strings.ToLower(c.QueryParam("format")) {
	case "zip":
		return Attachment(c, b.ArchiveName, "application/zip", b.Archive)
	case "html":
		return Render(c, views.Summary(a.summary(res)))
	case "", "json":
		return c.JSON(http.StatusOK, submitResponse{
			Identity:    res.Identity,
			Category:    res.CategoryCode,
			Author:      res.Author.Name,
			AssetKind:   string(res.Asset.Kind),
			ImageURL:    res.Asset.URL,
			StoryURL:    res.StoryURL,
			Manifest:    json.RawMessage(b.Manifest),
			HTML:        b.HTML,
			ArchiveName: b.ArchiveName,
			Archive:     b.Archive,
			Warnings:    res.WarningMessages(),
		})
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "format must be json, zip or html")
	}
}

// bindHTMLFile reads an uploaded html_file part into s.RawHTML. The form
// field wins over raw_html when both are sent.
func bindHTMLFile(c echo.Context, s *Submission) error {
	if !strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		return nil
	}
	fh, err := c.FormFile("html_file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil
		}
		return echo.NewHTTPError(http.StatusBadRequest, "invalid html_file upload")
	}
	if fh.Size > maxHTMLFile {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "html_file too large")
	}
	f, err := fh.Open()
	if err != nil {
		return fmt.Errorf("open html_file: %w", err)
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxHTMLFile))
	if err != nil {
		return fmt.Errorf("read html_file: %w", err)
	}
	s.RawHTML = string(data)
	return nil
}

func (a *App) summary(res *Result) views.SummaryData {
	return views.SummaryData{
		SiteName:     a.Config.Site.Name,
		Title:        res.Manifest.StoryTitle,
		URLSlug:      res.Identity.CombinedSlug,
		StoryLink:    res.Identity.CanonicalURL,
		StoryHTMLURL: res.Identity.CanonicalHTMLURL,
		StoryURL:     res.StoryURL,
		CoverImage:   res.Manifest.CoverImageLink,
		ImageURL:     res.Asset.URL,
		AssetKind:    string(res.Asset.Kind),
		Author:       res.Author.Name,
		AuthorURL:    res.Author.ProfileURL,
		CategoryCode: res.CategoryCode,
		FilterTags:   res.Manifest.FilterTags,
		ArchiveName:  res.Bundle.ArchiveName,
		Manifest:     string(res.Bundle.Manifest),
		Warnings:     res.WarningMessages(),
	}
}

type draftRequest struct {
	Title string `json:"title" form:"title"`
}

type draftResponse struct {
	oracle.Draft
	Warning string `json:"warning,omitempty"`
}

func (a *App) handleDraft(c echo.Context) error {
	var req draftRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if strings.TrimSpace(req.Title) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "title is required")
	}

	d, err := a.Draft(c.Request().Context(), req.Title)
	var perr *oracle.ParseError
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, draftResponse{Draft: d})
	case errors.As(err, &perr):
		return c.JSON(http.StatusOK, draftResponse{Draft: d, Warning: perr.Error()})
	default:
		return err
	}
}
