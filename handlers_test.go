package storyengine

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/storyengine/bundle"
)

func postJSON(t *testing.T, a *App, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, target, bytes.NewReader(data))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	a.Echo.ServeHTTP(rec, req)
	return rec
}

func TestHandleSubmitJSON(t *testing.T) {
	a, _ := newTestApp(t, Config{})

	rec := postJSON(t, a, "/api/stories", testSubmission())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	var got submitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "lata-mangeshkar", got.Identity.Slug)
	assert.Equal(t, 22, got.Category)
	assert.Equal(t, "media", got.AssetKind)
	assert.Empty(t, got.Warnings)
	assert.Contains(t, got.HTML, testStory)

	var m bundle.Manifest
	require.NoError(t, json.Unmarshal(got.Manifest, &m))
	assert.Equal(t, got.Identity.CombinedSlug, m.URLSlug)

	html, _, err := bundle.ReadArchive(got.Archive)
	require.NoError(t, err)
	assert.Equal(t, got.HTML, html)
}

func TestHandleSubmitZip(t *testing.T) {
	a, _ := newTestApp(t, Config{})

	rec := postJSON(t, a, "/api/stories?format=zip", testSubmission())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/zip", rec.Header().Get(echo.HeaderContentType))
	assert.Contains(t, rec.Header().Get(echo.HeaderContentDisposition), `_story_bundle.zip"`)

	_, m, err := bundle.ReadArchive(rec.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "Lata Mangeshkar", m.StoryTitle)
}

func TestHandleSubmitSummaryPage(t *testing.T) {
	a, _ := newTestApp(t, Config{})
	s := testSubmission()
	s.Title = "Lata <Mangeshkar>"

	rec := postJSON(t, a, "/api/stories?format=html", s)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, echo.MIMETextHTMLCharsetUTF8, rec.Header().Get(echo.HeaderContentType))
	body := rec.Body.String()
	assert.Contains(t, body, "<h1>Lata &lt;Mangeshkar&gt;</h1>")
	assert.Contains(t, body, "_story_bundle.zip")
}

func TestHandleSubmitUnknownFormat(t *testing.T) {
	a, _ := newTestApp(t, Config{})
	rec := postJSON(t, a, "/api/stories?format=pdf", testSubmission())
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleSubmitMultipart(t *testing.T) {
	a, _ := newTestApp(t, Config{})

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	s := testSubmission()
	fields := map[string]string{
		"title":            s.Title,
		"meta_description": s.MetaDescription,
		"meta_keywords":    s.MetaKeywords,
		"content_type":     s.ContentType,
		"language":         s.Language,
		"category":         s.Category,
		"filter_tags":      s.FilterTags,
		"image_url":        s.ImageURL,
	}
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	part, err := w.CreateFormFile("html_file", "story.html")
	require.NoError(t, err)
	_, err = part.Write([]byte(testRaw))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/stories", &body)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	rec := httptest.NewRecorder()
	a.Echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var got submitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Contains(t, got.HTML, testStyle)
	assert.Empty(t, got.Warnings)
}

func TestHandleSubmitErrors(t *testing.T) {
	a, _ := newTestApp(t, Config{})

	invalid := testSubmission()
	invalid.MetaKeywords = ""
	rec := postJSON(t, a, "/api/stories", invalid)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body.Fields, "meta_keywords")

	food := testSubmission()
	food.Category = "Food"
	rec = postJSON(t, a, "/api/stories", food)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "Food")

	req := httptest.NewRequest(http.MethodPost, "/api/stories", strings.NewReader("{not json"))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec = httptest.NewRecorder()
	a.Echo.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleSubmitRateLimited(t *testing.T) {
	a, _ := newTestApp(t, Config{Server: ServerConfig{RateLimit: 1}})

	first := postJSON(t, a, "/api/stories", testSubmission())
	assert.Equal(t, http.StatusOK, first.Code)
	second := postJSON(t, a, "/api/stories", testSubmission())
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}

func TestHandleDraft(t *testing.T) {
	a, _ := newTestApp(t, Config{})
	rec := postJSON(t, a, "/api/drafts", map[string]string{"title": "Taj Mahal"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = postJSON(t, a, "/api/drafts", map[string]string{"title": " "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	a, _ := newTestApp(t, Config{})
	postJSON(t, a, "/api/stories", testSubmission())

	rec := httptest.NewRecorder()
	a.Echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	a.Echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `storyengine_submissions_total{status="ok"} 1`)
	assert.Contains(t, rec.Body.String(), `storyengine_assets_resolved_total{kind="media"} 1`)
}
