package storyengine

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/eringen/storyengine/asset"
	"github.com/eringen/storyengine/bundle"
	"github.com/eringen/storyengine/compose"
	"github.com/eringen/storyengine/slug"
)

// Content types accepted in a submission.
const (
	ContentNews    = "News"
	ContentArticle = "Article"
)

// Submission is one story as entered by an editor.
type Submission struct {
	Title           string `json:"title" form:"title"`
	MetaDescription string `json:"meta_description" form:"meta_description"`
	MetaKeywords    string `json:"meta_keywords" form:"meta_keywords"`
	ContentType     string `json:"content_type" form:"content_type"`
	Language        string `json:"language" form:"language"`
	Category        string `json:"category" form:"category"`
	FilterTags      string `json:"filter_tags" form:"filter_tags"`
	ImageURL        string `json:"image_url" form:"image_url"`
	CoverURL        string `json:"cover_url,omitempty" form:"cover_url"`
	RawHTML         string `json:"raw_html" form:"raw_html"`
}

// ValidationError lists the submission fields that are missing or invalid.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := e.Names()
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = n + ": " + e.Fields[n]
	}
	return "invalid submission: " + strings.Join(parts, "; ")
}

// Names returns the offending field names in sorted order.
func (e *ValidationError) Names() []string {
	names := make([]string, 0, len(e.Fields))
	for n := range e.Fields {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Normalize trims surrounding whitespace from every field.
func (s *Submission) Normalize() {
	for _, f := range []*string{
		&s.Title, &s.MetaDescription, &s.MetaKeywords, &s.ContentType, &s.Language,
		&s.Category, &s.FilterTags, &s.ImageURL, &s.CoverURL, &s.RawHTML,
	} {
		*f = strings.TrimSpace(*f)
	}
}

// Validate normalizes s, then checks every required field and the
// enumerations. A whitespace-only field counts as missing. languages is the
// accepted set of language codes.
func (s *Submission) Validate(languages []string) error {
	s.Normalize()

	langs := make([]any, len(languages))
	for i, l := range languages {
		langs[i] = l
	}

	err := validation.ValidateStruct(s,
		validation.Field(&s.Title, validation.Required.Error("title is required")),
		validation.Field(&s.MetaDescription, validation.Required.Error("meta description is required")),
		validation.Field(&s.MetaKeywords, validation.Required.Error("meta keywords are required")),
		validation.Field(&s.ContentType,
			validation.Required.Error("content type is required"),
			validation.In(ContentNews, ContentArticle).Error("must be News or Article")),
		validation.Field(&s.Language,
			validation.Required.Error("language is required"),
			validation.In(langs...).Error("unsupported language")),
		validation.Field(&s.Category, validation.Required.Error("category is required")),
		validation.Field(&s.FilterTags, validation.Required.Error("filter tags are required")),
		validation.Field(&s.ImageURL, validation.Required.Error("image url is required")),
		validation.Field(&s.RawHTML, validation.Required.Error("raw html is required")),
	)
	if err == nil {
		return nil
	}

	var verrs validation.Errors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate submission: %w", err)
	}
	fields := make(map[string]string, len(verrs))
	for name, fe := range verrs {
		fields[name] = fe.Error()
	}
	return &ValidationError{Fields: fields}
}

// Result is everything produced for one submission.
type Result struct {
	Identity     slug.Identity
	Asset        asset.Reference
	Author       compose.Person
	CategoryCode int
	Manifest     bundle.Manifest
	Bundle       *bundle.Bundle
	// StoryURL is set when the document was uploaded.
	StoryURL string
	// Warnings holds every non-fatal diagnostic in the order it occurred.
	Warnings []error
}

// WarningMessages renders Warnings as strings.
func (r *Result) WarningMessages() []string {
	out := make([]string, len(r.Warnings))
	for i, w := range r.Warnings {
		out[i] = w.Error()
	}
	return out
}
