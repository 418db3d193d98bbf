package views

import (
	"bytes"
	"context"
	"io"
	"strconv"

	"github.com/a-h/templ"
)

// Summary renders the page returned after a submission from the browser.
func Summary(d SummaryData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var buf bytes.Buffer
		renderSummary(&buf, d)
		_, err := w.Write(buf.Bytes())
		return err
	})
}

func renderSummary(buf *bytes.Buffer, d SummaryData) {
	e := templ.EscapeString[string]

	buf.WriteString(`<!doctype html><html lang="en"><head><meta charset="utf-8">`)
	buf.WriteString(`<meta name="viewport" content="width=device-width,initial-scale=1">`)
	buf.WriteString("<title>" + e(d.Title) + " | " + e(d.SiteName) + "</title>")
	buf.WriteString(`<style>body{font-family:system-ui,sans-serif;max-width:46rem;margin:2rem auto;padding:0 1rem}` +
		`dt{font-weight:600}dd{margin:0 0 .75rem}pre{background:#f5f5f4;padding:1rem;overflow:auto}` +
		`.warn{color:#9a3412}</style></head><body>`)

	buf.WriteString("<h1>" + e(d.Title) + "</h1>")
	buf.WriteString("<dl>")
	item := func(label, value string) {
		if value == "" {
			return
		}
		buf.WriteString("<dt>" + e(label) + "</dt><dd>" + e(value) + "</dd>")
	}
	link := func(label, href string) {
		if href == "" {
			return
		}
		buf.WriteString("<dt>" + e(label) + `</dt><dd><a href="` + e(SafeURL(href)) + `">` + e(href) + "</a></dd>")
	}
	item("URL slug", d.URLSlug)
	link("Story link", d.StoryLink)
	link("Story HTML", d.StoryHTMLURL)
	link("Uploaded", d.StoryURL)
	link("Cover image", d.CoverImage)
	link("Resolved image", d.ImageURL)
	item("Image source", d.AssetKind)
	if d.Author != "" {
		buf.WriteString("<dt>Author</dt><dd>")
		if d.AuthorURL != "" {
			buf.WriteString(`<a href="` + e(SafeURL(d.AuthorURL)) + `">` + e(d.Author) + "</a>")
		} else {
			buf.WriteString(e(d.Author))
		}
		buf.WriteString("</dd>")
	}
	item("Category", strconv.Itoa(d.CategoryCode))
	item("Filter tags", JoinTags(d.FilterTags))
	item("Bundle", d.ArchiveName)
	buf.WriteString("</dl>")

	if len(d.Warnings) > 0 {
		buf.WriteString(`<h2 class="warn">` + e(Plural(len(d.Warnings), "warning")) + "</h2><ul>")
		for _, w := range d.Warnings {
			buf.WriteString(`<li class="warn">` + e(w) + "</li>")
		}
		buf.WriteString("</ul>")
	}

	if d.Manifest != "" {
		buf.WriteString("<h2>Manifest</h2><pre>" + e(d.Manifest) + "</pre>")
	}
	buf.WriteString("</body></html>")
}
