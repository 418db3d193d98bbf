package storyengine

import "strings"

// SplitTags splits a comma-separated list, trimming entries and dropping
// empty ones.
func SplitTags(s string) []string {
	return FilterEmpty(strings.Split(s, ","))
}

// FilterEmpty removes empty/whitespace-only strings from a slice and trims
// the rest.
func FilterEmpty(vals []string) []string {
	var out []string
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// PageTitle formats the document title shown by browsers.
func PageTitle(title, site string) string {
	title = strings.TrimSpace(title)
	if site == "" {
		return title
	}
	return title + " | " + site
}
