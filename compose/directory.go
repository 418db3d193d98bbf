package compose

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"sort"
)

// ErrEmptyDirectory is returned by Pick when there is nobody to credit.
var ErrEmptyDirectory = errors.New("compose: attribution directory is empty")

// Person is a credited author.
type Person struct {
	Name       string
	ProfileURL string
}

// Directory maps author names to profile URLs.
type Directory map[string]string

// DefaultDirectory returns the built-in author directory.
func DefaultDirectory() Directory {
	return Directory{
		"Mayank": "https://www.instagram.com/iamkrmayank?igsh=eW82NW1qbjh4OXY2&utm_source=qr",
		"Onip":   "https://www.instagram.com/onip.mathur/profilecard/?igsh=MW5zMm5qMXhybGNmdA==",
		"Naman":  "https://njnaman.in/",
	}
}

// Names returns the directory's names, sorted.
func (d Directory) Names() []string {
	names := make([]string, 0, len(d))
	for n := range d {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Pick draws one person uniformly from r. Names are sorted first so a seeded
// source always yields the same person.
func (d Directory) Pick(r *rand.Rand) (Person, error) {
	if len(d) == 0 {
		return Person{}, ErrEmptyDirectory
	}
	names := d.Names()
	name := names[r.IntN(len(names))]
	return Person{Name: name, ProfileURL: d[name]}, nil
}

// UnknownCategoryError reports a category with no numeric code.
type UnknownCategoryError struct {
	Name string
}

func (e *UnknownCategoryError) Error() string {
	return fmt.Sprintf("compose: unknown category %q", e.Name)
}

// Categories maps category names to the publisher's numeric filter codes.
type Categories map[string]int

// DefaultCategories returns the built-in category table.
func DefaultCategories() Categories {
	return Categories{
		"Art":           21,
		"Travel":        22,
		"Entertainment": 23,
		"Literature":    24,
		"Books":         25,
		"Sports":        26,
		"History":       27,
		"Culture":       28,
		"Wildlife":      29,
		"Spiritual":     30,
	}
}

// Code looks up name. Matching is exact.
func (c Categories) Code(name string) (int, error) {
	code, ok := c[name]
	if !ok {
		return 0, &UnknownCategoryError{Name: name}
	}
	return code, nil
}

// Names returns the category names ordered by code.
func (c Categories) Names() []string {
	names := make([]string, 0, len(c))
	for n := range c {
		names = append(names, n)
	}
	slices.SortFunc(names, func(a, b string) int {
		if c[a] != c[b] {
			return c[a] - c[b]
		}
		if a < b {
			return -1
		}
		return 1
	})
	return names
}
