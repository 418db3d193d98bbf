package compose

import (
	"regexp"
	"strings"
)

var bracedAttr = regexp.MustCompile(`(\s(?:href|src))="\{([^{}"]*)\}"`)

// RepairBracedURLs unwraps href="{...}" and src="{...}" attribute values whose
// inner URL starts with prefix. It returns the repaired document and the
// number of attributes changed.
func RepairBracedURLs(doc, prefix string) (string, int) {
	n := 0
	out := bracedAttr.ReplaceAllStringFunc(doc, func(m string) string {
		sub := bracedAttr.FindStringSubmatch(m)
		if !strings.HasPrefix(sub[2], prefix) || len(sub[2]) == len(prefix) {
			return m
		}
		n++
		return sub[1] + `="` + sub[2] + `"`
	})
	return out, n
}
