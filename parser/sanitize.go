package parser

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// Sanitizer cleans user-submitted HTML
type Sanitizer interface {
	Clean(html string) string
}

// HTMLSanitizer strips everything but the user generated content subset of
// HTML plus inline text styles
type HTMLSanitizer struct {
	policy *bluemonday.Policy
}

// NewSanitizer creates the sanitizer used for all post bodies and thread
// titles
func NewSanitizer() *HTMLSanitizer {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("style").Globally()
	p.AllowStyles(
		"color", "background-color", "font-size", "font-style", "font-weight",
		"text-align", "text-decoration",
	).Globally()
	return &HTMLSanitizer{policy: p}
}

// Clean sanitizes html. Cleaning is idempotent.
func (s *HTMLSanitizer) Clean(html string) string {
	return strings.TrimSpace(s.policy.Sanitize(html))
}
