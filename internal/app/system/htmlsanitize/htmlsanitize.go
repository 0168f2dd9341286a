// internal/app/system/htmlsanitize/htmlsanitize.go

// Package htmlsanitize strips markup from free-text fields before they are
// persisted. Mission and group descriptions arrive from admin forms and may
// be echoed into other clients, so they are reduced to plain text.
package htmlsanitize

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var strict = bluemonday.StrictPolicy()

// PlainText removes all HTML from s and trims surrounding whitespace.
func PlainText(s string) string {
	return strings.TrimSpace(strict.Sanitize(s))
}
