// Package sanitize detects markup in user-supplied text. Text is stored as
// given; anything an HTML parser would read as a tag is refused instead of
// being rewritten.
package sanitize

import (
	"html"

	"github.com/microcosm-cc/bluemonday"
)

// StrictPolicy removes all HTML tags and attributes.
var StrictPolicy = bluemonday.StrictPolicy()

// HasMarkup reports whether stripping every tag would change input. Both
// sides are entity-decoded before comparing, so "O'Brien & Co", "AT&amp;T"
// and "a < b" are plain text while "<b>Go</b>" and "Ana <ana>" are not.
func HasMarkup(input string) bool {
	return html.UnescapeString(StrictPolicy.Sanitize(input)) != html.UnescapeString(input)
}
