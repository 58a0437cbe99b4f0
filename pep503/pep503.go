// Package pep503 normalizes Python distribution names for comparison.
package pep503

import (
	"regexp"
	"strings"
)

var separatorRe = regexp.MustCompile(`[-_.]+`)

// CanonicalizeName collapses runs of "-", "_" and "." into a single dash
// and lowercases the result, so that "Foo.Bar_baz" and "foo-bar-baz"
// compare equal.
func CanonicalizeName(name string) string {
	return strings.ToLower(separatorRe.ReplaceAllString(name, "-"))
}
