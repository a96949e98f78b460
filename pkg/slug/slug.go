// Package slug checks product slugs before they are put in a URL path.
package slug

import "regexp"

var validSlug = regexp.MustCompile(`^[a-z0-9]+(?:[-_][a-z0-9]+)*$`)

// MaxLength is the longest slug the catalog stores.
const MaxLength = 200

// Valid reports whether s is usable as a product slug in a URL path.
func Valid(s string) bool {
	return s != "" && len(s) <= MaxLength && validSlug.MatchString(s)
}
