// Package slug derives URL-safe identifiers from titles and resolves them
// to a value not yet held by another document in the same collection.
package slug

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"
)

// MaxProbes bounds the number of candidates Resolve will try before giving up.
const MaxProbes = 1000

// Fallback is used as the base when a title contains nothing slugifiable.
const Fallback = "untitled"

// ErrSlugSpaceExhausted is returned when every candidate up to MaxProbes is taken.
var ErrSlugSpaceExhausted = errors.New("slug space exhausted")

var (
	// \s is ASCII-only in RE2; \v and \p{Z} add vertical tab and Unicode
	// spaces such as NBSP so they separate words instead of vanishing.
	stripRe    = regexp.MustCompile(`[^\w\s\v\p{Z}-]`)
	separateRe = regexp.MustCompile(`[\s\v\p{Z}_-]+`)
)

// Slugify lowercases title, removes everything except word characters,
// whitespace and hyphens, collapses separator runs into a single hyphen,
// and trims hyphens from both ends.
//
// Word characters follow RE2's ASCII definition, so letters outside
// [A-Za-z] are removed rather than transliterated.
func Slugify(title string) string {
	s := strings.ToLower(title)
	s = stripRe.ReplaceAllString(s, "")
	s = separateRe.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// Base returns Slugify(title), or Fallback when that is empty.
func Base(title string) string {
	if s := Slugify(title); s != "" {
		return s
	}
	return Fallback
}

// ExistsFunc reports whether a document other than the excluded one
// already holds candidate.
type ExistsFunc func(ctx context.Context, candidate string) (bool, error)

// Resolve returns base if it is free, otherwise the first free value of
// base-1, base-2, ... as reported by exists. It performs no writes; the
// value is only reserved once the caller's insert or update commits.
func Resolve(ctx context.Context, base string, exists ExistsFunc) (string, error) {
	candidate := base
	for counter := 1; counter <= MaxProbes; counter++ {
		taken, err := exists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = base + "-" + strconv.Itoa(counter)
	}
	return "", ErrSlugSpaceExhausted
}

// NeedsRegeneration reports whether an update carrying newTitle should
// recompute the slug. A nil title means the field was absent.
func NeedsRegeneration(newTitle *string, currentTitle string) bool {
	return newTitle != nil && *newTitle != currentTitle
}
