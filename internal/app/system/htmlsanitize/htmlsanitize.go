// Package htmlsanitize cleans editor-supplied HTML before it is stored:
// blog post bodies and RICHTEXT content values keep safe formatting, while
// plain fields (excerpts, short descriptions) are reduced to text.
package htmlsanitize

import (
	"html/template"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	// policy is the shared bluemonday policy for sanitizing rich text.
	policy     *bluemonday.Policy
	policyOnce sync.Once

	strict     *bluemonday.Policy
	strictOnce sync.Once
)

// getPolicy returns the shared sanitization policy, creating it on first use.
func getPolicy() *bluemonday.Policy {
	policyOnce.Do(func() {
		// Start with UGC (User Generated Content) policy as base
		policy = bluemonday.UGCPolicy()

		// Tables for itineraries and price lists
		policy.AllowElements("table", "thead", "tbody", "tfoot", "tr", "th", "td")
		policy.AllowAttrs("colspan", "rowspan").OnElements("th", "td")
		policy.AllowAttrs("class").OnElements("table", "th", "td", "tr")

		// Allow common text formatting
		policy.AllowElements("u", "s", "sub", "sup", "mark")

		// Responsive images and embedded galleries
		policy.AllowAttrs("loading", "srcset", "sizes").OnElements("img")
		policy.AllowElements("figure", "figcaption")

		// Links opened from the public site never get a handle on the opener
		policy.RequireNoReferrerOnLinks(true)
		policy.AddTargetBlankToFullyQualifiedLinks(true)
	})
	return policy
}

// Sanitize cleans HTML input, removing potentially dangerous elements and attributes.
// It preserves safe formatting like bold, italic, lists, links, and tables.
// Returns the sanitized HTML string.
func Sanitize(html string) string {
	if html == "" {
		return ""
	}
	return getPolicy().Sanitize(html)
}

// StripTags removes every tag and returns the remaining text.
func StripTags(s string) string {
	if s == "" {
		return ""
	}
	strictOnce.Do(func() { strict = bluemonday.StrictPolicy() })
	return strings.TrimSpace(strict.Sanitize(s))
}

// IsPlainText checks if content appears to be plain text (no HTML tags).
func IsPlainText(content string) bool {
	if content == "" {
		return true
	}
	// Valid HTML tags require both characters.
	return !strings.Contains(content, "<") || !strings.Contains(content, ">")
}

// PlainTextToHTML escapes text, converts newlines to <br> and wraps the
// result in a <p> tag.
func PlainTextToHTML(text string) string {
	if text == "" {
		return ""
	}
	escaped := template.HTMLEscapeString(text)
	escaped = strings.ReplaceAll(escaped, "\n", "<br>")
	return "<p>" + escaped + "</p>"
}

// RichText prepares editor input for storage. Plain text is converted to
// minimal HTML; HTML is sanitized.
func RichText(content string) string {
	if strings.TrimSpace(content) == "" {
		return ""
	}
	if IsPlainText(content) {
		return PlainTextToHTML(content)
	}
	return Sanitize(content)
}
