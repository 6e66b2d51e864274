package clustering

import (
	"regexp"
	"strings"
)

const (
	maxTopicLength = 120
	maxSlugLength  = 80
)

var (
	leadingLabel   = regexp.MustCompile(`(?i)^(breaking|exclusive|update|opinion|analysis)\s*:\s*`)
	outletSuffix   = regexp.MustCompile(`\s+[-–—|]\s+.*$`)
	slugDisallowed = regexp.MustCompile(`[^a-z0-9\s-]`)
	whitespaceRun  = regexp.MustCompile(`\s+`)
)

// ExtractTopic derives a cluster topic from a headline: a leading label such as
// "BREAKING:" and a trailing " - Outlet" suffix are removed, then the result is
// cut to 120 characters.
func ExtractTopic(title string) string {
	topic := leadingLabel.ReplaceAllString(strings.TrimSpace(title), "")
	topic = outletSuffix.ReplaceAllString(topic, "")
	return truncateRunes(strings.TrimSpace(topic), maxTopicLength)
}

// Slugify lowercases text, keeps only [a-z0-9 -], turns whitespace runs into
// hyphens and cuts the result to 80 characters.
func Slugify(text string) string {
	slug := slugDisallowed.ReplaceAllString(strings.ToLower(text), "")
	slug = whitespaceRun.ReplaceAllString(slug, "-")
	if len(slug) > maxSlugLength {
		slug = slug[:maxSlugLength]
	}
	return slug
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
