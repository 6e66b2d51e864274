package feeds

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
)

// CleanDescription strips markup, decodes entities, collapses whitespace and
// truncates to max runes.
func CleanDescription(raw string, max int) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}

	text := raw
	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw)); err == nil {
		text = doc.Text()
	}
	text = strings.Join(strings.Fields(text), " ")

	if max > 0 {
		if runes := []rune(text); len(runes) > max {
			text = string(runes[:max])
		}
	}
	return text
}

// extractImageURL picks the item's image: media:content, media:thumbnail,
// the item image, an image enclosure, then the first <img> in its content.
func extractImageURL(entry *gofeed.Item) string {
	media := entry.Extensions["media"]

	for _, content := range media["content"] {
		if url := content.Attrs["url"]; url != "" && content.Attrs["medium"] == "image" {
			return url
		}
	}
	for _, content := range media["content"] {
		if url := content.Attrs["url"]; url != "" {
			return url
		}
	}
	for _, thumb := range media["thumbnail"] {
		if url := thumb.Attrs["url"]; url != "" {
			return url
		}
	}
	for _, group := range media["group"] {
		for _, thumb := range group.Children["thumbnail"] {
			if url := thumb.Attrs["url"]; url != "" {
				return url
			}
		}
	}

	if entry.Image != nil && entry.Image.URL != "" {
		return entry.Image.URL
	}

	for _, enc := range entry.Enclosures {
		if enc != nil && enc.URL != "" && strings.HasPrefix(enc.Type, "image/") {
			return enc.URL
		}
	}

	return firstImageSrc(entry.Content, entry.Description)
}

func firstImageSrc(fragments ...string) string {
	for _, fragment := range fragments {
		if !strings.Contains(fragment, "<img") {
			continue
		}
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
		if err != nil {
			continue
		}
		if src, ok := doc.Find("img[src]").First().Attr("src"); ok && src != "" {
			return src
		}
	}
	return ""
}
