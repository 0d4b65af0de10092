package browser

import (
	"strings"

	"golang.org/x/net/html"
)

// CondenseConfig controls how page markup is reduced to observation text.
type CondenseConfig struct {
	SkipTags      []string
	MaxOutputSize int
}

var DefaultCondenseConfig = CondenseConfig{
	SkipTags: []string{
		"script", "style", "noscript", "svg", "iframe",
		"link", "meta", "head", "title", "template",
	},
	MaxOutputSize: 4000,
}

// CondenseHTML reduces raw markup to the visible text a reader would see,
// whitespace-collapsed and bounded. The decision policy gets this alongside
// the element list so it can reason about content, not just controls.
func CondenseHTML(rawHTML string, cfg *CondenseConfig) string {
	if cfg == nil {
		cfg = &DefaultCondenseConfig
	}

	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return ""
	}

	var parts []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && isOneOf(n.Data, cfg.SkipTags...) {
			return
		}
		if n.Type == html.TextNode {
			if text := strings.TrimSpace(n.Data); text != "" {
				parts = append(parts, text)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	result := strings.Join(parts, " ")
	result = strings.Join(strings.Fields(result), " ")
	if cfg.MaxOutputSize > 0 && len(result) > cfg.MaxOutputSize {
		result = result[:cfg.MaxOutputSize]
	}
	return result
}

func isOneOf(value string, options ...string) bool {
	for _, opt := range options {
		if value == opt {
			return true
		}
	}
	return false
}
