package automation

import (
	"net/url"
	"strings"

	"browser-pilot/internal/domain/entity"
)

// FallbackStrategy proposes an alternative action after a failed attempt.
// A strategy returns false when it has nothing different to offer; the ladder
// is exhausted once no remaining strategy yields a new action.
type FallbackStrategy interface {
	Name() string
	Resolve(original, previous entity.Action, state *entity.PageState) (entity.Action, bool)
}

// RetryEngine applies the ordered strategy ladder. Adding a strategy means
// appending to the list.
type RetryEngine struct {
	strategies []FallbackStrategy
}

func NewRetryEngine() *RetryEngine {
	return &RetryEngine{
		strategies: []FallbackStrategy{
			textMatchStrategy{},
			altSelectorStrategy{},
			linkNavigateStrategy{},
		},
	}
}

// Resolve picks the next fallback for the given attempt (1-based). Strategies
// are attempt-indexed: attempt n starts at strategy n and walks forward until
// one yields an action different from the previous attempt.
func (e *RetryEngine) Resolve(attempt int, original, previous entity.Action, state *entity.PageState) (entity.Action, string, bool) {
	if state == nil || attempt < 1 || attempt > len(e.strategies) {
		return entity.Action{}, "", false
	}
	for _, s := range e.strategies[attempt-1:] {
		candidate, ok := s.Resolve(original, previous, state)
		if ok && !sameAttempt(candidate, previous) {
			return candidate, s.Name(), true
		}
	}
	return entity.Action{}, "", false
}

func sameAttempt(a, b entity.Action) bool {
	return a.Type == b.Type && a.Selector == b.Selector && a.URL == b.URL && a.Value == b.Value
}

// textMatchStrategy retargets the action at an element whose visible text
// contains the typed value or a fragment of the policy's stated reasoning.
type textMatchStrategy struct{}

func (textMatchStrategy) Name() string { return "text-match" }

func (textMatchStrategy) Resolve(original, previous entity.Action, state *entity.PageState) (entity.Action, bool) {
	needle := strings.ToLower(strings.TrimSpace(original.Value))
	reasoning := strings.ToLower(original.Reasoning)

	for _, el := range state.Elements {
		text := strings.ToLower(strings.TrimSpace(el.Text))
		if text == "" || el.Selector == previous.Selector {
			continue
		}
		byValue := needle != "" && strings.Contains(text, needle)
		byReasoning := reasoning != "" && len(text) >= 3 && strings.Contains(reasoning, text)
		if byValue || byReasoning {
			next := original
			next.Selector = el.Selector
			return next, true
		}
	}
	return entity.Action{}, false
}

// altSelectorStrategy walks the element's fallback selector ladder: the entry
// after the one the previous attempt used, or the first entry.
type altSelectorStrategy struct{}

func (altSelectorStrategy) Name() string { return "alt-selector" }

func (altSelectorStrategy) Resolve(original, previous entity.Action, state *entity.PageState) (entity.Action, bool) {
	el, ok := state.FindBySelector(original.Selector)
	if !ok || len(el.AltSelectors) == 0 {
		return entity.Action{}, false
	}

	start := 0
	for i, alt := range el.AltSelectors {
		if alt == previous.Selector {
			start = i + 1
			break
		}
	}
	if start >= len(el.AltSelectors) {
		return entity.Action{}, false
	}

	next := original
	next.Selector = el.AltSelectors[start]
	return next, true
}

// linkNavigateStrategy rewrites a failed click on a plain link into a direct
// navigation, avoiding click synthesis entirely.
type linkNavigateStrategy struct{}

func (linkNavigateStrategy) Name() string { return "link-navigate" }

func (linkNavigateStrategy) Resolve(original, previous entity.Action, state *entity.PageState) (entity.Action, bool) {
	if original.Type != entity.ActionClick {
		return entity.Action{}, false
	}
	el, ok := state.FindBySelector(original.Selector)
	if !ok || el.Href == "" {
		return entity.Action{}, false
	}

	reasoning := strings.ToLower(original.Reasoning)
	text := strings.ToLower(strings.TrimSpace(el.Text))
	if reasoning != "" && text != "" && !strings.Contains(reasoning, text) {
		return entity.Action{}, false
	}

	next := original
	next.Type = entity.ActionNavigate
	next.Selector = ""
	next.URL = absoluteHref(state.URL, el.Href)
	return next, true
}

func absoluteHref(pageURL, href string) string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
