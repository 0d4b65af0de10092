package automation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"browser-pilot/internal/domain/entity"
)

func searchPageState() *entity.PageState {
	return &entity.PageState{
		URL: "https://shop.test/catalog",
		Elements: []entity.Element{
			{
				Tag:          "input",
				Kind:         "input",
				Selector:     "#search",
				AltSelectors: []string{"input[name=q]", "[data-pilot-id=el-0]"},
			},
			{
				Tag:      "button",
				Kind:     "button",
				Text:     "Add to cart",
				Selector: "#add-to-cart",
			},
			{
				Tag:      "a",
				Kind:     "link",
				Text:     "Checkout",
				Selector: "a[href=/checkout]",
				Href:     "/checkout",
			},
		},
	}
}

func TestRetryEngine_TextMatchByValue(t *testing.T) {
	engine := NewRetryEngine()
	original := entity.Action{Type: entity.ActionClick, Selector: "#missing", Value: "add to cart"}

	resolved, strategy, ok := engine.Resolve(1, original, original, searchPageState())
	require.True(t, ok)
	assert.Equal(t, "text-match", strategy)
	assert.Equal(t, "#add-to-cart", resolved.Selector)
	assert.Equal(t, entity.ActionClick, resolved.Type)
}

func TestRetryEngine_TextMatchByReasoning(t *testing.T) {
	engine := NewRetryEngine()
	original := entity.Action{
		Type:      entity.ActionClick,
		Selector:  "#missing",
		Reasoning: "I should click the Checkout link to reach payment",
	}

	resolved, strategy, ok := engine.Resolve(1, original, original, searchPageState())
	require.True(t, ok)
	assert.Equal(t, "text-match", strategy)
	assert.Equal(t, "a[href=/checkout]", resolved.Selector)
}

func TestRetryEngine_AltSelectorLadder(t *testing.T) {
	engine := NewRetryEngine()
	original := entity.Action{Type: entity.ActionTypeText, Selector: "#search", Value: "wireless mouse"}

	// Attempt 2 starts at the alt-selector strategy; the first ladder entry
	// differs from the failed selector, so it wins.
	resolved, strategy, ok := engine.Resolve(2, original, original, searchPageState())
	require.True(t, ok)
	assert.Equal(t, "alt-selector", strategy)
	assert.Equal(t, "input[name=q]", resolved.Selector)

	// A later attempt that already burned the first alternative advances to
	// the next one.
	previous := original
	previous.Selector = "input[name=q]"
	resolved, strategy, ok = engine.Resolve(2, original, previous, searchPageState())
	require.True(t, ok)
	assert.Equal(t, "alt-selector", strategy)
	assert.Equal(t, "[data-pilot-id=el-0]", resolved.Selector)
}

func TestRetryEngine_LinkNavigate(t *testing.T) {
	engine := NewRetryEngine()
	original := entity.Action{
		Type:      entity.ActionClick,
		Selector:  "a[href=/checkout]",
		Reasoning: "click checkout",
	}

	resolved, strategy, ok := engine.Resolve(3, original, original, searchPageState())
	require.True(t, ok)
	assert.Equal(t, "link-navigate", strategy)
	assert.Equal(t, entity.ActionNavigate, resolved.Type)
	assert.Equal(t, "https://shop.test/checkout", resolved.URL)
	assert.Empty(t, resolved.Selector)
}

func TestRetryEngine_LinkNavigateNeedsMatchingReasoning(t *testing.T) {
	engine := NewRetryEngine()
	original := entity.Action{
		Type:      entity.ActionClick,
		Selector:  "a[href=/checkout]",
		Reasoning: "dismiss the cookie banner",
	}

	_, _, ok := engine.Resolve(3, original, original, searchPageState())
	assert.False(t, ok)
}

func TestRetryEngine_SkipsCandidateEqualToPrevious(t *testing.T) {
	engine := NewRetryEngine()

	// The only text match is the element the previous attempt already used;
	// the walk must continue instead of proposing the same attempt again.
	state := &entity.PageState{
		URL: "https://shop.test/",
		Elements: []entity.Element{
			{Tag: "button", Text: "Add to cart", Selector: "#add-to-cart"},
		},
	}
	original := entity.Action{Type: entity.ActionClick, Selector: "#add-to-cart", Value: "add to cart"}

	_, _, ok := engine.Resolve(1, original, original, state)
	assert.False(t, ok)
}

func TestRetryEngine_Exhausted(t *testing.T) {
	engine := NewRetryEngine()
	state := &entity.PageState{URL: "https://shop.test/"}
	original := entity.Action{Type: entity.ActionClick, Selector: "#gone"}

	for attempt := 1; attempt <= 3; attempt++ {
		_, _, ok := engine.Resolve(attempt, original, original, state)
		assert.False(t, ok, "attempt %d", attempt)
	}

	// Attempts beyond the ladder never resolve.
	_, _, ok := engine.Resolve(4, original, original, state)
	assert.False(t, ok)
}

func TestRetryEngine_NilState(t *testing.T) {
	engine := NewRetryEngine()
	original := entity.Action{Type: entity.ActionClick, Selector: "#a"}

	_, _, ok := engine.Resolve(1, original, original, nil)
	assert.False(t, ok)
}
