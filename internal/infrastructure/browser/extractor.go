package browser

import (
	"context"
	"encoding/json"
	"fmt"

	"browser-pilot/internal/domain/entity"
	"browser-pilot/internal/infrastructure/cdp"
)

const defaultMaxElements = 50

// Extractor produces fresh PageState snapshots by evaluating the introspection
// script. Given an unchanged DOM, consecutive extractions yield identical
// element lists: selectors come from stable attributes and the engine marker
// attribute persists between runs.
type Extractor struct {
	maxElements int
}

func NewExtractor(maxElements int) *Extractor {
	if maxElements <= 0 {
		maxElements = defaultMaxElements
	}
	return &Extractor{maxElements: maxElements}
}

// Extract evaluates the introspection script and decodes the snapshot.
func (e *Extractor) Extract(ctx context.Context, conn *cdp.Client) (*entity.PageState, error) {
	value, err := conn.Evaluate(ctx, invokeScript(introspectScript, e.maxElements))
	if err != nil {
		return nil, fmt.Errorf("extract page state: %w", err)
	}

	raw, err := json.Marshal(value.Val())
	if err != nil {
		return nil, fmt.Errorf("%w: encode snapshot: %v", cdp.ErrProtocol, err)
	}

	var snapshot struct {
		URL      string `json:"url"`
		Title    string `json:"title"`
		Viewport struct {
			Width  int `json:"width"`
			Height int `json:"height"`
		} `json:"viewport"`
		Overlay *struct {
			Detected bool   `json:"detected"`
			Kind     string `json:"kind"`
			Selector string `json:"selector"`
			Text     string `json:"text"`
		} `json:"overlay"`
		Elements []struct {
			Tag          string   `json:"tag"`
			Kind         string   `json:"kind"`
			Text         string   `json:"text"`
			Selector     string   `json:"selector"`
			AltSelectors []string `json:"altSelectors"`
			Href         string   `json:"href"`
			Rect         struct {
				X float64 `json:"x"`
				Y float64 `json:"y"`
				W float64 `json:"w"`
				H float64 `json:"h"`
			} `json:"rect"`
			IsConsentButton bool `json:"isConsentButton"`
		} `json:"elements"`
	}
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return nil, fmt.Errorf("%w: decode snapshot: %v", cdp.ErrProtocol, err)
	}

	state := &entity.PageState{
		URL:   snapshot.URL,
		Title: snapshot.Title,
		Viewport: entity.Viewport{
			Width:  snapshot.Viewport.Width,
			Height: snapshot.Viewport.Height,
		},
	}
	if snapshot.Overlay != nil {
		state.Overlay = &entity.Overlay{
			Detected: snapshot.Overlay.Detected,
			Kind:     snapshot.Overlay.Kind,
			Selector: snapshot.Overlay.Selector,
			Text:     snapshot.Overlay.Text,
		}
	}
	for _, el := range snapshot.Elements {
		state.Elements = append(state.Elements, entity.Element{
			Tag:             el.Tag,
			Kind:            el.Kind,
			Text:            el.Text,
			Selector:        el.Selector,
			AltSelectors:    el.AltSelectors,
			Href:            el.Href,
			Rect:            entity.Rect{X: el.Rect.X, Y: el.Rect.Y, W: el.Rect.W, H: el.Rect.H},
			IsConsentButton: el.IsConsentButton,
		})
	}

	if text, err := e.pageText(ctx, conn); err == nil {
		state.Text = text
	}

	return state, nil
}

func (e *Extractor) pageText(ctx context.Context, conn *cdp.Client) (string, error) {
	value, err := conn.Evaluate(ctx, invokeScript(pageHTMLScript))
	if err != nil {
		return "", err
	}
	return CondenseHTML(value.Str(), nil), nil
}

// invokeScript builds the evaluate expression for a script function literal.
// Arguments are spliced as JSON literals only, never as raw source.
func invokeScript(script string, args ...any) string {
	encoded := make([]byte, 0, 64)
	for i, arg := range args {
		if i > 0 {
			encoded = append(encoded, ',')
		}
		raw, err := json.Marshal(arg)
		if err != nil {
			raw = []byte("null")
		}
		encoded = append(encoded, raw...)
	}
	return fmt.Sprintf("(%s)(%s)", script, encoded)
}
