package openrouter

import (
	"encoding/json"
	"fmt"
	"strings"

	"browser-pilot/internal/domain/entity"
)

// extractJSON pulls the first JSON object out of a response that may wrap it
// in prose or a code fence.
func extractJSON(content string) (string, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end == -1 || end < start {
		return "", fmt.Errorf("no JSON object in response")
	}
	return content[start : end+1], nil
}

func parseAction(content string) (entity.Action, error) {
	raw, err := extractJSON(content)
	if err != nil {
		return entity.Action{}, err
	}

	var payload struct {
		Type      string `json:"type"`
		Action    string `json:"action"`
		Selector  string `json:"selector"`
		Value     string `json:"value"`
		URL       string `json:"url"`
		Direction string `json:"direction"`
		Done      bool   `json:"done"`
		Summary   string `json:"summary"`
		Reasoning string `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return entity.Action{}, fmt.Errorf("decode action: %w", err)
	}

	name := payload.Type
	if name == "" {
		name = payload.Action
	}
	// Keep the raw name; the controller normalizes and warns on unknowns.
	return entity.Action{
		Type:      entity.ActionType(strings.ToLower(strings.TrimSpace(name))),
		Selector:  payload.Selector,
		Value:     payload.Value,
		URL:       payload.URL,
		Direction: payload.Direction,
		Done:      payload.Done,
		Summary:   payload.Summary,
		Reasoning: payload.Reasoning,
	}, nil
}

func parseVerdict(content string) (entity.Verdict, error) {
	raw, err := extractJSON(content)
	if err != nil {
		return entity.Verdict{}, err
	}

	var verdict entity.Verdict
	if err := json.Unmarshal([]byte(raw), &verdict); err != nil {
		return entity.Verdict{}, fmt.Errorf("decode verdict: %w", err)
	}
	if verdict.Confidence < 0 || verdict.Confidence > 1 {
		return entity.Verdict{}, fmt.Errorf("confidence %v out of range", verdict.Confidence)
	}
	return verdict, nil
}
