package entity

import "strings"

// ActionType is the closed set of actions the engine knows how to execute.
type ActionType string

const (
	ActionNavigate ActionType = "navigate"
	ActionTypeText ActionType = "type"
	ActionSubmit   ActionType = "submit"
	ActionClick    ActionType = "click"
	ActionScroll   ActionType = "scroll"
	ActionWait     ActionType = "wait"
	ActionDone     ActionType = "done"
)

// Action is one atomic step chosen by the decision policy.
type Action struct {
	Type      ActionType `json:"type"`
	Selector  string     `json:"selector,omitempty"`
	Value     string     `json:"value,omitempty"`
	URL       string     `json:"url,omitempty"`
	Direction string     `json:"direction,omitempty"`
	Done      bool       `json:"done,omitempty"`
	Summary   string     `json:"summary,omitempty"`
	Reasoning string     `json:"reasoning,omitempty"`
}

// ActionOutcome is the result of one execution attempt.
type ActionOutcome struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// actionSynonyms maps free-form action names the policy may emit to canonical types.
var actionSynonyms = map[string]ActionType{
	"navigate":    ActionNavigate,
	"open":        ActionNavigate,
	"goto":        ActionNavigate,
	"go_to":       ActionNavigate,
	"visit":       ActionNavigate,
	"type":        ActionTypeText,
	"input":       ActionTypeText,
	"fill":        ActionTypeText,
	"enter_text":  ActionTypeText,
	"submit":      ActionSubmit,
	"press enter": ActionSubmit,
	"press_enter": ActionSubmit,
	"enter":       ActionSubmit,
	"click":       ActionClick,
	"press":       ActionClick,
	"tap":         ActionClick,
	"scroll":      ActionScroll,
	"scroll_down": ActionScroll,
	"scroll_up":   ActionScroll,
	"wait":        ActionWait,
	"pause":       ActionWait,
	"done":        ActionDone,
	"finish":      ActionDone,
	"finished":    ActionDone,
	"complete":    ActionDone,
	"stop":        ActionDone,
}

// impliedDirections carries the direction baked into a directional synonym.
var impliedDirections = map[string]string{
	"scroll_up":   "up",
	"scroll_down": "down",
}

// NormalizeActionType maps a free-form action name to the canonical set.
// Unrecognized names normalize to wait; the caller decides whether to warn.
func NormalizeActionType(raw string) (ActionType, bool) {
	key := strings.ToLower(strings.TrimSpace(raw))
	if t, ok := actionSynonyms[key]; ok {
		return t, true
	}
	return ActionWait, false
}

// Normalized returns the action with its type mapped to the canonical set
// and any field implied by the name (e.g. a scroll direction) filled in.
// Unrecognized types normalize to wait; the caller decides whether to warn.
func (a Action) Normalized() (Action, bool) {
	key := strings.ToLower(strings.TrimSpace(string(a.Type)))
	t, known := actionSynonyms[key]
	if !known {
		a.Type = ActionWait
		return a, false
	}
	a.Type = t
	if dir, ok := impliedDirections[key]; ok && a.Direction == "" {
		a.Direction = dir
	}
	return a, true
}

// IsTerminal reports whether executing the action ends the run.
func (a Action) IsTerminal() bool {
	return a.Type == ActionDone || a.Done
}
