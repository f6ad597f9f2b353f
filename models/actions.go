package models

import "fmt"

// Action is a single step of a page-interaction script. Steps run in
// order on the rendered page; a failed non-optional step fails the fetch.
type Action struct {
	// Type is one of: "click", "type", "waitFor", "scroll", "hover", "press".
	Type string `json:"type" binding:"required"`

	// Selector targets an element for click/type/hover/waitFor/scroll.
	Selector string `json:"selector,omitempty"`

	// Text is the input for "type".
	Text string `json:"text,omitempty"`

	// Milliseconds is the wait duration for "waitFor" without a selector.
	Milliseconds int `json:"milliseconds,omitempty"`

	// Pixels is the scroll distance for "scroll" without a selector.
	// Negative scrolls up.
	Pixels int `json:"pixels,omitempty"`

	// Key is the keyboard key for "press" (e.g. "Enter", "Escape").
	Key string `json:"key,omitempty"`

	// Optional steps are allowed to fail without failing the fetch.
	Optional bool `json:"optional,omitempty"`
}

// Validate checks the action has the arguments its type requires.
func (a *Action) Validate() error {
	switch a.Type {
	case "click", "hover":
		if a.Selector == "" {
			return NewPeelError(ErrCodeValidation,
				fmt.Sprintf("%s action requires a selector", a.Type), nil)
		}
	case "type":
		if a.Selector == "" {
			return NewPeelError(ErrCodeValidation, "type action requires a selector", nil)
		}
	case "waitFor":
		if a.Selector == "" && a.Milliseconds <= 0 {
			return NewPeelError(ErrCodeValidation,
				"waitFor action requires a selector or milliseconds", nil)
		}
		if a.Milliseconds > 60000 {
			return NewPeelError(ErrCodeValidation, "waitFor milliseconds must be <= 60000", nil)
		}
	case "scroll":
		// Selector-less scroll with Pixels==0 scrolls one viewport.
	case "press":
		if a.Key == "" {
			return NewPeelError(ErrCodeValidation, "press action requires a key", nil)
		}
	default:
		return NewPeelError(ErrCodeValidation,
			fmt.Sprintf("unknown action type %q", a.Type), nil)
	}
	return nil
}
