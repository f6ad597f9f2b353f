package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"

	"github.com/webpeel/webpeel/models"
)

// actionTimeout is the per-step deadline.
const actionTimeout = 10 * time.Second

// executeActions runs the interaction script in order. Optional steps
// swallow their own failures; any other failure aborts the script with
// the step index in the error.
func executeActions(ctx context.Context, page *rod.Page, actions []models.Action) error {
	for i, action := range actions {
		err := executeSingleAction(ctx, page, action)
		if err == nil {
			continue
		}
		if action.Optional {
			continue
		}
		return models.NewPeelError(
			models.ErrCodeActionFailed,
			fmt.Sprintf("action %d (%s) failed after %d completed: %v", i, action.Type, i, err),
			err,
		)
	}
	return nil
}

func executeSingleAction(ctx context.Context, page *rod.Page, action models.Action) error {
	actionCtx, cancel := context.WithTimeout(ctx, actionTimeout)
	defer cancel()

	p := page.Context(actionCtx)

	switch action.Type {
	case "click":
		return execClick(p, action)
	case "type":
		return execType(p, action)
	case "waitFor":
		return execWaitFor(p, action)
	case "scroll":
		return execScroll(p, action)
	case "hover":
		return execHover(p, action)
	case "press":
		return execPress(p, action)
	default:
		return fmt.Errorf("unknown action type: %s", action.Type)
	}
}

func execClick(p *rod.Page, action models.Action) error {
	el, err := p.Element(action.Selector)
	if err != nil {
		return fmt.Errorf("element %q not found: %w", action.Selector, err)
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

func execType(p *rod.Page, action models.Action) error {
	el, err := p.Element(action.Selector)
	if err != nil {
		return fmt.Errorf("element %q not found: %w", action.Selector, err)
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("focusing %q: %w", action.Selector, err)
	}
	return el.Input(action.Text)
}

// execWaitFor waits for a selector to match, or sleeps for the given
// duration when no selector is set.
func execWaitFor(p *rod.Page, action models.Action) error {
	if action.Selector != "" {
		return p.WaitElementsMoreThan(action.Selector, 0)
	}
	select {
	case <-time.After(time.Duration(action.Milliseconds) * time.Millisecond):
		return nil
	case <-p.GetContext().Done():
		return p.GetContext().Err()
	}
}

// execScroll scrolls to an element when a selector is set, by Pixels
// when given, and one viewport down otherwise.
func execScroll(p *rod.Page, action models.Action) error {
	if action.Selector != "" {
		el, err := p.Element(action.Selector)
		if err != nil {
			return fmt.Errorf("element %q not found: %w", action.Selector, err)
		}
		return el.ScrollIntoView()
	}

	delta := action.Pixels
	if delta == 0 {
		res, err := p.Eval(`() => window.innerHeight`)
		if err != nil {
			return fmt.Errorf("failed to get viewport height: %w", err)
		}
		delta = res.Value.Int()
	}
	if err := p.Mouse.Scroll(0, float64(delta), 0); err != nil {
		return fmt.Errorf("scroll failed: %w", err)
	}
	// Pause so lazy-loaded content can trigger.
	time.Sleep(100 * time.Millisecond)
	return nil
}

func execHover(p *rod.Page, action models.Action) error {
	el, err := p.Element(action.Selector)
	if err != nil {
		return fmt.Errorf("element %q not found: %w", action.Selector, err)
	}
	return el.Hover()
}

func execPress(p *rod.Page, action models.Action) error {
	key, ok := keyByName[action.Key]
	if !ok {
		return fmt.Errorf("unknown key: %s", action.Key)
	}
	return p.Keyboard.Type(key)
}

// keyByName maps the wire key names to rod input keys.
var keyByName = map[string]input.Key{
	"Enter":      input.Enter,
	"Tab":        input.Tab,
	"Escape":     input.Escape,
	"Backspace":  input.Backspace,
	"Delete":     input.Delete,
	"ArrowUp":    input.ArrowUp,
	"ArrowDown":  input.ArrowDown,
	"ArrowLeft":  input.ArrowLeft,
	"ArrowRight": input.ArrowRight,
	"Home":       input.Home,
	"End":        input.End,
	"PageUp":     input.PageUp,
	"PageDown":   input.PageDown,
	"Space":      input.Space,
}
