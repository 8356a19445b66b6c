package design

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoPendingText indicates a confirm without a captured click-to-add position.
	ErrNoPendingText = errors.New("design: no pending text entry")
	// ErrUnknownPointerEvent indicates an input sample type the controller does not handle.
	ErrUnknownPointerEvent = errors.New("design: unknown pointer event")
)

const defaultShortcutText = "Your text"

// PointerEventType enumerates mouse and touch input the controller understands.
type PointerEventType string

const (
	PointerDown        PointerEventType = "down"
	PointerMove        PointerEventType = "move"
	PointerUp          PointerEventType = "up"
	PointerLeave       PointerEventType = "leave"
	PointerClick       PointerEventType = "click"
	PointerResizeStart PointerEventType = "resize_start"
	TouchStart         PointerEventType = "touchstart"
	TouchMove          PointerEventType = "touchmove"
	TouchEnd           PointerEventType = "touchend"
	TouchCancel        PointerEventType = "touchcancel"
)

// PointerEvent is one input sample in screen pixels relative to the canvas element.
type PointerEvent struct {
	Type   PointerEventType
	Point  Point
	Target *ElementRef
	Handle Handle
}

// PendingText is the text-entry prompt opened by a click-to-add click.
type PendingText struct {
	Position Point `json:"position"`
}

// PointerOutcome reports what an input sample did.
type PointerOutcome struct {
	Ignored bool         `json:"ignored"`
	Pending *PendingText `json:"pending,omitempty"`
}

// KeyEvent is a keyboard sample.
type KeyEvent struct {
	Key  string
	Ctrl bool
	Meta bool
}

// KeyOutcome reports what a key press did.
type KeyOutcome struct {
	Handled bool   `json:"handled"`
	AddedID string `json:"added_id,omitempty"`
}

// Controller translates pointer, touch and keyboard input into store mutations.
// It never mutates layers directly.
type Controller struct {
	store      *Store
	attached   bool
	clickToAdd bool
	pending    *PendingText
}

// NewController binds a controller to a store.
func NewController(store *Store) *Controller {
	return &Controller{store: store}
}

// Attach binds keyboard shortcuts; called when the customization screen mounts.
func (c *Controller) Attach() {
	c.attached = true
}

// Detach unbinds shortcuts, cancels click-to-add and releases any gesture.
func (c *Controller) Detach() {
	c.attached = false
	c.clickToAdd = false
	c.pending = nil
	c.store.ReleaseGestures()
}

// ClickToAdd reports whether click-to-add mode is active.
func (c *Controller) ClickToAdd() bool {
	return c.clickToAdd
}

// Pending returns the open text-entry prompt, if any.
func (c *Controller) Pending() *PendingText {
	if c.pending == nil {
		return nil
	}
	pending := *c.pending
	return &pending
}

// HandlePointer processes one pointer or touch sample.
func (c *Controller) HandlePointer(event PointerEvent) (PointerOutcome, error) {
	switch event.Type {
	case PointerDown, TouchStart:
		target := c.resolveTarget(event)
		if target == nil {
			return PointerOutcome{Ignored: true}, nil
		}
		if c.store.gestureActive() {
			return PointerOutcome{Ignored: true}, nil
		}
		return PointerOutcome{}, c.store.StartDrag(*target, event.Point)
	case PointerResizeStart:
		if event.Target == nil {
			return PointerOutcome{}, fmt.Errorf("%w: resize requires a target", ErrElementNotFound)
		}
		if c.store.gestureActive() {
			return PointerOutcome{Ignored: true}, nil
		}
		return PointerOutcome{}, c.store.StartResize(*event.Target, event.Handle, event.Point)
	case PointerMove, TouchMove:
		switch {
		case c.store.resize != nil:
			return PointerOutcome{}, c.store.UpdateElementSize(event.Point)
		case c.store.drag != nil:
			return PointerOutcome{}, c.store.DragTo(event.Point)
		default:
			return PointerOutcome{Ignored: true}, nil
		}
	case PointerUp, PointerLeave, TouchEnd, TouchCancel:
		c.store.ReleaseGestures()
		return PointerOutcome{}, nil
	case PointerClick:
		return c.handleClick(event)
	default:
		return PointerOutcome{}, fmt.Errorf("%w: %q", ErrUnknownPointerEvent, event.Type)
	}
}

func (c *Controller) resolveTarget(event PointerEvent) *ElementRef {
	if event.Target != nil {
		return event.Target
	}
	return c.HitTest(event.Point)
}

func (c *Controller) handleClick(event PointerEvent) (PointerOutcome, error) {
	if !c.clickToAdd {
		if c.resolveTarget(event) == nil {
			return PointerOutcome{}, c.store.SelectElement(nil)
		}
		return PointerOutcome{Ignored: true}, nil
	}
	if c.resolveTarget(event) != nil {
		return PointerOutcome{Ignored: true}, nil
	}
	position := c.store.transform.ToDesign(event.Point)
	if !insidePaddedRegion(position, c.store.design.Canvas()) {
		return PointerOutcome{Ignored: true}, nil
	}
	c.clickToAdd = false
	c.pending = &PendingText{Position: position}
	return PointerOutcome{Pending: c.Pending()}, nil
}

// HitTest returns the top-most layer under a screen point, following the render order.
func (c *Controller) HitTest(screen Point) *ElementRef {
	point := c.store.transform.ToDesign(screen)
	order := c.store.design.Order
	for index := len(order) - 1; index >= 0; index-- {
		position, size, ok := c.store.design.bounds(order[index])
		if !ok {
			continue
		}
		if point.X >= position.X && point.X <= position.X+size.Width &&
			point.Y >= position.Y && point.Y <= position.Y+size.Height {
			ref := order[index]
			return &ref
		}
	}
	return nil
}

// ToggleClickToAdd flips click-to-add mode and returns the new state.
func (c *Controller) ToggleClickToAdd() bool {
	c.clickToAdd = !c.clickToAdd
	if !c.clickToAdd {
		c.pending = nil
	}
	return c.clickToAdd
}

// CancelClickToAdd leaves click-to-add mode and closes any pending prompt.
func (c *Controller) CancelClickToAdd() {
	c.clickToAdd = false
	c.pending = nil
}

// Reset clears the design and leaves click-to-add, so no prompt opened before the reset
// can place text afterwards.
func (c *Controller) Reset() {
	c.CancelClickToAdd()
	c.store.ResetDesign()
}

// ConfirmPendingText adds the entered text at the position captured by the click.
func (c *Controller) ConfirmPendingText(text, fontFamily, color string) (string, error) {
	if c.pending == nil {
		return "", ErrNoPendingText
	}
	id, err := c.store.AddText(text, c.pending.Position, fontFamily, color)
	if err != nil {
		return "", err
	}
	c.pending = nil
	return id, nil
}

// HandleKey processes keyboard shortcuts while attached: Ctrl/Cmd+T adds a text layer,
// Escape cancels click-to-add.
func (c *Controller) HandleKey(event KeyEvent) (KeyOutcome, error) {
	if !c.attached {
		return KeyOutcome{}, nil
	}
	key := strings.ToLower(strings.TrimSpace(event.Key))
	switch {
	case key == "escape":
		if !c.clickToAdd && c.pending == nil {
			return KeyOutcome{}, nil
		}
		c.CancelClickToAdd()
		return KeyOutcome{Handled: true}, nil
	case key == "t" && (event.Ctrl || event.Meta):
		id, err := c.addCenteredText()
		if err != nil {
			return KeyOutcome{}, err
		}
		return KeyOutcome{Handled: true, AddedID: id}, nil
	default:
		return KeyOutcome{}, nil
	}
}

func (c *Controller) addCenteredText() (string, error) {
	canvas := c.store.design.Canvas()
	estimate := estimateTextSize(defaultShortcutText, DefaultFontSize)
	center := Point{
		X: (canvas.Width - estimate.Width) / 2,
		Y: (canvas.Height - estimate.Height) / 2,
	}
	return c.store.AddText(defaultShortcutText, center, AllowedFontFamilies[0], AllowedTextColors[0])
}
