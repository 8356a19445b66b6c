package design

import (
	"fmt"
	"strings"
)

// Handle names the corner used to resize a layer.
type Handle string

const (
	HandleNorthWest Handle = "nw"
	HandleNorthEast Handle = "ne"
	HandleSouthWest Handle = "sw"
	HandleSouthEast Handle = "se"
)

// ParseHandle validates a raw handle name.
func ParseHandle(raw string) (Handle, error) {
	switch Handle(strings.ToLower(strings.TrimSpace(raw))) {
	case HandleNorthWest:
		return HandleNorthWest, nil
	case HandleNorthEast:
		return HandleNorthEast, nil
	case HandleSouthWest:
		return HandleSouthWest, nil
	case HandleSouthEast:
		return HandleSouthEast, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidHandle, raw)
	}
}

func (h Handle) west() bool {
	return h == HandleNorthWest || h == HandleSouthWest
}

func (h Handle) north() bool {
	return h == HandleNorthWest || h == HandleNorthEast
}

// dragState holds the pointer-to-layer offset in screen pixels.
type dragState struct {
	ref    ElementRef
	offset Point
}

type resizeState struct {
	ref           ElementRef
	handle        Handle
	startPointer  Point
	startPosition Point
	startSize     Size
	startFontSize float64
}

func (s *Store) gestureActive() bool {
	return s.drag != nil || s.resize != nil
}

// StartDrag enters the dragging state for a layer and selects it.
func (s *Store) StartDrag(ref ElementRef, pointer Point) error {
	if s.gestureActive() {
		return ErrGestureInProgress
	}
	position, _, ok := s.design.bounds(ref)
	if !ok {
		return fmt.Errorf("%w: %s %s", ErrElementNotFound, ref.Kind, ref.ID)
	}
	s.drag = &dragState{
		ref:    ref,
		offset: pointer.Sub(s.transform.ToScreen(position)),
	}
	s.selected = copyRef(&ref)
	s.touch()
	return nil
}

// DragTo moves the dragged layer so it keeps its captured offset from the pointer.
func (s *Store) DragTo(pointer Point) error {
	if s.drag == nil {
		return nil
	}
	screen := pointer.Sub(s.drag.offset)
	return s.setPosition(s.drag.ref, s.transform.ToDesign(screen))
}

// StopDrag leaves the dragging state.
func (s *Store) StopDrag() {
	if s.drag == nil {
		return
	}
	s.drag = nil
	s.touch()
}

// StartResize enters the resizing state from one corner handle.
func (s *Store) StartResize(ref ElementRef, handle Handle, pointer Point) error {
	if s.gestureActive() {
		return ErrGestureInProgress
	}
	if _, err := ParseHandle(string(handle)); err != nil {
		return err
	}
	position, size, ok := s.design.bounds(ref)
	if !ok {
		return fmt.Errorf("%w: %s %s", ErrElementNotFound, ref.Kind, ref.ID)
	}
	state := &resizeState{
		ref:           ref,
		handle:        handle,
		startPointer:  pointer,
		startPosition: position,
		startSize:     size,
	}
	if ref.Kind == KindText {
		layer, _ := s.design.Text(ref.ID)
		state.startFontSize = layer.FontSize
	}
	s.resize = state
	s.selected = copyRef(&ref)
	s.touch()
	return nil
}

// UpdateElementSize applies the pointer movement since StartResize. The screen delta is
// converted to design space before it touches any size.
func (s *Store) UpdateElementSize(pointer Point) error {
	state := s.resize
	if state == nil {
		return nil
	}
	delta := s.transform.DeltaToDesign(pointer.Sub(state.startPointer))
	dx := delta.X
	if state.handle.west() {
		dx = -dx
	}
	dy := delta.Y
	if state.handle.north() {
		dy = -dy
	}

	switch state.ref.Kind {
	case KindText:
		layer, ok := s.design.Text(state.ref.ID)
		if !ok {
			s.resize = nil
			return nil
		}
		ratio := 1.0
		if state.startSize.Width > 0 {
			ratio = (state.startSize.Width + dx) / state.startSize.Width
		}
		fontSize := clampFloat(state.startFontSize*ratio, MinFontSize, MaxFontSize)
		position := state.anchoredPosition(estimateTextSize(layer.Text, fontSize))
		return s.UpdateText(state.ref.ID, TextPatch{FontSize: &fontSize, Position: &position})
	case KindImage:
		if _, ok := s.design.Image(state.ref.ID); !ok {
			s.resize = nil
			return nil
		}
		size := clampImageSize(Size{
			Width:  state.startSize.Width + dx,
			Height: state.startSize.Height + dy,
		})
		position := state.anchoredPosition(size)
		return s.UpdateImage(state.ref.ID, ImagePatch{Size: &size, Position: &position})
	default:
		return fmt.Errorf("%w: %q", ErrUnknownLayerKind, state.ref.Kind)
	}
}

// anchoredPosition keeps the edges opposite the active handle in place.
func (r *resizeState) anchoredPosition(size Size) Point {
	position := r.startPosition
	if r.handle.west() {
		position.X = r.startPosition.X + r.startSize.Width - size.Width
	}
	if r.handle.north() {
		position.Y = r.startPosition.Y + r.startSize.Height - size.Height
	}
	return position
}

// StopResize leaves the resizing state.
func (s *Store) StopResize() {
	if s.resize == nil {
		return
	}
	s.resize = nil
	s.touch()
}

// ReleaseGestures clears both drag and resize state.
func (s *Store) ReleaseGestures() {
	s.StopDrag()
	s.StopResize()
}
