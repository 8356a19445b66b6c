package design

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransformRoundTripAtAnyScale(t *testing.T) {
	transform := NewTransform(Size{Width: DefaultCanvasWidth, Height: DefaultCanvasHeight})
	points := []Point{{X: 0, Y: 0}, {X: 20, Y: 20}, {X: 123.5, Y: 456.25}, {X: 600, Y: 500}}

	for _, rendered := range []Size{{Width: 300, Height: 250}, {Width: 600, Height: 500}, {Width: 1200, Height: 1000}, {Width: 417, Height: 333}} {
		transform.Resize(rendered.Width, rendered.Height)
		for _, point := range points {
			roundTrip := transform.ToDesign(transform.ToScreen(point))
			require.InDelta(t, point.X, roundTrip.X, 1e-9)
			require.InDelta(t, point.Y, roundTrip.Y, 1e-9)
		}
		require.InDelta(t, rendered.Width, transform.Rendered().Width, 1e-9)
	}
}

func TestTransformZeroSizeFallsBackToUnitScale(t *testing.T) {
	transform := NewTransform(Size{})
	require.Equal(t, Size{Width: DefaultCanvasWidth, Height: DefaultCanvasHeight}, transform.Logical())

	scale := transform.Resize(0, 250)
	require.Equal(t, 1.0, scale.X)
	require.Equal(t, 0.5, scale.Y)

	scale = transform.Resize(math.NaN(), math.Inf(1))
	require.Equal(t, Scale{X: 1, Y: 1}, scale)
}

func TestStoreResizeRejectsOversizedViewport(t *testing.T) {
	store := newBaseStore(t)
	scale, err := store.Resize(300, 250)
	require.NoError(t, err)
	version := store.Version()

	for _, rendered := range []Size{
		{Width: 100000, Height: 100000},
		{Width: DefaultCanvasWidth*MaxRenderScale + 1, Height: 250},
		{Width: 300, Height: math.Inf(1)},
	} {
		got, err := store.Resize(rendered.Width, rendered.Height)
		require.ErrorIs(t, err, ErrInvalidViewport)
		require.Equal(t, scale, got)
	}
	require.Equal(t, version, store.Version())
	require.Equal(t, Size{Width: 300, Height: 250}, store.Transform().Rendered())

	_, err = store.Resize(DefaultCanvasWidth*MaxRenderScale, DefaultCanvasHeight*MaxRenderScale)
	require.NoError(t, err)
}

func TestResizeImageClampsAtMaximum(t *testing.T) {
	store := newBaseStore(t)
	id := mustAddImage(t, store, Point{X: 50, Y: 50})
	require.NoError(t, store.UpdateImage(id, ImagePatch{Size: &Size{Width: 480, Height: 480}}))

	layer, _ := store.Snapshot().Image(id)
	start := store.Transform().ToScreen(layer.Position.Add(Point{X: layer.Size.Width, Y: layer.Size.Height}))
	require.NoError(t, store.StartResize(ImageRef(id), HandleSouthEast, start))
	require.NoError(t, store.UpdateElementSize(start.Add(Point{X: 200, Y: 200})))
	store.StopResize()

	layer, _ = store.Snapshot().Image(id)
	require.Equal(t, Size{Width: MaxImageSize, Height: MaxImageSize}, layer.Size)
	require.Equal(t, Point{X: 50, Y: CanvasPadding}, layer.Position)
}

func TestResizeConvertsScreenDeltaToDesignSpace(t *testing.T) {
	store := newBaseStore(t)
	store.Resize(300, 250)
	id := mustAddImage(t, store, Point{X: 100, Y: 100})

	layer, _ := store.Snapshot().Image(id)
	require.Equal(t, Size{Width: 200, Height: 100}, layer.Size)

	pointer := Point{X: 150, Y: 100}
	require.NoError(t, store.StartResize(ImageRef(id), HandleSouthEast, pointer))
	require.NoError(t, store.UpdateElementSize(pointer.Add(Point{X: 50, Y: 25})))

	layer, _ = store.Snapshot().Image(id)
	require.Equal(t, Size{Width: 300, Height: 150}, layer.Size)
}

func TestResizeNorthWestAnchorsOppositeCorner(t *testing.T) {
	store := newBaseStore(t)
	id := mustAddImage(t, store, Point{X: 200, Y: 200})
	before, _ := store.Snapshot().Image(id)

	pointer := before.Position
	require.NoError(t, store.StartResize(ImageRef(id), HandleNorthWest, pointer))
	require.NoError(t, store.UpdateElementSize(pointer.Sub(Point{X: 40, Y: 20})))

	after, _ := store.Snapshot().Image(id)
	require.Equal(t, Size{Width: before.Size.Width + 40, Height: before.Size.Height + 20}, after.Size)
	require.InDelta(t, before.Position.X+before.Size.Width, after.Position.X+after.Size.Width, 1e-9)
	require.InDelta(t, before.Position.Y+before.Size.Height, after.Position.Y+after.Size.Height, 1e-9)
}

func TestResizeTextScalesFontSize(t *testing.T) {
	store := newBaseStore(t)
	store.Resize(300, 250)
	id := mustAddText(t, store, "Hello", Point{X: 100, Y: 100})

	layer, _ := store.Snapshot().Text(id)
	require.InDelta(t, 72.0, layer.EstimatedSize().Width, 1e-9)

	pointer := Point{X: 86, Y: 64}
	require.NoError(t, store.StartResize(TextRef(id), HandleSouthEast, pointer))
	require.NoError(t, store.UpdateElementSize(pointer.Add(Point{X: 36, Y: 0})))
	layer, _ = store.Snapshot().Text(id)
	require.InDelta(t, 48.0, layer.FontSize, 1e-9)

	require.NoError(t, store.UpdateElementSize(pointer.Add(Point{X: 1000, Y: 0})))
	layer, _ = store.Snapshot().Text(id)
	require.Equal(t, MaxFontSize, layer.FontSize)

	require.NoError(t, store.UpdateElementSize(pointer.Sub(Point{X: 1000, Y: 0})))
	layer, _ = store.Snapshot().Text(id)
	require.Equal(t, MinFontSize, layer.FontSize)
}

func TestDragKeepsPointerOffsetAtHalfScale(t *testing.T) {
	store := newBaseStore(t)
	store.Resize(300, 250)
	id := mustAddText(t, store, "Drag", Point{X: 100, Y: 100})

	require.NoError(t, store.StartDrag(TextRef(id), Point{X: 55, Y: 55}))
	require.NoError(t, store.DragTo(Point{X: 105, Y: 55}))

	layer, _ := store.Snapshot().Text(id)
	require.InDelta(t, 200.0, layer.Position.X, 1e-9)
	require.InDelta(t, 100.0, layer.Position.Y, 1e-9)
	require.Equal(t, TextRef(id), *store.Interaction().Selected)
}

func TestStartGestureRejectsConcurrentGesture(t *testing.T) {
	store := newBaseStore(t)
	textID := mustAddText(t, store, "one", Point{X: 40, Y: 40})
	imageID := mustAddImage(t, store, Point{X: 200, Y: 200})

	require.NoError(t, store.StartDrag(TextRef(textID), Point{X: 45, Y: 45}))
	require.ErrorIs(t, store.StartResize(ImageRef(imageID), HandleSouthEast, Point{X: 210, Y: 210}), ErrGestureInProgress)
	require.ErrorIs(t, store.StartDrag(ImageRef(imageID), Point{X: 210, Y: 210}), ErrGestureInProgress)

	store.ReleaseGestures()
	require.ErrorIs(t, store.StartResize(ImageRef(imageID), Handle("middle"), Point{}), ErrInvalidHandle)
	require.ErrorIs(t, store.StartDrag(TextRef("missing"), Point{}), ErrElementNotFound)
}

func TestLayersStayInsidePaddedCanvas(t *testing.T) {
	random := rand.New(rand.NewSource(7))
	store := newBaseStore(t)
	controller := NewController(store)
	controller.Attach()

	textID := mustAddText(t, store, "Wandering text", Point{X: 100, Y: 100})
	imageID := mustAddImage(t, store, Point{X: 250, Y: 250})
	refs := []ElementRef{TextRef(textID), ImageRef(imageID)}
	handles := []Handle{HandleNorthWest, HandleNorthEast, HandleSouthWest, HandleSouthEast}

	randomPoint := func() Point {
		return Point{X: random.Float64()*1400 - 400, Y: random.Float64()*1200 - 350}
	}

	for step := 0; step < 400; step++ {
		if step%50 == 0 {
			_, err := store.Resize(200+random.Float64()*1000, 150+random.Float64()*900)
			require.NoError(t, err)
		}
		ref := refs[random.Intn(len(refs))]
		var err error
		switch random.Intn(5) {
		case 0:
			_, err = controller.HandlePointer(PointerEvent{Type: PointerDown, Point: randomPoint(), Target: &ref})
		case 1:
			_, err = controller.HandlePointer(PointerEvent{Type: PointerResizeStart, Point: randomPoint(), Target: &ref, Handle: handles[random.Intn(len(handles))]})
		case 2, 3:
			_, err = controller.HandlePointer(PointerEvent{Type: TouchMove, Point: randomPoint()})
		default:
			_, err = controller.HandlePointer(PointerEvent{Type: PointerUp, Point: randomPoint()})
		}
		require.NoError(t, err)

		design := store.Snapshot()
		canvas := design.Canvas()
		for _, ref := range design.Order {
			position, size, ok := design.bounds(ref)
			require.True(t, ok)
			require.GreaterOrEqual(t, position.X, CanvasPadding, "step %d %v", step, ref)
			require.GreaterOrEqual(t, position.Y, CanvasPadding, "step %d %v", step, ref)
			if size.Width <= canvas.Width-2*CanvasPadding {
				require.LessOrEqual(t, position.X+size.Width, canvas.Width-CanvasPadding+1e-9, "step %d %v", step, ref)
			}
			if size.Height <= canvas.Height-2*CanvasPadding {
				require.LessOrEqual(t, position.Y+size.Height, canvas.Height-CanvasPadding+1e-9, "step %d %v", step, ref)
			}
		}
		for _, layer := range design.Texts {
			require.GreaterOrEqual(t, layer.FontSize, MinFontSize)
			require.LessOrEqual(t, layer.FontSize, MaxFontSize)
		}
		for _, layer := range design.Images {
			require.GreaterOrEqual(t, layer.Size.Width, MinImageSize)
			require.LessOrEqual(t, layer.Size.Width, MaxImageSize)
			require.GreaterOrEqual(t, layer.Size.Height, MinImageSize)
			require.LessOrEqual(t, layer.Size.Height, MaxImageSize)
		}
	}
}
