package camera

import (
	"sync"
)

const (
	// Granularity is the step, in pixels, that viewport dimensions are masked down to.
	Granularity = 64

	// MaxDimension is the largest viewport dimension, matching the largest pixel-transfer buffer.
	MaxDimension = 1920
)

type cameraImpl struct {
	mu *sync.Mutex

	maxDimension uint32

	width, height uint32
	offsetX       uint32
	offsetY       uint32
	aspect        float32

	dragging    bool
	dragStart   [2]int32
	dragCurrent [2]int32
}

// Camera defines the interface for the 2D view over the simulation output.
// The camera turns window sizes into the viewport the compute kernels fill: each dimension is
// masked down to a multiple of Granularity and clamped to the maximum dimension, and the leftover
// pixels become a centering offset. It also records the pointer drag state.
type Camera interface {
	// Resize derives the viewport from a window size.
	//
	// Parameters:
	//   - width: the window width in pixels
	//   - height: the window height in pixels
	Resize(width, height int)

	// Size returns the masked viewport size.
	//
	// Returns:
	//   - width, height: the viewport size in pixels
	Size() (width, height uint32)

	// Offset returns the top-left corner of the viewport inside the window.
	//
	// Returns:
	//   - x, y: the offset in pixels
	Offset() (x, y uint32)

	// Aspect returns the aspect ratio (width / height) of the viewport, 1 while it is empty.
	//
	// Returns:
	//   - float32: the aspect ratio
	Aspect() float32

	// MaxDimension returns the clamp applied to each viewport dimension.
	MaxDimension() uint32

	// BeginDrag starts a pointer drag at the given window position.
	//
	// Parameters:
	//   - x, y: the pointer position in pixels
	BeginDrag(x, y int32)

	// Drag moves the current drag position. It is ignored when no drag is active.
	//
	// Parameters:
	//   - x, y: the pointer position in pixels
	Drag(x, y int32)

	// EndDrag ends the current drag. The last positions are kept.
	EndDrag()

	// Dragging reports whether a drag is active.
	Dragging() bool

	// DragState returns where the last drag started and where the pointer is now.
	//
	// Returns:
	//   - start: the drag start position
	//   - current: the latest drag position
	DragState() (start, current [2]int32)
}

var _ Camera = &cameraImpl{}

// NewCamera creates a new Camera with an empty viewport.
//
// Parameters:
//   - options: functional options to configure the camera
//
// Returns:
//   - Camera: the newly created camera
func NewCamera(options ...CameraBuilderOption) Camera {
	c := &cameraImpl{
		mu:           &sync.Mutex{},
		maxDimension: MaxDimension,
		aspect:       1.0,
	}
	for _, option := range options {
		option(c)
	}
	return c
}

func (c *cameraImpl) Resize(width, height int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resize(width, height)
}

// resize applies the viewport mask. Caller must hold the mutex.
func (c *cameraImpl) resize(width, height int) {
	w, h := uint32(max(width, 0)), uint32(max(height, 0))
	c.width = maskDimension(w, c.maxDimension)
	c.height = maskDimension(h, c.maxDimension)
	c.offsetX = (w & (Granularity - 1)) / 2
	c.offsetY = (h & (Granularity - 1)) / 2
	c.aspect = 1.0
	if c.width > 0 && c.height > 0 {
		c.aspect = float32(c.width) / float32(c.height)
	}
}

// maskDimension rounds v down to the granularity, then clamps it to limit rounded down the same way.
func maskDimension(v, limit uint32) uint32 {
	return min(v&^(Granularity-1), limit&^(Granularity-1))
}

func (c *cameraImpl) Size() (uint32, uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.width, c.height
}

func (c *cameraImpl) Offset() (uint32, uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.offsetX, c.offsetY
}

func (c *cameraImpl) Aspect() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aspect
}

func (c *cameraImpl) MaxDimension() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.maxDimension
}

func (c *cameraImpl) BeginDrag(x, y int32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dragging = true
	c.dragStart = [2]int32{x, y}
	c.dragCurrent = c.dragStart
}

func (c *cameraImpl) Drag(x, y int32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.dragging {
		return
	}
	c.dragCurrent = [2]int32{x, y}
}

func (c *cameraImpl) EndDrag() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dragging = false
}

func (c *cameraImpl) Dragging() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dragging
}

func (c *cameraImpl) DragState() ([2]int32, [2]int32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dragStart, c.dragCurrent
}
