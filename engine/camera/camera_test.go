package camera

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResize_MasksAndCenters(t *testing.T) {
	tests := []struct {
		name             string
		w, h             int
		wantW, wantH     uint32
		wantOffX, wantOY uint32
	}{
		{"exact multiple", 640, 512, 640, 512, 0, 0},
		{"leftover is centered", 800, 600, 768, 576, 16, 12},
		{"clamped", 2560, 1440, 1920, 1408, 0, 16},
		{"below granularity", 63, 10, 0, 0, 31, 5},
		{"negative", -5, 100, 0, 64, 0, 18},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCamera()
			c.Resize(tt.w, tt.h)
			w, h := c.Size()
			assert.Equal(t, tt.wantW, w)
			assert.Equal(t, tt.wantH, h)
			x, y := c.Offset()
			assert.Equal(t, tt.wantOffX, x)
			assert.Equal(t, tt.wantOY, y)
		})
	}
}

func TestResize_Aspect(t *testing.T) {
	c := NewCamera(WithSize(1024, 512))
	assert.InDelta(t, 2.0, c.Aspect(), 1e-6)

	c.Resize(10, 10)
	assert.Equal(t, float32(1), c.Aspect(), "an empty viewport keeps a unit aspect")
}

func TestWithMaxDimension(t *testing.T) {
	c := NewCamera(WithMaxDimension(1000), WithSize(1200, 900))
	w, h := c.Size()
	assert.Equal(t, uint32(960), w, "the limit is rounded down to the granularity")
	assert.Equal(t, uint32(896), h)

	assert.Equal(t, uint32(MaxDimension), NewCamera(WithMaxDimension(8)).MaxDimension())
}

func TestDragState(t *testing.T) {
	c := NewCamera()
	c.Drag(5, 5)
	assert.False(t, c.Dragging())
	_, cur := c.DragState()
	assert.Equal(t, [2]int32{}, cur, "motion without a drag is ignored")

	c.BeginDrag(10, 20)
	c.Drag(30, 45)
	assert.True(t, c.Dragging())
	c.EndDrag()
	c.Drag(99, 99)

	start, cur := c.DragState()
	assert.False(t, c.Dragging())
	assert.Equal(t, [2]int32{10, 20}, start)
	assert.Equal(t, [2]int32{30, 45}, cur)
}
