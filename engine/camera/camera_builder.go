package camera

type CameraBuilderOption func(*cameraImpl)

// WithMaxDimension sets the clamp applied to each viewport dimension. It is rounded down to the
// granularity when applied.
//
// Parameters:
//   - limit: the largest dimension in pixels
//
// Returns:
//   - CameraBuilderOption: a function that sets the camera's dimension clamp
func WithMaxDimension(limit uint32) CameraBuilderOption {
	return func(c *cameraImpl) {
		if limit >= Granularity {
			c.maxDimension = limit
		}
	}
}

// WithSize derives the initial viewport from a window size.
//
// Parameters:
//   - width, height: the window size in pixels
//
// Returns:
//   - CameraBuilderOption: a function that resizes the camera
func WithSize(width, height int) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.resize(width, height)
	}
}
