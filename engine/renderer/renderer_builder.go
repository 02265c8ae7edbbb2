package renderer

// RendererBuilderOption configures a renderer during NewRenderer.
type RendererBuilderOption func(*renderer)

// WithPresentMode sets how frames are delivered to the display.
//
// Parameters:
//   - mode: PresentModeVSync or PresentModeUncapped
//
// Returns:
//   - RendererBuilderOption: option function to apply
func WithPresentMode(mode PresentMode) RendererBuilderOption {
	return func(r *renderer) {
		r.pendingPresentMode = &mode
	}
}
