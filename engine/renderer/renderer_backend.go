package renderer

// PresentMode selects how finished frames reach the display.
type PresentMode int

const (
	// PresentModeVSync presents on vertical blank, capping the frame rate at the refresh rate.
	PresentModeVSync PresentMode = iota

	// PresentModeUncapped presents immediately; frames may tear.
	PresentModeUncapped
)

// RendererBackend is the GPU API a renderer drives.
type RendererBackend interface {
	wgpuRendererBackend
}
