package pipeline

// PipelineBuilderOption configures a Pipeline during construction.
type PipelineBuilderOption func(*pipeline)

// WithFragmentEntryPoint selects the @fragment function by name instead of the first one declared.
func WithFragmentEntryPoint(name string) PipelineBuilderOption {
	return func(p *pipeline) {
		p.fragmentEntry = name
	}
}

// WithUnfilterable binds sampled textures as unfilterable-float with non-filtering samplers.
// 32-bit float textures cannot be filtered without an optional device feature.
//
// Parameters:
//   - enabled: true to use unfilterable bindings
//
// Returns:
//   - PipelineBuilderOption: option function to apply
func WithUnfilterable(enabled bool) PipelineBuilderOption {
	return func(p *pipeline) {
		p.unfilterable = enabled
	}
}
