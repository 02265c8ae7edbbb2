package dispatch

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-interop/engine/compute"
	"github.com/Carmen-Shannon/oxy-interop/engine/noise"
)

// Mode selects the kernel variant and target buffer of a frame.
type Mode int

const (
	// ModeFlat fills the window target with noise.FlatColor.
	ModeFlat Mode = iota

	// ModeStep fills the native target with single-octave value noise.
	ModeStep

	// ModeLayered builds base noise into the scratch buffer, then layers octaves from it into the window target.
	ModeLayered

	// ModeMulti fills the window target with multi-octave value noise.
	ModeMulti

	// ModeMultiQuintic is ModeMulti with the quintic blending curve.
	ModeMultiQuintic

	modeCount
)

// ModeCount is the number of defined modes.
const ModeCount = int(modeCount)

// TargetKind selects which shared target a mode writes and which index space it runs over.
type TargetKind int

const (
	// TargetWindow is the window-sized target. Its index space is the current viewport.
	TargetWindow TargetKind = iota

	// TargetNative is the dim x dim target. Its index space is its native resolution.
	TargetNative
)

func (k TargetKind) String() string {
	if k == TargetNative {
		return "native"
	}
	return "window"
}

// ModeSpec is the kernel selection of one mode.
type ModeSpec struct {
	// Name is a short human readable name.
	Name string
	// Prelude is a kernel run before Kernel, or "" for none.
	Prelude string
	// Kernel is the kernel that writes the target.
	Kernel string
	// Target selects the shared target and index space.
	Target TargetKind
	// Octaves is the octave argument of the noise kernels.
	Octaves int32
	// Variant selects the blending curve of genMultiNoise.
	Variant int32
}

var modeTable = [modeCount]ModeSpec{
	ModeFlat:         {Name: "flat", Kernel: noise.KernelColorful, Target: TargetWindow},
	ModeStep:         {Name: "step", Kernel: noise.KernelStepNoise, Target: TargetNative, Octaves: 1},
	ModeLayered:      {Name: "layered", Prelude: noise.KernelNoiseBase, Kernel: noise.KernelNoiseMulti, Target: TargetWindow, Octaves: 6},
	ModeMulti:        {Name: "multi", Kernel: noise.KernelMultiNoise, Target: TargetWindow, Octaves: 6},
	ModeMultiQuintic: {Name: "multi-quintic", Kernel: noise.KernelMultiNoise, Target: TargetWindow, Octaves: 6, Variant: noise.VariantQuintic},
}

// normalize maps any integer onto [0, ModeCount).
func (m Mode) normalize() Mode {
	return ((m % modeCount) + modeCount) % modeCount
}

// Next returns the mode after m, wrapping to ModeFlat after the last mode.
func (m Mode) Next() Mode {
	return (m.normalize() + 1) % modeCount
}

// Spec returns the kernel selection of m. Integers outside the enumeration wrap.
func (m Mode) Spec() ModeSpec {
	return modeTable[m.normalize()]
}

func (m Mode) String() string {
	return fmt.Sprintf("%d (%s)", int(m.normalize()), m.Spec().Name)
}

// kernels returns the distinct kernel names the table uses, in table order.
func kernels() []string {
	var names []string
	seen := make(map[string]bool)
	for _, spec := range modeTable {
		for _, name := range []string{spec.Prelude, spec.Kernel} {
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}

// preludeArgs returns the arguments of the prelude kernel.
func (s ModeSpec) preludeArgs(scratch *compute.Memory) []compute.Binding {
	if s.Prelude == "" {
		return nil
	}
	return []compute.Binding{compute.MemoryArg(noise.BindingBase, scratch)}
}

// kernelArgs returns the arguments of the main kernel. Scalars are bound before buffers.
func (s ModeSpec) kernelArgs(pixels, scratch *compute.Memory) []compute.Binding {
	target := compute.MemoryArg(noise.BindingPixels, pixels)
	switch s.Kernel {
	case noise.KernelStepNoise:
		return []compute.Binding{compute.ValueArg(noise.BindingOctave, s.Octaves), target}
	case noise.KernelNoiseMulti:
		return []compute.Binding{
			compute.ValueArg(noise.BindingOctaves, s.Octaves),
			compute.MemoryArg(noise.BindingBase, scratch),
			target,
		}
	case noise.KernelMultiNoise:
		return []compute.Binding{compute.ValueArg(noise.BindingParams, [2]int32{s.Octaves, s.Variant}), target}
	default:
		return []compute.Binding{target}
	}
}
