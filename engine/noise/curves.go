package noise

import "math"

func hash(x, y uint32) uint32 {
	h := x*374761393 + y*668265263
	h = (h ^ (h >> 13)) * 1274126177
	return h ^ (h >> 16)
}

// lattice returns the pseudo-random value in [0, 1] at an integer lattice point.
func lattice(x, y uint32) float32 {
	return float32(hash(x, y)&0xffff) / 65535
}

func cubic(t float32) float32 {
	return t * t * (3 - 2*t)
}

func quintic(t float32) float32 {
	return t * t * t * (t*(t*6-15) + 10)
}

func fade(t float32, variant int32) float32 {
	if variant == VariantQuintic {
		return quintic(t)
	}
	return cubic(t)
}

func mix(a, b, t float32) float32 {
	return a*(1-t) + b*t
}

func clampOctaves(n, lo int32) int32 {
	return min(max(n, lo), MaxOctaves)
}

func valueNoise(px, py float32, variant int32) float32 {
	cx := float32(math.Floor(float64(px)))
	cy := float32(math.Floor(float64(py)))
	x, y := uint32(cx), uint32(cy)
	fx := fade(px-cx, variant)
	fy := fade(py-cy, variant)
	top := mix(lattice(x, y), lattice(x+1, y), fx)
	bottom := mix(lattice(x, y+1), lattice(x+1, y+1), fx)
	return mix(top, bottom, fy)
}

const cell = 64

func fbm(px, py float32, count, variant int32) float32 {
	layers := clampOctaves(count, 1)
	var sum, norm float32
	amp := float32(0.5)
	freq := float32(1.0 / cell)
	for range layers {
		sum += amp * valueNoise(px*freq, py*freq, variant)
		norm += amp
		amp *= 0.5
		freq *= 2
	}
	return sum / norm
}

// baseAt reads the base buffer with coordinates clamped to the grid. An empty buffer reads as 0.
func baseAt(base []float32, x, y, pitch, rows uint32) float32 {
	if len(base) == 0 || pitch == 0 || rows == 0 {
		return 0
	}
	i := min(y, rows-1)*pitch + min(x, pitch-1)
	return base[min(i, uint32(len(base))-1)]
}

// layered rebuilds value noise from the per-pixel base buffer, one lattice span per octave.
func layered(base []float32, x, y uint32, count int32, pitch, rows uint32) float32 {
	layers := clampOctaves(count, 1)
	var sum, norm float32
	amp := float32(0.5)
	for o := range layers {
		span := uint32(1) << uint32(layers-o)
		x0 := x / span * span
		y0 := y / span * span
		fx := cubic(float32(x-x0) / float32(span))
		fy := cubic(float32(y-y0) / float32(span))
		top := mix(baseAt(base, x0, y0, pitch, rows), baseAt(base, x0+span, y0, pitch, rows), fx)
		bottom := mix(baseAt(base, x0, y0+span, pitch, rows), baseAt(base, x0+span, y0+span, pitch, rows), fx)
		sum += amp * mix(top, bottom, fy)
		norm += amp
		amp *= 0.5
	}
	return sum / norm
}
