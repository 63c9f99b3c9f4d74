package route

// ElevationAt linearly interpolates a route's elevation table at the given
// along-route distance, clamping at the ends. Returns (0, false) when the
// route carries no elevation samples.
//
// spec.md §9 flags that the original source's interpolation factor can go
// negative due to a numerator/denominator mismatch; this implementation
// uses the straightforward, always-correct linear interpolation the spec
// calls "the safer reading".
func ElevationAt(r *Route, alongDist float64) (float64, bool) {
	samples := r.Elevation
	if len(samples) == 0 {
		return 0, false
	}
	if alongDist <= samples[0].AlongDistance {
		return samples[0].Elev, true
	}
	last := samples[len(samples)-1]
	if alongDist >= last.AlongDistance {
		return last.Elev, true
	}

	for i := 0; i+1 < len(samples); i++ {
		p1, p2 := samples[i], samples[i+1]
		if alongDist >= p1.AlongDistance && alongDist <= p2.AlongDistance {
			span := p2.AlongDistance - p1.AlongDistance
			if span <= 0 {
				return p1.Elev, true
			}
			t := (alongDist - p1.AlongDistance) / span
			return p1.Elev + t*(p2.Elev-p1.Elev), true
		}
	}
	return last.Elev, true
}
