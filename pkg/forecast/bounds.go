package forecast

// Uncertainty band applied when an algorithm returns point estimates only:
// a symmetric ±20% multiplicative band around the prediction. Applied
// uniformly regardless of which algorithm produced the estimate, so every
// result leaves the engine with consistent, server-computed bounds.
const (
	lowerBoundFactor = 0.8
	upperBoundFactor = 1.2
)

// deriveBounds fills in missing bounds and enforces the bound invariant
// lower <= predicted <= upper on every point, in place.
//
// A point with both bounds zero is treated as bare: algorithms leave bounds
// unset and predictions are strictly positive except for the clamped-to-zero
// case, where 0.8*0 == 1.2*0 anyway.
func deriveBounds(points []Point) {
	for i := range points {
		p := &points[i]

		if p.Lower == 0 && p.Upper == 0 {
			p.Lower = p.Predicted * lowerBoundFactor
			p.Upper = p.Predicted * upperBoundFactor
		}

		if p.Lower > p.Predicted {
			p.Lower = p.Predicted
		}
		if p.Upper < p.Predicted {
			p.Upper = p.Predicted
		}
	}
}
