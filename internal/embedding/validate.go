package embedding

import (
	"fmt"
	"math"
)

// ValidateVector checks that a returned vector has the configured
// dimensionality and only finite components. A failing vector aborts
// only its own chunk, never the batch — callers skip it and report.
func ValidateVector(v []float32, dimension int) error {
	if len(v) != dimension {
		return fmt.Errorf("vector has %d components, want %d", len(v), dimension)
	}
	for i, x := range v {
		f := float64(x)
		if math.IsNaN(f) {
			return fmt.Errorf("vector component %d is NaN", i)
		}
		if math.IsInf(f, 0) {
			return fmt.Errorf("vector component %d is infinite", i)
		}
	}
	return nil
}
