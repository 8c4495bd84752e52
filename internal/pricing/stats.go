package pricing

import (
	"math"
	"sort"
)

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clampRange(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func nonNegative(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	return v
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func logistic(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// weightedMedian returns the lower weighted median. Values with non-positive
// weight are ignored; an empty input yields zero.
func weightedMedian(values, weights []float64) float64 {
	type point struct {
		value  float64
		weight float64
	}
	points := make([]point, 0, len(values))
	total := 0.0
	for i, v := range values {
		w := weights[i]
		if w <= 0 || math.IsNaN(w) {
			continue
		}
		points = append(points, point{value: v, weight: w})
		total += w
	}
	if len(points) == 0 {
		return 0
	}

	sort.SliceStable(points, func(i, j int) bool {
		if points[i].value != points[j].value {
			return points[i].value < points[j].value
		}
		return points[i].weight < points[j].weight
	})

	half := total / 2
	cumulative := 0.0
	for _, p := range points {
		cumulative += p.weight
		if cumulative >= half {
			return p.value
		}
	}
	return points[len(points)-1].value
}

// weightedStdDev measures the weighted spread of values around center.
func weightedStdDev(values, weights []float64, center float64) float64 {
	var sum, total float64
	for i, v := range values {
		w := weights[i]
		if w <= 0 || math.IsNaN(w) {
			continue
		}
		d := v - center
		sum += w * d * d
		total += w
	}
	if total == 0 {
		return 0
	}
	return math.Sqrt(sum / total)
}
