package stats

import "cmp"

// Number is any value that we can average
type Number interface {
	~int | ~int32 | ~int64 | ~float32 | ~float64
}

// Returns (mean, variance) of the given samples, or (0, 0) if there are none.
func MeanVar[T Number](samples []T) (float64, float64) {
	if len(samples) == 0 {
		return 0, 0
	}
	sum := 0.0
	for _, v := range samples {
		sum += float64(v)
	}
	mean := sum / float64(len(samples))
	sum = 0
	for _, v := range samples {
		diff := float64(v) - mean
		sum += diff * diff
	}
	return mean, sum / float64(len(samples))
}

// Returns the most frequent element and its count.
// Ties go to the smallest element, so that the result does not depend on map order.
func Mode[T cmp.Ordered](src []T) (mode T, count int) {
	counts := make(map[T]int)
	for _, v := range src {
		counts[v]++
	}
	for k, v := range counts {
		if v > count || (v == count && k < mode) {
			mode = k
			count = v
		}
	}
	return
}
