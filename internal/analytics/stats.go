package analytics

import "sort"

// median returns the middle value of the series, averaging the central pair
// for even lengths. Zero for an empty series.
func median(values []int64) int64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]int64(nil), values...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// mean returns the arithmetic mean, zero for an empty series.
func mean(values []int64) int64 {
	if len(values) == 0 {
		return 0
	}
	var sum int64
	for _, v := range values {
		sum += v
	}
	return sum / int64(len(values))
}

// representative applies the chosen statistic to the series.
func representative(values []int64, stat Statistic) int64 {
	if stat == StatisticMean {
		return mean(values)
	}
	return median(values)
}
