// Package kendall provides the Mann-Kendall trend significance test used by the productivity trajectory.
package kendall

import (
	"errors"
	"fmt"
	"math"
)

// MinSampleSize is the smallest series length with a tabulated critical value.
const MinSampleSize = 4

var ErrInvalidArgument = errors.New("invalid argument")

// criticalValues holds the one-sided critical values of the Mann-Kendall S statistic,
// indexed by sampleSize-MinSampleSize.
var criticalValues = map[int][]int{
	90: {4, 6, 7, 9, 10, 12, 15, 17, 18, 22, 23, 27, 28, 32, 35, 37, 40, 42, 45, 49, 52, 56, 59, 61, 66, 68, 73, 75, 80, 84, 87, 91, 94, 98, 103, 107, 110, 114, 119, 123, 128, 132, 135, 141, 144, 150, 153, 159, 162, 168, 173, 177, 182, 186, 191, 197, 202},
	95: {4, 6, 9, 11, 14, 16, 19, 21, 24, 26, 31, 33, 36, 40, 43, 47, 50, 54, 59, 63, 66, 70, 75, 79, 84, 88, 93, 97, 102, 106, 111, 115, 120, 126, 131, 137, 142, 146, 151, 157, 162, 168, 173, 179, 186, 190, 197, 203, 208, 214, 221, 227, 232, 240, 245, 251, 258},
	99: {6, 8, 11, 18, 22, 25, 29, 34, 38, 41, 47, 50, 56, 61, 65, 70, 76, 81, 87, 92, 98, 105, 111, 116, 124, 129, 135, 142, 150, 155, 163, 170, 176, 183, 191, 198, 206, 213, 221, 228, 236, 245, 253, 260, 268, 277, 285, 294, 302, 311, 319, 328, 336, 345, 355, 364},
}

// CriticalValue returns the tabulated critical value of S for a series of sampleSize observations
// at confidenceLevel percent (90, 95 or 99).
func CriticalValue(sampleSize, confidenceLevel int) (int, error) {
	table, ok := criticalValues[confidenceLevel]
	if !ok {
		return 0, fmt.Errorf("%w: confidence level %d not in {90, 95, 99}", ErrInvalidArgument, confidenceLevel)
	}
	if sampleSize < MinSampleSize {
		return 0, fmt.Errorf("%w: sample size %d below %d", ErrInvalidArgument, sampleSize, MinSampleSize)
	}
	idx := sampleSize - MinSampleSize
	if idx >= len(table) {
		return 0, fmt.Errorf("%w: sample size %d above tabulated maximum %d at %d%%", ErrInvalidArgument, sampleSize, MaxSampleSize(confidenceLevel), confidenceLevel)
	}
	return table[idx], nil
}

// MaxSampleSize is the largest tabulated sample size at confidenceLevel, or 0 for an unknown level.
func MaxSampleSize(confidenceLevel int) int {
	table, ok := criticalValues[confidenceLevel]
	if !ok {
		return 0
	}
	return MinSampleSize + len(table) - 1
}

// Statistic computes the Mann-Kendall S statistic, the sum of sign(x[j]-x[i]) over i<j.
// NaN observations are skipped; n is the number of observations used.
func Statistic(series []float64) (s int, n int) {
	vals := make([]float64, 0, len(series))
	for _, v := range series {
		if !math.IsNaN(v) {
			vals = append(vals, v)
		}
	}
	for i := 0; i < len(vals)-1; i++ {
		for j := i + 1; j < len(vals); j++ {
			switch {
			case vals[j] > vals[i]:
				s++
			case vals[j] < vals[i]:
				s--
			}
		}
	}
	return s, len(vals)
}

// Trend is the outcome of the significance test.
type Trend int

const (
	Decreasing Trend = -1
	NoTrend    Trend = 0
	Increasing Trend = 1
)

// Test runs the Mann-Kendall test on series. It fails with ErrInvalidArgument when fewer than
// MinSampleSize observations are available or the confidence level is unknown.
func Test(series []float64, confidenceLevel int) (Trend, error) {
	s, n := Statistic(series)
	crit, err := CriticalValue(n, confidenceLevel)
	if err != nil {
		return NoTrend, err
	}
	switch {
	case s > crit:
		return Increasing, nil
	case s < -crit:
		return Decreasing, nil
	}
	return NoTrend, nil
}
