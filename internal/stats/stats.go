// Package stats computes per-date cross-realization statistics over an
// ensemble table. Each date aggregates exactly the realizations with a
// defined value there; dates where nothing contributes become explicit
// no-data rows.
package stats

import (
	"fmt"
	"math"
	"sort"

	"github.com/resviz/ensembleprov/internal/models"
)

// Compute derives a StatisticsTable for one vector. realizations restricts
// the contributing set; nil means every realization covering the vector.
// The result is built wholesale and never mutated afterwards.
func Compute(table *models.ResampledTable, ensemble, vectorName string, realizations []int) (*models.StatisticsTable, error) {
	coverage := table.Coverage(vectorName)
	if coverage == nil {
		return nil, fmt.Errorf("ensemble %s has no vector %s", ensemble, vectorName)
	}
	contributing := coverage
	if realizations != nil {
		want := make(map[int]bool, len(realizations))
		for _, r := range realizations {
			want[r] = true
		}
		contributing = contributing[:0:0]
		for _, r := range coverage {
			if want[r] {
				contributing = append(contributing, r)
			}
		}
	}

	n := len(table.Dates)
	st := &models.StatisticsTable{
		Ensemble: ensemble,
		Vector:   vectorName,
		Dates:    table.Dates,
		Mean:     make([]float64, n),
		StdDev:   make([]float64, n),
		Min:      make([]float64, n),
		Max:      make([]float64, n),
		P10:      make([]float64, n),
		P90:      make([]float64, n),
		Count:    make([]int, n),
	}

	values := make([]float64, 0, len(contributing))
	for i := 0; i < n; i++ {
		values = values[:0]
		for _, r := range contributing {
			if v, ok := table.Value(vectorName, r, i); ok {
				values = append(values, v)
			}
		}
		st.Count[i] = len(values)
		if len(values) == 0 {
			st.Mean[i] = math.NaN()
			st.StdDev[i] = math.NaN()
			st.Min[i] = math.NaN()
			st.Max[i] = math.NaN()
			st.P10[i] = math.NaN()
			st.P90[i] = math.NaN()
			continue
		}
		sort.Float64s(values)
		st.Min[i] = values[0]
		st.Max[i] = values[len(values)-1]
		st.Mean[i] = mean(values)
		st.StdDev[i] = stddev(values, st.Mean[i])
		st.P10[i] = Percentile(values, 0.10)
		st.P90[i] = Percentile(values, 0.90)
	}
	return st, nil
}

func mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// stddev is the sample standard deviation (n-1 denominator); 0 for a single value.
func stddev(values []float64, mean float64) float64 {
	if len(values) < 2 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		d := v - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)-1))
}

// Percentile returns the q-quantile of sorted values using linear
// interpolation between order statistics (rank = q*(n-1)). This convention
// is fixed so fixtures stay reproducible; do not change it.
func Percentile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if n == 1 {
		return sorted[0]
	}
	rank := q * float64(n-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}
