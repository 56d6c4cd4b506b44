// Package assemble unions per-realization series into one ensemble-level
// resampled table with a shared regular date grid.
package assemble

import (
	"math"
	"sort"
	"time"

	"github.com/resviz/ensembleprov/internal/models"
	"github.com/resviz/ensembleprov/internal/resample"
)

// Classifier maps a vector name to its semantic class. Supplied by the
// provider so that source-declared hints are folded in.
type Classifier func(name string) models.VectorClass

// Build resamples every realization onto one grid and assembles the
// ensemble table. The grid spans the union of all contributing realizations'
// date ranges; each realization's values stay NaN outside its own observed
// span. With FreqRaw the grid is the sorted union of observed dates and
// values are the exact observations.
func Build(realizations []models.Realization, classify Classifier, freq models.Frequency, fallback resample.Rule) (*models.ResampledTable, error) {
	indices := make([]int, 0, len(realizations))
	for _, r := range realizations {
		indices = append(indices, r.Index)
	}

	var grid []time.Time
	if freq == models.FreqRaw {
		grid = unionDates(realizations)
	} else {
		start, end, ok := unionSpan(realizations)
		if !ok {
			return models.NewResampledTable(freq, nil, indices), nil
		}
		grid = resample.Grid(freq, start, end)
	}

	table := models.NewResampledTable(freq, grid, indices)
	for _, r := range realizations {
		for name, raw := range r.Series {
			var values []float64
			if freq == models.FreqRaw {
				values = rawColumn(raw, grid)
			} else {
				values = resample.Series(raw, classify(name), grid, fallback)
			}
			if err := table.AddColumn(name, r.Index, values); err != nil {
				return nil, err
			}
		}
	}
	return table, nil
}

func unionSpan(realizations []models.Realization) (start, end time.Time, ok bool) {
	for _, r := range realizations {
		for _, s := range r.Series {
			if len(s.Samples) == 0 {
				continue
			}
			first := s.Samples[0].Date
			last := s.Samples[len(s.Samples)-1].Date
			if !ok || first.Before(start) {
				start = first
			}
			if !ok || last.After(end) {
				end = last
			}
			ok = true
		}
	}
	return start, end, ok
}

func unionDates(realizations []models.Realization) []time.Time {
	set := make(map[time.Time]bool)
	for _, r := range realizations {
		for _, s := range r.Series {
			for _, sample := range s.Samples {
				set[sample.Date] = true
			}
		}
	}
	dates := make([]time.Time, 0, len(set))
	for d := range set {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

func rawColumn(raw models.RawSeries, grid []time.Time) []float64 {
	values := nanColumn(len(grid))
	j := 0
	for i, d := range grid {
		for j < len(raw.Samples) && raw.Samples[j].Date.Before(d) {
			j++
		}
		if j < len(raw.Samples) && raw.Samples[j].Date.Equal(d) {
			values[i] = raw.Samples[j].Value
		}
	}
	return values
}

func nanColumn(n int) []float64 {
	values := make([]float64, n)
	for i := range values {
		values[i] = math.NaN()
	}
	return values
}
