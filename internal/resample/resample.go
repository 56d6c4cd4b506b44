// Package resample converts irregular per-realization series onto regular
// date grids. The interpolation rule is a total function of the vector's
// semantic class: rates hold as step functions and must be backfilled, while
// cumulatives interpolate linearly. Applying the wrong rule produces
// plausible-looking but numerically wrong values, so the choice is never
// left to the caller per call.
package resample

import (
	"math"
	"time"

	"github.com/resviz/ensembleprov/internal/models"
)

// Rule is the interpolation rule applied to Unclassified vectors. It is
// chosen once per provider instance, not per call.
type Rule int

const (
	RuleLinear Rule = iota
	RuleBackfill
)

// String returns the canonical name used in CLI flags and cache keys.
func (r Rule) String() string {
	if r == RuleBackfill {
		return "backfill"
	}
	return "linear"
}

// Grid returns the regular date grid at the given frequency covering
// [start, end]: period-start aligned, beginning at the period containing
// start and extending until end is covered. All grid dates are UTC midnight.
func Grid(freq models.Frequency, start, end time.Time) []time.Time {
	if end.Before(start) {
		return nil
	}
	var dates []time.Time
	t := Floor(freq, start)
	for !t.After(end) {
		dates = append(dates, t)
		t = next(freq, t)
	}
	if len(dates) == 0 || dates[len(dates)-1].Before(end) {
		dates = append(dates, t)
	}
	return dates
}

// Floor returns the period start at or before t for the given frequency.
func Floor(freq models.Frequency, t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	switch freq {
	case models.FreqDaily:
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	case models.FreqWeekly:
		day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		// ISO weeks start on Monday.
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	case models.FreqMonthly:
		return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
	case models.FreqQuarterly:
		qm := time.Month(((int(m)-1)/3)*3 + 1)
		return time.Date(y, qm, 1, 0, 0, 0, 0, time.UTC)
	case models.FreqYearly:
		return time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC)
	}
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func next(freq models.Frequency, t time.Time) time.Time {
	switch freq {
	case models.FreqDaily:
		return t.AddDate(0, 0, 1)
	case models.FreqWeekly:
		return t.AddDate(0, 0, 7)
	case models.FreqMonthly:
		return t.AddDate(0, 1, 0)
	case models.FreqQuarterly:
		return t.AddDate(0, 3, 0)
	case models.FreqYearly:
		return t.AddDate(1, 0, 0)
	}
	return t.AddDate(0, 0, 1)
}

// Series resamples one realization's raw series onto the grid. Grid points
// outside the realization's own observed span are NaN: no extrapolation,
// ever. Within the span:
//
//   - Rate and Ratio vectors backfill: the value at grid point t is the first
//     raw observation at or after t.
//   - Cumulative vectors interpolate linearly between bracketing observations.
//   - Unclassified and Historical vectors use the provider-level fallback rule.
func Series(raw models.RawSeries, class models.VectorClass, grid []time.Time, fallback Rule) []float64 {
	values := make([]float64, len(grid))
	samples := raw.Samples
	if len(samples) == 0 {
		for i := range values {
			values[i] = math.NaN()
		}
		return values
	}

	backfill := class == models.ClassRate || class == models.ClassRatio ||
		(class != models.ClassCumulative && fallback == RuleBackfill)

	first, last := samples[0].Date, samples[len(samples)-1].Date
	j := 0
	for i, t := range grid {
		if t.Before(first) || t.After(last) {
			values[i] = math.NaN()
			continue
		}
		for j < len(samples) && samples[j].Date.Before(t) {
			j++
		}
		// samples[j] is the first observation at or after t.
		if backfill || samples[j].Date.Equal(t) {
			values[i] = samples[j].Value
			continue
		}
		prev := samples[j-1]
		next := samples[j]
		span := next.Date.Sub(prev.Date).Seconds()
		frac := t.Sub(prev.Date).Seconds() / span
		values[i] = prev.Value + frac*(next.Value-prev.Value)
	}
	return values
}
