package models

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Frequency is the sampling frequency of a resampled date grid.
// FreqRaw means no resampling: observations are kept on their native dates.
type Frequency string

const (
	FreqDaily     Frequency = "daily"
	FreqWeekly    Frequency = "weekly"
	FreqMonthly   Frequency = "monthly"
	FreqQuarterly Frequency = "quarterly"
	FreqYearly    Frequency = "yearly"
	FreqRaw       Frequency = "raw"
)

func ParseFrequency(s string) (Frequency, error) {
	switch Frequency(s) {
	case FreqDaily, FreqWeekly, FreqMonthly, FreqQuarterly, FreqYearly, FreqRaw:
		return Frequency(s), nil
	}
	return "", fmt.Errorf("unknown frequency %q", s)
}

// VectorClass is the semantic class of a summary vector. It is derived once
// from the vector name (plus optional source hints) and determines which
// interpolation rule is legal during resampling.
type VectorClass string

const (
	ClassRate         VectorClass = "RATE"
	ClassCumulative   VectorClass = "CUMULATIVE"
	ClassRatio        VectorClass = "RATIO"
	ClassHistorical   VectorClass = "HISTORICAL_COUNTERPART"
	ClassUnclassified VectorClass = "UNCLASSIFIED"
)

// Sample is one raw observation.
type Sample struct {
	Date  time.Time
	Value float64
}

// RawSeries holds one realization's observations for one vector,
// dates strictly increasing.
type RawSeries struct {
	Vector  string
	Samples []Sample
}

// Validate checks the strictly-increasing-dates invariant. A violation is a
// load-time error, never silently tolerated.
func (s RawSeries) Validate() error {
	for i := 1; i < len(s.Samples); i++ {
		if !s.Samples[i].Date.After(s.Samples[i-1].Date) {
			return fmt.Errorf("vector %s: dates not strictly increasing at %s",
				s.Vector, s.Samples[i].Date.Format("2006-01-02"))
		}
	}
	return nil
}

// Realization is one stochastic simulation run within an ensemble.
type Realization struct {
	Index      int
	Series     map[string]RawSeries
	Parameters map[string]string
	SensName   string
	SensCase   string
}

// ResampledTable is the materialized result of resampling an ensemble onto a
// regular date grid: one value column per (vector, realization), aligned with
// Dates. Undefined cells are NaN (a realization outside its observed span, or
// a vector the realization never produced). Tables are immutable once built
// and safe to share across goroutines without locking.
type ResampledTable struct {
	Frequency    Frequency
	Dates        []time.Time
	Realizations []int

	realizationSet map[int]bool
	columns        map[string]map[int][]float64
}

func NewResampledTable(freq Frequency, dates []time.Time, realizations []int) *ResampledTable {
	t := &ResampledTable{
		Frequency:      freq,
		Dates:          dates,
		Realizations:   append([]int(nil), realizations...),
		realizationSet: make(map[int]bool, len(realizations)),
		columns:        make(map[string]map[int][]float64),
	}
	sort.Ints(t.Realizations)
	for _, r := range t.Realizations {
		t.realizationSet[r] = true
	}
	return t
}

// AddColumn attaches one realization's resampled values for a vector.
// Values must be aligned with the table's date grid.
func (t *ResampledTable) AddColumn(vector string, realization int, values []float64) error {
	if len(values) != len(t.Dates) {
		return fmt.Errorf("vector %s realization %d: %d values for %d grid dates",
			vector, realization, len(values), len(t.Dates))
	}
	if !t.realizationSet[realization] {
		return fmt.Errorf("vector %s: realization %d not in table", vector, realization)
	}
	cols := t.columns[vector]
	if cols == nil {
		cols = make(map[int][]float64)
		t.columns[vector] = cols
	}
	cols[realization] = values
	return nil
}

// Vectors returns the sorted vector names present in the table.
func (t *ResampledTable) Vectors() []string {
	names := make([]string, 0, len(t.columns))
	for v := range t.columns {
		names = append(names, v)
	}
	sort.Strings(names)
	return names
}

// Column returns the value column for one (vector, realization) pair.
func (t *ResampledTable) Column(vector string, realization int) ([]float64, bool) {
	cols, ok := t.columns[vector]
	if !ok {
		return nil, false
	}
	vals, ok := cols[realization]
	return vals, ok
}

// Value returns the cell at (vector, realization, date index). The second
// return is false when the cell is undefined.
func (t *ResampledTable) Value(vector string, realization, dateIdx int) (float64, bool) {
	vals, ok := t.Column(vector, realization)
	if !ok || dateIdx < 0 || dateIdx >= len(vals) {
		return 0, false
	}
	if math.IsNaN(vals[dateIdx]) {
		return 0, false
	}
	return vals[dateIdx], true
}

// Coverage returns the sorted realization indices that actually produced the
// vector. Partial coverage is preserved, never backfilled with zeros, so
// statistics compute over the true contributing set.
func (t *ResampledTable) Coverage(vector string) []int {
	cols, ok := t.columns[vector]
	if !ok {
		return nil
	}
	reals := make([]int, 0, len(cols))
	for r := range cols {
		reals = append(reals, r)
	}
	sort.Ints(reals)
	return reals
}

// FullCoverage reports whether every realization in the table produced the vector.
func (t *ResampledTable) FullCoverage(vector string) bool {
	return len(t.columns[vector]) == len(t.Realizations)
}

// StatisticsTable holds per-date aggregate statistics for one vector of one
// ensemble, as parallel slices aligned with Dates. Rows with Count == 0 are
// explicit no-data markers: their aggregate fields are NaN, never a
// fabricated zero. Derived wholesale, never mutated in place.
type StatisticsTable struct {
	Ensemble string
	Vector   string
	Dates    []time.Time
	Mean     []float64
	StdDev   []float64
	Min      []float64
	Max      []float64
	P10      []float64
	P90      []float64
	Count    []int
}

// HasData reports whether any realization contributed at date index i.
func (st *StatisticsTable) HasData(i int) bool {
	return st.Count[i] > 0
}

// DeltaEnsemble is a synthetic ensemble of realization-matched differences
// between two source ensembles. Its realization set is the intersection of
// the sources' sets.
type DeltaEnsemble struct {
	NameA string
	NameB string
	Table *ResampledTable
}

func (d *DeltaEnsemble) Name() string {
	return d.NameA + "-" + d.NameB
}
