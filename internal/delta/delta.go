// Package delta derives synthetic ensembles of realization-matched
// differences between two source ensembles. The subtraction always happens
// per realization before any aggregation; statistics over a delta ensemble
// are computed from the delta table by the ordinary stats engine.
package delta

import (
	"log"
	"math"
	"time"

	"github.com/resviz/ensembleprov/internal/models"
)

// Compute builds the delta ensemble A-B for the given vectors (nil means
// every vector present in both tables). Both tables must have been
// resampled at the same frequency; a mismatch is an IncompatibleGridError
// and the caller must resample first. Realization indices present in only
// one source are excluded from the result and logged, not errored.
func Compute(nameA string, a *models.ResampledTable, nameB string, b *models.ResampledTable, vectors []string) (*models.DeltaEnsemble, error) {
	if a.Frequency != b.Frequency {
		return nil, &models.IncompatibleGridError{FreqA: a.Frequency, FreqB: b.Frequency}
	}

	reals := intersectInts(a.Realizations, b.Realizations)
	if dropped := len(a.Realizations) + len(b.Realizations) - 2*len(reals); dropped > 0 {
		log.Printf("delta %s-%s: %d realizations present in only one source excluded", nameA, nameB, dropped)
	}

	if vectors == nil {
		vectors = intersectStrings(a.Vectors(), b.Vectors())
	}
	dates := intersectDates(a.Dates, b.Dates)

	table := models.NewResampledTable(a.Frequency, dates, reals)
	idxA := dateIndices(a.Dates, dates)
	idxB := dateIndices(b.Dates, dates)
	for _, name := range vectors {
		for _, r := range reals {
			colA, okA := a.Column(name, r)
			colB, okB := b.Column(name, r)
			if !okA || !okB {
				continue
			}
			values := make([]float64, len(dates))
			for i := range dates {
				va, vb := colA[idxA[i]], colB[idxB[i]]
				if math.IsNaN(va) || math.IsNaN(vb) {
					values[i] = math.NaN()
					continue
				}
				values[i] = va - vb
			}
			if err := table.AddColumn(name, r, values); err != nil {
				return nil, err
			}
		}
	}
	return &models.DeltaEnsemble{NameA: nameA, NameB: nameB, Table: table}, nil
}

func intersectInts(a, b []int) []int {
	inB := make(map[int]bool, len(b))
	for _, v := range b {
		inB[v] = true
	}
	var out []int
	for _, v := range a {
		if inB[v] {
			out = append(out, v)
		}
	}
	return out
}

func intersectStrings(a, b []string) []string {
	inB := make(map[string]bool, len(b))
	for _, v := range b {
		inB[v] = true
	}
	var out []string
	for _, v := range a {
		if inB[v] {
			out = append(out, v)
		}
	}
	return out
}

func intersectDates(a, b []time.Time) []time.Time {
	inB := make(map[time.Time]bool, len(b))
	for _, d := range b {
		inB[d] = true
	}
	var out []time.Time
	for _, d := range a {
		if inB[d] {
			out = append(out, d)
		}
	}
	return out
}

func dateIndices(grid, subset []time.Time) []int {
	index := make(map[time.Time]int, len(grid))
	for i, d := range grid {
		index[d] = i
	}
	out := make([]int, len(subset))
	for i, d := range subset {
		out[i] = index[d]
	}
	return out
}
