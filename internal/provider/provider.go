// Package provider exposes the consumer-facing read surface over assembled
// ensemble tables, and the registry that deduplicates provider instances
// across concurrent consumers.
package provider

import (
	"fmt"

	"github.com/resviz/ensembleprov/internal/cache"
	"github.com/resviz/ensembleprov/internal/delta"
	"github.com/resviz/ensembleprov/internal/models"
	"github.com/resviz/ensembleprov/internal/stats"
	"github.com/resviz/ensembleprov/internal/vector"
)

// Provider is a read-only facade over one provider build: every ensemble of
// the configured set, resampled at one frequency with one resolved column
// selection. Instances are immutable after Build and safe for concurrent use.
type Provider struct {
	fingerprint string
	frequency   models.Frequency
	store       *cache.Store
	tables      map[string]*models.ResampledTable
	tableFPs    map[string]string
	classes     map[string]models.VectorClass
	parameters  map[string]map[int]map[string]string
}

// Fingerprint identifies the fully-resolved argument set this provider was
// built from.
func (p *Provider) Fingerprint() string {
	return p.fingerprint
}

// Frequency returns the provider's sampling frequency.
func (p *Provider) Frequency() models.Frequency {
	return p.frequency
}

// Ensembles returns the configured ensemble names.
func (p *Provider) Ensembles() []string {
	names := make([]string, 0, len(p.tables))
	for name := range p.tables {
		names = append(names, name)
	}
	return names
}

// Vectors returns the available vector names of one ensemble.
func (p *Provider) Vectors(ensemble string) ([]string, error) {
	t, err := p.table(ensemble)
	if err != nil {
		return nil, err
	}
	return t.Vectors(), nil
}

// VectorMetadata returns the semantic class of a vector, folding in any
// source-declared rate/total hints seen at build time.
func (p *Provider) VectorMetadata(name string) models.VectorClass {
	if class, ok := p.classes[name]; ok {
		return class
	}
	return vector.Classify(name)
}

// HistoricalBase returns the non-historical base vector paired with a
// historical counterpart, for reference-line plotting.
func (p *Provider) HistoricalBase(name string) (string, bool) {
	return vector.BaseOf(name)
}

// Table returns an ensemble table restricted to the requested vectors
// (wildcards allowed) and realizations (nil means all). Column slices are
// shared with the underlying immutable table, never copied or mutated.
func (p *Provider) Table(ensemble string, vectors []string, realizations []int) (*models.ResampledTable, error) {
	t, err := p.table(ensemble)
	if err != nil {
		return nil, err
	}

	selected := t.Vectors()
	if vectors != nil {
		selected, err = vector.Resolve(vectors, t.Vectors())
		if err != nil {
			return nil, err
		}
	}
	reals := t.Realizations
	if realizations != nil {
		want := make(map[int]bool, len(realizations))
		for _, r := range realizations {
			want[r] = true
		}
		reals = nil
		for _, r := range t.Realizations {
			if want[r] {
				reals = append(reals, r)
			}
		}
	}

	sub := models.NewResampledTable(t.Frequency, t.Dates, reals)
	for _, name := range selected {
		for _, r := range reals {
			if col, ok := t.Column(name, r); ok {
				if err := sub.AddColumn(name, r, col); err != nil {
					return nil, err
				}
			}
		}
	}
	return sub, nil
}

// Statistics computes (or restores from cache) per-date statistics for one
// vector over the given realization subset (nil means all contributing).
func (p *Provider) Statistics(ensemble, vectorName string, realizations []int) (*models.StatisticsTable, error) {
	t, err := p.table(ensemble)
	if err != nil {
		return nil, err
	}
	fp := cache.StatisticsFingerprint(p.tableFPs[ensemble], vectorName, realizations)
	return p.store.GetOrComputeStatistics(fp, func() (*models.StatisticsTable, error) {
		return stats.Compute(t, ensemble, vectorName, realizations)
	})
}

// Delta builds the delta ensemble between two configured ensembles for the
// requested vectors (wildcards allowed, nil means all shared vectors).
func (p *Provider) Delta(ensembleA, ensembleB string, vectors []string) (*models.DeltaEnsemble, error) {
	a, err := p.table(ensembleA)
	if err != nil {
		return nil, err
	}
	b, err := p.table(ensembleB)
	if err != nil {
		return nil, err
	}
	if vectors != nil {
		vectors, err = vector.Resolve(vectors, a.Vectors())
		if err != nil {
			return nil, err
		}
	}
	return delta.Compute(ensembleA, a, ensembleB, b, vectors)
}

// DeltaStatistics computes statistics over a delta ensemble. The delta is
// resolved to a realization table first and fed through the same statistics
// engine: subtracting pre-aggregated statistics is wrong and not offered.
func (p *Provider) DeltaStatistics(ensembleA, ensembleB, vectorName string, realizations []int) (*models.StatisticsTable, error) {
	d, err := p.Delta(ensembleA, ensembleB, []string{vectorName})
	if err != nil {
		return nil, err
	}
	fp := cache.StatisticsFingerprint(
		p.tableFPs[ensembleA]+"\x1e"+p.tableFPs[ensembleB], vectorName, realizations)
	return p.store.GetOrComputeStatistics(fp, func() (*models.StatisticsTable, error) {
		return stats.Compute(d.Table, d.Name(), vectorName, realizations)
	})
}

// Parameters returns one realization's scalar parameters, if loaded.
func (p *Provider) Parameters(ensemble string, realization int) (map[string]string, bool) {
	reals, ok := p.parameters[ensemble]
	if !ok {
		return nil, false
	}
	params, ok := reals[realization]
	return params, ok
}

func (p *Provider) table(ensemble string) (*models.ResampledTable, error) {
	t, ok := p.tables[ensemble]
	if !ok {
		return nil, fmt.Errorf("unknown ensemble %q", ensemble)
	}
	return t, nil
}
