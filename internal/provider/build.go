package provider

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/resviz/ensembleprov/internal/assemble"
	"github.com/resviz/ensembleprov/internal/cache"
	"github.com/resviz/ensembleprov/internal/config"
	"github.com/resviz/ensembleprov/internal/loader"
	"github.com/resviz/ensembleprov/internal/metrics"
	"github.com/resviz/ensembleprov/internal/models"
	"github.com/resviz/ensembleprov/internal/resample"
	"github.com/resviz/ensembleprov/internal/vector"
)

// ensemblePlan is one ensemble's fully-resolved build inputs: concrete
// realization directories (or the aggregated table), the wildcard-expanded
// column set with hint annotations, and the table fingerprint both derive.
type ensemblePlan struct {
	name        string
	dirs        []string
	aggregated  string
	columns     []string // annotated: FOPR[rate]
	fingerprint string
}

type buildPlan struct {
	frequency   models.Frequency
	fallback    resample.Rule
	ensembles   []ensemblePlan
	fingerprint string
}

// resolvePlan turns raw configuration into a deterministic build plan. In
// normal mode wildcards resolve against the discovered vector universe and
// the resolution is recorded as a cache manifest; in portable mode the
// manifest is the only permitted source of resolution, since the original
// data may no longer be reachable.
func resolvePlan(cfg *config.Config, store *cache.Store, fallback resample.Rule) (*buildPlan, error) {
	freq := cfg.ParsedFrequency()
	plan := &buildPlan{frequency: freq, fallback: fallback}

	patterns := cfg.ColumnKeys
	if patterns == nil {
		patterns = []string{"*"}
	}

	for _, e := range cfg.Ensembles {
		key := manifestKey(e, patterns, freq, fallback)

		if m, ok, err := store.GetManifest(key); err != nil {
			return nil, err
		} else if ok {
			plan.ensembles = append(plan.ensembles, ensemblePlan{
				name:        e.Name,
				aggregated:  e.Aggregated,
				columns:     m.Columns,
				fingerprint: m.Fingerprint,
			})
			continue
		}
		if store.Portable() {
			return nil, &models.PortableDataUnavailableError{Fingerprint: key}
		}

		ep, err := resolveEnsemble(e, patterns, freq, fallback)
		if err != nil {
			return nil, err
		}
		if err := store.PutManifest(key, cache.Manifest{
			Fingerprint: ep.fingerprint,
			Columns:     ep.columns,
		}); err != nil {
			return nil, err
		}
		plan.ensembles = append(plan.ensembles, *ep)
	}

	fps := make([]string, 0, len(plan.ensembles))
	for _, ep := range plan.ensembles {
		fps = append(fps, ep.name+"="+ep.fingerprint)
	}
	sort.Strings(fps)
	sum := sha256.Sum256([]byte(strings.Join(fps, "\x1e") + "\x1e" + string(freq) + "\x1efallback=" + fallback.String()))
	plan.fingerprint = hex.EncodeToString(sum[:])
	return plan, nil
}

func manifestKey(e config.Ensemble, patterns []string, freq models.Frequency, fallback resample.Rule) string {
	source := e.Paths
	if e.Aggregated != "" {
		source = []string{"aggregated:" + e.Aggregated}
	}
	return cache.Fingerprint(source, patterns, freq, []string{"manifest", e.Name, "fallback=" + fallback.String()})
}

func resolveEnsemble(e config.Ensemble, patterns []string, freq models.Frequency, fallback resample.Rule) (*ensemblePlan, error) {
	var (
		universe []string
		hints    map[string]vector.Hint
		dirs     []string
		err      error
	)
	if e.Aggregated != "" {
		universe, hints, err = loader.DiscoverAggregatedVectors(e.Aggregated)
	} else {
		dirs, err = e.ExpandPaths()
		if err != nil {
			return nil, err
		}
		universe, hints, err = loader.DiscoverVectors(dirs)
	}
	if err != nil {
		return nil, fmt.Errorf("ensemble %s: %w", e.Name, err)
	}

	resolved, err := vector.Resolve(patterns, universe)
	if err != nil {
		return nil, fmt.Errorf("ensemble %s: %w", e.Name, err)
	}
	if len(resolved) == 0 {
		return nil, fmt.Errorf("ensemble %s: no vectors match %v", e.Name, patterns)
	}
	annotated := make([]string, len(resolved))
	for i, name := range resolved {
		annotated[i] = vector.Annotate(name, hints[name])
	}

	sources := dirs
	if e.Aggregated != "" {
		sources = []string{"aggregated:" + e.Aggregated}
	}
	// The fallback rule changes resampled values for unclassified vectors,
	// so it is part of the table fingerprint like any other input.
	return &ensemblePlan{
		name:        e.Name,
		dirs:        dirs,
		aggregated:  e.Aggregated,
		columns:     annotated,
		fingerprint: cache.Fingerprint(sources, resolved, freq, []string{"fallback=" + fallback.String()}),
	}, nil
}

// Build loads, resamples and assembles every configured ensemble, reusing
// frozen cache entries where present. The returned provider is immutable.
func Build(cfg *config.Config, store *cache.Store, fallback resample.Rule) (*Provider, error) {
	plan, err := resolvePlan(cfg, store, fallback)
	if err != nil {
		return nil, err
	}
	return buildFromPlan(plan, store)
}

func buildFromPlan(plan *buildPlan, store *cache.Store) (*Provider, error) {
	start := time.Now()
	p := &Provider{
		fingerprint: plan.fingerprint,
		frequency:   plan.frequency,
		store:       store,
		tables:      make(map[string]*models.ResampledTable, len(plan.ensembles)),
		tableFPs:    make(map[string]string, len(plan.ensembles)),
		classes:     make(map[string]models.VectorClass),
		parameters:  make(map[string]map[int]map[string]string),
	}

	for _, ep := range plan.ensembles {
		names := make([]string, len(ep.columns))
		for i, annotated := range ep.columns {
			name, hint := vector.ParseAnnotated(annotated)
			names[i] = name
			p.classes[name] = vector.ClassifyWithHint(name, hint)
		}

		ep := ep
		table, err := store.GetOrComputeTable(ep.fingerprint, func() (*models.ResampledTable, error) {
			realizations, err := loadPlanned(ep, names)
			if err != nil {
				return nil, err
			}
			params := make(map[int]map[string]string)
			for _, r := range realizations {
				if r.Parameters != nil {
					params[r.Index] = r.Parameters
				}
			}
			if len(params) > 0 {
				if err := store.PutParameters(ep.fingerprint, params); err != nil {
					return nil, err
				}
			}
			return assemble.Build(realizations, p.VectorMetadata, plan.frequency, plan.fallback)
		})
		if err != nil {
			return nil, fmt.Errorf("build ensemble %s: %w", ep.name, err)
		}
		if table.Frequency != plan.frequency {
			return nil, fmt.Errorf("build ensemble %s: %w", ep.name,
				&models.FrequencyMismatchError{Want: plan.frequency, Got: table.Frequency})
		}
		// Parameters are restored from the cache on every build, so a
		// cache-hit build answers the same as the build that computed it.
		params, err := store.GetParameters(ep.fingerprint)
		if err != nil {
			return nil, fmt.Errorf("build ensemble %s: load parameters: %w", ep.name, err)
		}
		if len(params) > 0 {
			p.parameters[ep.name] = params
		}
		p.tables[ep.name] = table
		p.tableFPs[ep.name] = ep.fingerprint
	}

	metrics.ProviderBuilds.Inc()
	metrics.ProviderBuildSeconds.Observe(time.Since(start).Seconds())
	log.Printf("provider %s: %d ensembles at %s frequency in %s",
		plan.fingerprint[:12], len(plan.ensembles), plan.frequency, time.Since(start).Round(time.Millisecond))
	return p, nil
}

func loadPlanned(ep ensemblePlan, columns []string) ([]models.Realization, error) {
	if ep.aggregated != "" {
		return loader.LoadAggregated(ep.aggregated, columns)
	}
	return loader.LoadEnsemble(ep.name, ep.dirs, columns)
}
