// Package loader reads per-realization summary tables and scalar parameters
// from disk and normalizes them into the internal model. Two source shapes
// are accepted: one summary file per realization directory, or a single
// pre-aggregated long-format table with REAL and DATE columns.
package loader

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/resviz/ensembleprov/internal/metrics"
	"github.com/resviz/ensembleprov/internal/models"
	"github.com/resviz/ensembleprov/internal/vector"
)

const (
	summaryFile    = "summary.csv"
	summaryFileGz  = "summary.csv.gz"
	parametersFile = "parameters.txt"
	markerFile     = "OK"
)

var realizationDirPattern = regexp.MustCompile(`realization-(\d+)`)

// LoadRealization reads one realization directory: its summary table,
// optional parameters file and completion marker. columns restricts the
// loaded vectors to the given concrete names (already wildcard-resolved);
// nil loads everything.
//
// A missing summary file is a MissingSourceError. A missing marker file
// returns ok=false so the caller can exclude (not fail) the realization.
func LoadRealization(dir string, columns []string) (real *models.Realization, ok bool, err error) {
	if _, statErr := os.Stat(filepath.Join(dir, markerFile)); statErr != nil {
		return nil, false, nil
	}

	index, err := realizationIndex(dir)
	if err != nil {
		return nil, false, err
	}

	rows, err := readSummary(dir, index)
	if err != nil {
		return nil, false, err
	}

	series, err := seriesFromRows(rows, columns, index, dir)
	if err != nil {
		return nil, false, err
	}

	r := &models.Realization{Index: index, Series: series}
	params, err := readParameters(filepath.Join(dir, parametersFile))
	if err != nil {
		return nil, false, err
	}
	if params != nil {
		r.Parameters = params
		r.SensName = params["SENSNAME"]
		r.SensCase = params["SENSCASE"]
		delete(r.Parameters, "SENSNAME")
		delete(r.Parameters, "SENSCASE")
	}
	return r, true, nil
}

// LoadEnsemble loads every realization directory, silently excluding those
// without a completion marker. The exclusion is reported once as a count,
// never as per-realization noise. Zero usable realizations is a fatal
// EmptyEnsembleError.
func LoadEnsemble(name string, dirs []string, columns []string) ([]models.Realization, error) {
	var realizations []models.Realization
	excluded := 0
	for _, dir := range dirs {
		r, ok, err := LoadRealization(dir, columns)
		if err != nil {
			return nil, fmt.Errorf("ensemble %s: %w", name, err)
		}
		if !ok {
			excluded++
			continue
		}
		realizations = append(realizations, *r)
	}
	if excluded > 0 {
		log.Printf("ensemble %s: excluded %d of %d realizations without %s marker",
			name, excluded, len(dirs), markerFile)
		metrics.RealizationsExcluded.WithLabelValues(name).Add(float64(excluded))
	}
	if len(realizations) == 0 {
		return nil, &models.EmptyEnsembleError{Ensemble: name, Excluded: excluded}
	}
	metrics.RealizationsLoaded.WithLabelValues(name).Add(float64(len(realizations)))

	sort.Slice(realizations, func(i, j int) bool {
		return realizations[i].Index < realizations[j].Index
	})
	return realizations, nil
}

// DiscoverVectors reads only the summary headers of the given realization
// directories and returns the union vector universe plus any declared
// rate/total hints. Used for wildcard resolution before any data is loaded.
func DiscoverVectors(dirs []string) ([]string, map[string]vector.Hint, error) {
	universe := make(map[string]bool)
	hints := make(map[string]vector.Hint)
	found := false
	for _, dir := range dirs {
		if _, err := os.Stat(filepath.Join(dir, markerFile)); err != nil {
			continue
		}
		header, h, err := readSummaryHeader(dir)
		if err != nil {
			if _, missing := err.(*models.MissingSourceError); missing {
				continue
			}
			return nil, nil, err
		}
		found = true
		for _, name := range header {
			universe[name] = true
		}
		for name, hint := range h {
			hints[name] = hint
		}
	}
	if !found {
		return nil, nil, &models.MissingSourceError{Path: fmt.Sprintf("%d realization dirs", len(dirs))}
	}
	names := make([]string, 0, len(universe))
	for name := range universe {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, hints, nil
}

func realizationIndex(dir string) (int, error) {
	m := realizationDirPattern.FindStringSubmatch(dir)
	if m == nil {
		return 0, fmt.Errorf("cannot determine realization index from path %s", dir)
	}
	return strconv.Atoi(m[1])
}

// seriesFromRows converts parsed rows into per-vector RawSeries, dropping
// empty cells so a vector's sample list holds only its defined dates, and
// enforces the strictly-increasing-dates invariant.
func seriesFromRows(rows []summaryRow, columns []string, index int, path string) (map[string]models.RawSeries, error) {
	selected := func(string) bool { return true }
	if columns != nil {
		want := make(map[string]bool, len(columns))
		for _, c := range columns {
			want[c] = true
		}
		selected = func(name string) bool { return want[name] }
	}

	series := make(map[string]models.RawSeries)
	for _, row := range rows {
		for name, value := range row.values {
			if !selected(name) {
				continue
			}
			s := series[name]
			s.Vector = name
			s.Samples = append(s.Samples, models.Sample{Date: row.date, Value: value})
			series[name] = s
		}
	}
	for name, s := range series {
		if err := s.Validate(); err != nil {
			return nil, &models.MalformedDataError{Realization: index, Path: path, Reason: err.Error()}
		}
		series[name] = s
	}
	return series, nil
}

type summaryRow struct {
	date   time.Time
	values map[string]float64
}
