package loader

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/resviz/ensembleprov/internal/models"
	"github.com/resviz/ensembleprov/internal/vector"
)

const dateColumn = "DATE"

// openSummary opens summary.csv or summary.csv.gz in a realization
// directory, transparently decompressing the latter.
func openSummary(dir string) (io.ReadCloser, string, error) {
	plain := filepath.Join(dir, summaryFile)
	if f, err := os.Open(plain); err == nil {
		return f, plain, nil
	}
	gzPath := filepath.Join(dir, summaryFileGz)
	f, err := os.Open(gzPath)
	if err != nil {
		return nil, "", &models.MissingSourceError{Path: plain}
	}
	zr, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, "", fmt.Errorf("open %s: %w", gzPath, err)
	}
	return &gzipReadCloser{zr: zr, f: f}, gzPath, nil
}

type gzipReadCloser struct {
	zr *gzip.Reader
	f  *os.File
}

func (g *gzipReadCloser) Read(p []byte) (int, error) { return g.zr.Read(p) }

func (g *gzipReadCloser) Close() error {
	if err := g.zr.Close(); err != nil {
		g.f.Close()
		return err
	}
	return g.f.Close()
}

func readSummaryHeader(dir string) ([]string, map[string]vector.Hint, error) {
	rc, path, err := openSummary(dir)
	if err != nil {
		return nil, nil, err
	}
	defer rc.Close()

	r := csv.NewReader(rc)
	header, err := r.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("read header of %s: %w", path, err)
	}
	var names []string
	hints := make(map[string]vector.Hint)
	for _, cell := range header {
		name, hint := vector.ParseAnnotated(cell)
		if name == dateColumn {
			continue
		}
		names = append(names, name)
		if hint != vector.HintNone {
			hints[name] = hint
		}
	}
	return names, hints, nil
}

// readSummary parses a realization's full summary table. Empty cells mean
// the vector has no observation on that date. Dates must be strictly
// increasing; a violation is a MalformedDataError, not silently tolerated.
func readSummary(dir string, index int) ([]summaryRow, error) {
	rc, path, err := openSummary(dir)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	r := csv.NewReader(rc)
	header, err := r.Read()
	if err != nil {
		return nil, &models.MalformedDataError{Realization: index, Path: path, Reason: "empty summary table"}
	}

	dateIdx := -1
	names := make([]string, len(header))
	for i, cell := range header {
		name, _ := vector.ParseAnnotated(cell)
		names[i] = name
		if name == dateColumn {
			dateIdx = i
		}
	}
	if dateIdx < 0 {
		return nil, &models.MalformedDataError{Realization: index, Path: path, Reason: "missing DATE column"}
	}

	var rows []summaryRow
	var prev time.Time
	line := 1
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, &models.MalformedDataError{Realization: index, Path: path,
				Reason: fmt.Sprintf("line %d: %v", line, err)}
		}
		date, err := time.Parse("2006-01-02", record[dateIdx])
		if err != nil {
			return nil, &models.MalformedDataError{Realization: index, Path: path,
				Reason: fmt.Sprintf("line %d: bad date %q", line, record[dateIdx])}
		}
		if len(rows) > 0 && !date.After(prev) {
			return nil, &models.MalformedDataError{Realization: index, Path: path,
				Reason: fmt.Sprintf("dates not strictly increasing at %s", record[dateIdx])}
		}
		prev = date

		row := summaryRow{date: date, values: make(map[string]float64)}
		for i, cell := range record {
			if i == dateIdx || cell == "" {
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, &models.MalformedDataError{Realization: index, Path: path,
					Reason: fmt.Sprintf("line %d: bad value %q for %s", line, cell, names[i])}
			}
			row.values[names[i]] = v
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// LoadAggregated reads a single pre-aggregated long-format table with REAL
// and DATE columns plus one column per vector, and normalizes it to
// per-realization series. Rows must be grouped by realization with strictly
// increasing dates within each group.
func LoadAggregated(path string, columns []string) ([]models.Realization, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &models.MissingSourceError{Path: path}
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header of %s: %w", path, err)
	}

	realIdx, dateIdx := -1, -1
	names := make([]string, len(header))
	for i, cell := range header {
		name, _ := vector.ParseAnnotated(cell)
		names[i] = name
		switch name {
		case "REAL":
			realIdx = i
		case dateColumn:
			dateIdx = i
		}
	}
	if realIdx < 0 || dateIdx < 0 {
		return nil, &models.MalformedDataError{Path: path, Reason: "missing REAL or DATE column"}
	}

	byReal := make(map[int][]summaryRow)
	line := 1
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, &models.MalformedDataError{Path: path, Reason: fmt.Sprintf("line %d: %v", line, err)}
		}
		index, err := strconv.Atoi(record[realIdx])
		if err != nil {
			return nil, &models.MalformedDataError{Path: path,
				Reason: fmt.Sprintf("line %d: bad realization index %q", line, record[realIdx])}
		}
		date, err := time.Parse("2006-01-02", record[dateIdx])
		if err != nil {
			return nil, &models.MalformedDataError{Realization: index, Path: path,
				Reason: fmt.Sprintf("line %d: bad date %q", line, record[dateIdx])}
		}
		row := summaryRow{date: date, values: make(map[string]float64)}
		for i, cell := range record {
			if i == realIdx || i == dateIdx || cell == "" {
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, &models.MalformedDataError{Realization: index, Path: path,
					Reason: fmt.Sprintf("line %d: bad value %q for %s", line, cell, names[i])}
			}
			row.values[names[i]] = v
		}
		byReal[index] = append(byReal[index], row)
	}

	indices := make([]int, 0, len(byReal))
	for index := range byReal {
		indices = append(indices, index)
	}
	sort.Ints(indices)

	realizations := make([]models.Realization, 0, len(indices))
	for _, index := range indices {
		series, err := seriesFromRows(byReal[index], columns, index, path)
		if err != nil {
			return nil, err
		}
		realizations = append(realizations, models.Realization{Index: index, Series: series})
	}
	return realizations, nil
}

// DiscoverAggregatedVectors reads only the header of an aggregated table.
func DiscoverAggregatedVectors(path string) ([]string, map[string]vector.Hint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, &models.MissingSourceError{Path: path}
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("read header of %s: %w", path, err)
	}
	var names []string
	hints := make(map[string]vector.Hint)
	for _, cell := range header {
		name, hint := vector.ParseAnnotated(cell)
		if name == dateColumn || name == "REAL" {
			continue
		}
		names = append(names, name)
		if hint != vector.HintNone {
			hints[name] = hint
		}
	}
	sort.Strings(names)
	return names, hints, nil
}
