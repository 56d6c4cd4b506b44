// Package cache persists derived tables in a sqlite file keyed by content
// fingerprints. Entries are immutable once written: a changed fingerprint
// always produces a new entry, never an in-place update. The same file backs
// portable (data-frozen) deployments, where a miss is a fatal build-time
// omission rather than a silent re-read of the original sources.
package cache

import (
	"database/sql"
	"fmt"
	"math"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/resviz/ensembleprov/internal/metrics"
	"github.com/resviz/ensembleprov/internal/models"
)

type Store struct {
	db       *sql.DB
	portable bool
	group    singleflight.Group
}

// New wraps an open sqlite handle. With portable=true the store never
// computes: any miss surfaces as PortableDataUnavailableError.
func New(db *sql.DB, portable bool) *Store {
	return &Store{db: db, portable: portable}
}

// Open opens (or creates) a cache file and migrates its schema.
func Open(path string, portable bool) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cache %s: %w", path, err)
	}
	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA busy_timeout=5000")

	s := New(db, portable)
	if err := s.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate cache: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// GetOrComputeTable returns the cached table for the fingerprint, or invokes
// compute, persists the result and returns it. Concurrent calls with the
// same fingerprint join a single in-flight computation; unrelated
// fingerprints never contend.
func (s *Store) GetOrComputeTable(fingerprint string, compute func() (*models.ResampledTable, error)) (*models.ResampledTable, error) {
	v, err, _ := s.group.Do("table:"+fingerprint, func() (interface{}, error) {
		table, ok, err := s.GetTable(fingerprint)
		if err != nil {
			return nil, err
		}
		if ok {
			metrics.CacheHits.WithLabelValues("table").Inc()
			return table, nil
		}
		metrics.CacheMisses.WithLabelValues("table").Inc()
		if s.portable {
			return nil, &models.PortableDataUnavailableError{Fingerprint: fingerprint}
		}
		table, err = compute()
		if err != nil {
			return nil, err
		}
		if err := s.PutTable(fingerprint, table); err != nil {
			return nil, err
		}
		return table, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.ResampledTable), nil
}

// PutTable persists a resampled table under its fingerprint. Existing
// entries are left untouched: fingerprints identify immutable content.
func (s *Store) PutTable(fingerprint string, table *models.ResampledTable) error {
	dates, err := encodeDates(table.Dates)
	if err != nil {
		return fmt.Errorf("encode dates: %w", err)
	}
	reals, err := encodeInts(table.Realizations)
	if err != nil {
		return fmt.Errorf("encode realizations: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		INSERT INTO table_entries (fingerprint, frequency, realizations, dates)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(fingerprint) DO NOTHING
	`, fingerprint, string(table.Frequency), reals, dates)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil // already frozen
	}

	for _, vec := range table.Vectors() {
		for _, r := range table.Coverage(vec) {
			col, _ := table.Column(vec, r)
			payload, err := encodeValues(col)
			if err != nil {
				return fmt.Errorf("encode %s/%d: %w", vec, r, err)
			}
			if _, err := tx.Exec(`
				INSERT INTO table_columns (fingerprint, vector, realization, "values")
				VALUES (?, ?, ?, ?)
			`, fingerprint, vec, r, payload); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

// GetTable loads a cached table. The second return is false on a miss.
func (s *Store) GetTable(fingerprint string) (*models.ResampledTable, bool, error) {
	var freq string
	var realsBlob, datesBlob []byte
	err := s.db.QueryRow(`
		SELECT frequency, realizations, dates FROM table_entries WHERE fingerprint = ?
	`, fingerprint).Scan(&freq, &realsBlob, &datesBlob)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	dates, err := decodeDates(datesBlob)
	if err != nil {
		return nil, false, err
	}
	reals, err := decodeInts(realsBlob)
	if err != nil {
		return nil, false, err
	}

	table := models.NewResampledTable(models.Frequency(freq), dates, reals)
	rows, err := s.db.Query(`
		SELECT vector, realization, "values" FROM table_columns WHERE fingerprint = ?
	`, fingerprint)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	for rows.Next() {
		var vec string
		var r int
		var payload []byte
		if err := rows.Scan(&vec, &r, &payload); err != nil {
			return nil, false, err
		}
		values, err := decodeValues(payload)
		if err != nil {
			return nil, false, fmt.Errorf("decode %s/%d: %w", vec, r, err)
		}
		if err := table.AddColumn(vec, r, values); err != nil {
			return nil, false, err
		}
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}
	return table, true, nil
}

// GetOrComputeStatistics mirrors GetOrComputeTable for statistics artifacts,
// except in portable mode: a table miss means the frozen build omitted data,
// while statistics can always be recomputed from the frozen tables.
func (s *Store) GetOrComputeStatistics(fingerprint string, compute func() (*models.StatisticsTable, error)) (*models.StatisticsTable, error) {
	v, err, _ := s.group.Do("stats:"+fingerprint, func() (interface{}, error) {
		st, ok, err := s.GetStatistics(fingerprint)
		if err != nil {
			return nil, err
		}
		if ok {
			metrics.CacheHits.WithLabelValues("statistics").Inc()
			return st, nil
		}
		metrics.CacheMisses.WithLabelValues("statistics").Inc()
		if s.portable {
			// Statistics derive from frozen tables, never from the original
			// sources, so a frozen deployment computes them on the fly. The
			// cache file may be read-only, so nothing is persisted.
			return compute()
		}
		st, err = compute()
		if err != nil {
			return nil, err
		}
		if err := s.PutStatistics(fingerprint, st); err != nil {
			return nil, err
		}
		return st, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.StatisticsTable), nil
}

// PutStatistics persists a statistics table. No-data rows are stored with
// NULL aggregates and count 0, never fabricated zeros.
func (s *Store) PutStatistics(fingerprint string, st *models.StatisticsTable) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		INSERT INTO stat_entries (fingerprint, ensemble, vector)
		VALUES (?, ?, ?)
		ON CONFLICT(fingerprint) DO NOTHING
	`, fingerprint, st.Ensemble, st.Vector)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil
	}

	for i, date := range st.Dates {
		if _, err := tx.Exec(`
			INSERT INTO stat_rows (fingerprint, date, mean, stddev, min, max, p10, p90, count)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, fingerprint, date.UTC().Format("2006-01-02"),
			nullable(st.Mean[i]), nullable(st.StdDev[i]), nullable(st.Min[i]),
			nullable(st.Max[i]), nullable(st.P10[i]), nullable(st.P90[i]), st.Count[i]); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetStatistics loads a cached statistics table; false on a miss.
func (s *Store) GetStatistics(fingerprint string) (*models.StatisticsTable, bool, error) {
	st := &models.StatisticsTable{}
	err := s.db.QueryRow(`
		SELECT ensemble, vector FROM stat_entries WHERE fingerprint = ?
	`, fingerprint).Scan(&st.Ensemble, &st.Vector)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	rows, err := s.db.Query(`
		SELECT date, mean, stddev, min, max, p10, p90, count
		FROM stat_rows WHERE fingerprint = ? ORDER BY date ASC
	`, fingerprint)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	for rows.Next() {
		// The date column is declared DATE, so the sqlite driver yields a
		// time.Time; scan it directly rather than through a string.
		var date time.Time
		var mean, stddev, minV, maxV, p10, p90 sql.NullFloat64
		var count int
		if err := rows.Scan(&date, &mean, &stddev, &minV, &maxV, &p10, &p90, &count); err != nil {
			return nil, false, err
		}
		st.Dates = append(st.Dates, date)
		st.Mean = append(st.Mean, fromNullable(mean))
		st.StdDev = append(st.StdDev, fromNullable(stddev))
		st.Min = append(st.Min, fromNullable(minV))
		st.Max = append(st.Max, fromNullable(maxV))
		st.P10 = append(st.P10, fromNullable(p10))
		st.P90 = append(st.P90, fromNullable(p90))
		st.Count = append(st.Count, count)
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}
	return st, true, nil
}

func nullable(v float64) sql.NullFloat64 {
	if math.IsNaN(v) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func fromNullable(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}
