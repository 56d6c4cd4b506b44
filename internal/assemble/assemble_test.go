package assemble

import (
	"math"
	"testing"
	"time"

	"github.com/resviz/ensembleprov/internal/models"
	"github.com/resviz/ensembleprov/internal/resample"
	"github.com/resviz/ensembleprov/internal/vector"
)

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func realization(index int, vectorName string, points ...interface{}) models.Realization {
	s := models.RawSeries{Vector: vectorName}
	for i := 0; i < len(points); i += 2 {
		s.Samples = append(s.Samples, models.Sample{
			Date:  date(points[i].(string)),
			Value: points[i+1].(float64),
		})
	}
	return models.Realization{
		Index:  index,
		Series: map[string]models.RawSeries{vectorName: s},
	}
}

func TestBuildUnionGrid(t *testing.T) {
	// Realization 0 spans Jan-Feb, realization 1 spans Feb-Apr. The grid
	// covers the union; each stays NaN outside its own span.
	realizations := []models.Realization{
		realization(0, "FOPR", "2020-01-01", 100.0, "2020-02-01", 90.0),
		realization(1, "FOPR", "2020-02-01", 80.0, "2020-04-01", 60.0),
	}

	table, err := Build(realizations, vector.Classify, models.FreqMonthly, resample.RuleLinear)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(table.Dates) != 4 {
		t.Fatalf("grid = %v, want 4 monthly dates", table.Dates)
	}

	if v, ok := table.Value("FOPR", 0, 0); !ok || v != 100 {
		t.Errorf("real 0 at Jan = %g, %v", v, ok)
	}
	if _, ok := table.Value("FOPR", 0, 2); ok {
		t.Error("real 0 should be undefined at Mar (outside its span)")
	}
	if _, ok := table.Value("FOPR", 1, 0); ok {
		t.Error("real 1 should be undefined at Jan (outside its span)")
	}
	if v, ok := table.Value("FOPR", 1, 3); !ok || v != 60 {
		t.Errorf("real 1 at Apr = %g, %v", v, ok)
	}
}

func TestBuildPartialCoverage(t *testing.T) {
	r0 := realization(0, "FOPR", "2020-01-01", 100.0, "2020-02-01", 90.0)
	r1 := realization(1, "FOPT", "2020-01-01", 0.0, "2020-02-01", 2900.0)

	table, err := Build([]models.Realization{r0, r1}, vector.Classify, models.FreqMonthly, resample.RuleLinear)
	if err != nil {
		t.Fatal(err)
	}
	if cov := table.Coverage("FOPR"); len(cov) != 1 || cov[0] != 0 {
		t.Errorf("FOPR coverage = %v, want [0]", cov)
	}
	if table.FullCoverage("FOPR") {
		t.Error("FOPR should not report full coverage")
	}
}

func TestBuildRawFrequency(t *testing.T) {
	realizations := []models.Realization{
		realization(0, "FOPR", "2020-01-05", 100.0, "2020-01-20", 90.0),
		realization(1, "FOPR", "2020-01-05", 110.0, "2020-01-25", 95.0),
	}

	table, err := Build(realizations, vector.Classify, models.FreqRaw, resample.RuleLinear)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"2020-01-05", "2020-01-20", "2020-01-25"}
	if len(table.Dates) != len(want) {
		t.Fatalf("raw grid = %v, want %v", table.Dates, want)
	}
	for i, w := range want {
		if got := table.Dates[i].Format("2006-01-02"); got != w {
			t.Errorf("raw grid[%d] = %s, want %s", i, got, w)
		}
	}
	// Exact observations only: realization 0 never observed 2020-01-25.
	if v, ok := table.Value("FOPR", 0, 1); !ok || v != 90 {
		t.Errorf("real 0 at 2020-01-20 = %g, %v", v, ok)
	}
	if _, ok := table.Value("FOPR", 0, 2); ok {
		t.Error("real 0 should be undefined at 2020-01-25 under raw frequency")
	}
}

func TestBuildEmpty(t *testing.T) {
	table, err := Build(nil, vector.Classify, models.FreqMonthly, resample.RuleLinear)
	if err != nil {
		t.Fatal(err)
	}
	if len(table.Dates) != 0 || len(table.Vectors()) != 0 {
		t.Errorf("empty build: dates=%v vectors=%v", table.Dates, table.Vectors())
	}
}

func TestBuildBackfillsRates(t *testing.T) {
	r := realization(0, "FOPR", "2020-01-01", 100.0, "2020-03-01", 80.0)

	table, err := Build([]models.Realization{r}, vector.Classify, models.FreqMonthly, resample.RuleLinear)
	if err != nil {
		t.Fatal(err)
	}
	col, ok := table.Column("FOPR", 0)
	if !ok {
		t.Fatal("column missing")
	}
	if col[1] != 80 {
		t.Errorf("rate at Feb = %g, want backfilled 80", col[1])
	}
	if math.IsNaN(col[1]) {
		t.Error("in-span value must be defined")
	}
}
