package stats

import (
	"math"
	"testing"
	"time"

	"github.com/resviz/ensembleprov/internal/models"
)

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

// tableWith builds a one-vector table with the given per-realization columns.
func tableWith(t *testing.T, vectorName string, dates []time.Time, columns map[int][]float64) *models.ResampledTable {
	t.Helper()
	reals := make([]int, 0, len(columns))
	for r := range columns {
		reals = append(reals, r)
	}
	table := models.NewResampledTable(models.FreqMonthly, dates, reals)
	for r, values := range columns {
		if err := table.AddColumn(vectorName, r, values); err != nil {
			t.Fatal(err)
		}
	}
	return table
}

func TestCompute(t *testing.T) {
	dates := []time.Time{date("2020-01-01"), date("2020-02-01")}
	table := tableWith(t, "FOPR", dates, map[int][]float64{
		0: {90, 10},
		1: {100, 20},
		2: {100, 30},
		3: {110, 40},
	})

	st, err := Compute(table, "iter-0", "FOPR", nil)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if st.Count[0] != 4 {
		t.Errorf("count = %d, want 4", st.Count[0])
	}
	if st.Mean[0] != 100 {
		t.Errorf("mean = %g, want 100", st.Mean[0])
	}
	if st.Min[0] != 90 || st.Max[0] != 110 {
		t.Errorf("min/max = %g/%g, want 90/110", st.Min[0], st.Max[0])
	}
	// Sample stddev of [90,100,100,110] = sqrt(200/3).
	if want := math.Sqrt(200.0 / 3.0); math.Abs(st.StdDev[0]-want) > 1e-12 {
		t.Errorf("stddev = %g, want %g", st.StdDev[0], want)
	}
	// rank = 0.1*(4-1) = 0.3 between 90 and 100 -> 93; 0.9*3 = 2.7 -> 107.
	if math.Abs(st.P10[0]-93) > 1e-12 {
		t.Errorf("P10 = %g, want 93", st.P10[0])
	}
	if math.Abs(st.P90[0]-107) > 1e-12 {
		t.Errorf("P90 = %g, want 107", st.P90[0])
	}
}

func TestComputeNoDataRow(t *testing.T) {
	nan := math.NaN()
	dates := []time.Time{date("2020-01-01"), date("2020-02-01")}
	table := tableWith(t, "FOPR", dates, map[int][]float64{
		0: {100, nan},
		1: {110, nan},
	})

	st, err := Compute(table, "iter-0", "FOPR", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !st.HasData(0) {
		t.Error("first date should have data")
	}
	if st.HasData(1) {
		t.Error("second date should be a no-data row")
	}
	if st.Count[1] != 0 {
		t.Errorf("no-data count = %d, want 0", st.Count[1])
	}
	for name, v := range map[string]float64{
		"mean": st.Mean[1], "stddev": st.StdDev[1], "min": st.Min[1],
		"max": st.Max[1], "p10": st.P10[1], "p90": st.P90[1],
	} {
		if !math.IsNaN(v) {
			t.Errorf("no-data %s = %g, want NaN (never a fabricated zero)", name, v)
		}
	}
}

func TestComputePartialContribution(t *testing.T) {
	nan := math.NaN()
	dates := []time.Time{date("2020-01-01")}
	table := tableWith(t, "FOPR", dates, map[int][]float64{
		0: {100},
		1: {nan},
		2: {200},
	})

	st, err := Compute(table, "iter-0", "FOPR", nil)
	if err != nil {
		t.Fatal(err)
	}
	if st.Count[0] != 2 {
		t.Errorf("count = %d, want 2 (NaN cell must not contribute)", st.Count[0])
	}
	if st.Mean[0] != 150 {
		t.Errorf("mean = %g, want 150", st.Mean[0])
	}
}

func TestComputeRealizationSubset(t *testing.T) {
	dates := []time.Time{date("2020-01-01")}
	table := tableWith(t, "FOPR", dates, map[int][]float64{
		0: {100},
		1: {200},
		2: {300},
	})

	st, err := Compute(table, "iter-0", "FOPR", []int{0, 2, 7})
	if err != nil {
		t.Fatal(err)
	}
	if st.Count[0] != 2 {
		t.Errorf("count = %d, want 2 (index 7 is not in the table)", st.Count[0])
	}
	if st.Mean[0] != 200 {
		t.Errorf("mean = %g, want 200", st.Mean[0])
	}
}

func TestComputeUnknownVector(t *testing.T) {
	table := models.NewResampledTable(models.FreqMonthly, nil, nil)
	if _, err := Compute(table, "iter-0", "NOPE", nil); err == nil {
		t.Fatal("want error for unknown vector")
	}
}

func TestComputeSingleValue(t *testing.T) {
	dates := []time.Time{date("2020-01-01")}
	table := tableWith(t, "FOPR", dates, map[int][]float64{0: {42}})

	st, err := Compute(table, "iter-0", "FOPR", nil)
	if err != nil {
		t.Fatal(err)
	}
	if st.StdDev[0] != 0 {
		t.Errorf("single-value stddev = %g, want 0", st.StdDev[0])
	}
	if st.P10[0] != 42 || st.P90[0] != 42 {
		t.Errorf("single-value percentiles = %g/%g, want 42/42", st.P10[0], st.P90[0])
	}
}

func TestPercentile(t *testing.T) {
	sorted := []float64{10, 20, 30, 40, 50}
	cases := []struct {
		q    float64
		want float64
	}{
		{0, 10},
		{0.10, 14}, // rank 0.4 between 10 and 20
		{0.25, 20},
		{0.5, 30},
		{0.90, 46}, // rank 3.6 between 40 and 50
		{1, 50},
	}
	for _, c := range cases {
		if got := Percentile(sorted, c.q); math.Abs(got-c.want) > 1e-12 {
			t.Errorf("Percentile(q=%g) = %g, want %g", c.q, got, c.want)
		}
	}
	if !math.IsNaN(Percentile(nil, 0.5)) {
		t.Error("empty percentile should be NaN")
	}
}
