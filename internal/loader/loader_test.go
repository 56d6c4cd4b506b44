package loader

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/klauspost/compress/gzip"

	"github.com/resviz/ensembleprov/internal/models"
	"github.com/resviz/ensembleprov/internal/vector"
)

// writeRealization creates a realization directory with the given summary
// content and, when marker is true, the completion marker file.
func writeRealization(t *testing.T, root string, index int, summary string, marker bool) string {
	t.Helper()
	dir := filepath.Join(root, "realization-"+strconv.Itoa(index), "iter-0")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "summary.csv"), []byte(summary), 0o644); err != nil {
		t.Fatal(err)
	}
	if marker {
		if err := os.WriteFile(filepath.Join(dir, "OK"), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

const goodSummary = `DATE,FOPR,FOPT
2020-01-01,100,0
2020-02-01,90,2900
2020-03-01,80,5400
`

func TestLoadRealization(t *testing.T) {
	dir := writeRealization(t, t.TempDir(), 3, goodSummary, true)

	r, ok, err := LoadRealization(dir, nil)
	if err != nil {
		t.Fatalf("LoadRealization: %v", err)
	}
	if !ok {
		t.Fatal("realization with OK marker should load")
	}
	if r.Index != 3 {
		t.Errorf("index = %d, want 3", r.Index)
	}
	s, found := r.Series["FOPR"]
	if !found {
		t.Fatal("FOPR series missing")
	}
	if len(s.Samples) != 3 || s.Samples[0].Value != 100 {
		t.Errorf("FOPR samples = %v", s.Samples)
	}
}

func TestLoadRealizationColumnFilter(t *testing.T) {
	dir := writeRealization(t, t.TempDir(), 0, goodSummary, true)

	r, _, err := LoadRealization(dir, []string{"FOPT"})
	if err != nil {
		t.Fatal(err)
	}
	if _, found := r.Series["FOPR"]; found {
		t.Error("FOPR should be filtered out")
	}
	if _, found := r.Series["FOPT"]; !found {
		t.Error("FOPT should be loaded")
	}
}

func TestLoadRealizationNoMarker(t *testing.T) {
	dir := writeRealization(t, t.TempDir(), 1, goodSummary, false)

	_, ok, err := LoadRealization(dir, nil)
	if err != nil {
		t.Fatalf("missing marker must not be an error, got %v", err)
	}
	if ok {
		t.Error("realization without OK marker should be excluded")
	}
}

func TestLoadRealizationMissingSummary(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "realization-5")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "OK"), nil, 0o644); err != nil {
		t.Fatal(err)
	}

	_, _, err := LoadRealization(dir, nil)
	var missing *models.MissingSourceError
	if !errors.As(err, &missing) {
		t.Fatalf("want MissingSourceError, got %v", err)
	}
}

func TestLoadRealizationNonMonotonicDates(t *testing.T) {
	bad := "DATE,FOPR\n2020-02-01,90\n2020-01-01,100\n"
	dir := writeRealization(t, t.TempDir(), 2, bad, true)

	_, _, err := LoadRealization(dir, nil)
	var malformed *models.MalformedDataError
	if !errors.As(err, &malformed) {
		t.Fatalf("want MalformedDataError, got %v", err)
	}
	if malformed.Realization != 2 {
		t.Errorf("error realization = %d, want 2", malformed.Realization)
	}
}

func TestLoadRealizationGzip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "realization-4")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	f, err := os.Create(filepath.Join(dir, "summary.csv.gz"))
	if err != nil {
		t.Fatal(err)
	}
	zw := gzip.NewWriter(f)
	if _, err := zw.Write([]byte(goodSummary)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "OK"), nil, 0o644); err != nil {
		t.Fatal(err)
	}

	r, ok, err := LoadRealization(dir, nil)
	if err != nil || !ok {
		t.Fatalf("gzip summary: ok=%v err=%v", ok, err)
	}
	if len(r.Series["FOPR"].Samples) != 3 {
		t.Errorf("gzip samples = %d, want 3", len(r.Series["FOPR"].Samples))
	}
}

func TestLoadRealizationParameters(t *testing.T) {
	dir := writeRealization(t, t.TempDir(), 0, goodSummary, true)
	params := "# comment\nSENSNAME faultseal\nSENSCASE low\nPORO 0.25\n"
	if err := os.WriteFile(filepath.Join(dir, "parameters.txt"), []byte(params), 0o644); err != nil {
		t.Fatal(err)
	}

	r, _, err := LoadRealization(dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	if r.SensName != "faultseal" || r.SensCase != "low" {
		t.Errorf("sensitivity = %q/%q, want faultseal/low", r.SensName, r.SensCase)
	}
	if r.Parameters["PORO"] != "0.25" {
		t.Errorf("PORO = %q", r.Parameters["PORO"])
	}
	if _, found := r.Parameters["SENSNAME"]; found {
		t.Error("SENSNAME should be lifted out of the parameter map")
	}
}

func TestLoadEnsembleExcludesUnmarked(t *testing.T) {
	root := t.TempDir()
	dirs := []string{
		writeRealization(t, root, 0, goodSummary, true),
		writeRealization(t, root, 1, goodSummary, false),
		writeRealization(t, root, 2, goodSummary, true),
	}

	realizations, err := LoadEnsemble("iter-0", dirs, nil)
	if err != nil {
		t.Fatalf("LoadEnsemble: %v", err)
	}
	if len(realizations) != 2 {
		t.Fatalf("loaded %d realizations, want 2", len(realizations))
	}
	if realizations[0].Index != 0 || realizations[1].Index != 2 {
		t.Errorf("indices = %d, %d, want 0, 2", realizations[0].Index, realizations[1].Index)
	}
}

func TestLoadEnsembleAllExcluded(t *testing.T) {
	root := t.TempDir()
	dirs := []string{
		writeRealization(t, root, 0, goodSummary, false),
		writeRealization(t, root, 1, goodSummary, false),
	}

	_, err := LoadEnsemble("iter-0", dirs, nil)
	var empty *models.EmptyEnsembleError
	if !errors.As(err, &empty) {
		t.Fatalf("want EmptyEnsembleError, got %v", err)
	}
	if empty.Excluded != 2 {
		t.Errorf("excluded = %d, want 2", empty.Excluded)
	}
}

func TestDiscoverVectors(t *testing.T) {
	root := t.TempDir()
	dirs := []string{
		writeRealization(t, root, 0, "DATE,FOPR[rate],FOPT\n2020-01-01,1,2\n", true),
		writeRealization(t, root, 1, "DATE,FOPR[rate],FWCT\n2020-01-01,1,0.1\n", true),
	}

	names, hints, err := DiscoverVectors(dirs)
	if err != nil {
		t.Fatalf("DiscoverVectors: %v", err)
	}
	want := []string{"FOPR", "FOPT", "FWCT"}
	if len(names) != len(want) {
		t.Fatalf("universe = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("universe[%d] = %s, want %s", i, names[i], want[i])
		}
	}
	if hints["FOPR"] != vector.HintRate {
		t.Errorf("FOPR hint = %v, want HintRate", hints["FOPR"])
	}
}

func TestLoadAggregated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aggregated.csv")
	content := `REAL,DATE,FOPR,FOPT
0,2020-01-01,100,0
0,2020-02-01,90,2900
1,2020-01-01,110,0
1,2020-02-01,95,3100
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	realizations, err := LoadAggregated(path, nil)
	if err != nil {
		t.Fatalf("LoadAggregated: %v", err)
	}
	if len(realizations) != 2 {
		t.Fatalf("got %d realizations, want 2", len(realizations))
	}
	if realizations[0].Index != 0 || realizations[1].Index != 1 {
		t.Errorf("indices = %d, %d", realizations[0].Index, realizations[1].Index)
	}
	s := realizations[1].Series["FOPR"]
	if len(s.Samples) != 2 || s.Samples[0].Value != 110 {
		t.Errorf("realization 1 FOPR = %v", s.Samples)
	}
}

func TestLoadAggregatedMissingColumns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aggregated.csv")
	if err := os.WriteFile(path, []byte("DATE,FOPR\n2020-01-01,1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := LoadAggregated(path, nil)
	var malformed *models.MalformedDataError
	if !errors.As(err, &malformed) {
		t.Fatalf("want MalformedDataError for missing REAL column, got %v", err)
	}
}

func TestReadParametersMissingFileIsNil(t *testing.T) {
	params, err := readParameters(filepath.Join(t.TempDir(), "parameters.txt"))
	if err != nil {
		t.Fatalf("missing parameters file: %v", err)
	}
	if params != nil {
		t.Errorf("params = %v, want nil", params)
	}
}
