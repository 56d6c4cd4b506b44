package main

import (
	"encoding/csv"
	"log"
	"os"
	"strconv"

	"github.com/alecthomas/kong"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"
	_ "modernc.org/sqlite"

	"github.com/resviz/ensembleprov/internal/cache"
	"github.com/resviz/ensembleprov/internal/config"
	"github.com/resviz/ensembleprov/internal/provider"
	"github.com/resviz/ensembleprov/internal/resample"
)

type appContext struct {
	cfg      *config.Config
	registry *provider.Registry
}

type buildCmd struct{}

// Run loads, resamples and assembles every configured ensemble so that all
// cache entries exist. Running it before shipping a frozen cache file is
// what makes --portable deployments work.
func (c *buildCmd) Run(app *appContext) error {
	p, err := app.registry.GetProvider(app.cfg)
	if err != nil {
		return err
	}
	for _, name := range p.Ensembles() {
		vectors, err := p.Vectors(name)
		if err != nil {
			return err
		}
		log.Printf("ensemble %s: %d vectors frozen", name, len(vectors))
	}
	return nil
}

type tableCmd struct {
	Ensemble     string   `arg:"" help:"Ensemble name from the config."`
	Vectors      []string `help:"Vector names or wildcard patterns." placeholder:"FOPR,WOPR:*"`
	Realizations []int    `help:"Restrict to these realization indices."`
}

func (c *tableCmd) Run(app *appContext) error {
	p, err := app.registry.GetProvider(app.cfg)
	if err != nil {
		return err
	}
	table, err := p.Table(c.Ensemble, orNil(c.Vectors), orNilInts(c.Realizations))
	if err != nil {
		return err
	}

	w := csv.NewWriter(os.Stdout)
	header := []string{"REAL", "DATE"}
	vectors := table.Vectors()
	header = append(header, vectors...)
	w.Write(header)
	for _, r := range table.Realizations {
		for i, date := range table.Dates {
			row := []string{strconv.Itoa(r), date.Format("2006-01-02")}
			for _, vec := range vectors {
				if v, ok := table.Value(vec, r, i); ok {
					row = append(row, strconv.FormatFloat(v, 'g', -1, 64))
				} else {
					row = append(row, "")
				}
			}
			w.Write(row)
		}
	}
	w.Flush()
	return w.Error()
}

type statsCmd struct {
	Ensemble     string `arg:"" help:"Ensemble name from the config."`
	Vector       string `arg:"" help:"Vector name."`
	Realizations []int  `help:"Restrict to these realization indices."`
}

func (c *statsCmd) Run(app *appContext) error {
	p, err := app.registry.GetProvider(app.cfg)
	if err != nil {
		return err
	}
	st, err := p.Statistics(c.Ensemble, c.Vector, orNilInts(c.Realizations))
	if err != nil {
		return err
	}

	w := csv.NewWriter(os.Stdout)
	w.Write([]string{"DATE", "MEAN", "STDDEV", "MIN", "MAX", "P10", "P90", "COUNT"})
	for i, date := range st.Dates {
		row := []string{date.Format("2006-01-02")}
		if st.HasData(i) {
			for _, v := range []float64{st.Mean[i], st.StdDev[i], st.Min[i], st.Max[i], st.P10[i], st.P90[i]} {
				row = append(row, strconv.FormatFloat(v, 'g', -1, 64))
			}
		} else {
			row = append(row, "", "", "", "", "", "")
		}
		row = append(row, strconv.Itoa(st.Count[i]))
		w.Write(row)
	}
	w.Flush()
	return w.Error()
}

type deltaCmd struct {
	EnsembleA string   `arg:"" help:"Minuend ensemble."`
	EnsembleB string   `arg:"" help:"Subtrahend ensemble."`
	Vectors   []string `help:"Vector names or wildcard patterns."`
}

func (c *deltaCmd) Run(app *appContext) error {
	p, err := app.registry.GetProvider(app.cfg)
	if err != nil {
		return err
	}
	d, err := p.Delta(c.EnsembleA, c.EnsembleB, orNil(c.Vectors))
	if err != nil {
		return err
	}

	w := csv.NewWriter(os.Stdout)
	vectors := d.Table.Vectors()
	header := append([]string{"REAL", "DATE"}, vectors...)
	w.Write(header)
	for _, r := range d.Table.Realizations {
		for i, date := range d.Table.Dates {
			row := []string{strconv.Itoa(r), date.Format("2006-01-02")}
			for _, vec := range vectors {
				if v, ok := d.Table.Value(vec, r, i); ok {
					row = append(row, strconv.FormatFloat(v, 'g', -1, 64))
				} else {
					row = append(row, "")
				}
			}
			w.Write(row)
		}
	}
	w.Flush()
	return w.Error()
}

var cli struct {
	Config    string `help:"Path to the ensemble set definition." default:"ensembles.yaml" env:"ENSEMBLEPROV_CONFIG"`
	Cache     string `help:"Path to the cache database file." default:"data/ensembleprov.db" env:"ENSEMBLEPROV_CACHE"`
	Portable  bool   `help:"Frozen deployment: serve only precomputed cache entries, never re-read sources." env:"ENSEMBLEPROV_PORTABLE"`
	Fallback  string `help:"Interpolation rule for unclassified vectors." default:"linear" enum:"linear,backfill"`
	Frequency string `help:"Override the configured sampling frequency." optional:""`

	Build buildCmd `cmd:"" help:"Precompute and freeze all cache entries for the configured ensemble set."`
	Table tableCmd `cmd:"" help:"Print a resampled ensemble table as CSV."`
	Stats statsCmd `cmd:"" help:"Print per-date cross-realization statistics for one vector."`
	Delta deltaCmd `cmd:"" help:"Print the delta table between two ensembles."`
}

func main() {
	ctx := kong.Parse(&cli,
		kong.Name("ensembleprov"),
		kong.Description("Ensemble time-series data provider for reservoir simulation results."),
		kong.Configuration(kongdotenv.ENVFileReader, ".env"),
	)

	cfg, err := config.Load(cli.Config)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if cli.Frequency != "" {
		cfg.Frequency = cli.Frequency
		if err := cfg.Validate(); err != nil {
			log.Fatalf("config: %v", err)
		}
	}

	store, err := cache.Open(cli.Cache, cli.Portable)
	if err != nil {
		log.Fatalf("open cache: %v", err)
	}
	defer store.Close()

	fallback := resample.RuleLinear
	if cli.Fallback == "backfill" {
		fallback = resample.RuleBackfill
	}

	app := &appContext{
		cfg:      cfg,
		registry: provider.NewRegistry(store, fallback),
	}
	if err := ctx.Run(app); err != nil {
		log.Fatalf("%s: %v", ctx.Command(), err)
	}
}

func orNil(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	return values
}

func orNilInts(values []int) []int {
	if len(values) == 0 {
		return nil
	}
	return values
}
