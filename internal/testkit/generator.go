package testkit

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"math"
	"math/rand"
	"os"
	"path"

	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"

	"vqtlbrowser/adapters/genostore"
	"vqtlbrowser/adapters/posterior"
	"vqtlbrowser/domain/vqtl"
	"vqtlbrowser/internal/errors"
	"vqtlbrowser/internal/storage"
)

// Keys the generator writes under in a blob store
const (
	ResultsKey   = "variance.txt.gz"
	PosteriorKey = "posterior.json.gz"
	DatabaseFile = "browser.db"
)

// GeneratorConfig configures the synthetic vQTL data generator
type GeneratorConfig struct {
	Gene        string `json:"gene"`
	Genes       int    `json:"genes"`
	Individuals int    `json:"individuals"`
	Iterations  int    `json:"iterations"`
	Seed        int64  `json:"seed"`
}

// DefaultGeneratorConfig mirrors the size of a single-cell iPSC panel
func DefaultGeneratorConfig(gene string) GeneratorConfig {
	return GeneratorConfig{
		Gene:        gene,
		Genes:       200,
		Individuals: 53,
		Iterations:  1000,
		Seed:        42,
	}
}

// VQTLDataGenerator produces a consistent set of browser inputs: mapping
// results where the target gene ranks first, dosages for the target gene,
// and posterior draws whose log rates shift with dosage.
type VQTLDataGenerator struct {
	config GeneratorConfig
	rng    *rand.Rand
}

// NewVQTLDataGenerator creates a new generator
func NewVQTLDataGenerator(config GeneratorConfig) *VQTLDataGenerator {
	return &VQTLDataGenerator{
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}
}

// Associations generates one lead variant per gene. The target gene gets the
// smallest p_beta.
func (g *VQTLDataGenerator) Associations() []vqtl.Association {
	rows := make([]vqtl.Association, 0, g.config.Genes)
	for i := 0; i < g.config.Genes; i++ {
		gene := fmt.Sprintf("ENSG%011d", 100000+i*37)
		p := math.Pow(10, -1-4*g.rng.Float64())
		if i == g.config.Genes/2 {
			gene, p = g.config.Gene, 1e-12
		}
		rows = append(rows, vqtl.Association{
			Gene:  gene,
			ID:    fmt.Sprintf("rs%d", 1000+g.rng.Intn(9000000)),
			Beta:  g.rng.NormFloat64() * 0.3,
			PBeta: p,
		})
	}
	return rows
}

// Dosages generates imputed dosages in [0, 2] for the target gene
func (g *VQTLDataGenerator) Dosages() vqtl.GenotypeTable {
	table := make(vqtl.GenotypeTable, g.config.Individuals)
	for i := range table {
		copies := float64(g.rng.Intn(3))
		value := math.Max(0, math.Min(2, copies+g.rng.NormFloat64()*0.05))
		table[i] = vqtl.Dosage{
			Individual: fmt.Sprintf("NA%05d", 18486+i*3),
			Value:      value,
		}
	}
	return table
}

// Samples generates posterior draws for every genotyped individual. Draws
// are log-normal so that all rates are positive.
func (g *VQTLDataGenerator) Samples(geno vqtl.GenotypeTable) vqtl.SampleSet {
	base := [vqtl.NumParameters]float64{3, -1, 0.5}
	effect := [vqtl.NumParameters]float64{0.1, 0.6, -0.2}

	set := make(vqtl.SampleSet, len(geno))
	for _, d := range geno {
		data := make([]float64, g.config.Iterations*vqtl.NumParameters)
		for i := 0; i < g.config.Iterations; i++ {
			for j := 0; j < vqtl.NumParameters; j++ {
				mu := base[j] + effect[j]*d.Value
				data[i*vqtl.NumParameters+j] = math.Exp(mu + 0.25*g.rng.NormFloat64())
			}
		}
		set[d.Individual] = mat.NewDense(g.config.Iterations, vqtl.NumParameters, data)
	}
	return set
}

// WriteResults writes associations the way the mapping pipeline saves its
// data frame: gzip, space-delimited, with an unnamed leading index column.
func WriteResults(w io.Writer, rows []vqtl.Association) error {
	gz := gzip.NewWriter(w)
	fmt.Fprintln(gz, " gene id beta p_beta p_nominal")
	for i, a := range rows {
		if _, err := fmt.Fprintf(gz, "%d %s %s %g %g %g\n", i, a.Gene, a.ID, a.Beta, a.PBeta, a.PBeta/10); err != nil {
			gz.Close()
			return err
		}
	}
	return gz.Close()
}

// Inputs locates a generated input set
type Inputs struct {
	Results     string
	DatabaseDSN string
	Posterior   string
}

// WriteInputs generates every input, stores the results and posterior blobs
// in store under prefix, and the dosages in the SQLite database at dsn.
func (g *VQTLDataGenerator) WriteInputs(ctx context.Context, store storage.BlobStore, prefix, dsn string) error {
	associations := g.Associations()
	geno := g.Dosages()
	samples := g.Samples(geno)

	var buf bytes.Buffer
	if err := WriteResults(&buf, associations); err != nil {
		return errors.Wrap(err, "failed to encode results")
	}
	if err := store.StoreBlob(ctx, path.Join(prefix, ResultsKey), bytes.NewReader(buf.Bytes())); err != nil {
		return errors.Wrap(err, "failed to store results")
	}

	buf.Reset()
	if err := posterior.Encode(&buf, samples, true); err != nil {
		return errors.Wrap(err, "failed to encode posterior samples")
	}
	if err := store.StoreBlob(ctx, path.Join(prefix, PosteriorKey), bytes.NewReader(buf.Bytes())); err != nil {
		return errors.Wrap(err, "failed to store posterior samples")
	}

	if err := genostore.WriteDosages(ctx, "sqlite", dsn, g.config.Gene, geno); err != nil {
		return err
	}

	log.Infof("[TestKit] generated %d associations, %d individuals x %d iterations (%s)",
		len(associations), len(geno), g.config.Iterations, store.Provider())
	return nil
}

// Generate writes a complete input set. dest is a directory or an
// s3://bucket/prefix location for the results and posterior blobs; the
// SQLite database always goes to the local file dsn and is recreated. An
// existing results blob at dest is only replaced when overwrite is set.
func Generate(ctx context.Context, opener storage.Opener, dest, dsn string, config GeneratorConfig, overwrite bool) (*Inputs, error) {
	loc, err := storage.ParseLocation(dest)
	if err != nil {
		return nil, err
	}
	store, prefix, err := opener.Store(ctx, loc)
	if err != nil {
		return nil, err
	}

	keyed := func(name string) storage.Location {
		return storage.Location{Provider: loc.Provider, Bucket: loc.Bucket, Key: path.Join(prefix, name)}
	}
	results := keyed(ResultsKey)

	exists, err := store.BlobExists(ctx, results.Key)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to check %s", results)
	}
	if exists && !overwrite {
		return nil, errors.Newf(errors.CodeInvalidInput, "%s already exists", results)
	}

	if err := os.Remove(dsn); err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "failed to replace %s", dsn)
	}
	if err := NewVQTLDataGenerator(config).WriteInputs(ctx, store, prefix, dsn); err != nil {
		return nil, err
	}
	return &Inputs{
		Results:     results.String(),
		DatabaseDSN: dsn,
		Posterior:   keyed(PosteriorKey).String(),
	}, nil
}
