package app

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"vqtlbrowser/adapters/genostore"
	"vqtlbrowser/adapters/posterior"
	"vqtlbrowser/adapters/qtltable"
	"vqtlbrowser/domain/vqtl"
	"vqtlbrowser/internal/analysis"
	"vqtlbrowser/internal/config"
	"vqtlbrowser/internal/errors"
	"vqtlbrowser/internal/figure"
	"vqtlbrowser/internal/metrics"
	"vqtlbrowser/internal/storage"
	"vqtlbrowser/ports"
)

// Snapshot is everything the browser serves. It is built once at startup
// and shared read-only afterwards.
type Snapshot struct {
	ID           uuid.UUID          `json:"id"`
	BuiltAt      time.Time          `json:"built_at"`
	Gene         string             `json:"gene"`
	Associations []vqtl.Association `json:"associations"`
	Table        *vqtl.DisplayTable `json:"-"`
	Figures      *figure.Grid       `json:"-"`
	ShortChains  int                `json:"short_chains"`
	Timings      Timings            `json:"timings"`

	// Sources holds blob metadata of the file inputs, keyed "results" and
	// "posterior". Sources that are not blob backed are absent.
	Sources map[string]*storage.BlobMetadata `json:"sources,omitempty"`
}

// Timings records how long each startup stage took
type Timings struct {
	Associations time.Duration `json:"associations"`
	Genotypes    time.Duration `json:"genotypes"`
	Posterior    time.Duration `json:"posterior"`
	Transform    time.Duration `json:"transform"`
}

// BrowserOptions configures snapshot construction
type BrowserOptions struct {
	Gene        string
	TopN        int
	Tail        int
	JitterScale float64
	// Seed 0 seeds the jitter from the clock.
	Seed    int64
	Metrics *metrics.Metrics
}

// BrowserService loads the inputs and derives the served snapshot
type BrowserService struct {
	associations ports.AssociationSource
	genotypes    ports.GenotypeRepository
	posterior    ports.PosteriorSource
	opts         BrowserOptions
}

// NewBrowserService creates a browser service over the three input ports
func NewBrowserService(associations ports.AssociationSource, genotypes ports.GenotypeRepository, posterior ports.PosteriorSource, opts BrowserOptions) *BrowserService {
	return &BrowserService{
		associations: associations,
		genotypes:    genotypes,
		posterior:    posterior,
		opts:         opts,
	}
}

// OpenerFromConfig returns an opener for local paths and the s3:// locations
// cfg.S3 describes
func OpenerFromConfig(cfg *config.Config) storage.Opener {
	return storage.Opener{S3: &storage.S3Options{
		Region:    cfg.S3.Region,
		Endpoint:  cfg.S3.Endpoint,
		PathStyle: cfg.S3.PathStyle,
	}}
}

// NewBrowserServiceFromConfig wires the file, database and blob adapters
// named by cfg.
func NewBrowserServiceFromConfig(cfg *config.Config, m *metrics.Metrics) *BrowserService {
	opener := OpenerFromConfig(cfg)
	return NewBrowserService(
		qtltable.NewDataReader(opener, cfg.Data.ResultsPath),
		genostore.NewGenotypeRepository(cfg.Data.DatabaseDriver, cfg.Data.DatabaseDSN),
		posterior.NewFileSource(opener, cfg.Data.PosteriorPath),
		BrowserOptions{
			Gene:        cfg.Data.Gene,
			TopN:        cfg.Data.TopN,
			Tail:        cfg.Analysis.Tail,
			JitterScale: cfg.Analysis.JitterScale,
			Seed:        cfg.Analysis.Seed,
			Metrics:     m,
		},
	)
}

// BuildSnapshot loads the three inputs concurrently, then summarizes the
// posterior and builds the figures. Any failure aborts the build.
func (s *BrowserService) BuildSnapshot(ctx context.Context) (*Snapshot, error) {
	start := time.Now()
	log.Infof("[BrowserService] building snapshot for gene %s", s.opts.Gene)

	var (
		associations  []vqtl.Association
		geno          vqtl.GenotypeTable
		samples       vqtl.SampleSet
		timings       Timings
		resultsMeta   *storage.BlobMetadata
		posteriorMeta *storage.BlobMetadata
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		t := time.Now()
		var err error
		associations, err = s.associations.TopAssociations(gctx, s.opts.TopN)
		timings.Associations = time.Since(t)
		if err != nil {
			return errors.Wrap(err, "failed to load associations")
		}
		resultsMeta = provenance(gctx, "results", s.associations)
		return nil
	})
	g.Go(func() error {
		t := time.Now()
		var err error
		geno, err = s.genotypes.DosagesForGene(gctx, s.opts.Gene)
		timings.Genotypes = time.Since(t)
		return errors.Wrapf(err, "failed to load dosages for %s", s.opts.Gene)
	})
	g.Go(func() error {
		t := time.Now()
		var err error
		samples, err = s.posterior.LoadSamples(gctx)
		timings.Posterior = time.Since(t)
		if err != nil {
			return errors.Wrap(err, "failed to load posterior samples")
		}
		posteriorMeta = provenance(gctx, "posterior", s.posterior)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	transformStart := time.Now()
	seed := s.opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	analyzer := analysis.NewPosteriorAnalyzer(s.opts.Tail)
	table, shortChains, err := analyzer.BuildDisplayTable(geno, samples, analysis.BuildOptions{
		Jitter: analysis.NewJitter(s.opts.JitterScale, rand.NewPCG(uint64(seed), 0)),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to build display table")
	}
	grid, err := figure.BuildGrid(table)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build figures")
	}
	timings.Transform = time.Since(transformStart)

	snap := &Snapshot{
		ID:           uuid.New(),
		BuiltAt:      time.Now(),
		Gene:         s.opts.Gene,
		Associations: associations,
		Table:        table,
		Figures:      grid,
		ShortChains:  shortChains,
		Timings:      timings,
	}
	for name, meta := range map[string]*storage.BlobMetadata{"results": resultsMeta, "posterior": posteriorMeta} {
		if meta == nil {
			continue
		}
		if snap.Sources == nil {
			snap.Sources = make(map[string]*storage.BlobMetadata)
		}
		snap.Sources[name] = meta
	}
	s.record(snap)

	log.Infof("[BrowserService] snapshot %s built in %.2fms: %d associations, %d individuals",
		snap.ID, float64(time.Since(start).Nanoseconds())/1e6, len(associations), table.Len())
	return snap, nil
}

func (s *BrowserService) record(snap *Snapshot) {
	m := s.opts.Metrics
	if m == nil {
		return
	}
	m.ObserveStage("associations", snap.Timings.Associations)
	m.ObserveStage("genotypes", snap.Timings.Genotypes)
	m.ObserveStage("posterior", snap.Timings.Posterior)
	m.ObserveStage("transform", snap.Timings.Transform)
	m.SnapshotBuilt(snap.BuiltAt, snap.Table.Len(), snap.ShortChains)
}

// provenance looks up blob metadata for src. Failures are logged and
// yield nil; the inputs themselves have already loaded.
func provenance(ctx context.Context, name string, src interface{}) *storage.BlobMetadata {
	backed, ok := src.(ports.BlobBacked)
	if !ok {
		return nil
	}
	meta, err := backed.Provenance(ctx)
	if err != nil {
		log.Warnf("[BrowserService] no metadata for %s input: %v", name, err)
		return nil
	}
	return meta
}
