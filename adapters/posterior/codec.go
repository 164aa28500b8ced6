package posterior

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"time"

	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"

	"vqtlbrowser/domain/vqtl"
	"vqtlbrowser/internal/errors"
	"vqtlbrowser/internal/storage"
	"vqtlbrowser/ports"
)

// Format and Version identify the serialized sample set schema.
const (
	Format  = "vqtl-posterior"
	Version = 1
)

// Document is the on-disk layout of a sample set. Samples maps an
// individual to its draws, one inner array of NumParameters values per
// iteration, columns in the order given by Parameters.
type Document struct {
	Format     string                 `json:"format"`
	Version    int                    `json:"version"`
	Parameters []string               `json:"parameters"`
	Samples    map[string][][]float64 `json:"samples"`
}

// Decode reads and validates a sample set; gzip input is inflated.
func Decode(r io.Reader) (vqtl.SampleSet, error) {
	src, err := storage.Decompress(r)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	var doc Document
	if err := json.NewDecoder(src).Decode(&doc); err != nil {
		return nil, errors.Wrap(errors.WithCode(errors.CodeInvalidInput, err), "failed to decode posterior samples")
	}
	return doc.SampleSet()
}

// SampleSet validates the document and converts it to draw matrices
func (d *Document) SampleSet() (vqtl.SampleSet, error) {
	if d.Format != Format {
		return nil, errors.ValidationError(fmt.Sprintf("unknown posterior format %q", d.Format))
	}
	if d.Version != Version {
		return nil, errors.ValidationError(fmt.Sprintf("unsupported posterior version %d", d.Version))
	}
	if len(d.Parameters) != vqtl.NumParameters {
		return nil, errors.ValidationError(fmt.Sprintf("expected %d parameters, got %d", vqtl.NumParameters, len(d.Parameters)))
	}
	for i, p := range vqtl.Parameters {
		if d.Parameters[i] != p.String() {
			return nil, errors.ValidationError(fmt.Sprintf("parameter %d must be %s, got %q", i, p, d.Parameters[i]))
		}
	}
	if len(d.Samples) == 0 {
		return nil, errors.ValidationError("posterior sample set is empty")
	}

	set := make(vqtl.SampleSet, len(d.Samples))
	for ind, draws := range d.Samples {
		if len(draws) == 0 {
			return nil, errors.ValidationError(fmt.Sprintf("individual %s has no draws", ind))
		}
		flat := make([]float64, 0, len(draws)*vqtl.NumParameters)
		for i, draw := range draws {
			if len(draw) != vqtl.NumParameters {
				return nil, errors.ValidationError(fmt.Sprintf("individual %s draw %d has %d values", ind, i, len(draw)))
			}
			for _, v := range draw {
				// draws are rates and get log-transformed downstream
				if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
					return nil, errors.ValidationError(fmt.Sprintf("individual %s draw %d has non-positive or non-finite value %v", ind, i, v))
				}
			}
			flat = append(flat, draw...)
		}
		set[ind] = mat.NewDense(len(draws), vqtl.NumParameters, flat)
	}
	return set, nil
}

// NewDocument converts a sample set back to its serialized layout
func NewDocument(set vqtl.SampleSet) *Document {
	doc := &Document{
		Format:  Format,
		Version: Version,
		Samples: make(map[string][][]float64, len(set)),
	}
	for _, p := range vqtl.Parameters {
		doc.Parameters = append(doc.Parameters, p.String())
	}
	for ind, m := range set {
		rows, _ := m.Dims()
		draws := make([][]float64, rows)
		for i := range draws {
			draws[i] = mat.Row(nil, i, m)
		}
		doc.Samples[ind] = draws
	}
	return doc
}

// Encode writes set, gzip-compressed when compress is true
func Encode(w io.Writer, set vqtl.SampleSet, compress bool) error {
	if !compress {
		return json.NewEncoder(w).Encode(NewDocument(set))
	}
	gz := gzip.NewWriter(w)
	if err := json.NewEncoder(gz).Encode(NewDocument(set)); err != nil {
		gz.Close()
		return err
	}
	return gz.Close()
}

// fileSource implements ports.PosteriorSource over a blob location
type fileSource struct {
	opener   storage.Opener
	location string
}

// NewFileSource reads the sample set at location (path or s3:// URL)
func NewFileSource(opener storage.Opener, location string) ports.PosteriorSource {
	return &fileSource{opener: opener, location: location}
}

func (s *fileSource) LoadSamples(ctx context.Context) (vqtl.SampleSet, error) {
	start := time.Now()
	rc, err := s.opener.Open(ctx, s.location)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open posterior samples %s", s.location)
	}
	defer rc.Close()

	set, err := Decode(rc)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load posterior samples %s", s.location)
	}
	log.Infof("[PosteriorSource] %d individuals decoded in %.2fms",
		len(set), float64(time.Since(start).Nanoseconds())/1e6)
	return set, nil
}

// Provenance returns the size, ETag and modification time of the samples blob
func (s *fileSource) Provenance(ctx context.Context) (*storage.BlobMetadata, error) {
	return s.opener.Stat(ctx, s.location)
}
