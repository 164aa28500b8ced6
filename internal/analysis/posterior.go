package analysis

import (
	"fmt"
	"math"
	"sort"

	"github.com/montanaflynn/stats"
	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"

	"vqtlbrowser/domain/vqtl"
	"vqtlbrowser/internal/errors"
)

// Credible interval bounds, in percent.
const (
	LowerPercent = 2.5
	UpperPercent = 97.5
)

// PosteriorAnalyzer summarizes MCMC draws on log scale
type PosteriorAnalyzer struct {
	tail int
}

// NewPosteriorAnalyzer keeps the last tail draws of every chain; earlier
// draws are treated as burn-in.
func NewPosteriorAnalyzer(tail int) *PosteriorAnalyzer {
	return &PosteriorAnalyzer{tail: tail}
}

// Summarize computes, per parameter column, the mean and 95% credible
// interval of the log of the trailing draws. It also returns how many draws
// were used, which is less than the tail when the chain is shorter.
func (pa *PosteriorAnalyzer) Summarize(draws mat.Matrix) ([vqtl.NumParameters]vqtl.ParameterSummary, int, error) {
	var out [vqtl.NumParameters]vqtl.ParameterSummary

	rows, cols := draws.Dims()
	if cols != vqtl.NumParameters {
		return out, 0, errors.ValidationError(fmt.Sprintf("expected %d parameter columns, got %d", vqtl.NumParameters, cols))
	}
	if rows == 0 {
		return out, 0, errors.ValidationError("no posterior draws")
	}
	start := rows - pa.tail
	if start < 0 {
		start = 0
	}
	used := rows - start

	column := make([]float64, used)
	for j := 0; j < cols; j++ {
		for i := 0; i < used; i++ {
			column[i] = math.Log(draws.At(start+i, j))
		}
		summary, err := summarizeLog(column)
		if err != nil {
			return out, 0, errors.Wrapf(err, "parameter %s", vqtl.Parameters[j])
		}
		out[j] = summary
	}
	return out, used, nil
}

func summarizeLog(values []float64) (vqtl.ParameterSummary, error) {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	if math.IsNaN(sorted[0]) || math.IsInf(sorted[0], -1) || math.IsInf(sorted[len(sorted)-1], 1) {
		return vqtl.ParameterSummary{}, errors.ValidationError("log draws are not finite")
	}

	// A constant chain summarizes to itself; summation rounding would
	// otherwise move the mean off the zero-width interval.
	if sorted[0] == sorted[len(sorted)-1] {
		v := sorted[0]
		return vqtl.ParameterSummary{Mean: v, Lower: v, Upper: v}, nil
	}

	mean, err := stats.Mean(stats.Float64Data(values))
	if err != nil {
		return vqtl.ParameterSummary{}, err
	}

	return vqtl.ParameterSummary{
		Mean:  mean,
		Lower: PercentileSorted(sorted, LowerPercent),
		Upper: PercentileSorted(sorted, UpperPercent),
	}, nil
}

// PercentileSorted returns the p-th percentile (0-100) of ascending data,
// interpolating linearly between the two closest ranks: rank h = p/100*(n-1).
func PercentileSorted(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if n == 1 || p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[n-1]
	}
	h := p / 100 * float64(n-1)
	lo := math.Floor(h)
	i := int(lo)
	if i >= n-1 {
		return sorted[n-1]
	}
	t := h - lo
	a, b := sorted[i], sorted[i+1]
	// interpolate from the nearer end so the result stays within [a, b]
	if t >= 0.5 {
		return b - (b-a)*(1-t)
	}
	return a + (b-a)*t
}

// BuildOptions controls display table construction
type BuildOptions struct {
	// Jitter perturbs dosages for display; nil leaves them unchanged.
	Jitter *Jitter
}

// BuildDisplayTable joins dosages with posterior summaries: one row per
// genotyped individual, in genotype order. Every genotyped individual must
// have posterior draws. It also returns how many chains were shorter than
// the tail.
func (pa *PosteriorAnalyzer) BuildDisplayTable(geno vqtl.GenotypeTable, samples vqtl.SampleSet, opts BuildOptions) (*vqtl.DisplayTable, int, error) {
	rows := make([]vqtl.DisplayRow, 0, len(geno))
	short := 0

	for _, d := range geno {
		draws, ok := samples[d.Individual]
		if !ok {
			return nil, 0, errors.ValidationError(fmt.Sprintf("no posterior draws for individual %s", d.Individual))
		}
		summaries, used, err := pa.Summarize(draws)
		if err != nil {
			return nil, 0, errors.Wrapf(err, "individual %s", d.Individual)
		}
		if used < pa.tail {
			short++
			log.Warnf("[PosteriorAnalyzer] %s has %d draws, fewer than the %d-draw tail; using all of them",
				d.Individual, used, pa.tail)
		}

		dosage := d.Value
		if opts.Jitter != nil {
			dosage = opts.Jitter.Apply(d.Value)
		}

		rows = append(rows, vqtl.DisplayRow{
			Individual: d.Individual,
			RawDosage:  d.Value,
			Dosage:     dosage,
			Summaries:  summaries,
		})
	}

	table, err := vqtl.NewDisplayTable(rows)
	if err != nil {
		return nil, 0, errors.WithCode(errors.CodeValidationError, err)
	}
	log.Infof("[PosteriorAnalyzer] display table built: %d individuals, %d with short chains", table.Len(), short)
	return table, short, nil
}
