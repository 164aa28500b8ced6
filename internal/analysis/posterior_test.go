package analysis

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"vqtlbrowser/domain/vqtl"
	"vqtlbrowser/internal/errors"
)

func constantDraws(rows int, v float64) *mat.Dense {
	data := make([]float64, rows*vqtl.NumParameters)
	for i := range data {
		data[i] = v
	}
	return mat.NewDense(rows, vqtl.NumParameters, data)
}

func lognormalDraws(rng *rand.Rand, rows int) *mat.Dense {
	data := make([]float64, rows*vqtl.NumParameters)
	for i := range data {
		data[i] = math.Exp(rng.NormFloat64()*0.7 + float64(i%vqtl.NumParameters))
	}
	return mat.NewDense(rows, vqtl.NumParameters, data)
}

func TestPercentileSorted(t *testing.T) {
	data := []float64{1, 2, 3, 4}
	assert.InDelta(t, 1.075, PercentileSorted(data, 2.5), 1e-12)
	assert.InDelta(t, 3.925, PercentileSorted(data, 97.5), 1e-12)
	assert.InDelta(t, 2.5, PercentileSorted(data, 50), 1e-12)
	assert.Equal(t, 1.0, PercentileSorted(data, 0))
	assert.Equal(t, 4.0, PercentileSorted(data, 100))
	assert.Equal(t, 7.0, PercentileSorted([]float64{7}, 2.5))
	assert.True(t, math.IsNaN(PercentileSorted(nil, 50)))
}

func TestSummarizeConstantChain(t *testing.T) {
	pa := NewPosteriorAnalyzer(800)
	summaries, used, err := pa.Summarize(constantDraws(1000, 1.0))
	require.NoError(t, err)
	assert.Equal(t, 800, used)
	for _, s := range summaries {
		assert.Equal(t, 0.0, s.Mean)
		assert.Equal(t, 0.0, s.Lower)
		assert.Equal(t, 0.0, s.Upper)
		assert.Equal(t, 0.0, s.LowErr())
		assert.Equal(t, 0.0, s.HighErr())
	}
}

func TestSummarizeUsesTrailingDraws(t *testing.T) {
	// burn-in rows hold e^5, the tail holds e^1
	draws := constantDraws(1000, math.E)
	for i := 0; i < 200; i++ {
		for j := 0; j < vqtl.NumParameters; j++ {
			draws.Set(i, j, math.Exp(5))
		}
	}
	summaries, used, err := NewPosteriorAnalyzer(800).Summarize(draws)
	require.NoError(t, err)
	assert.Equal(t, 800, used)
	for _, s := range summaries {
		assert.InDelta(t, 1.0, s.Mean, 1e-12)
		assert.InDelta(t, 1.0, s.Upper, 1e-12)
	}
}

func TestSummarizeShortChain(t *testing.T) {
	summaries, used, err := NewPosteriorAnalyzer(800).Summarize(constantDraws(50, math.E))
	require.NoError(t, err)
	assert.Equal(t, 50, used)
	assert.InDelta(t, 1.0, summaries[vqtl.KOff].Mean, 1e-12)
}

func TestSummarizeIntervalContainsMean(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 0))
	pa := NewPosteriorAnalyzer(800)
	for n := 0; n < 20; n++ {
		summaries, _, err := pa.Summarize(lognormalDraws(rng, 1000))
		require.NoError(t, err)
		for p, s := range summaries {
			assert.LessOrEqual(t, s.Lower, s.Mean, "parameter %s", vqtl.Parameters[p])
			assert.LessOrEqual(t, s.Mean, s.Upper, "parameter %s", vqtl.Parameters[p])
			assert.GreaterOrEqual(t, s.LowErr(), 0.0)
			assert.GreaterOrEqual(t, s.HighErr(), 0.0)
			// log-normal centered on the column index
			assert.InDelta(t, float64(p), s.Mean, 0.15)
		}
	}
}

func TestSummarizeStuckChainMeanOutsideInterval(t *testing.T) {
	// 790 draws stuck at 1 then 10 at e^2: both percentiles land on the
	// stuck value and the mean sits above the interval.
	draws := constantDraws(800, 1.0)
	for i := 790; i < 800; i++ {
		for j := 0; j < vqtl.NumParameters; j++ {
			draws.Set(i, j, math.Exp(2))
		}
	}
	summaries, used, err := NewPosteriorAnalyzer(800).Summarize(draws)
	require.NoError(t, err)
	assert.Equal(t, 800, used)
	for _, s := range summaries {
		assert.InDelta(t, 0.025, s.Mean, 1e-12)
		assert.Equal(t, 0.0, s.Lower)
		assert.Equal(t, 0.0, s.Upper)
		assert.Greater(t, s.Mean, s.Upper)
		// half-widths are absolute, so the upper bar still points up
		assert.InDelta(t, 0.025, s.LowErr(), 1e-12)
		assert.InDelta(t, 0.025, s.HighErr(), 1e-12)
	}
}

func TestSummarizeValidation(t *testing.T) {
	pa := NewPosteriorAnalyzer(800)

	_, _, err := pa.Summarize(mat.NewDense(2, 2, []float64{1, 1, 1, 1}))
	require.Error(t, err)
	assert.Equal(t, errors.CodeValidationError, errors.GetCode(err))

	_, _, err = pa.Summarize(mat.NewDense(1, 3, []float64{1, 0, 1}))
	require.Error(t, err)
	assert.Equal(t, errors.CodeValidationError, errors.GetCode(err))
}

func TestBuildDisplayTable(t *testing.T) {
	geno := vqtl.GenotypeTable{
		{Individual: "NA19239", Value: 1.8},
		{Individual: "NA18489", Value: 0.5},
	}
	samples := vqtl.SampleSet{
		"NA18489": constantDraws(1000, 1.0),
		"NA19239": constantDraws(1000, 1.0),
		"NA19999": constantDraws(1000, 2.0),
	}

	table, short, err := NewPosteriorAnalyzer(800).BuildDisplayTable(geno, samples, BuildOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, short)
	require.Equal(t, 2, table.Len())
	assert.Equal(t, []string{"NA19239", "NA18489"}, table.Individuals())

	row, ok := table.Row("NA18489")
	require.True(t, ok)
	assert.Equal(t, 0.5, row.Dosage)
	assert.Equal(t, 0.5, row.RawDosage)
	for _, p := range vqtl.Parameters {
		s := row.Summary(p)
		assert.Equal(t, 0.0, s.Mean)
		assert.Equal(t, 0.0, s.Lower)
		assert.Equal(t, 0.0, s.Upper)
	}
}

func TestBuildDisplayTableJitter(t *testing.T) {
	geno := vqtl.GenotypeTable{
		{Individual: "a", Value: 0},
		{Individual: "b", Value: 1},
		{Individual: "c", Value: 2},
	}
	samples := vqtl.SampleSet{
		"a": constantDraws(10, 1),
		"b": constantDraws(10, 1),
		"c": constantDraws(10, 1),
	}
	jitter := NewJitter(0.1, rand.NewPCG(7, 0))

	table, short, err := NewPosteriorAnalyzer(800).BuildDisplayTable(geno, samples, BuildOptions{Jitter: jitter})
	require.NoError(t, err)
	assert.Equal(t, 3, short)
	for _, row := range table.Rows() {
		assert.LessOrEqual(t, math.Abs(row.Dosage-row.RawDosage), jitter.Bandwidth())
	}
}

func TestBuildDisplayTableMissingIndividual(t *testing.T) {
	geno := vqtl.GenotypeTable{{Individual: "NA18489", Value: 0.5}}
	_, _, err := NewPosteriorAnalyzer(800).BuildDisplayTable(geno, vqtl.SampleSet{}, BuildOptions{})
	require.Error(t, err)
	assert.Equal(t, errors.CodeValidationError, errors.GetCode(err))
	assert.Contains(t, err.Error(), "NA18489")
}
