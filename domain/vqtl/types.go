package vqtl

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Parameter identifies one of the three kinetic parameters of the
// telegraph model of stochastic gene expression.
type Parameter int

const (
	// KR is the mRNA synthesis rate while the promoter is on.
	KR Parameter = iota
	// KOn is the promoter on-rate.
	KOn
	// KOff is the promoter off-rate.
	KOff
)

// NumParameters is the number of columns in a posterior draw matrix.
const NumParameters = 3

// Parameters lists the parameters in column order of the draw matrix.
var Parameters = [NumParameters]Parameter{KR, KOn, KOff}

func (p Parameter) String() string {
	switch p {
	case KR:
		return "k_r"
	case KOn:
		return "k_on"
	case KOff:
		return "k_off"
	default:
		return fmt.Sprintf("parameter(%d)", int(p))
	}
}

// Label is the axis label used when the parameter is plotted on log scale.
func (p Parameter) Label() string {
	return "log " + p.String()
}

// ParseParameter maps a column name back to its Parameter.
func ParseParameter(name string) (Parameter, bool) {
	for _, p := range Parameters {
		if p.String() == name {
			return p, true
		}
	}
	return 0, false
}

// Association is one ranked row of the variance-QTL mapping output.
type Association struct {
	Gene  string  `json:"gene"`
	ID    string  `json:"id"`
	Beta  float64 `json:"beta"`
	PBeta float64 `json:"p_beta"`
}

// Dosage is the imputed genotype of one individual at the lead variant.
type Dosage struct {
	Individual string  `db:"ind" json:"ind"`
	Value      float64 `db:"value" json:"value"`
}

// GenotypeTable is ordered as returned by the genotype store; that order
// drives the row order of the display table.
type GenotypeTable []Dosage

// SampleSet maps an individual to its posterior draws, one row per MCMC
// iteration and one column per Parameter.
type SampleSet map[string]*mat.Dense

// ParameterSummary is the posterior mean and 95% credible interval of one
// parameter on log scale.
type ParameterSummary struct {
	Mean  float64 `json:"mean"`
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// LowErr is the distance from the mean down to the lower bound.
func (s ParameterSummary) LowErr() float64 {
	return math.Abs(s.Mean - s.Lower)
}

// HighErr is the distance from the mean up to the upper bound.
func (s ParameterSummary) HighErr() float64 {
	return math.Abs(s.Upper - s.Mean)
}

// DisplayRow is one individual in the display table.
type DisplayRow struct {
	Individual string
	// RawDosage is the stored dosage; Dosage carries display jitter.
	RawDosage float64
	Dosage    float64
	Summaries [NumParameters]ParameterSummary
}

// Summary returns the summary for p.
func (r DisplayRow) Summary(p Parameter) ParameterSummary {
	return r.Summaries[p]
}
