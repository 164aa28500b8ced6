package analysis

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// JitterSigmas is the truncation point of the jitter distribution, in
// standard deviations. Scale*JitterSigmas is the jitter bandwidth.
const JitterSigmas = 3.0

// Jitter adds zero-mean Gaussian noise, truncated at the bandwidth, so that
// overlapping dosages separate horizontally in a scatter plot.
type Jitter struct {
	dist distuv.Normal
}

// NewJitter draws from src; a seeded source gives reproducible displays.
func NewJitter(scale float64, src rand.Source) *Jitter {
	return &Jitter{dist: distuv.Normal{Mu: 0, Sigma: scale, Src: src}}
}

// Bandwidth is the largest possible displacement
func (j *Jitter) Bandwidth() float64 {
	return JitterSigmas * j.dist.Sigma
}

// Apply returns x plus one truncated-normal draw. Draws beyond the
// bandwidth are rejected, about 0.3% of them.
func (j *Jitter) Apply(x float64) float64 {
	bw := j.Bandwidth()
	for {
		noise := j.dist.Rand()
		if math.Abs(noise) <= bw {
			return x + noise
		}
	}
}
