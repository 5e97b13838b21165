package correlation

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/stitts-dev/gpp-engine/internal/types"
)

// ErrNotPSD is returned when a matchup covariance cannot be repaired into a
// positive-semidefinite matrix even after diagonal jitter.
var ErrNotPSD = errors.New("covariance matrix not positive semidefinite")

const psdJitterBase = 1e-6

// PairCorrelation resolves the correlation between two players in the same
// matchup. Player-specific overrides win over the position tables.
func PairCorrelation(a, b *types.Player) float64 {
	if a.ID == b.ID {
		return 1
	}
	if v, ok := a.PlayerCorrelations[b.Name]; ok {
		return v
	}
	if v, ok := b.PlayerCorrelations[a.Name]; ok {
		return v
	}
	label := b.PrimaryPosition()
	if a.Team != b.Team {
		label = "Opp " + label
	}
	return a.Correlations[label]
}

// BuildCovariance builds the covariance matrix for one matchup's player set:
// correlation times stddev products off the diagonal, bayesian variance on it.
func BuildCovariance(players []*types.Player) *mat.SymDense {
	n := len(players)
	cov := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		cov.SetSym(i, i, players[i].BayesVariance)
		for j := i + 1; j < n; j++ {
			corr := PairCorrelation(players[i], players[j])
			cov.SetSym(i, j, corr*players[i].StdDev*players[j].StdDev)
		}
	}
	return cov
}

// ProjectPSD repairs a covariance matrix to the nearest positive-semidefinite
// one: eigendecompose, clip negative eigenvalues to zero, reconstruct. When
// the most negative eigenvalue is large relative to the spectrum, diagonal
// jitter of |min eig| + 1e-6 is applied before clipping. The returned matrix
// is the transform A with A·Aᵀ = Σ, ready for joint sampling.
func ProjectPSD(cov *mat.SymDense) (*mat.Dense, error) {
	n, _ := cov.Dims()

	var eig mat.EigenSym
	if !eig.Factorize(cov, true) {
		return nil, ErrNotPSD
	}

	values := eig.Values(nil)
	minEig, maxAbs := 0.0, 0.0
	for _, v := range values {
		if v < minEig {
			minEig = v
		}
		if math.Abs(v) > maxAbs {
			maxAbs = math.Abs(v)
		}
	}

	// Tolerance is relative to the spectrum, not a fixed epsilon.
	if minEig < -1e-10*math.Max(maxAbs, 1) {
		jittered := mat.NewSymDense(n, nil)
		jittered.CopySym(cov)
		jitter := math.Abs(minEig) + psdJitterBase
		for i := 0; i < n; i++ {
			jittered.SetSym(i, i, jittered.At(i, i)+jitter)
		}
		if !eig.Factorize(jittered, true) {
			return nil, ErrNotPSD
		}
		values = eig.Values(nil)
	}

	var vectors mat.Dense
	eig.VectorsTo(&vectors)

	// A = Q · diag(sqrt(clip(λ, 0)))
	transform := mat.NewDense(n, n, nil)
	for j := 0; j < n; j++ {
		scale := 0.0
		if values[j] > 0 {
			scale = math.Sqrt(values[j])
		}
		for i := 0; i < n; i++ {
			transform.Set(i, j, vectors.At(i, j)*scale)
		}
	}
	return transform, nil
}

// Eigenvalues returns the spectrum of a symmetric matrix, for validation.
func Eigenvalues(cov *mat.SymDense) ([]float64, error) {
	var eig mat.EigenSym
	if !eig.Factorize(cov, false) {
		return nil, ErrNotPSD
	}
	return eig.Values(nil), nil
}
