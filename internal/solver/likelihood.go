package solver

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// probitClamp bounds the argument of the normal CDF so log Φ and the inverse
// Mills ratio stay finite under perfect separation.
const probitClamp = 35.0

var logSqrt2Pi = 0.5 * math.Log(2*math.Pi)

// GaussianLogLikelihood returns log N(residual; 0, sigma²).
func GaussianLogLikelihood(residual, sigma float64) float64 {
	return -math.Log(sigma) - logSqrt2Pi - residual*residual/(2*sigma*sigma)
}

// Sigmoid returns 1 / (1 + e^-x) without overflowing for large |x|.
func Sigmoid(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1 + e)
}

// Wins is a square table where w[i][j] counts preferences of i over j.
// Pairs with w[i][j] + w[j][i] == 0 contribute nothing to any likelihood.
type Wins [][]float64

// Separated reports whether the videos split into a group that won every
// comparison against the rest, i.e. the directed graph with an edge i → j
// whenever w[i][j] > 0 is not strongly connected. Separated data has no
// finite maximum-likelihood estimate under either paired model.
func Separated(w Wins) bool {
	if len(w) < 2 {
		return false
	}
	return !reachesAll(w, false) || !reachesAll(w, true)
}

// reachesAll walks the win graph from video 0, following wins forward or,
// when reverse is set, losses.
func reachesAll(w Wins, reverse bool) bool {
	seen := make([]bool, len(w))
	seen[0] = true
	stack := []int{0}
	visited := 1
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for j := range w {
			wij := w[i][j]
			if reverse {
				wij = w[j][i]
			}
			if i == j || seen[j] || wij <= 0 {
				continue
			}
			seen[j] = true
			visited++
			stack = append(stack, j)
		}
	}
	return visited == len(w)
}

// BradleyTerryLogLikelihood evaluates Σ w_ij log σ(θ_i − θ_j) for
// log-strengths theta.
func BradleyTerryLogLikelihood(w Wins, theta []float64) float64 {
	var ll float64
	for i := range w {
		for j, wij := range w[i] {
			if i == j || wij == 0 {
				continue
			}
			ll += wij * logSigmoid(theta[i]-theta[j])
		}
	}
	return ll
}

// BradleyTerryGradient returns ∂LL/∂θ_i = W_i − Σ_j n_ij σ(θ_i − θ_j).
func BradleyTerryGradient(w Wins, theta []float64) []float64 {
	g := make([]float64, len(theta))
	for i := range w {
		for j := range w[i] {
			if i == j {
				continue
			}
			nij := w[i][j] + w[j][i]
			if nij == 0 {
				continue
			}
			g[i] += w[i][j] - nij*Sigmoid(theta[i]-theta[j])
		}
	}
	return g
}

// BradleyTerryInformation returns the Fisher information of the
// log-strengths, a graph Laplacian weighted by n_ij p_ij (1 − p_ij).
func BradleyTerryInformation(w Wins, theta []float64) *mat.SymDense {
	n := len(theta)
	info := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			nij := w[i][j] + w[j][i]
			if nij == 0 {
				continue
			}
			p := Sigmoid(theta[i] - theta[j])
			c := nij * p * (1 - p)
			info.SetSym(i, i, info.At(i, i)+c)
			info.SetSym(j, j, info.At(j, j)+c)
			info.SetSym(i, j, info.At(i, j)-c)
		}
	}
	return info
}

// ThurstoneLogLikelihood evaluates Σ w_ij log Φ((m_i − m_j)/√2) for Case V
// merits with unit per-stimulus variance.
func ThurstoneLogLikelihood(w Wins, merits []float64) float64 {
	var ll float64
	for i := range w {
		for j, wij := range w[i] {
			if i == j || wij == 0 {
				continue
			}
			ll += wij * logPhi(thurstoneArg(merits[i], merits[j]))
		}
	}
	return ll
}

// ThurstoneGradient returns ∂LL/∂m.
func ThurstoneGradient(w Wins, merits []float64) []float64 {
	g := make([]float64, len(merits))
	for i := range w {
		for j, wij := range w[i] {
			if i == j || wij == 0 {
				continue
			}
			// d/dm_i log Φ(x) = λ(x)/√2 and d/dm_j = −λ(x)/√2.
			d := wij * millsRatio(thurstoneArg(merits[i], merits[j])) / math.Sqrt2
			g[i] += d
			g[j] -= d
		}
	}
	return g
}

// ThurstoneInformation returns the observed information (negative Hessian)
// of the Case V log-likelihood. log Φ is concave so the matrix is positive
// semi-definite with the constant vector in its null space.
func ThurstoneInformation(w Wins, merits []float64) *mat.SymDense {
	n := len(merits)
	info := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			x := thurstoneArg(merits[i], merits[j])
			var c float64
			if w[i][j] > 0 {
				l := millsRatio(x)
				c += w[i][j] * l * (x + l) / 2
			}
			if w[j][i] > 0 {
				l := millsRatio(-x)
				c += w[j][i] * l * (-x + l) / 2
			}
			if c == 0 {
				continue
			}
			info.SetSym(i, i, info.At(i, i)+c)
			info.SetSym(j, j, info.At(j, j)+c)
			info.SetSym(i, j, info.At(i, j)-c)
		}
	}
	return info
}

// ThurstoneWinProbability returns P(i ≻ j) for merits mi and mj.
func ThurstoneWinProbability(mi, mj float64) float64 {
	return distuv.UnitNormal.CDF((mi - mj) / math.Sqrt2)
}

func thurstoneArg(mi, mj float64) float64 {
	x := (mi - mj) / math.Sqrt2
	return math.Max(-probitClamp, math.Min(probitClamp, x))
}

func logPhi(x float64) float64 {
	return math.Log(distuv.UnitNormal.CDF(x))
}

// millsRatio returns φ(x)/Φ(x).
func millsRatio(x float64) float64 {
	return distuv.UnitNormal.Prob(x) / distuv.UnitNormal.CDF(x)
}

func logSigmoid(x float64) float64 {
	if x >= 0 {
		return -math.Log1p(math.Exp(-x))
	}
	return x - math.Log1p(math.Exp(x))
}
