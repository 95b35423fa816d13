package solver

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/ahrav/go-sureal/internal/domain"
)

// TInterval returns the Student's t confidence interval for a mean estimated
// from n observations with standard error se. The interval is undefined for
// n < 2 or a non-finite standard error.
func TInterval(mean, se float64, n int, level float64) domain.Interval {
	if n < 2 || !finite(se) || !finite(mean) {
		return domain.UndefinedInterval(level)
	}
	t := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(n - 1)}
	h := t.Quantile(0.5+level/2) * se
	return domain.Interval{Low: mean - h, High: mean + h, Level: level}
}

// NormalInterval returns the Wald interval est ± z·se.
func NormalInterval(est, se, level float64) domain.Interval {
	if !finite(se) || !finite(est) {
		return domain.UndefinedInterval(level)
	}
	h := ZScore(level) * se
	return domain.Interval{Low: est - h, High: est + h, Level: level}
}

// LogNormalInterval returns exp(θ ± z·se) for an estimate made on the log
// scale, as used for positive strengths.
func LogNormalInterval(logEst, se, level float64) domain.Interval {
	iv := NormalInterval(logEst, se, level)
	if math.IsNaN(iv.Low) {
		return iv
	}
	return domain.Interval{Low: math.Exp(iv.Low), High: math.Exp(iv.High), Level: level}
}

// ZScore returns the two-sided standard normal critical value for level.
func ZScore(level float64) float64 {
	return distuv.UnitNormal.Quantile(0.5 + level/2)
}

func finite(x float64) bool { return !math.IsNaN(x) && !math.IsInf(x, 0) }
