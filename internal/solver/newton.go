package solver

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrSingularInformation is returned when the gauge-fixed information matrix
// is not positive definite, which happens when the comparison graph is
// disconnected.
var ErrSingularInformation = errors.New("information matrix is singular")

// gaugeFixed returns info + 11ᵀ. For a Laplacian-shaped information whose
// only null direction is the constant vector this is positive definite, and
// its inverse equals the pseudo-inverse plus 11ᵀ/n².
func gaugeFixed(info mat.Symmetric) *mat.Cholesky {
	n := info.SymmetricDim()
	a := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			a.SetSym(i, j, info.At(i, j)+1)
		}
	}
	var chol mat.Cholesky
	if ok := chol.Factorize(a); !ok {
		return nil
	}
	return &chol
}

// NewtonStep solves (info + 11ᵀ)·δ = grad for the update δ of a
// location-invariant log-likelihood. Because grad sums to zero the step
// keeps Σθ unchanged. The step is scaled down so that max|δ_i| ≤ maxStep
// when maxStep is positive.
func NewtonStep(grad []float64, info mat.Symmetric, maxStep float64) ([]float64, error) {
	if len(grad) != info.SymmetricDim() {
		return nil, fmt.Errorf("gradient length %d does not match information dimension %d",
			len(grad), info.SymmetricDim())
	}
	chol := gaugeFixed(info)
	if chol == nil {
		return nil, ErrSingularInformation
	}
	b := mat.NewVecDense(len(grad), append([]float64(nil), grad...))
	var d mat.VecDense
	if err := chol.SolveVecTo(&d, b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSingularInformation, err)
	}

	step := make([]float64, len(grad))
	var largest float64
	for i := range step {
		step[i] = d.AtVec(i)
		largest = math.Max(largest, math.Abs(step[i]))
	}
	if maxStep > 0 && largest > maxStep {
		scale := maxStep / largest
		for i := range step {
			step[i] *= scale
		}
	}
	return step, nil
}

// ZeroSumVariances returns the diagonal of the inverse information under the
// constraint Σθ = 0, i.e. the sampling variances of location-free estimates.
func ZeroSumVariances(info mat.Symmetric) ([]float64, error) {
	n := info.SymmetricDim()
	chol := gaugeFixed(info)
	if chol == nil {
		return nil, ErrSingularInformation
	}
	var inv mat.SymDense
	if err := chol.InverseTo(&inv); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSingularInformation, err)
	}
	offset := 1 / float64(n*n)
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Max(inv.At(i, i)-offset, 0)
	}
	return out, nil
}

// Center subtracts the mean of xs from every element in place and returns
// the removed mean.
func Center(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var s float64
	for _, x := range xs {
		s += x
	}
	m := s / float64(len(xs))
	for i := range xs {
		xs[i] -= m
	}
	return m
}
