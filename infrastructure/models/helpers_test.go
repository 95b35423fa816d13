package models

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-sureal/internal/dataset"
	"github.com/ahrav/go-sureal/internal/domain"
	"github.com/ahrav/go-sureal/internal/testutils"
)

// ratingMatrix builds a matrix with one row per video and one column per
// subject "s0", "s1", ...; NaN marks a missing cell.
func ratingMatrix(t *testing.T, scores [][]float64) *domain.OpinionMatrix {
	t.Helper()
	b := domain.NewOpinionMatrixBuilder()
	for s := range scores[0] {
		b.AddSubject(fmt.Sprintf("s%d", s))
	}
	for v, row := range scores {
		b.AddVideo(domain.Video{ContentID: 0, AssetID: v, Name: fmt.Sprintf("v%d", v)})
		for s, x := range row {
			if math.IsNaN(x) {
				continue
			}
			require.NoError(t, b.Add(v, fmt.Sprintf("s%d", s), x))
		}
	}
	om, err := b.Build()
	require.NoError(t, err)
	return om
}

// pairwiseMatrix builds an n-video matrix from winner/loser counts.
func pairwiseMatrix(t *testing.T, n int, wins map[[2]int]float64) *domain.PairwiseMatrix {
	t.Helper()
	b := domain.NewPairwiseMatrixBuilder()
	for i := range n {
		b.AddVideo(domain.Video{AssetID: i, Name: fmt.Sprintf("v%d", i)})
	}
	for pair, count := range wins {
		require.NoError(t, b.AddWins(pair[0], pair[1], count))
	}
	pm, err := b.Build()
	require.NoError(t, err)
	return pm
}

func syntheticRatings(t *testing.T, cfg testutils.RatingConfig) (*domain.OpinionMatrix, *testutils.RatingTruth) {
	t.Helper()
	d, truth, err := testutils.GenerateRatingDataset(cfg)
	require.NoError(t, err)
	om, err := dataset.BuildOpinionMatrix(d)
	require.NoError(t, err)
	return om, truth
}

func syntheticComparisons(t *testing.T, cfg testutils.PairedConfig) (*domain.PairwiseMatrix, []float64) {
	t.Helper()
	d, merits, err := testutils.GeneratePairedDataset(cfg)
	require.NoError(t, err)
	pm, err := dataset.BuildPairwiseMatrix(d)
	require.NoError(t, err)
	return pm, merits
}

// sameBits reports whether two floats have identical representations, so
// NaN compares equal to NaN.
func sameBits(a, b float64) bool { return math.Float64bits(a) == math.Float64bits(b) }

// assertIdenticalRecovery checks two results for bit-identical estimates.
func assertIdenticalRecovery(t *testing.T, a, b *domain.RecoveryResult) {
	t.Helper()
	require.Len(t, b.Videos, len(a.Videos))
	require.Len(t, b.Subjects, len(a.Subjects))
	assert.Equal(t, a.Iterations, b.Iterations)
	assert.Equal(t, a.Converged, b.Converged)
	assert.True(t, sameBits(a.LogLikelihood, b.LogLikelihood))
	for i := range a.Videos {
		va, vb := a.Videos[i], b.Videos[i]
		assert.True(t, sameBits(va.Quality, vb.Quality), "video %d quality", i)
		assert.True(t, sameBits(va.StdErr, vb.StdErr), "video %d stderr", i)
		assert.True(t, sameBits(va.CI.Low, vb.CI.Low), "video %d ci", i)
	}
	for i := range a.Subjects {
		sa, sb := a.Subjects[i], b.Subjects[i]
		assert.True(t, sameBits(sa.Bias, sb.Bias), "subject %d bias", i)
		assert.True(t, sameBits(sa.Inconsistency, sb.Inconsistency), "subject %d inconsistency", i)
		assert.Equal(t, sa.Rejected, sb.Rejected, "subject %d rejected", i)
	}
}

// correlation is the Pearson correlation of two equally long slices.
func correlation(xs, ys []float64) float64 {
	var mx, my float64
	for i := range xs {
		mx += xs[i]
		my += ys[i]
	}
	mx /= float64(len(xs))
	my /= float64(len(ys))
	var sxy, sxx, syy float64
	for i := range xs {
		dx, dy := xs[i]-mx, ys[i]-my
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}
	return sxy / math.Sqrt(sxx*syy)
}
