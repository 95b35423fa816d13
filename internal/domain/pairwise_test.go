package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPairwise(t *testing.T, n int) *PairwiseMatrixBuilder {
	t.Helper()
	b := NewPairwiseMatrixBuilder()
	for i := range n {
		b.AddVideo(Video{AssetID: i})
	}
	return b
}

func TestPairwiseMatrixBuilder(t *testing.T) {
	b := newPairwise(t, 3)
	require.NoError(t, b.AddWins(0, 1, 3))
	require.NoError(t, b.AddWins(0, 1, 1))
	require.NoError(t, b.AddComparison(1, 2, 1))
	require.NoError(t, b.AddComparison(1, 2, 0.5))

	m, err := b.Build()
	require.NoError(t, err)

	assert.Equal(t, 3, m.NumVideos())
	assert.Equal(t, 4.0, m.Wins(0, 1))
	assert.Equal(t, 0.0, m.Wins(1, 0))
	assert.Equal(t, 1.5, m.Wins(1, 2))
	assert.Equal(t, 0.5, m.Wins(2, 1))
	assert.Equal(t, 4.0, m.Comparisons(0, 1))
	assert.Equal(t, 4.0, m.TotalWins(0))
	assert.Equal(t, 1.5, m.TotalWins(1))
	assert.Equal(t, 6.0, m.TotalComparisons(1))
	assert.Equal(t, [][]float64{{0, 4, 0}, {0, 0, 1.5}, {0, 0.5, 0}}, m.WinTable())
}

func TestPairwiseMatrixBuilder_Errors(t *testing.T) {
	b := newPairwise(t, 2)

	assert.ErrorIs(t, b.AddWins(0, 2, 1), ErrIndexOutOfRange)
	assert.ErrorIs(t, b.AddWins(0, 0, 1), ErrInvalidObservation)
	assert.ErrorIs(t, b.AddWins(0, 1, -1), ErrInvalidObservation)
	assert.ErrorIs(t, b.AddWins(0, 1, math.Inf(1)), ErrInvalidObservation)
	assert.ErrorIs(t, b.AddComparison(0, 1, 1.5), ErrInvalidObservation)
	assert.ErrorIs(t, b.AddComparison(0, 1, math.NaN()), ErrInvalidObservation)

	_, err := newPairwise(t, 1).Build()
	assert.ErrorIs(t, err, ErrEmptyMatrix)
}

func TestPairwiseMatrix_Components(t *testing.T) {
	tests := []struct {
		name string
		wins map[[2]int]float64
		want [][]int
	}{
		{
			name: "connected",
			wins: map[[2]int]float64{{0, 1}: 1, {2, 1}: 1, {3, 0}: 2},
			want: [][]int{{0, 1, 2, 3}},
		},
		{
			name: "two islands",
			wins: map[[2]int]float64{{0, 1}: 1, {3, 2}: 1},
			want: [][]int{{0, 1}, {2, 3}},
		},
		{
			name: "isolated video omitted",
			wins: map[[2]int]float64{{1, 3}: 1},
			want: [][]int{{1, 3}},
		},
		{
			name: "no comparisons",
			want: [][]int{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newPairwise(t, 4)
			for pair, n := range tt.wins {
				require.NoError(t, b.AddWins(pair[0], pair[1], n))
			}
			m, err := b.Build()
			require.NoError(t, err)
			assert.Equal(t, tt.want, m.Components())
		})
	}
}
