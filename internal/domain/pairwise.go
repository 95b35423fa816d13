package domain

import (
	"fmt"
	"math"
	"slices"
)

// PairwiseMatrix is an immutable table of aggregate preference counts.
// Wins(i, j) is the number of recorded comparisons in which video i was
// preferred over video j, summed across subjects. Counts may be fractional
// when a comparison records a tie.
type PairwiseMatrix struct {
	videos []Video
	wins   []float64
	n      int
}

// NumVideos returns the number of videos.
func (m *PairwiseMatrix) NumVideos() int { return m.n }

// Video returns the video at index i.
func (m *PairwiseMatrix) Video(i int) Video { return m.videos[i] }

// Videos returns a copy of all videos in index order.
func (m *PairwiseMatrix) Videos() []Video { return slices.Clone(m.videos) }

// Wins returns how often video i was preferred over video j.
func (m *PairwiseMatrix) Wins(i, j int) float64 { return m.wins[i*m.n+j] }

// Comparisons returns the number of comparisons between i and j in either
// direction.
func (m *PairwiseMatrix) Comparisons(i, j int) float64 {
	return m.wins[i*m.n+j] + m.wins[j*m.n+i]
}

// TotalWins returns how often video i was preferred over any opponent.
func (m *PairwiseMatrix) TotalWins(i int) float64 {
	var w float64
	for j := 0; j < m.n; j++ {
		w += m.wins[i*m.n+j]
	}
	return w
}

// TotalComparisons returns the number of comparisons video i took part in.
func (m *PairwiseMatrix) TotalComparisons(i int) float64 {
	var c float64
	for j := 0; j < m.n; j++ {
		if j != i {
			c += m.Comparisons(i, j)
		}
	}
	return c
}

// WinTable returns a fresh row-major copy of the win counts.
func (m *PairwiseMatrix) WinTable() [][]float64 {
	out := make([][]float64, m.n)
	for i := range out {
		out[i] = slices.Clone(m.wins[i*m.n : (i+1)*m.n])
	}
	return out
}

// Components partitions the videos that took part in at least one
// comparison into connected components of the comparison graph. Videos
// without comparisons are omitted. Components are ordered by their lowest
// video index.
func (m *PairwiseMatrix) Components() [][]int {
	parent := make([]int, m.n)
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(x int) int {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}
	for i := 0; i < m.n; i++ {
		for j := i + 1; j < m.n; j++ {
			if m.Comparisons(i, j) > 0 {
				ri, rj := find(i), find(j)
				if ri != rj {
					if ri < rj {
						parent[rj] = ri
					} else {
						parent[ri] = rj
					}
				}
			}
		}
	}

	groups := make(map[int][]int)
	var roots []int
	for i := 0; i < m.n; i++ {
		if m.TotalComparisons(i) == 0 {
			continue
		}
		r := find(i)
		if _, ok := groups[r]; !ok {
			roots = append(roots, r)
		}
		groups[r] = append(groups[r], i)
	}
	out := make([][]int, 0, len(roots))
	for _, r := range roots {
		out = append(out, groups[r])
	}
	return out
}

// PairwiseMatrixBuilder accumulates comparisons into a PairwiseMatrix.
// It is not safe for concurrent use.
type PairwiseMatrixBuilder struct {
	videos []Video
	wins   map[[2]int]float64
}

// NewPairwiseMatrixBuilder creates an empty builder.
func NewPairwiseMatrixBuilder() *PairwiseMatrixBuilder {
	return &PairwiseMatrixBuilder{wins: make(map[[2]int]float64)}
}

// AddVideo appends a video and returns its index.
func (b *PairwiseMatrixBuilder) AddVideo(v Video) int {
	b.videos = append(b.videos, v)
	return len(b.videos) - 1
}

// AddWins records count comparisons in which winner was preferred over loser.
func (b *PairwiseMatrixBuilder) AddWins(winner, loser int, count float64) error {
	if err := b.checkPair(winner, loser); err != nil {
		return err
	}
	if math.IsNaN(count) || math.IsInf(count, 0) || count < 0 {
		return fmt.Errorf("%w: win count %v", ErrInvalidObservation, count)
	}
	b.wins[[2]int{winner, loser}] += count
	return nil
}

// AddComparison records one comparison between i and j. Outcome is the
// share of the trial won by i: 1 for a win, 0 for a loss, 0.5 for a tie.
func (b *PairwiseMatrixBuilder) AddComparison(i, j int, outcome float64) error {
	if err := b.checkPair(i, j); err != nil {
		return err
	}
	if math.IsNaN(outcome) || outcome < 0 || outcome > 1 {
		return fmt.Errorf("%w: comparison outcome %v outside [0, 1]", ErrInvalidObservation, outcome)
	}
	b.wins[[2]int{i, j}] += outcome
	b.wins[[2]int{j, i}] += 1 - outcome
	return nil
}

func (b *PairwiseMatrixBuilder) checkPair(i, j int) error {
	if i < 0 || i >= len(b.videos) || j < 0 || j >= len(b.videos) {
		return fmt.Errorf("%w: pair (%d, %d) with %d videos", ErrIndexOutOfRange, i, j, len(b.videos))
	}
	if i == j {
		return fmt.Errorf("%w: video %d compared with itself", ErrInvalidObservation, i)
	}
	return nil
}

// Build freezes the accumulated comparisons into a PairwiseMatrix.
func (b *PairwiseMatrixBuilder) Build() (*PairwiseMatrix, error) {
	n := len(b.videos)
	if n < 2 {
		return nil, fmt.Errorf("%w: paired comparison needs at least 2 videos, got %d", ErrEmptyMatrix, n)
	}
	m := &PairwiseMatrix{
		videos: slices.Clone(b.videos),
		wins:   make([]float64, n*n),
		n:      n,
	}
	for pair, w := range b.wins {
		m.wins[pair[0]*n+pair[1]] = w
	}
	return m, nil
}
