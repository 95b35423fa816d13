package application

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-sureal/internal/domain"
	"github.com/ahrav/go-sureal/internal/ports"
)

// stubRating is a rating model double with a scripted outcome.
type stubRating struct {
	kind        domain.ModelKind
	err         error
	validateErr error
	delay       time.Duration
	block       bool

	active  *atomic.Int32
	maxSeen *atomic.Int32
}

func (s *stubRating) Kind() domain.ModelKind { return s.kind }

func (s *stubRating) Validate() error { return s.validateErr }

func (s *stubRating) Recover(ctx context.Context, om *domain.OpinionMatrix) (*domain.RecoveryResult, error) {
	if s.active != nil {
		n := s.active.Add(1)
		defer s.active.Add(-1)
		for {
			seen := s.maxSeen.Load()
			if n <= seen || s.maxSeen.CompareAndSwap(seen, n) {
				break
			}
		}
	}
	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.err != nil {
		return nil, s.err
	}
	return &domain.RecoveryResult{
		Model:     s.kind,
		Videos:    make([]domain.VideoEstimate, om.NumVideos()),
		Converged: true,
		Status:    domain.StatusConverged,
	}, nil
}

var _ ports.RatingModel = (*stubRating)(nil)

func stubFactory(s *stubRating) RatingFactory {
	return func() (ports.RatingModel, error) { return s, nil }
}

// testOpinionMatrix is three videos rated by three subjects, where s1 scores
// one point below the others.
func testOpinionMatrix(t *testing.T) *domain.OpinionMatrix {
	t.Helper()
	scores := [][]float64{{5, 4, 5}, {3, 2, 3}, {4, 3, 4}}
	b := domain.NewOpinionMatrixBuilder()
	for s := range 3 {
		b.AddSubject(fmt.Sprintf("s%d", s))
	}
	for v, row := range scores {
		b.AddVideo(domain.Video{AssetID: v, Name: fmt.Sprintf("v%d", v)})
		for s, x := range row {
			require.NoError(t, b.Add(v, fmt.Sprintf("s%d", s), x))
		}
	}
	om, err := b.Build()
	require.NoError(t, err)
	return om
}

// testPairwiseMatrix is a connected three-video tournament ordered v0 > v1 > v2.
func testPairwiseMatrix(t *testing.T) *domain.PairwiseMatrix {
	t.Helper()
	b := domain.NewPairwiseMatrixBuilder()
	for i := range 3 {
		b.AddVideo(domain.Video{AssetID: i, Name: fmt.Sprintf("v%d", i)})
	}
	for pair, n := range map[[2]int]float64{
		{0, 1}: 7, {1, 0}: 3,
		{0, 2}: 8, {2, 0}: 2,
		{1, 2}: 6, {2, 1}: 4,
	} {
		require.NoError(t, b.AddWins(pair[0], pair[1], n))
	}
	pm, err := b.Build()
	require.NoError(t, err)
	return pm
}
