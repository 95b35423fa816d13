// Package models provides the subjective-score estimators that implement
// ports.RatingModel and ports.PairedModel.
package models

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/ahrav/go-sureal/internal/domain"
	"github.com/ahrav/go-sureal/internal/solver"
)

// Common errors returned by the models.
var (
	// ErrNilMatrix is returned when Recover receives a nil matrix.
	ErrNilMatrix = errors.New("matrix cannot be nil")
)

// Package-level validator instance for configuration validation.
// Uses go-playground/validator v10 for struct tag-based validation.
var validate = validator.New()

// DefaultConfidenceLevel is the two-sided level of reported intervals.
const DefaultConfidenceLevel = 0.95

// validateConfig runs struct tag validation and wraps failures as
// configuration errors of the given model.
func validateConfig(kind domain.ModelKind, config any) error {
	if err := validate.Struct(config); err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrInvalidConfiguration, kind, err)
	}
	return nil
}

// validateConvergence rejects iteration settings that cannot terminate.
func validateConvergence(kind domain.ModelKind, c solver.Convergence) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("%w: %s: %w", domain.ErrInvalidConfiguration, kind, err)
	}
	return nil
}

// videoGroups groups the flattened observations of a matrix by video,
// preserving subject and repetition order.
func videoGroups(obs []domain.Observation, numVideos int) [][]domain.Observation {
	groups := make([][]domain.Observation, numVideos)
	for _, o := range obs {
		groups[o.Video] = append(groups[o.Video], o)
	}
	return groups
}

// sampleEstimate summarises the scores of one video as a mean with a
// Student's t interval. An empty slice yields an insufficient estimate.
func sampleEstimate(video domain.Video, scores []float64, level float64) domain.VideoEstimate {
	if len(scores) == 0 {
		return insufficientEstimate(video, level)
	}
	mean, std := solver.MeanStd(scores)
	se := std / sqrtInt(len(scores))
	return domain.VideoEstimate{
		Video:   video,
		Quality: mean,
		StdErr:  se,
		CI:      solver.TInterval(mean, se, len(scores), level),
		Count:   len(scores),
	}
}

func insufficientEstimate(video domain.Video, level float64) domain.VideoEstimate {
	return domain.VideoEstimate{
		Video:        video,
		Quality:      nan,
		StdErr:       nan,
		CI:           domain.UndefinedInterval(level),
		Insufficient: true,
	}
}

// checkOpinionMatrix rejects nil matrices and matrices without a single
// observation.
func checkOpinionMatrix(kind domain.ModelKind, m *domain.OpinionMatrix) error {
	if m == nil {
		return domain.NewModelError(kind, "init", ErrNilMatrix)
	}
	if m.NumObservations() == 0 {
		return domain.NewModelError(kind, "init",
			fmt.Errorf("%w: no observations across %d videos", domain.ErrInsufficientData, m.NumVideos()))
	}
	return nil
}

// comparisonGraph rejects nil or empty pairwise matrices and disconnected
// comparison graphs. It returns the indices of the videos that took part in
// at least one comparison together with their win table.
func comparisonGraph(kind domain.ModelKind, pm *domain.PairwiseMatrix) ([]int, solver.Wins, error) {
	if pm == nil {
		return nil, nil, domain.NewModelError(kind, "init", ErrNilMatrix)
	}
	components := pm.Components()
	switch len(components) {
	case 0:
		return nil, nil, domain.NewModelError(kind, "init",
			fmt.Errorf("%w: no comparisons across %d videos", domain.ErrInsufficientData, pm.NumVideos()))
	case 1:
	default:
		return nil, nil, domain.NewModelError(kind, "init",
			fmt.Errorf("%w: %d components", domain.ErrDisconnectedComparisons, len(components)))
	}

	active := components[0]
	w := make(solver.Wins, len(active))
	for a, i := range active {
		w[a] = make([]float64, len(active))
		for b, j := range active {
			if a != b {
				w[a][b] = pm.Wins(i, j)
			}
		}
	}
	return active, w, nil
}

// warnSeparated logs when the win table has no finite maximum-likelihood
// estimate and reports whether that is the case.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func warnSeparated(logger zerolog.Logger, w solver.Wins) bool {
	if !solver.Separated(w) {
		return false
	}
	logger.Warn().Int("videos", len(w)).
		Msg("some videos won every comparison against the rest; merits are unbounded")
	return true
}

// unratedMerit is the estimate reported for a video without comparisons.
func unratedMerit(pm *domain.PairwiseMatrix, i int, level float64) domain.MeritEstimate {
	return domain.MeritEstimate{
		Video:       pm.Video(i),
		Merit:       nan,
		StdErr:      nan,
		CI:          domain.UndefinedInterval(level),
		Comparisons: pm.TotalComparisons(i),
	}
}

// subjectCounts returns the number of observations per subject.
func subjectCounts(obs []domain.Observation, numSubjects int) []int {
	counts := make([]int, numSubjects)
	for _, o := range obs {
		counts[o.Subject]++
	}
	return counts
}

var nan = math.NaN()

func sqrtInt(n int) float64 { return math.Sqrt(float64(n)) }
