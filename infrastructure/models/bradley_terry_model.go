package models

import (
	"context"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/ahrav/go-sureal/internal/domain"
	"github.com/ahrav/go-sureal/internal/ports"
	"github.com/ahrav/go-sureal/internal/solver"
)

var _ ports.PairedModel = (*BradleyTerryModel)(nil)

// BradleyTerryModel estimates Bradley-Terry strengths, where the odds of
// video i beating video j are s_i/s_j. Strengths follow the
// minorization-maximization fixed point
//
//	s_i ← W_i / Σ_j n_ij/(s_i + s_j)
//
// with W_i the total wins of i and n_ij the comparisons between i and j.
// After every sweep the strengths are normalised to a geometric mean of 1.
// A video that never wins is held at StrengthFloor so that log-strengths
// stay finite.
//
// The model is stateless and safe for concurrent use.
type BradleyTerryModel struct {
	config BradleyTerryConfig
}

// BradleyTerryConfig defines the configuration parameters for the
// BradleyTerryModel.
type BradleyTerryConfig struct {
	// Tolerance is the largest change of any log-strength in a sweep that
	// still counts as converged.
	Tolerance float64 `yaml:"tolerance" json:"tolerance" koanf:"tolerance" validate:"gt=0"`

	// MaxIterations caps the number of sweeps.
	MaxIterations int `yaml:"max_iterations" json:"max_iterations" koanf:"max_iterations" validate:"min=1,max=1000000"`

	// StrengthFloor is the smallest strength a video can hold before
	// normalisation.
	StrengthFloor float64 `yaml:"strength_floor" json:"strength_floor" koanf:"strength_floor" validate:"gt=0,lt=1"`

	// ConfidenceLevel is the two-sided level of the reported intervals.
	ConfidenceLevel float64 `yaml:"confidence_level" json:"confidence_level" koanf:"confidence_level" validate:"gt=0,lt=1"`
}

// DefaultBradleyTerryConfig returns a BradleyTerryConfig with a log-strength
// tolerance of 1e-9.
func DefaultBradleyTerryConfig() BradleyTerryConfig {
	return BradleyTerryConfig{
		Tolerance:       1e-9,
		MaxIterations:   10000,
		StrengthFloor:   1e-6,
		ConfidenceLevel: DefaultConfidenceLevel,
	}
}

// NewBradleyTerryModel creates a BradleyTerryModel with the given
// configuration.
func NewBradleyTerryModel(config BradleyTerryConfig) (*BradleyTerryModel, error) {
	if err := validateConfig(domain.ModelBradleyTerryMLE, config); err != nil {
		return nil, err
	}
	return &BradleyTerryModel{config: config}, nil
}

// Kind returns domain.ModelBradleyTerryMLE.
func (m *BradleyTerryModel) Kind() domain.ModelKind { return domain.ModelBradleyTerryMLE }

// Validate checks if the model is properly configured.
func (m *BradleyTerryModel) Validate() error {
	return validateConfig(domain.ModelBradleyTerryMLE, m.config)
}

// Recover runs the MM iteration and reports strengths normalised to a
// geometric mean of 1. Videos that took part in no comparison are reported
// with NaN merit.
func (m *BradleyTerryModel) Recover(ctx context.Context, pm *domain.PairwiseMatrix) (*domain.MeritResult, error) {
	start := time.Now()
	active, w, err := comparisonGraph(m.Kind(), pm)
	if err != nil {
		return nil, err
	}
	logger := zerolog.Ctx(ctx).With().Str("model", m.Kind().String()).Logger()
	separated := warnSeparated(logger, w)

	n := len(active)
	wins := make([]float64, n)
	for i := range w {
		for j := range w[i] {
			wins[i] += w[i][j]
		}
	}

	// The tracker objective accumulates the largest log-strength change of
	// each sweep, so its per-iteration delta is exactly that change.
	tracker := solver.NewTracker(solver.Convergence{
		Tolerance:     m.config.Tolerance,
		MaxIterations: m.config.MaxIterations,
	}).WithLogger(logger)

	theta := make([]float64, n)
	next := make([]float64, n)
	var travelled float64
	err = solver.Iterate(tracker, func(int) (float64, error) {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		m.sweep(w, wins, theta, next)
		var largest float64
		for i := range theta {
			largest = math.Max(largest, math.Abs(next[i]-theta[i]))
		}
		copy(theta, next)
		travelled += largest
		return travelled, nil
	})
	if err != nil {
		return nil, domain.NewModelError(m.Kind(), "iterate", err)
	}
	status := tracker.Finalize()

	variances, err := solver.ZeroSumVariances(solver.BradleyTerryInformation(w, theta))
	if err != nil {
		logger.Warn().Err(err).Msg("strength standard errors unavailable")
		variances = nil
	}

	level := m.config.ConfidenceLevel
	videos := make([]domain.MeritEstimate, pm.NumVideos())
	for i := range videos {
		videos[i] = unratedMerit(pm, i, level)
	}
	for a, i := range active {
		strength := math.Exp(theta[a])
		videos[i].Merit = strength
		if variances != nil {
			se := math.Sqrt(variances[a])
			videos[i].StdErr = strength * se
			videos[i].CI = solver.LogNormalInterval(theta[a], se, level)
		}
	}

	return &domain.MeritResult{
		Model:         m.Kind(),
		Videos:        videos,
		Converged:     tracker.Converged(),
		Status:        status,
		Iterations:    tracker.Iterations(),
		LogLikelihood: solver.BradleyTerryLogLikelihood(w, theta),
		Separated:     separated,
		Elapsed:       time.Since(start),
	}, nil
}

// sweep writes the normalised log-strengths after one simultaneous MM update
// of the log-strengths theta into next.
func (m *BradleyTerryModel) sweep(w solver.Wins, wins, theta, next []float64) {
	for i := range theta {
		si := math.Exp(theta[i])
		var den float64
		for j := range theta {
			nij := w[i][j] + w[j][i]
			if i == j || nij == 0 {
				continue
			}
			den += nij / (si + math.Exp(theta[j]))
		}
		next[i] = math.Log(math.Max(wins[i]/den, m.config.StrengthFloor))
	}
	solver.Center(next)
}
