package models

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/ahrav/go-sureal/internal/domain"
	"github.com/ahrav/go-sureal/internal/ports"
	"github.com/ahrav/go-sureal/internal/solver"
)

var _ ports.PairedModel = (*ThurstoneModel)(nil)

// errStalled ends an iteration early when no further step can be taken.
// The run is then reported as not converged.
var errStalled = errors.New("solver stalled")

// maxBacktracks bounds the step halvings of one Newton iteration.
const maxBacktracks = 30

// roundoff is the log-likelihood decrease still attributed to rounding.
func roundoff(ll float64) float64 { return 1e-12 * math.Max(1, math.Abs(ll)) }

// ThurstoneModel estimates Thurstone Case V merits by maximum likelihood.
// The probability that video i is preferred over video j is
// Φ((m_i − m_j)/√2). Merits are found with damped Newton iterations on the
// log-likelihood; the additive indeterminacy is removed by solving the
// gauge-fixed system and recentring the merits to zero mean.
//
// The model is stateless and safe for concurrent use.
type ThurstoneModel struct {
	config ThurstoneConfig
}

// ThurstoneConfig defines the configuration parameters for the
// ThurstoneModel.
type ThurstoneConfig struct {
	// Convergence controls when the Newton iteration stops.
	Convergence solver.Convergence `yaml:"convergence" json:"convergence" koanf:"convergence"`

	// MaxStep caps the largest single-merit change of one Newton step.
	MaxStep float64 `yaml:"max_step" json:"max_step" koanf:"max_step" validate:"gt=0"`

	// ConfidenceLevel is the two-sided level of the reported intervals.
	ConfidenceLevel float64 `yaml:"confidence_level" json:"confidence_level" koanf:"confidence_level" validate:"gt=0,lt=1"`
}

// DefaultThurstoneConfig returns a ThurstoneConfig with an absolute
// log-likelihood tolerance of 1e-9.
func DefaultThurstoneConfig() ThurstoneConfig {
	return ThurstoneConfig{
		Convergence: solver.Convergence{
			Tolerance:     1e-9,
			MaxIterations: 200,
		},
		MaxStep:         2,
		ConfidenceLevel: DefaultConfidenceLevel,
	}
}

// NewThurstoneModel creates a ThurstoneModel with the given configuration.
func NewThurstoneModel(config ThurstoneConfig) (*ThurstoneModel, error) {
	m := &ThurstoneModel{config: config}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Kind returns domain.ModelThurstoneMLE.
func (m *ThurstoneModel) Kind() domain.ModelKind { return domain.ModelThurstoneMLE }

// Validate checks if the model is properly configured.
func (m *ThurstoneModel) Validate() error {
	if err := validateConfig(m.Kind(), m.config); err != nil {
		return err
	}
	return validateConvergence(m.Kind(), m.config.Convergence)
}

// Recover estimates zero-mean merits of the compared videos. Videos that
// took part in no comparison are reported with NaN merit.
func (m *ThurstoneModel) Recover(ctx context.Context, pm *domain.PairwiseMatrix) (*domain.MeritResult, error) {
	start := time.Now()
	active, w, err := comparisonGraph(m.Kind(), pm)
	if err != nil {
		return nil, err
	}
	logger := zerolog.Ctx(ctx).With().Str("model", m.Kind().String()).Logger()
	separated := warnSeparated(logger, w)

	merits := make([]float64, len(active))
	ll := solver.ThurstoneLogLikelihood(w, merits)
	tracker := solver.NewTracker(m.config.Convergence).WithLogger(logger)
	err = solver.Iterate(tracker, func(int) (float64, error) {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		next, nextLL, err := m.newtonUpdate(w, merits, ll)
		if err != nil {
			return 0, err
		}
		merits, ll = next, nextLL
		return ll, nil
	})
	switch {
	case errors.Is(err, errStalled), errors.Is(err, solver.ErrSingularInformation):
		logger.Warn().Err(err).Int("iteration", tracker.Iterations()).Msg("newton iteration stopped early")
	case err != nil:
		return nil, domain.NewModelError(m.Kind(), "iterate", err)
	}
	status := tracker.Finalize()

	variances, err := solver.ZeroSumVariances(solver.ThurstoneInformation(w, merits))
	if err != nil {
		logger.Warn().Err(err).Msg("merit standard errors unavailable")
		variances = nil
	}

	level := m.config.ConfidenceLevel
	videos := make([]domain.MeritEstimate, pm.NumVideos())
	for i := range videos {
		videos[i] = unratedMerit(pm, i, level)
	}
	for a, i := range active {
		se := nan
		if variances != nil {
			se = math.Sqrt(variances[a])
		}
		videos[i].Merit = merits[a]
		videos[i].StdErr = se
		videos[i].CI = solver.NormalInterval(merits[a], se, level)
	}

	return &domain.MeritResult{
		Model:         m.Kind(),
		Videos:        videos,
		Converged:     tracker.Converged(),
		Status:        status,
		Iterations:    tracker.Iterations(),
		LogLikelihood: ll,
		Separated:     separated,
		Elapsed:       time.Since(start),
	}, nil
}

// newtonUpdate takes one gauge-fixed Newton step from merits, halving it
// until the log-likelihood does not decrease, and recentres the result.
func (m *ThurstoneModel) newtonUpdate(w solver.Wins, merits []float64, ll float64) ([]float64, float64, error) {
	grad := solver.ThurstoneGradient(w, merits)
	step, err := solver.NewtonStep(grad, solver.ThurstoneInformation(w, merits), m.config.MaxStep)
	if err != nil {
		return nil, 0, err
	}

	next := make([]float64, len(merits))
	for range maxBacktracks {
		for i := range next {
			next[i] = merits[i] + step[i]
		}
		solver.Center(next)
		if nextLL := solver.ThurstoneLogLikelihood(w, next); nextLL >= ll-roundoff(ll) {
			return next, nextLL, nil
		}
		for i := range step {
			step[i] /= 2
		}
	}
	return nil, 0, errStalled
}
