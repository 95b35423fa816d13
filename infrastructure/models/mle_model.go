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

var _ ports.RatingModel = (*MLEModel)(nil)

// MLEModel jointly estimates video quality, subject bias and subject
// inconsistency by maximum likelihood under the observation model
//
//	u_vs = q_v + b_s + σ_s·ε,  ε ~ N(0, 1)
//
// using alternating coordinate updates. Qualities are the inverse-variance
// weighted means of bias-corrected scores; biases are mean residuals and
// inconsistencies the residual dispersion around the bias, floored at
// VarianceFloor. Biases are recentred to zero mean after every sweep.
//
// The model is stateless and safe for concurrent use; all solver state lives
// in the Recover call.
type MLEModel struct {
	config MLEConfig
}

// MLEConfig defines the configuration parameters for the MLEModel.
type MLEConfig struct {
	// Convergence controls when the coordinate ascent stops.
	Convergence solver.Convergence `yaml:"convergence" json:"convergence" koanf:"convergence"`

	// VarianceFloor is the smallest inconsistency variance a subject can
	// take, keeping single-observation subjects from collapsing to zero.
	VarianceFloor float64 `yaml:"variance_floor" json:"variance_floor" koanf:"variance_floor" validate:"gt=0"`

	// ConfidenceLevel is the two-sided level of the reported intervals.
	ConfidenceLevel float64 `yaml:"confidence_level" json:"confidence_level" koanf:"confidence_level" validate:"gt=0,lt=1"`
}

// DefaultMLEConfig returns an MLEConfig with an absolute log-likelihood
// tolerance of 1e-8 and at most 1000 sweeps.
func DefaultMLEConfig() MLEConfig {
	return MLEConfig{
		Convergence: solver.Convergence{
			Tolerance:     1e-8,
			MaxIterations: 1000,
		},
		VarianceFloor:   1e-4,
		ConfidenceLevel: DefaultConfidenceLevel,
	}
}

// NewMLEModel creates an MLEModel with the given configuration.
func NewMLEModel(config MLEConfig) (*MLEModel, error) {
	m := &MLEModel{config: config}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Kind returns domain.ModelP913.
func (m *MLEModel) Kind() domain.ModelKind { return domain.ModelP913 }

// Validate checks if the model is properly configured.
func (m *MLEModel) Validate() error {
	if err := validateConfig(m.Kind(), m.config); err != nil {
		return err
	}
	return validateConvergence(m.Kind(), m.config.Convergence)
}

// mleState is the per-call parameter vector of the coordinate ascent.
type mleState struct {
	obs      []domain.Observation
	groups   [][]domain.Observation
	counts   []int
	quality  []float64
	bias     []float64
	variance []float64
}

// Recover runs the coordinate ascent to convergence or the iteration cap and
// returns the last estimate either way.
func (m *MLEModel) Recover(ctx context.Context, om *domain.OpinionMatrix) (*domain.RecoveryResult, error) {
	start := time.Now()
	if err := checkOpinionMatrix(m.Kind(), om); err != nil {
		return nil, err
	}
	logger := zerolog.Ctx(ctx).With().Str("model", m.Kind().String()).Logger()

	st := m.initialState(om)
	tracker := solver.NewTracker(m.config.Convergence).WithLogger(logger)
	err := solver.Iterate(tracker, func(int) (float64, error) {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		m.sweep(st)
		return st.logLikelihood(), nil
	})
	if err != nil {
		return nil, domain.NewModelError(m.Kind(), "iterate", err)
	}
	status := tracker.Finalize()

	result := &domain.RecoveryResult{
		Model:         m.Kind(),
		Videos:        m.videoEstimates(om, st),
		Subjects:      m.subjectEstimates(om, st),
		Converged:     tracker.Converged(),
		Status:        status,
		Iterations:    tracker.Iterations(),
		LogLikelihood: tracker.Objective(),
		Elapsed:       time.Since(start),
	}
	if !result.Converged {
		logger.Warn().Int("iterations", result.Iterations).Msg("coordinate ascent hit the iteration cap")
	}
	return result, nil
}

// initialState starts from MOS qualities, zero biases and the residual
// variance of each subject around MOS.
func (m *MLEModel) initialState(om *domain.OpinionMatrix) *mleState {
	obs := om.Observations()
	st := &mleState{
		obs:      obs,
		groups:   videoGroups(obs, om.NumVideos()),
		counts:   subjectCounts(obs, om.NumSubjects()),
		quality:  make([]float64, om.NumVideos()),
		bias:     make([]float64, om.NumSubjects()),
		variance: make([]float64, om.NumSubjects()),
	}
	for v, g := range st.groups {
		if len(g) == 0 {
			st.quality[v] = nan
			continue
		}
		var sum float64
		for _, o := range g {
			sum += o.Score
		}
		st.quality[v] = sum / float64(len(g))
	}
	for _, o := range obs {
		r := o.Score - st.quality[o.Video]
		st.variance[o.Subject] += r * r
	}
	for s := range st.variance {
		if st.counts[s] > 0 {
			st.variance[s] /= float64(st.counts[s])
		}
		st.variance[s] = math.Max(st.variance[s], m.config.VarianceFloor)
	}
	return st
}

// sweep performs one quality update followed by one subject update.
func (m *MLEModel) sweep(st *mleState) {
	for v, g := range st.groups {
		if len(g) == 0 {
			continue
		}
		var num, den float64
		for _, o := range g {
			w := 1 / st.variance[o.Subject]
			num += w * (o.Score - st.bias[o.Subject])
			den += w
		}
		st.quality[v] = num / den
	}

	sums := make([]float64, len(st.bias))
	for _, o := range st.obs {
		sums[o.Subject] += o.Score - st.quality[o.Video]
	}
	for s := range st.bias {
		if st.counts[s] > 0 {
			st.bias[s] = sums[s] / float64(st.counts[s])
		}
	}

	sq := make([]float64, len(st.variance))
	for _, o := range st.obs {
		d := o.Score - st.quality[o.Video] - st.bias[o.Subject]
		sq[o.Subject] += d * d
	}
	for s := range st.variance {
		if st.counts[s] > 0 {
			st.variance[s] = math.Max(sq[s]/float64(st.counts[s]), m.config.VarianceFloor)
		}
	}

	// The likelihood is unchanged by moving a constant from biases into
	// qualities; pin the mean bias of active subjects to zero.
	var shift float64
	var active int
	for s, b := range st.bias {
		if st.counts[s] > 0 {
			shift += b
			active++
		}
	}
	if active == 0 {
		return
	}
	shift /= float64(active)
	for s := range st.bias {
		if st.counts[s] > 0 {
			st.bias[s] -= shift
		}
	}
	for v, g := range st.groups {
		if len(g) > 0 {
			st.quality[v] += shift
		}
	}
}

func (st *mleState) logLikelihood() float64 {
	var ll float64
	for _, o := range st.obs {
		r := o.Score - st.quality[o.Video] - st.bias[o.Subject]
		ll += solver.GaussianLogLikelihood(r, math.Sqrt(st.variance[o.Subject]))
	}
	return ll
}

func (m *MLEModel) videoEstimates(om *domain.OpinionMatrix, st *mleState) []domain.VideoEstimate {
	level := m.config.ConfidenceLevel
	videos := make([]domain.VideoEstimate, om.NumVideos())
	for v, g := range st.groups {
		if len(g) == 0 {
			videos[v] = insufficientEstimate(om.Video(v), level)
			continue
		}
		// Fisher information of q_v is Σ 1/σ_s² over its observations.
		var info float64
		for _, o := range g {
			info += 1 / st.variance[o.Subject]
		}
		se := 1 / math.Sqrt(info)
		videos[v] = domain.VideoEstimate{
			Video:   om.Video(v),
			Quality: st.quality[v],
			StdErr:  se,
			CI:      solver.NormalInterval(st.quality[v], se, level),
			Count:   len(g),
		}
	}
	return videos
}

func (m *MLEModel) subjectEstimates(om *domain.OpinionMatrix, st *mleState) []domain.SubjectEstimate {
	subjects := make([]domain.SubjectEstimate, om.NumSubjects())
	for s := range subjects {
		est := domain.NewSubjectEstimate(om.Subject(s), st.counts[s])
		if n := st.counts[s]; n > 0 {
			sigma := math.Sqrt(st.variance[s])
			est.Bias = st.bias[s]
			est.BiasStdErr = sigma / sqrtInt(n)
			est.Inconsistency = sigma
			est.InconsistencyStdErr = sigma / sqrtInt(2*n)
		}
		subjects[s] = est
	}
	return subjects
}
