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

var _ ports.RatingModel = (*BiasRemovedModel)(nil)

// Consensus selects the per-video reference a subject's bias is measured
// against.
type Consensus string

// Supported consensus statistics.
const (
	// ConsensusMedian measures bias against the per-video median, so a single
	// offset subject does not drag the reference towards itself. It is the
	// default because a subject rating one point below two agreeing subjects
	// then gets a bias of exactly −1, where the mean would report −2/3.
	ConsensusMedian Consensus = "median"

	// ConsensusMean measures bias against the per-video mean opinion score.
	// With complete data the biases then sum to zero and the corrected
	// means equal the plain MOS.
	ConsensusMean Consensus = "mean"
)

// BiasRemovedModel implements the P.910 style bias-removed MOS. Each
// subject's bias is the mean deviation of their scores from the per-video
// consensus; the bias is subtracted from every raw score of that subject and
// the corrected scores are averaged per video as in MOS.
//
// A subject whose bias is exactly zero leaves MOS unchanged. The model is
// stateless and safe for concurrent use.
type BiasRemovedModel struct {
	config BiasRemovedConfig
}

// BiasRemovedConfig defines the configuration parameters for the
// BiasRemovedModel.
type BiasRemovedConfig struct {
	// Consensus is the per-video reference statistic: "median" or "mean".
	Consensus Consensus `yaml:"consensus" json:"consensus" koanf:"consensus" validate:"required,oneof=median mean"`

	// ConfidenceLevel is the two-sided level of the reported intervals.
	ConfidenceLevel float64 `yaml:"confidence_level" json:"confidence_level" koanf:"confidence_level" validate:"gt=0,lt=1"`
}

// DefaultBiasRemovedConfig returns a BiasRemovedConfig using the median
// consensus and a 95% interval.
func DefaultBiasRemovedConfig() BiasRemovedConfig {
	return BiasRemovedConfig{
		Consensus:       ConsensusMedian,
		ConfidenceLevel: DefaultConfidenceLevel,
	}
}

// NewBiasRemovedModel creates a BiasRemovedModel with the given configuration.
func NewBiasRemovedModel(config BiasRemovedConfig) (*BiasRemovedModel, error) {
	if err := validateConfig(domain.ModelP910, config); err != nil {
		return nil, err
	}
	return &BiasRemovedModel{config: config}, nil
}

// Kind returns domain.ModelP910.
func (m *BiasRemovedModel) Kind() domain.ModelKind { return domain.ModelP910 }

// Validate checks if the model is properly configured.
func (m *BiasRemovedModel) Validate() error { return validateConfig(domain.ModelP910, m.config) }

// Recover estimates subject biases in a single pass and returns the
// bias-corrected mean of every video.
func (m *BiasRemovedModel) Recover(ctx context.Context, om *domain.OpinionMatrix) (*domain.RecoveryResult, error) {
	start := time.Now()
	if err := checkOpinionMatrix(m.Kind(), om); err != nil {
		return nil, err
	}

	obs := om.Observations()
	groups := videoGroups(obs, om.NumVideos())

	consensus := make([]float64, om.NumVideos())
	for v, g := range groups {
		scores := make([]float64, len(g))
		for k, o := range g {
			scores[k] = o.Score
		}
		if m.config.Consensus == ConsensusMean {
			consensus[v] = solver.Mean(scores)
		} else {
			consensus[v] = solver.Median(scores)
		}
	}

	deviations := make([][]float64, om.NumSubjects())
	for _, o := range obs {
		deviations[o.Subject] = append(deviations[o.Subject], o.Score-consensus[o.Video])
	}

	subjects := make([]domain.SubjectEstimate, om.NumSubjects())
	bias := make([]float64, om.NumSubjects())
	for s := range subjects {
		est := domain.NewSubjectEstimate(om.Subject(s), len(deviations[s]))
		if len(deviations[s]) > 0 {
			mean, std := solver.MeanStd(deviations[s])
			bias[s] = mean
			est.Bias = mean
			est.BiasStdErr = std / sqrtInt(len(deviations[s]))
		}
		subjects[s] = est
	}

	videos := make([]domain.VideoEstimate, om.NumVideos())
	for v, g := range groups {
		corrected := make([]float64, len(g))
		for k, o := range g {
			corrected[k] = o.Score - bias[o.Subject]
		}
		videos[v] = sampleEstimate(om.Video(v), corrected, m.config.ConfidenceLevel)
	}

	zerolog.Ctx(ctx).Debug().
		Str("model", m.Kind().String()).
		Str("consensus", string(m.config.Consensus)).
		Int("subjects", len(subjects)).
		Msg("subject biases estimated")

	return &domain.RecoveryResult{
		Model:         m.Kind(),
		Videos:        videos,
		Subjects:      subjects,
		Converged:     true,
		Status:        domain.StatusConverged,
		Iterations:    1,
		LogLikelihood: math.NaN(),
		Elapsed:       time.Since(start),
	}, nil
}
