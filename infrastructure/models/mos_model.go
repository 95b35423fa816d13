package models

import (
	"context"
	"math"
	"time"

	"github.com/ahrav/go-sureal/internal/domain"
	"github.com/ahrav/go-sureal/internal/ports"
)

var _ ports.RatingModel = (*MOSModel)(nil)

// MOSModel recovers quality as the plain mean opinion score: the arithmetic
// mean of every observation of a video, repetitions counted individually.
// The standard error is the sample deviation over sqrt(n).
//
// The model is stateless and safe for concurrent use.
type MOSModel struct {
	config MOSConfig
}

// MOSConfig defines the configuration parameters for the MOSModel.
type MOSConfig struct {
	// ConfidenceLevel is the two-sided level of the reported intervals.
	ConfidenceLevel float64 `yaml:"confidence_level" json:"confidence_level" koanf:"confidence_level" validate:"gt=0,lt=1"`
}

// DefaultMOSConfig returns a MOSConfig with a 95% interval.
func DefaultMOSConfig() MOSConfig {
	return MOSConfig{ConfidenceLevel: DefaultConfidenceLevel}
}

// NewMOSModel creates a MOSModel with the given configuration.
func NewMOSModel(config MOSConfig) (*MOSModel, error) {
	if err := validateConfig(domain.ModelMOS, config); err != nil {
		return nil, err
	}
	return &MOSModel{config: config}, nil
}

// Kind returns domain.ModelMOS.
func (m *MOSModel) Kind() domain.ModelKind { return domain.ModelMOS }

// Validate checks if the model is properly configured.
func (m *MOSModel) Validate() error { return validateConfig(domain.ModelMOS, m.config) }

// Recover computes the mean opinion score of every video.
func (m *MOSModel) Recover(ctx context.Context, om *domain.OpinionMatrix) (*domain.RecoveryResult, error) {
	start := time.Now()
	if err := checkOpinionMatrix(m.Kind(), om); err != nil {
		return nil, err
	}

	videos := make([]domain.VideoEstimate, om.NumVideos())
	for v := range videos {
		videos[v] = sampleEstimate(om.Video(v), om.VideoScores(v), m.config.ConfidenceLevel)
	}

	return &domain.RecoveryResult{
		Model:         m.Kind(),
		Videos:        videos,
		Converged:     true,
		Status:        domain.StatusConverged,
		Iterations:    1,
		LogLikelihood: math.NaN(),
		Elapsed:       time.Since(start),
	}, nil
}
