package domain

import (
	"math"
	"time"
)

// Status is the lifecycle state of a recovery run.
//
//	INIT -> ITERATE -> {CONVERGED | MAX_ITER_REACHED} -> FINALIZED
//
// Results handed to callers have been finalized; their Status records which
// of CONVERGED or MAX_ITER_REACHED preceded finalization.
type Status string

// Recovery run states.
const (
	StatusInit          Status = "INIT"
	StatusIterate       Status = "ITERATE"
	StatusConverged     Status = "CONVERGED"
	StatusMaxIterations Status = "MAX_ITER_REACHED"
	StatusFinalized     Status = "FINALIZED"
)

// Interval is a two-sided confidence interval.
type Interval struct {
	Low   float64 `json:"low"`
	High  float64 `json:"high"`
	Level float64 `json:"level"`
}

// HalfWidth returns half the interval width.
func (iv Interval) HalfWidth() float64 { return (iv.High - iv.Low) / 2 }

// Contains reports whether x lies within the interval.
func (iv Interval) Contains(x float64) bool { return x >= iv.Low && x <= iv.High }

// UndefinedInterval returns an interval whose bounds are NaN.
func UndefinedInterval(level float64) Interval {
	return Interval{Low: math.NaN(), High: math.NaN(), Level: level}
}

// VideoEstimate is the recovered quality of one video.
type VideoEstimate struct {
	// Video identifies the stimulus.
	Video Video

	// Quality is the point estimate. It is NaN when Insufficient is set.
	Quality float64

	// StdErr is the standard error of Quality. It is NaN when it cannot be
	// computed, e.g. for a single observation under a sample-variance model.
	StdErr float64

	// CI is the confidence interval around Quality.
	CI Interval

	// Count is the number of observations that contributed to Quality.
	Count int

	// Insufficient flags a video without any usable observation.
	Insufficient bool
}

// SubjectEstimate holds the per-subject nuisance parameters a model
// estimates. Fields a model does not estimate are NaN.
type SubjectEstimate struct {
	// Subject is the subject identifier.
	Subject string

	// Bias is the additive offset of the subject from the consensus.
	Bias float64

	// BiasStdErr is the standard error of Bias.
	BiasStdErr float64

	// Inconsistency is the standard deviation of the subject's noise.
	Inconsistency float64

	// InconsistencyStdErr is the standard error of Inconsistency.
	InconsistencyStdErr float64

	// Rejected marks a subject excluded from the final estimate.
	Rejected bool

	// RatingCount is the number of observations given by the subject.
	RatingCount int

	// OutlierCount is the number of the subject's observations flagged as
	// outliers in the final rejection pass.
	OutlierCount int
}

// NewSubjectEstimate returns an estimate with every model-dependent field
// set to NaN.
func NewSubjectEstimate(subject string, ratings int) SubjectEstimate {
	return SubjectEstimate{
		Subject:             subject,
		Bias:                math.NaN(),
		BiasStdErr:          math.NaN(),
		Inconsistency:       math.NaN(),
		InconsistencyStdErr: math.NaN(),
		RatingCount:         ratings,
	}
}

// RecoveryResult is the immutable output of a rating recovery model.
type RecoveryResult struct {
	// Model is the model that produced the result.
	Model ModelKind

	// Videos holds one estimate per video in matrix order.
	Videos []VideoEstimate

	// Subjects holds one estimate per subject in matrix order. It is nil for
	// models without subject parameters.
	Subjects []SubjectEstimate

	// Converged is false when an iterative model exhausted its iteration
	// budget before meeting its tolerance.
	Converged bool

	// Status is the terminal solver state before finalization.
	Status Status

	// Iterations is the number of solver iterations performed.
	Iterations int

	// LogLikelihood is the final log-likelihood for likelihood-based models
	// and NaN otherwise.
	LogLikelihood float64

	// Elapsed is the wall time spent in the model.
	Elapsed time.Duration
}

// InsufficientVideos returns the indices of videos flagged Insufficient.
func (r *RecoveryResult) InsufficientVideos() []int {
	var out []int
	for i, v := range r.Videos {
		if v.Insufficient {
			out = append(out, i)
		}
	}
	return out
}

// RejectedSubjects returns the identifiers of rejected subjects.
func (r *RecoveryResult) RejectedSubjects() []string {
	var out []string
	for _, s := range r.Subjects {
		if s.Rejected {
			out = append(out, s.Subject)
		}
	}
	return out
}

// Qualities returns the point estimates in video order.
func (r *RecoveryResult) Qualities() []float64 {
	out := make([]float64, len(r.Videos))
	for i, v := range r.Videos {
		out[i] = v.Quality
	}
	return out
}

// MeritEstimate is the recovered merit of one video in a paired-comparison
// experiment.
type MeritEstimate struct {
	// Video identifies the stimulus.
	Video Video

	// Merit is the latent scale value (Thurstone) or strength (Bradley-Terry).
	// It is NaN for a video that took part in no comparison.
	Merit float64

	// StdErr is the standard error of Merit.
	StdErr float64

	// CI is the confidence interval around Merit.
	CI Interval

	// Comparisons is the number of comparisons the video took part in.
	Comparisons float64
}

// MeritResult is the immutable output of a paired-comparison model.
type MeritResult struct {
	// Model is the model that produced the result.
	Model ModelKind

	// Videos holds one estimate per video in matrix order.
	Videos []MeritEstimate

	// Converged is false when the solver exhausted its iteration budget.
	Converged bool

	// Status is the terminal solver state before finalization.
	Status Status

	// Iterations is the number of solver iterations performed.
	Iterations int

	// LogLikelihood is the log-likelihood at the final estimate.
	LogLikelihood float64

	// Separated is set when some videos won every comparison against the
	// others. The likelihood then has no finite maximum; Merit holds the
	// point the solver stopped at and Converged only says the likelihood
	// stopped improving.
	Separated bool

	// Elapsed is the wall time spent in the model.
	Elapsed time.Duration
}

// Merits returns the merits in video order.
func (r *MeritResult) Merits() []float64 {
	out := make([]float64, len(r.Videos))
	for i, v := range r.Videos {
		out[i] = v.Merit
	}
	return out
}
