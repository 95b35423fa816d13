package models

import (
	"context"
	"math"
	"slices"
	"time"

	"github.com/rs/zerolog"

	"github.com/ahrav/go-sureal/internal/domain"
	"github.com/ahrav/go-sureal/internal/ports"
	"github.com/ahrav/go-sureal/internal/solver"
)

var _ ports.RatingModel = (*OutlierRejectionModel)(nil)

// Kurtosis bounds inside which a video's score distribution is treated as
// normal by the BT.500 screening procedure.
const (
	normalKurtosisLow  = 2.0
	normalKurtosisHigh = 4.0
)

// OutlierRejectionModel implements the ITU-R BT.500 subject screening
// procedure. For every video a rating counts as high (P) or low (Q) when it
// lies more than 2σ from the video mean, or √20·σ when the scores are not
// normally distributed according to their β2 kurtosis. A subject is rejected
// when their outlier share exceeds RejectRatio. A positive SymmetryRatio
// adds the BT.500 symmetry test, so only subjects whose outliers also
// satisfy |P−Q|/(P+Q) < SymmetryRatio are rejected. MOS is then recomputed
// over the accepted subjects and the screening repeated on them until the
// rejected set no longer changes.
//
// The model never rejects every subject. It is stateless and safe for
// concurrent use.
type OutlierRejectionModel struct {
	config OutlierConfig
}

// OutlierConfig defines the configuration parameters for the
// OutlierRejectionModel.
type OutlierConfig struct {
	// RejectRatio is the share of a subject's ratings that must be outliers
	// before the subject can be rejected.
	RejectRatio float64 `yaml:"reject_ratio" json:"reject_ratio" koanf:"reject_ratio" validate:"gt=0,lt=1"`

	// SymmetryRatio bounds |P−Q|/(P+Q) for a rejected subject. Zero
	// disables the symmetry test.
	SymmetryRatio float64 `yaml:"symmetry_ratio" json:"symmetry_ratio" koanf:"symmetry_ratio" validate:"gte=0,lte=1"`

	// MaxIterations caps the screen-and-recompute cycles.
	MaxIterations int `yaml:"max_iterations" json:"max_iterations" koanf:"max_iterations" validate:"min=1,max=10000"`

	// ConfidenceLevel is the two-sided level of the reported intervals.
	ConfidenceLevel float64 `yaml:"confidence_level" json:"confidence_level" koanf:"confidence_level" validate:"gt=0,lt=1"`
}

// DefaultOutlierConfig rejects on outlier share alone with the BT.500
// constant 0.05. Set SymmetryRatio to 0.3 for the full BT.500 procedure.
func DefaultOutlierConfig() OutlierConfig {
	return OutlierConfig{
		RejectRatio:     0.05,
		MaxIterations:   100,
		ConfidenceLevel: DefaultConfidenceLevel,
	}
}

// NewOutlierRejectionModel creates an OutlierRejectionModel with the given
// configuration.
func NewOutlierRejectionModel(config OutlierConfig) (*OutlierRejectionModel, error) {
	if err := validateConfig(domain.ModelBT500, config); err != nil {
		return nil, err
	}
	return &OutlierRejectionModel{config: config}, nil
}

// Kind returns domain.ModelBT500.
func (m *OutlierRejectionModel) Kind() domain.ModelKind { return domain.ModelBT500 }

// Validate checks if the model is properly configured.
func (m *OutlierRejectionModel) Validate() error { return validateConfig(domain.ModelBT500, m.config) }

// Recover alternates screening and MOS recomputation until no further
// subject is rejected or MaxIterations passes have run. Rejection is final,
// so the rejected set only grows.
func (m *OutlierRejectionModel) Recover(ctx context.Context, om *domain.OpinionMatrix) (*domain.RecoveryResult, error) {
	start := time.Now()
	if err := checkOpinionMatrix(m.Kind(), om); err != nil {
		return nil, err
	}
	logger := zerolog.Ctx(ctx).With().Str("model", m.Kind().String()).Logger()

	obs := om.Observations()
	groups := videoGroups(obs, om.NumVideos())
	counts := subjectCounts(obs, om.NumSubjects())

	// The objective is the running number of rejections, so the tolerance
	// below only accepts a pass that rejected nobody new.
	tracker := solver.NewTracker(solver.Convergence{
		Tolerance:     0.5,
		MaxIterations: m.config.MaxIterations,
	}).WithLogger(logger)

	rejected := make([]bool, om.NumSubjects())
	outliers := make([]int, om.NumSubjects())
	var total float64
	err := solver.Iterate(tracker, func(int) (float64, error) {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		flagged, pass := m.screen(groups, counts, rejected)
		for s := range rejected {
			if rejected[s] {
				continue
			}
			outliers[s] = pass[s]
			if flagged[s] {
				rejected[s] = true
				total++
			}
		}
		return total, nil
	})
	if err != nil {
		return nil, domain.NewModelError(m.Kind(), "iterate", err)
	}
	status := tracker.Finalize()

	videos := make([]domain.VideoEstimate, om.NumVideos())
	for v, g := range groups {
		videos[v] = sampleEstimate(om.Video(v), acceptedScores(g, rejected), m.config.ConfidenceLevel)
	}
	subjects := make([]domain.SubjectEstimate, om.NumSubjects())
	for s := range subjects {
		est := domain.NewSubjectEstimate(om.Subject(s), counts[s])
		est.Rejected = rejected[s]
		est.OutlierCount = outliers[s]
		subjects[s] = est
	}

	result := &domain.RecoveryResult{
		Model:         m.Kind(),
		Videos:        videos,
		Subjects:      subjects,
		Converged:     tracker.Converged(),
		Status:        status,
		Iterations:    tracker.Iterations(),
		LogLikelihood: math.NaN(),
		Elapsed:       time.Since(start),
	}
	logger.Debug().
		Strs("rejected", result.RejectedSubjects()).
		Bool("converged", result.Converged).
		Msg("subject screening finished")
	return result, nil
}

// screen runs one BT.500 pass over the subjects not yet rejected, using
// video statistics computed from those subjects only. It returns the
// subjects to reject and every subject's outlier count in this pass.
func (m *OutlierRejectionModel) screen(groups [][]domain.Observation, counts []int, rejected []bool) ([]bool, []int) {
	p := make([]int, len(counts))
	q := make([]int, len(counts))
	for _, g := range groups {
		scores := acceptedScores(g, rejected)
		if len(scores) < 2 {
			continue
		}
		mean, std := solver.MeanStd(scores)
		threshold := math.Sqrt(20) * std
		if b2 := solver.Kurtosis(scores); b2 >= normalKurtosisLow && b2 <= normalKurtosisHigh {
			threshold = 2 * std
		}
		for _, o := range g {
			switch {
			case o.Score > mean+threshold:
				p[o.Subject]++
			case o.Score < mean-threshold:
				q[o.Subject]++
			}
		}
	}

	flagged := make([]bool, len(counts))
	outliers := make([]int, len(counts))
	var remaining, candidates []int
	for s, n := range counts {
		outliers[s] = p[s] + q[s]
		if n == 0 || rejected[s] {
			continue
		}
		remaining = append(remaining, s)
		pq := float64(p[s] + q[s])
		if pq == 0 {
			continue
		}
		if pq/float64(n) > m.config.RejectRatio && m.symmetric(p[s], q[s]) {
			flagged[s] = true
			candidates = append(candidates, s)
		}
	}

	if len(remaining) > 0 && len(candidates) == len(remaining) {
		flagged[keepSubject(candidates, counts, outliers)] = false
	}
	return flagged, outliers
}

// symmetric reports whether p high and q low outliers pass the symmetry
// test, which always holds when SymmetryRatio is zero.
func (m *OutlierRejectionModel) symmetric(p, q int) bool {
	if m.config.SymmetryRatio == 0 {
		return true
	}
	return math.Abs(float64(p-q))/float64(p+q) < m.config.SymmetryRatio
}

// keepSubject picks, among candidates, the subject with the lowest outlier
// share, breaking ties by subject index.
func keepSubject(candidates, counts, outliers []int) int {
	order := slices.Clone(candidates)
	share := func(s int) float64 { return float64(outliers[s]) / float64(counts[s]) }
	slices.SortStableFunc(order, func(a, b int) int {
		switch sa, sb := share(a), share(b); {
		case sa < sb:
			return -1
		case sa > sb:
			return 1
		}
		return a - b
	})
	return order[0]
}

func acceptedScores(g []domain.Observation, rejected []bool) []float64 {
	scores := make([]float64, 0, len(g))
	for _, o := range g {
		if !rejected[o.Subject] {
			scores = append(scores, o.Score)
		}
	}
	return scores
}
