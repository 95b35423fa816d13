package solver

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/ahrav/go-sureal/internal/domain"
)

// ErrInvalidConvergence is returned for a convergence rule that can never
// terminate or never converge.
var ErrInvalidConvergence = errors.New("invalid convergence settings")

// Convergence configures when an iterative solver stops.
type Convergence struct {
	// Tolerance is the largest objective change still counted as converged.
	Tolerance float64 `yaml:"tolerance" json:"tolerance" koanf:"tolerance" validate:"gt=0"`

	// Relative compares the change against the magnitude of the previous
	// objective instead of using it directly.
	Relative bool `yaml:"relative" json:"relative" koanf:"relative"`

	// MaxIterations caps the number of iterations.
	MaxIterations int `yaml:"max_iterations" json:"max_iterations" koanf:"max_iterations" validate:"min=1,max=100000"`
}

// Validate reports settings that cannot drive a bounded run.
func (c Convergence) Validate() error {
	if !(c.Tolerance > 0) || math.IsInf(c.Tolerance, 0) {
		return fmt.Errorf("%w: tolerance %v", ErrInvalidConvergence, c.Tolerance)
	}
	if c.MaxIterations < 1 {
		return fmt.Errorf("%w: max iterations %d", ErrInvalidConvergence, c.MaxIterations)
	}
	return nil
}

// Met reports whether moving from prev to cur satisfies the tolerance.
func (c Convergence) Met(prev, cur float64) bool {
	if math.IsNaN(prev) || math.IsNaN(cur) {
		return false
	}
	delta := math.Abs(cur - prev)
	if c.Relative && prev != 0 {
		return delta <= c.Tolerance*math.Abs(prev)
	}
	return delta <= c.Tolerance
}

// Tracker drives the INIT → ITERATE → {CONVERGED | MAX_ITER_REACHED} →
// FINALIZED state machine of one solver run. A Tracker belongs to exactly
// one Recover call and is not safe for concurrent use.
type Tracker struct {
	cfg      Convergence
	status   domain.Status
	terminal domain.Status
	iter     int
	last     float64
	hasLast  bool

	log       *zerolog.Logger
	sometimes rate.Sometimes
}

// NewTracker returns a tracker in the INIT state.
func NewTracker(cfg Convergence) *Tracker {
	return &Tracker{
		cfg:       cfg,
		status:    domain.StatusInit,
		last:      math.NaN(),
		sometimes: rate.Sometimes{First: 1, Interval: 500 * time.Millisecond},
	}
}

// WithLogger makes the tracker emit throttled debug logs of its progress.
func (t *Tracker) WithLogger(l zerolog.Logger) *Tracker {
	t.log = &l
	return t
}

// Observe records the objective reached by one more iteration and reports
// whether the run has reached a terminal state.
func (t *Tracker) Observe(objective float64) bool {
	if t.Done() {
		return true
	}
	t.status = domain.StatusIterate
	t.iter++

	converged := t.hasLast && t.cfg.Met(t.last, objective)
	t.last, t.hasLast = objective, true

	if t.log != nil {
		t.sometimes.Do(func() {
			t.log.Debug().Int("iteration", t.iter).Float64("objective", objective).Msg("solver progress")
		})
	}

	switch {
	case converged:
		t.status = domain.StatusConverged
	case t.iter >= t.cfg.MaxIterations:
		t.status = domain.StatusMaxIterations
	}
	return t.Done()
}

// Done reports whether the run reached CONVERGED, MAX_ITER_REACHED or
// FINALIZED.
func (t *Tracker) Done() bool {
	switch t.status {
	case domain.StatusConverged, domain.StatusMaxIterations, domain.StatusFinalized:
		return true
	}
	return false
}

// Finalize moves the tracker to FINALIZED and returns the terminal state
// that preceded it. Finalizing a run that never iterated reports
// MAX_ITER_REACHED.
func (t *Tracker) Finalize() domain.Status {
	if t.status != domain.StatusFinalized {
		t.terminal = t.status
		if t.terminal != domain.StatusConverged {
			t.terminal = domain.StatusMaxIterations
		}
		t.status = domain.StatusFinalized
		if t.log != nil {
			t.log.Debug().Int("iterations", t.iter).Str("status", string(t.terminal)).Msg("solver finished")
		}
	}
	return t.terminal
}

// Status returns the current state.
func (t *Tracker) Status() domain.Status { return t.status }

// Iterations returns the number of observed iterations.
func (t *Tracker) Iterations() int { return t.iter }

// Objective returns the most recent objective value.
func (t *Tracker) Objective() float64 { return t.last }

// Converged reports whether the run met its tolerance.
func (t *Tracker) Converged() bool {
	if t.status == domain.StatusFinalized {
		return t.terminal == domain.StatusConverged
	}
	return t.status == domain.StatusConverged
}

// Step performs one solver iteration and returns the objective it reached.
type Step func(iteration int) (float64, error)

// Iterate runs step until the tracker reaches a terminal state, then
// finalizes it. A step error aborts the loop and is returned unchanged.
func Iterate(t *Tracker, step Step) error {
	for !t.Done() {
		obj, err := step(t.Iterations() + 1)
		if err != nil {
			t.Finalize()
			return err
		}
		t.Observe(obj)
	}
	t.Finalize()
	return nil
}
