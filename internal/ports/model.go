// Package ports defines the core interfaces that form the contract between
// the domain/application layers and the infrastructure layer.
// These interfaces enable dependency inversion and make the system testable.
package ports

import (
	"context"

	"github.com/ahrav/go-sureal/internal/domain"
)

// Model is the behaviour shared by every estimator of the closed model
// enumeration.
type Model interface {
	// Kind returns the enumeration value this model implements.
	Kind() domain.ModelKind

	// Validate checks that the model is properly configured.
	// It is called by the registry before a model is handed out.
	Validate() error
}

// RatingModel recovers per-video quality from an opinion matrix.
// Implementations must not modify the matrix and must keep all solver state
// local to a single Recover call, so one instance may serve concurrent
// calls.
type RatingModel interface {
	Model

	// Recover estimates qualities and, depending on the model, subject
	// parameters. Videos without observations are flagged on the result
	// rather than failing the call; a matrix with no observation at all
	// returns domain.ErrInsufficientData.
	//
	// Example:
	//
	//	res, err := model.Recover(ctx, matrix)
	//	if err != nil {
	//	    return fmt.Errorf("model %s failed: %w", model.Kind(), err)
	//	}
	Recover(ctx context.Context, m *domain.OpinionMatrix) (*domain.RecoveryResult, error)
}

// PairedModel recovers per-video merit from a pairwise comparison matrix.
// The same purity and concurrency guarantees as RatingModel apply.
type PairedModel interface {
	Model

	// Recover estimates merits and their standard errors.
	Recover(ctx context.Context, m *domain.PairwiseMatrix) (*domain.MeritResult, error)
}
