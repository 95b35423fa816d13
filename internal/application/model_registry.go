// Package application wires the recovery models into runnable batches: a
// registry that builds configured model instances and a runner that
// evaluates several models on one matrix in parallel.
package application

import (
	"fmt"
	"slices"
	"sync"

	"github.com/ahrav/go-sureal/infrastructure/models"
	"github.com/ahrav/go-sureal/internal/config"
	"github.com/ahrav/go-sureal/internal/domain"
	"github.com/ahrav/go-sureal/internal/ports"
)

// RatingFactory creates a configured rating model.
type RatingFactory func() (ports.RatingModel, error)

// PairedFactory creates a configured paired-comparison model.
type PairedFactory func() (ports.PairedModel, error)

// ModelRegistry maps every model kind to the factory that builds it.
// The built-in factories close over the per-model sections of a
// config.Config; RegisterRating and RegisterPaired replace them, e.g. with
// test doubles. It is safe for concurrent use.
type ModelRegistry struct {
	// mu protects concurrent access to the factory maps.
	mu     sync.RWMutex
	rating map[domain.ModelKind]RatingFactory
	paired map[domain.ModelKind]PairedFactory
}

// NewModelRegistry creates a registry with every supported model registered
// from cfg. A nil cfg uses config.Default.
func NewModelRegistry(cfg *config.Config) *ModelRegistry {
	if cfg == nil {
		cfg = config.Default()
	}
	r := &ModelRegistry{
		rating: make(map[domain.ModelKind]RatingFactory),
		paired: make(map[domain.ModelKind]PairedFactory),
	}
	r.registerBuiltinFactories(*cfg)
	return r
}

// registerBuiltinFactories captures a copy of the model sections so later
// edits to the caller's config do not leak into the registry.
func (r *ModelRegistry) registerBuiltinFactories(cfg config.Config) {
	r.rating[domain.ModelMOS] = func() (ports.RatingModel, error) {
		return models.NewMOSModel(cfg.MOS)
	}
	r.rating[domain.ModelP910] = func() (ports.RatingModel, error) {
		return models.NewBiasRemovedModel(cfg.P910)
	}
	r.rating[domain.ModelP913] = func() (ports.RatingModel, error) {
		return models.NewMLEModel(cfg.P913)
	}
	r.rating[domain.ModelBT500] = func() (ports.RatingModel, error) {
		return models.NewOutlierRejectionModel(cfg.BT500)
	}
	r.paired[domain.ModelThurstoneMLE] = func() (ports.PairedModel, error) {
		return models.NewThurstoneModel(cfg.Thurstone)
	}
	r.paired[domain.ModelBradleyTerryMLE] = func() (ports.PairedModel, error) {
		return models.NewBradleyTerryModel(cfg.BradleyTerry)
	}
}

// RegisterRating installs the factory used for a rating model kind.
func (r *ModelRegistry) RegisterRating(kind domain.ModelKind, factory RatingFactory) error {
	if err := checkRegistration(kind, domain.FamilyRating, factory == nil); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rating[kind] = factory
	return nil
}

// RegisterPaired installs the factory used for a paired-comparison model kind.
func (r *ModelRegistry) RegisterPaired(kind domain.ModelKind, factory PairedFactory) error {
	if err := checkRegistration(kind, domain.FamilyPaired, factory == nil); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paired[kind] = factory
	return nil
}

func checkRegistration(kind domain.ModelKind, family domain.ModelFamily, nilFactory bool) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrUnknownModel, kind)
	}
	if kind.Family() != family {
		return fmt.Errorf("%w: %s is a %s model", ports.ErrWrongFamily, kind, kind.Family())
	}
	if nilFactory {
		return fmt.Errorf("factory for %s cannot be nil", kind)
	}
	return nil
}

// Rating builds and validates the rating model registered for kind.
func (r *ModelRegistry) Rating(kind domain.ModelKind) (ports.RatingModel, error) {
	r.mu.RLock()
	factory, ok := r.rating[kind]
	r.mu.RUnlock()
	if !ok {
		return nil, lookupError(kind)
	}
	m, err := factory()
	if err != nil {
		return nil, fmt.Errorf("failed to create model %s: %w", kind, err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("model %s failed validation: %w", kind, err)
	}
	return m, nil
}

// Paired builds and validates the paired-comparison model registered for kind.
func (r *ModelRegistry) Paired(kind domain.ModelKind) (ports.PairedModel, error) {
	r.mu.RLock()
	factory, ok := r.paired[kind]
	r.mu.RUnlock()
	if !ok {
		return nil, lookupError(kind)
	}
	m, err := factory()
	if err != nil {
		return nil, fmt.Errorf("failed to create model %s: %w", kind, err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("model %s failed validation: %w", kind, err)
	}
	return m, nil
}

func lookupError(kind domain.ModelKind) error {
	if kind.Valid() {
		return fmt.Errorf("%w: %s is a %s model", ports.ErrWrongFamily, kind, kind.Family())
	}
	return fmt.Errorf("%w: %q", domain.ErrUnknownModel, kind)
}

// Supported returns every registered model kind, rating models first, each
// family in canonical order.
func (r *ModelRegistry) Supported() []domain.ModelKind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.ModelKind, 0, len(r.rating)+len(r.paired))
	for _, k := range slices.Concat(domain.RatingModels, domain.PairedModels) {
		_, isRating := r.rating[k]
		_, isPaired := r.paired[k]
		if isRating || isPaired {
			out = append(out, k)
		}
	}
	return out
}
