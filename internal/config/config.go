// Package config loads the recovery settings by layering defaults, an
// optional YAML file and SUREAL_ environment variables with koanf.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ahrav/go-sureal/infrastructure/models"
	"github.com/ahrav/go-sureal/internal/domain"
	"github.com/ahrav/go-sureal/internal/logging"
)

// Config is the complete configuration of a recovery run.
type Config struct {
	// Models lists the models to run. Names are matched case-insensitively.
	// An empty list selects every model of the dataset's family.
	Models []string `yaml:"models" json:"models" koanf:"models" validate:"dive,required"`

	Runner  RunnerConfig   `yaml:"runner" json:"runner" koanf:"runner"`
	Logging logging.Config `yaml:"logging" json:"logging" koanf:"logging"`
	Metrics MetricsConfig  `yaml:"metrics" json:"metrics" koanf:"metrics"`

	MOS          models.MOSConfig          `yaml:"mos" json:"mos" koanf:"mos"`
	P910         models.BiasRemovedConfig  `yaml:"p910" json:"p910" koanf:"p910"`
	P913         models.MLEConfig          `yaml:"p913" json:"p913" koanf:"p913"`
	BT500        models.OutlierConfig      `yaml:"bt500" json:"bt500" koanf:"bt500"`
	Thurstone    models.ThurstoneConfig    `yaml:"thurstone" json:"thurstone" koanf:"thurstone"`
	BradleyTerry models.BradleyTerryConfig `yaml:"bradley_terry" json:"bradley_terry" koanf:"bradley_terry"`
}

// RunnerConfig bounds the parallel evaluation of models.
type RunnerConfig struct {
	// Concurrency caps the number of models recovering at once.
	Concurrency int `yaml:"concurrency" json:"concurrency" koanf:"concurrency" validate:"min=1,max=64"`

	// Timeout bounds a whole run; zero disables it.
	Timeout time.Duration `yaml:"timeout" json:"timeout" koanf:"timeout" validate:"min=0"`
}

// MetricsConfig controls Prometheus collection.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled" koanf:"enabled"`

	// Namespace prefixes every metric name.
	Namespace string `yaml:"namespace" json:"namespace" koanf:"namespace" validate:"omitempty,alphanum"`

	// TextfilePath, when set, receives the metrics in the node exporter
	// textfile format after a run.
	TextfilePath string `yaml:"textfile_path" json:"textfile_path" koanf:"textfile_path"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Runner: RunnerConfig{
			Concurrency: 4,
		},
		Logging: logging.DefaultConfig(),
		Metrics: MetricsConfig{
			Namespace: "sureal",
		},
		MOS:          models.DefaultMOSConfig(),
		P910:         models.DefaultBiasRemovedConfig(),
		P913:         models.DefaultMLEConfig(),
		BT500:        models.DefaultOutlierConfig(),
		Thurstone:    models.DefaultThurstoneConfig(),
		BradleyTerry: models.DefaultBradleyTerryConfig(),
	}
}

var validate = validator.New()

// Validate checks every section and reports all failures at once.
func (c *Config) Validate() error {
	verr := domain.NewValidationError("config")
	if err := validate.Struct(c); err != nil {
		if fields, ok := err.(validator.ValidationErrors); ok {
			for _, f := range fields {
				verr.AddErrorf("%s: failed %q", f.Namespace(), f.Tag())
			}
		} else {
			verr.AddError(err.Error())
		}
	}
	for _, err := range []error{
		c.P913.Convergence.Validate(),
		c.Thurstone.Convergence.Validate(),
	} {
		if err != nil {
			verr.AddError(err.Error())
		}
	}
	if err := verr.ErrOrNil(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidConfiguration, err)
	}
	return nil
}

// ModelNames returns the configured model names with blanks removed.
func (c *Config) ModelNames() []string {
	out := make([]string, 0, len(c.Models))
	for _, m := range c.Models {
		if m = strings.TrimSpace(m); m != "" {
			out = append(out, m)
		}
	}
	return out
}
