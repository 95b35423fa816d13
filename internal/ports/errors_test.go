package ports

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestMetricsError verifies message formatting and unwrapping of MetricsError.
func TestMetricsError(t *testing.T) {
	base := errors.New("registry closed")
	err := NewMetricsError("model_runs_total", "RecordCounter", base)

	assert.Equal(t, "metrics error: operation=RecordCounter, metric=model_runs_total, err=registry closed", err.Error())
	assert.True(t, errors.Is(err, base))
}

// TestConfigError verifies message formatting and unwrapping of ConfigError.
func TestConfigError(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		err     error
		wantMsg string
	}{
		{
			name:    "missing key",
			key:     "models.p913.tolerance",
			err:     ErrConfigNotFound,
			wantMsg: "config error: key=models.p913.tolerance, err=configuration not found",
		},
		{
			name:    "unsupported dataset",
			key:     "dataset",
			err:     ErrUnsupportedFormat,
			wantMsg: "config error: key=dataset, err=unsupported format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewConfigError(tt.key, tt.err)
			assert.Equal(t, tt.wantMsg, err.Error())
			assert.ErrorIs(t, err, tt.err)
		})
	}
}
