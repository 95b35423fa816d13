package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-sureal/internal/dataset"
	"github.com/ahrav/go-sureal/internal/domain"
	"github.com/ahrav/go-sureal/internal/testutils"
)

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeRatingDataset(t *testing.T) string {
	t.Helper()
	d, _, err := testutils.GenerateRatingDataset(testutils.DefaultRatingConfig())
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "ratings.json")
	require.NoError(t, dataset.Save(d, path))
	return path
}

func writePairedDataset(t *testing.T) string {
	t.Helper()
	d, _, err := testutils.GeneratePairedDataset(testutils.DefaultPairedConfig())
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "paired.yaml")
	require.NoError(t, dataset.Save(d, path))
	return path
}

func TestRateCommand(t *testing.T) {
	path := writeRatingDataset(t)
	out := t.TempDir()
	metrics := filepath.Join(t.TempDir(), "sureal.prom")

	stdout, _, err := runCLI(t, "rate", "--dataset", path, "--models", "mos,p913,bt500",
		"--output", out, "--metrics-file", metrics)
	require.NoError(t, err)

	assert.Contains(t, stdout, "Quality")
	assert.Contains(t, stdout, "Subjects (P913)")
	for _, m := range []string{"MOS", "P913", "BT500"} {
		assert.Contains(t, stdout, m)
	}
	assert.NotContains(t, stdout, "P910")

	data, err := os.ReadFile(filepath.Join(out, "synthetic_acr_rate.json"))
	require.NoError(t, err)
	var rep report
	require.NoError(t, json.Unmarshal(data, &rep))
	assert.Equal(t, "rate", rep.Command)
	assert.NotEmpty(t, rep.RunID)
	require.Len(t, rep.Models, 3)
	assert.Equal(t, "MOS", rep.Models[0].Model)
	assert.Len(t, rep.Models[0].Videos, 20)
	assert.Nil(t, rep.Models[0].LogLikelihood)
	assert.NotNil(t, rep.Models[1].LogLikelihood)
	assert.NotEmpty(t, rep.Models[1].Subjects)

	prom, err := os.ReadFile(metrics)
	require.NoError(t, err)
	assert.Contains(t, string(prom), `sureal_model_runs_total{model="P913"`)
}

func TestRateCommand_DMOSAndJSON(t *testing.T) {
	path := writeRatingDataset(t)

	stdout, _, err := runCLI(t, "rate", "--dataset", path, "--models", "MOS", "--dmos", "--json")
	require.NoError(t, err)

	var rep report
	require.NoError(t, json.Unmarshal([]byte(stdout), &rep))
	assert.True(t, rep.Differential)
	require.Len(t, rep.Models, 1)
	// References are rated at ref_score after differencing.
	var refs int
	for _, v := range rep.Models[0].Videos {
		if !strings.Contains(v.Video, "_q") {
			refs++
			require.NotNil(t, v.Estimate, v.Video)
			assert.InDelta(t, 5, *v.Estimate, 1e-9)
		}
	}
	assert.Equal(t, 4, refs)
}

func TestPairedCommand(t *testing.T) {
	path := writePairedDataset(t)

	stdout, _, err := runCLI(t, "pc", "--dataset", path)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Merit")
	assert.Contains(t, stdout, string(domain.ModelThurstoneMLE))
	assert.Contains(t, stdout, string(domain.ModelBradleyTerryMLE))
}

func TestRecoverCommands_Errors(t *testing.T) {
	ratings := writeRatingDataset(t)
	paired := writePairedDataset(t)

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{name: "missing dataset flag", args: []string{"rate"}, wantErr: "dataset"},
		{name: "paired dataset to rate", args: []string{"rate", "--dataset", paired}, wantErr: "use the pc command"},
		{name: "rating dataset to pc", args: []string{"pc", "--dataset", ratings}, wantErr: "use the rate command"},
		{name: "unknown model", args: []string{"rate", "--dataset", ratings, "--models", "p9133"}, wantErr: "did you mean P913?"},
		{name: "wrong family", args: []string{"pc", "--dataset", paired, "--models", "mos"}, wantErr: "MOS is a rating model"},
		{name: "python dataset", args: []string{"validate", "--dataset", "dataset.py"}, wantErr: "unsupported format"},
		{name: "missing config", args: []string{"--config", "missing.yaml", "models"}, wantErr: "missing.yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := runCLI(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateCommand(t *testing.T) {
	stdout, _, err := runCLI(t, "validate", "--dataset", writeRatingDataset(t))
	require.NoError(t, err)
	assert.Contains(t, stdout, "dataset is valid")
	assert.Contains(t, stdout, "Observations")

	stdout, _, err = runCLI(t, "validate", "--dataset", writePairedDataset(t))
	require.NoError(t, err)
	assert.Contains(t, stdout, "Components")
}

func TestModelsCommand(t *testing.T) {
	stdout, _, err := runCLI(t, "models")
	require.NoError(t, err)
	for _, k := range append(append([]domain.ModelKind{}, domain.RatingModels...), domain.PairedModels...) {
		assert.Contains(t, stdout, k.String())
	}
}

func TestReportStem(t *testing.T) {
	assert.Equal(t, "my_data_v2", reportStem("my data/v2"))
	assert.Equal(t, "dataset", reportStem("  "))
}
