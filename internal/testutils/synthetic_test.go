package testutils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-sureal/internal/dataset"
)

func TestGenerateRatingDataset(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RatingConfig)
	}{
		{name: "keyed with missing cells", mutate: func(*RatingConfig) {}},
		{name: "positional", mutate: func(c *RatingConfig) { c.Positional = true }},
		{name: "repetitions", mutate: func(c *RatingConfig) { c.Repetitions = 3; c.Round = false }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultRatingConfig()
			tt.mutate(&cfg)

			d, truth, err := GenerateRatingDataset(cfg)
			require.NoError(t, err)
			require.NoError(t, dataset.Validate(d))

			assert.Len(t, d.RefVideos, cfg.Contents)
			assert.Len(t, d.DisVideos, cfg.Contents*cfg.AssetsPerContent)
			assert.Len(t, truth.Quality, len(d.DisVideos))
			assert.Len(t, truth.Bias, cfg.Subjects)

			om, err := dataset.BuildOpinionMatrix(d)
			require.NoError(t, err)
			for _, o := range om.Observations() {
				assert.GreaterOrEqual(t, o.Score, cfg.ScaleMin)
				assert.LessOrEqual(t, o.Score, cfg.ScaleMax)
			}
			assert.True(t, om.Video(0).Reference)
		})
	}
}

func TestGenerateRatingDataset_Deterministic(t *testing.T) {
	cfg := DefaultRatingConfig()
	a, ta, err := GenerateRatingDataset(cfg)
	require.NoError(t, err)
	b, tb, err := GenerateRatingDataset(cfg)
	require.NoError(t, err)

	assert.Equal(t, ta, tb)
	ma, err := dataset.BuildOpinionMatrix(a)
	require.NoError(t, err)
	mb, err := dataset.BuildOpinionMatrix(b)
	require.NoError(t, err)
	assert.Equal(t, ma.Observations(), mb.Observations())
}

func TestGenerateRatingDataset_InvalidConfig(t *testing.T) {
	cfg := DefaultRatingConfig()
	cfg.Subjects = 0
	_, _, err := GenerateRatingDataset(cfg)
	assert.Error(t, err)

	cfg = DefaultRatingConfig()
	cfg.ScaleMax = cfg.ScaleMin
	_, _, err = GenerateRatingDataset(cfg)
	assert.Error(t, err)
}

func TestGeneratePairedDataset(t *testing.T) {
	cfg := DefaultPairedConfig()
	d, merits, err := GeneratePairedDataset(cfg)
	require.NoError(t, err)
	require.NoError(t, dataset.Validate(d))
	assert.Equal(t, dataset.KindPaired, d.Kind())

	var sum float64
	for _, m := range merits {
		sum += m
	}
	assert.InDelta(t, 0, sum, 1e-9)

	pm, err := dataset.BuildPairwiseMatrix(d)
	require.NoError(t, err)
	perPair := float64(cfg.Subjects * cfg.TrialsPerPair)
	for i := range cfg.Videos {
		assert.InDelta(t, perPair*float64(cfg.Videos-1), pm.TotalComparisons(i), 1e-9)
	}

	_, _, err = GeneratePairedDataset(PairedConfig{Videos: 1, Subjects: 1, TrialsPerPair: 1})
	assert.Error(t, err)
}
