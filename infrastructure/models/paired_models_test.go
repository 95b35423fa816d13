package models

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-sureal/internal/domain"
	"github.com/ahrav/go-sureal/internal/ports"
	"github.com/ahrav/go-sureal/internal/testutils"
)

func newPairedModels(t *testing.T) []ports.PairedModel {
	t.Helper()
	thurstone, err := NewThurstoneModel(DefaultThurstoneConfig())
	require.NoError(t, err)
	bt, err := NewBradleyTerryModel(DefaultBradleyTerryConfig())
	require.NoError(t, err)
	return []ports.PairedModel{thurstone, bt}
}

// roundRobin is a connected four-video tournament where lower indices win
// more often.
var roundRobin = map[[2]int]float64{
	{0, 1}: 7, {1, 0}: 3,
	{0, 2}: 8, {2, 0}: 2,
	{0, 3}: 9, {3, 0}: 1,
	{1, 2}: 6, {2, 1}: 4,
	{1, 3}: 7, {3, 1}: 3,
	{2, 3}: 6, {3, 2}: 4,
}

func TestPairedModels_CommonContract(t *testing.T) {
	ctx := context.Background()

	for _, m := range newPairedModels(t) {
		t.Run(m.Kind().String(), func(t *testing.T) {
			assert.NoError(t, m.Validate())
			assert.Equal(t, domain.FamilyPaired, m.Kind().Family())

			t.Run("nil matrix", func(t *testing.T) {
				_, err := m.Recover(ctx, nil)
				assert.ErrorIs(t, err, ErrNilMatrix)
			})

			t.Run("no comparisons", func(t *testing.T) {
				_, err := m.Recover(ctx, pairwiseMatrix(t, 3, nil))
				assert.ErrorIs(t, err, domain.ErrInsufficientData)
			})

			t.Run("disconnected graph", func(t *testing.T) {
				pm := pairwiseMatrix(t, 4, map[[2]int]float64{
					{0, 1}: 3, {1, 0}: 1,
					{2, 3}: 2, {3, 2}: 2,
				})
				_, err := m.Recover(ctx, pm)
				assert.ErrorIs(t, err, domain.ErrDisconnectedComparisons)
				var me *domain.ModelError
				require.ErrorAs(t, err, &me)
				assert.Equal(t, "init", me.Operation)
			})

			t.Run("isolated video", func(t *testing.T) {
				pm := pairwiseMatrix(t, 3, map[[2]int]float64{{0, 1}: 3, {1, 0}: 1})
				res, err := m.Recover(ctx, pm)
				require.NoError(t, err)
				require.Len(t, res.Videos, 3)
				assert.True(t, math.IsNaN(res.Videos[2].Merit))
				assert.True(t, math.IsNaN(res.Videos[2].StdErr))
				assert.Zero(t, res.Videos[2].Comparisons)
				assert.Greater(t, res.Videos[0].Merit, res.Videos[1].Merit)
				assert.Equal(t, 4.0, res.Videos[0].Comparisons)
			})

			t.Run("orders by preference", func(t *testing.T) {
				res, err := m.Recover(ctx, pairwiseMatrix(t, 4, roundRobin))
				require.NoError(t, err)
				assert.True(t, res.Converged)
				assert.Equal(t, domain.StatusConverged, res.Status)
				merits := res.Merits()
				for i := 1; i < len(merits); i++ {
					assert.Greater(t, merits[i-1], merits[i])
				}
				for _, v := range res.Videos {
					assert.Greater(t, v.StdErr, 0.0)
					assert.True(t, v.CI.Contains(v.Merit))
				}
				assert.Less(t, res.LogLikelihood, 0.0)
				assert.False(t, res.Separated)
			})

			t.Run("unanimous preference", func(t *testing.T) {
				res, err := m.Recover(ctx, pairwiseMatrix(t, 2, map[[2]int]float64{{0, 1}: 10}))
				require.NoError(t, err)
				assert.True(t, res.Separated)
				assert.Greater(t, res.Videos[0].Merit, res.Videos[1].Merit)
				for _, v := range res.Videos {
					assert.False(t, math.IsNaN(v.Merit))
					assert.False(t, math.IsInf(v.Merit, 0))
				}
			})

			t.Run("invariant to scaling counts", func(t *testing.T) {
				scaled := make(map[[2]int]float64, len(roundRobin))
				for k, v := range roundRobin {
					scaled[k] = 3 * v
				}
				a, err := m.Recover(ctx, pairwiseMatrix(t, 4, roundRobin))
				require.NoError(t, err)
				b, err := m.Recover(ctx, pairwiseMatrix(t, 4, scaled))
				require.NoError(t, err)
				assert.InDeltaSlice(t, a.Merits(), b.Merits(), 1e-5)
				// Tripling the data shrinks standard errors by √3.
				for i := range a.Videos {
					assert.InDelta(t, a.Videos[i].StdErr/math.Sqrt(3), b.Videos[i].StdErr, 1e-4)
				}
			})

			t.Run("deterministic", func(t *testing.T) {
				pm, _ := syntheticComparisons(t, testutils.DefaultPairedConfig())
				a, err := m.Recover(ctx, pm)
				require.NoError(t, err)
				b, err := m.Recover(ctx, pm)
				require.NoError(t, err)
				require.Len(t, b.Videos, len(a.Videos))
				assert.Equal(t, a.Iterations, b.Iterations)
				for i := range a.Videos {
					assert.True(t, sameBits(a.Videos[i].Merit, b.Videos[i].Merit), "video %d", i)
					assert.True(t, sameBits(a.Videos[i].StdErr, b.Videos[i].StdErr), "video %d", i)
				}
			})

			t.Run("cancelled", func(t *testing.T) {
				cctx, cancel := context.WithCancel(ctx)
				cancel()
				_, err := m.Recover(cctx, pairwiseMatrix(t, 4, roundRobin))
				assert.ErrorIs(t, err, context.Canceled)
			})
		})
	}
}

func TestPairedModels_IterationCap(t *testing.T) {
	thurstoneCfg := DefaultThurstoneConfig()
	thurstoneCfg.Convergence.MaxIterations = 1
	thurstone, err := NewThurstoneModel(thurstoneCfg)
	require.NoError(t, err)

	btCfg := DefaultBradleyTerryConfig()
	btCfg.MaxIterations = 1
	bt, err := NewBradleyTerryModel(btCfg)
	require.NoError(t, err)

	tests := []struct {
		name  string
		model ports.PairedModel
	}{
		{name: "thurstone", model: thurstone},
		{name: "bradley terry", model: bt},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := tt.model.Recover(context.Background(), pairwiseMatrix(t, 4, roundRobin))
			require.NoError(t, err)

			assert.False(t, res.Converged)
			assert.Equal(t, domain.StatusMaxIterations, res.Status)
			assert.Equal(t, 1, res.Iterations)
			for _, v := range res.Videos {
				assert.False(t, math.IsNaN(v.Merit))
				assert.False(t, math.IsInf(v.Merit, 0))
				assert.False(t, math.IsNaN(v.StdErr))
			}
			assert.Greater(t, res.Videos[0].Merit, res.Videos[3].Merit)
		})
	}
}

func TestPairedModels_Separation(t *testing.T) {
	tests := []struct {
		name      string
		videos    int
		wins      map[[2]int]float64
		separated bool
	}{
		{name: "round robin", videos: 4, wins: roundRobin, separated: false},
		{
			name:      "one-way cycle",
			videos:    3,
			wins:      map[[2]int]float64{{0, 1}: 2, {1, 2}: 2, {2, 0}: 2},
			separated: false,
		},
		{
			name:   "champion never loses",
			videos: 3,
			wins: map[[2]int]float64{
				{0, 1}: 3, {0, 2}: 3,
				{1, 2}: 2, {2, 1}: 2,
			},
			separated: true,
		},
		{
			name:   "two groups",
			videos: 4,
			wins: map[[2]int]float64{
				{0, 1}: 2, {1, 0}: 1,
				{2, 3}: 2, {3, 2}: 1,
				{1, 2}: 4,
			},
			separated: true,
		},
	}

	for _, m := range newPairedModels(t) {
		for _, tt := range tests {
			t.Run(m.Kind().String()+"/"+tt.name, func(t *testing.T) {
				res, err := m.Recover(context.Background(), pairwiseMatrix(t, tt.videos, tt.wins))
				require.NoError(t, err)
				assert.Equal(t, tt.separated, res.Separated)
			})
		}
	}
}

func TestThurstoneModel_NineToOne(t *testing.T) {
	m, err := NewThurstoneModel(DefaultThurstoneConfig())
	require.NoError(t, err)

	res, err := m.Recover(context.Background(), pairwiseMatrix(t, 2, map[[2]int]float64{{0, 1}: 9, {1, 0}: 1}))
	require.NoError(t, err)

	// Φ((m0 − m1)/√2) = 0.9 gives a merit gap of √2·1.28155.
	gap := math.Sqrt2 * 1.2815515655446004
	assert.InDelta(t, gap/2, res.Videos[0].Merit, 1e-4)
	assert.InDelta(t, -gap/2, res.Videos[1].Merit, 1e-4)
	assert.True(t, res.Converged)
}

func TestThurstoneModel_RecoversSyntheticMerits(t *testing.T) {
	m, err := NewThurstoneModel(DefaultThurstoneConfig())
	require.NoError(t, err)

	cfg := testutils.DefaultPairedConfig()
	cfg.Subjects = 20
	cfg.TrialsPerPair = 3
	pm, truth := syntheticComparisons(t, cfg)

	res, err := m.Recover(context.Background(), pm)
	require.NoError(t, err)
	assert.True(t, res.Converged)

	var sum float64
	for _, v := range res.Videos {
		sum += v.Merit
	}
	assert.InDelta(t, 0, sum, 1e-9)
	assert.Greater(t, correlation(res.Merits(), truth), 0.9)
}

func TestThurstoneModel_InvalidConfig(t *testing.T) {
	cfg := DefaultThurstoneConfig()
	cfg.MaxStep = 0
	_, err := NewThurstoneModel(cfg)
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)

	cfg = DefaultThurstoneConfig()
	cfg.Convergence.MaxIterations = 0
	_, err = NewThurstoneModel(cfg)
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
}

func TestBradleyTerryModel_NineToOne(t *testing.T) {
	m, err := NewBradleyTerryModel(DefaultBradleyTerryConfig())
	require.NoError(t, err)

	res, err := m.Recover(context.Background(), pairwiseMatrix(t, 2, map[[2]int]float64{{0, 1}: 9, {1, 0}: 1}))
	require.NoError(t, err)

	// Strengths 3 and 1/3 have ratio 9 and geometric mean 1.
	assert.InDelta(t, 3, res.Videos[0].Merit, 1e-9)
	assert.InDelta(t, 1.0/3, res.Videos[1].Merit, 1e-9)
	assert.True(t, res.Converged)

	// The interval is multiplicative around the strength.
	ci := res.Videos[0].CI
	assert.Greater(t, ci.Low, 0.0)
	assert.InDelta(t, 3*3, ci.Low*ci.High, 1e-9)
}

func TestBradleyTerryModel_RecoversSyntheticStrengths(t *testing.T) {
	m, err := NewBradleyTerryModel(DefaultBradleyTerryConfig())
	require.NoError(t, err)

	cfg := testutils.DefaultPairedConfig()
	cfg.Subjects = 20
	cfg.TrialsPerPair = 3
	cfg.BradleyTerry = true
	pm, truth := syntheticComparisons(t, cfg)

	res, err := m.Recover(context.Background(), pm)
	require.NoError(t, err)
	assert.True(t, res.Converged)

	logs := make([]float64, len(res.Videos))
	var sum float64
	for i, v := range res.Videos {
		logs[i] = math.Log(v.Merit)
		sum += logs[i]
	}
	assert.InDelta(t, 0, sum, 1e-9)
	assert.Greater(t, correlation(logs, truth), 0.9)
}

func TestBradleyTerryModel_StrengthFloor(t *testing.T) {
	m, err := NewBradleyTerryModel(DefaultBradleyTerryConfig())
	require.NoError(t, err)

	// Video 2 never wins.
	res, err := m.Recover(context.Background(), pairwiseMatrix(t, 3, map[[2]int]float64{
		{0, 1}: 2, {1, 0}: 2,
		{0, 2}: 4,
		{1, 2}: 4,
	}))
	require.NoError(t, err)

	assert.True(t, res.Separated)
	assert.Greater(t, res.Videos[2].Merit, 0.0)
	assert.Less(t, res.Videos[2].Merit, res.Videos[1].Merit)
	assert.InDelta(t, res.Videos[0].Merit, res.Videos[1].Merit, 1e-9)
	assert.False(t, math.IsInf(res.LogLikelihood, 0))
}

func TestBradleyTerryModel_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*BradleyTerryConfig)
	}{
		{name: "tolerance", mutate: func(c *BradleyTerryConfig) { c.Tolerance = 0 }},
		{name: "iterations", mutate: func(c *BradleyTerryConfig) { c.MaxIterations = 0 }},
		{name: "floor", mutate: func(c *BradleyTerryConfig) { c.StrengthFloor = 1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultBradleyTerryConfig()
			tt.mutate(&cfg)
			_, err := NewBradleyTerryModel(cfg)
			assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
		})
	}
}
