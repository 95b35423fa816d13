// Package testutils provides synthetic subjective-test datasets with known
// ground truth. The generators are intended for the project's tests and the
// generate_dataset tool; they are not part of the public API.
package testutils

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/ahrav/go-sureal/internal/dataset"
)

// RatingConfig describes a synthetic rating experiment following
//
//	u = quality + bias + inconsistency·ε,  ε ~ N(0, 1)
//
// with scores optionally rounded and clamped to [ScaleMin, ScaleMax].
type RatingConfig struct {
	Name             string
	Contents         int
	AssetsPerContent int
	Subjects         int
	Repetitions      int
	// MissingRate is the probability that a subject skips a video. Ignored
	// for positional layouts, which cannot express missing cells.
	MissingRate      float64
	ScaleMin         float64
	ScaleMax         float64
	BiasStd          float64
	InconsistencyMin float64
	InconsistencyMax float64
	Round            bool
	Positional       bool
	RefScore         float64
	Seed             int64
}

// DefaultRatingConfig returns a small 5-point ACR experiment.
func DefaultRatingConfig() RatingConfig {
	return RatingConfig{
		Name:             "synthetic_acr",
		Contents:         4,
		AssetsPerContent: 5,
		Subjects:         12,
		Repetitions:      1,
		MissingRate:      0.1,
		ScaleMin:         1,
		ScaleMax:         5,
		BiasStd:          0.4,
		InconsistencyMin: 0.2,
		InconsistencyMax: 0.8,
		Round:            true,
		RefScore:         5,
		Seed:             1,
	}
}

// RatingTruth holds the parameters a rating dataset was drawn from.
type RatingTruth struct {
	// Quality is indexed like Dataset.DisVideos.
	Quality []float64
	// Subjects, Bias and Inconsistency are indexed alike.
	Subjects      []string
	Bias          []float64
	Inconsistency []float64
}

// GenerateRatingDataset draws a rating dataset and returns it with the
// parameters used. The first asset of every content is its reference.
func GenerateRatingDataset(cfg RatingConfig) (*dataset.Dataset, *RatingTruth, error) {
	if cfg.Contents < 1 || cfg.AssetsPerContent < 1 || cfg.Subjects < 1 || cfg.Repetitions < 1 {
		return nil, nil, fmt.Errorf("contents, assets, subjects and repetitions must be positive")
	}
	if cfg.ScaleMax <= cfg.ScaleMin {
		return nil, nil, fmt.Errorf("scale max %v must exceed scale min %v", cfg.ScaleMax, cfg.ScaleMin)
	}
	rng := rand.New(rand.NewSource(cfg.Seed))

	truth := &RatingTruth{
		Subjects:      make([]string, cfg.Subjects),
		Bias:          make([]float64, cfg.Subjects),
		Inconsistency: make([]float64, cfg.Subjects),
	}
	for s := range cfg.Subjects {
		if cfg.Positional {
			truth.Subjects[s] = fmt.Sprintf("%d", s)
		} else {
			truth.Subjects[s] = fmt.Sprintf("subject%02d", s)
		}
		truth.Bias[s] = rng.NormFloat64() * cfg.BiasStd
		truth.Inconsistency[s] = cfg.InconsistencyMin + rng.Float64()*(cfg.InconsistencyMax-cfg.InconsistencyMin)
	}

	refScore := cfg.RefScore
	d := &dataset.Dataset{
		Name:     cfg.Name,
		RefScore: &refScore,
	}
	span := cfg.ScaleMax - cfg.ScaleMin
	for c := range cfg.Contents {
		refPath := fmt.Sprintf("ref/content%02d.yuv", c)
		d.RefVideos = append(d.RefVideos, dataset.RefVideo{
			ContentID:   intPtr(c),
			ContentName: fmt.Sprintf("content%02d", c),
			Path:        refPath,
		})
		for a := range cfg.AssetsPerContent {
			// The reference sits near the top of the scale and quality
			// falls with the distortion level.
			quality := cfg.ScaleMax - span*(0.1+0.8*float64(a)/float64(max(cfg.AssetsPerContent, 2)))
			path := fmt.Sprintf("dis/content%02d_q%d.yuv", c, a)
			if a == 0 {
				quality = cfg.ScaleMax - 0.1*span
				path = refPath
			}
			quality += rng.NormFloat64() * 0.05 * span
			truth.Quality = append(truth.Quality, quality)

			d.DisVideos = append(d.DisVideos, dataset.DisVideo{
				AssetID:   intPtr(len(d.DisVideos)),
				ContentID: intPtr(c),
				Path:      path,
				OS:        drawScores(rng, cfg, truth, quality),
			})
		}
	}
	return d, truth, nil
}

func drawScores(rng *rand.Rand, cfg RatingConfig, truth *RatingTruth, quality float64) *dataset.OpinionScores {
	draw := func(s int) float64 {
		u := quality + truth.Bias[s] + truth.Inconsistency[s]*rng.NormFloat64()
		if cfg.Round {
			u = math.Round(u)
		}
		return math.Min(cfg.ScaleMax, math.Max(cfg.ScaleMin, u))
	}

	if cfg.Positional {
		scores := make([]float64, cfg.Subjects)
		for s := range scores {
			scores[s] = draw(s)
		}
		return dataset.PositionalScores(scores...)
	}

	keyed := make(map[string][]float64, cfg.Subjects)
	for s, name := range truth.Subjects {
		if rng.Float64() < cfg.MissingRate {
			continue
		}
		reps := make([]float64, cfg.Repetitions)
		for r := range reps {
			reps[r] = draw(s)
		}
		keyed[name] = reps
	}
	return dataset.KeyedScores(keyed)
}

// PairedConfig describes a synthetic paired-comparison experiment.
type PairedConfig struct {
	Name     string
	Videos   int
	Subjects int
	// TrialsPerPair is how many comparisons every subject makes per pair.
	TrialsPerPair int
	// MeritStd is the spread of the latent merits.
	MeritStd float64
	// BradleyTerry draws outcomes from the logistic model instead of
	// Thurstone Case V.
	BradleyTerry bool
	Seed         int64
}

// DefaultPairedConfig returns a six-video Thurstone experiment.
func DefaultPairedConfig() PairedConfig {
	return PairedConfig{
		Name:          "synthetic_pc",
		Videos:        6,
		Subjects:      8,
		TrialsPerPair: 2,
		MeritStd:      1,
		Seed:          1,
	}
}

// GeneratePairedDataset draws a paired-comparison dataset and returns it
// with the zero-mean merits used to generate it.
func GeneratePairedDataset(cfg PairedConfig) (*dataset.Dataset, []float64, error) {
	if cfg.Videos < 2 || cfg.Subjects < 1 || cfg.TrialsPerPair < 1 {
		return nil, nil, fmt.Errorf("need at least 2 videos, 1 subject and 1 trial per pair")
	}
	rng := rand.New(rand.NewSource(cfg.Seed))

	merits := make([]float64, cfg.Videos)
	var mean float64
	for i := range merits {
		merits[i] = rng.NormFloat64() * cfg.MeritStd
		mean += merits[i]
	}
	mean /= float64(cfg.Videos)
	for i := range merits {
		merits[i] -= mean
	}

	d := &dataset.Dataset{
		Name: cfg.Name,
		RefVideos: []dataset.RefVideo{
			{ContentID: intPtr(0), ContentName: "content00", Path: "ref/content00.yuv"},
		},
	}
	entries := make([][]dataset.PairedScore, cfg.Videos)
	for i := range cfg.Videos {
		for j := i + 1; j < cfg.Videos; j++ {
			p := winProbability(merits[i]-merits[j], cfg.BradleyTerry)
			for s := range cfg.Subjects {
				for range cfg.TrialsPerPair {
					score := 0.0
					if rng.Float64() < p {
						score = 1
					}
					entries[i] = append(entries[i], dataset.PairedScore{
						Subject:         fmt.Sprintf("subject%02d", s),
						ComparedAssetID: j,
						Score:           score,
					})
				}
			}
		}
	}
	for i := range cfg.Videos {
		d.DisVideos = append(d.DisVideos, dataset.DisVideo{
			AssetID:   intPtr(i),
			ContentID: intPtr(0),
			Path:      fmt.Sprintf("dis/content00_v%d.yuv", i),
			OS:        dataset.PairedScores(entries[i]...),
		})
	}
	return d, merits, nil
}

func winProbability(diff float64, logistic bool) float64 {
	if logistic {
		return 1 / (1 + math.Exp(-diff))
	}
	return 0.5 * math.Erfc(-diff/2)
}

// DefaultSeed returns a time-based seed for non-reproducible generation.
func DefaultSeed() int64 { return time.Now().UnixNano() }

func intPtr(v int) *int { return &v }
