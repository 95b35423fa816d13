// Command generate_dataset writes a synthetic subjective test with known
// ground truth, for demos and for checking the recovery models by hand.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/ahrav/go-sureal/internal/dataset"
	"github.com/ahrav/go-sureal/internal/testutils"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// truthFile is written next to the dataset.
type truthFile struct {
	Seed          int64     `json:"seed"`
	Quality       []float64 `json:"quality,omitempty"`
	Subjects      []string  `json:"subjects,omitempty"`
	Bias          []float64 `json:"bias,omitempty"`
	Inconsistency []float64 `json:"inconsistency,omitempty"`
	Merits        []float64 `json:"merits,omitempty"`
}

func newRootCommand() *cobra.Command {
	rating := testutils.DefaultRatingConfig()
	paired := testutils.DefaultPairedConfig()
	var (
		outputPath string
		kind       string
		seed       int64
	)

	cmd := &cobra.Command{
		Use:           "generate_dataset",
		Short:         "Generate a synthetic rating or paired-comparison dataset",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("seed") {
				seed = testutils.DefaultSeed()
			}

			var (
				d     *dataset.Dataset
				truth truthFile
				err   error
			)
			switch strings.ToLower(kind) {
			case "rating":
				rating.Seed = seed
				var rt *testutils.RatingTruth
				d, rt, err = testutils.GenerateRatingDataset(rating)
				if err == nil {
					truth = truthFile{Quality: rt.Quality, Subjects: rt.Subjects, Bias: rt.Bias, Inconsistency: rt.Inconsistency}
				}
			case "paired":
				paired.Seed = seed
				d, truth.Merits, err = testutils.GeneratePairedDataset(paired)
			default:
				return fmt.Errorf("unknown dataset kind %q (want rating or paired)", kind)
			}
			if err != nil {
				return fmt.Errorf("failed to generate dataset: %w", err)
			}
			truth.Seed = seed

			if dir := filepath.Dir(outputPath); dir != "" {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return fmt.Errorf("failed to create output directory: %w", err)
				}
			}
			if err := dataset.Save(d, outputPath); err != nil {
				return err
			}
			truthPath := strings.TrimSuffix(outputPath, filepath.Ext(outputPath)) + ".truth.json"
			data, err := json.MarshalIndent(truth, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode ground truth: %w", err)
			}
			if err := os.WriteFile(truthPath, data, 0o644); err != nil {
				return fmt.Errorf("failed to write ground truth: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Generated %s dataset:\n", d.Kind())
			fmt.Fprintf(out, "- Path: %s\n", outputPath)
			fmt.Fprintf(out, "- Ground truth: %s\n", truthPath)
			fmt.Fprintf(out, "- Distorted videos: %d\n", len(d.DisVideos))
			fmt.Fprintf(out, "- Subjects: %d\n", len(d.Subjects()))
			fmt.Fprintf(out, "- Seed: %d\n", seed)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&outputPath, "output", "o", "testdata/synthetic/dataset.json", "Output file path (.json, .yaml, .yml)")
	flags.StringVar(&kind, "kind", "rating", "Dataset kind: rating or paired")
	flags.Int64Var(&seed, "seed", 0, "Random seed (default: time based)")

	flags.StringVar(&rating.Name, "name", rating.Name, "Dataset name")
	flags.IntVar(&rating.Contents, "contents", rating.Contents, "Rating: number of source contents")
	flags.IntVar(&rating.AssetsPerContent, "assets", rating.AssetsPerContent, "Rating: videos per content, reference included")
	flags.IntVar(&rating.Subjects, "subjects", rating.Subjects, "Number of subjects")
	flags.IntVar(&rating.Repetitions, "repetitions", rating.Repetitions, "Rating: repetitions per subject and video")
	flags.Float64Var(&rating.MissingRate, "missing-rate", rating.MissingRate, "Rating: probability that a subject skips a video")
	flags.Float64Var(&rating.BiasStd, "bias-std", rating.BiasStd, "Rating: spread of subject biases")
	flags.BoolVar(&rating.Positional, "positional", false, "Rating: write positional score lists")
	flags.BoolVar(&rating.Round, "round", rating.Round, "Rating: round scores to the scale")
	flags.IntVar(&paired.Videos, "videos", paired.Videos, "Paired: number of videos")
	flags.IntVar(&paired.TrialsPerPair, "trials", paired.TrialsPerPair, "Paired: trials per subject and pair")
	flags.BoolVar(&paired.BradleyTerry, "bradley-terry", false, "Paired: draw outcomes from the logistic model")

	cmd.PreRun = func(cmd *cobra.Command, _ []string) {
		paired.Subjects = rating.Subjects
		if cmd.Flags().Changed("name") {
			paired.Name = rating.Name
		}
	}
	return cmd
}
