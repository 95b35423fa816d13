package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ahrav/go-sureal/infrastructure/middleware"
	"github.com/ahrav/go-sureal/internal/application"
	"github.com/ahrav/go-sureal/internal/config"
	"github.com/ahrav/go-sureal/internal/dataset"
	"github.com/ahrav/go-sureal/internal/domain"
	"github.com/ahrav/go-sureal/internal/logging"
)

// recoverOptions are the flags shared by rate and pc.
type recoverOptions struct {
	datasetPath string
	models      []string
	outputDir   string
	metricsFile string
	jsonOutput  bool
	dmos        bool
}

func (o *recoverOptions) bind(cmd *cobra.Command, withDMOS bool) {
	flags := cmd.Flags()
	flags.StringVarP(&o.datasetPath, "dataset", "d", "", "Dataset file (.json, .yaml, .yml)")
	flags.StringSliceVarP(&o.models, "models", "m", nil, "Models to run, comma separated (default: configured, else all)")
	flags.StringVarP(&o.outputDir, "output", "o", "", "Directory receiving the JSON report")
	flags.StringVar(&o.metricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile after the run")
	flags.BoolVar(&o.jsonOutput, "json", false, "Print the JSON report instead of tables")
	if withDMOS {
		flags.BoolVar(&o.dmos, "dmos", false, "Recover differential scores against the dataset's ref_score")
	}
	_ = cmd.MarkFlagRequired("dataset")
}

// modelNames prefers the flag over the configuration.
func (o *recoverOptions) modelNames(cfg *config.Config) []string {
	if len(o.models) > 0 {
		return o.models
	}
	return cfg.ModelNames()
}

// runEnv holds what one recovery command needs besides the matrix.
type runEnv struct {
	runner      *application.Runner
	metrics     *middleware.PrometheusMetrics
	metricsFile string
}

func newRunEnv(cfg *config.Config, opts *recoverOptions) *runEnv {
	env := &runEnv{metricsFile: cfg.Metrics.TextfilePath}
	if opts.metricsFile != "" {
		env.metricsFile = opts.metricsFile
	}

	runnerOpts := []application.RunnerOption{application.WithRunnerConfig(cfg.Runner)}
	if cfg.Metrics.Enabled || env.metricsFile != "" {
		env.metrics = middleware.NewPrometheusMetrics(cfg.Metrics.Namespace)
		runnerOpts = append(runnerOpts, application.WithObserver(middleware.NewModelObserver(env.metrics, nil)))
	}
	env.runner = application.NewRunner(application.NewModelRegistry(cfg), runnerOpts...)
	return env
}

// flush writes collected metrics, if a textfile was requested.
func (e *runEnv) flush() error {
	if e.metrics == nil || e.metricsFile == "" {
		return nil
	}
	return e.metrics.WriteTextfile(e.metricsFile)
}

func loadDataset(cmd *cobra.Command, path string, want dataset.Kind) (*dataset.Dataset, string, error) {
	d, err := dataset.Load(cmd.Context(), path)
	if err != nil {
		return nil, "", err
	}
	if kind := d.Kind(); kind != want {
		return nil, "", fmt.Errorf("dataset %s holds %s data; use the %s command", path, kind, commandFor(kind))
	}
	name := d.Name
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return d, name, nil
}

func commandFor(kind dataset.Kind) string {
	if kind == dataset.KindPaired {
		return "pc"
	}
	return "rate"
}

func newRateCommand(ctx *commandContext) *cobra.Command {
	var opts recoverOptions

	cmd := &cobra.Command{
		Use:   "rate",
		Short: "Recover video quality from opinion scores",
		Long: "Recover per-video quality with the rating models " +
			"(MOS, P910, P913, BT500) and print one column per model.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			d, name, err := loadDataset(cmd, opts.datasetPath, dataset.KindRating)
			if err != nil {
				return err
			}
			build := dataset.BuildOpinionMatrix
			if opts.dmos {
				build = dataset.Differential
			}
			om, err := build(d)
			if err != nil {
				return err
			}
			kinds, err := application.SelectModels(opts.modelNames(cfg), domain.FamilyRating)
			if err != nil {
				return err
			}

			env := newRunEnv(cfg, &opts)
			batch, err := env.runner.RunRating(cmd.Context(), om, kinds)
			if err != nil {
				return err
			}
			rep := newRatingReport(name, opts.dmos, batch)
			if err := emit(cmd, &opts, rep, func(w io.Writer) { printRatingTables(w, batch) }); err != nil {
				return err
			}
			if err := env.flush(); err != nil {
				return err
			}
			return batch.Err()
		},
	}
	opts.bind(cmd, true)
	return cmd
}

func newPairedCommand(ctx *commandContext) *cobra.Command {
	var opts recoverOptions

	cmd := &cobra.Command{
		Use:     "pc",
		Aliases: []string{"paired"},
		Short:   "Recover video merit from paired comparisons",
		Long:    "Recover per-video merit with the paired-comparison models (THURSTONE_MLE, BT_MLE).",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			d, name, err := loadDataset(cmd, opts.datasetPath, dataset.KindPaired)
			if err != nil {
				return err
			}
			pm, err := dataset.BuildPairwiseMatrix(d)
			if err != nil {
				return err
			}
			kinds, err := application.SelectModels(opts.modelNames(cfg), domain.FamilyPaired)
			if err != nil {
				return err
			}

			env := newRunEnv(cfg, &opts)
			batch, err := env.runner.RunPaired(cmd.Context(), pm, kinds)
			if err != nil {
				return err
			}
			rep := newMeritReport(name, batch)
			if err := emit(cmd, &opts, rep, func(w io.Writer) { printMeritTables(w, batch) }); err != nil {
				return err
			}
			if err := env.flush(); err != nil {
				return err
			}
			return batch.Err()
		},
	}
	opts.bind(cmd, false)
	return cmd
}

// emit prints the report as JSON or tables and stores it when an output
// directory was given.
func emit(cmd *cobra.Command, opts *recoverOptions, rep *report, tables func(io.Writer)) error {
	out := cmd.OutOrStdout()
	if opts.jsonOutput {
		if err := writeJSON(out, rep); err != nil {
			return err
		}
	} else {
		tables(out)
	}
	if opts.outputDir == "" {
		return nil
	}
	path, err := writeReport(opts.outputDir, rep)
	if err != nil {
		return err
	}
	logging.Logger().Info().Str("path", path).Str("run_id", rep.RunID).Msg("report written")
	return nil
}

func printRatingTables(w io.Writer, batch *application.Batch[*domain.RecoveryResult]) {
	var ok []*domain.RecoveryResult
	summary := make([][]string, 0, len(batch.Outcomes))
	for _, o := range batch.Outcomes {
		if o.Err != nil {
			summary = append(summary, []string{o.Model.String(), "FAILED", "-", "-", "-", "-", o.Err.Error()})
			continue
		}
		res := o.Result
		ok = append(ok, res)
		summary = append(summary, []string{
			o.Model.String(),
			string(res.Status),
			strconv.Itoa(res.Iterations),
			formatFloat(res.LogLikelihood),
			strconv.Itoa(len(res.RejectedSubjects())),
			strconv.Itoa(len(res.InsufficientVideos())),
			o.Elapsed.String(),
		})
	}
	fmt.Fprintln(w, renderTable("Models",
		[]string{"Model", "Status", "Iterations", "Log-likelihood", "Rejected", "Insufficient", "Elapsed"},
		summary, []columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight}))
	if len(ok) == 0 {
		return
	}

	headers := []string{"Video"}
	for _, res := range ok {
		headers = append(headers, res.Model.String())
	}
	rows := make([][]string, len(ok[0].Videos))
	for v := range rows {
		row := []string{ok[0].Videos[v].Video.Label()}
		for _, res := range ok {
			est := res.Videos[v]
			row = append(row, formatEstimate(est.Quality, est.StdErr))
		}
		rows[v] = row
	}
	fmt.Fprintln(w, renderTable("Quality", headers, rows, rightAligned(len(headers))))

	for _, res := range ok {
		if len(res.Subjects) == 0 {
			continue
		}
		rows := make([][]string, len(res.Subjects))
		for i, s := range res.Subjects {
			rejected := ""
			if s.Rejected {
				rejected = "yes"
			}
			rows[i] = []string{
				s.Subject,
				formatEstimate(s.Bias, s.BiasStdErr),
				formatEstimate(s.Inconsistency, s.InconsistencyStdErr),
				strconv.Itoa(s.RatingCount),
				rejected,
			}
		}
		fmt.Fprintln(w, renderTable("Subjects ("+res.Model.String()+")",
			[]string{"Subject", "Bias", "Inconsistency", "Ratings", "Rejected"},
			rows, rightAligned(5)))
	}
}

func printMeritTables(w io.Writer, batch *application.Batch[*domain.MeritResult]) {
	var ok []*domain.MeritResult
	summary := make([][]string, 0, len(batch.Outcomes))
	for _, o := range batch.Outcomes {
		if o.Err != nil {
			summary = append(summary, []string{o.Model.String(), "FAILED", "-", "-", o.Err.Error()})
			continue
		}
		res := o.Result
		ok = append(ok, res)
		summary = append(summary, []string{
			o.Model.String(),
			string(res.Status),
			strconv.Itoa(res.Iterations),
			formatFloat(res.LogLikelihood),
			o.Elapsed.String(),
		})
	}
	fmt.Fprintln(w, renderTable("Models",
		[]string{"Model", "Status", "Iterations", "Log-likelihood", "Elapsed"},
		summary, []columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight}))
	if len(ok) == 0 {
		return
	}

	headers := []string{"Video", "Comparisons"}
	for _, res := range ok {
		headers = append(headers, res.Model.String())
	}
	rows := make([][]string, len(ok[0].Videos))
	for v := range rows {
		first := ok[0].Videos[v]
		row := []string{first.Video.Label(), strconv.FormatFloat(first.Comparisons, 'f', -1, 64)}
		for _, res := range ok {
			est := res.Videos[v]
			row = append(row, formatEstimate(est.Merit, est.StdErr))
		}
		rows[v] = row
	}
	fmt.Fprintln(w, renderTable("Merit", headers, rows, rightAligned(len(headers))))
}
