package middleware

import (
	"context"
	"math"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/go-sureal/internal/domain"
	"github.com/ahrav/go-sureal/internal/ports"
)

// TracerName is the instrumentation scope of model spans.
const TracerName = "github.com/ahrav/go-sureal/infrastructure/middleware"

// ModelObserver turns each model run into an OpenTelemetry span and a set of
// metrics. A single observer is shared by every run of a batch.
type ModelObserver struct {
	metrics ports.MetricsCollector
	tracer  trace.Tracer
}

// NewModelObserver creates an observer that reports to metrics and to spans
// from tp. A nil metrics collector discards metrics and a nil provider falls
// back to the global one.
func NewModelObserver(metrics ports.MetricsCollector, tp trace.TracerProvider) *ModelObserver {
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &ModelObserver{metrics: metrics, tracer: tp.Tracer(TracerName)}
}

// ModelRun tracks one model invocation between Start and Rating or Paired.
type ModelRun struct {
	observer *ModelObserver
	kind     domain.ModelKind
	span     trace.Span
	start    time.Time
}

// Start opens a span for a run of kind within the batch identified by runID.
// The returned context carries the span.
func (o *ModelObserver) Start(ctx context.Context, runID string, kind domain.ModelKind) (context.Context, *ModelRun) {
	ctx, span := o.tracer.Start(ctx, "Model.Recover", trace.WithAttributes(
		attribute.String("sureal.run_id", runID),
		attribute.String("sureal.model", kind.String()),
		attribute.String("sureal.family", string(kind.Family())),
	))
	return ctx, &ModelRun{observer: o, kind: kind, span: span, start: time.Now()}
}

// Rating closes the run with the outcome of a rating model.
func (r *ModelRun) Rating(res *domain.RecoveryResult, err error) {
	defer r.span.End()
	if err != nil {
		r.fail(err)
		return
	}

	insufficient := len(res.InsufficientVideos())
	rejected := res.RejectedSubjects()
	r.span.SetAttributes(
		attribute.Int("sureal.videos", len(res.Videos)),
		attribute.Int("sureal.subjects", len(res.Subjects)),
		attribute.Int("sureal.insufficient_videos", insufficient),
		attribute.Int("sureal.rejected_subjects", len(rejected)),
	)
	if len(rejected) > 0 {
		r.span.AddEvent("subjects.rejected", trace.WithAttributes(
			attribute.StringSlice("subjects", rejected),
		))
	}
	r.finish(res.Status, res.Iterations, res.LogLikelihood)

	labels := r.labels()
	if insufficient > 0 {
		r.observer.metrics.RecordCounter(ports.MetricInsufficientVideos, float64(insufficient), labels)
	}
	if r.kind == domain.ModelBT500 {
		r.observer.metrics.RecordGauge(ports.MetricRejectedSubjects, float64(len(rejected)), labels)
	}
}

// Paired closes the run with the outcome of a paired-comparison model.
func (r *ModelRun) Paired(res *domain.MeritResult, err error) {
	defer r.span.End()
	if err != nil {
		r.fail(err)
		return
	}

	var isolated int
	for _, v := range res.Videos {
		if v.Comparisons == 0 {
			isolated++
		}
	}
	r.span.SetAttributes(
		attribute.Int("sureal.videos", len(res.Videos)),
		attribute.Int("sureal.insufficient_videos", isolated),
		attribute.Bool("sureal.separated", res.Separated),
	)
	r.finish(res.Status, res.Iterations, res.LogLikelihood)
	if isolated > 0 {
		r.observer.metrics.RecordCounter(ports.MetricInsufficientVideos, float64(isolated), r.labels())
	}
}

func (r *ModelRun) finish(status domain.Status, iterations int, logLikelihood float64) {
	outcome := ports.OutcomeConverged
	if status != domain.StatusConverged {
		outcome = ports.OutcomeMaxIterations
		r.span.AddEvent("solver.max_iterations", trace.WithAttributes(
			attribute.Int("iterations", iterations),
		))
	}
	r.span.SetAttributes(
		attribute.String("sureal.status", string(status)),
		attribute.Int("sureal.iterations", iterations),
	)
	if !math.IsNaN(logLikelihood) {
		r.span.SetAttributes(attribute.Float64("sureal.log_likelihood", logLikelihood))
	}
	r.span.SetStatus(codes.Ok, "")

	labels := r.labels()
	labels[ports.LabelOutcome] = outcome
	m := r.observer.metrics
	m.RecordLatency(ports.OpRecover, time.Since(r.start), labels)
	m.RecordCounter(ports.MetricModelRuns, 1, labels)
	if r.kind.Iterative() {
		m.RecordGauge(ports.MetricModelIterations, float64(iterations), r.labels())
	}
	if !math.IsNaN(logLikelihood) && !math.IsInf(logLikelihood, 0) {
		m.RecordGauge(ports.MetricLogLikelihood, logLikelihood, r.labels())
	}
}

func (r *ModelRun) fail(err error) {
	r.span.RecordError(err)
	r.span.SetStatus(codes.Error, err.Error())

	labels := r.labels()
	labels[ports.LabelOutcome] = ports.OutcomeFailed
	r.observer.metrics.RecordLatency(ports.OpRecover, time.Since(r.start), labels)
	r.observer.metrics.RecordCounter(ports.MetricModelRuns, 1, labels)
}

func (r *ModelRun) labels() map[string]string {
	return map[string]string{ports.LabelModel: r.kind.String()}
}
