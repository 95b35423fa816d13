package middleware

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/ahrav/go-sureal/internal/domain"
	"github.com/ahrav/go-sureal/internal/ports"
)

// recordingProvider hands out tracers that keep every span they start.
type recordingProvider struct {
	noop.TracerProvider
	spans []*recordingSpan
}

func (p *recordingProvider) Tracer(string, ...trace.TracerOption) trace.Tracer {
	return &recordingTracer{provider: p}
}

type recordingTracer struct {
	noop.Tracer
	provider *recordingProvider
}

func (t *recordingTracer) Start(
	ctx context.Context, name string, opts ...trace.SpanStartOption,
) (context.Context, trace.Span) {
	cfg := trace.NewSpanStartConfig(opts...)
	s := &recordingSpan{name: name, attrs: map[attribute.Key]attribute.Value{}}
	for _, kv := range cfg.Attributes() {
		s.attrs[kv.Key] = kv.Value
	}
	t.provider.spans = append(t.provider.spans, s)
	return trace.ContextWithSpan(ctx, s), s
}

type recordingSpan struct {
	noop.Span
	name   string
	attrs  map[attribute.Key]attribute.Value
	events []string
	status codes.Code
	errs   []error
	ended  bool
}

func (s *recordingSpan) SetAttributes(kv ...attribute.KeyValue) {
	for _, a := range kv {
		s.attrs[a.Key] = a.Value
	}
}

func (s *recordingSpan) AddEvent(name string, _ ...trace.EventOption) {
	s.events = append(s.events, name)
}

func (s *recordingSpan) SetStatus(code codes.Code, _ string) { s.status = code }

func (s *recordingSpan) RecordError(err error, _ ...trace.EventOption) {
	s.errs = append(s.errs, err)
}

func (s *recordingSpan) End(...trace.SpanEndOption) { s.ended = true }

func TestModelObserver_Rating(t *testing.T) {
	tp := &recordingProvider{}
	pm := NewPrometheusMetrics("test")
	obs := NewModelObserver(pm, tp)

	ctx, run := obs.Start(context.Background(), "run-1", domain.ModelBT500)
	require.Len(t, tp.spans, 1)
	assert.Same(t, tp.spans[0], trace.SpanFromContext(ctx))

	run.Rating(&domain.RecoveryResult{
		Model: domain.ModelBT500,
		Videos: []domain.VideoEstimate{
			{Quality: 3},
			{Quality: math.NaN(), Insufficient: true},
		},
		Subjects: []domain.SubjectEstimate{
			{Subject: "a"},
			{Subject: "b", Rejected: true},
		},
		Converged:     true,
		Status:        domain.StatusConverged,
		Iterations:    2,
		LogLikelihood: math.NaN(),
	}, nil)

	span := tp.spans[0]
	assert.True(t, span.ended)
	assert.Equal(t, "Model.Recover", span.name)
	assert.Equal(t, codes.Ok, span.status)
	assert.Equal(t, "run-1", span.attrs["sureal.run_id"].AsString())
	assert.Equal(t, "BT500", span.attrs["sureal.model"].AsString())
	assert.Equal(t, int64(1), span.attrs["sureal.rejected_subjects"].AsInt64())
	assert.Equal(t, int64(2), span.attrs["sureal.iterations"].AsInt64())
	assert.NotContains(t, span.attrs, attribute.Key("sureal.log_likelihood"))
	assert.Equal(t, []string{"subjects.rejected"}, span.events)

	assert.Equal(t, 1.0, testutil.ToFloat64(pm.modelRuns.WithLabelValues("BT500", ports.OutcomeConverged)))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.insufficientVideos.WithLabelValues("BT500")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.rejectedSubjects.WithLabelValues("BT500")))
	assert.Equal(t, 2.0, testutil.ToFloat64(pm.iterations.WithLabelValues("BT500")))
	assert.Equal(t, 0, testutil.CollectAndCount(pm.logLikelihood))
}

func TestModelObserver_PairedMaxIterations(t *testing.T) {
	tp := &recordingProvider{}
	pm := NewPrometheusMetrics("test")
	obs := NewModelObserver(pm, tp)

	_, run := obs.Start(context.Background(), "run-2", domain.ModelThurstoneMLE)
	run.Paired(&domain.MeritResult{
		Model: domain.ModelThurstoneMLE,
		Videos: []domain.MeritEstimate{
			{Merit: 0.5, Comparisons: 10},
			{Merit: -0.5, Comparisons: 10},
			{Merit: math.NaN()},
		},
		Status:        domain.StatusMaxIterations,
		Iterations:    50,
		LogLikelihood: -6.5,
		Separated:     true,
	}, nil)

	span := tp.spans[0]
	assert.Equal(t, "paired", span.attrs["sureal.family"].AsString())
	assert.Equal(t, -6.5, span.attrs["sureal.log_likelihood"].AsFloat64())
	assert.True(t, span.attrs["sureal.separated"].AsBool())
	assert.Contains(t, span.events, "solver.max_iterations")

	assert.Equal(t, 1.0, testutil.ToFloat64(pm.modelRuns.WithLabelValues("THURSTONE_MLE", ports.OutcomeMaxIterations)))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.insufficientVideos.WithLabelValues("THURSTONE_MLE")))
	assert.Equal(t, -6.5, testutil.ToFloat64(pm.logLikelihood.WithLabelValues("THURSTONE_MLE")))
	assert.Equal(t, 50.0, testutil.ToFloat64(pm.iterations.WithLabelValues("THURSTONE_MLE")))
}

func TestModelObserver_Failure(t *testing.T) {
	tp := &recordingProvider{}
	pm := NewPrometheusMetrics("test")
	obs := NewModelObserver(pm, tp)

	boom := errors.New("boom")
	_, run := obs.Start(context.Background(), "run-3", domain.ModelMOS)
	run.Rating(nil, boom)

	span := tp.spans[0]
	assert.True(t, span.ended)
	assert.Equal(t, codes.Error, span.status)
	assert.Equal(t, []error{boom}, span.errs)
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.modelRuns.WithLabelValues("MOS", ports.OutcomeFailed)))
	assert.Equal(t, 0, testutil.CollectAndCount(pm.iterations))
}

func TestNewModelObserver_Defaults(t *testing.T) {
	obs := NewModelObserver(nil, nil)
	_, run := obs.Start(context.Background(), "run-4", domain.ModelP910)
	assert.NotPanics(t, func() {
		run.Rating(&domain.RecoveryResult{Status: domain.StatusConverged}, nil)
	})
}
