package tracing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/Tsukikage7/command-scheduler/job"
	"github.com/Tsukikage7/command-scheduler/lock"
	"github.com/Tsukikage7/command-scheduler/runner"
	"github.com/Tsukikage7/command-scheduler/scheduler"
	"github.com/Tsukikage7/command-scheduler/storage/memory"
)

func TestNewProvider_NilConfig(t *testing.T) {
	tp, err := NewProvider(context.Background(), nil, "test-service", "1.0.0")

	assert.Nil(t, tp)
	assert.ErrorIs(t, err, ErrNilConfig)
}

func TestNewProvider_Disabled(t *testing.T) {
	tp, err := NewProvider(context.Background(), &Config{Enabled: false}, "test-service", "1.0.0")

	require.NoError(t, err)
	assert.NotNil(t, tp)
	_ = tp.Shutdown(context.Background())
}

func TestNewProvider_EmptyServiceName(t *testing.T) {
	tp, err := NewProvider(context.Background(), &Config{Enabled: true, Endpoint: "localhost:4318"}, "", "1.0.0")

	assert.Nil(t, tp)
	assert.ErrorIs(t, err, ErrEmptyServiceName)
}

func TestNewProvider_EmptyEndpoint(t *testing.T) {
	tp, err := NewProvider(context.Background(), &Config{Enabled: true}, "test-service", "1.0.0")

	assert.Nil(t, tp)
	assert.ErrorIs(t, err, ErrEmptyEndpoint)
}

func TestNewProvider_Success(t *testing.T) {
	cfg := &Config{
		Enabled:      true,
		Endpoint:     "http://localhost:4318",
		Headers:      map[string]string{"Authorization": "Bearer token"},
		SamplingRate: 0.5,
	}

	tp, err := NewProvider(context.Background(), cfg, "test-service", "1.0.0")

	require.NoError(t, err)
	require.NotNil(t, tp)
	_ = tp.Shutdown(context.Background())
}

func TestConfig_ApplyDefaults(t *testing.T) {
	for _, rate := range []float64{0, -1, 1.5} {
		cfg := &Config{SamplingRate: rate}
		cfg.ApplyDefaults()
		assert.Equal(t, 1.0, cfg.SamplingRate)
	}

	cfg := &Config{SamplingRate: 0.25}
	cfg.ApplyDefaults()
	assert.Equal(t, 0.25, cfg.SamplingRate)
}

func TestExporterOptions(t *testing.T) {
	assert.Len(t, exporterOptions(&Config{Endpoint: "https://collector:4318"}), 1)
	assert.Len(t, exporterOptions(&Config{Endpoint: "collector:4318"}), 2)
	assert.Len(t, exporterOptions(&Config{Endpoint: "collector:4318", Headers: map[string]string{"k": "v"}}), 3)
}

// DispatchTracingTestSuite 通过真实调度验证产生的 span.
type DispatchTracingTestSuite struct {
	suite.Suite
	ctx      context.Context
	recorder *tracetest.SpanRecorder
	tp       *sdktrace.TracerProvider
	store    *memory.Store
	registry *runner.Registry
}

func TestDispatchTracingSuite(t *testing.T) {
	suite.Run(t, new(DispatchTracingTestSuite))
}

func (s *DispatchTracingTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.recorder = tracetest.NewSpanRecorder()
	s.tp = sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(s.recorder))
	s.store = memory.New()
	s.registry = runner.NewRegistry()
	s.registry.MustRegister("app:ok", func(context.Context, *runner.Invocation) (int, error) { return 0, nil })
	s.registry.MustRegister("app:fail", func(context.Context, *runner.Invocation) (int, error) { return 3, nil })
}

func (s *DispatchTracingTestSuite) TearDownTest() {
	_ = s.tp.Shutdown(s.ctx)
}

func (s *DispatchTracingTestSuite) create(name, command string, mutate func(*job.Job)) {
	j := job.New(name, command, "@daily")
	j.ExecuteImmediately = true
	if mutate != nil {
		mutate(j)
	}
	s.Require().NoError(s.store.Create(s.ctx, j))
}

func (s *DispatchTracingTestSuite) dispatch() {
	sched := scheduler.MustNew(s.store, lock.NewManager(s.store), s.registry,
		scheduler.WithHooks(Hooks(s.tp)),
	)

	ctx, span := StartDispatch(s.ctx, s.tp, false)
	_, err := sched.RunOnce(ctx, false)
	span.End()
	s.Require().NoError(err)
}

func (s *DispatchTracingTestSuite) spans() map[string]sdktrace.ReadOnlySpan {
	out := make(map[string]sdktrace.ReadOnlySpan)
	for _, sp := range s.recorder.Ended() {
		out[sp.Name()] = sp
	}
	return out
}

func attr(sp sdktrace.ReadOnlySpan, key attribute.Key) attribute.Value {
	for _, kv := range sp.Attributes() {
		if kv.Key == key {
			return kv.Value
		}
	}
	return attribute.Value{}
}

func (s *DispatchTracingTestSuite) TestJobSpansAreChildrenOfDispatch() {
	s.create("ok", "app:ok", nil)
	s.create("fail", "app:fail", nil)

	s.dispatch()

	spans := s.spans()
	s.Require().Len(spans, 3)
	root := spans["scheduler.dispatch"]
	s.Require().NotNil(root)
	s.False(attr(root, AttrDumpOnly).AsBool())

	ok := spans["scheduler.job ok"]
	s.Require().NotNil(ok)
	s.Equal(root.SpanContext().SpanID(), ok.Parent().SpanID())
	s.Equal(codes.Ok, ok.Status().Code)
	s.Equal("app:ok", attr(ok, AttrJobCommand).AsString())
	s.True(attr(ok, AttrImmediateExec).AsBool())

	fail := spans["scheduler.job fail"]
	s.Require().NotNil(fail)
	s.Equal(codes.Error, fail.Status().Code)
	s.Equal(int64(3), attr(fail, AttrReturnCode).AsInt64())
	s.Equal("completed", attr(fail, AttrResultKind).AsString())
}

func (s *DispatchTracingTestSuite) TestMissingCommandRecordsError() {
	s.create("ghost", "app:missing", nil)

	s.dispatch()

	sp := s.spans()["scheduler.job ghost"]
	s.Require().NotNil(sp)
	s.Equal(codes.Error, sp.Status().Code)
	s.Equal("infrastructure_failure", attr(sp, AttrResultKind).AsString())
	s.NotEmpty(sp.Events())
}

func (s *DispatchTracingTestSuite) TestSkippedJobIsEvent() {
	s.create("busy", "app:ok", func(j *job.Job) {
		j.Locked = true
		j.LastExecution = time.Now().Add(-48 * time.Hour)
	})

	s.dispatch()

	spans := s.spans()
	s.Require().Len(spans, 1)
	root := spans["scheduler.dispatch"]
	s.Require().Len(root.Events(), 1)
	ev := root.Events()[0]
	s.Equal("scheduler.job.skipped", ev.Name)
	s.Contains(ev.Attributes, AttrSkipReason.String(scheduler.SkipLocked))
}
