package observability

import (
	"context"
	"time"

	"checkbot/internal/models"
	"checkbot/internal/render"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// instruments records a span, a latency histogram and an error counter for
// each call of one component.
type instruments struct {
	component string
	tracer    trace.Tracer
	duration  metric.Float64Histogram
	errors    metric.Int64Counter
}

func newInstruments(component string) (*instruments, error) {
	scope := "checkbot/" + component
	meter := otel.Meter(scope)

	duration, err := meter.Float64Histogram(
		component+".operation.duration",
		metric.WithDescription("Duration of "+component+" operations in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	errCounter, err := meter.Int64Counter(
		component+".operation.errors",
		metric.WithDescription("Number of failed "+component+" operations"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	return &instruments{
		component: component,
		tracer:    otel.Tracer(scope),
		duration:  duration,
		errors:    errCounter,
	}, nil
}

func (in *instruments) startSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return in.tracer.Start(ctx, in.component+"."+operation,
		trace.WithAttributes(append([]attribute.KeyValue{
			attribute.String(in.component+".operation", operation),
		}, attrs...)...),
	)
}

func (in *instruments) record(ctx context.Context, span trace.Span, operation string, start time.Time, err error) {
	elapsed := time.Since(start).Seconds()
	attrs := metric.WithAttributes(attribute.String("operation", operation))

	in.duration.Record(ctx, elapsed, attrs)

	if err != nil {
		in.errors.Add(ctx, 1, attrs)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	span.End()
}

// InstrumentedRenderer wraps a render.Renderer with tracing and metrics.
type InstrumentedRenderer struct {
	inner render.Renderer
	in    *instruments
}

// NewInstrumentedRenderer wraps inner.
func NewInstrumentedRenderer(inner render.Renderer) (*InstrumentedRenderer, error) {
	in, err := newInstruments("renderer")
	if err != nil {
		return nil, err
	}
	return &InstrumentedRenderer{inner: inner, in: in}, nil
}

func (r *InstrumentedRenderer) Render(ctx context.Context, req render.Request) ([]byte, error) {
	start := time.Now()
	ctx, span := r.in.startSpan(ctx, "render",
		attribute.String("template.name", req.TemplateName),
		attribute.Int("viewport.width", req.Viewport.Width),
		attribute.Int("viewport.height", req.Viewport.Height),
	)
	img, err := r.inner.Render(ctx, req)
	if err == nil {
		span.SetAttributes(attribute.Int("image.bytes", len(img)))
	}
	r.in.record(ctx, span, "render", start, err)
	return img, err
}

// StatusCollector is the collector interface wrapped by InstrumentedCollector.
type StatusCollector interface {
	Collect(ctx context.Context) (*models.StatusInfo, error)
}

// InstrumentedCollector wraps a status collector with tracing and metrics.
type InstrumentedCollector struct {
	inner StatusCollector
	in    *instruments
}

// NewInstrumentedCollector wraps inner.
func NewInstrumentedCollector(inner StatusCollector) (*InstrumentedCollector, error) {
	in, err := newInstruments("status")
	if err != nil {
		return nil, err
	}
	return &InstrumentedCollector{inner: inner, in: in}, nil
}

func (c *InstrumentedCollector) Collect(ctx context.Context) (*models.StatusInfo, error) {
	start := time.Now()
	ctx, span := c.in.startSpan(ctx, "collect")
	info, err := c.inner.Collect(ctx)
	if info != nil {
		span.SetAttributes(
			attribute.String("status.baidu", info.Baidu),
			attribute.String("status.google", info.Google),
		)
	}
	c.in.record(ctx, span, "collect", start, err)
	return info, err
}
