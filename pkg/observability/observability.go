// Package observability wires an OpenTelemetry-backed tracer provider
// into the thin, optional Tracer hook the scheduling core exposes as an
// interface boundary for telemetry, never a hard dependency. This
// package supplies concrete otel spans behind reactor.Tracer without the
// core importing otel at all.
package observability

import (
	"context"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/mindburn-labs/reactorcore/pkg/reactor"
)

// Config configures the tracer provider. It deliberately has no OTLP
// endpoint: wiring a concrete exporter (OTLP, stdout, etc.) is
// a deployment concern this package does not handle, and no exporter is
// attached; Provider itself only establishes the provider and the
// instrumentation scope.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Enabled        bool
}

// DefaultConfig returns a minimal, enabled configuration.
func DefaultConfig() Config {
	return Config{ServiceName: "reactorcore", ServiceVersion: "0.1.0", Enabled: true}
}

// Provider implements reactor.Tracer by opening one span per tag
// dispatched, attributed with the tag's offset/microstep, and recording
// reaction panics as span events before the scheduler's own error path
// unwinds.
type Provider struct {
	config         Config
	tracerProvider *sdktrace.TracerProvider
	tracer         trace.Tracer
	logger         *slog.Logger

	mu    sync.Mutex
	spans map[reactor.Tag]spanEntry
}

type spanEntry struct {
	span trace.Span
	ctx  context.Context
}

// New constructs a Provider. With config.Enabled false, New still returns
// a valid Provider whose TagStart/TagEnd are no-ops, so callers that
// always pass a Provider to reactor.WithTracer don't need a separate
// disabled branch.
func New(config Config) *Provider {
	p := &Provider{
		config: config,
		logger: slog.Default().With("component", "observability"),
		spans:  make(map[reactor.Tag]spanEntry),
	}
	if !config.Enabled {
		return p
	}

	p.tracerProvider = sdktrace.NewTracerProvider()
	otel.SetTracerProvider(p.tracerProvider)
	p.tracer = otel.Tracer("reactorcore.scheduler", trace.WithInstrumentationVersion(config.ServiceVersion))
	return p
}

// Shutdown flushes and releases the underlying tracer provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.tracerProvider == nil {
		return nil
	}
	return p.tracerProvider.Shutdown(ctx)
}

// TagStart opens a span for tag's dispatch.
func (p *Provider) TagStart(tag reactor.Tag) {
	if p.tracer == nil {
		return
	}
	ctx, span := p.tracer.Start(context.Background(), "process_tag",
		trace.WithAttributes(
			attribute.Int64("reactor.tag.offset_ns", int64(tag.Offset)),
			attribute.Int64("reactor.tag.microstep", int64(tag.Microstep)),
		),
	)
	p.mu.Lock()
	p.spans[tag] = spanEntry{span: span, ctx: ctx}
	p.mu.Unlock()
}

// TagEnd closes the span opened by TagStart for tag.
func (p *Provider) TagEnd(tag reactor.Tag) {
	if p.tracer == nil {
		return
	}
	p.mu.Lock()
	entry, ok := p.spans[tag]
	delete(p.spans, tag)
	p.mu.Unlock()
	if ok {
		entry.span.End()
	}
}

// ReactionPanic records a span event for a reaction panic and logs it
// structurally before the fatal error propagates.
func (p *Provider) ReactionPanic(reactionName string, tag reactor.Tag, recovered any) {
	p.logger.Error("reaction panicked", "reaction", reactionName, "tag", tag.String(), "recovered", recovered)
	if p.tracer == nil {
		return
	}
	p.mu.Lock()
	entry, ok := p.spans[tag]
	p.mu.Unlock()
	if ok {
		entry.span.AddEvent("reaction_panic", trace.WithAttributes(
			attribute.String("reactor.reaction.name", reactionName),
		))
	}
}

var _ reactor.Tracer = (*Provider)(nil)
