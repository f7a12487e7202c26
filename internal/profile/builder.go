package profile

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jpalmerr/watchboard/internal/accessor"
	"github.com/jpalmerr/watchboard/internal/catalog"
	"github.com/jpalmerr/watchboard/internal/diag"
	"github.com/jpalmerr/watchboard/internal/format"
	"github.com/jpalmerr/watchboard/internal/introspect"
	"github.com/jpalmerr/watchboard/internal/metrics"
	"github.com/jpalmerr/watchboard/monitor"
)

const tracerName = "github.com/jpalmerr/watchboard/internal/profile"

var (
	// ErrUnresolvedGeneric is reported when a generic member cannot be found
	// on a closed subtype.
	ErrUnresolvedGeneric = fmt.Errorf("%w: generic member could not be resolved", diag.ErrMalformed)
	// ErrNoOutput is reported for methods that expose no value.
	ErrNoOutput = fmt.Errorf("%w: monitored method exposes no value", diag.ErrMalformed)
	// ErrValueTypeInstance is reported for instance members declared on a
	// value type.
	ErrValueTypeInstance = fmt.Errorf("%w: instance member on a value type", diag.ErrMalformed)
)

// Config wires a [Builder].
type Config struct {
	Introspector introspect.TypeIntrospector
	Synthesizer  accessor.Synthesizer
	Formats      *format.Factory
	Defaults     monitor.Defaults
	Sink         *diag.Sink
	Metrics      *metrics.Metrics
	Tracer       trace.Tracer
}

// Builder runs discovery.
type Builder struct {
	introspector introspect.TypeIntrospector
	synthesizer  accessor.Synthesizer
	formats      *format.Factory
	defaults     monitor.Defaults
	sink         *diag.Sink
	metrics      *metrics.Metrics
	tracer       trace.Tracer
}

// NewBuilder creates a builder. Synthesizer, Formats, Sink and Tracer have
// defaults; Introspector is required.
func NewBuilder(cfg Config) *Builder {
	b := &Builder{
		introspector: cfg.Introspector,
		synthesizer:  cfg.Synthesizer,
		formats:      cfg.Formats,
		defaults:     cfg.Defaults,
		sink:         cfg.Sink,
		metrics:      cfg.Metrics,
		tracer:       cfg.Tracer,
	}
	if b.synthesizer == nil {
		b.synthesizer = accessor.Reflect{}
	}
	if b.formats == nil {
		b.formats = format.NewFactory(format.Options{Metrics: cfg.Metrics})
	}
	if b.sink == nil {
		b.sink = diag.NewSink(slog.Default(), nil)
	}
	if b.tracer == nil {
		b.tracer = otel.Tracer(tracerName)
	}
	return b
}

// Build scans candidates and returns the profiles. It checks ctx between
// passes and between candidate types; a cancelled build returns the
// context's error and no registry.
func (b *Builder) Build(ctx context.Context, candidates []*catalog.Type) (*Registry, error) {
	start := time.Now()
	ctx, span := b.tracer.Start(ctx, "discovery.build",
		trace.WithAttributes(attribute.Int("candidates", len(candidates))))
	defer span.End()

	reg := newRegistry()
	var deferred []introspect.MemberDescriptor

	fail := func(err error) (*Registry, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if err := b.scan(ctx, candidates, true, reg, &deferred); err != nil {
		return fail(err)
	}
	if err := b.scan(ctx, candidates, false, reg, &deferred); err != nil {
		return fail(err)
	}
	if err := b.resolve(ctx, candidates, deferred, reg); err != nil {
		return fail(err)
	}
	reg.sort()

	elapsed := time.Since(start)
	b.metrics.ObserveDiscovery(elapsed, len(reg.static), reg.InstanceLen())
	span.SetAttributes(attribute.Int("profiles", reg.Len()))
	b.sink.Logger().Debug("discovery complete",
		"candidates", len(candidates),
		"static_profiles", len(reg.static),
		"instance_profiles", reg.InstanceLen(),
		"deferred", len(deferred),
		"duration_ms", elapsed.Milliseconds(),
	)
	return reg, nil
}

func (b *Builder) members(t *catalog.Type, static bool) []introspect.MemberDescriptor {
	var out []introspect.MemberDescriptor
	out = append(out, b.introspector.Fields(t, static)...)
	out = append(out, b.introspector.Properties(t, static)...)
	out = append(out, b.introspector.Methods(t, static)...)
	out = append(out, b.introspector.Events(t, static)...)
	return out
}

// scan is pass 1 (static) or pass 2 (instance). Members of generic
// prototypes go to deferred.
func (b *Builder) scan(ctx context.Context, candidates []*catalog.Type, static bool, reg *Registry, deferred *[]introspect.MemberDescriptor) error {
	pass := "instance"
	if static {
		pass = "static"
	}
	ctx, span := b.tracer.Start(ctx, "discovery.pass", trace.WithAttributes(attribute.String("pass", pass)))
	defer span.End()

	built := 0
	for _, t := range candidates {
		if err := ctx.Err(); err != nil {
			return err
		}
		for _, d := range b.members(t, static) {
			if d.Generic() {
				*deferred = append(*deferred, d)
				continue
			}
			if !static && t.IsValueType() {
				b.sink.Report("skipping monitored member", fmt.Errorf("%s: %w", d.Identity(), ErrValueTypeInstance), "member", d.Identity())
				continue
			}
			if b.add(reg, d) {
				built++
			}
		}
	}

	span.SetAttributes(attribute.Int("profiles", built))
	return nil
}

// resolve is pass 3: every deferred generic member is specialized for each
// closed candidate embedding an instantiation of its definition.
func (b *Builder) resolve(ctx context.Context, candidates []*catalog.Type, deferred []introspect.MemberDescriptor, reg *Registry) error {
	ctx, span := b.tracer.Start(ctx, "discovery.pass", trace.WithAttributes(
		attribute.String("pass", "generic"),
		attribute.Int("deferred", len(deferred)),
	))
	defer span.End()

	if err := ctx.Err(); err != nil {
		return err
	}

	built := 0
	for _, closed := range candidates {
		if err := ctx.Err(); err != nil {
			return err
		}
		if closed.IsGeneric() || closed.IsValueType() {
			continue
		}
		for _, d := range deferred {
			if _, ok := catalog.SubclassOf(closed.Go(), d.DeclaringType.Definition()); !ok {
				continue
			}
			resolved, err := b.introspector.Resolve(d, closed)
			if err != nil {
				b.sink.Report("skipping generic member", fmt.Errorf("%w: %w", ErrUnresolvedGeneric, err),
					"member", d.Identity(), "type", closed.Name())
				continue
			}
			if b.add(reg, resolved) {
				built++
			}
		}
	}

	span.SetAttributes(attribute.Int("profiles", built))
	return nil
}

func (b *Builder) add(reg *Registry, d introspect.MemberDescriptor) bool {
	p, err := b.profile(d)
	if err != nil {
		b.sink.Report("skipping monitored member", err, "member", d.Identity())
		return false
	}
	reg.add(p)
	return true
}

// profile synthesizes the accessor and formatter binding for d.
func (b *Builder) profile(d introspect.MemberDescriptor) (*Profile, error) {
	if d.Kind == introspect.KindMethod && d.ValueType == nil {
		return nil, fmt.Errorf("%s: %w", d.Identity(), ErrNoOutput)
	}

	acc, err := b.synthesizer.Synthesize(d)
	if err != nil {
		return nil, err
	}

	fd := monitor.NewFormatData(d.Name, d.Tag, b.defaults)
	p := &Profile{
		member:  d,
		format:  fd,
		access:  acc,
		formats: b.formats,
	}

	if d.Tag.Processor != "" {
		src := format.ProcessorSource{
			Type:    d.DeclaringType.Go(),
			Static:  d.Static,
			Statics: staticFuncs(d.DeclaringType),
		}
		binder, err := b.formats.Processor(src, d.Tag.Processor, d.ValueType, fd)
		if err != nil {
			b.sink.Report("processor unavailable, using default formatter", err, "member", d.Identity())
		} else {
			p.binder = binder
		}
	}

	return p, nil
}

func staticFuncs(t *catalog.Type) func(string) (reflect.Value, bool) {
	return func(name string) (reflect.Value, bool) {
		s, ok := t.Static(name)
		if !ok || s.Ref.Kind() != reflect.Func {
			return reflect.Value{}, false
		}
		return s.Ref, true
	}
}
