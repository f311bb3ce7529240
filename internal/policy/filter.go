// Package policy implements the invocation policy filter that sits between
// the tool dispatcher and every tool body.
//
// A [Filter] runs an ordered chain of pure [Guard] checks against an
// [Invocation]. The first guard that denies stops the chain and the call
// fails with a [*PolicyViolation]; advisory guards only log. When no guard
// denies, the continuation runs exactly once and its result is returned
// unchanged.
//
// A Filter holds nothing but its immutable guard chain, so one value can be
// shared by any number of goroutines. Reconfiguration builds a new Filter.
package policy

import (
	"context"
	"errors"
	"log/slog"
	"slices"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/funcall/internal/observe"
)

// Next is the continuation: the actual tool body.
type Next func(ctx context.Context, inv Invocation) (string, error)

// Filter evaluates the guard chain and gates the continuation.
type Filter struct {
	rules   RuleSet
	guards  []Guard
	logger  *slog.Logger
	metrics *observe.Metrics
}

// Option is a functional option for [NewFilter].
type Option func(*Filter)

// WithLogger sets the logger for check lines. By default the trace-aware
// logger from [observe.Logger] is used for each call.
func WithLogger(l *slog.Logger) Option {
	return func(f *Filter) {
		f.logger = l
	}
}

// WithMetrics sets the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(f *Filter) {
		f.metrics = m
	}
}

// WithGuards replaces the default guard chain. Guards run in the given order.
func WithGuards(guards ...Guard) Option {
	return func(f *Filter) {
		f.guards = slices.Clone(guards)
	}
}

// NewFilter builds a Filter enforcing rules with [DefaultGuards].
func NewFilter(rules RuleSet, opts ...Option) *Filter {
	f := &Filter{rules: rules, guards: DefaultGuards(rules)}
	for _, o := range opts {
		o(f)
	}
	if f.metrics == nil {
		f.metrics = observe.DefaultMetrics()
	}
	return f
}

// Rules returns the rule set the filter was built with.
func (f *Filter) Rules() RuleSet { return f.rules }

// GuardNames returns the guard names in evaluation order.
func (f *Filter) GuardNames() []string {
	names := make([]string, len(f.guards))
	for i, g := range f.guards {
		names[i] = g.Name
	}
	return names
}

// Evaluate runs the guard chain without invoking anything. It returns the
// advisory alerts raised before the chain finished and the violation of the
// first denying guard, if any.
func (f *Filter) Evaluate(inv Invocation) ([]Alert, *PolicyViolation) {
	var alerts []Alert
	for _, g := range f.guards {
		d := g.Check(inv)
		switch d.Verdict {
		case Deny:
			return alerts, d.Violation
		case Advise:
			if d.Alert != nil {
				alerts = append(alerts, *d.Alert)
			}
		}
	}
	return alerts, nil
}

// Invoke checks inv and, when allowed, calls next once and returns its
// result. A denied call returns a *PolicyViolation and next is not called.
func (f *Filter) Invoke(ctx context.Context, inv Invocation, next Next) (string, error) {
	if next == nil {
		return "", errors.New("policy: nil continuation")
	}

	sctx, span := observe.StartSpan(ctx, "policy.Invoke",
		trace.WithAttributes(attribute.String("policy.function", inv.Function)),
	)
	log := f.log(sctx).With(slog.String("function", inv.Function))
	log.Info("policy check started")

	for _, g := range f.guards {
		d := g.Check(inv)
		switch d.Verdict {
		case Deny:
			v := d.Violation
			if v == nil {
				v = &PolicyViolation{Guard: g.Name, Function: inv.Function, Reason: "denied by " + g.Name + " guard"}
			}
			log.Warn("policy check blocked",
				slog.String("guard", g.Name),
				slog.String("field", v.Field),
				slog.String("value", v.Value),
				slog.String("reason", v.Reason),
			)
			f.metrics.RecordPolicyDecision(sctx, inv.Function, observe.DecisionDeny, g.Name)
			span.SetAttributes(attribute.String("policy.decision", observe.DecisionDeny), attribute.String("policy.guard", g.Name))
			observe.EndSpan(span, v)
			return "", v
		case Advise:
			a := d.Alert
			if a == nil {
				continue
			}
			log.Warn("policy alert",
				slog.String("guard", g.Name),
				slog.String("field", a.Field),
				slog.String("amount", a.Value),
				slog.String("message", a.Message),
			)
			f.metrics.RecordPolicyAlert(sctx, inv.Function, g.Name)
		}
	}

	log.Info("policy check passed")
	f.metrics.RecordPolicyDecision(sctx, inv.Function, observe.DecisionAllow, "")
	span.SetAttributes(attribute.String("policy.decision", observe.DecisionAllow))
	span.End()

	return next(ctx, inv)
}

func (f *Filter) log(ctx context.Context) *slog.Logger {
	if f.logger != nil {
		return f.logger
	}
	return observe.Logger(ctx)
}
