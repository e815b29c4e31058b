// Package observability decorates the payment gateway port with tracing,
// logging, and per-outcome attempt counters.
package observability

import (
	"context"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"github.com/commercekit/settlement/internal/domains/payment/domain"
	"github.com/commercekit/settlement/internal/domains/payment/ports"
)

const tracerName = "github.com/commercekit/settlement/internal/domains/payment/adapters/observability/gateway"

var _ ports.Gateway = (*Gateway)(nil)

// Gateway wraps an inner gateway with instrumentation.
type Gateway struct {
	inner   ports.Gateway
	tracer  trace.Tracer
	logger  *slog.Logger
	metrics gatewayMetrics
}

type Option func(*Gateway)

// WithLogger injects a slog logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) { g.logger = logger }
}

// WithTracer injects a tracer implementation.
func WithTracer(tr trace.Tracer) Option {
	return func(g *Gateway) { g.tracer = tr }
}

// WithMeter injects the meter used to create the attempt counters.
func WithMeter(m metric.Meter) Option {
	return func(g *Gateway) { g.metrics = newGatewayMetrics(m) }
}

// New wires a decorator around the core gateway client.
func New(inner ports.Gateway, opts ...Option) ports.Gateway {
	g := &Gateway{
		inner:  inner,
		tracer: nooptrace.NewTracerProvider().Tracer(tracerName),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

// Submit forwards the charge attempt and records its outcome class.
func (g *Gateway) Submit(ctx context.Context, req ports.SubmitRequest) domain.AttemptResult {
	ctx, span := g.tracer.Start(ctx, "Gateway.Submit", trace.WithAttributes(
		attribute.Int64("order.id", req.OrderID),
		attribute.Int64("payment.amount", req.Amount),
		attribute.String("payment.card_type", string(req.CardType)),
	))
	defer span.End()

	result := g.inner.Submit(ctx, req)
	outcome := outcomeLabel(result)
	span.SetAttributes(attribute.String("payment.outcome", outcome))
	g.metrics.recordAttempt(ctx, outcome)

	switch r := result.(type) {
	case domain.Success:
		g.logger.LogAttrs(ctx, slog.LevelInfo, "payment submitted",
			slog.Int64("order.id", req.OrderID), slog.String("transaction.key", r.TransactionKey))
	case domain.BusinessFailure:
		g.logger.LogAttrs(ctx, slog.LevelWarn, "payment declined",
			slog.Int64("order.id", req.OrderID), slog.String("code", r.Code))
	case domain.TransientFailure:
		span.SetStatus(codes.Error, "transient payment failure")
		if r.Cause != nil {
			span.RecordError(r.Cause)
		}
		g.logger.LogAttrs(ctx, slog.LevelWarn, "payment attempt failed transiently",
			slog.Int64("order.id", req.OrderID), slog.Bool("timeout", r.Timeout), slog.Any("cause", r.Cause))
	case domain.CircuitOpen:
		g.logger.LogAttrs(ctx, slog.LevelWarn, "payment rejected by open breaker",
			slog.Int64("order.id", req.OrderID))
	}
	return result
}

// TransactionsByOrder forwards the status query.
func (g *Gateway) TransactionsByOrder(ctx context.Context, ownerRef string, orderID int64) ([]domain.TransactionRecord, error) {
	ctx, span := g.tracer.Start(ctx, "Gateway.TransactionsByOrder",
		trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	records, err := g.inner.TransactionsByOrder(ctx, ownerRef, orderID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		g.metrics.recordQuery(ctx, "error")
		g.logger.LogAttrs(ctx, slog.LevelWarn, "payment status query failed",
			slog.Int64("order.id", orderID), slog.String("error", err.Error()))
		return nil, err
	}
	span.SetAttributes(attribute.Int("payment.transactions", len(records)))
	g.metrics.recordQuery(ctx, "ok")
	return records, nil
}

func outcomeLabel(result domain.AttemptResult) string {
	switch result.(type) {
	case domain.Success:
		return "success"
	case domain.BusinessFailure:
		return "business_failure"
	case domain.TransientFailure:
		return "transient_failure"
	case domain.CircuitOpen:
		return "circuit_open"
	default:
		return "unknown"
	}
}

type gatewayMetrics struct {
	attempts metric.Int64Counter
	queries  metric.Int64Counter
}

func newGatewayMetrics(m metric.Meter) gatewayMetrics {
	if m == nil {
		return gatewayMetrics{}
	}
	attempts, _ := m.Int64Counter("payment.gateway.attempts", metric.WithDescription("Payment submissions by outcome"))
	queries, _ := m.Int64Counter("payment.gateway.queries", metric.WithDescription("Payment status queries by result"))
	return gatewayMetrics{attempts: attempts, queries: queries}
}

func (m gatewayMetrics) recordAttempt(ctx context.Context, outcome string) {
	if m.attempts == nil {
		return
	}
	m.attempts.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m gatewayMetrics) recordQuery(ctx context.Context, result string) {
	if m.queries == nil {
		return
	}
	m.queries.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}
