// Package observability decorates the orders service port with tracing,
// logging, and metrics.
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

	"github.com/commercekit/settlement/internal/domains/orders/ports"
)

const tracerName = "github.com/commercekit/settlement/internal/domains/orders/adapters/observability/service"

var _ ports.Service = (*Service)(nil)

// Service decorates an orders application port.
type Service struct {
	inner   ports.Service
	tracer  trace.Tracer
	logger  *slog.Logger
	metrics serviceMetrics
}

type Option func(*Service)

// WithLogger injects a slog logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithTracer injects a tracer implementation.
func WithTracer(tr trace.Tracer) Option {
	return func(s *Service) { s.tracer = tr }
}

// WithMeter injects the meter used to create service metrics instruments.
func WithMeter(m metric.Meter) Option {
	return func(s *Service) { s.metrics = newServiceMetrics(m) }
}

// New wires a decorator around the core service.
func New(inner ports.Service, opts ...Option) ports.Service {
	s := &Service{
		inner:  inner,
		tracer: nooptrace.NewTracerProvider().Tracer(tracerName),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// CreateOrder places an order with instrumentation.
func (s *Service) CreateOrder(ctx context.Context, input ports.CreateOrderInput) (*ports.OrderView, error) {
	ctx, span := s.tracer.Start(ctx, "Service.CreateOrder", trace.WithAttributes(
		attribute.String("order.owner", input.OwnerRef),
		attribute.Int("order.items", len(input.Items)),
	))
	defer span.End()

	view, err := s.inner.CreateOrder(ctx, input)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "failed to create order", slog.String("owner", input.OwnerRef))
	}
	span.SetAttributes(
		attribute.Int64("order.id", view.ID),
		attribute.String("order.status", string(view.Status)),
	)
	s.metrics.recordCreated(ctx, string(view.Status))
	s.logger.LogAttrs(ctx, slog.LevelInfo, "order created",
		slog.Int64("order.id", view.ID),
		slog.String("status", string(view.Status)),
		slog.Int64("charge_amount", view.ChargeAmount))
	return view, nil
}

// GetOrder loads one order.
func (s *Service) GetOrder(ctx context.Context, ownerRef string, orderID int64) (*ports.OrderView, error) {
	ctx, span := s.tracer.Start(ctx, "Service.GetOrder", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	view, err := s.inner.GetOrder(ctx, ownerRef, orderID)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "failed to load order", slog.Int64("order.id", orderID))
	}
	return view, nil
}

// ListOrders loads the owner's orders.
func (s *Service) ListOrders(ctx context.Context, ownerRef string) ([]*ports.OrderView, error) {
	ctx, span := s.tracer.Start(ctx, "Service.ListOrders", trace.WithAttributes(attribute.String("order.owner", ownerRef)))
	defer span.End()

	views, err := s.inner.ListOrders(ctx, ownerRef)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "failed to list orders", slog.String("owner", ownerRef))
	}
	span.SetAttributes(attribute.Int("order.result.count", len(views)))
	return views, nil
}

// CancelOrder cancels one order.
func (s *Service) CancelOrder(ctx context.Context, ownerRef string, orderID int64) (*ports.OrderView, error) {
	ctx, span := s.tracer.Start(ctx, "Service.CancelOrder", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	view, err := s.inner.CancelOrder(ctx, ownerRef, orderID)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "failed to cancel order", slog.Int64("order.id", orderID))
	}
	s.metrics.recordCanceled(ctx)
	s.logger.LogAttrs(ctx, slog.LevelInfo, "order cancel handled",
		slog.Int64("order.id", orderID), slog.String("status", string(view.Status)))
	return view, nil
}

// HandleCallback settles an order from a gateway callback.
func (s *Service) HandleCallback(ctx context.Context, input ports.CallbackInput) error {
	ctx, span := s.tracer.Start(ctx, "Service.HandleCallback", trace.WithAttributes(
		attribute.Int64("order.id", input.OrderID),
		attribute.String("callback.status", string(input.Status)),
	))
	defer span.End()

	if err := s.inner.HandleCallback(ctx, input); err != nil {
		return s.handleError(ctx, span, err, "failed to handle payment callback", slog.Int64("order.id", input.OrderID))
	}
	s.metrics.recordCallback(ctx, string(input.Status))
	return nil
}

// ReconcileOrder settles one pending order.
func (s *Service) ReconcileOrder(ctx context.Context, orderID int64) error {
	ctx, span := s.tracer.Start(ctx, "Service.ReconcileOrder", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	if err := s.inner.ReconcileOrder(ctx, orderID); err != nil {
		return s.handleError(ctx, span, err, "failed to reconcile order", slog.Int64("order.id", orderID))
	}
	return nil
}

// ReconcilePending sweeps pending orders.
func (s *Service) ReconcilePending(ctx context.Context) (ports.ReconcileReport, error) {
	ctx, span := s.tracer.Start(ctx, "Service.ReconcilePending")
	defer span.End()

	report, err := s.inner.ReconcilePending(ctx)
	if err != nil {
		return report, s.handleError(ctx, span, err, "reconciliation sweep failed")
	}
	span.SetAttributes(
		attribute.Int("reconcile.examined", report.Examined),
		attribute.Int("reconcile.completed", report.Completed),
		attribute.Int("reconcile.canceled", report.Canceled),
		attribute.Int("reconcile.failed", report.Failed),
	)
	s.metrics.recordSweep(ctx, report)
	return report, nil
}

func (s *Service) handleError(ctx context.Context, span trace.Span, err error, msg string, attrs ...slog.Attr) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	attrs = append(attrs, slog.String("error", err.Error()))
	s.logger.LogAttrs(ctx, slog.LevelError, msg, attrs...)
	return err
}

type serviceMetrics struct {
	created   metric.Int64Counter
	canceled  metric.Int64Counter
	callbacks metric.Int64Counter
	reconcile metric.Int64Counter
}

func newServiceMetrics(m metric.Meter) serviceMetrics {
	if m == nil {
		return serviceMetrics{}
	}
	created, _ := m.Int64Counter("orders.service.created", metric.WithDescription("Orders created by initial status"))
	canceled, _ := m.Int64Counter("orders.service.canceled", metric.WithDescription("Cancel requests handled"))
	callbacks, _ := m.Int64Counter("orders.service.callbacks", metric.WithDescription("Payment callbacks handled by asserted status"))
	reconcile, _ := m.Int64Counter("orders.service.reconciled", metric.WithDescription("Orders settled by reconciliation, by outcome"))
	return serviceMetrics{created: created, canceled: canceled, callbacks: callbacks, reconcile: reconcile}
}

func (m serviceMetrics) recordCreated(ctx context.Context, status string) {
	if m.created == nil {
		return
	}
	m.created.Add(ctx, 1, metric.WithAttributes(attribute.String("order.status", status)))
}

func (m serviceMetrics) recordCanceled(ctx context.Context) {
	if m.canceled == nil {
		return
	}
	m.canceled.Add(ctx, 1)
}

func (m serviceMetrics) recordCallback(ctx context.Context, status string) {
	if m.callbacks == nil {
		return
	}
	m.callbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("callback.status", status)))
}

func (m serviceMetrics) recordSweep(ctx context.Context, report ports.ReconcileReport) {
	if m.reconcile == nil {
		return
	}
	m.reconcile.Add(ctx, int64(report.Completed), metric.WithAttributes(attribute.String("outcome", "completed")))
	m.reconcile.Add(ctx, int64(report.Canceled), metric.WithAttributes(attribute.String("outcome", "canceled")))
	m.reconcile.Add(ctx, int64(report.Failed), metric.WithAttributes(attribute.String("outcome", "failed")))
}
