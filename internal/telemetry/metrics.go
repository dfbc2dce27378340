package telemetry

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/safar/storefront/internal/config"
)

// InitMeterProvider registers a Prometheus-backed MeterProvider and returns
// the /metrics handler with its shutdown function.
func InitMeterProvider(cfg config.TelemetryConfig) (http.Handler, func(context.Context) error, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, nil, err
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(newResource(cfg)),
	)
	otel.SetMeterProvider(mp)

	return promhttp.Handler(), mp.Shutdown, nil
}

// Checkout outcomes recorded on the checkout metrics.
const (
	OutcomePlaced   = "placed"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

type CheckoutMetrics struct {
	checkouts metric.Int64Counter
	items     metric.Int64Counter
	duration  metric.Float64Histogram
}

func NewCheckoutMetrics(meter metric.Meter) (*CheckoutMetrics, error) {
	checkouts, err := meter.Int64Counter("storefront.checkouts",
		metric.WithDescription("Checkout attempts by outcome"),
	)
	if err != nil {
		return nil, err
	}

	items, err := meter.Int64Counter("storefront.order_items",
		metric.WithDescription("Order lines created by successful checkouts"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram("storefront.checkout.duration",
		metric.WithDescription("Checkout transaction duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &CheckoutMetrics{checkouts: checkouts, items: items, duration: duration}, nil
}

func (m *CheckoutMetrics) Record(ctx context.Context, outcome string, lines int, elapsed time.Duration) {
	if m == nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.checkouts.Add(ctx, 1, attrs)
	m.duration.Record(ctx, elapsed.Seconds(), attrs)
	if lines > 0 {
		m.items.Add(ctx, int64(lines))
	}
}
