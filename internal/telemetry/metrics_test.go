package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestCheckoutMetricsRecord(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	m, err := NewCheckoutMetrics(mp.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	m.Record(ctx, OutcomePlaced, 3, 20*time.Millisecond)
	m.Record(ctx, OutcomeRejected, 0, time.Millisecond)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	found := map[string]metricdata.Metrics{}
	for _, md := range rm.ScopeMetrics[0].Metrics {
		found[md.Name] = md
	}

	checkouts, ok := found["storefront.checkouts"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	assert.Len(t, checkouts.DataPoints, 2)

	items, ok := found["storefront.order_items"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, items.DataPoints, 1)
	assert.Equal(t, int64(3), items.DataPoints[0].Value)
}

func TestNilCheckoutMetricsIsNoop(t *testing.T) {
	var m *CheckoutMetrics
	m.Record(context.Background(), OutcomeFailed, 1, time.Second)
}
