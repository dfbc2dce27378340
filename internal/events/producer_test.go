package events

import (
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"github.com/safar/storefront/internal/models"
)

func TestNewOrderPlaced(t *testing.T) {
	placedAt := time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)
	order := &models.Order{
		ID:         11,
		CustomerID: 4,
		PlacedAt:   placedAt,
		Items: []models.OrderItem{
			{Product: models.SimpleProduct{ID: 1}, UnitPrice: decimal.RequireFromString("5.00"), Quantity: 2},
			{Product: models.SimpleProduct{ID: 2}, UnitPrice: decimal.RequireFromString("3.00"), Quantity: 1},
		},
	}

	event := NewOrderPlaced(42, order)

	if event.OrderID != 11 || event.CustomerID != 4 || event.UserID != 42 {
		t.Errorf("Unexpected identifiers: %+v", event)
	}
	if len(event.Items) != 2 || event.Items[1].ProductID != 2 {
		t.Errorf("Unexpected items: %+v", event.Items)
	}
	if !event.Total.Equal(decimal.RequireFromString("13.00")) {
		t.Errorf("Expected total 13.00, got %s", event.Total)
	}
	if !event.PlacedAt.Equal(placedAt) {
		t.Errorf("Expected placed at %s, got %s", placedAt, event.PlacedAt)
	}
}

func TestHeaderCarrier(t *testing.T) {
	msg := kafka.Message{}
	carrier := headerCarrier{msg: &msg}

	carrier.Set("traceparent", "a")
	carrier.Set("traceparent", "b")
	carrier.Set("baggage", "k=v")

	if got := carrier.Get("traceparent"); got != "b" {
		t.Errorf("Expected overwritten value b, got %q", got)
	}
	if len(msg.Headers) != 2 {
		t.Errorf("Expected 2 headers, got %d", len(msg.Headers))
	}
	if keys := carrier.Keys(); len(keys) != 2 || keys[1] != "baggage" {
		t.Errorf("Unexpected keys: %v", keys)
	}
	if carrier.Get("missing") != "" {
		t.Error("Expected empty value for missing header")
	}
}
