package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestDateJSON(t *testing.T) {
	d := NewDate(1990, time.March, 7)

	data, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(data) != `"1990-03-07"` {
		t.Errorf("Expected \"1990-03-07\", got %s", data)
	}

	var decoded Date
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !decoded.Equal(d.Time) {
		t.Errorf("Expected %s, got %s", d, decoded)
	}

	if err := json.Unmarshal([]byte(`"07/03/1990"`), &decoded); err == nil {
		t.Error("Expected error for non ISO date")
	}
}

func TestDateScan(t *testing.T) {
	var d Date
	if err := d.Scan(time.Date(2024, time.May, 1, 13, 45, 0, 0, time.UTC)); err != nil {
		t.Fatalf("Scan time: %v", err)
	}
	if d.String() != "2024-05-01" {
		t.Errorf("Expected 2024-05-01, got %s", d)
	}

	if err := d.Scan([]byte("2023-12-31")); err != nil {
		t.Fatalf("Scan bytes: %v", err)
	}
	if d.String() != "2023-12-31" {
		t.Errorf("Expected 2023-12-31, got %s", d)
	}

	if err := d.Scan(42); err == nil {
		t.Error("Expected error scanning int")
	}
}

func TestLineTotal(t *testing.T) {
	got := LineTotal(decimal.RequireFromString("5.00"), 2)
	if !got.Equal(decimal.RequireFromString("10.00")) {
		t.Errorf("Expected 10.00, got %s", got)
	}
}

func TestProductApplyTax(t *testing.T) {
	p := Product{UnitPrice: decimal.RequireFromString("10.00")}
	p.ApplyTax(decimal.RequireFromString("0.10"))

	if !p.PriceWithTax.Equal(decimal.RequireFromString("11.00")) {
		t.Errorf("Expected 11.00, got %s", p.PriceWithTax)
	}
}

func TestValidPaymentStatus(t *testing.T) {
	for _, status := range []string{PaymentStatusUnpaid, PaymentStatusPending, PaymentStatusComplete, PaymentStatusFailed} {
		if !ValidPaymentStatus(status) {
			t.Errorf("Expected %q to be valid", status)
		}
	}
	if ValidPaymentStatus("refunded") {
		t.Error("Expected refunded to be invalid")
	}
}
