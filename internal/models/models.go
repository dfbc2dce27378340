package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Collection struct {
	ID            int64  `json:"id"`
	Title         string `json:"title"`
	ProductsCount int    `json:"products_count"`
}

type Product struct {
	ID           int64           `json:"id"`
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	Slug         string          `json:"slug"`
	Inventory    int             `json:"inventory"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	PriceWithTax decimal.Decimal `json:"price_with_tax"`
	CollectionID int64           `json:"collection"`
	LastUpdate   time.Time       `json:"last_update"`
}

// ApplyTax sets PriceWithTax to the unit price increased by rate.
func (p *Product) ApplyTax(rate decimal.Decimal) {
	p.PriceWithTax = p.UnitPrice.Mul(decimal.NewFromInt(1).Add(rate)).Round(2)
}

// SimpleProduct is the product summary embedded in cart and order lines.
type SimpleProduct struct {
	ID        int64           `json:"id"`
	Title     string          `json:"title"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type Review struct {
	ID          int64  `json:"id"`
	ProductID   int64  `json:"product"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Date        Date   `json:"date"`
}

type Cart struct {
	ID         uuid.UUID       `json:"id"`
	Items      []CartItem      `json:"items"`
	TotalPrice decimal.Decimal `json:"total_price"`
	CreatedAt  time.Time       `json:"created_at"`
}

type CartItem struct {
	ID         int64           `json:"id"`
	Product    SimpleProduct   `json:"product"`
	Quantity   int             `json:"quantity"`
	TotalPrice decimal.Decimal `json:"total_price"`
}

type Customer struct {
	ID         int64  `json:"id"`
	UserID     int64  `json:"user_id"`
	Phone      string `json:"phone"`
	BirthDate  *Date  `json:"birth_date"`
	Membership string `json:"membership"`
}

type Order struct {
	ID            int64       `json:"id"`
	CustomerID    int64       `json:"customer"`
	PlacedAt      time.Time   `json:"placed_at"`
	PaymentStatus string      `json:"payment_status"`
	Items         []OrderItem `json:"items"`
}

type OrderItem struct {
	ID        int64           `json:"id"`
	Product   SimpleProduct   `json:"product"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
}

const (
	PaymentStatusUnpaid   = "unpaid"
	PaymentStatusPending  = "pending"
	PaymentStatusComplete = "complete"
	PaymentStatusFailed   = "failed"
)

func ValidPaymentStatus(status string) bool {
	switch status {
	case PaymentStatusUnpaid, PaymentStatusPending, PaymentStatusComplete, PaymentStatusFailed:
		return true
	}
	return false
}

const (
	MembershipBronze = "B"
	MembershipSilver = "S"
	MembershipGold   = "G"
)

func ValidMembership(membership string) bool {
	switch membership {
	case MembershipBronze, MembershipSilver, MembershipGold:
		return true
	}
	return false
}

// LineTotal returns quantity × unit price.
func LineTotal(unitPrice decimal.Decimal, quantity int) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity)))
}
