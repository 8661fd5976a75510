package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Medicine is one catalog entry. Stock is never negative; it changes only
// through inventory edits and committed sales.
type Medicine struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	Manufacturer string          `json:"manufacturer"`
	Category     string          `json:"category"`
	BatchNumber  string          `json:"batch_number"`
	HSNCode      string          `json:"hsn_code"`
	MRP          decimal.Decimal `json:"mrp"`
	Stock        int             `json:"stock"`
	ExpiryDate   Date            `json:"expiry_date"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	Version      int             `json:"version"`
}

// MedicineInput carries the editable fields of a Medicine.
type MedicineInput struct {
	Name         string          `json:"name"`
	Manufacturer string          `json:"manufacturer"`
	Category     string          `json:"category"`
	BatchNumber  string          `json:"batch_number"`
	HSNCode      string          `json:"hsn_code"`
	MRP          decimal.Decimal `json:"mrp"`
	Stock        int             `json:"stock"`
	ExpiryDate   Date            `json:"expiry_date"`
}

// Apply copies the editable fields onto m.
func (in MedicineInput) Apply(m *Medicine) {
	m.Name = in.Name
	m.Manufacturer = in.Manufacturer
	m.Category = in.Category
	m.BatchNumber = in.BatchNumber
	m.HSNCode = in.HSNCode
	m.MRP = in.MRP
	m.Stock = in.Stock
	m.ExpiryDate = in.ExpiryDate
}

type CartItem struct {
	MedicineID int64 `json:"medicine_id"`
	Quantity   int   `json:"quantity"`
}

type Customer struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// Sale is a finalized checkout. It is written once and never changed.
type Sale struct {
	ID                 int64           `json:"id"`
	Number             string          `json:"number"`
	Customer           Customer        `json:"customer"`
	Items              []SaleItem      `json:"items"`
	Subtotal           decimal.Decimal `json:"subtotal"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage"`
	DiscountAmount     decimal.Decimal `json:"discount_amount"`
	TotalSavings       decimal.Decimal `json:"total_savings"`
	Tax                decimal.Decimal `json:"tax"`
	Total              decimal.Decimal `json:"total"`
	CreatedAt          time.Time       `json:"created_at"`
}

// SaleItem snapshots the medicine as it was when sold.
type SaleItem struct {
	MedicineID  int64           `json:"medicine_id"`
	Name        string          `json:"name"`
	Quantity    int             `json:"quantity"`
	MRP         decimal.Decimal `json:"mrp"`
	Price       decimal.Decimal `json:"price"`
	BatchNumber string          `json:"batch_number"`
	HSNCode     string          `json:"hsn_code"`
}

// TaxableAmount is the subtotal after the bill-level discount.
func (s *Sale) TaxableAmount() decimal.Decimal {
	return s.Subtotal.Sub(s.DiscountAmount)
}

// Clone returns a deep copy so callers cannot alter a stored record.
func (s *Sale) Clone() *Sale {
	c := *s
	c.Items = append([]SaleItem(nil), s.Items...)
	return &c
}
