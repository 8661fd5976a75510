// Package events notifies observers about inventory and ledger changes.
package events

import (
	"context"
	"time"
)

type Type string

const (
	MedicineCreated Type = "medicine.created"
	MedicineUpdated Type = "medicine.updated"
	MedicineDeleted Type = "medicine.deleted"
	StockChanged    Type = "stock.changed"
	SaleRecorded    Type = "sale.recorded"
)

type Event struct {
	Type        Type      `json:"type"`
	MedicineIDs []int64   `json:"medicine_ids,omitempty"`
	SaleID      int64     `json:"sale_id,omitempty"`
	At          time.Time `json:"at"`
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

type NoopPublisher struct{}

func (NoopPublisher) Publish(_ context.Context, _ Event) error {
	return nil
}
