// Package sale turns a cart into a committed sale.
//
// The Processor never trusts cart-held prices or stock counts: every line is
// re-read from the store inside one atomic scope, checked, decremented and
// recorded together with the sale, or nothing happens at all.
package sale

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/safar/pharmacy-pos/internal/database"
	"github.com/safar/pharmacy-pos/internal/models"
	"github.com/safar/pharmacy-pos/internal/pricing"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Store is the atomic multi-record update capability the Processor needs.
// Atomically must run fn so that reads and writes on the listed medicines
// are isolated from concurrent stock changes, and must discard every write
// fn made if fn returns an error. Implementations may rerun fn after a
// storage-level conflict.
type Store interface {
	Atomically(ctx context.Context, medicineIDs []int64, fn func(Tx) error) error
}

// Tx is the view of the stores inside an Atomically call.
type Tx interface {
	ReadMedicine(ctx context.Context, id int64) (*models.Medicine, error)
	ApplyStockDelta(ctx context.Context, id int64, delta int) error
	// AppendSale stores sale and fills in ID, Number and CreatedAt.
	AppendSale(ctx context.Context, sale *models.Sale) error
}

// MaxQuantity bounds a single line, merged or not, to the range of the
// quantity and stock columns.
const MaxQuantity = math.MaxInt32

type Processor struct {
	store  Store
	logger logrus.FieldLogger
}

func NewProcessor(store Store, logger logrus.FieldLogger) *Processor {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Processor{store: store, logger: logger}
}

// ProcessSale validates the request, then commits stock decrements and the
// sale record as one unit. Failures are never retried here: a stock conflict
// needs the operator to change the cart.
func (p *Processor) ProcessSale(ctx context.Context, cart []models.CartItem, customer models.Customer, discountPercentage decimal.Decimal) (*models.Sale, error) {
	lines, err := normalizeCart(cart)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(customer.Name) == "" {
		return nil, validationf("customer name is required")
	}
	if !pricing.ValidDiscount(discountPercentage) {
		return nil, validationf("discount percentage %s outside [0, 100]", discountPercentage)
	}

	ids := make([]int64, len(lines))
	for i, l := range lines {
		ids[i] = l.MedicineID
	}

	var committed *models.Sale
	err = p.store.Atomically(ctx, ids, func(tx Tx) error {
		medicines := make([]*models.Medicine, len(lines))
		for i, line := range lines {
			med, err := tx.ReadMedicine(ctx, line.MedicineID)
			if err != nil {
				if errors.Is(err, database.ErrMedicineNotFound) {
					return &MissingMedicineError{MedicineID: line.MedicineID}
				}
				return fmt.Errorf("read medicine %d: %w", line.MedicineID, err)
			}
			if med.Stock < line.Quantity {
				return &StockConflictError{
					MedicineID: med.ID,
					Name:       med.Name,
					Available:  med.Stock,
					Requested:  line.Quantity,
				}
			}
			medicines[i] = med
		}

		s := buildSale(lines, medicines, customer, discountPercentage)

		for _, line := range lines {
			if err := tx.ApplyStockDelta(ctx, line.MedicineID, -line.Quantity); err != nil {
				return fmt.Errorf("decrement stock of medicine %d: %w", line.MedicineID, err)
			}
		}

		if err := tx.AppendSale(ctx, s); err != nil {
			return fmt.Errorf("append sale: %w", err)
		}

		committed = s
		return nil
	})
	if err != nil {
		p.logger.WithFields(logrus.Fields{
			"lines":    len(lines),
			"customer": customer.Name,
		}).WithError(err).Warn("sale rejected")
		return nil, err
	}

	p.logger.WithFields(logrus.Fields{
		"sale_id": committed.ID,
		"number":  committed.Number,
		"lines":   len(committed.Items),
		"total":   committed.Total.StringFixed(2),
	}).Info("sale committed")

	return committed, nil
}

// normalizeCart validates quantities and merges repeated medicines so each
// medicine is checked against its combined quantity. First-seen order is kept.
func normalizeCart(cart []models.CartItem) ([]models.CartItem, error) {
	if len(cart) == 0 {
		return nil, validationf("cart is empty")
	}

	index := make(map[int64]int, len(cart))
	lines := make([]models.CartItem, 0, len(cart))
	for _, item := range cart {
		if item.MedicineID <= 0 {
			return nil, validationf("invalid medicine id %d", item.MedicineID)
		}
		if item.Quantity <= 0 {
			return nil, validationf("quantity for medicine %d must be positive, got %d", item.MedicineID, item.Quantity)
		}
		if item.Quantity > MaxQuantity {
			return nil, validationf("quantity for medicine %d exceeds %d", item.MedicineID, MaxQuantity)
		}
		if i, ok := index[item.MedicineID]; ok {
			if lines[i].Quantity > MaxQuantity-item.Quantity {
				return nil, validationf("combined quantity for medicine %d exceeds %d", item.MedicineID, MaxQuantity)
			}
			lines[i].Quantity += item.Quantity
			continue
		}
		index[item.MedicineID] = len(lines)
		lines = append(lines, item)
	}
	return lines, nil
}

func buildSale(lines []models.CartItem, medicines []*models.Medicine, customer models.Customer, discountPercentage decimal.Decimal) *models.Sale {
	priced := make([]pricing.Line, len(lines))
	items := make([]models.SaleItem, len(lines))
	for i, line := range lines {
		med := medicines[i]
		priced[i] = pricing.Line{MRP: med.MRP, Quantity: line.Quantity}
		items[i] = models.SaleItem{
			MedicineID:  med.ID,
			Name:        med.Name,
			Quantity:    line.Quantity,
			MRP:         med.MRP,
			Price:       pricing.UnitPrice(med.MRP),
			BatchNumber: med.BatchNumber,
			HSNCode:     med.HSNCode,
		}
	}

	totals := pricing.Compute(priced, discountPercentage)

	return &models.Sale{
		Customer: models.Customer{
			Name:  strings.TrimSpace(customer.Name),
			Phone: strings.TrimSpace(customer.Phone),
		},
		Items:              items,
		Subtotal:           totals.Subtotal,
		DiscountPercentage: discountPercentage,
		DiscountAmount:     totals.DiscountAmount,
		TotalSavings:       totals.TotalSavings,
		Tax:                totals.Tax,
		Total:              totals.Total,
	}
}

// LockOrder returns ids sorted ascending and deduplicated. Stores that take
// row locks should take them in this order.
func LockOrder(ids []int64) []int64 {
	out := append([]int64(nil), ids...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	n := 0
	for i, id := range out {
		if i > 0 && id == out[n-1] {
			continue
		}
		out[n] = id
		n++
	}
	return out[:n]
}
