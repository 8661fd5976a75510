package store

import (
	"context"
	"time"

	"github.com/safar/pharmacy-pos/internal/models"
	"github.com/safar/pharmacy-pos/internal/sale"
)

// Repository is the inventory store plus the sales ledger. Postgres is the
// reference implementation; memory.Store is a single-process stand-in.
type Repository interface {
	sale.Store

	CreateMedicine(ctx context.Context, in models.MedicineInput) (*models.Medicine, error)
	CreateMedicines(ctx context.Context, in []models.MedicineInput) ([]models.Medicine, error)
	GetMedicine(ctx context.Context, id int64) (*models.Medicine, error)
	ListMedicines(ctx context.Context, page, pageSize int) (*OffsetPage, error)
	AllMedicines(ctx context.Context) ([]models.Medicine, error)
	LowStockMedicines(ctx context.Context, threshold int) ([]models.Medicine, error)
	ExpiringMedicines(ctx context.Context, before models.Date) ([]models.Medicine, error)
	// UpdateMedicine succeeds only if the stored version still equals version.
	UpdateMedicine(ctx context.Context, id int64, version int, in models.MedicineInput) (*models.Medicine, error)
	DeleteMedicine(ctx context.Context, id int64) error
	// DeleteMedicines returns the ids that existed and were removed.
	DeleteMedicines(ctx context.Context, ids []int64) ([]int64, error)

	GetSale(ctx context.Context, id int64) (*models.Sale, error)
	ListSalesCursor(ctx context.Context, cursor string, limit int) (*CursorPage, error)
	// ListSalesBetween returns sales with from <= created_at <= to, oldest
	// first. A zero bound is open.
	ListSalesBetween(ctx context.Context, from, to time.Time) ([]models.Sale, error)

	Close() error
}
