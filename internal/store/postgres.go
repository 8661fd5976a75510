package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/safar/pharmacy-pos/internal/database"
	"github.com/safar/pharmacy-pos/internal/models"
	"github.com/safar/pharmacy-pos/internal/sale"
)

// Postgres adapts the package-level query functions to Repository.
type Postgres struct {
	db         *sql.DB
	maxRetries int
}

func NewPostgres(db *sql.DB, maxRetries int) *Postgres {
	return &Postgres{db: db, maxRetries: maxRetries}
}

func (p *Postgres) DB() *sql.DB {
	return p.db
}

func (p *Postgres) Close() error {
	return p.db.Close()
}

// Atomically runs fn in a READ COMMITTED transaction after locking every
// listed medicine row in id order. Deadlocks and lock timeouts rerun fn from
// scratch; anything fn returns is permanent.
func (p *Postgres) Atomically(ctx context.Context, medicineIDs []int64, fn func(sale.Tx) error) error {
	ids := sale.LockOrder(medicineIDs)

	return database.WithRetry(ctx, p.db, database.SaleTxOptions(p.maxRetries), func(tx *sql.Tx) error {
		locked, err := LockMedicines(ctx, tx, ids)
		if err != nil {
			return err
		}
		return fn(&pgSaleTx{tx: tx, locked: locked})
	})
}

type pgSaleTx struct {
	tx     *sql.Tx
	locked map[int64]*models.Medicine
}

func (t *pgSaleTx) ReadMedicine(ctx context.Context, id int64) (*models.Medicine, error) {
	if m, ok := t.locked[id]; ok {
		copied := *m
		return &copied, nil
	}
	return GetMedicine(ctx, t.tx, id)
}

func (t *pgSaleTx) ApplyStockDelta(ctx context.Context, id int64, delta int) error {
	if err := ApplyStockDelta(ctx, t.tx, id, delta); err != nil {
		return err
	}
	if m, ok := t.locked[id]; ok {
		m.Stock += delta
	}
	return nil
}

func (t *pgSaleTx) AppendSale(ctx context.Context, s *models.Sale) error {
	return InsertSale(ctx, t.tx, s)
}

func (p *Postgres) CreateMedicine(ctx context.Context, in models.MedicineInput) (*models.Medicine, error) {
	return CreateMedicine(ctx, p.db, in)
}

func (p *Postgres) CreateMedicines(ctx context.Context, in []models.MedicineInput) ([]models.Medicine, error) {
	return CreateMedicines(ctx, p.db, database.SaleTxOptions(p.maxRetries), in)
}

func (p *Postgres) GetMedicine(ctx context.Context, id int64) (*models.Medicine, error) {
	return GetMedicine(ctx, p.db, id)
}

func (p *Postgres) ListMedicines(ctx context.Context, page, pageSize int) (*OffsetPage, error) {
	return ListMedicines(ctx, p.db, page, pageSize)
}

func (p *Postgres) AllMedicines(ctx context.Context) ([]models.Medicine, error) {
	return AllMedicines(ctx, p.db)
}

func (p *Postgres) LowStockMedicines(ctx context.Context, threshold int) ([]models.Medicine, error) {
	return LowStockMedicines(ctx, p.db, threshold)
}

func (p *Postgres) ExpiringMedicines(ctx context.Context, before models.Date) ([]models.Medicine, error) {
	return ExpiringMedicines(ctx, p.db, before)
}

func (p *Postgres) UpdateMedicine(ctx context.Context, id int64, version int, in models.MedicineInput) (*models.Medicine, error) {
	return UpdateMedicine(ctx, p.db, id, version, in)
}

func (p *Postgres) DeleteMedicine(ctx context.Context, id int64) error {
	return DeleteMedicine(ctx, p.db, id)
}

func (p *Postgres) DeleteMedicines(ctx context.Context, ids []int64) ([]int64, error) {
	return DeleteMedicines(ctx, p.db, ids)
}

func (p *Postgres) GetSale(ctx context.Context, id int64) (*models.Sale, error) {
	return GetSale(ctx, p.db, id)
}

func (p *Postgres) ListSalesCursor(ctx context.Context, cursor string, limit int) (*CursorPage, error) {
	return ListSalesCursor(ctx, p.db, cursor, limit)
}

func (p *Postgres) ListSalesBetween(ctx context.Context, from, to time.Time) ([]models.Sale, error) {
	return ListSalesBetween(ctx, p.db, from, to)
}

var _ Repository = (*Postgres)(nil)
