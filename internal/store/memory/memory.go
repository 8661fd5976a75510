// Package memory is a single-process Repository for local use and tests.
//
// One writer lock guards all state, which makes Atomically serializable
// within the process. It gives no guarantees across processes.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/safar/pharmacy-pos/internal/database"
	"github.com/safar/pharmacy-pos/internal/models"
	"github.com/safar/pharmacy-pos/internal/sale"
	"github.com/safar/pharmacy-pos/internal/store"
)

type Store struct {
	mu             sync.RWMutex
	medicines      map[int64]models.Medicine
	sales          []*models.Sale
	salesByID      map[int64]*models.Sale
	nextMedicineID int64
	nextSaleID     int64
	now            func() time.Time
}

func New() *Store {
	return &Store{
		medicines:      make(map[int64]models.Medicine),
		salesByID:      make(map[int64]*models.Sale),
		nextMedicineID: 1,
		nextSaleID:     1,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source; used by tests that need stable dates.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
	return s
}

func (s *Store) Close() error {
	return nil
}

// Atomically holds the writer lock for the whole of fn. Writes are staged
// and applied only when fn returns nil.
func (s *Store) Atomically(ctx context.Context, _ []int64, fn func(sale.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{store: s, deltas: make(map[int64]int)}
	if err := fn(tx); err != nil {
		return err
	}

	// s.sales stays ordered by (CreatedAt, ID) even if the clock steps back,
	// which the cursor listing relies on.
	now := s.now()
	if n := len(s.sales); n > 0 && now.Before(s.sales[n-1].CreatedAt) {
		now = s.sales[n-1].CreatedAt
	}
	for id, delta := range tx.deltas {
		m := s.medicines[id]
		m.Stock += delta
		m.UpdatedAt = now
		m.Version++
		s.medicines[id] = m
	}
	for _, staged := range tx.sales {
		staged.ID = s.nextSaleID
		s.nextSaleID++
		staged.CreatedAt = now
		stored := staged.Clone()
		s.sales = append(s.sales, stored)
		s.salesByID[stored.ID] = stored
	}
	return nil
}

type memTx struct {
	store  *Store
	deltas map[int64]int
	sales  []*models.Sale
}

func (t *memTx) ReadMedicine(_ context.Context, id int64) (*models.Medicine, error) {
	m, ok := t.store.medicines[id]
	if !ok {
		return nil, database.ErrMedicineNotFound
	}
	m.Stock += t.deltas[id]
	return &m, nil
}

func (t *memTx) ApplyStockDelta(_ context.Context, id int64, delta int) error {
	m, ok := t.store.medicines[id]
	if !ok {
		return database.ErrMedicineNotFound
	}
	if m.Stock+t.deltas[id]+delta < 0 {
		return database.ErrInsufficientStock
	}
	t.deltas[id] += delta
	return nil
}

func (t *memTx) AppendSale(_ context.Context, s *models.Sale) error {
	if s.Number == "" {
		s.Number = "SALE-" + uuid.NewString()
	}
	t.sales = append(t.sales, s)
	return nil
}

func (s *Store) CreateMedicine(ctx context.Context, in models.MedicineInput) (*models.Medicine, error) {
	created, err := s.CreateMedicines(ctx, []models.MedicineInput{in})
	if err != nil {
		return nil, err
	}
	return &created[0], nil
}

func (s *Store) CreateMedicines(_ context.Context, in []models.MedicineInput) ([]models.Medicine, error) {
	for i, m := range in {
		if err := m.Validate(); err != nil {
			return nil, fmt.Errorf("%w: record %d: %v", database.ErrInvalidMedicine, i, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	created := make([]models.Medicine, 0, len(in))
	for _, input := range in {
		m := models.Medicine{
			ID:        s.nextMedicineID,
			CreatedAt: now,
			UpdatedAt: now,
			Version:   1,
		}
		input.Apply(&m)
		s.nextMedicineID++
		s.medicines[m.ID] = m
		created = append(created, m)
	}
	return created, nil
}

func (s *Store) GetMedicine(_ context.Context, id int64) (*models.Medicine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.medicines[id]
	if !ok {
		return nil, database.ErrMedicineNotFound
	}
	return &m, nil
}

func (s *Store) ListMedicines(ctx context.Context, page, pageSize int) (*store.OffsetPage, error) {
	all, err := s.AllMedicines(ctx)
	if err != nil {
		return nil, err
	}

	start := (page - 1) * pageSize
	if start > len(all) {
		start = len(all)
	}
	end := start + pageSize
	if end > len(all) {
		end = len(all)
	}

	return store.NewOffsetPage(all[start:end], int64(len(all)), page, pageSize), nil
}

func (s *Store) AllMedicines(_ context.Context) ([]models.Medicine, error) {
	return s.filterMedicines(func(models.Medicine) bool { return true }, byName), nil
}

func (s *Store) LowStockMedicines(_ context.Context, threshold int) ([]models.Medicine, error) {
	return s.filterMedicines(func(m models.Medicine) bool { return m.Stock < threshold }, func(a, b models.Medicine) bool {
		if a.Stock != b.Stock {
			return a.Stock < b.Stock
		}
		return byName(a, b)
	}), nil
}

func (s *Store) ExpiringMedicines(_ context.Context, before models.Date) ([]models.Medicine, error) {
	return s.filterMedicines(func(m models.Medicine) bool {
		return !m.ExpiryDate.IsZero() && !m.ExpiryDate.After(before.Time) && m.Stock > 0
	}, func(a, b models.Medicine) bool {
		if !a.ExpiryDate.Equal(b.ExpiryDate.Time) {
			return a.ExpiryDate.Before(b.ExpiryDate.Time)
		}
		return byName(a, b)
	}), nil
}

func byName(a, b models.Medicine) bool {
	if a.Name != b.Name {
		return a.Name < b.Name
	}
	return a.ID < b.ID
}

func (s *Store) filterMedicines(keep func(models.Medicine) bool, less func(a, b models.Medicine) bool) []models.Medicine {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Medicine, 0, len(s.medicines))
	for _, m := range s.medicines {
		if keep(m) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func (s *Store) UpdateMedicine(_ context.Context, id int64, version int, in models.MedicineInput) (*models.Medicine, error) {
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", database.ErrInvalidMedicine, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.medicines[id]
	if !ok {
		return nil, database.ErrMedicineNotFound
	}
	if m.Version != version {
		return nil, database.ErrOptimisticLockFailed
	}

	in.Apply(&m)
	m.Version++
	m.UpdatedAt = s.now()
	s.medicines[id] = m
	return &m, nil
}

func (s *Store) DeleteMedicine(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.medicines[id]; !ok {
		return database.ErrMedicineNotFound
	}
	delete(s.medicines, id)
	return nil
}

func (s *Store) DeleteMedicines(_ context.Context, ids []int64) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []int64
	for _, id := range ids {
		if _, ok := s.medicines[id]; ok {
			delete(s.medicines, id)
			removed = append(removed, id)
		}
	}
	sort.Slice(removed, func(i, j int) bool { return removed[i] < removed[j] })
	return removed, nil
}

func (s *Store) GetSale(_ context.Context, id int64) (*models.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.salesByID[id]
	if !ok {
		return nil, database.ErrSaleNotFound
	}
	return stored.Clone(), nil
}

func (s *Store) ListSalesCursor(_ context.Context, cursor string, limit int) (*store.CursorPage, error) {
	cursorData, err := store.DecodeCursor(cursor)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	sales := []models.Sale{}
	hasMore := false
	// s.sales is in commit order, which is (created_at, id) order.
	for i := len(s.sales) - 1; i >= 0; i-- {
		stored := s.sales[i]
		if !cursorData.Before(stored.CreatedAt, stored.ID) {
			continue
		}
		if len(sales) == limit {
			hasMore = true
			break
		}
		sales = append(sales, *stored.Clone())
	}

	var nextCursor string
	if hasMore && len(sales) > 0 {
		last := sales[len(sales)-1]
		nextCursor = store.EncodeCursor(store.SaleCursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}

	return &store.CursorPage{
		Items:      sales,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

func (s *Store) ListSalesBetween(_ context.Context, from, to time.Time) ([]models.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sales := []models.Sale{}
	for _, stored := range s.sales {
		if !from.IsZero() && stored.CreatedAt.Before(from) {
			continue
		}
		if !to.IsZero() && stored.CreatedAt.After(to) {
			continue
		}
		sales = append(sales, *stored.Clone())
	}
	return sales, nil
}

var _ store.Repository = (*Store)(nil)
