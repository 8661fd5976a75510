// Package service coordinates the repository, the sale processor and change
// notifications behind the operations the HTTP layer exposes.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/safar/pharmacy-pos/internal/events"
	"github.com/safar/pharmacy-pos/internal/models"
	"github.com/safar/pharmacy-pos/internal/report"
	"github.com/safar/pharmacy-pos/internal/sale"
	"github.com/safar/pharmacy-pos/internal/store"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type Options struct {
	LowStockThreshold int
	ExpiryWindow      time.Duration
	Now               func() time.Time
}

type Service struct {
	repo      store.Repository
	processor *sale.Processor
	publisher events.Publisher
	logger    logrus.FieldLogger
	opts      Options
}

func New(repo store.Repository, publisher events.Publisher, logger logrus.FieldLogger, opts Options) *Service {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		repo:      repo,
		processor: sale.NewProcessor(repo, logger),
		publisher: publisher,
		logger:    logger,
		opts:      opts,
	}
}

// notify publishes an event. A lost notification must not undo a committed
// change, so failures are only logged.
func (s *Service) notify(ctx context.Context, event events.Event) {
	event.At = s.opts.Now()
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.WithError(err).WithField("event", event.Type).Warn("publish event failed")
	}
}

func (s *Service) CreateMedicine(ctx context.Context, in models.MedicineInput) (*models.Medicine, error) {
	m, err := s.repo.CreateMedicine(ctx, in)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, events.Event{Type: events.MedicineCreated, MedicineIDs: []int64{m.ID}})
	return m, nil
}

func (s *Service) ImportMedicines(ctx context.Context, in []models.MedicineInput) ([]models.Medicine, error) {
	if len(in) == 0 {
		return []models.Medicine{}, nil
	}
	created, err := s.repo.CreateMedicines(ctx, in)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, len(created))
	for i := range created {
		ids[i] = created[i].ID
	}
	s.notify(ctx, events.Event{Type: events.MedicineCreated, MedicineIDs: ids})
	s.logger.WithField("count", len(created)).Info("medicines imported")
	return created, nil
}

func (s *Service) GetMedicine(ctx context.Context, id int64) (*models.Medicine, error) {
	return s.repo.GetMedicine(ctx, id)
}

func (s *Service) ListMedicines(ctx context.Context, page, pageSize int) (*store.OffsetPage, error) {
	page, pageSize = store.NormalizePage(page, pageSize)
	return s.repo.ListMedicines(ctx, page, pageSize)
}

func (s *Service) UpdateMedicine(ctx context.Context, id int64, version int, in models.MedicineInput) (*models.Medicine, error) {
	m, err := s.repo.UpdateMedicine(ctx, id, version, in)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, events.Event{Type: events.MedicineUpdated, MedicineIDs: []int64{id}})
	return m, nil
}

func (s *Service) DeleteMedicine(ctx context.Context, id int64) error {
	if err := s.repo.DeleteMedicine(ctx, id); err != nil {
		return err
	}
	s.notify(ctx, events.Event{Type: events.MedicineDeleted, MedicineIDs: []int64{id}})
	return nil
}

// DeleteMedicines returns the ids actually removed; unknown ids are skipped
// and never announced.
func (s *Service) DeleteMedicines(ctx context.Context, ids []int64) ([]int64, error) {
	removed, err := s.repo.DeleteMedicines(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(removed) > 0 {
		s.notify(ctx, events.Event{Type: events.MedicineDeleted, MedicineIDs: removed})
	}
	return removed, nil
}

func (s *Service) LowStockMedicines(ctx context.Context) ([]models.Medicine, error) {
	return s.repo.LowStockMedicines(ctx, s.opts.LowStockThreshold)
}

// ExpiringMedicines lists stocked medicines expiring within window of today;
// a non-positive window uses the configured default.
func (s *Service) ExpiringMedicines(ctx context.Context, window time.Duration) ([]models.Medicine, error) {
	if window <= 0 {
		window = s.opts.ExpiryWindow
	}
	return s.repo.ExpiringMedicines(ctx, models.DateOf(s.opts.Now().Add(window)))
}

// Checkout runs the sale processor and announces the stock change.
func (s *Service) Checkout(ctx context.Context, cart []models.CartItem, customer models.Customer, discountPercentage decimal.Decimal) (*models.Sale, error) {
	committed, err := s.processor.ProcessSale(ctx, cart, customer, discountPercentage)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, len(committed.Items))
	for i, item := range committed.Items {
		ids[i] = item.MedicineID
	}
	s.notify(ctx, events.Event{Type: events.StockChanged, MedicineIDs: ids, SaleID: committed.ID})
	s.notify(ctx, events.Event{Type: events.SaleRecorded, SaleID: committed.ID})

	return committed, nil
}

func (s *Service) GetSale(ctx context.Context, id int64) (*models.Sale, error) {
	return s.repo.GetSale(ctx, id)
}

func (s *Service) ListSales(ctx context.Context, cursor string, limit int) (*store.CursorPage, error) {
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return s.repo.ListSalesCursor(ctx, cursor, limit)
}

func (s *Service) Dashboard(ctx context.Context) (*report.Dashboard, error) {
	medicines, err := s.repo.AllMedicines(ctx)
	if err != nil {
		return nil, fmt.Errorf("load medicines: %w", err)
	}
	sales, err := s.repo.ListSalesBetween(ctx, time.Time{}, time.Time{})
	if err != nil {
		return nil, fmt.Errorf("load sales: %w", err)
	}

	d := report.BuildDashboard(medicines, sales, s.opts.LowStockThreshold, s.opts.Now())
	return &d, nil
}

func (s *Service) SalesReport(ctx context.Context, from, to time.Time) ([]report.SalesLine, error) {
	sales, err := s.repo.ListSalesBetween(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("load sales: %w", err)
	}
	return report.SalesLines(sales), nil
}

func (s *Service) TaxReport(ctx context.Context, from, to time.Time) (*report.TaxSummary, error) {
	sales, err := s.repo.ListSalesBetween(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("load sales: %w", err)
	}
	summary := report.BuildTaxSummary(sales)
	return &summary, nil
}

func (s *Service) StockSummary(ctx context.Context) (string, error) {
	medicines, err := s.repo.AllMedicines(ctx)
	if err != nil {
		return "", fmt.Errorf("load medicines: %w", err)
	}
	return report.StockSummary(medicines, s.opts.LowStockThreshold), nil
}
