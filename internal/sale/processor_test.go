package sale_test

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/safar/pharmacy-pos/internal/database"
	"github.com/safar/pharmacy-pos/internal/models"
	"github.com/safar/pharmacy-pos/internal/sale"
	"github.com/safar/pharmacy-pos/internal/store/memory"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

var (
	customer = models.Customer{Name: "Asha Verma", Phone: "9876543210"}
	zeroTime time.Time
)

func newProcessor(t *testing.T) (*sale.Processor, *memory.Store) {
	t.Helper()
	logger, _ := test.NewNullLogger()
	repo := memory.New()
	return sale.NewProcessor(repo, logger), repo
}

func createMedicine(t *testing.T, repo *memory.Store, name, mrp string, stock int) *models.Medicine {
	t.Helper()
	m, err := repo.CreateMedicine(context.Background(), models.MedicineInput{
		Name:        name,
		BatchNumber: "B-" + name,
		HSNCode:     "3004",
		MRP:         decimal.RequireFromString(mrp),
		Stock:       stock,
	})
	if err != nil {
		t.Fatalf("Create medicine: %v", err)
	}
	return m
}

func stockOf(t *testing.T, repo *memory.Store, id int64) int {
	t.Helper()
	m, err := repo.GetMedicine(context.Background(), id)
	if err != nil {
		t.Fatalf("Get medicine: %v", err)
	}
	return m.Stock
}

func salesCount(t *testing.T, repo *memory.Store) int {
	t.Helper()
	sales, err := repo.ListSalesBetween(context.Background(), zeroTime, zeroTime)
	if err != nil {
		t.Fatalf("List sales: %v", err)
	}
	return len(sales)
}

func TestProcessSale(t *testing.T) {
	p, repo := newProcessor(t)
	ctx := context.Background()
	m := createMedicine(t, repo, "Amoxicillin", "100.00", 10)

	s, err := p.ProcessSale(ctx, []models.CartItem{{MedicineID: m.ID, Quantity: 3}}, customer, decimal.NewFromInt(10))
	if err != nil {
		t.Fatalf("Process sale: %v", err)
	}

	if s.ID == 0 || s.Number == "" || s.CreatedAt.IsZero() {
		t.Errorf("Expected store-assigned id, number and timestamp, got %d %q %s", s.ID, s.Number, s.CreatedAt)
	}

	want := map[string]decimal.Decimal{
		"subtotal": s.Subtotal,
		"discount": s.DiscountAmount,
		"savings":  s.TotalSavings,
		"taxable":  s.TaxableAmount(),
		"tax":      s.Tax,
		"total":    s.Total,
	}
	expected := map[string]string{
		"subtotal": "300.00",
		"discount": "30.00",
		"savings":  "30.00",
		"taxable":  "270.00",
		"tax":      "13.50",
		"total":    "283.50",
	}
	for name, got := range want {
		if got.StringFixed(2) != expected[name] {
			t.Errorf("Expected %s %s, got %s", name, expected[name], got.StringFixed(2))
		}
	}

	if got := stockOf(t, repo, m.ID); got != 7 {
		t.Errorf("Expected stock 7, got %d", got)
	}

	stored, err := repo.GetSale(ctx, s.ID)
	if err != nil {
		t.Fatalf("Get sale: %v", err)
	}
	if len(stored.Items) != 1 {
		t.Fatalf("Expected 1 line item, got %d", len(stored.Items))
	}
	item := stored.Items[0]
	if item.MedicineID != m.ID || item.Quantity != 3 || item.BatchNumber != m.BatchNumber || item.HSNCode != "3004" {
		t.Errorf("Unexpected line item %+v", item)
	}
	if !item.Price.Equal(item.MRP) {
		t.Errorf("Expected line price to equal MRP, got %s vs %s", item.Price, item.MRP)
	}
}

func TestProcessSaleInsufficientStock(t *testing.T) {
	p, repo := newProcessor(t)
	m := createMedicine(t, repo, "Cetirizine", "100.00", 2)

	_, err := p.ProcessSale(context.Background(), []models.CartItem{{MedicineID: m.ID, Quantity: 3}}, customer, decimal.Zero)

	var conflict *sale.StockConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("Expected stock conflict, got: %v", err)
	}
	if conflict.MedicineID != m.ID || conflict.Available != 2 || conflict.Requested != 3 {
		t.Errorf("Unexpected conflict details %+v", conflict)
	}
	if !errors.Is(err, database.ErrInsufficientStock) || !sale.IsStockConflict(err) {
		t.Errorf("Expected error to match ErrInsufficientStock, got %v", err)
	}

	if got := stockOf(t, repo, m.ID); got != 2 {
		t.Errorf("Stock should remain unchanged at 2, got %d", got)
	}
	if n := salesCount(t, repo); n != 0 {
		t.Errorf("Expected empty ledger, got %d sales", n)
	}
}

func TestProcessSaleIsAllOrNothing(t *testing.T) {
	p, repo := newProcessor(t)
	plenty := createMedicine(t, repo, "Ibuprofen", "35.00", 50)
	scarce := createMedicine(t, repo, "Insulin", "420.00", 1)

	_, err := p.ProcessSale(context.Background(), []models.CartItem{
		{MedicineID: plenty.ID, Quantity: 5},
		{MedicineID: scarce.ID, Quantity: 2},
	}, customer, decimal.Zero)
	if !sale.IsStockConflict(err) {
		t.Fatalf("Expected stock conflict, got: %v", err)
	}

	if got := stockOf(t, repo, plenty.ID); got != 50 {
		t.Errorf("First line must not be decremented, stock is %d", got)
	}
	if n := salesCount(t, repo); n != 0 {
		t.Errorf("Expected empty ledger, got %d sales", n)
	}
}

func TestProcessSaleMissingMedicine(t *testing.T) {
	p, repo := newProcessor(t)
	m := createMedicine(t, repo, "Azithromycin", "80.00", 4)
	if err := repo.DeleteMedicine(context.Background(), m.ID); err != nil {
		t.Fatalf("Delete medicine: %v", err)
	}

	_, err := p.ProcessSale(context.Background(), []models.CartItem{{MedicineID: m.ID, Quantity: 1}}, customer, decimal.Zero)

	var missing *sale.MissingMedicineError
	if !errors.As(err, &missing) || missing.MedicineID != m.ID {
		t.Fatalf("Expected missing medicine error for %d, got: %v", m.ID, err)
	}
	if !errors.Is(err, database.ErrMedicineNotFound) || !sale.IsStockConflict(err) {
		t.Errorf("Expected error to match ErrMedicineNotFound, got %v", err)
	}
}

func TestProcessSaleMergesRepeatedLines(t *testing.T) {
	p, repo := newProcessor(t)
	m := createMedicine(t, repo, "ORS", "20.00", 5)

	_, err := p.ProcessSale(context.Background(), []models.CartItem{
		{MedicineID: m.ID, Quantity: 3},
		{MedicineID: m.ID, Quantity: 3},
	}, customer, decimal.Zero)
	if !sale.IsStockConflict(err) {
		t.Fatalf("Expected combined quantity to exceed stock, got: %v", err)
	}

	s, err := p.ProcessSale(context.Background(), []models.CartItem{
		{MedicineID: m.ID, Quantity: 2},
		{MedicineID: m.ID, Quantity: 1},
	}, customer, decimal.Zero)
	if err != nil {
		t.Fatalf("Process sale: %v", err)
	}
	if len(s.Items) != 1 || s.Items[0].Quantity != 3 {
		t.Errorf("Expected one merged line of 3, got %+v", s.Items)
	}
	if got := stockOf(t, repo, m.ID); got != 2 {
		t.Errorf("Expected stock 2, got %d", got)
	}
}

func TestProcessSaleRejectsQuantityOverflow(t *testing.T) {
	p, repo := newProcessor(t)
	m := createMedicine(t, repo, "Ibuprofen", "10.00", 5)

	tests := []struct {
		name string
		cart []models.CartItem
	}{
		{"merged lines wrap around", []models.CartItem{
			{MedicineID: m.ID, Quantity: math.MaxInt},
			{MedicineID: m.ID, Quantity: math.MaxInt},
		}},
		{"single line above column range", []models.CartItem{
			{MedicineID: m.ID, Quantity: sale.MaxQuantity + 1},
		}},
		{"merged lines above column range", []models.CartItem{
			{MedicineID: m.ID, Quantity: sale.MaxQuantity},
			{MedicineID: m.ID, Quantity: 1},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.ProcessSale(context.Background(), tt.cart, customer, decimal.Zero)
			if !sale.IsValidation(err) {
				t.Errorf("Expected validation error, got: %v", err)
			}
		})
	}

	if got := stockOf(t, repo, m.ID); got != 5 {
		t.Errorf("Expected stock to stay at 5, got %d", got)
	}
	if n := salesCount(t, repo); n != 0 {
		t.Errorf("Expected no sales, got %d", n)
	}
}

func TestProcessSaleUsesStoredPrice(t *testing.T) {
	p, repo := newProcessor(t)
	ctx := context.Background()
	m := createMedicine(t, repo, "Vitamin D3", "50.00", 10)

	in := models.MedicineInput{Name: m.Name, BatchNumber: "B-NEW", HSNCode: "3004", MRP: decimal.NewFromInt(60), Stock: 10}
	if _, err := repo.UpdateMedicine(ctx, m.ID, m.Version, in); err != nil {
		t.Fatalf("Update medicine: %v", err)
	}

	s, err := p.ProcessSale(ctx, []models.CartItem{{MedicineID: m.ID, Quantity: 1}}, customer, decimal.Zero)
	if err != nil {
		t.Fatalf("Process sale: %v", err)
	}
	if !s.Items[0].MRP.Equal(decimal.NewFromInt(60)) || s.Items[0].BatchNumber != "B-NEW" {
		t.Errorf("Expected the current catalog record to be snapshotted, got %+v", s.Items[0])
	}

	in.MRP = decimal.NewFromInt(75)
	if _, err := repo.UpdateMedicine(ctx, m.ID, m.Version+2, in); err != nil {
		t.Fatalf("Second update: %v", err)
	}
	stored, err := repo.GetSale(ctx, s.ID)
	if err != nil {
		t.Fatalf("Get sale: %v", err)
	}
	if !stored.Items[0].MRP.Equal(decimal.NewFromInt(60)) {
		t.Errorf("Catalog edit changed a historical sale: %s", stored.Items[0].MRP)
	}
}

func TestProcessSaleValidation(t *testing.T) {
	p, repo := newProcessor(t)
	m := createMedicine(t, repo, "Pantoprazole", "90.00", 10)
	line := []models.CartItem{{MedicineID: m.ID, Quantity: 1}}

	tests := []struct {
		name     string
		cart     []models.CartItem
		customer models.Customer
		discount decimal.Decimal
	}{
		{"empty cart", nil, customer, decimal.Zero},
		{"zero quantity", []models.CartItem{{MedicineID: m.ID, Quantity: 0}}, customer, decimal.Zero},
		{"negative quantity", []models.CartItem{{MedicineID: m.ID, Quantity: -1}}, customer, decimal.Zero},
		{"bad medicine id", []models.CartItem{{MedicineID: 0, Quantity: 1}}, customer, decimal.Zero},
		{"blank customer", line, models.Customer{Name: "  ", Phone: "9876543210"}, decimal.Zero},
		{"negative discount", line, customer, decimal.NewFromInt(-1)},
		{"discount over 100", line, customer, decimal.NewFromInt(101)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.ProcessSale(context.Background(), tt.cart, tt.customer, tt.discount)
			if !sale.IsValidation(err) {
				t.Errorf("Expected validation error, got: %v", err)
			}
		})
	}

	if got := stockOf(t, repo, m.ID); got != 10 {
		t.Errorf("Validation failures must not touch stock, got %d", got)
	}
}

func TestConcurrentSalesNeverOversell(t *testing.T) {
	p, repo := newProcessor(t)
	m := createMedicine(t, repo, "Metformin", "12.00", 10)

	concurrency := 8
	var wg sync.WaitGroup
	results := make(chan error, concurrency)

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.ProcessSale(context.Background(), []models.CartItem{{MedicineID: m.ID, Quantity: 3}}, customer, decimal.Zero)
			results <- err
		}()
	}

	wg.Wait()
	close(results)

	successCount := 0
	for err := range results {
		switch {
		case err == nil:
			successCount++
		case sale.IsStockConflict(err):
		default:
			t.Errorf("Unexpected error: %v", err)
		}
	}

	if successCount != 3 {
		t.Errorf("Expected 3 successful sales, got %d", successCount)
	}
	if got := stockOf(t, repo, m.ID); got != 10-3*successCount {
		t.Errorf("Expected stock %d, got %d", 10-3*successCount, got)
	}
	if n := salesCount(t, repo); n != successCount {
		t.Errorf("Expected %d ledger records, got %d", successCount, n)
	}
}

type failingStore struct {
	err error
}

func (f failingStore) Atomically(context.Context, []int64, func(sale.Tx) error) error {
	return f.err
}

func TestProcessSaleStoreFailure(t *testing.T) {
	boom := errors.New("connection reset")
	p := sale.NewProcessor(failingStore{err: boom}, logrus.New())

	_, err := p.ProcessSale(context.Background(), []models.CartItem{{MedicineID: 1, Quantity: 1}}, customer, decimal.Zero)
	if !errors.Is(err, boom) {
		t.Fatalf("Expected store error, got: %v", err)
	}
	if sale.IsValidation(err) || sale.IsStockConflict(err) {
		t.Errorf("Store failure misclassified: %v", err)
	}
}

func TestLockOrder(t *testing.T) {
	got := sale.LockOrder([]int64{9, 3, 9, 1, 3})
	want := []int64{1, 3, 9}
	if len(got) != len(want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Expected %v, got %v", want, got)
		}
	}
}
