package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/safar/pharmacy-pos/internal/database"
	"github.com/safar/pharmacy-pos/internal/models"
)

const saleColumns = `id, number, customer_name, customer_phone, subtotal, discount_percentage, discount_amount, total_savings, tax, total, created_at`

func generateSaleNumber() string {
	return "SALE-" + uuid.NewString()
}

func scanSale(row rowScanner, s *models.Sale) error {
	return row.Scan(
		&s.ID,
		&s.Number,
		&s.Customer.Name,
		&s.Customer.Phone,
		&s.Subtotal,
		&s.DiscountPercentage,
		&s.DiscountAmount,
		&s.TotalSavings,
		&s.Tax,
		&s.Total,
		&s.CreatedAt,
	)
}

// InsertSale appends a sale and its lines inside tx, filling in the
// store-assigned ID, Number and CreatedAt.
func InsertSale(ctx context.Context, tx *sql.Tx, s *models.Sale) error {
	if s.Number == "" {
		s.Number = generateSaleNumber()
	}

	err := tx.QueryRowContext(ctx,
		`INSERT INTO sales (number, customer_name, customer_phone, subtotal, discount_percentage,
		                    discount_amount, total_savings, tax, total, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		 RETURNING id, created_at`,
		s.Number, s.Customer.Name, s.Customer.Phone, s.Subtotal, s.DiscountPercentage,
		s.DiscountAmount, s.TotalSavings, s.Tax, s.Total,
	).Scan(&s.ID, &s.CreatedAt)
	if err != nil {
		return fmt.Errorf("create sale: %w", err)
	}

	for i, item := range s.Items {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO sale_items (sale_id, line_no, medicine_id, name, quantity, mrp, price, batch_number, hsn_code)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			s.ID, i, item.MedicineID, item.Name, item.Quantity, item.MRP, item.Price, item.BatchNumber, item.HSNCode)
		if err != nil {
			return fmt.Errorf("create sale item: %w", err)
		}
	}

	return nil
}

func GetSale(ctx context.Context, db *sql.DB, id int64) (*models.Sale, error) {
	s := &models.Sale{}

	query := `SELECT ` + saleColumns + `
		FROM sales
		WHERE id = $1`

	err := scanSale(db.QueryRowContext(ctx, query, id), s)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrSaleNotFound
		}
		return nil, fmt.Errorf("get sale: %w", err)
	}

	items, err := saleItems(ctx, db, []int64{id})
	if err != nil {
		return nil, err
	}
	s.Items = items[id]

	return s, nil
}

func ListSalesCursor(ctx context.Context, db *sql.DB, cursor string, limit int) (*CursorPage, error) {
	cursorData, err := DecodeCursor(cursor)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}

	query := `SELECT ` + saleColumns + `
		FROM sales
		WHERE (created_at, id) < ($1, $2)
		ORDER BY created_at DESC, id DESC
		LIMIT $3`

	sales, err := querySales(ctx, db, query, cursorData.CreatedAt, cursorData.ID, limit+1)
	if err != nil {
		return nil, fmt.Errorf("list sales: %w", err)
	}

	hasMore := len(sales) > limit
	if hasMore {
		sales = sales[:limit]
	}

	var nextCursor string
	if hasMore && len(sales) > 0 {
		last := sales[len(sales)-1]
		nextCursor = EncodeCursor(SaleCursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}

	return &CursorPage{
		Items:      sales,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

func ListSalesBetween(ctx context.Context, db *sql.DB, from, to time.Time) ([]models.Sale, error) {
	var lower, upper any
	if !from.IsZero() {
		lower = from
	}
	if !to.IsZero() {
		upper = to
	}

	query := `SELECT ` + saleColumns + `
		FROM sales
		WHERE ($1::timestamptz IS NULL OR created_at >= $1)
		  AND ($2::timestamptz IS NULL OR created_at <= $2)
		ORDER BY created_at, id`

	sales, err := querySales(ctx, db, query, lower, upper)
	if err != nil {
		return nil, fmt.Errorf("list sales between: %w", err)
	}

	return sales, nil
}

// querySales loads sales and attaches their lines with one extra query.
func querySales(ctx context.Context, db *sql.DB, query string, args ...any) ([]models.Sale, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := []models.Sale{}
	for rows.Next() {
		var s models.Sale
		if err := scanSale(rows, &s); err != nil {
			return nil, fmt.Errorf("scan sale: %w", err)
		}
		sales = append(sales, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	if len(sales) == 0 {
		return sales, nil
	}

	ids := make([]int64, len(sales))
	for i := range sales {
		ids[i] = sales[i].ID
	}

	items, err := saleItems(ctx, db, ids)
	if err != nil {
		return nil, err
	}
	for i := range sales {
		sales[i].Items = items[sales[i].ID]
	}

	return sales, nil
}

func saleItems(ctx context.Context, db *sql.DB, saleIDs []int64) (map[int64][]models.SaleItem, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT sale_id, medicine_id, name, quantity, mrp, price, batch_number, hsn_code
		 FROM sale_items
		 WHERE sale_id = ANY($1)
		 ORDER BY sale_id, line_no`,
		pq.Array(saleIDs))
	if err != nil {
		return nil, fmt.Errorf("get sale items: %w", err)
	}
	defer rows.Close()

	items := make(map[int64][]models.SaleItem, len(saleIDs))
	for rows.Next() {
		var saleID int64
		var item models.SaleItem
		err := rows.Scan(
			&saleID,
			&item.MedicineID,
			&item.Name,
			&item.Quantity,
			&item.MRP,
			&item.Price,
			&item.BatchNumber,
			&item.HSNCode,
		)
		if err != nil {
			return nil, fmt.Errorf("scan sale item: %w", err)
		}
		items[saleID] = append(items[saleID], item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return items, nil
}
