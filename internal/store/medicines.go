package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/lib/pq"
	"github.com/safar/pharmacy-pos/internal/database"
	"github.com/safar/pharmacy-pos/internal/models"
)

const medicineColumns = `id, name, manufacturer, category, batch_number, hsn_code, mrp, stock, expiry_date, created_at, updated_at, version`

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMedicine(row rowScanner, m *models.Medicine) error {
	return row.Scan(
		&m.ID,
		&m.Name,
		&m.Manufacturer,
		&m.Category,
		&m.BatchNumber,
		&m.HSNCode,
		&m.MRP,
		&m.Stock,
		&m.ExpiryDate,
		&m.CreatedAt,
		&m.UpdatedAt,
		&m.Version,
	)
}

func invalidMedicine(err error) error {
	return fmt.Errorf("%w: %v", database.ErrInvalidMedicine, err)
}

func CreateMedicine(ctx context.Context, q queryer, in models.MedicineInput) (*models.Medicine, error) {
	if err := in.Validate(); err != nil {
		return nil, invalidMedicine(err)
	}

	medicine := &models.Medicine{}

	query := `
		INSERT INTO medicines (name, manufacturer, category, batch_number, hsn_code, mrp, stock, expiry_date, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW(), 1)
		RETURNING ` + medicineColumns

	err := scanMedicine(q.QueryRowContext(ctx, query,
		in.Name, in.Manufacturer, in.Category, in.BatchNumber, in.HSNCode, in.MRP, in.Stock, in.ExpiryDate,
	), medicine)
	if err != nil {
		return nil, fmt.Errorf("create medicine: %w", err)
	}

	return medicine, nil
}

// CreateMedicines inserts a whole import in one transaction; one bad record
// rejects the batch.
func CreateMedicines(ctx context.Context, db *sql.DB, opts database.TxOptions, in []models.MedicineInput) ([]models.Medicine, error) {
	for i, m := range in {
		if err := m.Validate(); err != nil {
			return nil, invalidMedicine(fmt.Errorf("record %d: %w", i, err))
		}
	}

	var created []models.Medicine
	err := database.WithRetry(ctx, db, opts, func(tx *sql.Tx) error {
		created = make([]models.Medicine, 0, len(in))
		for _, m := range in {
			medicine, err := CreateMedicine(ctx, tx, m)
			if err != nil {
				return err
			}
			created = append(created, *medicine)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return created, nil
}

func GetMedicine(ctx context.Context, q queryer, id int64) (*models.Medicine, error) {
	medicine := &models.Medicine{}

	query := `SELECT ` + medicineColumns + `
		FROM medicines
		WHERE id = $1`

	err := scanMedicine(q.QueryRowContext(ctx, query, id), medicine)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrMedicineNotFound
		}
		return nil, fmt.Errorf("get medicine: %w", err)
	}

	return medicine, nil
}

// LockMedicines takes row locks on ids in ascending order so two checkouts
// sharing medicines cannot deadlock. Missing ids are simply absent from the
// result.
func LockMedicines(ctx context.Context, tx *sql.Tx, ids []int64) (map[int64]*models.Medicine, error) {
	query := `SELECT ` + medicineColumns + `
		FROM medicines
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE`

	rows, err := tx.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		if lockNotAvailable(err) {
			return nil, database.ErrLockTimeout
		}
		return nil, fmt.Errorf("lock medicines: %w", err)
	}
	defer rows.Close()

	locked := make(map[int64]*models.Medicine, len(ids))
	for rows.Next() {
		medicine := &models.Medicine{}
		if err := scanMedicine(rows, medicine); err != nil {
			return nil, fmt.Errorf("scan medicine: %w", err)
		}
		locked[medicine.ID] = medicine
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return locked, nil
}

func lockNotAvailable(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "55P03"
}

// ApplyStockDelta adds delta to a medicine's stock. The update matches no row
// when the result would go negative.
func ApplyStockDelta(ctx context.Context, tx *sql.Tx, id int64, delta int) error {
	result, err := tx.ExecContext(ctx,
		`UPDATE medicines
		 SET stock = stock + $1,
		     updated_at = NOW(),
		     version = version + 1
		 WHERE id = $2
		   AND stock + $1 >= 0`,
		delta, id)
	if err != nil {
		if database.IsCheckViolation(err) {
			return database.ErrInsufficientStock
		}
		return fmt.Errorf("apply stock delta: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		if _, err := GetMedicine(ctx, tx, id); err != nil {
			return err
		}
		return database.ErrInsufficientStock
	}

	return nil
}

func UpdateMedicine(ctx context.Context, db *sql.DB, id int64, version int, in models.MedicineInput) (*models.Medicine, error) {
	if err := in.Validate(); err != nil {
		return nil, invalidMedicine(err)
	}

	medicine := &models.Medicine{}

	query := `
		UPDATE medicines
		SET name = $1, manufacturer = $2, category = $3, batch_number = $4, hsn_code = $5,
		    mrp = $6, stock = $7, expiry_date = $8, version = version + 1, updated_at = NOW()
		WHERE id = $9 AND version = $10
		RETURNING ` + medicineColumns

	err := scanMedicine(db.QueryRowContext(ctx, query,
		in.Name, in.Manufacturer, in.Category, in.BatchNumber, in.HSNCode, in.MRP, in.Stock, in.ExpiryDate,
		id, version,
	), medicine)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if _, getErr := GetMedicine(ctx, db, id); getErr != nil {
				return nil, getErr
			}
			return nil, database.ErrOptimisticLockFailed
		}
		return nil, fmt.Errorf("update medicine: %w", err)
	}

	return medicine, nil
}

func DeleteMedicine(ctx context.Context, db *sql.DB, id int64) error {
	result, err := db.ExecContext(ctx, `DELETE FROM medicines WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete medicine: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return database.ErrMedicineNotFound
	}

	return nil
}

// DeleteMedicines removes every listed medicine that still exists and
// returns the ids that were removed, in ascending order.
func DeleteMedicines(ctx context.Context, db *sql.DB, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := db.QueryContext(ctx, `DELETE FROM medicines WHERE id = ANY($1) RETURNING id`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("delete medicines: %w", err)
	}
	defer rows.Close()

	var removed []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan deleted id: %w", err)
		}
		removed = append(removed, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deleted ids: %w", err)
	}

	sort.Slice(removed, func(i, j int) bool { return removed[i] < removed[j] })
	return removed, nil
}

func ListMedicines(ctx context.Context, db *sql.DB, page, pageSize int) (*OffsetPage, error) {
	var total int64
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM medicines`).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("count medicines: %w", err)
	}

	offset := (page - 1) * pageSize
	query := `SELECT ` + medicineColumns + `
		FROM medicines
		ORDER BY name, id
		LIMIT $1 OFFSET $2`

	medicines, err := queryMedicines(ctx, db, query, pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("list medicines: %w", err)
	}

	return NewOffsetPage(medicines, total, page, pageSize), nil
}

func AllMedicines(ctx context.Context, db *sql.DB) ([]models.Medicine, error) {
	medicines, err := queryMedicines(ctx, db, `SELECT `+medicineColumns+` FROM medicines ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("all medicines: %w", err)
	}
	return medicines, nil
}

func LowStockMedicines(ctx context.Context, db *sql.DB, threshold int) ([]models.Medicine, error) {
	query := `SELECT ` + medicineColumns + `
		FROM medicines
		WHERE stock < $1
		ORDER BY stock, name, id`

	medicines, err := queryMedicines(ctx, db, query, threshold)
	if err != nil {
		return nil, fmt.Errorf("low stock medicines: %w", err)
	}
	return medicines, nil
}

// ExpiringMedicines lists in-stock medicines expiring on or before the given day.
func ExpiringMedicines(ctx context.Context, db *sql.DB, before models.Date) ([]models.Medicine, error) {
	query := `SELECT ` + medicineColumns + `
		FROM medicines
		WHERE expiry_date IS NOT NULL
		  AND expiry_date <= $1
		  AND stock > 0
		ORDER BY expiry_date, name, id`

	medicines, err := queryMedicines(ctx, db, query, before)
	if err != nil {
		return nil, fmt.Errorf("expiring medicines: %w", err)
	}
	return medicines, nil
}

func queryMedicines(ctx context.Context, q queryer, query string, args ...any) ([]models.Medicine, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	medicines := []models.Medicine{}
	for rows.Next() {
		var medicine models.Medicine
		if err := scanMedicine(rows, &medicine); err != nil {
			return nil, fmt.Errorf("scan medicine: %w", err)
		}
		medicines = append(medicines, medicine)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return medicines, nil
}
