package sale

import (
	"errors"
	"fmt"

	"github.com/safar/pharmacy-pos/internal/database"
)

// ErrValidation marks a request rejected before touching any store.
var ErrValidation = errors.New("invalid sale request")

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// StockConflictError reports a line whose quantity exceeds the stock found
// at commit time.
type StockConflictError struct {
	MedicineID int64
	Name       string
	Available  int
	Requested  int
}

func (e *StockConflictError) Error() string {
	return fmt.Sprintf("insufficient stock for medicine %q (id %d): available %d, requested %d",
		e.Name, e.MedicineID, e.Available, e.Requested)
}

func (e *StockConflictError) Unwrap() error {
	return database.ErrInsufficientStock
}

// MissingMedicineError reports a cart line whose medicine was deleted after
// the cart was built.
type MissingMedicineError struct {
	MedicineID int64
}

func (e *MissingMedicineError) Error() string {
	return fmt.Sprintf("medicine %d not found", e.MedicineID)
}

func (e *MissingMedicineError) Unwrap() error {
	return database.ErrMedicineNotFound
}

func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsStockConflict reports whether err is an insufficient-stock or
// vanished-medicine rejection.
func IsStockConflict(err error) bool {
	return errors.Is(err, database.ErrInsufficientStock) || errors.Is(err, database.ErrMedicineNotFound)
}
