package models

import (
	"errors"
	"strings"
)

// Validate checks the fields an inventory edit may not leave inconsistent.
func (in MedicineInput) Validate() error {
	var errs []error
	if strings.TrimSpace(in.Name) == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if in.MRP.IsNegative() {
		errs = append(errs, errors.New("mrp must not be negative"))
	}
	if in.Stock < 0 {
		errs = append(errs, errors.New("stock must not be negative"))
	}
	return errors.Join(errs...)
}

// ValidPhone reports whether phone is exactly ten ASCII digits.
func ValidPhone(phone string) bool {
	if len(phone) != 10 {
		return false
	}
	for _, r := range phone {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
