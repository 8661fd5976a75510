package database

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/lib/pq"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorClass
	}{
		{"nil", nil, ErrorClassPermanent},
		{"serialization", &pq.Error{Code: "40001"}, ErrorClassSerialization},
		{"deadlock", &pq.Error{Code: "40P01"}, ErrorClassDeadlock},
		{"lock not available", &pq.Error{Code: "55P03"}, ErrorClassTransient},
		{"wrapped serialization", fmt.Errorf("commit transaction: %w", &pq.Error{Code: "40001"}), ErrorClassSerialization},
		{"unique violation", &pq.Error{Code: "23505"}, ErrorClassPermanent},
		{"check violation", &pq.Error{Code: "23514"}, ErrorClassPermanent},
		{"no rows", sql.ErrNoRows, ErrorClassPermanent},
		{"insufficient stock", ErrInsufficientStock, ErrorClassPermanent},
		{"lock timeout sentinel", fmt.Errorf("lock medicine 4: %w", ErrLockTimeout), ErrorClassTransient},
		{"deadline", context.DeadlineExceeded, ErrorClassPermanent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyError(tt.err); got != tt.want {
				t.Errorf("ClassifyError(%v) = %s, want %s", tt.err, got, tt.want)
			}
		})
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(&pq.Error{Code: "40001"}) {
		t.Error("Serialization failure should be retryable")
	}
	if IsRetryable(ErrMedicineNotFound) {
		t.Error("Missing medicine should not be retryable")
	}
}

func TestIsCheckViolation(t *testing.T) {
	if !IsCheckViolation(fmt.Errorf("apply delta: %w", &pq.Error{Code: "23514"})) {
		t.Error("Expected wrapped 23514 to be a check violation")
	}
	if IsCheckViolation(&pq.Error{Code: "23505"}) {
		t.Error("Unique violation is not a check violation")
	}
}
