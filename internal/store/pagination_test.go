package store

import (
	"testing"
	"time"
)

func TestSaleCursorBefore(t *testing.T) {
	at := time.Date(2026, time.October, 3, 12, 0, 0, 0, time.UTC)
	c := SaleCursor{CreatedAt: at, ID: 10}

	if !c.Before(at, 9) {
		t.Error("Same timestamp with smaller id should come after the cursor")
	}
	if c.Before(at, 10) || c.Before(at, 11) {
		t.Error("Cursor row and newer ids must be excluded")
	}
	if !c.Before(at.Add(-time.Second), 50) {
		t.Error("Older sale should come after the cursor")
	}

	decoded, err := DecodeCursor(EncodeCursor(c))
	if err != nil {
		t.Fatalf("Decode cursor: %v", err)
	}
	if !decoded.CreatedAt.Equal(at) || decoded.ID != 10 {
		t.Errorf("Unexpected decoded cursor %+v", decoded)
	}

	if _, err := DecodeCursor("%%%"); err == nil {
		t.Error("Expected error for malformed cursor")
	}
}

func TestNormalizePage(t *testing.T) {
	page, size := NormalizePage(0, 500)
	if page != 1 || size != 20 {
		t.Errorf("Expected 1/20, got %d/%d", page, size)
	}

	p := NewOffsetPage(nil, 41, 1, 20)
	if p.TotalPages != 3 {
		t.Errorf("Expected 3 pages, got %d", p.TotalPages)
	}
}
