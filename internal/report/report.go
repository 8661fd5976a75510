// Package report derives read-only summaries from the catalog and the
// ledger. Amounts are rounded to two places here, at the edge.
package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/safar/pharmacy-pos/internal/models"
	"github.com/safar/pharmacy-pos/internal/pricing"
	"github.com/shopspring/decimal"
)

type MonthlyRevenue struct {
	Month   string          `json:"month"`
	Revenue decimal.Decimal `json:"revenue"`
	Sales   int             `json:"sales"`
}

type Dashboard struct {
	TotalMedicines   int              `json:"total_medicines"`
	LowStockCount    int              `json:"low_stock_count"`
	TotalRevenue     decimal.Decimal  `json:"total_revenue"`
	SalesThisMonth   int              `json:"sales_this_month"`
	RevenueThisMonth decimal.Decimal  `json:"revenue_this_month"`
	Monthly          []MonthlyRevenue `json:"monthly"`
}

func BuildDashboard(medicines []models.Medicine, sales []models.Sale, lowStockThreshold int, now time.Time) Dashboard {
	d := Dashboard{
		TotalMedicines:   len(medicines),
		TotalRevenue:     decimal.Zero,
		RevenueThisMonth: decimal.Zero,
		Monthly:          []MonthlyRevenue{},
	}

	for _, m := range medicines {
		if m.Stock < lowStockThreshold {
			d.LowStockCount++
		}
	}

	thisMonth := monthKey(now)
	byMonth := make(map[string]*MonthlyRevenue)
	for _, s := range sales {
		d.TotalRevenue = d.TotalRevenue.Add(s.Total)

		key := monthKey(s.CreatedAt)
		if key == thisMonth {
			d.SalesThisMonth++
			d.RevenueThisMonth = d.RevenueThisMonth.Add(s.Total)
		}

		bucket, ok := byMonth[key]
		if !ok {
			bucket = &MonthlyRevenue{Month: key, Revenue: decimal.Zero}
			byMonth[key] = bucket
		}
		bucket.Revenue = bucket.Revenue.Add(s.Total)
		bucket.Sales++
	}

	for _, bucket := range byMonth {
		bucket.Revenue = pricing.Round2(bucket.Revenue)
		d.Monthly = append(d.Monthly, *bucket)
	}
	sort.Slice(d.Monthly, func(i, j int) bool { return d.Monthly[i].Month < d.Monthly[j].Month })

	d.TotalRevenue = pricing.Round2(d.TotalRevenue)
	d.RevenueThisMonth = pricing.Round2(d.RevenueThisMonth)

	return d
}

func monthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}

type SalesLine struct {
	SaleID                 int64           `json:"sale_id"`
	SaleNumber             string          `json:"sale_number"`
	Date                   time.Time       `json:"date"`
	CustomerName           string          `json:"customer_name"`
	CustomerPhone          string          `json:"customer_phone"`
	MedicineID             int64           `json:"medicine_id"`
	MedicineName           string          `json:"medicine_name"`
	Quantity               int             `json:"quantity"`
	PricePerUnit           decimal.Decimal `json:"price_per_unit"`
	LineTotal              decimal.Decimal `json:"line_total"`
	SaleDiscountPercentage decimal.Decimal `json:"sale_discount_percentage"`
	SaleTotal              decimal.Decimal `json:"sale_total"`
}

// SalesLines flattens sales into one row per sold line. Names come from the
// sale snapshot, so deleted medicines still report correctly.
func SalesLines(sales []models.Sale) []SalesLine {
	lines := []SalesLine{}
	for _, s := range sales {
		for _, item := range s.Items {
			lines = append(lines, SalesLine{
				SaleID:                 s.ID,
				SaleNumber:             s.Number,
				Date:                   s.CreatedAt,
				CustomerName:           s.Customer.Name,
				CustomerPhone:          s.Customer.Phone,
				MedicineID:             item.MedicineID,
				MedicineName:           item.Name,
				Quantity:               item.Quantity,
				PricePerUnit:           pricing.Round2(item.Price),
				LineTotal:              pricing.Round2(pricing.LineTotal(item.Price, item.Quantity)),
				SaleDiscountPercentage: s.DiscountPercentage,
				SaleTotal:              pricing.Round2(s.Total),
			})
		}
	}
	return lines
}

type TaxLine struct {
	SaleID             int64           `json:"sale_id"`
	SaleNumber         string          `json:"sale_number"`
	Date               time.Time       `json:"date"`
	CustomerName       string          `json:"customer_name"`
	Subtotal           decimal.Decimal `json:"subtotal"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage"`
	DiscountAmount     decimal.Decimal `json:"discount_amount"`
	TaxableAmount      decimal.Decimal `json:"taxable_amount"`
	Tax                decimal.Decimal `json:"tax"`
	Total              decimal.Decimal `json:"total"`
}

type TaxSummary struct {
	Lines         []TaxLine       `json:"lines"`
	TaxableAmount decimal.Decimal `json:"taxable_amount"`
	Tax           decimal.Decimal `json:"tax"`
	Total         decimal.Decimal `json:"total"`
}

func BuildTaxSummary(sales []models.Sale) TaxSummary {
	summary := TaxSummary{
		Lines:         make([]TaxLine, 0, len(sales)),
		TaxableAmount: decimal.Zero,
		Tax:           decimal.Zero,
		Total:         decimal.Zero,
	}

	for i := range sales {
		s := &sales[i]
		taxable := s.TaxableAmount()
		summary.Lines = append(summary.Lines, TaxLine{
			SaleID:             s.ID,
			SaleNumber:         s.Number,
			Date:               s.CreatedAt,
			CustomerName:       s.Customer.Name,
			Subtotal:           pricing.Round2(s.Subtotal),
			DiscountPercentage: s.DiscountPercentage,
			DiscountAmount:     pricing.Round2(s.DiscountAmount),
			TaxableAmount:      pricing.Round2(taxable),
			Tax:                pricing.Round2(s.Tax),
			Total:              pricing.Round2(s.Total),
		})
		summary.TaxableAmount = summary.TaxableAmount.Add(taxable)
		summary.Tax = summary.Tax.Add(s.Tax)
		summary.Total = summary.Total.Add(s.Total)
	}

	summary.TaxableAmount = pricing.Round2(summary.TaxableAmount)
	summary.Tax = pricing.Round2(summary.Tax)
	summary.Total = pricing.Round2(summary.Total)

	return summary
}

// StockSummary renders the catalog as plain text, one medicine per line,
// for use as context by an assistant.
func StockSummary(medicines []models.Medicine, lowStockThreshold int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d medicines in catalog.\n", len(medicines))
	for _, m := range medicines {
		fmt.Fprintf(&b, "- %s (%s): %d units at %s", m.Name, m.Category, m.Stock, m.MRP.StringFixed(2))
		if !m.ExpiryDate.IsZero() {
			fmt.Fprintf(&b, ", expires %s", m.ExpiryDate)
		}
		if m.Stock < lowStockThreshold {
			b.WriteString(", LOW STOCK")
		}
		b.WriteString("\n")
	}
	return b.String()
}
