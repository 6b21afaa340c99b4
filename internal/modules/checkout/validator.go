package checkout

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"lojinha.com/app/internal/modules/catalog"
)

// Client-submitted line item. Never trusted; exists to be compared against
// the authoritative catalog row.
type ClaimedItem struct {
	ProductID  string
	Name       string
	PriceCents int
	Quantity   int
}

type ItemResult struct {
	ProductID         string
	ClaimedPriceCents int
	Quantity          int
	SubtotalCents     int // from the db price, never the claimed one
	DBPriceCents      int
	PriceMatch        bool
}

type Result struct {
	IsValid              bool
	CalculatedTotalCents int
	Items                []ItemResult
	Errors               []string
}

// Total mismatch tolerance: one minor unit (currency rounding).
const totalToleranceCents = 1

// Validate recomputes the cart total from authoritative product rows and
// collects every mismatch. No side effects; callers must not reuse the
// result across the validate→commit boundary — the order assembler re-reads
// inside its own transaction.
func Validate(items []ClaimedItem, claimedTotalCents int, products map[string]catalog.Product) Result {
	res := Result{}

	for _, it := range items {
		qty := it.Quantity
		if qty < 1 {
			qty = 1
		}

		p, ok := products[it.ProductID]
		if !ok {
			res.Errors = append(res.Errors, fmt.Sprintf("produto %s não encontrado ou inativo", it.ProductID))
			res.Items = append(res.Items, ItemResult{
				ProductID:         it.ProductID,
				ClaimedPriceCents: it.PriceCents,
				Quantity:          qty,
			})
			continue
		}

		sub := p.PriceCents * qty
		res.CalculatedTotalCents += sub

		match := it.PriceCents == p.PriceCents
		if !match {
			res.Errors = append(res.Errors, fmt.Sprintf(
				"preço de %q mudou: atual %s, informado %s",
				p.Title, FormatCents(p.PriceCents), FormatCents(it.PriceCents)))
		}
		if p.Stock < qty {
			res.Errors = append(res.Errors, fmt.Sprintf(
				"estoque insuficiente para %q: disponível %d, solicitado %d", p.Title, p.Stock, qty))
		}

		res.Items = append(res.Items, ItemResult{
			ProductID:         it.ProductID,
			ClaimedPriceCents: it.PriceCents,
			Quantity:          qty,
			SubtotalCents:     sub,
			DBPriceCents:      p.PriceCents,
			PriceMatch:        match,
		})
	}

	diff := claimedTotalCents - res.CalculatedTotalCents
	if diff < 0 {
		diff = -diff
	}
	if diff > totalToleranceCents {
		res.Errors = append(res.Errors, fmt.Sprintf(
			"total divergente: calculado %s, informado %s",
			FormatCents(res.CalculatedTotalCents), FormatCents(claimedTotalCents)))
	}

	res.IsValid = len(res.Errors) == 0
	return res
}

// ValidateItems runs Validate against a fresh authoritative read. Pass an
// open transaction to validate against the same snapshot the write will use.
func ValidateItems(ctx context.Context, db *gorm.DB, items []ClaimedItem, claimedTotalCents int) (Result, error) {
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}
	products, err := catalog.NewRepo(db).ProductsByIDs(ctx, ids)
	if err != nil {
		return Result{}, err
	}
	return Validate(items, claimedTotalCents, products), nil
}

// CentsFromDecimal converts a client-submitted amount to integer cents,
// rounding at the second decimal place.
func CentsFromDecimal(d decimal.Decimal) int {
	return int(d.Shift(2).Round(0).IntPart())
}

func FormatCents(cents int) string {
	return decimal.New(int64(cents), -2).StringFixed(2)
}
