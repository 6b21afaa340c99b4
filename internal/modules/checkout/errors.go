package checkout

import "fmt"

type OutOfStockItem struct {
	ProductID string
	VariantID string // empty when the product row tracks the stock
	Requested int
	Available int
}

type OutOfStockError struct {
	Items []OutOfStockItem
}

func (e *OutOfStockError) Error() string {
	if len(e.Items) == 0 {
		return "out of stock"
	}
	it := e.Items[0]
	ref := it.ProductID
	if it.VariantID != "" {
		ref = it.VariantID
	}
	return fmt.Sprintf("out of stock: item=%s requested=%d available=%d", ref, it.Requested, it.Available)
}
