package checkout

import (
	"context"
	"sort"

	"gorm.io/gorm"

	"lojinha.com/app/internal/shared/dbx"
)

// Stock lives on the variant row when the line is variant-scoped, otherwise
// on the product row.
type StockLine struct {
	ProductID string
	VariantID string
	Qty       int
}

// DeductStockInTx runs inside a caller-owned transaction (no nested tx);
// the order assembler calls it after writing the order rows. Rows are read
// FOR UPDATE and decremented with a stock guard in the WHERE clause, so two
// concurrent checkouts cannot both pass the availability check and drive
// stock negative.
func DeductStockInTx(ctx context.Context, tx *gorm.DB, lines []StockLine) error {
	if len(lines) == 0 {
		return nil
	}

	want := make(map[stockKey]int, len(lines))
	for _, ln := range lines {
		q := ln.Qty
		if q < 1 {
			q = 1
		}
		want[keyFor(ln)] += q
	}

	// deterministic order to avoid lock cycles between concurrent checkouts
	keys := make([]stockKey, 0, len(want))
	for k := range want {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].less(keys[j]) })

	avail, err := readStockForUpdate(ctx, tx, keys)
	if err != nil {
		return err
	}

	var oos []OutOfStockItem
	for _, k := range keys {
		req := want[k]
		av, ok := avail[k]
		if !ok || av < req {
			oos = append(oos, OutOfStockItem{ProductID: k.productID, VariantID: k.variantID, Requested: req, Available: av})
		}
	}
	if len(oos) > 0 {
		return &OutOfStockError{Items: oos}
	}

	for _, k := range keys {
		req := want[k]
		q := tx.WithContext(ctx).Table(k.table()).
			Where(k.where(), k.id(), req).
			UpdateColumn("stock", gorm.Expr("stock - ?", req))
		if q.Error != nil {
			return q.Error
		}
		if q.RowsAffected != 1 {
			// lost the race between read and decrement; abort the tx
			return &OutOfStockError{Items: []OutOfStockItem{{ProductID: k.productID, VariantID: k.variantID, Requested: req, Available: 0}}}
		}
	}

	return nil
}

// ReturnStockInTx puts quantities back, compensating a cancelled order
// whose stock was already decremented in a committed transaction.
func ReturnStockInTx(ctx context.Context, tx *gorm.DB, lines []StockLine) error {
	for _, ln := range lines {
		q := ln.Qty
		if q < 1 {
			q = 1
		}

		// variant row only tracks stock when the column is set; otherwise
		// the decrement happened on the product row
		if ln.VariantID != "" {
			res := tx.WithContext(ctx).Table("product_variants").
				Where("id = ? AND stock IS NOT NULL", ln.VariantID).
				UpdateColumn("stock", gorm.Expr("stock + ?", q))
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 1 {
				continue
			}
		}

		if err := tx.WithContext(ctx).Table("products").
			Where("id = ?", ln.ProductID).
			UpdateColumn("stock", gorm.Expr("stock + ?", q)).Error; err != nil {
			return err
		}
	}
	return nil
}

type stockKey struct {
	productID string
	variantID string
}

func keyFor(ln StockLine) stockKey {
	if ln.VariantID != "" {
		return stockKey{variantID: ln.VariantID, productID: ln.ProductID}
	}
	return stockKey{productID: ln.ProductID}
}

func (k stockKey) less(o stockKey) bool {
	if k.table() != o.table() {
		return k.table() < o.table()
	}
	return k.id() < o.id()
}

func (k stockKey) table() string {
	if k.variantID != "" {
		return "product_variants"
	}
	return "products"
}

func (k stockKey) id() string {
	if k.variantID != "" {
		return k.variantID
	}
	return k.productID
}

func (k stockKey) where() string {
	return "id = ? AND stock >= ?"
}

func readStockForUpdate(ctx context.Context, tx *gorm.DB, keys []stockKey) (map[stockKey]int, error) {
	byTable := map[string][]string{}
	for _, k := range keys {
		byTable[k.table()] = append(byTable[k.table()], k.id())
	}

	type stockRow struct {
		ID    string `gorm:"column:id"`
		Stock int    `gorm:"column:stock"`
	}

	out := make(map[stockKey]int, len(keys))
	for table, ids := range byTable {
		sort.Strings(ids)
		var rows []stockRow
		if err := dbx.LockForUpdate(tx.WithContext(ctx).Table(table)).
			Where("id IN ?", ids).
			Order("id ASC").
			Find(&rows).Error; err != nil {
			return nil, err
		}
		for _, r := range rows {
			for _, k := range keys {
				if k.table() == table && k.id() == r.ID {
					out[k] = r.Stock
				}
			}
		}
	}
	return out, nil
}
