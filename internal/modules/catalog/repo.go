package catalog

import (
	"context"

	"gorm.io/gorm"
)

type Repo struct{ db *gorm.DB }

// NewRepo accepts either a root handle or an open transaction; the order
// assembler re-reads through its tx so validation and write share a snapshot.
func NewRepo(db *gorm.DB) *Repo { return &Repo{db: db} }

func (r *Repo) ProductsByIDs(ctx context.Context, ids []string) (map[string]Product, error) {
	out := make(map[string]Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []Product
	if err := r.db.WithContext(ctx).
		Where("id IN ? AND is_active = ?", ids, true).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, p := range rows {
		out[p.ID] = p
	}
	return out, nil
}

func (r *Repo) VariantsByIDs(ctx context.Context, ids []string) (map[string]Variant, error) {
	out := make(map[string]Variant, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []Variant
	if err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, v := range rows {
		out[v.ID] = v
	}
	return out, nil
}

func (r *Repo) PaymentMethodByID(ctx context.Context, id string) (PaymentMethod, error) {
	var pm PaymentMethod
	err := r.db.WithContext(ctx).First(&pm, "id = ?", id).Error
	return pm, err
}

func (r *Repo) DiscountByCode(ctx context.Context, code string) (Discount, error) {
	var d Discount
	err := r.db.WithContext(ctx).First(&d, "code = ?", code).Error
	return d, err
}

// AddressExists is a presence check only; the address book owns validation.
func (r *Repo) AddressExists(ctx context.Context, id string) (bool, error) {
	var cnt int64
	err := r.db.WithContext(ctx).Model(&Address{}).Where("id = ?", id).Count(&cnt).Error
	return cnt > 0, err
}
