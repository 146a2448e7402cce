package sqlite

import (
	"context"
	"time"

	"gorm.io/gorm"

	"caixa/backend/internal/domain"
	"caixa/backend/internal/ledger"
	"caixa/backend/internal/store"
	"caixa/backend/internal/xid"
)

func (s *Store) CreateSale(ctx context.Context, sale domain.Sale, commission *domain.Commission) (*domain.Sale, error) {
	if len(sale.Items) == 0 {
		return nil, store.Invalid("sale requires at least one item")
	}
	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}
	sale.Items = append([]domain.SaleItem(nil), sale.Items...)
	sale.Payments = append([]domain.Payment{}, sale.Payments...)
	for i := range sale.Items {
		if sale.Items[i].ID == "" {
			sale.Items[i].ID = xid.New("si")
		}
	}
	for i := range sale.Payments {
		if sale.Payments[i].ID == "" {
			sale.Payments[i].ID = xid.New("pay")
		}
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, _, err := applyMovements(tx, ledger.SaleMovements(sale)); err != nil {
			return err
		}
		row := newSaleRow(sale)
		if err := tx.Create(&row).Error; err != nil {
			if isDuplicate(err) {
				return store.Wrap(store.ErrConflict, "sale %s already exists", sale.ID)
			}
			return err
		}
		if commission == nil {
			return nil
		}
		c := commissionRow(*commission)
		if c.ID == "" {
			c.ID = xid.New("com")
		}
		c.SaleID = sale.ID
		c.CreatedAt = sale.CreatedAt
		return tx.Create(&c).Error
	})
	if err != nil {
		return nil, err
	}
	return &sale, nil
}

func (s *Store) GetSale(ctx context.Context, id string) (*domain.Sale, error) {
	return getSale(s.db.WithContext(ctx), id)
}

func getSale(tx *gorm.DB, id string) (*domain.Sale, error) {
	var row saleRow
	if err := tx.Where("id = ?", id).First(&row).Error; err != nil {
		return nil, notFound(err, "sale", id)
	}
	sale := row.toDomain()
	return &sale, nil
}

func (s *Store) ListSales(ctx context.Context, filter domain.SaleFilter) ([]domain.Sale, error) {
	q := s.db.WithContext(ctx).Model(&saleRow{})
	q = eq(q, "operator_id", filter.OperatorID)
	q = eq(q, "customer_id", filter.CustomerID)
	q = between(q, "created_at", filter.From, filter.To)

	var rows []saleRow
	if err := limit(q.Order("created_at DESC, id DESC"), filter.Limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return convert(rows, saleRow.toDomain), nil
}

func (s *Store) ListCommissions(ctx context.Context, filter domain.CommissionFilter) ([]domain.Commission, error) {
	q := s.db.WithContext(ctx).Model(&commissionRow{})
	q = eq(q, "operator_id", filter.OperatorID)
	q = eq(q, "status", filter.Status)
	q = between(q, "created_at", filter.From, filter.To)

	var rows []commissionRow
	if err := limit(q.Order("created_at DESC, id DESC"), filter.Limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return convert(rows, func(r commissionRow) domain.Commission { return domain.Commission(r) }), nil
}

func (s *Store) CreateReturn(ctx context.Context, ret domain.Return) (*domain.Return, error) {
	var out domain.Return
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sale, err := getSale(tx, ret.SaleID)
		if err != nil {
			return err
		}
		returned, err := returnedQty(tx, sale.ID)
		if err != nil {
			return err
		}
		prepared, movements, err := ledger.PrepareReturn(*sale, returned, ret)
		if err != nil {
			return err
		}
		if _, _, err := applyMovements(tx, movements); err != nil {
			return err
		}
		row := returnRow{
			ID:         prepared.ID,
			SaleID:     prepared.SaleID,
			OperatorID: prepared.OperatorID,
			TotalCents: prepared.TotalCents,
			Items:      prepared.Items,
			CreatedAt:  prepared.CreatedAt,
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		out = prepared
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Store) GetReturnedQtyBySale(ctx context.Context, saleID string) (map[string]int, error) {
	return returnedQty(s.db.WithContext(ctx), saleID)
}

func returnedQty(tx *gorm.DB, saleID string) (map[string]int, error) {
	var rows []returnRow
	if err := tx.Where("sale_id = ?", saleID).Find(&rows).Error; err != nil {
		return nil, err
	}
	returned := map[string]int{}
	for _, row := range rows {
		for _, item := range row.Items {
			returned[item.SaleItemID] += item.Quantity
		}
	}
	return returned, nil
}

func (s *Store) ListReturns(ctx context.Context, saleID string) ([]domain.Return, error) {
	q := eq(s.db.WithContext(ctx).Model(&returnRow{}), "sale_id", saleID)
	var rows []returnRow
	if err := q.Order("created_at, id").Find(&rows).Error; err != nil {
		return nil, err
	}
	return convert(rows, returnRow.toDomain), nil
}
