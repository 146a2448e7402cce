package sqlite

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"caixa/backend/internal/domain"
	"caixa/backend/internal/procurement"
	"caixa/backend/internal/store"
	"caixa/backend/internal/xid"
)

func validSupplier(sup domain.Supplier) error {
	if strings.TrimSpace(sup.Name) == "" {
		return store.Invalid("supplier name is required")
	}
	if sup.CreditLimitCents < 0 {
		return store.Invalid("credit limit must not be negative")
	}
	return nil
}

func (s *Store) CreateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	if err := validSupplier(supplier); err != nil {
		return nil, err
	}
	if supplier.ID == "" {
		supplier.ID = xid.New("sup")
	}
	if supplier.CreatedAt.IsZero() {
		supplier.CreatedAt = time.Now().UTC()
	}
	supplier.ReliabilityScore = procurement.MaxScore

	row := supplierRow(supplier)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isDuplicate(err) {
			return nil, store.Wrap(store.ErrConflict, "supplier %s already exists", supplier.ID)
		}
		return nil, err
	}
	return &supplier, nil
}

func (s *Store) GetSupplier(ctx context.Context, id string) (*domain.Supplier, error) {
	return getSupplier(s.db.WithContext(ctx), id)
}

func getSupplier(tx *gorm.DB, id string) (*domain.Supplier, error) {
	var row supplierRow
	if err := tx.Where("id = ?", id).First(&row).Error; err != nil {
		return nil, notFound(err, "supplier", id)
	}
	sup := domain.Supplier(row)
	return &sup, nil
}

func (s *Store) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	var rows []supplierRow
	if err := s.db.WithContext(ctx).Order("name, id").Find(&rows).Error; err != nil {
		return nil, err
	}
	return convert(rows, func(r supplierRow) domain.Supplier { return domain.Supplier(r) }), nil
}

// UpdateSupplier leaves the reliability score alone; only received orders move it.
func (s *Store) UpdateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	if err := validSupplier(supplier); err != nil {
		return nil, err
	}
	var out domain.Supplier
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := getSupplier(tx, supplier.ID)
		if err != nil {
			return err
		}
		current.Name = supplier.Name
		current.Document = supplier.Document
		current.Email = supplier.Email
		current.Phone = supplier.Phone
		current.Address = supplier.Address
		current.BankDetails = supplier.BankDetails
		current.CreditLimitCents = supplier.CreditLimitCents

		row := supplierRow(*current)
		if err := saveColumns(tx, &row); err != nil {
			return err
		}
		out = *current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Store) CreatePurchaseOrder(ctx context.Context, po domain.PurchaseOrder) (*domain.PurchaseOrder, error) {
	po, err := procurement.NewOrder(po, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := getSupplier(tx, po.SupplierID); err != nil {
			return err
		}
		for _, item := range po.Items {
			if _, err := getProduct(tx, item.ProductID); err != nil {
				return err
			}
		}
		row := newPurchaseOrderRow(po)
		if err := tx.Create(&row).Error; err != nil {
			if isDuplicate(err) {
				return store.Wrap(store.ErrConflict, "purchase order number %s already exists", po.OrderNumber)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &po, nil
}

func (s *Store) GetPurchaseOrder(ctx context.Context, id string) (*domain.PurchaseOrder, error) {
	return getOrder(s.db.WithContext(ctx), id)
}

func getOrder(tx *gorm.DB, id string) (*domain.PurchaseOrder, error) {
	var row purchaseOrderRow
	if err := tx.Where("id = ?", id).First(&row).Error; err != nil {
		return nil, notFound(err, "purchase order", id)
	}
	po := row.toDomain()
	return &po, nil
}

func (s *Store) ListPurchaseOrders(ctx context.Context, supplierID string, status string) ([]domain.PurchaseOrder, error) {
	q := eq(s.db.WithContext(ctx).Model(&purchaseOrderRow{}), "supplier_id", supplierID)
	q = eq(q, "status", status)

	var rows []purchaseOrderRow
	if err := q.Order("order_date DESC, id DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return convert(rows, purchaseOrderRow.toDomain), nil
}

func (s *Store) UpdatePurchaseOrderStatus(ctx context.Context, id string, status string, at time.Time) (*domain.PurchaseOrder, error) {
	return s.changeOrder(ctx, id, func(po domain.PurchaseOrder, score int) (procurement.Outcome, error) {
		return procurement.Transition(po, status, score, at)
	})
}

func (s *Store) ReceivePurchaseOrderItem(ctx context.Context, orderID string, itemID string, receivedQty int, at time.Time) (*domain.PurchaseOrder, error) {
	return s.changeOrder(ctx, orderID, func(po domain.PurchaseOrder, score int) (procurement.Outcome, error) {
		return procurement.Receive(po, itemID, receivedQty, score, at)
	})
}

// changeOrder runs rule against the stored order and commits the stock
// receipts, the order and any reliability event in one transaction.
func (s *Store) changeOrder(ctx context.Context, id string, rule func(domain.PurchaseOrder, int) (procurement.Outcome, error)) (*domain.PurchaseOrder, error) {
	var order domain.PurchaseOrder
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		po, err := getOrder(tx, id)
		if err != nil {
			return err
		}
		sup, err := getSupplier(tx, po.SupplierID)
		if err != nil {
			return err
		}
		out, err := rule(*po, sup.ReliabilityScore)
		if err != nil {
			return err
		}
		if len(out.Receipts) > 0 {
			if _, _, err := applyMovements(tx, out.Receipts); err != nil {
				return err
			}
		}
		row := newPurchaseOrderRow(out.Order)
		if err := saveColumns(tx, &row); err != nil {
			return err
		}
		if out.Event != nil {
			if err := tx.Model(&supplierRow{}).Where("id = ?", sup.ID).Update("reliability_score", out.Score).Error; err != nil {
				return err
			}
			event := reliabilityRow(*out.Event)
			if err := tx.Create(&event).Error; err != nil {
				return err
			}
		}
		order = out.Order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *Store) ListReliabilityEvents(ctx context.Context, supplierID string) ([]domain.ReliabilityEvent, error) {
	q := eq(s.db.WithContext(ctx).Model(&reliabilityRow{}), "supplier_id", supplierID)
	var rows []reliabilityRow
	if err := q.Order("created_at, id").Find(&rows).Error; err != nil {
		return nil, err
	}
	return convert(rows, func(r reliabilityRow) domain.ReliabilityEvent { return domain.ReliabilityEvent(r) }), nil
}
