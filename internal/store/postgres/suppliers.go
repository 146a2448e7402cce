package postgres

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"caixa/backend/internal/domain"
	"caixa/backend/internal/procurement"
	"caixa/backend/internal/store"
	"caixa/backend/internal/xid"
)

const supplierColumns = `id, name, document, email, phone, address, bank_details, reliability_score, credit_limit_cents, created_at`

func scanSupplier(row interface{ Scan(...any) error }) (domain.Supplier, error) {
	var sup domain.Supplier
	err := row.Scan(&sup.ID, &sup.Name, &sup.Document, &sup.Email, &sup.Phone, &sup.Address, &sup.BankDetails,
		&sup.ReliabilityScore, &sup.CreditLimitCents, &sup.CreatedAt)
	sup.CreatedAt = sup.CreatedAt.UTC()
	return sup, err
}

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

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO suppliers (`+supplierColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, supplier.ID, supplier.Name, supplier.Document, supplier.Email, supplier.Phone, supplier.Address,
		supplier.BankDetails, supplier.ReliabilityScore, supplier.CreditLimitCents, supplier.CreatedAt)
	if isUniqueViolation(err) {
		return nil, store.Wrap(store.ErrConflict, "supplier %s already exists", supplier.ID)
	}
	if err != nil {
		return nil, err
	}
	return &supplier, nil
}

func (s *Store) GetSupplier(ctx context.Context, id string) (*domain.Supplier, error) {
	return getSupplier(ctx, s.db, id, "")
}

func getSupplier(ctx context.Context, q queryer, id string, lock string) (*domain.Supplier, error) {
	sup, err := scanSupplier(q.QueryRowContext(ctx, `SELECT `+supplierColumns+` FROM suppliers WHERE id = $1`+lock, id))
	if err != nil {
		return nil, notFound(err, "supplier", id)
	}
	return &sup, nil
}

func (s *Store) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+supplierColumns+` FROM suppliers ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Supplier, 0, 16)
	for rows.Next() {
		sup, err := scanSupplier(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sup)
	}
	return out, rows.Err()
}

// UpdateSupplier leaves reliability_score alone; only received orders move it.
func (s *Store) UpdateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	if err := validSupplier(supplier); err != nil {
		return nil, err
	}
	sup, err := scanSupplier(s.db.QueryRowContext(ctx, `
		UPDATE suppliers
		SET name = $2, document = $3, email = $4, phone = $5, address = $6, bank_details = $7, credit_limit_cents = $8
		WHERE id = $1
		RETURNING `+supplierColumns, supplier.ID, supplier.Name, supplier.Document, supplier.Email, supplier.Phone,
		supplier.Address, supplier.BankDetails, supplier.CreditLimitCents))
	if err != nil {
		return nil, notFound(err, "supplier", supplier.ID)
	}
	return &sup, nil
}

func (s *Store) CreatePurchaseOrder(ctx context.Context, po domain.PurchaseOrder) (*domain.PurchaseOrder, error) {
	po, err := procurement.NewOrder(po, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := getSupplier(ctx, tx, po.SupplierID, ""); err != nil {
			return err
		}
		for _, item := range po.Items {
			if _, err := getProduct(ctx, tx, item.ProductID, ""); err != nil {
				return err
			}
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO purchase_orders (id, supplier_id, order_number, status, order_date, expected_date, received_date, total_cents, notes, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		`, po.ID, po.SupplierID, po.OrderNumber, po.Status, po.OrderDate, nullTime(po.ExpectedDate), nullTime(po.ReceivedDate),
			po.TotalCents, po.Notes, po.CreatedAt); err != nil {
			if isUniqueViolation(err) {
				return store.Wrap(store.ErrConflict, "purchase order number %s already exists", po.OrderNumber)
			}
			return err
		}
		for i, item := range po.Items {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO purchase_order_items (id, order_id, position, product_id, quantity, unit_cost_cents, total_cost_cents, received_quantity, status)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
			`, item.ID, po.ID, i, item.ProductID, item.Quantity, item.UnitCostCents, item.TotalCostCents,
				item.ReceivedQuantity, item.Status); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &po, nil
}

const orderColumns = `id, supplier_id, order_number, status, order_date, expected_date, received_date, total_cents, notes, created_at`

func scanOrder(row interface{ Scan(...any) error }) (domain.PurchaseOrder, error) {
	var (
		po       domain.PurchaseOrder
		expected sql.NullTime
		received sql.NullTime
	)
	err := row.Scan(&po.ID, &po.SupplierID, &po.OrderNumber, &po.Status, &po.OrderDate, &expected, &received,
		&po.TotalCents, &po.Notes, &po.CreatedAt)
	po.ExpectedDate, po.ReceivedDate = timePtr(expected), timePtr(received)
	po.OrderDate, po.CreatedAt = po.OrderDate.UTC(), po.CreatedAt.UTC()
	po.Items = []domain.PurchaseOrderItem{}
	return po, err
}

func (s *Store) GetPurchaseOrder(ctx context.Context, id string) (*domain.PurchaseOrder, error) {
	return getOrder(ctx, s.db, id, "")
}

func getOrder(ctx context.Context, q queryer, id string, lock string) (*domain.PurchaseOrder, error) {
	po, err := scanOrder(q.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM purchase_orders WHERE id = $1`+lock, id))
	if err != nil {
		return nil, notFound(err, "purchase order", id)
	}
	orders := []domain.PurchaseOrder{po}
	if err := loadOrderItems(ctx, q, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

func loadOrderItems(ctx context.Context, q queryer, orders []domain.PurchaseOrder) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]string, len(orders))
	index := make(map[string]int, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
		index[orders[i].ID] = i
	}
	rows, err := q.QueryContext(ctx, `
		SELECT order_id, id, product_id, quantity, unit_cost_cents, total_cost_cents, received_quantity, status
		FROM purchase_order_items WHERE order_id = ANY($1) ORDER BY order_id, position
	`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var orderID string
		var item domain.PurchaseOrderItem
		if err := rows.Scan(&orderID, &item.ID, &item.ProductID, &item.Quantity, &item.UnitCostCents,
			&item.TotalCostCents, &item.ReceivedQuantity, &item.Status); err != nil {
			return err
		}
		i := index[orderID]
		orders[i].Items = append(orders[i].Items, item)
	}
	return rows.Err()
}

func (s *Store) ListPurchaseOrders(ctx context.Context, supplierID string, status string) ([]domain.PurchaseOrder, error) {
	var where whereBuilder
	where.eq("supplier_id", supplierID)
	where.eq("status", status)

	rows, err := s.db.QueryContext(ctx, `SELECT `+orderColumns+` FROM purchase_orders`+where.String()+`
		ORDER BY order_date DESC, id DESC`, where.args...)
	if err != nil {
		return nil, err
	}
	orders := make([]domain.PurchaseOrder, 0, 16)
	for rows.Next() {
		po, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		orders = append(orders, po)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := loadOrderItems(ctx, s.db, orders); err != nil {
		return nil, err
	}
	return orders, nil
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

// changeOrder locks the order and its supplier, runs rule and commits the
// stock receipts, the item progress and any reliability event together.
func (s *Store) changeOrder(ctx context.Context, id string, rule func(domain.PurchaseOrder, int) (procurement.Outcome, error)) (*domain.PurchaseOrder, error) {
	var order domain.PurchaseOrder
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		po, err := getOrder(ctx, tx, id, " FOR UPDATE")
		if err != nil {
			return err
		}
		sup, err := getSupplier(ctx, tx, po.SupplierID, " FOR UPDATE")
		if err != nil {
			return err
		}
		out, err := rule(*po, sup.ReliabilityScore)
		if err != nil {
			return err
		}
		if len(out.Receipts) > 0 {
			if _, _, err := applyMovements(ctx, tx, out.Receipts); err != nil {
				return err
			}
		}
		next := out.Order
		if _, err := tx.ExecContext(ctx, `UPDATE purchase_orders SET status = $2, received_date = $3 WHERE id = $1`,
			next.ID, next.Status, nullTime(next.ReceivedDate)); err != nil {
			return err
		}
		for _, item := range next.Items {
			if _, err := tx.ExecContext(ctx, `UPDATE purchase_order_items SET received_quantity = $2, status = $3 WHERE id = $1`,
				item.ID, item.ReceivedQuantity, item.Status); err != nil {
				return err
			}
		}
		if ev := out.Event; ev != nil {
			if _, err := tx.ExecContext(ctx, `UPDATE suppliers SET reliability_score = $2 WHERE id = $1`, sup.ID, out.Score); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO reliability_events (id, supplier_id, order_id, event_type, score_change, description, created_at)
				VALUES ($1,$2,$3,$4,$5,$6,$7)
			`, ev.ID, ev.SupplierID, ev.OrderID, ev.EventType, ev.ScoreChange, ev.Description, ev.CreatedAt); err != nil {
				return err
			}
		}
		order = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *Store) ListReliabilityEvents(ctx context.Context, supplierID string) ([]domain.ReliabilityEvent, error) {
	var where whereBuilder
	where.eq("supplier_id", supplierID)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, supplier_id, order_id, event_type, score_change, description, created_at
		FROM reliability_events`+where.String()+` ORDER BY created_at, id`, where.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.ReliabilityEvent, 0, 8)
	for rows.Next() {
		var ev domain.ReliabilityEvent
		if err := rows.Scan(&ev.ID, &ev.SupplierID, &ev.OrderID, &ev.EventType, &ev.ScoreChange, &ev.Description, &ev.CreatedAt); err != nil {
			return nil, err
		}
		ev.CreatedAt = ev.CreatedAt.UTC()
		out = append(out, ev)
	}
	return out, rows.Err()
}
