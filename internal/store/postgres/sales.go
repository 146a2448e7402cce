package postgres

import (
	"context"
	"database/sql"
	"time"

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
	sale.Payments = append([]domain.Payment(nil), sale.Payments...)
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

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, _, err := applyMovements(ctx, tx, ledger.SaleMovements(sale)); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO sales (id, customer_id, operator_id, subtotal_cents, discount_cents, total_cents, paid_cents, change_cents, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		`, sale.ID, nullIfEmpty(sale.CustomerID), sale.OperatorID, sale.SubtotalCents, sale.DiscountCents,
			sale.TotalCents, sale.PaidCents, sale.ChangeCents, sale.CreatedAt); err != nil {
			if isUniqueViolation(err) {
				return store.Wrap(store.ErrConflict, "sale %s already exists", sale.ID)
			}
			return err
		}
		for i, item := range sale.Items {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO sale_items (id, sale_id, position, product_id, quantity, unit_price_cents, discount_cents, total_cents)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
			`, item.ID, sale.ID, i, item.ProductID, item.Quantity, item.UnitPriceCents, item.DiscountCents, item.TotalCents); err != nil {
				return err
			}
		}
		for i, p := range sale.Payments {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO sale_payments (id, sale_id, position, method, amount_cents, change_cents)
				VALUES ($1,$2,$3,$4,$5,$6)
			`, p.ID, sale.ID, i, p.Method, p.AmountCents, p.ChangeCents); err != nil {
				return err
			}
		}
		if commission == nil {
			return nil
		}
		c := *commission
		if c.ID == "" {
			c.ID = xid.New("com")
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO commissions (id, operator_id, sale_id, amount_cents, status, created_at)
			VALUES ($1,$2,$3,$4,$5,$6)
		`, c.ID, c.OperatorID, sale.ID, c.AmountCents, c.Status, sale.CreatedAt)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &sale, nil
}

const saleColumns = `id, COALESCE(customer_id, ''), operator_id, subtotal_cents, discount_cents, total_cents, paid_cents, change_cents, created_at`

func scanSale(row interface{ Scan(...any) error }) (domain.Sale, error) {
	var sale domain.Sale
	err := row.Scan(&sale.ID, &sale.CustomerID, &sale.OperatorID, &sale.SubtotalCents, &sale.DiscountCents,
		&sale.TotalCents, &sale.PaidCents, &sale.ChangeCents, &sale.CreatedAt)
	sale.CreatedAt = sale.CreatedAt.UTC()
	return sale, err
}

func (s *Store) GetSale(ctx context.Context, id string) (*domain.Sale, error) {
	return getSale(ctx, s.db, id)
}

func getSale(ctx context.Context, q queryer, id string) (*domain.Sale, error) {
	sale, err := scanSale(q.QueryRowContext(ctx, `SELECT `+saleColumns+` FROM sales WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "sale", id)
	}
	sales := []domain.Sale{sale}
	if err := loadSaleLines(ctx, q, sales); err != nil {
		return nil, err
	}
	return &sales[0], nil
}

func (s *Store) ListSales(ctx context.Context, filter domain.SaleFilter) ([]domain.Sale, error) {
	var where whereBuilder
	where.eq("operator_id", filter.OperatorID)
	where.eq("customer_id", filter.CustomerID)
	where.between("created_at", filter.From, filter.To)
	return listSales(ctx, s.db, where, filter.Limit)
}

func listSales(ctx context.Context, q queryer, where whereBuilder, limit int) ([]domain.Sale, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+saleColumns+` FROM sales`+where.String()+` ORDER BY created_at DESC, id DESC`+limitClause(limit), where.args...)
	if err != nil {
		return nil, err
	}
	sales := make([]domain.Sale, 0, 32)
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		sales = append(sales, sale)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := loadSaleLines(ctx, q, sales); err != nil {
		return nil, err
	}
	return sales, nil
}

// loadSaleLines fills items and payments for sales with two queries.
func loadSaleLines(ctx context.Context, q queryer, sales []domain.Sale) error {
	if len(sales) == 0 {
		return nil
	}
	ids := make([]string, len(sales))
	index := make(map[string]int, len(sales))
	for i := range sales {
		ids[i] = sales[i].ID
		index[sales[i].ID] = i
		sales[i].Items = []domain.SaleItem{}
		sales[i].Payments = []domain.Payment{}
	}

	rows, err := q.QueryContext(ctx, `
		SELECT sale_id, id, product_id, quantity, unit_price_cents, discount_cents, total_cents
		FROM sale_items WHERE sale_id = ANY($1) ORDER BY sale_id, position
	`, ids)
	if err != nil {
		return err
	}
	for rows.Next() {
		var saleID string
		var item domain.SaleItem
		if err := rows.Scan(&saleID, &item.ID, &item.ProductID, &item.Quantity, &item.UnitPriceCents, &item.DiscountCents, &item.TotalCents); err != nil {
			rows.Close()
			return err
		}
		i := index[saleID]
		sales[i].Items = append(sales[i].Items, item)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = q.QueryContext(ctx, `
		SELECT sale_id, id, method, amount_cents, change_cents
		FROM sale_payments WHERE sale_id = ANY($1) ORDER BY sale_id, position
	`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var saleID string
		var p domain.Payment
		if err := rows.Scan(&saleID, &p.ID, &p.Method, &p.AmountCents, &p.ChangeCents); err != nil {
			return err
		}
		i := index[saleID]
		sales[i].Payments = append(sales[i].Payments, p)
	}
	return rows.Err()
}

func (s *Store) ListCommissions(ctx context.Context, filter domain.CommissionFilter) ([]domain.Commission, error) {
	var where whereBuilder
	where.eq("operator_id", filter.OperatorID)
	where.eq("status", filter.Status)
	where.between("created_at", filter.From, filter.To)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, operator_id, sale_id, amount_cents, status, created_at
		FROM commissions`+where.String()+`
		ORDER BY created_at DESC, id DESC`+limitClause(filter.Limit), where.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Commission, 0, 32)
	for rows.Next() {
		var c domain.Commission
		if err := rows.Scan(&c.ID, &c.OperatorID, &c.SaleID, &c.AmountCents, &c.Status, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.CreatedAt = c.CreatedAt.UTC()
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) CreateReturn(ctx context.Context, ret domain.Return) (*domain.Return, error) {
	var out domain.Return
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		// The sale row lock serialises concurrent returns against the same sale.
		if _, err := tx.ExecContext(ctx, `SELECT id FROM sales WHERE id = $1 FOR UPDATE`, ret.SaleID); err != nil {
			return err
		}
		sale, err := getSale(ctx, tx, ret.SaleID)
		if err != nil {
			return err
		}
		returned, err := returnedQty(ctx, tx, sale.ID)
		if err != nil {
			return err
		}
		prepared, movements, err := ledger.PrepareReturn(*sale, returned, ret)
		if err != nil {
			return err
		}
		if _, _, err := applyMovements(ctx, tx, movements); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO returns (id, sale_id, operator_id, total_cents, created_at)
			VALUES ($1,$2,$3,$4,$5)
		`, prepared.ID, prepared.SaleID, prepared.OperatorID, prepared.TotalCents, prepared.CreatedAt); err != nil {
			return err
		}
		for i, item := range prepared.Items {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO return_items (id, return_id, position, sale_item_id, product_id, quantity, unit_price_cents, reason)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
			`, item.ID, prepared.ID, i, item.SaleItemID, item.ProductID, item.Quantity, item.UnitPriceCents, item.Reason); err != nil {
				return err
			}
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
	return returnedQty(ctx, s.db, saleID)
}

func returnedQty(ctx context.Context, q queryer, saleID string) (map[string]int, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT ri.sale_item_id, SUM(ri.quantity)
		FROM return_items ri JOIN returns r ON r.id = ri.return_id
		WHERE r.sale_id = $1
		GROUP BY ri.sale_item_id
	`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	returned := map[string]int{}
	for rows.Next() {
		var itemID string
		var qty int
		if err := rows.Scan(&itemID, &qty); err != nil {
			return nil, err
		}
		returned[itemID] = qty
	}
	return returned, rows.Err()
}

func (s *Store) ListReturns(ctx context.Context, saleID string) ([]domain.Return, error) {
	var where whereBuilder
	where.eq("sale_id", saleID)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sale_id, operator_id, total_cents, created_at
		FROM returns`+where.String()+` ORDER BY created_at, id`, where.args...)
	if err != nil {
		return nil, err
	}
	returns := make([]domain.Return, 0, 8)
	index := map[string]int{}
	for rows.Next() {
		var ret domain.Return
		if err := rows.Scan(&ret.ID, &ret.SaleID, &ret.OperatorID, &ret.TotalCents, &ret.CreatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		ret.CreatedAt = ret.CreatedAt.UTC()
		ret.Items = []domain.ReturnItem{}
		index[ret.ID] = len(returns)
		returns = append(returns, ret)
	}
	rows.Close()
	if err := rows.Err(); err != nil || len(returns) == 0 {
		return returns, err
	}

	ids := make([]string, len(returns))
	for i := range returns {
		ids[i] = returns[i].ID
	}
	items, err := s.db.QueryContext(ctx, `
		SELECT return_id, id, sale_item_id, product_id, quantity, unit_price_cents, reason
		FROM return_items WHERE return_id = ANY($1) ORDER BY return_id, position
	`, ids)
	if err != nil {
		return nil, err
	}
	defer items.Close()
	for items.Next() {
		var returnID string
		var item domain.ReturnItem
		if err := items.Scan(&returnID, &item.ID, &item.SaleItemID, &item.ProductID, &item.Quantity, &item.UnitPriceCents, &item.Reason); err != nil {
			return nil, err
		}
		i := index[returnID]
		returns[i].Items = append(returns[i].Items, item)
	}
	return returns, items.Err()
}
