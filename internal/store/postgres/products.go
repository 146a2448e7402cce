package postgres

import (
	"context"
	"database/sql"
	"slices"
	"strings"
	"time"

	"caixa/backend/internal/domain"
	"caixa/backend/internal/store"
	"caixa/backend/internal/valuation"
	"caixa/backend/internal/xid"
)

const productColumns = `id, name, COALESCE(barcode, ''), category, cost_price_cents, sale_price_cents, stock, min_stock,
	average_cost_cents, invested_value_cents, last_sale_at, expires_at, active, created_at, updated_at`

func scanProduct(row interface{ Scan(...any) error }) (domain.Product, error) {
	var (
		p         domain.Product
		lastSale  sql.NullTime
		expiresAt sql.NullTime
	)
	err := row.Scan(&p.ID, &p.Name, &p.Barcode, &p.Category, &p.CostPriceCents, &p.SalePriceCents, &p.Stock, &p.MinStock,
		&p.AverageCostCents, &p.InvestedValueCents, &lastSale, &expiresAt, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	p.LastSaleAt, p.ExpiresAt = timePtr(lastSale), timePtr(expiresAt)
	p.CreatedAt, p.UpdatedAt = p.CreatedAt.UTC(), p.UpdatedAt.UTC()
	return p, err
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if strings.TrimSpace(product.Name) == "" {
		return nil, store.Invalid("product name is required")
	}
	if product.ID == "" {
		product.ID = xid.New("prod")
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}
	product.UpdatedAt = product.CreatedAt
	product.Stock, product.AverageCostCents, product.InvestedValueCents = 0, 0, 0
	product.LastSaleAt = nil

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, name, barcode, category, cost_price_cents, sale_price_cents, min_stock, expires_at, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$10)
	`, product.ID, product.Name, nullIfEmpty(product.Barcode), product.Category, product.CostPriceCents, product.SalePriceCents,
		product.MinStock, nullTime(product.ExpiresAt), product.Active, product.CreatedAt)
	if isUniqueViolation(err) {
		return nil, store.Wrap(store.ErrConflict, "product %s or barcode %q already exists", product.ID, product.Barcode)
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	return getProduct(ctx, s.db, id, "")
}

// getProduct reads one product; lock is appended to the query (FOR UPDATE inside transactions).
func getProduct(ctx context.Context, q queryer, id string, lock string) (*domain.Product, error) {
	p, err := scanProduct(q.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`+lock, id))
	if err != nil {
		return nil, notFound(err, "product", id)
	}
	return &p, nil
}

func (s *Store) GetProductByBarcode(ctx context.Context, barcode string) (*domain.Product, error) {
	p, err := scanProduct(s.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE barcode = $1`, barcode))
	if err != nil {
		return nil, notFound(err, "product with barcode", barcode)
	}
	return &p, nil
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+productColumns+` FROM products ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 128)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// UpdateProduct replaces catalogue fields only; stock and valuation stay untouched.
func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if strings.TrimSpace(product.Name) == "" {
		return nil, store.Invalid("product name is required")
	}
	p, err := scanProduct(s.db.QueryRowContext(ctx, `
		UPDATE products
		SET name = $2, barcode = $3, category = $4, cost_price_cents = $5, sale_price_cents = $6,
			min_stock = $7, expires_at = $8, active = $9, updated_at = $10
		WHERE id = $1
		RETURNING `+productColumns, product.ID, product.Name, nullIfEmpty(product.Barcode), product.Category,
		product.CostPriceCents, product.SalePriceCents, product.MinStock, nullTime(product.ExpiresAt), product.Active, time.Now().UTC()))
	if isUniqueViolation(err) {
		return nil, store.Wrap(store.ErrConflict, "barcode %s already in use", product.Barcode)
	}
	if err != nil {
		return nil, notFound(err, "product", product.ID)
	}
	return &p, nil
}

func (s *Store) ApplyStockMovement(ctx context.Context, movement domain.StockMovement) (*domain.StockMovementResult, error) {
	var result domain.StockMovementResult
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		products, rows, err := applyMovements(ctx, tx, []domain.StockMovement{movement})
		if err != nil {
			return err
		}
		result = domain.StockMovementResult{Product: products[movement.ProductID], Transaction: rows[0]}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// applyMovements locks every touched product in id order, runs the valuation
// rules against the locked rows and writes products plus inventory rows.
func applyMovements(ctx context.Context, tx *sql.Tx, movements []domain.StockMovement) (map[string]domain.Product, []domain.InventoryTransaction, error) {
	ids := make([]string, 0, len(movements))
	for _, m := range movements {
		ids = append(ids, m.ProductID)
	}
	slices.Sort(ids)
	ids = slices.Compact(ids)

	staged := make(map[string]domain.Product, len(ids))
	for _, id := range ids {
		p, err := getProduct(ctx, tx, id, " FOR UPDATE")
		if err != nil {
			return nil, nil, err
		}
		staged[id] = *p
	}

	rows := make([]domain.InventoryTransaction, 0, len(movements))
	for _, m := range movements {
		next, row, err := valuation.Apply(staged[m.ProductID], m)
		if err != nil {
			return nil, nil, err
		}
		staged[next.ID] = next
		rows = append(rows, row)
	}

	for _, id := range ids {
		p := staged[id]
		if _, err := tx.ExecContext(ctx, `
			UPDATE products
			SET stock = $2, cost_price_cents = $3, average_cost_cents = $4, invested_value_cents = $5, last_sale_at = $6, updated_at = $7
			WHERE id = $1
		`, p.ID, p.Stock, p.CostPriceCents, p.AverageCostCents, p.InvestedValueCents, nullTime(p.LastSaleAt), p.UpdatedAt); err != nil {
			return nil, nil, err
		}
	}
	for _, row := range rows {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO inventory_transactions (id, product_id, type, quantity, unit_cost_cents, reference, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
		`, row.ID, row.ProductID, row.Type, row.Quantity, row.UnitCostCents, row.Reference, row.CreatedAt); err != nil {
			return nil, nil, err
		}
	}
	return staged, rows, nil
}

func (s *Store) ListInventoryTransactions(ctx context.Context, filter domain.InventoryFilter) ([]domain.InventoryTransaction, error) {
	var where whereBuilder
	where.eq("product_id", filter.ProductID)
	where.eq("type", filter.Type)
	where.between("created_at", filter.From, filter.To)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, product_id, type, quantity, unit_cost_cents, reference, created_at
		FROM inventory_transactions`+where.String()+`
		ORDER BY created_at DESC, id DESC`+limitClause(filter.Limit), where.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.InventoryTransaction, 0, 64)
	for rows.Next() {
		var row domain.InventoryTransaction
		if err := rows.Scan(&row.ID, &row.ProductID, &row.Type, &row.Quantity, &row.UnitCostCents, &row.Reference, &row.CreatedAt); err != nil {
			return nil, err
		}
		row.CreatedAt = row.CreatedAt.UTC()
		out = append(out, row)
	}
	return out, rows.Err()
}
