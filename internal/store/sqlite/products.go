package sqlite

import (
	"context"
	"slices"
	"strings"
	"time"

	"gorm.io/gorm"

	"caixa/backend/internal/domain"
	"caixa/backend/internal/store"
	"caixa/backend/internal/valuation"
	"caixa/backend/internal/xid"
)

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

	row := newProductRow(product)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isDuplicate(err) {
			return nil, store.Wrap(store.ErrConflict, "product %s or barcode %q already exists", product.ID, product.Barcode)
		}
		return nil, err
	}
	return &product, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	return getProduct(s.db.WithContext(ctx), id)
}

func getProduct(tx *gorm.DB, id string) (*domain.Product, error) {
	var row productRow
	if err := tx.Where("id = ?", id).First(&row).Error; err != nil {
		return nil, notFound(err, "product", id)
	}
	p := row.toDomain()
	return &p, nil
}

func (s *Store) GetProductByBarcode(ctx context.Context, barcode string) (*domain.Product, error) {
	var row productRow
	if err := s.db.WithContext(ctx).Where("barcode = ?", barcode).First(&row).Error; err != nil {
		return nil, notFound(err, "product with barcode", barcode)
	}
	p := row.toDomain()
	return &p, nil
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	var rows []productRow
	if err := s.db.WithContext(ctx).Order("name, id").Find(&rows).Error; err != nil {
		return nil, err
	}
	return convert(rows, productRow.toDomain), nil
}

// UpdateProduct replaces catalogue fields only; stock and valuation stay untouched.
func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if strings.TrimSpace(product.Name) == "" {
		return nil, store.Invalid("product name is required")
	}
	var out domain.Product
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := getProduct(tx, product.ID)
		if err != nil {
			return err
		}
		current.Name = product.Name
		current.Barcode = product.Barcode
		current.Category = product.Category
		current.CostPriceCents = product.CostPriceCents
		current.SalePriceCents = product.SalePriceCents
		current.MinStock = product.MinStock
		current.ExpiresAt = product.ExpiresAt
		current.Active = product.Active
		current.UpdatedAt = time.Now().UTC()

		row := newProductRow(*current)
		if err := saveColumns(tx, &row); err != nil {
			if isDuplicate(err) {
				return store.Wrap(store.ErrConflict, "barcode %s already in use", product.Barcode)
			}
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

func (s *Store) ApplyStockMovement(ctx context.Context, movement domain.StockMovement) (*domain.StockMovementResult, error) {
	var result domain.StockMovementResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		products, rows, err := applyMovements(tx, []domain.StockMovement{movement})
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

// applyMovements runs the valuation rules over every touched product and
// writes the products and inventory rows inside tx.
func applyMovements(tx *gorm.DB, movements []domain.StockMovement) (map[string]domain.Product, []domain.InventoryTransaction, error) {
	ids := make([]string, 0, len(movements))
	for _, m := range movements {
		ids = append(ids, m.ProductID)
	}
	slices.Sort(ids)
	ids = slices.Compact(ids)

	staged := make(map[string]domain.Product, len(ids))
	for _, id := range ids {
		p, err := getProduct(tx, id)
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
		row := newProductRow(staged[id])
		if err := saveColumns(tx, &row); err != nil {
			return nil, nil, err
		}
	}
	if len(rows) > 0 {
		inventory := convert(rows, func(t domain.InventoryTransaction) inventoryRow { return inventoryRow(t) })
		if err := tx.Create(&inventory).Error; err != nil {
			return nil, nil, err
		}
	}
	return staged, rows, nil
}

func (s *Store) ListInventoryTransactions(ctx context.Context, filter domain.InventoryFilter) ([]domain.InventoryTransaction, error) {
	q := s.db.WithContext(ctx).Model(&inventoryRow{})
	q = eq(q, "product_id", filter.ProductID)
	q = eq(q, "type", filter.Type)
	q = between(q, "created_at", filter.From, filter.To)

	var rows []inventoryRow
	if err := limit(q.Order("created_at DESC, id DESC"), filter.Limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return convert(rows, func(r inventoryRow) domain.InventoryTransaction { return domain.InventoryTransaction(r) }), nil
}
