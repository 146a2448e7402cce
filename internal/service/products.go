package service

import (
	"context"
	"strings"
	"time"

	"caixa/backend/internal/domain"
	"caixa/backend/internal/report"
	"caixa/backend/internal/store"
	"caixa/backend/internal/validation"
)

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

func (s *Service) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	return s.repo.GetProduct(ctx, id)
}

func (s *Service) GetProductByBarcode(ctx context.Context, barcode string) (*domain.Product, error) {
	if strings.TrimSpace(barcode) == "" {
		return nil, store.Invalid("barcode is required")
	}
	return s.repo.GetProductByBarcode(ctx, strings.TrimSpace(barcode))
}

// CreateProduct registers a catalogue item. A positive InitialStock is booked
// as an entry at the cost price so valuation starts from a real movement.
func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (*domain.Product, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	expires, err := parseOptionalDate("expires_at", req.ExpiresAt)
	if err != nil {
		return nil, err
	}

	product, err := s.repo.CreateProduct(ctx, domain.Product{
		Name:           strings.TrimSpace(req.Name),
		Barcode:        strings.TrimSpace(req.Barcode),
		Category:       strings.TrimSpace(req.Category),
		CostPriceCents: req.CostPriceCents,
		SalePriceCents: req.SalePriceCents,
		MinStock:       req.MinStock,
		ExpiresAt:      expires,
		Active:         true,
		CreatedAt:      s.now(),
	})
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, "product.create", "product", product.ID)

	if req.InitialStock > 0 {
		result, err := s.repo.ApplyStockMovement(ctx, domain.StockMovement{
			ProductID:     product.ID,
			Type:          domain.MovementEntry,
			Quantity:      req.InitialStock,
			UnitCostCents: req.CostPriceCents,
			Reference:     "initial",
			At:            s.now(),
		})
		if err != nil {
			return nil, err
		}
		return &result.Product, nil
	}
	return product, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (*domain.Product, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}
	current, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	next := *current
	setTrimmed(&next.Name, req.Name)
	setTrimmed(&next.Barcode, req.Barcode)
	setTrimmed(&next.Category, req.Category)
	if req.CostPriceCents != nil {
		if *req.CostPriceCents < 0 {
			return nil, store.Invalid("cost price must not be negative")
		}
		next.CostPriceCents = *req.CostPriceCents
	}
	if req.SalePriceCents != nil {
		if *req.SalePriceCents < 0 {
			return nil, store.Invalid("sale price must not be negative")
		}
		next.SalePriceCents = *req.SalePriceCents
	}
	if req.MinStock != nil {
		if *req.MinStock < 0 {
			return nil, store.Invalid("min stock must not be negative")
		}
		next.MinStock = *req.MinStock
	}
	if req.ExpiresAt != nil {
		if next.ExpiresAt, err = parseOptionalDate("expires_at", *req.ExpiresAt); err != nil {
			return nil, err
		}
	}
	if req.Active != nil {
		next.Active = *req.Active
	}

	updated, err := s.repo.UpdateProduct(ctx, next)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, "product.update", "product", updated.ID)
	return updated, nil
}

// RecordStockMovement books an entry, manual sale or loss. Entries and
// losses are admin operations; sale-type adjustments follow the sale rules.
func (s *Service) RecordStockMovement(ctx context.Context, movementType string, req domain.StockMovementRequest) (*domain.StockMovementResult, error) {
	switch movementType {
	case domain.MovementEntry, domain.MovementLoss:
		if _, err := s.requireAdmin(ctx); err != nil {
			return nil, err
		}
	case domain.MovementSale:
	default:
		return nil, store.Invalid("unsupported movement type %q", movementType)
	}
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	result, err := s.repo.ApplyStockMovement(ctx, domain.StockMovement{
		ProductID:     req.ProductID,
		Type:          movementType,
		Quantity:      req.Quantity,
		UnitCostCents: req.UnitCostCents,
		Reference:     strings.TrimSpace(req.Reference),
		At:            s.now(),
	})
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, "inventory."+movementType, "product", req.ProductID)
	return result, nil
}

func (s *Service) ListStockMovements(ctx context.Context, filter domain.InventoryFilter) ([]domain.InventoryTransaction, error) {
	if filter.Type != "" {
		switch filter.Type {
		case domain.MovementEntry, domain.MovementSale, domain.MovementLoss, domain.MovementReturn:
		default:
			return nil, store.Invalid("unsupported movement type %q", filter.Type)
		}
	}
	return s.repo.ListInventoryTransactions(ctx, filter)
}

func (s *Service) LowStockProducts(ctx context.Context) ([]domain.Product, error) {
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	return report.LowStock(products), nil
}

func (s *Service) StagnantProducts(ctx context.Context, days int) ([]domain.Product, error) {
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	return report.Stagnant(products, days, s.now()), nil
}

func (s *Service) ExpiringProducts(ctx context.Context, days int) ([]domain.Product, error) {
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	return report.Expiring(products, days, s.now()), nil
}

// dayRange widens an optional to-date given as a plain day to its last instant.
func dayRange(from *time.Time, to *time.Time) (*time.Time, *time.Time) {
	if to != nil && to.Equal(store.DateOf(*to)) {
		end := to.AddDate(0, 0, 1).Add(-time.Nanosecond)
		to = &end
	}
	return from, to
}
