// Package valuation computes weighted-average cost and stock levels. Stores
// call Apply inside their own transaction so the rules stay identical across
// backends.
package valuation

import (
	"time"

	"caixa/backend/internal/domain"
	"caixa/backend/internal/money"
	"caixa/backend/internal/store"
	"caixa/backend/internal/xid"
)

// Apply returns the product after the movement and the inventory row to append.
func Apply(p domain.Product, m domain.StockMovement) (domain.Product, domain.InventoryTransaction, error) {
	if m.Quantity < 1 {
		return p, domain.InventoryTransaction{}, store.Invalid("quantity must be positive")
	}
	if m.UnitCostCents < 0 {
		return p, domain.InventoryTransaction{}, store.Invalid("unit cost must not be negative")
	}
	at := m.At
	if at.IsZero() {
		at = time.Now().UTC()
	}

	unitCost := m.UnitCostCents
	switch m.Type {
	case domain.MovementEntry:
		p.AverageCostCents = WeightedAverage(p.AverageCostCents, p.Stock, unitCost, m.Quantity)
		p.Stock += m.Quantity
		if m.SetCostPrice {
			p.CostPriceCents = unitCost
		}
	case domain.MovementReturn:
		if p.AverageCostCents > 0 {
			unitCost = p.AverageCostCents
		}
		p.AverageCostCents = WeightedAverage(p.AverageCostCents, p.Stock, unitCost, m.Quantity)
		p.Stock += m.Quantity
	case domain.MovementSale, domain.MovementLoss:
		if m.Quantity > p.Stock {
			return p, domain.InventoryTransaction{}, store.StockShortage(p.ID, m.Quantity, p.Stock)
		}
		p.Stock -= m.Quantity
		unitCost = p.AverageCostCents
		if m.Type == domain.MovementSale {
			soldAt := at
			p.LastSaleAt = &soldAt
		}
	default:
		return p, domain.InventoryTransaction{}, store.Invalid("unknown movement type %q", m.Type)
	}

	p.InvestedValueCents = p.AverageCostCents * int64(p.Stock)
	p.UpdatedAt = at

	row := domain.InventoryTransaction{
		ID:            xid.New("inv"),
		ProductID:     p.ID,
		Type:          m.Type,
		Quantity:      m.Quantity,
		UnitCostCents: unitCost,
		Reference:     m.Reference,
		CreatedAt:     at,
	}
	return p, row, nil
}

// WeightedAverage is (avg*stock + cost*qty)/(stock+qty) rounded to the cent.
// An empty stock takes the incoming cost as the new average.
func WeightedAverage(avg int64, stock int, cost int64, qty int) int64 {
	if stock <= 0 {
		return cost
	}
	total := int64(stock + qty)
	return money.DivRound(avg*int64(stock)+cost*int64(qty), total)
}
