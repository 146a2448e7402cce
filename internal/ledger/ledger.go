// Package ledger holds the balance rules for cash registers, customer credit,
// loyalty points, sale returns and financial transactions. Every function is
// pure: a store loads the current rows, calls the rule under its own lock or
// transaction and persists what comes back.
package ledger

import (
	"strings"
	"time"

	"caixa/backend/internal/domain"
	"caixa/backend/internal/store"
	"caixa/backend/internal/xid"
)

// ApplyCashMovement validates mv against reg and returns the register with the
// signed movement appended. mv.AmountCents must be positive on input;
// withdrawals are stored negative.
func ApplyCashMovement(reg domain.CashRegister, mv domain.CashMovement) (domain.CashRegister, domain.CashMovement, error) {
	if reg.Status != domain.RegisterOpen {
		return reg, mv, fmtNotOpen(reg.ID)
	}
	if mv.AmountCents <= 0 {
		return reg, mv, store.Invalid("amount must be positive")
	}
	switch mv.Type {
	case domain.CashWithdrawal:
		if mv.AmountCents > reg.ExpectedCents {
			return reg, mv, store.FundsShortage(reg.ID, mv.AmountCents, reg.ExpectedCents)
		}
		mv.AmountCents = -mv.AmountCents
	case domain.CashDeposit:
	default:
		return reg, mv, store.Invalid("unknown cash movement type %q", mv.Type)
	}
	if mv.ID == "" {
		mv.ID = xid.New("cmv")
	}
	if mv.CreatedAt.IsZero() {
		mv.CreatedAt = time.Now().UTC()
	}
	mv.RegisterID = reg.ID
	reg.ExpectedCents += mv.AmountCents
	reg.Movements = append(append([]domain.CashMovement(nil), reg.Movements...), mv)
	return reg, mv, nil
}

// Reconcile closes reg. sales are the operator's sales; only those created
// between OpenedAt and closedAt count, by the cash they left in the drawer.
func Reconcile(reg domain.CashRegister, sales []domain.Sale, actualCents int64, closedAt time.Time) (domain.CashCloseResult, error) {
	if reg.Status != domain.RegisterOpen {
		return domain.CashCloseResult{}, fmtNotOpen(reg.ID)
	}
	if actualCents < 0 {
		return domain.CashCloseResult{}, store.Invalid("counted amount must not be negative")
	}
	var cashSales int64
	for _, sale := range sales {
		if sale.OperatorID != reg.OperatorID || sale.CreatedAt.Before(reg.OpenedAt) || sale.CreatedAt.After(closedAt) {
			continue
		}
		for _, p := range sale.Payments {
			cashSales += p.CashRetainedCents()
		}
	}
	var movements int64
	for _, mv := range reg.Movements {
		movements += mv.AmountCents
	}

	report := domain.CashReconciliation{
		InitialCents:   reg.InitialCents,
		CashSalesCents: cashSales,
		MovementsCents: movements,
		ExpectedCents:  reg.InitialCents + cashSales + movements,
		ActualCents:    actualCents,
	}
	report.DifferenceCents = report.ActualCents - report.ExpectedCents

	closed := closedAt
	actual := actualCents
	reg.Status = domain.RegisterClosed
	reg.ClosedAt = &closed
	reg.ActualCents = &actual
	reg.ExpectedCents = report.ExpectedCents
	return domain.CashCloseResult{Register: reg, Report: report}, nil
}

// ApplyCredit posts a positive entry against c. Sales must stay within the
// credit limit; payments reduce debt and never take it below zero.
func ApplyCredit(c domain.Customer, entry domain.CreditTransaction) (domain.Customer, domain.CreditTransaction, error) {
	if entry.AmountCents <= 0 {
		return c, entry, store.Invalid("amount must be positive")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	switch entry.Type {
	case domain.CreditSale:
		if c.CurrentDebtCents+entry.AmountCents > c.CreditLimitCents {
			return c, entry, store.CreditShortage(c.ID, entry.AmountCents, c.CreditLimitCents-c.CurrentDebtCents)
		}
		c.CurrentDebtCents += entry.AmountCents
		entry.Status = domain.CreditPending
	case domain.CreditPayment:
		c.CurrentDebtCents -= entry.AmountCents
		if c.CurrentDebtCents < 0 {
			c.CurrentDebtCents = 0
		}
		paid := entry.CreatedAt
		entry.PaidAt = &paid
		entry.Status = domain.CreditPaid
		entry.AmountCents = -entry.AmountCents
	default:
		return c, entry, store.Invalid("unknown credit transaction type %q", entry.Type)
	}
	if entry.ID == "" {
		entry.ID = xid.New("crd")
	}
	entry.CustomerID = c.ID
	c.UpdatedAt = entry.CreatedAt
	return c, entry, nil
}

// ApplyLoyalty posts a positive point entry against c. Redemptions are
// stored negative and may not exceed the balance.
func ApplyLoyalty(c domain.Customer, entry domain.LoyaltyTransaction) (domain.Customer, domain.LoyaltyTransaction, error) {
	if entry.Points <= 0 {
		return c, entry, store.Invalid("points must be positive")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	switch entry.Type {
	case domain.LoyaltyEarned:
		c.LoyaltyPoints += entry.Points
	case domain.LoyaltyRedeemed:
		if entry.Points > c.LoyaltyPoints {
			return c, entry, store.PointsShortage(c.ID, entry.Points, c.LoyaltyPoints)
		}
		c.LoyaltyPoints -= entry.Points
		entry.Points = -entry.Points
	default:
		return c, entry, store.Invalid("unknown loyalty transaction type %q", entry.Type)
	}
	if entry.ID == "" {
		entry.ID = xid.New("loy")
	}
	entry.CustomerID = c.ID
	c.UpdatedAt = entry.CreatedAt
	return c, entry, nil
}

// PrepareReturn resolves ret against the sale it refers to. returned holds the
// quantities already returned per sale item. The result carries unit prices
// and product ids taken from the sale, plus the stock movements to apply.
func PrepareReturn(sale domain.Sale, returned map[string]int, ret domain.Return) (domain.Return, []domain.StockMovement, error) {
	if len(ret.Items) == 0 {
		return ret, nil, store.Invalid("return requires at least one item")
	}
	if ret.ID == "" {
		ret.ID = xid.New("ret")
	}
	if ret.CreatedAt.IsZero() {
		ret.CreatedAt = time.Now().UTC()
	}
	sold := make(map[string]domain.SaleItem, len(sale.Items))
	for _, item := range sale.Items {
		sold[item.ID] = item
	}

	requested := map[string]int{}
	items := make([]domain.ReturnItem, 0, len(ret.Items))
	movements := make([]domain.StockMovement, 0, len(ret.Items))
	var total int64
	for _, item := range ret.Items {
		line, ok := sold[item.SaleItemID]
		if !ok {
			return ret, nil, store.Invalid("item %s does not belong to sale %s", item.SaleItemID, sale.ID)
		}
		if item.Quantity <= 0 {
			return ret, nil, store.Invalid("return quantity must be positive")
		}
		requested[line.ID] += item.Quantity
		if available := line.Quantity - returned[line.ID]; requested[line.ID] > available {
			return ret, nil, store.Invalid("return quantity for item %s exceeds sold quantity: requested %d, available %d", line.ID, requested[line.ID], available)
		}
		if item.ID == "" {
			item.ID = xid.New("rti")
		}
		item.ProductID = line.ProductID
		item.UnitPriceCents = line.UnitPriceCents
		total += item.UnitPriceCents * int64(item.Quantity)
		items = append(items, item)
		movements = append(movements, domain.StockMovement{
			ProductID: line.ProductID,
			Type:      domain.MovementReturn,
			Quantity:  item.Quantity,
			Reference: ret.ID,
			At:        ret.CreatedAt,
		})
	}
	ret.SaleID = sale.ID
	ret.Items = items
	ret.TotalCents = total
	return ret, movements, nil
}

// SaleMovements lists the stock decrements for every sale line.
func SaleMovements(sale domain.Sale) []domain.StockMovement {
	movements := make([]domain.StockMovement, 0, len(sale.Items))
	for _, item := range sale.Items {
		movements = append(movements, domain.StockMovement{
			ProductID: item.ProductID,
			Type:      domain.MovementSale,
			Quantity:  item.Quantity,
			Reference: sale.ID,
			At:        sale.CreatedAt,
		})
	}
	return movements
}

// Pay settles an open financial transaction.
func Pay(tx domain.FinancialTransaction, paidAt time.Time) (domain.FinancialTransaction, error) {
	if !tx.Open() {
		return tx, store.Invalid("financial transaction %s is %s", tx.ID, tx.Status)
	}
	paid := paidAt
	tx.PaidAt = &paid
	tx.Status = domain.FinancialPaid
	tx.UpdatedAt = paidAt
	return tx, nil
}

func Cancel(tx domain.FinancialTransaction, at time.Time) (domain.FinancialTransaction, error) {
	if !tx.Open() {
		return tx, store.Invalid("financial transaction %s is %s", tx.ID, tx.Status)
	}
	tx.Status = domain.FinancialCancelled
	tx.UpdatedAt = at
	return tx, nil
}

// Overdue reports whether tx is pending with a due date before asOf's day.
func Overdue(tx domain.FinancialTransaction, asOf time.Time) bool {
	return tx.Status == domain.FinancialPending && store.DateOf(tx.DueDate).Before(store.DateOf(asOf))
}

func fmtNotOpen(id string) error {
	return store.Wrap(store.ErrNotOpen, "cash register %s", id)
}

// PrepareFinancial validates a new financial transaction and fills defaults.
func PrepareFinancial(tx domain.FinancialTransaction, actor string) (domain.FinancialTransaction, error) {
	if strings.TrimSpace(tx.Description) == "" {
		return tx, store.Invalid("description is required")
	}
	if tx.AmountCents <= 0 {
		return tx, store.Invalid("amount must be positive")
	}
	if tx.ID == "" {
		tx.ID = xid.New("fin")
	}
	if tx.Status == "" {
		tx.Status = domain.FinancialPending
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	if tx.CreatedBy == "" {
		tx.CreatedBy = actor
	}
	tx.UpdatedAt = tx.CreatedAt
	return tx, nil
}

// SameDay compares two optional dates at day granularity; two nils are equal.
func SameDay(a *time.Time, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return store.DateOf(*a).Equal(store.DateOf(*b))
}
