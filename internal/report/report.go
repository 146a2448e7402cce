// Package report computes read-only views over ledger rows: alerts, the
// cash-flow forecast, supplier and commission summaries and product lists.
package report

import (
	"cmp"
	"slices"
	"time"

	"caixa/backend/internal/domain"
	"caixa/backend/internal/recurrence"
	"caixa/backend/internal/store"
)

const (
	DefaultForecastMonths = 3
	DefaultStagnantDays   = 30
	DefaultExpiringDays   = 7
	alertWindowDays       = 7
)

// FinancialAlerts splits open transactions into overdue (due before today)
// and due within the next seven days.
func FinancialAlerts(txs []domain.FinancialTransaction, today time.Time) domain.FinancialAlerts {
	today = store.DateOf(today)
	horizon := today.AddDate(0, 0, alertWindowDays)
	alerts := domain.FinancialAlerts{
		Overdue:     make([]domain.FinancialTransaction, 0),
		DueThisWeek: make([]domain.FinancialTransaction, 0),
	}
	for _, tx := range txs {
		if !tx.Open() {
			continue
		}
		due := store.DateOf(tx.DueDate)
		switch {
		case due.Before(today):
			alerts.Overdue = append(alerts.Overdue, tx)
			alerts.OverdueTotalCents += tx.AmountCents
		case !due.After(horizon):
			alerts.DueThisWeek = append(alerts.DueThisWeek, tx)
			alerts.DueThisWeekTotalCents += tx.AmountCents
		}
	}
	byDue := func(a, b domain.FinancialTransaction) int {
		return cmp.Or(a.DueDate.Compare(b.DueDate), cmp.Compare(a.ID, b.ID))
	}
	slices.SortFunc(alerts.Overdue, byDue)
	slices.SortFunc(alerts.DueThisWeek, byDue)
	return alerts
}

// CashFlowForecast projects months calendar months starting with the month of
// now. Open transactions count in the month they fall due (from today on);
// active recurring entries add one amount per occurrence in each month.
func CashFlowForecast(txs []domain.FinancialTransaction, entries []domain.RecurringEntry, now time.Time, months int) domain.CashFlowForecast {
	if months <= 0 {
		months = DefaultForecastMonths
	}
	today := store.DateOf(now)
	first := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)

	forecast := domain.CashFlowForecast{GeneratedAt: now.UTC(), Months: make([]domain.CashFlowMonth, 0, months)}
	index := make(map[string]int, months)
	for i := 0; i < months; i++ {
		start := first.AddDate(0, i, 0)
		index[recurrence.MonthKey(start)] = i
		forecast.Months = append(forecast.Months, domain.CashFlowMonth{Month: recurrence.MonthKey(start)})
	}

	add := func(i int, inflow bool, cents int64) {
		if inflow {
			forecast.Months[i].InflowCents += cents
		} else {
			forecast.Months[i].OutflowCents += cents
		}
	}
	for _, tx := range txs {
		if !tx.Open() || store.DateOf(tx.DueDate).Before(today) {
			continue
		}
		if i, ok := index[recurrence.MonthKey(tx.DueDate)]; ok {
			add(i, tx.Inflow(), tx.AmountCents)
		}
	}
	for _, entry := range entries {
		if !entry.Active {
			continue
		}
		inflow := entry.Type == domain.FinancialIncome || entry.Type == domain.FinancialReceivable
		for i := range forecast.Months {
			if n := recurrence.OccurrencesInMonth(entry, first.AddDate(0, i, 0)); n > 0 {
				add(i, inflow, int64(n)*entry.AmountCents)
			}
		}
	}

	var cumulative int64
	for i := range forecast.Months {
		m := &forecast.Months[i]
		m.NetCents = m.InflowCents - m.OutflowCents
		cumulative += m.NetCents
		m.CumulativeCents = cumulative
	}
	return forecast
}

// SupplierReport aggregates purchase orders per supplier. Spend counts
// received orders only.
func SupplierReport(suppliers []domain.Supplier, orders []domain.PurchaseOrder) []domain.SupplierReportRow {
	bySupplier := make(map[string][]domain.PurchaseOrder, len(suppliers))
	for _, po := range orders {
		bySupplier[po.SupplierID] = append(bySupplier[po.SupplierID], po)
	}
	rows := make([]domain.SupplierReportRow, 0, len(suppliers))
	for _, sup := range suppliers {
		row := domain.SupplierReportRow{Supplier: sup}
		for _, po := range bySupplier[sup.ID] {
			row.TotalOrders++
			switch po.Status {
			case domain.POReceived:
				row.CompletedOrders++
				row.TotalSpentCents += po.TotalCents
			case domain.POCancelled:
			default:
				row.PendingOrders++
			}
		}
		if row.CompletedOrders > 0 {
			row.AverageOrderCents = row.TotalSpentCents / int64(row.CompletedOrders)
		}
		rows = append(rows, row)
	}
	slices.SortFunc(rows, func(a, b domain.SupplierReportRow) int {
		return cmp.Or(cmp.Compare(b.Supplier.ReliabilityScore, a.Supplier.ReliabilityScore), cmp.Compare(a.Supplier.Name, b.Supplier.Name))
	})
	return rows
}

func CommissionSummary(commissions []domain.Commission) []domain.CommissionSummary {
	byOperator := map[string]*domain.CommissionSummary{}
	for _, c := range commissions {
		row, ok := byOperator[c.OperatorID]
		if !ok {
			row = &domain.CommissionSummary{OperatorID: c.OperatorID}
			byOperator[c.OperatorID] = row
		}
		row.Count++
		row.TotalCents += c.AmountCents
		if c.Status == domain.CommissionPaid {
			row.PaidCents += c.AmountCents
		} else {
			row.PendingCents += c.AmountCents
		}
	}
	out := make([]domain.CommissionSummary, 0, len(byOperator))
	for _, row := range byOperator {
		out = append(out, *row)
	}
	slices.SortFunc(out, func(a, b domain.CommissionSummary) int {
		return cmp.Compare(a.OperatorID, b.OperatorID)
	})
	return out
}

func CashMovementSummary(registers []domain.CashRegister) []domain.CashMovementSummary {
	byOperator := map[string]*domain.CashMovementSummary{}
	for _, reg := range registers {
		row, ok := byOperator[reg.OperatorID]
		if !ok {
			row = &domain.CashMovementSummary{OperatorID: reg.OperatorID}
			byOperator[reg.OperatorID] = row
		}
		for _, mv := range reg.Movements {
			switch mv.Type {
			case domain.CashWithdrawal:
				row.Withdrawals++
				row.WithdrawalsCents += -mv.AmountCents
			case domain.CashDeposit:
				row.Deposits++
				row.DepositsCents += mv.AmountCents
			}
		}
	}
	out := make([]domain.CashMovementSummary, 0, len(byOperator))
	for _, row := range byOperator {
		out = append(out, *row)
	}
	slices.SortFunc(out, func(a, b domain.CashMovementSummary) int {
		return cmp.Compare(a.OperatorID, b.OperatorID)
	})
	return out
}

// LowStock lists active products at or below their minimum stock, emptiest first.
func LowStock(products []domain.Product) []domain.Product {
	out := make([]domain.Product, 0)
	for _, p := range products {
		if p.Active && p.Stock <= p.MinStock {
			out = append(out, p)
		}
	}
	slices.SortFunc(out, func(a, b domain.Product) int {
		return cmp.Or(cmp.Compare(a.Stock-a.MinStock, b.Stock-b.MinStock), cmp.Compare(a.Name, b.Name))
	})
	return out
}

// Stagnant lists active products with stock and no sale in the last days.
func Stagnant(products []domain.Product, days int, now time.Time) []domain.Product {
	if days <= 0 {
		days = DefaultStagnantDays
	}
	cutoff := now.UTC().AddDate(0, 0, -days)
	out := make([]domain.Product, 0)
	for _, p := range products {
		if !p.Active || p.Stock <= 0 {
			continue
		}
		if p.LastSaleAt == nil || p.LastSaleAt.Before(cutoff) {
			out = append(out, p)
		}
	}
	slices.SortFunc(out, func(a, b domain.Product) int {
		return cmp.Or(compareOptional(a.LastSaleAt, b.LastSaleAt), cmp.Compare(a.Name, b.Name))
	})
	return out
}

// Expiring lists products with an expiration date on or before now+days,
// already expired ones included, soonest first.
func Expiring(products []domain.Product, days int, now time.Time) []domain.Product {
	if days <= 0 {
		days = DefaultExpiringDays
	}
	limit := store.DateOf(now).AddDate(0, 0, days)
	out := make([]domain.Product, 0)
	for _, p := range products {
		if !p.Active || p.ExpiresAt == nil || p.Stock <= 0 {
			continue
		}
		if !store.DateOf(*p.ExpiresAt).After(limit) {
			out = append(out, p)
		}
	}
	slices.SortFunc(out, func(a, b domain.Product) int {
		return cmp.Or(a.ExpiresAt.Compare(*b.ExpiresAt), cmp.Compare(a.Name, b.Name))
	})
	return out
}

// nil sorts first.
func compareOptional(a *time.Time, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	return a.Compare(*b)
}
