package report

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caixa/backend/internal/cache"
	"caixa/backend/internal/domain"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestFinancialAlertsSplitsOverdueAndThisWeek(t *testing.T) {
	today := date(2025, 3, 10)
	txs := []domain.FinancialTransaction{
		{ID: "a", Status: domain.FinancialOverdue, AmountCents: 100, DueDate: date(2025, 3, 1)},
		{ID: "b", Status: domain.FinancialPending, AmountCents: 200, DueDate: date(2025, 3, 9)},
		{ID: "c", Status: domain.FinancialPending, AmountCents: 300, DueDate: date(2025, 3, 10)},
		{ID: "d", Status: domain.FinancialPending, AmountCents: 400, DueDate: date(2025, 3, 17)},
		{ID: "e", Status: domain.FinancialPending, AmountCents: 500, DueDate: date(2025, 3, 18)},
		{ID: "f", Status: domain.FinancialPaid, AmountCents: 600, DueDate: date(2025, 3, 2)},
	}

	alerts := FinancialAlerts(txs, today.Add(15*time.Hour))

	require.Len(t, alerts.Overdue, 2)
	assert.Equal(t, "a", alerts.Overdue[0].ID)
	assert.Equal(t, int64(300), alerts.OverdueTotalCents)
	require.Len(t, alerts.DueThisWeek, 2)
	assert.Equal(t, int64(700), alerts.DueThisWeekTotalCents)
}

func TestCashFlowForecastProjectsRecurringAndOpenTransactions(t *testing.T) {
	now := date(2025, 1, 20)
	txs := []domain.FinancialTransaction{
		{Type: domain.FinancialReceivable, Status: domain.FinancialPending, AmountCents: 5000, DueDate: date(2025, 1, 25)},
		{Type: domain.FinancialPayable, Status: domain.FinancialPending, AmountCents: 2000, DueDate: date(2025, 2, 5)},
		{Type: domain.FinancialPayable, Status: domain.FinancialPaid, AmountCents: 9999, DueDate: date(2025, 2, 5)},
		{Type: domain.FinancialPayable, Status: domain.FinancialOverdue, AmountCents: 7777, DueDate: date(2025, 1, 2)},
		{Type: domain.FinancialIncome, Status: domain.FinancialPending, AmountCents: 1, DueDate: date(2025, 6, 1)},
	}
	entries := []domain.RecurringEntry{
		{Type: domain.FinancialExpense, AmountCents: 1000, Frequency: domain.FrequencyMonthly, StartDate: date(2024, 6, 1), Active: true},
		{Type: domain.FinancialIncome, AmountCents: 300, Frequency: domain.FrequencyMonthly, StartDate: date(2024, 6, 1), Active: false},
	}

	forecast := CashFlowForecast(txs, entries, now, 0)

	require.Len(t, forecast.Months, DefaultForecastMonths)
	assert.Equal(t, "2025-01", forecast.Months[0].Month)
	assert.Equal(t, int64(5000), forecast.Months[0].InflowCents)
	assert.Equal(t, int64(1000), forecast.Months[0].OutflowCents)
	assert.Equal(t, int64(4000), forecast.Months[0].NetCents)
	assert.Equal(t, int64(3000), forecast.Months[1].OutflowCents)
	assert.Equal(t, int64(1000), forecast.Months[1].CumulativeCents)
	assert.Equal(t, int64(0), forecast.Months[2].CumulativeCents)
}

func TestSupplierReportCountsReceivedSpend(t *testing.T) {
	suppliers := []domain.Supplier{{ID: "s1", Name: "Alfa", ReliabilityScore: 80}, {ID: "s2", Name: "Beta", ReliabilityScore: 95}}
	orders := []domain.PurchaseOrder{
		{SupplierID: "s1", Status: domain.POReceived, TotalCents: 1000},
		{SupplierID: "s1", Status: domain.POReceived, TotalCents: 3000},
		{SupplierID: "s1", Status: domain.POOrdered, TotalCents: 500},
		{SupplierID: "s1", Status: domain.POCancelled, TotalCents: 700},
	}

	rows := SupplierReport(suppliers, orders)

	require.Len(t, rows, 2)
	assert.Equal(t, "s2", rows[0].Supplier.ID)
	alfa := rows[1]
	assert.Equal(t, 4, alfa.TotalOrders)
	assert.Equal(t, 2, alfa.CompletedOrders)
	assert.Equal(t, 1, alfa.PendingOrders)
	assert.Equal(t, int64(4000), alfa.TotalSpentCents)
	assert.Equal(t, int64(2000), alfa.AverageOrderCents)
}

func TestCommissionAndCashMovementSummaries(t *testing.T) {
	commissions := CommissionSummary([]domain.Commission{
		{OperatorID: "b", AmountCents: 100, Status: domain.CommissionPending},
		{OperatorID: "a", AmountCents: 50, Status: domain.CommissionPaid},
		{OperatorID: "a", AmountCents: 25, Status: domain.CommissionPending},
	})
	require.Len(t, commissions, 2)
	assert.Equal(t, domain.CommissionSummary{OperatorID: "a", Count: 2, TotalCents: 75, PaidCents: 50, PendingCents: 25}, commissions[0])

	movements := CashMovementSummary([]domain.CashRegister{{
		OperatorID: "a",
		Movements: []domain.CashMovement{
			{Type: domain.CashWithdrawal, AmountCents: -300},
			{Type: domain.CashDeposit, AmountCents: 120},
			{Type: domain.CashWithdrawal, AmountCents: -200},
		},
	}})
	require.Len(t, movements, 1)
	assert.Equal(t, int64(500), movements[0].WithdrawalsCents)
	assert.Equal(t, 2, movements[0].Withdrawals)
	assert.Equal(t, int64(120), movements[0].DepositsCents)
}

func TestProductLists(t *testing.T) {
	now := date(2025, 5, 1)
	recent := now.AddDate(0, 0, -3)
	old := now.AddDate(0, 0, -45)
	soon := now.AddDate(0, 0, 5)
	later := now.AddDate(0, 0, 20)
	products := []domain.Product{
		{ID: "low", Name: "Low", Stock: 2, MinStock: 5, Active: true, LastSaleAt: &recent, ExpiresAt: &later},
		{ID: "old", Name: "Old", Stock: 9, MinStock: 1, Active: true, LastSaleAt: &old, ExpiresAt: &soon},
		{ID: "never", Name: "Never", Stock: 4, Active: true},
		{ID: "off", Name: "Off", Stock: 0, MinStock: 3, Active: false},
	}

	low := LowStock(products)
	require.Len(t, low, 1)
	assert.Equal(t, "low", low[0].ID)

	stagnant := Stagnant(products, 0, now)
	require.Len(t, stagnant, 2)
	assert.Equal(t, "never", stagnant[0].ID)

	expiring := Expiring(products, 0, now)
	require.Len(t, expiring, 1)
	assert.Equal(t, "old", expiring[0].ID)
	assert.Len(t, Expiring(products, 30, now), 2)
}

type failingCache struct{}

func (failingCache) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("redis down")
}

func (failingCache) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("redis down")
}

func TestCachedReusesStoredValue(t *testing.T) {
	engine := NewEngine(cache.NewMemoryReportCache(), time.Minute)
	ctx := context.Background()
	calls := 0
	build := func() (domain.FinancialAlerts, error) {
		calls++
		return domain.FinancialAlerts{OverdueTotalCents: 42}, nil
	}

	first, err := Cached(ctx, engine, "alerts", []string{"2025-01-01"}, build)
	require.NoError(t, err)
	second, err := Cached(ctx, engine, "alerts", []string{"2025-01-01"}, build)
	require.NoError(t, err)
	_, err = Cached(ctx, engine, "alerts", []string{"2025-01-02"}, build)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 2, calls)
}

func TestCachedFallsBackWhenCacheFails(t *testing.T) {
	engine := NewEngine(failingCache{}, time.Minute)

	got, err := Cached(context.Background(), engine, "alerts", nil, func() (int, error) { return 7, nil })

	require.NoError(t, err)
	assert.Equal(t, 7, got)
}
