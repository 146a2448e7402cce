package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caixa/backend/internal/domain"
	"caixa/backend/internal/store"
)

func createCustomer(t *testing.T, svc *Service, name string) domain.Customer {
	t.Helper()
	c, err := svc.CreateCustomer(asAdmin(), domain.CustomerCreateRequest{Name: name})
	require.NoError(t, err)
	return *c
}

func TestInstallmentPlanSplitsMonthly(t *testing.T) {
	svc, _, _ := newTestService(t)
	c := createCustomer(t, svc, "Carla")

	plan, err := svc.CreateInstallmentPlan(asAdmin(), domain.InstallmentCreateRequest{
		Description: "Geladeira", TotalCents: 30000, Count: 3, StartDate: "2025-01-15", CustomerID: c.ID,
	})
	require.NoError(t, err)
	require.Len(t, plan.Transactions, 3)
	assert.Equal(t, int64(10000), plan.Installment.InstallmentCents)

	wantDue := []time.Time{
		time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 2, 15, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC),
	}
	for i, tx := range plan.Transactions {
		assert.Equal(t, int64(10000), tx.AmountCents)
		assert.True(t, wantDue[i].Equal(tx.DueDate), "due %s", tx.DueDate)
		assert.Equal(t, domain.FinancialReceivable, tx.Type)
		assert.Equal(t, domain.FinancialPending, tx.Status)
		assert.Equal(t, plan.Installment.ID, tx.InstallmentID)
	}
	assert.Equal(t, "Geladeira - installment 2/3", plan.Transactions[1].Description)

	logs, err := svc.ListFinancialLogs(asAdmin(), plan.Transactions[0].ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, domain.LogCreated, logs[0].Action)
	assert.Equal(t, "admin", logs[0].Actor)
}

func TestInstallmentRemainderGoesToLast(t *testing.T) {
	svc, _, _ := newTestService(t)
	sup, err := svc.CreateSupplier(asAdmin(), domain.SupplierCreateRequest{Name: "Atacado"})
	require.NoError(t, err)

	plan, err := svc.CreateInstallmentPlan(asAdmin(), domain.InstallmentCreateRequest{
		Description: "Estoque", TotalCents: 10000, Count: 3, StartDate: "2025-01-15", SupplierID: sup.ID,
	})
	require.NoError(t, err)

	var sum int64
	amounts := make([]int64, 0, 3)
	for _, tx := range plan.Transactions {
		assert.Equal(t, domain.FinancialPayable, tx.Type)
		amounts = append(amounts, tx.AmountCents)
		sum += tx.AmountCents
	}
	assert.Equal(t, []int64{3333, 3333, 3334}, amounts)
	assert.Equal(t, int64(10000), sum)
}

func TestInstallmentTotalMustCoverEveryInstallment(t *testing.T) {
	svc, repo, _ := newTestService(t)
	c := createCustomer(t, svc, "Bia")

	_, err := svc.CreateInstallmentPlan(asAdmin(), domain.InstallmentCreateRequest{
		Description: "Chiclete", TotalCents: 2, Count: 3, StartDate: "2025-01-15", CustomerID: c.ID,
	})
	require.ErrorIs(t, err, store.ErrInvalidTransaction)
	assert.Contains(t, err.Error(), "total 0.02 cannot be split into 3 installments of at least 0.01")

	plan, err := svc.CreateInstallmentPlan(asAdmin(), domain.InstallmentCreateRequest{
		Description: "Chiclete", TotalCents: 3, Count: 3, StartDate: "2025-01-15", CustomerID: c.ID,
	})
	require.NoError(t, err)
	for _, tx := range plan.Transactions {
		assert.Equal(t, int64(1), tx.AmountCents)
	}

	plans, err := repo.ListInstallments(context.Background(), domain.InstallmentFilter{})
	require.NoError(t, err)
	assert.Len(t, plans, 1)
}

func TestInstallmentCountIsBounded(t *testing.T) {
	svc, repo, _ := newTestService(t)
	c := createCustomer(t, svc, "Bia")

	_, err := svc.CreateInstallmentPlan(asAdmin(), domain.InstallmentCreateRequest{
		Description: "Casa", TotalCents: 1_000_000_000, Count: 100_000_000, StartDate: "2025-01-15", CustomerID: c.ID,
	})
	require.ErrorIs(t, err, store.ErrInvalidTransaction)
	assert.Contains(t, err.Error(), "number_of_installments must be at most 360")

	txs, err := repo.ListFinancialTransactions(context.Background(), domain.FinancialFilter{})
	require.NoError(t, err)
	assert.Empty(t, txs)

	_, err = svc.CreateInstallmentPlan(asAdmin(), domain.InstallmentCreateRequest{
		Description: "Casa", TotalCents: 360_000, Count: 360, StartDate: "2025-01-15", CustomerID: c.ID,
	})
	assert.NoError(t, err)
}

func TestInstallmentNeedsExactlyOneCounterparty(t *testing.T) {
	svc, _, _ := newTestService(t)
	c := createCustomer(t, svc, "Duda")
	sup, err := svc.CreateSupplier(asAdmin(), domain.SupplierCreateRequest{Name: "Atacado"})
	require.NoError(t, err)

	base := domain.InstallmentCreateRequest{Description: "Plano", TotalCents: 1000, Count: 2, StartDate: "2025-01-15"}
	_, err = svc.CreateInstallmentPlan(asAdmin(), base)
	assert.ErrorIs(t, err, store.ErrInvalidTransaction)

	both := base
	both.CustomerID, both.SupplierID = c.ID, sup.ID
	_, err = svc.CreateInstallmentPlan(asAdmin(), both)
	assert.ErrorIs(t, err, store.ErrInvalidTransaction)

	missing := base
	missing.CustomerID = "cust-missing"
	_, err = svc.CreateInstallmentPlan(asAdmin(), missing)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestInstallmentSummaryTracksPayments(t *testing.T) {
	svc, _, clock := newTestService(t)
	c := createCustomer(t, svc, "Eva")
	plan, err := svc.CreateInstallmentPlan(asAdmin(), domain.InstallmentCreateRequest{
		Description: "Sofa", TotalCents: 30000, Count: 3, StartDate: "2025-01-15", CustomerID: c.ID,
	})
	require.NoError(t, err)

	_, err = svc.PayFinancialTransaction(asAdmin(), plan.Transactions[0].ID)
	require.NoError(t, err)

	clock.set(time.Date(2025, 2, 20, 9, 0, 0, 0, time.UTC))
	marked, err := svc.MarkOverdue(asAdmin())
	require.NoError(t, err)
	assert.Equal(t, 1, marked)

	detail, err := svc.GetInstallment(asAdmin(), plan.Installment.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), detail.Summary.TotalPaidCents)
	assert.Equal(t, int64(10000), detail.Summary.TotalOverdueCents)
	assert.Equal(t, int64(10000), detail.Summary.TotalPendingCents)
	assert.Equal(t, int64(20000), detail.Summary.RemainingCents)
	assert.Equal(t, 1, detail.Summary.Counts[domain.FinancialPaid])
	assert.Equal(t, 0, detail.Summary.Counts[domain.FinancialCancelled])

	overdue, err := svc.ListInstallments(asAdmin(), domain.InstallmentFilter{Status: domain.FinancialOverdue})
	require.NoError(t, err)
	require.Len(t, overdue, 1)

	_, err = svc.DeactivateInstallment(asAdmin(), plan.Installment.ID)
	require.NoError(t, err)
	active, err := svc.ListInstallments(asAdmin(), domain.InstallmentFilter{Status: "active"})
	require.NoError(t, err)
	assert.Empty(t, active)

	_, err = svc.ListInstallments(asAdmin(), domain.InstallmentFilter{Status: "later"})
	assert.ErrorIs(t, err, store.ErrInvalidTransaction)
}

func TestRecurringEntryGeneratesOncePerPeriod(t *testing.T) {
	svc, _, clock := newTestService(t)
	entry, err := svc.CreateRecurringEntry(asAdmin(), domain.RecurringCreateRequest{
		Type: domain.FinancialExpense, Description: "Aluguel", AmountCents: 150000,
		Frequency: domain.FrequencyMonthly, StartDate: "2024-12-10",
	})
	require.NoError(t, err)

	first, err := svc.ProcessRecurring(WithActor(t.Context(), SystemActor))
	require.NoError(t, err)
	require.Equal(t, 1, first.ProcessedCount)
	assert.Equal(t, entry.ID, first.Transactions[0].RecurringID)
	assert.Equal(t, "system", first.Transactions[0].CreatedBy)

	again, err := svc.ProcessRecurring(t.Context())
	require.NoError(t, err)
	assert.Zero(t, again.ProcessedCount)

	clock.set(time.Date(2025, 2, 3, 8, 0, 0, 0, time.UTC))
	next, err := svc.ProcessRecurring(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, next.ProcessedCount)

	_, err = svc.DeactivateRecurringEntry(asAdmin(), entry.ID)
	require.NoError(t, err)
	clock.set(time.Date(2025, 3, 3, 8, 0, 0, 0, time.UTC))
	after, err := svc.ProcessRecurring(t.Context())
	require.NoError(t, err)
	assert.Zero(t, after.ProcessedCount)
}

func TestRecurringEntryRejectsEndBeforeStart(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.CreateRecurringEntry(asAdmin(), domain.RecurringCreateRequest{
		Type: domain.FinancialIncome, Description: "Aluguel sala", AmountCents: 1000,
		Frequency: domain.FrequencyWeekly, StartDate: "2025-02-01", EndDate: "2025-01-01",
	})
	assert.ErrorIs(t, err, store.ErrInvalidTransaction)

	_, err = svc.CreateRecurringEntry(asAdmin(), domain.RecurringCreateRequest{
		Type: domain.FinancialPayable, Description: "Boleto", AmountCents: 1000,
		Frequency: domain.FrequencyWeekly, StartDate: "2025-02-01",
	})
	assert.ErrorIs(t, err, store.ErrInvalidTransaction)
}

func TestPaidTransactionIsFinal(t *testing.T) {
	svc, _, _ := newTestService(t)
	tx, err := svc.CreateFinancialTransaction(asAdmin(), domain.FinancialCreateRequest{
		Type: domain.FinancialPayable, Description: "Energia", AmountCents: 25000, DueDate: "2025-01-20",
	})
	require.NoError(t, err)

	paid, err := svc.PayFinancialTransaction(asAdmin(), tx.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.FinancialPaid, paid.Status)
	require.NotNil(t, paid.PaidAt)

	amount := int64(1)
	_, err = svc.UpdateFinancialTransaction(asAdmin(), tx.ID, domain.FinancialUpdateRequest{AmountCents: &amount})
	assert.ErrorIs(t, err, store.ErrInvalidTransaction)
	_, err = svc.CancelFinancialTransaction(asAdmin(), tx.ID)
	assert.ErrorIs(t, err, store.ErrInvalidTransaction)

	logs, err := svc.ListFinancialLogs(asAdmin(), tx.ID)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, domain.LogPaid, logs[1].Action)
	assert.NotEmpty(t, logs[1].OldValues)
	assert.NotEmpty(t, logs[1].NewValues)
}

func TestFinancialWritesRequireAdmin(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.CreateFinancialTransaction(asCashier(), domain.FinancialCreateRequest{
		Type: domain.FinancialPayable, Description: "Energia", AmountCents: 25000, DueDate: "2025-01-20",
	})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.CreateInstallmentPlan(asCashier(), domain.InstallmentCreateRequest{})
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = svc.CreateRecurringEntry(asCashier(), domain.RecurringCreateRequest{})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestFinancialAlertsAndForecast(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := asAdmin()
	mustCreate := func(txType string, amount int64, due string) {
		t.Helper()
		_, err := svc.CreateFinancialTransaction(ctx, domain.FinancialCreateRequest{Type: txType, Description: "lancamento", AmountCents: amount, DueDate: due})
		require.NoError(t, err)
	}
	mustCreate(domain.FinancialPayable, 900, "2025-01-10")
	mustCreate(domain.FinancialReceivable, 5000, "2025-01-18")
	mustCreate(domain.FinancialPayable, 3000, "2025-02-10")

	alerts, err := svc.FinancialAlerts(ctx)
	require.NoError(t, err)
	require.Len(t, alerts.Overdue, 1)
	require.Len(t, alerts.DueThisWeek, 1)
	assert.Equal(t, int64(900), alerts.OverdueTotalCents)
	assert.Equal(t, int64(5000), alerts.DueThisWeekTotalCents)

	forecast, err := svc.CashFlowForecast(ctx, 0)
	require.NoError(t, err)
	require.Len(t, forecast.Months, 3)
	assert.Equal(t, "2025-01", forecast.Months[0].Month)
	assert.Equal(t, int64(5000), forecast.Months[0].InflowCents)
	assert.Equal(t, int64(3000), forecast.Months[1].OutflowCents)
	assert.Equal(t, int64(2000), forecast.Months[2].CumulativeCents)

	_, err = svc.CashFlowForecast(ctx, 25)
	assert.ErrorIs(t, err, store.ErrInvalidTransaction)
}
