package sqlite

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caixa/backend/internal/domain"
	"caixa/backend/internal/store"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open("file:"+t.Name()+"?mode=memory&cache=shared", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func stocked(t *testing.T, s *Store, stock int, cost int64) domain.Product {
	t.Helper()
	ctx := context.Background()
	p, err := s.CreateProduct(ctx, domain.Product{Name: "Feijão 1kg", SalePriceCents: 900, Active: true})
	require.NoError(t, err)
	_, err = s.ApplyStockMovement(ctx, domain.StockMovement{ProductID: p.ID, Type: domain.MovementEntry, Quantity: stock, UnitCostCents: cost})
	require.NoError(t, err)
	got, err := s.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	return *got
}

func TestUsersAreCaseInsensitiveAndUnique(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	require.NoError(t, s.CreateUser(ctx, domain.UserAccount{Username: "Maria", Password: "hash", Role: domain.RoleCashier}))
	err := s.CreateUser(ctx, domain.UserAccount{Username: "maria", Password: "hash"})
	require.ErrorIs(t, err, store.ErrConflict)

	u, err := s.GetUser(ctx, "MARIA")
	require.NoError(t, err)
	assert.Equal(t, "maria", u.Username)
	assert.True(t, u.Active)

	updated, err := s.UpdateUserCommission(ctx, "maria", domain.CommissionUpdateRequest{Type: domain.CommissionPercentage, Percent: decimal.RequireFromString("2.5")})
	require.NoError(t, err)
	assert.True(t, updated.CommissionPercent.Equal(decimal.RequireFromString("2.5")))

	require.ErrorIs(t, s.UpdateUserPassword(ctx, "ghost", "x"), store.ErrNotFound)
}

func TestProductsWithoutBarcodeCoexist(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	_, err := s.CreateProduct(ctx, domain.Product{Name: "A"})
	require.NoError(t, err)
	_, err = s.CreateProduct(ctx, domain.Product{Name: "B"})
	require.NoError(t, err)

	_, err = s.CreateProduct(ctx, domain.Product{Name: "C", Barcode: "789"})
	require.NoError(t, err)
	_, err = s.CreateProduct(ctx, domain.Product{Name: "D", Barcode: "789"})
	require.ErrorIs(t, err, store.ErrConflict)

	p, err := s.GetProductByBarcode(ctx, "789")
	require.NoError(t, err)
	assert.Equal(t, "C", p.Name)
}

func TestSaleAndReturnKeepStockAndValuation(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	p := stocked(t, s, 10, 400)

	sale, err := s.CreateSale(ctx, domain.Sale{
		OperatorID: "caixa1",
		Items:      []domain.SaleItem{{ProductID: p.ID, Quantity: 4, UnitPriceCents: 900, TotalCents: 3600}},
		Payments:   []domain.Payment{{Method: domain.PaymentCash, AmountCents: 4000, ChangeCents: 400}},
		TotalCents: 3600,
	}, &domain.Commission{OperatorID: "caixa1", AmountCents: 36, Status: domain.CommissionPending})
	require.NoError(t, err)

	got, err := s.GetSale(ctx, sale.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	require.Len(t, got.Payments, 1)
	assert.NotEmpty(t, got.Items[0].ID)

	product, err := s.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 6, product.Stock)
	assert.Equal(t, int64(2400), product.InvestedValueCents)
	assert.NotNil(t, product.LastSaleAt)

	commissions, err := s.ListCommissions(ctx, domain.CommissionFilter{OperatorID: "caixa1"})
	require.NoError(t, err)
	require.Len(t, commissions, 1)
	assert.Equal(t, sale.ID, commissions[0].SaleID)

	_, err = s.CreateReturn(ctx, domain.Return{SaleID: sale.ID, Items: []domain.ReturnItem{{SaleItemID: got.Items[0].ID, Quantity: 3}}})
	require.NoError(t, err)
	_, err = s.CreateReturn(ctx, domain.Return{SaleID: sale.ID, Items: []domain.ReturnItem{{SaleItemID: got.Items[0].ID, Quantity: 2}}})
	require.ErrorIs(t, err, store.ErrInvalidTransaction)

	returned, err := s.GetReturnedQtyBySale(ctx, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, returned[got.Items[0].ID])

	product, err = s.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 9, product.Stock)
}

func TestFailedSaleIsRolledBack(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	a := stocked(t, s, 5, 100)
	b := stocked(t, s, 1, 100)

	_, err := s.CreateSale(ctx, domain.Sale{
		OperatorID: "caixa1",
		Items: []domain.SaleItem{
			{ProductID: a.ID, Quantity: 2, UnitPriceCents: 900},
			{ProductID: b.ID, Quantity: 2, UnitPriceCents: 900},
		},
	}, nil)
	require.ErrorIs(t, err, store.ErrInsufficientStock)

	got, err := s.GetProduct(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Stock)
	sales, err := s.ListSales(ctx, domain.SaleFilter{})
	require.NoError(t, err)
	assert.Empty(t, sales)
}

func TestConcurrentSalesStopAtZero(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	p := stocked(t, s, 6, 100)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 15; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.CreateSale(ctx, domain.Sale{
				OperatorID: "caixa1",
				Items:      []domain.SaleItem{{ProductID: p.ID, Quantity: 1, UnitPriceCents: 900}},
			}, nil)
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	got, err := s.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 6, succeeded)
	assert.Zero(t, got.Stock)
}

func TestCashRegisterLifecycle(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	p := stocked(t, s, 5, 100)

	reg, err := s.OpenCashRegister(ctx, domain.CashRegister{OperatorID: "caixa1", InitialCents: 5000})
	require.NoError(t, err)
	_, err = s.OpenCashRegister(ctx, domain.CashRegister{OperatorID: "caixa1"})
	require.ErrorIs(t, err, store.ErrAlreadyOpen)

	_, err = s.RecordCashMovement(ctx, domain.CashMovement{RegisterID: reg.ID, Type: domain.CashWithdrawal, AmountCents: 6000})
	require.ErrorIs(t, err, store.ErrInsufficientFunds)
	withdrawn, err := s.RecordCashMovement(ctx, domain.CashMovement{RegisterID: reg.ID, Type: domain.CashWithdrawal, AmountCents: 1000})
	require.NoError(t, err)
	assert.Equal(t, int64(4000), withdrawn.ExpectedCents)

	_, err = s.CreateSale(ctx, domain.Sale{
		OperatorID: "caixa1",
		Items:      []domain.SaleItem{{ProductID: p.ID, Quantity: 1, UnitPriceCents: 900, TotalCents: 900}},
		Payments:   []domain.Payment{{Method: domain.PaymentCash, AmountCents: 1000, ChangeCents: 100}},
		TotalCents: 900,
	}, nil)
	require.NoError(t, err)

	result, err := s.CloseCashRegister(ctx, reg.ID, 4800, time.Now().UTC().Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, int64(4900), result.Report.ExpectedCents)
	assert.Equal(t, int64(-100), result.Report.DifferenceCents)

	open, err := s.GetOpenCashRegister(ctx, "caixa1")
	assert.Nil(t, open)
	assert.ErrorIs(t, err, store.ErrNotFound)

	history, err := s.ListCashRegisters(ctx, domain.CashRegisterFilter{OperatorID: "caixa1"})
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Len(t, history[0].Movements, 1)
	assert.Equal(t, domain.RegisterClosed, history[0].Status)
}

func TestCreditAndLoyaltyBalances(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	c, err := s.CreateCustomer(ctx, domain.Customer{Name: "Dona Ana", CreditLimitCents: 10000})
	require.NoError(t, err)

	_, err = s.PostCreditTransaction(ctx, domain.CreditTransaction{CustomerID: c.ID, Type: domain.CreditSale, AmountCents: 8000})
	require.NoError(t, err)
	_, err = s.PostCreditTransaction(ctx, domain.CreditTransaction{CustomerID: c.ID, Type: domain.CreditSale, AmountCents: 3000})
	require.ErrorIs(t, err, store.ErrCreditLimitExceeded)
	_, err = s.PostCreditTransaction(ctx, domain.CreditTransaction{CustomerID: c.ID, Type: domain.CreditPayment, AmountCents: 9000})
	require.NoError(t, err)

	got, err := s.GetCustomer(ctx, c.ID)
	require.NoError(t, err)
	assert.Zero(t, got.CurrentDebtCents)

	_, err = s.PostLoyaltyTransaction(ctx, domain.LoyaltyTransaction{CustomerID: c.ID, Type: domain.LoyaltyEarned, Points: 12, SaleID: "sale-x"})
	require.NoError(t, err)
	_, err = s.PostLoyaltyTransaction(ctx, domain.LoyaltyTransaction{CustomerID: c.ID, Type: domain.LoyaltyEarned, Points: 12, SaleID: "sale-x"})
	require.ErrorIs(t, err, store.ErrConflict)
	_, err = s.PostLoyaltyTransaction(ctx, domain.LoyaltyTransaction{CustomerID: c.ID, Type: domain.LoyaltyRedeemed, Points: 20})
	require.ErrorIs(t, err, store.ErrInsufficientPoints)

	got, err = s.GetCustomer(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(12), got.LoyaltyPoints)

	credit, err := s.ListCreditTransactions(ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, credit, 2)
}

func TestOnlyLatestLoyaltyProgramIsActive(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	_, err := s.GetActiveLoyaltyProgram(ctx)
	require.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.CreateLoyaltyProgram(ctx, domain.LoyaltyProgram{Name: "Básico", PointsPerCurrency: decimal.NewFromInt(1)})
	require.NoError(t, err)
	second, err := s.CreateLoyaltyProgram(ctx, domain.LoyaltyProgram{Name: "Dobro", PointsPerCurrency: decimal.NewFromInt(2)})
	require.NoError(t, err)

	active, err := s.GetActiveLoyaltyProgram(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.ID, active.ID)
	assert.True(t, active.PointsPerCurrency.Equal(decimal.NewFromInt(2)))
}

func TestPurchaseOrderPartialThenFullReceipt(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	p := stocked(t, s, 2, 300)

	sup, err := s.CreateSupplier(ctx, domain.Supplier{Name: "Atacado Sul"})
	require.NoError(t, err)
	assert.Equal(t, 100, sup.ReliabilityScore)

	expected := time.Now().UTC().AddDate(0, 0, 1)
	po, err := s.CreatePurchaseOrder(ctx, domain.PurchaseOrder{
		SupplierID: sup.ID, ExpectedDate: &expected,
		Items: []domain.PurchaseOrderItem{{ProductID: p.ID, Quantity: 10, UnitCostCents: 500}},
	})
	require.NoError(t, err)
	itemID := po.Items[0].ID

	partial, err := s.ReceivePurchaseOrderItem(ctx, po.ID, itemID, 4, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, domain.POPartial, partial.Status)

	full, err := s.ReceivePurchaseOrderItem(ctx, po.ID, itemID, 10, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, domain.POReceived, full.Status)
	assert.NotNil(t, full.ReceivedDate)

	product, err := s.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 12, product.Stock)

	events, err := s.ListReliabilityEvents(ctx, sup.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventOnTimeDelivery, events[0].EventType)

	_, err = s.ReceivePurchaseOrderItem(ctx, po.ID, itemID, 10, time.Now().UTC())
	assert.ErrorIs(t, err, store.ErrInvalidTransaction)
}

func TestFinancialTransitionsAreLogged(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	asOf := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

	late, err := s.CreateFinancialTransaction(ctx, domain.FinancialTransaction{Type: domain.FinancialPayable, Description: "Energia", AmountCents: 21000, DueDate: asOf.AddDate(0, 0, -1), CreatedAt: asOf.AddDate(0, 0, -7)}, "admin")
	require.NoError(t, err)
	_, err = s.CreateFinancialTransaction(ctx, domain.FinancialTransaction{Type: domain.FinancialPayable, Description: "Água", AmountCents: 9000, DueDate: asOf, CreatedAt: asOf.AddDate(0, 0, -7)}, "admin")
	require.NoError(t, err)

	n, err := s.MarkOverdueFinancialTransactions(ctx, asOf, "system")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	paid, err := s.PayFinancialTransaction(ctx, late.ID, "admin", asOf.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, domain.FinancialPaid, paid.Status)
	_, err = s.CancelFinancialTransaction(ctx, late.ID, "admin", asOf.Add(2*time.Hour))
	require.ErrorIs(t, err, store.ErrInvalidTransaction)

	logs, err := s.ListFinancialLogs(ctx, late.ID)
	require.NoError(t, err)
	require.Len(t, logs, 3)
	assert.Equal(t, []string{domain.LogCreated, domain.LogOverdue, domain.LogPaid}, []string{logs[0].Action, logs[1].Action, logs[2].Action})
	assert.Empty(t, logs[0].OldValues)
	assert.NotEmpty(t, logs[2].NewValues)

	open, err := s.ListFinancialTransactions(ctx, domain.FinancialFilter{Status: domain.FinancialPending})
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "Água", open[0].Description)
}

func TestInstallmentPlanAndRecurringGeneration(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	txs := make([]domain.FinancialTransaction, 3)
	for i := range txs {
		txs[i] = domain.FinancialTransaction{Type: domain.FinancialReceivable, Description: "Parcela", AmountCents: 1000, DueDate: start.AddDate(0, i, 0)}
	}
	plan, err := s.CreateInstallmentPlan(ctx, domain.Installment{Description: "Geladeira", TotalCents: 3000, Count: 3, InstallmentCents: 1000, StartDate: start}, txs, "admin")
	require.NoError(t, err)

	linked, err := s.ListFinancialTransactions(ctx, domain.FinancialFilter{InstallmentID: plan.Installment.ID})
	require.NoError(t, err)
	assert.Len(t, linked, 3)

	deactivated, err := s.DeactivateInstallment(ctx, plan.Installment.ID)
	require.NoError(t, err)
	assert.False(t, deactivated.Active)
	active, err := s.ListInstallments(ctx, domain.InstallmentFilter{Status: "active"})
	require.NoError(t, err)
	assert.Empty(t, active)

	entry, err := s.CreateRecurringEntry(ctx, domain.RecurringEntry{Type: domain.FinancialExpense, Description: "Aluguel", AmountCents: 150000, Frequency: domain.FrequencyMonthly, StartDate: start})
	require.NoError(t, err)
	today := start.AddDate(0, 1, 0)
	ft := domain.FinancialTransaction{Type: entry.Type, Description: entry.Description, AmountCents: entry.AmountCents, DueDate: today}

	var wg sync.WaitGroup
	var mu sync.Mutex
	generated, conflicts := 0, 0
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.GenerateRecurringTransaction(ctx, entry.ID, nil, today, ft, "system")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				generated++
			case errors.Is(err, store.ErrConflict):
				conflicts++
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, generated)
	assert.Equal(t, 4, conflicts)

	got, err := s.GetRecurringEntry(ctx, entry.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastGenerated)
	assert.True(t, store.DateOf(*got.LastGenerated).Equal(today))
}
