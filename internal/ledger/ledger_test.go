package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caixa/backend/internal/domain"
	"caixa/backend/internal/store"
)

func openRegister(initial int64) domain.CashRegister {
	return domain.CashRegister{
		ID: "reg-1", OperatorID: "op1", Status: domain.RegisterOpen,
		InitialCents: initial, ExpectedCents: initial,
		OpenedAt: time.Date(2025, 5, 2, 8, 0, 0, 0, time.UTC),
	}
}

func TestCashRegisterCloseReconciles(t *testing.T) {
	reg := openRegister(10000)
	sales := []domain.Sale{
		{OperatorID: "op1", CreatedAt: reg.OpenedAt.Add(time.Hour), Payments: []domain.Payment{{Method: domain.PaymentCash, AmountCents: 5000}}},
		{OperatorID: "op1", CreatedAt: reg.OpenedAt.Add(2 * time.Hour), Payments: []domain.Payment{{Method: domain.PaymentCard, AmountCents: 9000}}},
		{OperatorID: "op2", CreatedAt: reg.OpenedAt.Add(time.Hour), Payments: []domain.Payment{{Method: domain.PaymentCash, AmountCents: 700}}},
		{OperatorID: "op1", CreatedAt: reg.OpenedAt.Add(-time.Hour), Payments: []domain.Payment{{Method: domain.PaymentCash, AmountCents: 800}}},
	}

	reg, mv, err := ApplyCashMovement(reg, domain.CashMovement{Type: domain.CashWithdrawal, AmountCents: 2000})
	require.NoError(t, err)
	assert.Equal(t, int64(-2000), mv.AmountCents)
	assert.Equal(t, int64(8000), reg.ExpectedCents)

	result, err := Reconcile(reg, sales, 12900, reg.OpenedAt.Add(8*time.Hour))
	require.NoError(t, err)

	assert.Equal(t, int64(5000), result.Report.CashSalesCents)
	assert.Equal(t, int64(-2000), result.Report.MovementsCents)
	assert.Equal(t, int64(13000), result.Report.ExpectedCents)
	assert.Equal(t, int64(-100), result.Report.DifferenceCents)
	assert.Equal(t, domain.RegisterClosed, result.Register.Status)
	require.NotNil(t, result.Register.ActualCents)
	assert.Equal(t, int64(12900), *result.Register.ActualCents)

	_, err = Reconcile(result.Register, sales, 0, time.Now())
	assert.ErrorIs(t, err, store.ErrNotOpen)
}

func TestCashSalesCountChangeGivenBack(t *testing.T) {
	reg := openRegister(0)
	sales := []domain.Sale{{
		OperatorID: "op1", CreatedAt: reg.OpenedAt.Add(time.Minute),
		Payments: []domain.Payment{{Method: domain.PaymentCash, AmountCents: 5000, ChangeCents: 1500}},
	}}

	result, err := Reconcile(reg, sales, 3500, reg.OpenedAt.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(3500), result.Report.CashSalesCents)
	assert.Zero(t, result.Report.DifferenceCents)
}

func TestWithdrawalBeyondExpectedFails(t *testing.T) {
	reg := openRegister(1000)

	next, _, err := ApplyCashMovement(reg, domain.CashMovement{Type: domain.CashWithdrawal, AmountCents: 1001})
	require.ErrorIs(t, err, store.ErrInsufficientFunds)
	assert.Equal(t, "insufficient funds for cash register reg-1: requested 10.01, available 10.00", err.Error())
	assert.Equal(t, int64(1000), next.ExpectedCents)

	_, _, err = ApplyCashMovement(reg, domain.CashMovement{Type: domain.CashDeposit, AmountCents: 0})
	assert.ErrorIs(t, err, store.ErrInvalidTransaction)

	reg.Status = domain.RegisterClosed
	_, _, err = ApplyCashMovement(reg, domain.CashMovement{Type: domain.CashDeposit, AmountCents: 10})
	assert.ErrorIs(t, err, store.ErrNotOpen)
}

func TestCreditLimitAndPaymentClamp(t *testing.T) {
	c := domain.Customer{ID: "c-1", CreditLimitCents: 50000, CurrentDebtCents: 45000}

	_, _, err := ApplyCredit(c, domain.CreditTransaction{Type: domain.CreditSale, AmountCents: 6000})
	require.ErrorIs(t, err, store.ErrCreditLimitExceeded)
	assert.Equal(t, "credit limit exceeded for customer c-1: requested 60.00, available 50.00", err.Error())

	c, entry, err := ApplyCredit(c, domain.CreditTransaction{Type: domain.CreditSale, AmountCents: 5000})
	require.NoError(t, err)
	assert.Equal(t, int64(50000), c.CurrentDebtCents, "reaching the limit exactly is accepted")
	assert.Equal(t, domain.CreditPending, entry.Status)

	c, entry, err = ApplyCredit(c, domain.CreditTransaction{Type: domain.CreditPayment, AmountCents: 70000})
	require.NoError(t, err)
	assert.Zero(t, c.CurrentDebtCents)
	assert.Equal(t, int64(-70000), entry.AmountCents)
	assert.Equal(t, domain.CreditPaid, entry.Status)
	assert.NotNil(t, entry.PaidAt)
}

func TestLoyaltyRedeemNeedsBalance(t *testing.T) {
	c := domain.Customer{ID: "c-1"}

	c, _, err := ApplyLoyalty(c, domain.LoyaltyTransaction{Type: domain.LoyaltyEarned, Points: 10})
	require.NoError(t, err)

	_, _, err = ApplyLoyalty(c, domain.LoyaltyTransaction{Type: domain.LoyaltyRedeemed, Points: 11})
	assert.ErrorIs(t, err, store.ErrInsufficientPoints)

	c, entry, err := ApplyLoyalty(c, domain.LoyaltyTransaction{Type: domain.LoyaltyRedeemed, Points: 10})
	require.NoError(t, err)
	assert.Zero(t, c.LoyaltyPoints)
	assert.Equal(t, int64(-10), entry.Points)
}

func TestPrepareReturnCapsAtSoldQuantity(t *testing.T) {
	sale := domain.Sale{ID: "s-1", Items: []domain.SaleItem{
		{ID: "si-1", ProductID: "p-1", Quantity: 3, UnitPriceCents: 500},
	}}

	ret, movements, err := PrepareReturn(sale, map[string]int{"si-1": 1}, domain.Return{Items: []domain.ReturnItem{{SaleItemID: "si-1", Quantity: 2}}})
	require.NoError(t, err)
	assert.Equal(t, int64(1000), ret.TotalCents)
	assert.Equal(t, "p-1", ret.Items[0].ProductID)
	require.Len(t, movements, 1)
	assert.Equal(t, domain.MovementReturn, movements[0].Type)

	_, _, err = PrepareReturn(sale, map[string]int{"si-1": 2}, domain.Return{Items: []domain.ReturnItem{{SaleItemID: "si-1", Quantity: 2}}})
	assert.ErrorIs(t, err, store.ErrInvalidTransaction)

	_, _, err = PrepareReturn(sale, nil, domain.Return{Items: []domain.ReturnItem{{SaleItemID: "si-1", Quantity: 2}, {SaleItemID: "si-1", Quantity: 2}}})
	assert.ErrorIs(t, err, store.ErrInvalidTransaction, "split lines are summed")

	_, _, err = PrepareReturn(sale, nil, domain.Return{Items: []domain.ReturnItem{{SaleItemID: "other", Quantity: 1}}})
	assert.ErrorIs(t, err, store.ErrInvalidTransaction)
}

func TestFinancialTransitions(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	tx := domain.FinancialTransaction{ID: "f-1", Status: domain.FinancialPending, DueDate: now.AddDate(0, 0, -1)}

	assert.True(t, Overdue(tx, now))
	tx.DueDate = now.Add(-time.Hour)
	assert.False(t, Overdue(tx, now), "due today is not overdue")

	paid, err := Pay(tx, now)
	require.NoError(t, err)
	assert.Equal(t, domain.FinancialPaid, paid.Status)

	_, err = Pay(paid, now)
	assert.ErrorIs(t, err, store.ErrInvalidTransaction)
	_, err = Cancel(paid, now)
	assert.ErrorIs(t, err, store.ErrInvalidTransaction)

	cancelled, err := Cancel(tx, now)
	require.NoError(t, err)
	assert.Equal(t, domain.FinancialCancelled, cancelled.Status)
}
