package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caixa/backend/internal/domain"
	"caixa/backend/internal/store"
)

func TestCashSessionReconciles(t *testing.T) {
	svc, _, clock := newTestService(t)
	ctx := asCashier()
	p := createProduct(t, svc, "Arroz", 4500, 10, 1000)

	reg, err := svc.OpenCashRegister(ctx, domain.CashOpenRequest{InitialCents: 10000})
	require.NoError(t, err)
	assert.Equal(t, "cashier", reg.OperatorID)

	clock.set(clock.now.Add(time.Minute))
	_, err = svc.ProcessSale(ctx, cashSale(p.ID, 1, 5000))
	require.NoError(t, err)
	_, err = svc.ProcessSale(ctx, domain.SaleRequest{
		Items:    []domain.SaleItemRequest{{ProductID: p.ID, Quantity: 1}},
		Payments: []domain.PaymentRequest{{Method: domain.PaymentPix, AmountCents: 4500}},
	})
	require.NoError(t, err)

	_, err = svc.Withdraw(ctx, domain.CashMovementRequest{RegisterID: reg.ID, AmountCents: 2000, Description: "sangria"})
	require.NoError(t, err)
	after, err := svc.Deposit(ctx, domain.CashMovementRequest{RegisterID: reg.ID, AmountCents: 500, Description: "troco"})
	require.NoError(t, err)
	assert.Equal(t, int64(8500), after.ExpectedCents)

	clock.set(clock.now.Add(time.Hour))
	result, err := svc.CloseCashRegister(ctx, domain.CashCloseRequest{RegisterID: reg.ID, ActualCents: 12900})
	require.NoError(t, err)
	assert.Equal(t, domain.CashReconciliation{
		InitialCents:    10000,
		CashSalesCents:  4500,
		MovementsCents:  -1500,
		ExpectedCents:   13000,
		ActualCents:     12900,
		DifferenceCents: -100,
	}, result.Report)
	assert.Equal(t, domain.RegisterClosed, result.Register.Status)

	_, err = svc.CloseCashRegister(ctx, domain.CashCloseRequest{RegisterID: reg.ID, ActualCents: 12900})
	require.ErrorIs(t, err, store.ErrNotOpen)

	_, err = svc.CurrentCashRegister(ctx, "")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestWithdrawalCannotExceedExpected(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := asCashier()
	reg, err := svc.OpenCashRegister(ctx, domain.CashOpenRequest{InitialCents: 1000})
	require.NoError(t, err)

	_, err = svc.Withdraw(ctx, domain.CashMovementRequest{RegisterID: reg.ID, AmountCents: 1001})
	require.ErrorIs(t, err, store.ErrInsufficientFunds)
	assert.EqualError(t, err, "insufficient funds for cash register "+reg.ID+": requested 10.01, available 10.00")

	_, err = svc.Withdraw(ctx, domain.CashMovementRequest{RegisterID: reg.ID, AmountCents: 0})
	require.ErrorIs(t, err, store.ErrInvalidTransaction)

	_, err = svc.Withdraw(ctx, domain.CashMovementRequest{RegisterID: "reg-missing", AmountCents: 10})
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestOperatorHoldsOneOpenRegister(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.OpenCashRegister(asCashier(), domain.CashOpenRequest{InitialCents: 0})
	require.NoError(t, err)
	_, err = svc.OpenCashRegister(asCashier(), domain.CashOpenRequest{InitialCents: 100})
	require.ErrorIs(t, err, store.ErrAlreadyOpen)

	_, err = svc.OpenCashRegister(asAdmin(), domain.CashOpenRequest{InitialCents: 100})
	assert.NoError(t, err)
}

func TestCashierCannotTouchAnotherDrawer(t *testing.T) {
	svc, _, _ := newTestService(t)
	reg, err := svc.OpenCashRegister(asAdmin(), domain.CashOpenRequest{InitialCents: 5000})
	require.NoError(t, err)

	_, err = svc.Withdraw(asCashier(), domain.CashMovementRequest{RegisterID: reg.ID, AmountCents: 100})
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = svc.OpenCashRegister(asCashier(), domain.CashOpenRequest{OperatorID: "admin"})
	assert.ErrorIs(t, err, ErrForbidden)

	history, err := svc.CashRegisterHistory(asCashier(), domain.CashRegisterFilter{})
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestCashMovementReportGroupsByOperator(t *testing.T) {
	svc, _, _ := newTestService(t)
	reg, err := svc.OpenCashRegister(asCashier(), domain.CashOpenRequest{InitialCents: 5000})
	require.NoError(t, err)
	_, err = svc.Withdraw(asCashier(), domain.CashMovementRequest{RegisterID: reg.ID, AmountCents: 1200})
	require.NoError(t, err)

	_, err = svc.CashMovementReport(asCashier(), domain.CashRegisterFilter{})
	require.ErrorIs(t, err, ErrForbidden)

	rows, err := svc.CashMovementReport(asAdmin(), domain.CashRegisterFilter{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(1200), rows[0].WithdrawalsCents)
}
