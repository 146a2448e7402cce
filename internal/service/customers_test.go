package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caixa/backend/internal/domain"
	"caixa/backend/internal/store"
)

func TestCreditLimitAcceptsBoundaryAndRejectsBeyond(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := asCashier()
	c, err := svc.CreateCustomer(ctx, domain.CustomerCreateRequest{Name: "Joao", CreditLimitCents: 10000})
	require.NoError(t, err)

	entry, err := svc.RecordCreditSale(ctx, c.ID, domain.CreditRequest{AmountCents: 10000, Description: "fiado"})
	require.NoError(t, err)
	assert.Equal(t, domain.CreditPending, entry.Status)

	_, err = svc.RecordCreditSale(ctx, c.ID, domain.CreditRequest{AmountCents: 1})
	require.ErrorIs(t, err, store.ErrCreditLimitExceeded)

	status, err := svc.CreditStatus(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), status.Customer.CurrentDebtCents)
	assert.Zero(t, status.AvailableCents)
	assert.Len(t, status.Transactions, 1)
}

func TestCreditOverpaymentClampsDebtAtZero(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := asCashier()
	c, err := svc.CreateCustomer(ctx, domain.CustomerCreateRequest{Name: "Ana", CreditLimitCents: 5000})
	require.NoError(t, err)
	_, err = svc.RecordCreditSale(ctx, c.ID, domain.CreditRequest{AmountCents: 3000})
	require.NoError(t, err)

	payment, err := svc.RecordCreditPayment(ctx, c.ID, domain.CreditRequest{AmountCents: 4000})
	require.NoError(t, err)
	assert.Equal(t, int64(-4000), payment.AmountCents)
	require.NotNil(t, payment.PaidAt)

	got, err := svc.GetCustomer(ctx, c.ID)
	require.NoError(t, err)
	assert.Zero(t, got.CurrentDebtCents)
}

func TestCreditStatusListsOverdueSales(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := asCashier()
	c, err := svc.CreateCustomer(ctx, domain.CustomerCreateRequest{Name: "Rita", CreditLimitCents: 5000})
	require.NoError(t, err)
	_, err = svc.RecordCreditSale(ctx, c.ID, domain.CreditRequest{AmountCents: 1000, DueDate: "2025-01-10"})
	require.NoError(t, err)
	_, err = svc.RecordCreditSale(ctx, c.ID, domain.CreditRequest{AmountCents: 1000, DueDate: "2025-02-10"})
	require.NoError(t, err)

	status, err := svc.CreditStatus(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, status.Overdue, 1)
	assert.Equal(t, int64(3000), status.AvailableCents)

	_, err = svc.RecordCreditSale(ctx, c.ID, domain.CreditRequest{AmountCents: 1000, DueDate: "10/02/2025"})
	assert.ErrorIs(t, err, store.ErrInvalidTransaction)
}

func TestRedeemingFullBalanceLeavesZero(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := asCashier()
	c, err := svc.CreateCustomer(ctx, domain.CustomerCreateRequest{Name: "Lia"})
	require.NoError(t, err)

	_, err = svc.EarnPoints(ctx, c.ID, domain.LoyaltyRequest{Points: 50})
	require.NoError(t, err)
	redeemed, err := svc.RedeemPoints(ctx, c.ID, domain.LoyaltyRequest{Points: 50})
	require.NoError(t, err)
	assert.Equal(t, int64(-50), redeemed.Points)

	_, err = svc.RedeemPoints(ctx, c.ID, domain.LoyaltyRequest{Points: 1})
	require.ErrorIs(t, err, store.ErrInsufficientPoints)

	status, err := svc.LoyaltyStatus(ctx, c.ID)
	require.NoError(t, err)
	assert.Zero(t, status.Points)
	assert.Len(t, status.Transactions, 2)
}

func TestOnlyAdminChangesCreditLimit(t *testing.T) {
	svc, _, _ := newTestService(t)
	c, err := svc.CreateCustomer(asCashier(), domain.CustomerCreateRequest{Name: "Bia", Email: "bia@example.com"})
	require.NoError(t, err)

	limit := int64(20000)
	phone := " 11988887777 "
	_, err = svc.UpdateCustomer(asCashier(), c.ID, domain.CustomerUpdateRequest{CreditLimitCents: &limit})
	require.ErrorIs(t, err, ErrForbidden)

	updated, err := svc.UpdateCustomer(asCashier(), c.ID, domain.CustomerUpdateRequest{Phone: &phone})
	require.NoError(t, err)
	assert.Equal(t, "11988887777", updated.Phone)

	updated, err = svc.UpdateCustomer(asAdmin(), c.ID, domain.CustomerUpdateRequest{CreditLimitCents: &limit})
	require.NoError(t, err)
	assert.Equal(t, limit, updated.CreditLimitCents)

	_, err = svc.CreateCustomer(asCashier(), domain.CustomerCreateRequest{Name: "Bad", Email: "not-an-email"})
	assert.ErrorIs(t, err, store.ErrInvalidTransaction)
}
