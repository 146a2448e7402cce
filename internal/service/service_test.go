package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caixa/backend/internal/domain"
	"caixa/backend/internal/store"
	"caixa/backend/internal/store/memory"
)

var (
	adminActor   = domain.Actor{Username: "admin", Role: domain.RoleAdmin}
	cashierActor = domain.Actor{Username: "cashier", Role: domain.RoleCashier}
)

type testClock struct{ now time.Time }

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) set(t time.Time) { c.now = t }

func newTestService(t *testing.T) (*Service, *memory.Store, *testClock) {
	t.Helper()
	repo := memory.New()
	ctx := context.Background()
	require.NoError(t, repo.CreateUser(ctx, domain.UserAccount{Username: "admin", Password: "x", Role: domain.RoleAdmin}))
	require.NoError(t, repo.CreateUser(ctx, domain.UserAccount{Username: "cashier", Password: "x", Role: domain.RoleCashier}))

	clock := &testClock{now: time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)}
	svc := New(repo, nil)
	svc.SetClock(clock.Now)
	return svc, repo, clock
}

func asAdmin() context.Context {
	return WithActor(context.Background(), adminActor)
}

func asCashier() context.Context {
	return WithActor(context.Background(), cashierActor)
}

func createProduct(t *testing.T, svc *Service, name string, price int64, stock int, cost int64) domain.Product {
	t.Helper()
	p, err := svc.CreateProduct(asAdmin(), domain.ProductCreateRequest{
		Name: name, SalePriceCents: price, CostPriceCents: cost, InitialStock: stock,
	})
	require.NoError(t, err)
	return *p
}

func cashSale(productID string, qty int, paid int64) domain.SaleRequest {
	return domain.SaleRequest{
		Items:    []domain.SaleItemRequest{{ProductID: productID, Quantity: qty}},
		Payments: []domain.PaymentRequest{{Method: domain.PaymentCash, AmountCents: paid}},
	}
}

func TestEntryThenSaleKeepsAverageCost(t *testing.T) {
	svc, _, _ := newTestService(t)
	p := createProduct(t, svc, "Arroz", 350, 0, 0)

	entry, err := svc.RecordStockMovement(asAdmin(), domain.MovementEntry, domain.StockMovementRequest{ProductID: p.ID, Quantity: 10, UnitCostCents: 200})
	require.NoError(t, err)
	assert.Equal(t, 10, entry.Product.Stock)
	assert.Equal(t, int64(200), entry.Product.AverageCostCents)

	_, err = svc.ProcessSale(asCashier(), cashSale(p.ID, 4, 1400))
	require.NoError(t, err)

	got, err := svc.GetProduct(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, 6, got.Stock)
	assert.Equal(t, int64(200), got.AverageCostCents)
	assert.Equal(t, int64(1200), got.InvestedValueCents)
	require.NotNil(t, got.LastSaleAt)
}

func TestWeightedAverageAcrossEntries(t *testing.T) {
	svc, _, _ := newTestService(t)
	p := createProduct(t, svc, "Cafe", 900, 10, 200)

	result, err := svc.RecordStockMovement(asAdmin(), domain.MovementEntry, domain.StockMovementRequest{ProductID: p.ID, Quantity: 30, UnitCostCents: 300})
	require.NoError(t, err)

	assert.Equal(t, int64(275), result.Product.AverageCostCents)
	assert.Equal(t, int64(275*40), result.Product.InvestedValueCents)
}

func TestStockIsConservedAcrossMovements(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := asAdmin()
	p := createProduct(t, svc, "Leite", 500, 10, 300)

	resp, err := svc.ProcessSale(ctx, cashSale(p.ID, 3, 1500))
	require.NoError(t, err)
	_, err = svc.RecordStockMovement(ctx, domain.MovementLoss, domain.StockMovementRequest{ProductID: p.ID, Quantity: 2})
	require.NoError(t, err)
	_, err = svc.ProcessReturn(ctx, domain.ReturnRequest{
		SaleID: resp.Sale.ID,
		Items:  []domain.ReturnItemRequest{{SaleItemID: resp.Sale.Items[0].ID, Quantity: 1}},
	})
	require.NoError(t, err)

	_, err = svc.RecordStockMovement(ctx, domain.MovementLoss, domain.StockMovementRequest{ProductID: p.ID, Quantity: 7})
	require.ErrorIs(t, err, store.ErrInsufficientStock)
	assert.EqualError(t, err, "insufficient stock for product "+p.ID+": requested 7, available 6")

	got, err := svc.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 6, got.Stock)

	rows, err := svc.ListStockMovements(ctx, domain.InventoryFilter{ProductID: p.ID})
	require.NoError(t, err)
	net := 0
	for _, row := range rows {
		switch row.Type {
		case domain.MovementEntry, domain.MovementReturn:
			net += row.Quantity
		default:
			net -= row.Quantity
		}
	}
	assert.Equal(t, got.Stock, net)
}

func TestSaleDiscountAndCashChange(t *testing.T) {
	svc, _, _ := newTestService(t)
	p := createProduct(t, svc, "Sabao", 2500, 5, 1000)

	req := cashSale(p.ID, 2, 5000)
	req.DiscountCents = 500
	resp, err := svc.ProcessSale(asCashier(), req)
	require.NoError(t, err)

	assert.Equal(t, int64(5000), resp.Sale.SubtotalCents)
	assert.Equal(t, int64(4500), resp.Sale.TotalCents)
	assert.Equal(t, int64(500), resp.Sale.ChangeCents)
	assert.Equal(t, int64(500), resp.Sale.Payments[0].ChangeCents)
	assert.Equal(t, "cashier", resp.Sale.OperatorID)
}

func TestMixedPaymentReturnsChangeThroughCash(t *testing.T) {
	svc, _, _ := newTestService(t)
	p := createProduct(t, svc, "Feijao", 4500, 5, 1000)

	resp, err := svc.ProcessSale(asCashier(), domain.SaleRequest{
		Items: []domain.SaleItemRequest{{ProductID: p.ID, Quantity: 1}},
		Payments: []domain.PaymentRequest{
			{Method: domain.PaymentCash, AmountCents: 2000},
			{Method: domain.PaymentCard, AmountCents: 3000},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(500), resp.Sale.Payments[0].ChangeCents)
	assert.Zero(t, resp.Sale.Payments[1].ChangeCents)

	_, err = svc.ProcessSale(asCashier(), domain.SaleRequest{
		Items:    []domain.SaleItemRequest{{ProductID: p.ID, Quantity: 1}},
		Payments: []domain.PaymentRequest{{Method: domain.PaymentCard, AmountCents: 5000}},
	})
	require.ErrorIs(t, err, store.ErrInvalidTransaction)
	assert.Contains(t, err.Error(), "change can only be returned in cash")
}

func TestSaleRejectsShortPayment(t *testing.T) {
	svc, _, _ := newTestService(t)
	p := createProduct(t, svc, "Cafe", 1990, 5, 1000)

	_, err := svc.ProcessSale(asCashier(), cashSale(p.ID, 1, 1000))

	require.ErrorIs(t, err, store.ErrPaymentInsufficient)
	assert.Contains(t, err.Error(), "total 19.90, paid 10.00")
}

func TestFailedSaleLeavesNoTrace(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := asCashier()
	plenty := createProduct(t, svc, "Arroz", 1000, 10, 500)
	scarce := createProduct(t, svc, "Oleo", 1000, 1, 500)

	_, err := svc.ProcessSale(ctx, domain.SaleRequest{
		Items: []domain.SaleItemRequest{
			{ProductID: plenty.ID, Quantity: 2},
			{ProductID: scarce.ID, Quantity: 2},
		},
		Payments: []domain.PaymentRequest{{Method: domain.PaymentCash, AmountCents: 4000}},
	})
	require.ErrorIs(t, err, store.ErrInsufficientStock)

	sales, err := svc.ListSales(ctx, domain.SaleFilter{})
	require.NoError(t, err)
	assert.Empty(t, sales)
	commissions, err := svc.ListCommissions(ctx, domain.CommissionFilter{})
	require.NoError(t, err)
	assert.Empty(t, commissions)
	got, err := svc.GetProduct(ctx, plenty.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, got.Stock)
}

func TestSaleValidationRunsBeforeStore(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.ProcessSale(asCashier(), domain.SaleRequest{})
	require.ErrorIs(t, err, store.ErrInvalidTransaction)

	_, err = svc.ProcessSale(asCashier(), cashSale("missing", 0, 100))
	require.ErrorIs(t, err, store.ErrInvalidTransaction)
	assert.Contains(t, err.Error(), "items[0].quantity must be greater than 0")

	_, err = svc.ProcessSale(asCashier(), cashSale("missing", 1, 100))
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCashierCannotSellForAnotherOperator(t *testing.T) {
	svc, _, _ := newTestService(t)
	p := createProduct(t, svc, "Arroz", 1000, 10, 500)

	req := cashSale(p.ID, 1, 1000)
	req.OperatorID = "admin"
	_, err := svc.ProcessSale(asCashier(), req)

	assert.ErrorIs(t, err, ErrForbidden)
}

func TestPercentageCommissionIsRecordedWithSale(t *testing.T) {
	svc, _, _ := newTestService(t)
	p := createProduct(t, svc, "Sabao", 2250, 5, 1000)

	_, err := svc.UpdateCommission(asAdmin(), "cashier", domain.CommissionUpdateRequest{
		Type: domain.CommissionPercentage, Percent: decimal.RequireFromString("2.5"),
	})
	require.NoError(t, err)

	resp, err := svc.ProcessSale(asCashier(), cashSale(p.ID, 2, 4500))
	require.NoError(t, err)
	require.NotNil(t, resp.Commission)
	assert.Equal(t, int64(113), resp.Commission.AmountCents)
	assert.Equal(t, resp.Sale.ID, resp.Commission.SaleID)

	summary, err := svc.CommissionSummary(asAdmin(), domain.CommissionFilter{})
	require.NoError(t, err)
	require.Len(t, summary, 1)
	assert.Equal(t, int64(113), summary[0].PendingCents)
}

func TestReturnCannotExceedSoldQuantity(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := asCashier()
	p := createProduct(t, svc, "Cafe", 1000, 5, 400)
	resp, err := svc.ProcessSale(ctx, cashSale(p.ID, 2, 2000))
	require.NoError(t, err)
	itemID := resp.Sale.Items[0].ID

	ret, err := svc.ProcessReturn(ctx, domain.ReturnRequest{SaleID: resp.Sale.ID, Items: []domain.ReturnItemRequest{{SaleItemID: itemID, Quantity: 1}}})
	require.NoError(t, err)
	assert.Equal(t, int64(1000), ret.TotalCents)

	_, err = svc.ProcessReturn(ctx, domain.ReturnRequest{SaleID: resp.Sale.ID, Items: []domain.ReturnItemRequest{{SaleItemID: itemID, Quantity: 2}}})
	require.ErrorIs(t, err, store.ErrInvalidTransaction)

	_, err = svc.ProcessReturn(ctx, domain.ReturnRequest{SaleID: "sale-missing", Items: []domain.ReturnItemRequest{{SaleItemID: itemID, Quantity: 1}}})
	require.ErrorIs(t, err, store.ErrNotFound)

	got, err := svc.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, got.Stock)
}

func TestEarnPointsForSaleOnlyOnce(t *testing.T) {
	svc, _, _ := newTestService(t)
	p := createProduct(t, svc, "Arroz", 4500, 5, 1000)
	customer, err := svc.CreateCustomer(asCashier(), domain.CustomerCreateRequest{Name: "Maria"})
	require.NoError(t, err)

	none, err := svc.ProcessSale(asCashier(), cashSale(p.ID, 1, 4500))
	require.NoError(t, err)
	noop, err := svc.EarnPointsForSale(asCashier(), none.Sale.ID)
	require.ErrorIs(t, err, store.ErrInvalidTransaction)
	assert.Zero(t, noop.Points)

	req := cashSale(p.ID, 1, 4500)
	req.CustomerID = customer.ID
	resp, err := svc.ProcessSale(asCashier(), req)
	require.NoError(t, err)

	result, err := svc.EarnPointsForSale(asCashier(), resp.Sale.ID)
	require.NoError(t, err)
	assert.Zero(t, result.Points, "no active program yet")

	_, err = svc.CreateLoyaltyProgram(asAdmin(), domain.LoyaltyProgramCreateRequest{Name: "Pontos", PointsPerCurrency: decimal.RequireFromString("1.5")})
	require.NoError(t, err)

	result, err = svc.EarnPointsForSale(asCashier(), resp.Sale.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(67), result.Points)

	_, err = svc.EarnPointsForSale(asCashier(), resp.Sale.ID)
	require.ErrorIs(t, err, store.ErrConflict)

	status, err := svc.LoyaltyStatus(asCashier(), customer.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(67), status.Points)
	require.NotNil(t, status.Program)
}

func TestCatalogueChangesRequireAdmin(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.CreateProduct(asCashier(), domain.ProductCreateRequest{Name: "Arroz"})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.CreateProduct(context.Background(), domain.ProductCreateRequest{Name: "Arroz"})
	assert.ErrorIs(t, err, ErrForbidden)
}
