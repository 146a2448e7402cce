package postgres

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"caixa/backend/internal/domain"
	"caixa/backend/internal/store"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	databaseURL := os.Getenv("CAIXA_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set CAIXA_TEST_DATABASE_URL to run postgres integration test")
	}
	if err := Migrate(databaseURL); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	s, err := New(context.Background(), databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

func TestSaleAndReturnMoveStock(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	p, err := s.CreateProduct(ctx, domain.Product{Name: "Produto IT", SalePriceCents: 500, Active: true})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	if _, err := s.ApplyStockMovement(ctx, domain.StockMovement{ProductID: p.ID, Type: domain.MovementEntry, Quantity: 10, UnitCostCents: 200}); err != nil {
		t.Fatalf("entry: %v", err)
	}

	sale, err := s.CreateSale(ctx, domain.Sale{
		OperatorID: "it-operator",
		Items:      []domain.SaleItem{{ProductID: p.ID, Quantity: 3, UnitPriceCents: 500, TotalCents: 1500}},
		Payments:   []domain.Payment{{Method: domain.PaymentCash, AmountCents: 1500}},
		TotalCents: 1500,
		PaidCents:  1500,
	}, &domain.Commission{OperatorID: "it-operator", AmountCents: 75, Status: domain.CommissionPending})
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}

	got, err := s.GetProduct(ctx, p.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if got.Stock != 7 || got.InvestedValueCents != 1400 {
		t.Fatalf("expected stock 7 worth 1400, got %d worth %d", got.Stock, got.InvestedValueCents)
	}

	ret, err := s.CreateReturn(ctx, domain.Return{
		SaleID:     sale.ID,
		OperatorID: "it-operator",
		Items:      []domain.ReturnItem{{SaleItemID: sale.Items[0].ID, Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("create return: %v", err)
	}
	if ret.TotalCents != 1000 {
		t.Fatalf("expected return total 1000, got %d", ret.TotalCents)
	}
	if _, err := s.CreateReturn(ctx, domain.Return{
		SaleID: sale.ID,
		Items:  []domain.ReturnItem{{SaleItemID: sale.Items[0].ID, Quantity: 2}},
	}); !errors.Is(err, store.ErrInvalidTransaction) {
		t.Fatalf("expected over-return to be rejected, got %v", err)
	}

	got, _ = s.GetProduct(ctx, p.ID)
	if got.Stock != 9 {
		t.Fatalf("expected stock 9 after return, got %d", got.Stock)
	}
}

func TestConcurrentSalesDoNotOversell(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	p, err := s.CreateProduct(ctx, domain.Product{Name: "Produto Concorrente", SalePriceCents: 100, Active: true})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	if _, err := s.ApplyStockMovement(ctx, domain.StockMovement{ProductID: p.ID, Type: domain.MovementEntry, Quantity: 5, UnitCostCents: 50}); err != nil {
		t.Fatalf("entry: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.CreateSale(ctx, domain.Sale{
				OperatorID: "it-concurrent",
				Items:      []domain.SaleItem{{ProductID: p.ID, Quantity: 1, UnitPriceCents: 100, TotalCents: 100}},
				TotalCents: 100,
				CreatedAt:  time.Now().UTC(),
			}, nil)
		}()
	}
	wg.Wait()

	got, err := s.GetProduct(ctx, p.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if got.Stock < 0 {
		t.Fatalf("stock went negative: %d", got.Stock)
	}
	sales, err := s.ListSales(ctx, domain.SaleFilter{OperatorID: "it-concurrent"})
	if err != nil {
		t.Fatalf("list sales: %v", err)
	}
	if len(sales)+got.Stock != 5 {
		t.Fatalf("expected sold plus remaining to equal 5, got %d sold and %d left", len(sales), got.Stock)
	}
}

func TestOpenRegisterIsUniquePerOperator(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	operator := "it-reg-" + time.Now().Format("150405.000000")

	reg, err := s.OpenCashRegister(ctx, domain.CashRegister{OperatorID: operator, InitialCents: 1000})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := s.OpenCashRegister(ctx, domain.CashRegister{OperatorID: operator}); !errors.Is(err, store.ErrAlreadyOpen) {
		t.Fatalf("expected already open, got %v", err)
	}
	if _, err := s.RecordCashMovement(ctx, domain.CashMovement{RegisterID: reg.ID, Type: domain.CashWithdrawal, AmountCents: 2000}); !errors.Is(err, store.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	result, err := s.CloseCashRegister(ctx, reg.ID, 1000, time.Now().UTC())
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if result.Report.DifferenceCents != 0 {
		t.Fatalf("expected zero difference, got %d", result.Report.DifferenceCents)
	}
}
