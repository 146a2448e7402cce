package store

import (
	"context"
	"time"

	"caixa/backend/internal/domain"
)

type UserStore interface {
	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	GetUser(ctx context.Context, username string) (*domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
	UpdateUserCommission(ctx context.Context, username string, req domain.CommissionUpdateRequest) (*domain.UserAccount, error)
}

// InventoryStore owns product stock. ApplyStockMovement is the only path that
// changes Stock, AverageCostCents or InvestedValueCents.
type InventoryStore interface {
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	GetProductByBarcode(ctx context.Context, barcode string) (*domain.Product, error)
	ListProducts(ctx context.Context) ([]domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	ApplyStockMovement(ctx context.Context, movement domain.StockMovement) (*domain.StockMovementResult, error)
	ListInventoryTransactions(ctx context.Context, filter domain.InventoryFilter) ([]domain.InventoryTransaction, error)
}

type SaleStore interface {
	// CreateSale persists the sale graph, decrements stock for every line and
	// stores the commission (when not nil) in one transaction.
	CreateSale(ctx context.Context, sale domain.Sale, commission *domain.Commission) (*domain.Sale, error)
	GetSale(ctx context.Context, id string) (*domain.Sale, error)
	ListSales(ctx context.Context, filter domain.SaleFilter) ([]domain.Sale, error)
	ListCommissions(ctx context.Context, filter domain.CommissionFilter) ([]domain.Commission, error)
	CreateReturn(ctx context.Context, ret domain.Return) (*domain.Return, error)
	GetReturnedQtyBySale(ctx context.Context, saleID string) (map[string]int, error)
	ListReturns(ctx context.Context, saleID string) ([]domain.Return, error)
}

type CashStore interface {
	OpenCashRegister(ctx context.Context, register domain.CashRegister) (*domain.CashRegister, error)
	GetCashRegister(ctx context.Context, id string) (*domain.CashRegister, error)
	GetOpenCashRegister(ctx context.Context, operatorID string) (*domain.CashRegister, error)
	RecordCashMovement(ctx context.Context, movement domain.CashMovement) (*domain.CashRegister, error)
	CloseCashRegister(ctx context.Context, id string, actualCents int64, closedAt time.Time) (*domain.CashCloseResult, error)
	ListCashRegisters(ctx context.Context, filter domain.CashRegisterFilter) ([]domain.CashRegister, error)
}

type CustomerStore interface {
	CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	GetCustomer(ctx context.Context, id string) (*domain.Customer, error)
	ListCustomers(ctx context.Context) ([]domain.Customer, error)
	UpdateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	PostCreditTransaction(ctx context.Context, entry domain.CreditTransaction) (*domain.CreditTransaction, error)
	ListCreditTransactions(ctx context.Context, customerID string) ([]domain.CreditTransaction, error)
	PostLoyaltyTransaction(ctx context.Context, entry domain.LoyaltyTransaction) (*domain.LoyaltyTransaction, error)
	ListLoyaltyTransactions(ctx context.Context, customerID string) ([]domain.LoyaltyTransaction, error)
	CreateLoyaltyProgram(ctx context.Context, program domain.LoyaltyProgram) (*domain.LoyaltyProgram, error)
	GetActiveLoyaltyProgram(ctx context.Context) (*domain.LoyaltyProgram, error)
}

type SupplierStore interface {
	CreateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error)
	GetSupplier(ctx context.Context, id string) (*domain.Supplier, error)
	ListSuppliers(ctx context.Context) ([]domain.Supplier, error)
	UpdateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error)
	CreatePurchaseOrder(ctx context.Context, po domain.PurchaseOrder) (*domain.PurchaseOrder, error)
	GetPurchaseOrder(ctx context.Context, id string) (*domain.PurchaseOrder, error)
	ListPurchaseOrders(ctx context.Context, supplierID string, status string) ([]domain.PurchaseOrder, error)
	UpdatePurchaseOrderStatus(ctx context.Context, id string, status string, at time.Time) (*domain.PurchaseOrder, error)
	ReceivePurchaseOrderItem(ctx context.Context, orderID string, itemID string, receivedQty int, at time.Time) (*domain.PurchaseOrder, error)
	ListReliabilityEvents(ctx context.Context, supplierID string) ([]domain.ReliabilityEvent, error)
}

// FinancialStore writes a FinancialLog in the same transaction as every change.
type FinancialStore interface {
	CreateFinancialTransaction(ctx context.Context, tx domain.FinancialTransaction, actor string) (*domain.FinancialTransaction, error)
	GetFinancialTransaction(ctx context.Context, id string) (*domain.FinancialTransaction, error)
	ListFinancialTransactions(ctx context.Context, filter domain.FinancialFilter) ([]domain.FinancialTransaction, error)
	UpdateFinancialTransaction(ctx context.Context, id string, patch domain.FinancialTransactionPatch, actor string, at time.Time) (*domain.FinancialTransaction, error)
	PayFinancialTransaction(ctx context.Context, id string, actor string, paidAt time.Time) (*domain.FinancialTransaction, error)
	CancelFinancialTransaction(ctx context.Context, id string, actor string, at time.Time) (*domain.FinancialTransaction, error)
	MarkOverdueFinancialTransactions(ctx context.Context, asOf time.Time, actor string) (int, error)
	ListFinancialLogs(ctx context.Context, transactionID string) ([]domain.FinancialLog, error)

	CreateInstallmentPlan(ctx context.Context, plan domain.Installment, txs []domain.FinancialTransaction, actor string) (*domain.InstallmentPlan, error)
	GetInstallment(ctx context.Context, id string) (*domain.Installment, error)
	ListInstallments(ctx context.Context, filter domain.InstallmentFilter) ([]domain.Installment, error)
	DeactivateInstallment(ctx context.Context, id string) (*domain.Installment, error)

	CreateRecurringEntry(ctx context.Context, entry domain.RecurringEntry) (*domain.RecurringEntry, error)
	GetRecurringEntry(ctx context.Context, id string) (*domain.RecurringEntry, error)
	ListRecurringEntries(ctx context.Context, activeOnly bool) ([]domain.RecurringEntry, error)
	DeactivateRecurringEntry(ctx context.Context, id string) (*domain.RecurringEntry, error)
	// GenerateRecurringTransaction inserts tx and advances LastGenerated to
	// today only if LastGenerated still equals prevLast; otherwise ErrConflict.
	GenerateRecurringTransaction(ctx context.Context, entryID string, prevLast *time.Time, today time.Time, tx domain.FinancialTransaction, actor string) (*domain.FinancialTransaction, error)
}

type Repository interface {
	UserStore
	InventoryStore
	SaleStore
	CashStore
	CustomerStore
	SupplierStore
	FinancialStore
}
