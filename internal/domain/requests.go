package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type CashierCreateRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type CashierUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type CommissionUpdateRequest struct {
	Type       string          `json:"type" validate:"oneof=none percentage fixed"`
	Percent    decimal.Decimal `json:"percent"`
	FixedCents int64           `json:"fixed_cents" validate:"gte=0"`
}

type ProductCreateRequest struct {
	Name           string `json:"name" validate:"required"`
	Barcode        string `json:"barcode"`
	Category       string `json:"category"`
	CostPriceCents int64  `json:"cost_price_cents" validate:"gte=0"`
	SalePriceCents int64  `json:"sale_price_cents" validate:"gte=0"`
	MinStock       int    `json:"min_stock" validate:"gte=0"`
	ExpiresAt      string `json:"expires_at"`
	InitialStock   int    `json:"initial_stock" validate:"gte=0"`
}

type ProductUpdateRequest struct {
	Name           *string `json:"name,omitempty"`
	Barcode        *string `json:"barcode,omitempty"`
	Category       *string `json:"category,omitempty"`
	CostPriceCents *int64  `json:"cost_price_cents,omitempty"`
	SalePriceCents *int64  `json:"sale_price_cents,omitempty"`
	MinStock       *int    `json:"min_stock,omitempty"`
	ExpiresAt      *string `json:"expires_at,omitempty"`
	Active         *bool   `json:"active,omitempty"`
}

type StockMovementRequest struct {
	ProductID     string `json:"product_id" validate:"required"`
	Quantity      int    `json:"quantity" validate:"gt=0"`
	UnitCostCents int64  `json:"unit_cost_cents" validate:"gte=0"`
	Reference     string `json:"reference"`
}

type InventoryFilter struct {
	ProductID string
	Type      string
	From      *time.Time
	To        *time.Time
	Limit     int
}

type SaleRequest struct {
	CustomerID    string            `json:"customer_id"`
	OperatorID    string            `json:"operator_id"`
	Items         []SaleItemRequest `json:"items" validate:"required,min=1,dive"`
	Payments      []PaymentRequest  `json:"payments" validate:"dive"`
	DiscountCents int64             `json:"discount_cents" validate:"gte=0"`
}

type SaleItemRequest struct {
	ProductID      string `json:"product_id" validate:"required"`
	Quantity       int    `json:"quantity" validate:"gt=0"`
	UnitPriceCents int64  `json:"unit_price_cents" validate:"gte=0"`
	DiscountCents  int64  `json:"discount_cents" validate:"gte=0"`
}

type PaymentRequest struct {
	Method      string `json:"method" validate:"oneof=cash card pix transfer voucher"`
	AmountCents int64  `json:"amount_cents" validate:"gt=0"`
}

type SaleResponse struct {
	Sale       Sale        `json:"sale"`
	Commission *Commission `json:"commission,omitempty"`
}

type SaleFilter struct {
	From       *time.Time
	To         *time.Time
	OperatorID string
	CustomerID string
	Limit      int
}

type CommissionFilter struct {
	From       *time.Time
	To         *time.Time
	OperatorID string
	Status     string
	Limit      int
}

type CommissionSummary struct {
	OperatorID   string `json:"operator_id"`
	Count        int    `json:"count"`
	TotalCents   int64  `json:"total_cents"`
	PaidCents    int64  `json:"paid_cents"`
	PendingCents int64  `json:"pending_cents"`
}

type ReturnRequest struct {
	SaleID     string              `json:"sale_id" validate:"required"`
	OperatorID string              `json:"operator_id"`
	Items      []ReturnItemRequest `json:"items" validate:"required,min=1,dive"`
	ManagerPIN string              `json:"manager_pin"`
}

type ReturnItemRequest struct {
	SaleItemID string `json:"sale_item_id" validate:"required"`
	Quantity   int    `json:"quantity" validate:"gt=0"`
	Reason     string `json:"reason"`
}

type CashOpenRequest struct {
	OperatorID   string `json:"operator_id"`
	InitialCents int64  `json:"initial_cents" validate:"gte=0"`
}

type CashMovementRequest struct {
	RegisterID  string `json:"register_id" validate:"required"`
	AmountCents int64  `json:"amount_cents" validate:"gt=0"`
	Description string `json:"description"`
}

type CashCloseRequest struct {
	RegisterID  string `json:"register_id" validate:"required"`
	ActualCents int64  `json:"actual_cents" validate:"gte=0"`
}

type CashRegisterFilter struct {
	OperatorID string
	From       *time.Time
	To         *time.Time
	Limit      int
}

type CashMovementSummary struct {
	OperatorID       string `json:"operator_id"`
	Withdrawals      int    `json:"withdrawals"`
	WithdrawalsCents int64  `json:"withdrawals_cents"`
	Deposits         int    `json:"deposits"`
	DepositsCents    int64  `json:"deposits_cents"`
}

type CustomerCreateRequest struct {
	Name             string `json:"name" validate:"required"`
	Email            string `json:"email" validate:"omitempty,email"`
	Phone            string `json:"phone"`
	Document         string `json:"document"`
	Address          string `json:"address"`
	BirthDate        string `json:"birth_date"`
	CreditLimitCents int64  `json:"credit_limit_cents" validate:"gte=0"`
}

type CustomerUpdateRequest struct {
	Name             *string `json:"name,omitempty"`
	Email            *string `json:"email,omitempty"`
	Phone            *string `json:"phone,omitempty"`
	Document         *string `json:"document,omitempty"`
	Address          *string `json:"address,omitempty"`
	BirthDate        *string `json:"birth_date,omitempty"`
	CreditLimitCents *int64  `json:"credit_limit_cents,omitempty"`
}

type CreditRequest struct {
	AmountCents int64  `json:"amount_cents" validate:"gt=0"`
	Description string `json:"description"`
	DueDate     string `json:"due_date"`
}

type CreditStatus struct {
	Customer       Customer            `json:"customer"`
	AvailableCents int64               `json:"available_cents"`
	Transactions   []CreditTransaction `json:"transactions"`
	Overdue        []CreditTransaction `json:"overdue"`
}

type LoyaltyRequest struct {
	Points      int64  `json:"points" validate:"gt=0"`
	Description string `json:"description"`
}

type LoyaltyStatus struct {
	Customer     Customer             `json:"customer"`
	Points       int64                `json:"points"`
	Program      *LoyaltyProgram      `json:"program,omitempty"`
	Transactions []LoyaltyTransaction `json:"transactions"`
}

type LoyaltyProgramCreateRequest struct {
	Name              string          `json:"name" validate:"required"`
	Description       string          `json:"description"`
	PointsPerCurrency decimal.Decimal `json:"points_per_currency"`
}

type EarnForSaleResult struct {
	Points      int64               `json:"points"`
	Transaction *LoyaltyTransaction `json:"transaction,omitempty"`
}

type SupplierCreateRequest struct {
	Name             string `json:"name" validate:"required"`
	Document         string `json:"document"`
	Email            string `json:"email" validate:"omitempty,email"`
	Phone            string `json:"phone"`
	Address          string `json:"address"`
	BankDetails      string `json:"bank_details"`
	CreditLimitCents int64  `json:"credit_limit_cents" validate:"gte=0"`
}

type SupplierUpdateRequest struct {
	Name             *string `json:"name,omitempty"`
	Document         *string `json:"document,omitempty"`
	Email            *string `json:"email,omitempty"`
	Phone            *string `json:"phone,omitempty"`
	Address          *string `json:"address,omitempty"`
	BankDetails      *string `json:"bank_details,omitempty"`
	CreditLimitCents *int64  `json:"credit_limit_cents,omitempty"`
}

type PurchaseOrderCreateRequest struct {
	SupplierID   string                     `json:"supplier_id" validate:"required"`
	ExpectedDate string                     `json:"expected_date"`
	Notes        string                     `json:"notes"`
	Items        []PurchaseOrderItemRequest `json:"items" validate:"required,min=1,dive"`
}

type PurchaseOrderItemRequest struct {
	ProductID     string `json:"product_id" validate:"required"`
	Quantity      int    `json:"quantity" validate:"gt=0"`
	UnitCostCents int64  `json:"unit_cost_cents" validate:"gt=0"`
}

type PurchaseOrderStatusRequest struct {
	Status       string `json:"status" validate:"required"`
	ReceivedDate string `json:"received_date"`
}

type PurchaseOrderReceiveItemRequest struct {
	ReceivedQuantity int `json:"received_quantity" validate:"gte=0"`
}

type SupplierReportRow struct {
	Supplier          Supplier `json:"supplier"`
	TotalOrders       int      `json:"total_orders"`
	CompletedOrders   int      `json:"completed_orders"`
	PendingOrders     int      `json:"pending_orders"`
	TotalSpentCents   int64    `json:"total_spent_cents"`
	AverageOrderCents int64    `json:"average_order_cents"`
}

type FinancialCreateRequest struct {
	Type         string `json:"type" validate:"oneof=payable receivable expense income"`
	Description  string `json:"description" validate:"required"`
	AmountCents  int64  `json:"amount_cents" validate:"gt=0"`
	DueDate      string `json:"due_date" validate:"required"`
	CategoryID   string `json:"category_id"`
	CostCenterID string `json:"cost_center_id"`
	SupplierID   string `json:"supplier_id"`
	CustomerID   string `json:"customer_id"`
}

type FinancialUpdateRequest struct {
	Description  *string `json:"description,omitempty"`
	AmountCents  *int64  `json:"amount_cents,omitempty"`
	DueDate      *string `json:"due_date,omitempty"`
	CategoryID   *string `json:"category_id,omitempty"`
	CostCenterID *string `json:"cost_center_id,omitempty"`
}

// FinancialTransactionPatch lists the fields an open transaction may change.
type FinancialTransactionPatch struct {
	Description  *string
	AmountCents  *int64
	DueDate      *time.Time
	CategoryID   *string
	CostCenterID *string
}

type FinancialFilter struct {
	Type          string
	Status        string
	From          *time.Time
	To            *time.Time
	InstallmentID string
	RecurringID   string
	Limit         int
}

type InstallmentCreateRequest struct {
	Description  string `json:"description" validate:"required"`
	TotalCents   int64  `json:"total_cents" validate:"gt=0"`
	Count        int    `json:"number_of_installments" validate:"gte=1,lte=360"`
	StartDate    string `json:"start_date" validate:"required"`
	CustomerID   string `json:"customer_id"`
	SupplierID   string `json:"supplier_id"`
	CategoryID   string `json:"category_id"`
	CostCenterID string `json:"cost_center_id"`
}

type InstallmentPlan struct {
	Installment  Installment            `json:"installment"`
	Transactions []FinancialTransaction `json:"transactions"`
}

type InstallmentSummary struct {
	TotalPaidCents    int64          `json:"total_paid_cents"`
	TotalPendingCents int64          `json:"total_pending_cents"`
	TotalOverdueCents int64          `json:"total_overdue_cents"`
	RemainingCents    int64          `json:"remaining_cents"`
	Counts            map[string]int `json:"counts"`
}

type InstallmentDetail struct {
	Installment  Installment            `json:"installment"`
	Transactions []FinancialTransaction `json:"transactions"`
	Summary      InstallmentSummary     `json:"summary"`
}

type InstallmentFilter struct {
	CustomerID string
	SupplierID string
	Status     string
}

type RecurringCreateRequest struct {
	Type         string `json:"type" validate:"oneof=income expense"`
	Description  string `json:"description" validate:"required"`
	AmountCents  int64  `json:"amount_cents" validate:"gt=0"`
	Frequency    string `json:"frequency" validate:"oneof=daily weekly monthly yearly"`
	StartDate    string `json:"start_date" validate:"required"`
	EndDate      string `json:"end_date"`
	CategoryID   string `json:"category_id"`
	CostCenterID string `json:"cost_center_id"`
	SupplierID   string `json:"supplier_id"`
}

type RecurringProcessResult struct {
	ProcessedCount int                    `json:"processed_count"`
	Transactions   []FinancialTransaction `json:"transactions"`
}

type FinancialAlerts struct {
	Overdue               []FinancialTransaction `json:"overdue"`
	DueThisWeek           []FinancialTransaction `json:"due_this_week"`
	OverdueTotalCents     int64                  `json:"overdue_total_cents"`
	DueThisWeekTotalCents int64                  `json:"due_this_week_total_cents"`
}

type CashFlowMonth struct {
	Month           string `json:"month"`
	InflowCents     int64  `json:"inflow_cents"`
	OutflowCents    int64  `json:"outflow_cents"`
	NetCents        int64  `json:"net_cents"`
	CumulativeCents int64  `json:"cumulative_cents"`
}

type CashFlowForecast struct {
	GeneratedAt time.Time       `json:"generated_at"`
	Months      []CashFlowMonth `json:"months"`
}
