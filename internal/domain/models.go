package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

const (
	RoleAdmin   = "admin"
	RoleCashier = "cashier"
)

type Actor struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

const (
	CommissionNone       = "none"
	CommissionPercentage = "percentage"
	CommissionFixed      = "fixed"
)

type UserAccount struct {
	Username             string          `json:"username"`
	Password             string          `json:"-"`
	Role                 string          `json:"role"`
	Active               bool            `json:"active"`
	CommissionType       string          `json:"commission_type"`
	CommissionPercent    decimal.Decimal `json:"commission_percent"`
	CommissionFixedCents int64           `json:"commission_fixed_cents"`
	CreatedAt            time.Time       `json:"created_at"`
}

type Product struct {
	ID                 string     `json:"id"`
	Name               string     `json:"name"`
	Barcode            string     `json:"barcode,omitempty"`
	Category           string     `json:"category,omitempty"`
	CostPriceCents     int64      `json:"cost_price_cents"`
	SalePriceCents     int64      `json:"sale_price_cents"`
	Stock              int        `json:"stock"`
	MinStock           int        `json:"min_stock"`
	AverageCostCents   int64      `json:"average_cost_cents"`
	InvestedValueCents int64      `json:"invested_value_cents"`
	LastSaleAt         *time.Time `json:"last_sale_at,omitempty"`
	ExpiresAt          *time.Time `json:"expires_at,omitempty"`
	Active             bool       `json:"active"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

const (
	MovementEntry  = "entry"
	MovementSale   = "sale"
	MovementLoss   = "loss"
	MovementReturn = "return"
)

// InventoryTransaction is append-only; one row per stock-affecting event.
type InventoryTransaction struct {
	ID            string    `json:"id"`
	ProductID     string    `json:"product_id"`
	Type          string    `json:"type"`
	Quantity      int       `json:"quantity"`
	UnitCostCents int64     `json:"unit_cost_cents"`
	Reference     string    `json:"reference,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// StockMovement is the input every store accepts to mutate stock.
type StockMovement struct {
	ProductID     string
	Type          string
	Quantity      int
	UnitCostCents int64
	Reference     string
	At            time.Time
	// SetCostPrice also records UnitCostCents as the product's cost price (purchase receipts).
	SetCostPrice bool
}

type StockMovementResult struct {
	Product     Product              `json:"product"`
	Transaction InventoryTransaction `json:"transaction"`
}

const (
	PaymentCash     = "cash"
	PaymentCard     = "card"
	PaymentPix      = "pix"
	PaymentTransfer = "transfer"
	PaymentVoucher  = "voucher"
)

type Sale struct {
	ID            string     `json:"id"`
	CustomerID    string     `json:"customer_id,omitempty"`
	OperatorID    string     `json:"operator_id"`
	Items         []SaleItem `json:"items"`
	Payments      []Payment  `json:"payments"`
	SubtotalCents int64      `json:"subtotal_cents"`
	DiscountCents int64      `json:"discount_cents"`
	TotalCents    int64      `json:"total_cents"`
	PaidCents     int64      `json:"paid_cents"`
	ChangeCents   int64      `json:"change_cents"`
	CreatedAt     time.Time  `json:"created_at"`
}

type SaleItem struct {
	ID             string `json:"id"`
	ProductID      string `json:"product_id"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	DiscountCents  int64  `json:"discount_cents"`
	TotalCents     int64  `json:"total_cents"`
}

type Payment struct {
	ID          string `json:"id"`
	Method      string `json:"method"`
	AmountCents int64  `json:"amount_cents"`
	ChangeCents int64  `json:"change_cents"`
}

// CashRetainedCents is what a cash payment leaves in the drawer.
func (p Payment) CashRetainedCents() int64 {
	if p.Method != PaymentCash {
		return 0
	}
	return p.AmountCents - p.ChangeCents
}

const (
	CommissionPending = "pending"
	CommissionPaid    = "paid"
)

type Commission struct {
	ID          string    `json:"id"`
	OperatorID  string    `json:"operator_id"`
	SaleID      string    `json:"sale_id"`
	AmountCents int64     `json:"amount_cents"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

type Return struct {
	ID         string       `json:"id"`
	SaleID     string       `json:"sale_id"`
	OperatorID string       `json:"operator_id"`
	TotalCents int64        `json:"total_cents"`
	Items      []ReturnItem `json:"items"`
	CreatedAt  time.Time    `json:"created_at"`
}

type ReturnItem struct {
	ID             string `json:"id"`
	SaleItemID     string `json:"sale_item_id"`
	ProductID      string `json:"product_id"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	Reason         string `json:"reason,omitempty"`
}

const (
	RegisterOpen   = "open"
	RegisterClosed = "closed"

	CashWithdrawal = "withdrawal"
	CashDeposit    = "deposit"
)

type CashRegister struct {
	ID            string         `json:"id"`
	OperatorID    string         `json:"operator_id"`
	OpenedAt      time.Time      `json:"opened_at"`
	ClosedAt      *time.Time     `json:"closed_at,omitempty"`
	InitialCents  int64          `json:"initial_cents"`
	ExpectedCents int64          `json:"expected_cents"`
	ActualCents   *int64         `json:"actual_cents,omitempty"`
	Status        string         `json:"status"`
	Movements     []CashMovement `json:"movements"`
}

type CashMovement struct {
	ID          string    `json:"id"`
	RegisterID  string    `json:"register_id"`
	Type        string    `json:"type"`
	AmountCents int64     `json:"amount_cents"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type CashReconciliation struct {
	InitialCents    int64 `json:"initial_cents"`
	CashSalesCents  int64 `json:"cash_sales_cents"`
	MovementsCents  int64 `json:"movements_cents"`
	ExpectedCents   int64 `json:"expected_cents"`
	ActualCents     int64 `json:"actual_cents"`
	DifferenceCents int64 `json:"difference_cents"`
}

type CashCloseResult struct {
	Register CashRegister       `json:"register"`
	Report   CashReconciliation `json:"report"`
}

type Customer struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	Email            string     `json:"email,omitempty"`
	Phone            string     `json:"phone,omitempty"`
	Document         string     `json:"document,omitempty"`
	Address          string     `json:"address,omitempty"`
	BirthDate        *time.Time `json:"birth_date,omitempty"`
	CreditLimitCents int64      `json:"credit_limit_cents"`
	CurrentDebtCents int64      `json:"current_debt_cents"`
	LoyaltyPoints    int64      `json:"loyalty_points"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

const (
	CreditSale    = "sale"
	CreditPayment = "payment"

	CreditPending = "pending"
	CreditPaid    = "paid"
	CreditOverdue = "overdue"
)

type CreditTransaction struct {
	ID          string     `json:"id"`
	CustomerID  string     `json:"customer_id"`
	Type        string     `json:"type"`
	AmountCents int64      `json:"amount_cents"`
	Description string     `json:"description,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	PaidAt      *time.Time `json:"paid_at,omitempty"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
}

const (
	LoyaltyEarned   = "earned"
	LoyaltyRedeemed = "redeemed"
)

type LoyaltyTransaction struct {
	ID          string    `json:"id"`
	CustomerID  string    `json:"customer_id"`
	Type        string    `json:"type"`
	Points      int64     `json:"points"`
	Description string    `json:"description,omitempty"`
	SaleID      string    `json:"sale_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type LoyaltyProgram struct {
	ID                string          `json:"id"`
	Name              string          `json:"name"`
	Description       string          `json:"description,omitempty"`
	PointsPerCurrency decimal.Decimal `json:"points_per_currency"`
	Active            bool            `json:"active"`
	CreatedAt         time.Time       `json:"created_at"`
}

type Supplier struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Document         string    `json:"document,omitempty"`
	Email            string    `json:"email,omitempty"`
	Phone            string    `json:"phone,omitempty"`
	Address          string    `json:"address,omitempty"`
	BankDetails      string    `json:"bank_details,omitempty"`
	ReliabilityScore int       `json:"reliability_score"`
	CreditLimitCents int64     `json:"credit_limit_cents"`
	CreatedAt        time.Time `json:"created_at"`
}

const (
	POPending   = "pending"
	POApproved  = "approved"
	POOrdered   = "ordered"
	POPartial   = "partial"
	POReceived  = "received"
	POCancelled = "cancelled"

	POItemPending  = "pending"
	POItemPartial  = "partial"
	POItemReceived = "received"
)

type PurchaseOrder struct {
	ID           string              `json:"id"`
	SupplierID   string              `json:"supplier_id"`
	OrderNumber  string              `json:"order_number"`
	Status       string              `json:"status"`
	OrderDate    time.Time           `json:"order_date"`
	ExpectedDate *time.Time          `json:"expected_date,omitempty"`
	ReceivedDate *time.Time          `json:"received_date,omitempty"`
	TotalCents   int64               `json:"total_cents"`
	Notes        string              `json:"notes,omitempty"`
	Items        []PurchaseOrderItem `json:"items"`
	CreatedAt    time.Time           `json:"created_at"`
}

type PurchaseOrderItem struct {
	ID               string `json:"id"`
	ProductID        string `json:"product_id"`
	Quantity         int    `json:"quantity"`
	UnitCostCents    int64  `json:"unit_cost_cents"`
	TotalCostCents   int64  `json:"total_cost_cents"`
	ReceivedQuantity int    `json:"received_quantity"`
	Status           string `json:"status"`
}

const (
	EventOnTimeDelivery = "on_time_delivery"
	EventLateDelivery   = "late_delivery"
)

type ReliabilityEvent struct {
	ID          string    `json:"id"`
	SupplierID  string    `json:"supplier_id"`
	OrderID     string    `json:"order_id"`
	EventType   string    `json:"event_type"`
	ScoreChange int       `json:"score_change"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

const (
	FinancialPayable    = "payable"
	FinancialReceivable = "receivable"
	FinancialExpense    = "expense"
	FinancialIncome     = "income"

	FinancialPending   = "pending"
	FinancialPaid      = "paid"
	FinancialOverdue   = "overdue"
	FinancialCancelled = "cancelled"
)

type FinancialTransaction struct {
	ID            string     `json:"id"`
	Type          string     `json:"type"`
	Description   string     `json:"description"`
	AmountCents   int64      `json:"amount_cents"`
	DueDate       time.Time  `json:"due_date"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
	Status        string     `json:"status"`
	CategoryID    string     `json:"category_id,omitempty"`
	CostCenterID  string     `json:"cost_center_id,omitempty"`
	SupplierID    string     `json:"supplier_id,omitempty"`
	CustomerID    string     `json:"customer_id,omitempty"`
	InstallmentID string     `json:"installment_id,omitempty"`
	RecurringID   string     `json:"recurring_id,omitempty"`
	CreatedBy     string     `json:"created_by,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Inflow reports whether the transaction brings money in.
func (t FinancialTransaction) Inflow() bool {
	return t.Type == FinancialReceivable || t.Type == FinancialIncome
}

// Open reports whether the transaction can still be paid, updated or cancelled.
func (t FinancialTransaction) Open() bool {
	return t.Status == FinancialPending || t.Status == FinancialOverdue
}

const (
	LogCreated   = "created"
	LogUpdated   = "updated"
	LogPaid      = "paid"
	LogOverdue   = "overdue"
	LogCancelled = "cancelled"
)

// FinancialLog is append-only and written in the same store transaction as the change it records.
type FinancialLog struct {
	ID            string          `json:"id"`
	TransactionID string          `json:"transaction_id"`
	Action        string          `json:"action"`
	Actor         string          `json:"actor,omitempty"`
	OldValues     json.RawMessage `json:"old_values,omitempty"`
	NewValues     json.RawMessage `json:"new_values,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

type Installment struct {
	ID               string    `json:"id"`
	Description      string    `json:"description"`
	TotalCents       int64     `json:"total_cents"`
	Count            int       `json:"number_of_installments"`
	InstallmentCents int64     `json:"installment_cents"`
	StartDate        time.Time `json:"start_date"`
	CustomerID       string    `json:"customer_id,omitempty"`
	SupplierID       string    `json:"supplier_id,omitempty"`
	CategoryID       string    `json:"category_id,omitempty"`
	CostCenterID     string    `json:"cost_center_id,omitempty"`
	Active           bool      `json:"active"`
	CreatedAt        time.Time `json:"created_at"`
}

const (
	FrequencyDaily   = "daily"
	FrequencyWeekly  = "weekly"
	FrequencyMonthly = "monthly"
	FrequencyYearly  = "yearly"
)

type RecurringEntry struct {
	ID            string     `json:"id"`
	Type          string     `json:"type"`
	Description   string     `json:"description"`
	AmountCents   int64      `json:"amount_cents"`
	Frequency     string     `json:"frequency"`
	StartDate     time.Time  `json:"start_date"`
	EndDate       *time.Time `json:"end_date,omitempty"`
	LastGenerated *time.Time `json:"last_generated,omitempty"`
	CategoryID    string     `json:"category_id,omitempty"`
	CostCenterID  string     `json:"cost_center_id,omitempty"`
	SupplierID    string     `json:"supplier_id,omitempty"`
	Active        bool       `json:"active"`
	CreatedAt     time.Time  `json:"created_at"`
}
