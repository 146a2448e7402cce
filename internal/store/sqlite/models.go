package sqlite

import (
	"time"

	"github.com/shopspring/decimal"

	"caixa/backend/internal/domain"
)

// Flat aggregates are stored through defined types of the domain structs;
// rows with nested lines or nullable unique keys get their own structs.

type userRow struct {
	Username             string          `gorm:"primaryKey"`
	Password             string          `gorm:"not null"`
	Role                 string          `gorm:"not null"`
	Active               bool            `gorm:"not null"`
	CommissionType       string          `gorm:"not null;default:none"`
	CommissionPercent    decimal.Decimal `gorm:"type:numeric"`
	CommissionFixedCents int64
	CreatedAt            time.Time `gorm:"autoCreateTime:false"`
}

func (userRow) TableName() string { return "users" }

func newUserRow(u domain.UserAccount) userRow {
	return userRow{
		Username:             u.Username,
		Password:             u.Password,
		Role:                 u.Role,
		Active:               u.Active,
		CommissionType:       u.CommissionType,
		CommissionPercent:    u.CommissionPercent,
		CommissionFixedCents: u.CommissionFixedCents,
		CreatedAt:            u.CreatedAt,
	}
}

func (r userRow) toDomain() domain.UserAccount {
	return domain.UserAccount{
		Username:             r.Username,
		Password:             r.Password,
		Role:                 r.Role,
		Active:               r.Active,
		CommissionType:       r.CommissionType,
		CommissionPercent:    r.CommissionPercent,
		CommissionFixedCents: r.CommissionFixedCents,
		CreatedAt:            r.CreatedAt.UTC(),
	}
}

type productRow struct {
	ID                 string  `gorm:"primaryKey"`
	Name               string  `gorm:"not null;index"`
	Barcode            *string `gorm:"uniqueIndex"`
	Category           string
	CostPriceCents     int64
	SalePriceCents     int64
	Stock              int `gorm:"check:stock >= 0"`
	MinStock           int
	AverageCostCents   int64
	InvestedValueCents int64
	LastSaleAt         *time.Time
	ExpiresAt          *time.Time
	Active             bool
	CreatedAt          time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt          time.Time `gorm:"autoUpdateTime:false"`
}

func (productRow) TableName() string { return "products" }

func newProductRow(p domain.Product) productRow {
	row := productRow{
		ID:                 p.ID,
		Name:               p.Name,
		Category:           p.Category,
		CostPriceCents:     p.CostPriceCents,
		SalePriceCents:     p.SalePriceCents,
		Stock:              p.Stock,
		MinStock:           p.MinStock,
		AverageCostCents:   p.AverageCostCents,
		InvestedValueCents: p.InvestedValueCents,
		LastSaleAt:         p.LastSaleAt,
		ExpiresAt:          p.ExpiresAt,
		Active:             p.Active,
		CreatedAt:          p.CreatedAt,
		UpdatedAt:          p.UpdatedAt,
	}
	if p.Barcode != "" {
		barcode := p.Barcode
		row.Barcode = &barcode
	}
	return row
}

func (r productRow) toDomain() domain.Product {
	p := domain.Product{
		ID:                 r.ID,
		Name:               r.Name,
		Category:           r.Category,
		CostPriceCents:     r.CostPriceCents,
		SalePriceCents:     r.SalePriceCents,
		Stock:              r.Stock,
		MinStock:           r.MinStock,
		AverageCostCents:   r.AverageCostCents,
		InvestedValueCents: r.InvestedValueCents,
		LastSaleAt:         utcPtr(r.LastSaleAt),
		ExpiresAt:          utcPtr(r.ExpiresAt),
		Active:             r.Active,
		CreatedAt:          r.CreatedAt.UTC(),
		UpdatedAt:          r.UpdatedAt.UTC(),
	}
	if r.Barcode != nil {
		p.Barcode = *r.Barcode
	}
	return p
}

type inventoryRow domain.InventoryTransaction

func (inventoryRow) TableName() string { return "inventory_transactions" }

type saleRow struct {
	ID            string            `gorm:"primaryKey"`
	CustomerID    string            `gorm:"index"`
	OperatorID    string            `gorm:"index;not null"`
	Items         []domain.SaleItem `gorm:"serializer:json"`
	Payments      []domain.Payment  `gorm:"serializer:json"`
	SubtotalCents int64
	DiscountCents int64
	TotalCents    int64
	PaidCents     int64
	ChangeCents   int64
	CreatedAt     time.Time `gorm:"index;autoCreateTime:false"`
}

func (saleRow) TableName() string { return "sales" }

func newSaleRow(s domain.Sale) saleRow {
	return saleRow{
		ID:            s.ID,
		CustomerID:    s.CustomerID,
		OperatorID:    s.OperatorID,
		Items:         s.Items,
		Payments:      s.Payments,
		SubtotalCents: s.SubtotalCents,
		DiscountCents: s.DiscountCents,
		TotalCents:    s.TotalCents,
		PaidCents:     s.PaidCents,
		ChangeCents:   s.ChangeCents,
		CreatedAt:     s.CreatedAt,
	}
}

func (r saleRow) toDomain() domain.Sale {
	sale := domain.Sale{
		ID:            r.ID,
		CustomerID:    r.CustomerID,
		OperatorID:    r.OperatorID,
		Items:         r.Items,
		Payments:      r.Payments,
		SubtotalCents: r.SubtotalCents,
		DiscountCents: r.DiscountCents,
		TotalCents:    r.TotalCents,
		PaidCents:     r.PaidCents,
		ChangeCents:   r.ChangeCents,
		CreatedAt:     r.CreatedAt.UTC(),
	}
	if sale.Items == nil {
		sale.Items = []domain.SaleItem{}
	}
	if sale.Payments == nil {
		sale.Payments = []domain.Payment{}
	}
	return sale
}

type commissionRow domain.Commission

func (commissionRow) TableName() string { return "commissions" }

type returnRow struct {
	ID         string `gorm:"primaryKey"`
	SaleID     string `gorm:"index;not null"`
	OperatorID string
	TotalCents int64
	Items      []domain.ReturnItem `gorm:"serializer:json"`
	CreatedAt  time.Time           `gorm:"autoCreateTime:false"`
}

func (returnRow) TableName() string { return "returns" }

func (r returnRow) toDomain() domain.Return {
	return domain.Return{
		ID:         r.ID,
		SaleID:     r.SaleID,
		OperatorID: r.OperatorID,
		TotalCents: r.TotalCents,
		Items:      r.Items,
		CreatedAt:  r.CreatedAt.UTC(),
	}
}

type registerRow struct {
	ID            string `gorm:"primaryKey"`
	OperatorID    string `gorm:"index;not null"`
	OpenedAt      time.Time
	ClosedAt      *time.Time
	InitialCents  int64
	ExpectedCents int64
	ActualCents   *int64
	Status        string `gorm:"index;not null"`
}

func (registerRow) TableName() string { return "cash_registers" }

func newRegisterRow(reg domain.CashRegister) registerRow {
	return registerRow{
		ID:            reg.ID,
		OperatorID:    reg.OperatorID,
		OpenedAt:      reg.OpenedAt,
		ClosedAt:      reg.ClosedAt,
		InitialCents:  reg.InitialCents,
		ExpectedCents: reg.ExpectedCents,
		ActualCents:   reg.ActualCents,
		Status:        reg.Status,
	}
}

func (r registerRow) toDomain() domain.CashRegister {
	return domain.CashRegister{
		ID:            r.ID,
		OperatorID:    r.OperatorID,
		OpenedAt:      r.OpenedAt.UTC(),
		ClosedAt:      utcPtr(r.ClosedAt),
		InitialCents:  r.InitialCents,
		ExpectedCents: r.ExpectedCents,
		ActualCents:   r.ActualCents,
		Status:        r.Status,
		Movements:     []domain.CashMovement{},
	}
}

type cashMovementRow domain.CashMovement

func (cashMovementRow) TableName() string { return "cash_movements" }

type customerRow domain.Customer

func (customerRow) TableName() string { return "customers" }

type creditRow domain.CreditTransaction

func (creditRow) TableName() string { return "credit_transactions" }

type loyaltyRow domain.LoyaltyTransaction

func (loyaltyRow) TableName() string { return "loyalty_transactions" }

type loyaltyProgramRow domain.LoyaltyProgram

func (loyaltyProgramRow) TableName() string { return "loyalty_programs" }

type supplierRow domain.Supplier

func (supplierRow) TableName() string { return "suppliers" }

type purchaseOrderRow struct {
	ID           string `gorm:"primaryKey"`
	SupplierID   string `gorm:"index;not null"`
	OrderNumber  string `gorm:"uniqueIndex"`
	Status       string
	OrderDate    time.Time
	ExpectedDate *time.Time
	ReceivedDate *time.Time
	TotalCents   int64
	Notes        string
	Items        []domain.PurchaseOrderItem `gorm:"serializer:json"`
	CreatedAt    time.Time                  `gorm:"autoCreateTime:false"`
}

func (purchaseOrderRow) TableName() string { return "purchase_orders" }

func newPurchaseOrderRow(po domain.PurchaseOrder) purchaseOrderRow {
	return purchaseOrderRow{
		ID:           po.ID,
		SupplierID:   po.SupplierID,
		OrderNumber:  po.OrderNumber,
		Status:       po.Status,
		OrderDate:    po.OrderDate,
		ExpectedDate: po.ExpectedDate,
		ReceivedDate: po.ReceivedDate,
		TotalCents:   po.TotalCents,
		Notes:        po.Notes,
		Items:        po.Items,
		CreatedAt:    po.CreatedAt,
	}
}

func (r purchaseOrderRow) toDomain() domain.PurchaseOrder {
	po := domain.PurchaseOrder{
		ID:           r.ID,
		SupplierID:   r.SupplierID,
		OrderNumber:  r.OrderNumber,
		Status:       r.Status,
		OrderDate:    r.OrderDate.UTC(),
		ExpectedDate: utcPtr(r.ExpectedDate),
		ReceivedDate: utcPtr(r.ReceivedDate),
		TotalCents:   r.TotalCents,
		Notes:        r.Notes,
		Items:        r.Items,
		CreatedAt:    r.CreatedAt.UTC(),
	}
	if po.Items == nil {
		po.Items = []domain.PurchaseOrderItem{}
	}
	return po
}

type reliabilityRow domain.ReliabilityEvent

func (reliabilityRow) TableName() string { return "reliability_events" }

type financialRow domain.FinancialTransaction

func (financialRow) TableName() string { return "financial_transactions" }

type financialLogRow domain.FinancialLog

func (financialLogRow) TableName() string { return "financial_logs" }

type installmentRow domain.Installment

func (installmentRow) TableName() string { return "installments" }

type recurringRow domain.RecurringEntry

func (recurringRow) TableName() string { return "recurring_entries" }

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
