package sqlite

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"caixa/backend/internal/domain"
	"caixa/backend/internal/ledger"
	"caixa/backend/internal/store"
	"caixa/backend/internal/xid"
)

func validCustomer(c domain.Customer) error {
	if strings.TrimSpace(c.Name) == "" {
		return store.Invalid("customer name is required")
	}
	if c.CreditLimitCents < 0 {
		return store.Invalid("credit limit must not be negative")
	}
	return nil
}

func (s *Store) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	if err := validCustomer(customer); err != nil {
		return nil, err
	}
	if customer.ID == "" {
		customer.ID = xid.New("cust")
	}
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = time.Now().UTC()
	}
	customer.UpdatedAt = customer.CreatedAt
	customer.CurrentDebtCents, customer.LoyaltyPoints = 0, 0

	row := customerRow(customer)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isDuplicate(err) {
			return nil, store.Wrap(store.ErrConflict, "customer %s already exists", customer.ID)
		}
		return nil, err
	}
	return &customer, nil
}

func (s *Store) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	return getCustomer(s.db.WithContext(ctx), id)
}

func getCustomer(tx *gorm.DB, id string) (*domain.Customer, error) {
	var row customerRow
	if err := tx.Where("id = ?", id).First(&row).Error; err != nil {
		return nil, notFound(err, "customer", id)
	}
	c := domain.Customer(row)
	return &c, nil
}

func (s *Store) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	var rows []customerRow
	if err := s.db.WithContext(ctx).Order("name, id").Find(&rows).Error; err != nil {
		return nil, err
	}
	return convert(rows, func(r customerRow) domain.Customer { return domain.Customer(r) }), nil
}

// UpdateCustomer replaces profile fields and the credit limit.
func (s *Store) UpdateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	if err := validCustomer(customer); err != nil {
		return nil, err
	}
	var out domain.Customer
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := getCustomer(tx, customer.ID)
		if err != nil {
			return err
		}
		current.Name = customer.Name
		current.Email = customer.Email
		current.Phone = customer.Phone
		current.Document = customer.Document
		current.Address = customer.Address
		current.BirthDate = customer.BirthDate
		current.CreditLimitCents = customer.CreditLimitCents
		current.UpdatedAt = time.Now().UTC()

		row := customerRow(*current)
		if err := saveColumns(tx, &row); err != nil {
			return err
		}
		out = *current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Store) PostCreditTransaction(ctx context.Context, entry domain.CreditTransaction) (*domain.CreditTransaction, error) {
	var posted domain.CreditTransaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		c, err := getCustomer(tx, entry.CustomerID)
		if err != nil {
			return err
		}
		next, row, err := ledger.ApplyCredit(*c, entry)
		if err != nil {
			return err
		}
		balance := customerRow(next)
		if err := saveColumns(tx, &balance); err != nil {
			return err
		}
		credit := creditRow(row)
		if err := tx.Create(&credit).Error; err != nil {
			return err
		}
		posted = row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &posted, nil
}

func (s *Store) ListCreditTransactions(ctx context.Context, customerID string) ([]domain.CreditTransaction, error) {
	var rows []creditRow
	if err := s.db.WithContext(ctx).Where("customer_id = ?", customerID).Order("created_at, id").Find(&rows).Error; err != nil {
		return nil, err
	}
	return convert(rows, func(r creditRow) domain.CreditTransaction { return domain.CreditTransaction(r) }), nil
}

func (s *Store) PostLoyaltyTransaction(ctx context.Context, entry domain.LoyaltyTransaction) (*domain.LoyaltyTransaction, error) {
	var posted domain.LoyaltyTransaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		c, err := getCustomer(tx, entry.CustomerID)
		if err != nil {
			return err
		}
		if entry.Type == domain.LoyaltyEarned && entry.SaleID != "" {
			var prior int64
			if err := tx.Model(&loyaltyRow{}).Where("sale_id = ? AND type = ?", entry.SaleID, domain.LoyaltyEarned).Count(&prior).Error; err != nil {
				return err
			}
			if prior > 0 {
				return store.Wrap(store.ErrConflict, "sale %s already earned points", entry.SaleID)
			}
		}
		next, row, err := ledger.ApplyLoyalty(*c, entry)
		if err != nil {
			return err
		}
		balance := customerRow(next)
		if err := saveColumns(tx, &balance); err != nil {
			return err
		}
		points := loyaltyRow(row)
		if err := tx.Create(&points).Error; err != nil {
			return err
		}
		posted = row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &posted, nil
}

func (s *Store) ListLoyaltyTransactions(ctx context.Context, customerID string) ([]domain.LoyaltyTransaction, error) {
	var rows []loyaltyRow
	if err := s.db.WithContext(ctx).Where("customer_id = ?", customerID).Order("created_at, id").Find(&rows).Error; err != nil {
		return nil, err
	}
	return convert(rows, func(r loyaltyRow) domain.LoyaltyTransaction { return domain.LoyaltyTransaction(r) }), nil
}

// CreateLoyaltyProgram activates program and deactivates every other one.
func (s *Store) CreateLoyaltyProgram(ctx context.Context, program domain.LoyaltyProgram) (*domain.LoyaltyProgram, error) {
	if strings.TrimSpace(program.Name) == "" {
		return nil, store.Invalid("program name is required")
	}
	if !program.PointsPerCurrency.IsPositive() {
		return nil, store.Invalid("points per currency must be positive")
	}
	if program.ID == "" {
		program.ID = xid.New("lprog")
	}
	if program.CreatedAt.IsZero() {
		program.CreatedAt = time.Now().UTC()
	}
	program.Active = true

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&loyaltyProgramRow{}).Where("active = ?", true).Update("active", false).Error; err != nil {
			return err
		}
		row := loyaltyProgramRow(program)
		return tx.Create(&row).Error
	})
	if err != nil {
		return nil, err
	}
	return &program, nil
}

func (s *Store) GetActiveLoyaltyProgram(ctx context.Context) (*domain.LoyaltyProgram, error) {
	var rows []loyaltyProgramRow
	if err := s.db.WithContext(ctx).Where("active = ?", true).Order("created_at DESC, id DESC").Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, store.NotFound("loyalty program", "active")
	}
	p := domain.LoyaltyProgram(rows[0])
	return &p, nil
}
