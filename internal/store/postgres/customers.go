package postgres

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"caixa/backend/internal/domain"
	"caixa/backend/internal/ledger"
	"caixa/backend/internal/store"
	"caixa/backend/internal/xid"
)

const customerColumns = `id, name, email, phone, document, address, birth_date, credit_limit_cents, current_debt_cents,
	loyalty_points, created_at, updated_at`

func scanCustomer(row interface{ Scan(...any) error }) (domain.Customer, error) {
	var (
		c     domain.Customer
		birth sql.NullTime
	)
	err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Document, &c.Address, &birth, &c.CreditLimitCents,
		&c.CurrentDebtCents, &c.LoyaltyPoints, &c.CreatedAt, &c.UpdatedAt)
	c.BirthDate = timePtr(birth)
	c.CreatedAt, c.UpdatedAt = c.CreatedAt.UTC(), c.UpdatedAt.UTC()
	return c, err
}

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

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO customers (id, name, email, phone, document, address, birth_date, credit_limit_cents, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$9)
	`, customer.ID, customer.Name, customer.Email, customer.Phone, customer.Document, customer.Address,
		nullTime(customer.BirthDate), customer.CreditLimitCents, customer.CreatedAt)
	if isUniqueViolation(err) {
		return nil, store.Wrap(store.ErrConflict, "customer %s already exists", customer.ID)
	}
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

func (s *Store) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	return getCustomer(ctx, s.db, id, "")
}

func getCustomer(ctx context.Context, q queryer, id string, lock string) (*domain.Customer, error) {
	c, err := scanCustomer(q.QueryRowContext(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1`+lock, id))
	if err != nil {
		return nil, notFound(err, "customer", id)
	}
	return &c, nil
}

func (s *Store) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+customerColumns+` FROM customers ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Customer, 0, 32)
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpdateCustomer replaces profile fields and the credit limit.
func (s *Store) UpdateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	if err := validCustomer(customer); err != nil {
		return nil, err
	}
	c, err := scanCustomer(s.db.QueryRowContext(ctx, `
		UPDATE customers
		SET name = $2, email = $3, phone = $4, document = $5, address = $6, birth_date = $7, credit_limit_cents = $8, updated_at = $9
		WHERE id = $1
		RETURNING `+customerColumns, customer.ID, customer.Name, customer.Email, customer.Phone, customer.Document,
		customer.Address, nullTime(customer.BirthDate), customer.CreditLimitCents, time.Now().UTC()))
	if err != nil {
		return nil, notFound(err, "customer", customer.ID)
	}
	return &c, nil
}

func (s *Store) PostCreditTransaction(ctx context.Context, entry domain.CreditTransaction) (*domain.CreditTransaction, error) {
	var posted domain.CreditTransaction
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		c, err := getCustomer(ctx, tx, entry.CustomerID, " FOR UPDATE")
		if err != nil {
			return err
		}
		next, row, err := ledger.ApplyCredit(*c, entry)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE customers SET current_debt_cents = $2, updated_at = $3 WHERE id = $1`,
			next.ID, next.CurrentDebtCents, next.UpdatedAt); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO credit_transactions (id, customer_id, type, amount_cents, description, due_date, paid_at, status, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		`, row.ID, row.CustomerID, row.Type, row.AmountCents, row.Description, nullTime(row.DueDate),
			nullTime(row.PaidAt), row.Status, row.CreatedAt); err != nil {
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
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, customer_id, type, amount_cents, description, due_date, paid_at, status, created_at
		FROM credit_transactions WHERE customer_id = $1 ORDER BY created_at, id
	`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.CreditTransaction, 0, 16)
	for rows.Next() {
		var (
			entry   domain.CreditTransaction
			dueDate sql.NullTime
			paidAt  sql.NullTime
		)
		if err := rows.Scan(&entry.ID, &entry.CustomerID, &entry.Type, &entry.AmountCents, &entry.Description,
			&dueDate, &paidAt, &entry.Status, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.DueDate, entry.PaidAt = timePtr(dueDate), timePtr(paidAt)
		entry.CreatedAt = entry.CreatedAt.UTC()
		out = append(out, entry)
	}
	return out, rows.Err()
}

// PostLoyaltyTransaction relies on loyalty_transactions_earned_sale_idx to
// reject a second earn entry for the same sale.
func (s *Store) PostLoyaltyTransaction(ctx context.Context, entry domain.LoyaltyTransaction) (*domain.LoyaltyTransaction, error) {
	var posted domain.LoyaltyTransaction
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		c, err := getCustomer(ctx, tx, entry.CustomerID, " FOR UPDATE")
		if err != nil {
			return err
		}
		next, row, err := ledger.ApplyLoyalty(*c, entry)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO loyalty_transactions (id, customer_id, type, points, description, sale_id, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
		`, row.ID, row.CustomerID, row.Type, row.Points, row.Description, nullIfEmpty(row.SaleID), row.CreatedAt); err != nil {
			if isUniqueViolation(err) {
				return store.Wrap(store.ErrConflict, "sale %s already earned points", row.SaleID)
			}
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE customers SET loyalty_points = $2, updated_at = $3 WHERE id = $1`,
			next.ID, next.LoyaltyPoints, next.UpdatedAt); err != nil {
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
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, customer_id, type, points, description, COALESCE(sale_id, ''), created_at
		FROM loyalty_transactions WHERE customer_id = $1 ORDER BY created_at, id
	`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.LoyaltyTransaction, 0, 16)
	for rows.Next() {
		var entry domain.LoyaltyTransaction
		if err := rows.Scan(&entry.ID, &entry.CustomerID, &entry.Type, &entry.Points, &entry.Description, &entry.SaleID, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		out = append(out, entry)
	}
	return out, rows.Err()
}

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

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `UPDATE loyalty_programs SET active = false WHERE active`); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO loyalty_programs (id, name, description, points_per_currency, active, created_at)
			VALUES ($1,$2,$3,$4,true,$5)
		`, program.ID, program.Name, program.Description, program.PointsPerCurrency, program.CreatedAt)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &program, nil
}

func (s *Store) GetActiveLoyaltyProgram(ctx context.Context) (*domain.LoyaltyProgram, error) {
	var p domain.LoyaltyProgram
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, points_per_currency, active, created_at
		FROM loyalty_programs WHERE active ORDER BY created_at DESC, id DESC LIMIT 1
	`).Scan(&p.ID, &p.Name, &p.Description, &p.PointsPerCurrency, &p.Active, &p.CreatedAt)
	if err != nil {
		return nil, notFound(err, "loyalty program", "active")
	}
	p.CreatedAt = p.CreatedAt.UTC()
	return &p, nil
}
