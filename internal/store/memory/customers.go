package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"time"

	"caixa/backend/internal/domain"
	"caixa/backend/internal/ledger"
	"caixa/backend/internal/store"
	"caixa/backend/internal/xid"
)

func (s *Store) CreateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(customer.Name) == "" {
		return nil, store.Invalid("customer name is required")
	}
	if customer.CreditLimitCents < 0 {
		return nil, store.Invalid("credit limit must not be negative")
	}
	if customer.ID == "" {
		customer.ID = xid.New("cust")
	}
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = time.Now().UTC()
	}
	customer.UpdatedAt = customer.CreatedAt
	customer.CurrentDebtCents, customer.LoyaltyPoints = 0, 0
	s.customersByID[customer.ID] = customer
	return &customer, nil
}

func (s *Store) GetCustomer(_ context.Context, id string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.customersByID[id]
	if !ok {
		return nil, store.NotFound("customer", id)
	}
	return &c, nil
}

func (s *Store) ListCustomers(_ context.Context) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Customer, 0, len(s.customersByID))
	for _, c := range s.customersByID {
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b domain.Customer) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

// UpdateCustomer replaces profile fields and the credit limit. Debt and points
// only move through posted transactions.
func (s *Store) UpdateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.customersByID[customer.ID]
	if !ok {
		return nil, store.NotFound("customer", customer.ID)
	}
	if strings.TrimSpace(customer.Name) == "" {
		return nil, store.Invalid("customer name is required")
	}
	if customer.CreditLimitCents < 0 {
		return nil, store.Invalid("credit limit must not be negative")
	}
	current.Name = customer.Name
	current.Email = customer.Email
	current.Phone = customer.Phone
	current.Document = customer.Document
	current.Address = customer.Address
	current.BirthDate = customer.BirthDate
	current.CreditLimitCents = customer.CreditLimitCents
	current.UpdatedAt = time.Now().UTC()
	s.customersByID[current.ID] = current
	return &current, nil
}

func (s *Store) PostCreditTransaction(_ context.Context, entry domain.CreditTransaction) (*domain.CreditTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.customersByID[entry.CustomerID]
	if !ok {
		return nil, store.NotFound("customer", entry.CustomerID)
	}
	next, posted, err := ledger.ApplyCredit(c, entry)
	if err != nil {
		return nil, err
	}
	s.customersByID[next.ID] = next
	s.creditLog = append(s.creditLog, posted)
	return &posted, nil
}

func (s *Store) ListCreditTransactions(_ context.Context, customerID string) ([]domain.CreditTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.CreditTransaction, 0)
	for _, entry := range s.creditLog {
		if entry.CustomerID == customerID {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (s *Store) PostLoyaltyTransaction(_ context.Context, entry domain.LoyaltyTransaction) (*domain.LoyaltyTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.customersByID[entry.CustomerID]
	if !ok {
		return nil, store.NotFound("customer", entry.CustomerID)
	}
	if entry.Type == domain.LoyaltyEarned && entry.SaleID != "" {
		for _, prior := range s.loyaltyLog {
			if prior.SaleID == entry.SaleID && prior.Type == domain.LoyaltyEarned {
				return nil, store.Wrap(store.ErrConflict, "sale %s already earned points", entry.SaleID)
			}
		}
	}
	next, posted, err := ledger.ApplyLoyalty(c, entry)
	if err != nil {
		return nil, err
	}
	s.customersByID[next.ID] = next
	s.loyaltyLog = append(s.loyaltyLog, posted)
	return &posted, nil
}

func (s *Store) ListLoyaltyTransactions(_ context.Context, customerID string) ([]domain.LoyaltyTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.LoyaltyTransaction, 0)
	for _, entry := range s.loyaltyLog {
		if entry.CustomerID == customerID {
			out = append(out, entry)
		}
	}
	return out, nil
}

// CreateLoyaltyProgram activates program and deactivates every other one.
func (s *Store) CreateLoyaltyProgram(_ context.Context, program domain.LoyaltyProgram) (*domain.LoyaltyProgram, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

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
	for i := range s.loyaltyPrograms {
		s.loyaltyPrograms[i].Active = false
	}
	s.loyaltyPrograms = append(s.loyaltyPrograms, program)
	return &program, nil
}

func (s *Store) GetActiveLoyaltyProgram(_ context.Context) (*domain.LoyaltyProgram, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := len(s.loyaltyPrograms) - 1; i >= 0; i-- {
		if p := s.loyaltyPrograms[i]; p.Active {
			return &p, nil
		}
	}
	return nil, store.NotFound("loyalty program", "active")
}
