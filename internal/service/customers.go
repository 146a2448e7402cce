package service

import (
	"context"
	"errors"
	"strings"

	"caixa/backend/internal/domain"
	"caixa/backend/internal/store"
	"caixa/backend/internal/validation"
)

func (s *Service) CreateCustomer(ctx context.Context, req domain.CustomerCreateRequest) (*domain.Customer, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	birth, err := parseOptionalDate("birth_date", req.BirthDate)
	if err != nil {
		return nil, err
	}
	customer, err := s.repo.CreateCustomer(ctx, domain.Customer{
		Name:             strings.TrimSpace(req.Name),
		Email:            strings.TrimSpace(req.Email),
		Phone:            strings.TrimSpace(req.Phone),
		Document:         strings.TrimSpace(req.Document),
		Address:          strings.TrimSpace(req.Address),
		BirthDate:        birth,
		CreditLimitCents: req.CreditLimitCents,
		CreatedAt:        s.now(),
	})
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, "customer.create", "customer", customer.ID)
	return customer, nil
}

func (s *Service) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	return s.repo.GetCustomer(ctx, id)
}

func (s *Service) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	return s.repo.ListCustomers(ctx)
}

// UpdateCustomer changes contact fields. Raising or lowering the credit limit
// is an admin decision.
func (s *Service) UpdateCustomer(ctx context.Context, id string, req domain.CustomerUpdateRequest) (*domain.Customer, error) {
	current, err := s.repo.GetCustomer(ctx, id)
	if err != nil {
		return nil, err
	}
	next := *current
	setTrimmed(&next.Name, req.Name)
	setTrimmed(&next.Email, req.Email)
	setTrimmed(&next.Phone, req.Phone)
	setTrimmed(&next.Document, req.Document)
	setTrimmed(&next.Address, req.Address)
	if req.BirthDate != nil {
		if next.BirthDate, err = parseOptionalDate("birth_date", *req.BirthDate); err != nil {
			return nil, err
		}
	}
	if req.CreditLimitCents != nil && *req.CreditLimitCents != current.CreditLimitCents {
		if _, err := s.requireAdmin(ctx); err != nil {
			return nil, err
		}
		next.CreditLimitCents = *req.CreditLimitCents
	}
	updated, err := s.repo.UpdateCustomer(ctx, next)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, "customer.update", "customer", updated.ID)
	return updated, nil
}

func (s *Service) CreditStatus(ctx context.Context, customerID string) (domain.CreditStatus, error) {
	customer, err := s.repo.GetCustomer(ctx, customerID)
	if err != nil {
		return domain.CreditStatus{}, err
	}
	entries, err := s.repo.ListCreditTransactions(ctx, customerID)
	if err != nil {
		return domain.CreditStatus{}, err
	}
	today := store.DateOf(s.now())
	overdue := make([]domain.CreditTransaction, 0)
	for _, entry := range entries {
		if entry.Type != domain.CreditSale || entry.Status == domain.CreditPaid || entry.DueDate == nil {
			continue
		}
		if store.DateOf(*entry.DueDate).Before(today) {
			overdue = append(overdue, entry)
		}
	}
	return domain.CreditStatus{
		Customer:       *customer,
		AvailableCents: max(customer.CreditLimitCents-customer.CurrentDebtCents, 0),
		Transactions:   entries,
		Overdue:        overdue,
	}, nil
}

func (s *Service) RecordCreditSale(ctx context.Context, customerID string, req domain.CreditRequest) (*domain.CreditTransaction, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	due, err := parseOptionalDate("due_date", req.DueDate)
	if err != nil {
		return nil, err
	}
	entry, err := s.repo.PostCreditTransaction(ctx, domain.CreditTransaction{
		CustomerID:  customerID,
		Type:        domain.CreditSale,
		AmountCents: req.AmountCents,
		Description: strings.TrimSpace(req.Description),
		DueDate:     due,
		CreatedAt:   s.now(),
	})
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, "credit.sale", "customer", customerID)
	return entry, nil
}

func (s *Service) RecordCreditPayment(ctx context.Context, customerID string, req domain.CreditRequest) (*domain.CreditTransaction, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	entry, err := s.repo.PostCreditTransaction(ctx, domain.CreditTransaction{
		CustomerID:  customerID,
		Type:        domain.CreditPayment,
		AmountCents: req.AmountCents,
		Description: strings.TrimSpace(req.Description),
		CreatedAt:   s.now(),
	})
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, "credit.payment", "customer", customerID)
	return entry, nil
}

func (s *Service) LoyaltyStatus(ctx context.Context, customerID string) (domain.LoyaltyStatus, error) {
	customer, err := s.repo.GetCustomer(ctx, customerID)
	if err != nil {
		return domain.LoyaltyStatus{}, err
	}
	entries, err := s.repo.ListLoyaltyTransactions(ctx, customerID)
	if err != nil {
		return domain.LoyaltyStatus{}, err
	}
	program, err := s.repo.GetActiveLoyaltyProgram(ctx)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return domain.LoyaltyStatus{}, err
	}
	return domain.LoyaltyStatus{
		Customer:     *customer,
		Points:       customer.LoyaltyPoints,
		Program:      program,
		Transactions: entries,
	}, nil
}

func (s *Service) EarnPoints(ctx context.Context, customerID string, req domain.LoyaltyRequest) (*domain.LoyaltyTransaction, error) {
	return s.postPoints(ctx, customerID, domain.LoyaltyEarned, req)
}

func (s *Service) RedeemPoints(ctx context.Context, customerID string, req domain.LoyaltyRequest) (*domain.LoyaltyTransaction, error) {
	return s.postPoints(ctx, customerID, domain.LoyaltyRedeemed, req)
}

func (s *Service) postPoints(ctx context.Context, customerID string, entryType string, req domain.LoyaltyRequest) (*domain.LoyaltyTransaction, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	entry, err := s.repo.PostLoyaltyTransaction(ctx, domain.LoyaltyTransaction{
		CustomerID:  customerID,
		Type:        entryType,
		Points:      req.Points,
		Description: strings.TrimSpace(req.Description),
		CreatedAt:   s.now(),
	})
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, "loyalty."+entryType, "customer", customerID)
	return entry, nil
}

func (s *Service) CreateLoyaltyProgram(ctx context.Context, req domain.LoyaltyProgramCreateRequest) (*domain.LoyaltyProgram, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	if !req.PointsPerCurrency.IsPositive() {
		return nil, store.Invalid("points_per_currency must be greater than 0")
	}
	program, err := s.repo.CreateLoyaltyProgram(ctx, domain.LoyaltyProgram{
		Name:              strings.TrimSpace(req.Name),
		Description:       strings.TrimSpace(req.Description),
		PointsPerCurrency: req.PointsPerCurrency,
		CreatedAt:         s.now(),
	})
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, "loyalty.program.create", "loyalty_program", program.ID)
	return program, nil
}

// ActiveLoyaltyPrograms lists the active program, if any, as a slice.
func (s *Service) ActiveLoyaltyPrograms(ctx context.Context) ([]domain.LoyaltyProgram, error) {
	program, err := s.repo.GetActiveLoyaltyProgram(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return []domain.LoyaltyProgram{}, nil
	}
	if err != nil {
		return nil, err
	}
	return []domain.LoyaltyProgram{*program}, nil
}
