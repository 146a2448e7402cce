package service

import (
	"context"
	"strconv"
	"strings"

	"caixa/backend/internal/domain"
	"caixa/backend/internal/report"
	"caixa/backend/internal/store"
	"caixa/backend/internal/validation"
)

func (s *Service) CreateFinancialTransaction(ctx context.Context, req domain.FinancialCreateRequest) (*domain.FinancialTransaction, error) {
	actor, err := s.requireAdmin(ctx)
	if err != nil {
		return nil, err
	}
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	due, err := parseDate("due_date", req.DueDate)
	if err != nil {
		return nil, err
	}
	if err := s.checkCounterparties(ctx, req.CustomerID, req.SupplierID); err != nil {
		return nil, err
	}
	tx, err := s.repo.CreateFinancialTransaction(ctx, domain.FinancialTransaction{
		Type:         req.Type,
		Description:  strings.TrimSpace(req.Description),
		AmountCents:  req.AmountCents,
		DueDate:      due,
		CategoryID:   strings.TrimSpace(req.CategoryID),
		CostCenterID: strings.TrimSpace(req.CostCenterID),
		SupplierID:   strings.TrimSpace(req.SupplierID),
		CustomerID:   strings.TrimSpace(req.CustomerID),
		CreatedAt:    s.now(),
	}, actor.Username)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, "financial.create", "financial_transaction", tx.ID)
	return tx, nil
}

func (s *Service) checkCounterparties(ctx context.Context, customerID string, supplierID string) error {
	if customerID = strings.TrimSpace(customerID); customerID != "" {
		if _, err := s.repo.GetCustomer(ctx, customerID); err != nil {
			return err
		}
	}
	if supplierID = strings.TrimSpace(supplierID); supplierID != "" {
		if _, err := s.repo.GetSupplier(ctx, supplierID); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) GetFinancialTransaction(ctx context.Context, id string) (*domain.FinancialTransaction, error) {
	return s.repo.GetFinancialTransaction(ctx, id)
}

func (s *Service) ListFinancialTransactions(ctx context.Context, filter domain.FinancialFilter) ([]domain.FinancialTransaction, error) {
	switch filter.Status {
	case "", domain.FinancialPending, domain.FinancialPaid, domain.FinancialOverdue, domain.FinancialCancelled:
	default:
		return nil, store.Invalid("unsupported financial status %q", filter.Status)
	}
	filter.From, filter.To = dayRange(filter.From, filter.To)
	return s.repo.ListFinancialTransactions(ctx, filter)
}

// UpdateFinancialTransaction edits an open transaction; paid and cancelled
// ones are final.
func (s *Service) UpdateFinancialTransaction(ctx context.Context, id string, req domain.FinancialUpdateRequest) (*domain.FinancialTransaction, error) {
	actor, err := s.requireAdmin(ctx)
	if err != nil {
		return nil, err
	}
	patch := domain.FinancialTransactionPatch{
		Description:  req.Description,
		AmountCents:  req.AmountCents,
		CategoryID:   req.CategoryID,
		CostCenterID: req.CostCenterID,
	}
	if req.DueDate != nil {
		due, err := parseDate("due_date", *req.DueDate)
		if err != nil {
			return nil, err
		}
		patch.DueDate = &due
	}
	tx, err := s.repo.UpdateFinancialTransaction(ctx, id, patch, actor.Username, s.now())
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, "financial.update", "financial_transaction", tx.ID)
	return tx, nil
}

func (s *Service) PayFinancialTransaction(ctx context.Context, id string) (*domain.FinancialTransaction, error) {
	actor, err := s.requireAdmin(ctx)
	if err != nil {
		return nil, err
	}
	tx, err := s.repo.PayFinancialTransaction(ctx, id, actor.Username, s.now())
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, "financial.pay", "financial_transaction", tx.ID)
	return tx, nil
}

func (s *Service) CancelFinancialTransaction(ctx context.Context, id string) (*domain.FinancialTransaction, error) {
	actor, err := s.requireAdmin(ctx)
	if err != nil {
		return nil, err
	}
	tx, err := s.repo.CancelFinancialTransaction(ctx, id, actor.Username, s.now())
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, "financial.cancel", "financial_transaction", tx.ID)
	return tx, nil
}

func (s *Service) ListFinancialLogs(ctx context.Context, transactionID string) ([]domain.FinancialLog, error) {
	if _, err := s.repo.GetFinancialTransaction(ctx, transactionID); err != nil {
		return nil, err
	}
	return s.repo.ListFinancialLogs(ctx, transactionID)
}

// MarkOverdue flags pending transactions whose due day has passed.
func (s *Service) MarkOverdue(ctx context.Context) (int, error) {
	return s.repo.MarkOverdueFinancialTransactions(ctx, s.now(), actorName(ctx))
}

func (s *Service) FinancialAlerts(ctx context.Context) (domain.FinancialAlerts, error) {
	today := store.DateOf(s.now())
	return report.Cached(ctx, s.reports, "financial-alerts", []string{today.Format("2006-01-02")}, func() (domain.FinancialAlerts, error) {
		txs, err := s.openFinancialTransactions(ctx)
		if err != nil {
			return domain.FinancialAlerts{}, err
		}
		return report.FinancialAlerts(txs, today), nil
	})
}

func (s *Service) CashFlowForecast(ctx context.Context, months int) (domain.CashFlowForecast, error) {
	if months < 0 || months > 24 {
		return domain.CashFlowForecast{}, store.Invalid("months must be between 1 and 24")
	}
	if months == 0 {
		months = report.DefaultForecastMonths
	}
	now := s.now()
	parts := []string{now.Format("2006-01-02"), strconv.Itoa(months)}
	return report.Cached(ctx, s.reports, "cash-flow-forecast", parts, func() (domain.CashFlowForecast, error) {
		txs, err := s.openFinancialTransactions(ctx)
		if err != nil {
			return domain.CashFlowForecast{}, err
		}
		entries, err := s.repo.ListRecurringEntries(ctx, true)
		if err != nil {
			return domain.CashFlowForecast{}, err
		}
		return report.CashFlowForecast(txs, entries, now, months), nil
	})
}

func (s *Service) openFinancialTransactions(ctx context.Context) ([]domain.FinancialTransaction, error) {
	pending, err := s.repo.ListFinancialTransactions(ctx, domain.FinancialFilter{Status: domain.FinancialPending})
	if err != nil {
		return nil, err
	}
	overdue, err := s.repo.ListFinancialTransactions(ctx, domain.FinancialFilter{Status: domain.FinancialOverdue})
	if err != nil {
		return nil, err
	}
	return append(pending, overdue...), nil
}
