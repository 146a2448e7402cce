package service

import (
	"context"
	"strings"

	"caixa/backend/internal/domain"
	"caixa/backend/internal/money"
	"caixa/backend/internal/recurrence"
	"caixa/backend/internal/store"
	"caixa/backend/internal/validation"
)

// CreateInstallmentPlan splits the total into monthly financial transactions:
// receivables for a customer, payables for a supplier. The last installment
// absorbs the rounding remainder.
func (s *Service) CreateInstallmentPlan(ctx context.Context, req domain.InstallmentCreateRequest) (*domain.InstallmentPlan, error) {
	actor, err := s.requireAdmin(ctx)
	if err != nil {
		return nil, err
	}
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	if req.TotalCents < int64(req.Count) {
		return nil, store.Invalid("total %s cannot be split into %d installments of at least %s", money.Format(req.TotalCents), req.Count, money.Format(1))
	}
	customerID, supplierID := strings.TrimSpace(req.CustomerID), strings.TrimSpace(req.SupplierID)
	if (customerID == "") == (supplierID == "") {
		return nil, store.Invalid("exactly one of customer_id or supplier_id is required")
	}
	start, err := parseDate("start_date", req.StartDate)
	if err != nil {
		return nil, err
	}
	if err := s.checkCounterparties(ctx, customerID, supplierID); err != nil {
		return nil, err
	}

	txType := domain.FinancialReceivable
	if supplierID != "" {
		txType = domain.FinancialPayable
	}
	description := strings.TrimSpace(req.Description)
	amounts, dates := recurrence.Schedule(req.TotalCents, req.Count, start)

	plan := domain.Installment{
		Description:      description,
		TotalCents:       req.TotalCents,
		Count:            req.Count,
		InstallmentCents: amounts[0],
		StartDate:        store.DateOf(start),
		CustomerID:       customerID,
		SupplierID:       supplierID,
		CategoryID:       strings.TrimSpace(req.CategoryID),
		CostCenterID:     strings.TrimSpace(req.CostCenterID),
		CreatedAt:        s.now(),
	}
	txs := make([]domain.FinancialTransaction, 0, req.Count)
	for i := range amounts {
		txs = append(txs, domain.FinancialTransaction{
			Type:         txType,
			Description:  recurrence.InstallmentLabel(description, i+1, req.Count),
			AmountCents:  amounts[i],
			DueDate:      dates[i],
			CategoryID:   plan.CategoryID,
			CostCenterID: plan.CostCenterID,
			CustomerID:   customerID,
			SupplierID:   supplierID,
		})
	}

	created, err := s.repo.CreateInstallmentPlan(ctx, plan, txs, actor.Username)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, "installment.create", "installment", created.Installment.ID)
	return created, nil
}

func (s *Service) GetInstallment(ctx context.Context, id string) (domain.InstallmentDetail, error) {
	plan, err := s.repo.GetInstallment(ctx, id)
	if err != nil {
		return domain.InstallmentDetail{}, err
	}
	txs, err := s.repo.ListFinancialTransactions(ctx, domain.FinancialFilter{InstallmentID: plan.ID})
	if err != nil {
		return domain.InstallmentDetail{}, err
	}
	return domain.InstallmentDetail{Installment: *plan, Transactions: txs, Summary: summarize(*plan, txs)}, nil
}

func summarize(plan domain.Installment, txs []domain.FinancialTransaction) domain.InstallmentSummary {
	summary := domain.InstallmentSummary{Counts: map[string]int{
		domain.FinancialPending:   0,
		domain.FinancialPaid:      0,
		domain.FinancialOverdue:   0,
		domain.FinancialCancelled: 0,
	}}
	for _, tx := range txs {
		summary.Counts[tx.Status]++
		switch tx.Status {
		case domain.FinancialPaid:
			summary.TotalPaidCents += tx.AmountCents
		case domain.FinancialPending:
			summary.TotalPendingCents += tx.AmountCents
		case domain.FinancialOverdue:
			summary.TotalOverdueCents += tx.AmountCents
		}
	}
	summary.RemainingCents = plan.TotalCents - summary.TotalPaidCents
	return summary
}

// ListInstallments filters plans by counterparty. A transaction status such
// as "overdue" keeps plans with at least one transaction in that status;
// "active" and "inactive" filter on the plan flag.
func (s *Service) ListInstallments(ctx context.Context, filter domain.InstallmentFilter) ([]domain.Installment, error) {
	txStatus := ""
	switch filter.Status {
	case "", "active", "inactive":
	case domain.FinancialPending, domain.FinancialPaid, domain.FinancialOverdue, domain.FinancialCancelled:
		txStatus, filter.Status = filter.Status, ""
	default:
		return nil, store.Invalid("unsupported installment status %q", filter.Status)
	}
	plans, err := s.repo.ListInstallments(ctx, filter)
	if err != nil || txStatus == "" {
		return plans, err
	}

	txs, err := s.repo.ListFinancialTransactions(ctx, domain.FinancialFilter{Status: txStatus})
	if err != nil {
		return nil, err
	}
	matching := map[string]bool{}
	for _, tx := range txs {
		if tx.InstallmentID != "" {
			matching[tx.InstallmentID] = true
		}
	}
	out := make([]domain.Installment, 0, len(plans))
	for _, plan := range plans {
		if matching[plan.ID] {
			out = append(out, plan)
		}
	}
	return out, nil
}

// DeactivateInstallment flags the plan inactive; its transactions stay as they are.
func (s *Service) DeactivateInstallment(ctx context.Context, id string) (*domain.Installment, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}
	plan, err := s.repo.DeactivateInstallment(ctx, id)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, "installment.deactivate", "installment", plan.ID)
	return plan, nil
}
