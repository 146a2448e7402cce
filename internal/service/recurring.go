package service

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"

	"caixa/backend/internal/domain"
	"caixa/backend/internal/recurrence"
	"caixa/backend/internal/store"
	"caixa/backend/internal/validation"
)

func (s *Service) CreateRecurringEntry(ctx context.Context, req domain.RecurringCreateRequest) (*domain.RecurringEntry, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	start, err := parseDate("start_date", req.StartDate)
	if err != nil {
		return nil, err
	}
	end, err := parseOptionalDate("end_date", req.EndDate)
	if err != nil {
		return nil, err
	}
	if end != nil && end.Before(start) {
		return nil, store.Invalid("end_date must not be before start_date")
	}
	if err := s.checkCounterparties(ctx, "", req.SupplierID); err != nil {
		return nil, err
	}
	entry, err := s.repo.CreateRecurringEntry(ctx, domain.RecurringEntry{
		Type:         req.Type,
		Description:  strings.TrimSpace(req.Description),
		AmountCents:  req.AmountCents,
		Frequency:    req.Frequency,
		StartDate:    store.DateOf(start),
		EndDate:      end,
		CategoryID:   strings.TrimSpace(req.CategoryID),
		CostCenterID: strings.TrimSpace(req.CostCenterID),
		SupplierID:   strings.TrimSpace(req.SupplierID),
		CreatedAt:    s.now(),
	})
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, "recurring.create", "recurring_entry", entry.ID)
	return entry, nil
}

func (s *Service) ListRecurringEntries(ctx context.Context, activeOnly bool) ([]domain.RecurringEntry, error) {
	return s.repo.ListRecurringEntries(ctx, activeOnly)
}

func (s *Service) DeactivateRecurringEntry(ctx context.Context, id string) (*domain.RecurringEntry, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}
	entry, err := s.repo.DeactivateRecurringEntry(ctx, id)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, "recurring.deactivate", "recurring_entry", entry.ID)
	return entry, nil
}

// ProcessRecurring emits today's transaction for every due entry. The store
// compare-and-set on LastGenerated makes concurrent or repeated runs emit at
// most once per entry and day; a lost race is skipped, not reported.
func (s *Service) ProcessRecurring(ctx context.Context) (domain.RecurringProcessResult, error) {
	today := store.DateOf(s.now())
	entries, err := s.repo.ListRecurringEntries(ctx, true)
	if err != nil {
		return domain.RecurringProcessResult{}, err
	}

	result := domain.RecurringProcessResult{Transactions: make([]domain.FinancialTransaction, 0)}
	for _, entry := range entries {
		if !recurrence.IsCandidate(entry, today) || !recurrence.ShouldGenerate(entry, today) {
			continue
		}
		tx, err := s.repo.GenerateRecurringTransaction(ctx, entry.ID, entry.LastGenerated, today, domain.FinancialTransaction{
			Type:         entry.Type,
			Description:  entry.Description,
			AmountCents:  entry.AmountCents,
			DueDate:      today,
			CategoryID:   entry.CategoryID,
			CostCenterID: entry.CostCenterID,
			SupplierID:   entry.SupplierID,
			CreatedAt:    s.now(),
		}, actorName(ctx))
		if errors.Is(err, store.ErrConflict) {
			log.Debug().Str("component", "recurring").Str("entry_id", entry.ID).Msg("entry already generated")
			continue
		}
		if err != nil {
			return result, err
		}
		result.Transactions = append(result.Transactions, *tx)
	}
	result.ProcessedCount = len(result.Transactions)
	return result, nil
}
