package memory

import (
	"cmp"
	"context"
	"slices"
	"time"

	"caixa/backend/internal/domain"
	"caixa/backend/internal/ledger"
	"caixa/backend/internal/store"
	"caixa/backend/internal/xid"
)

func (s *Store) CreateFinancialTransaction(_ context.Context, tx domain.FinancialTransaction, actor string) (*domain.FinancialTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := ledger.PrepareFinancial(tx, actor)
	if err != nil {
		return nil, err
	}
	s.insertFinancialLocked(tx, actor)
	return &tx, nil
}

func (s *Store) insertFinancialLocked(tx domain.FinancialTransaction, actor string) {
	s.financialByID[tx.ID] = tx
	s.financialLogs = append(s.financialLogs, store.NewFinancialLog(tx.ID, domain.LogCreated, actor, nil, &tx, tx.CreatedAt))
}

func (s *Store) GetFinancialTransaction(_ context.Context, id string) (*domain.FinancialTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.financialByID[id]
	if !ok {
		return nil, store.NotFound("financial transaction", id)
	}
	return &tx, nil
}

func (s *Store) ListFinancialTransactions(_ context.Context, filter domain.FinancialFilter) ([]domain.FinancialTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.FinancialTransaction, 0)
	for _, tx := range s.financialByID {
		if filter.Type != "" && tx.Type != filter.Type {
			continue
		}
		if filter.Status != "" && tx.Status != filter.Status {
			continue
		}
		if filter.InstallmentID != "" && tx.InstallmentID != filter.InstallmentID {
			continue
		}
		if filter.RecurringID != "" && tx.RecurringID != filter.RecurringID {
			continue
		}
		if !inRange(tx.DueDate, filter.From, filter.To) {
			continue
		}
		out = append(out, tx)
	}
	slices.SortFunc(out, func(a, b domain.FinancialTransaction) int {
		return cmp.Or(a.DueDate.Compare(b.DueDate), a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
	})
	return truncate(out, filter.Limit), nil
}

func (s *Store) UpdateFinancialTransaction(_ context.Context, id string, patch domain.FinancialTransactionPatch, actor string, at time.Time) (*domain.FinancialTransaction, error) {
	return s.transitionFinancial(id, domain.LogUpdated, actor, at, func(tx domain.FinancialTransaction) (domain.FinancialTransaction, error) {
		return store.ApplyFinancialPatch(tx, patch, at)
	})
}

func (s *Store) PayFinancialTransaction(_ context.Context, id string, actor string, paidAt time.Time) (*domain.FinancialTransaction, error) {
	return s.transitionFinancial(id, domain.LogPaid, actor, paidAt, func(tx domain.FinancialTransaction) (domain.FinancialTransaction, error) {
		return ledger.Pay(tx, paidAt)
	})
}

func (s *Store) CancelFinancialTransaction(_ context.Context, id string, actor string, at time.Time) (*domain.FinancialTransaction, error) {
	return s.transitionFinancial(id, domain.LogCancelled, actor, at, func(tx domain.FinancialTransaction) (domain.FinancialTransaction, error) {
		return ledger.Cancel(tx, at)
	})
}

func (s *Store) transitionFinancial(id string, action string, actor string, at time.Time, apply func(domain.FinancialTransaction) (domain.FinancialTransaction, error)) (*domain.FinancialTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	before, ok := s.financialByID[id]
	if !ok {
		return nil, store.NotFound("financial transaction", id)
	}
	after, err := apply(before)
	if err != nil {
		return nil, err
	}
	s.financialByID[id] = after
	s.financialLogs = append(s.financialLogs, store.NewFinancialLog(id, action, actor, &before, &after, at))
	return &after, nil
}

func (s *Store) MarkOverdueFinancialTransactions(_ context.Context, asOf time.Time, actor string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	marked := 0
	for id, before := range s.financialByID {
		if !ledger.Overdue(before, asOf) {
			continue
		}
		after := before
		after.Status = domain.FinancialOverdue
		after.UpdatedAt = asOf
		s.financialByID[id] = after
		s.financialLogs = append(s.financialLogs, store.NewFinancialLog(id, domain.LogOverdue, actor, &before, &after, asOf))
		marked++
	}
	return marked, nil
}

func (s *Store) ListFinancialLogs(_ context.Context, transactionID string) ([]domain.FinancialLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.FinancialLog, 0)
	for _, entry := range s.financialLogs {
		if entry.TransactionID == transactionID {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (s *Store) CreateInstallmentPlan(_ context.Context, plan domain.Installment, txs []domain.FinancialTransaction, actor string) (*domain.InstallmentPlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(txs) == 0 || len(txs) != plan.Count {
		return nil, store.Invalid("installment plan needs %d transactions, got %d", plan.Count, len(txs))
	}
	if plan.ID == "" {
		plan.ID = xid.New("inst")
	}
	if plan.CreatedAt.IsZero() {
		plan.CreatedAt = time.Now().UTC()
	}
	plan.Active = true

	prepared := make([]domain.FinancialTransaction, 0, len(txs))
	for _, tx := range txs {
		tx.InstallmentID = plan.ID
		tx.CreatedAt = plan.CreatedAt
		next, err := ledger.PrepareFinancial(tx, actor)
		if err != nil {
			return nil, err
		}
		prepared = append(prepared, next)
	}
	s.installments[plan.ID] = plan
	for _, tx := range prepared {
		s.insertFinancialLocked(tx, actor)
	}
	return &domain.InstallmentPlan{Installment: plan, Transactions: prepared}, nil
}

func (s *Store) GetInstallment(_ context.Context, id string) (*domain.Installment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	plan, ok := s.installments[id]
	if !ok {
		return nil, store.NotFound("installment", id)
	}
	return &plan, nil
}

func (s *Store) ListInstallments(_ context.Context, filter domain.InstallmentFilter) ([]domain.Installment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Installment, 0)
	for _, plan := range s.installments {
		if filter.CustomerID != "" && plan.CustomerID != filter.CustomerID {
			continue
		}
		if filter.SupplierID != "" && plan.SupplierID != filter.SupplierID {
			continue
		}
		if !matchesActive(filter.Status, plan.Active) {
			continue
		}
		out = append(out, plan)
	}
	slices.SortFunc(out, func(a, b domain.Installment) int {
		return cmp.Or(b.CreatedAt.Compare(a.CreatedAt), cmp.Compare(b.ID, a.ID))
	})
	return out, nil
}

func matchesActive(status string, active bool) bool {
	switch status {
	case "active":
		return active
	case "inactive":
		return !active
	}
	return true
}

func (s *Store) DeactivateInstallment(_ context.Context, id string) (*domain.Installment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	plan, ok := s.installments[id]
	if !ok {
		return nil, store.NotFound("installment", id)
	}
	plan.Active = false
	s.installments[id] = plan
	return &plan, nil
}

func (s *Store) CreateRecurringEntry(_ context.Context, entry domain.RecurringEntry) (*domain.RecurringEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("rec")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	entry.Active = true
	entry.LastGenerated = nil
	s.recurringByID[entry.ID] = entry
	return &entry, nil
}

func (s *Store) GetRecurringEntry(_ context.Context, id string) (*domain.RecurringEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.recurringByID[id]
	if !ok {
		return nil, store.NotFound("recurring entry", id)
	}
	return &entry, nil
}

func (s *Store) ListRecurringEntries(_ context.Context, activeOnly bool) ([]domain.RecurringEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.RecurringEntry, 0)
	for _, entry := range s.recurringByID {
		if activeOnly && !entry.Active {
			continue
		}
		out = append(out, entry)
	}
	slices.SortFunc(out, func(a, b domain.RecurringEntry) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

func (s *Store) DeactivateRecurringEntry(_ context.Context, id string) (*domain.RecurringEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.recurringByID[id]
	if !ok {
		return nil, store.NotFound("recurring entry", id)
	}
	entry.Active = false
	s.recurringByID[id] = entry
	return &entry, nil
}

func (s *Store) GenerateRecurringTransaction(_ context.Context, entryID string, prevLast *time.Time, today time.Time, tx domain.FinancialTransaction, actor string) (*domain.FinancialTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.recurringByID[entryID]
	if !ok {
		return nil, store.NotFound("recurring entry", entryID)
	}
	if !ledger.SameDay(entry.LastGenerated, prevLast) {
		return nil, store.Wrap(store.ErrConflict, "recurring entry %s was generated concurrently", entryID)
	}
	tx.RecurringID = entryID
	tx, err := ledger.PrepareFinancial(tx, actor)
	if err != nil {
		return nil, err
	}
	generated := store.DateOf(today)
	entry.LastGenerated = &generated
	s.recurringByID[entryID] = entry
	s.insertFinancialLocked(tx, actor)
	return &tx, nil
}

