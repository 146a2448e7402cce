package sqlite

import (
	"context"
	"time"

	"gorm.io/gorm"

	"caixa/backend/internal/domain"
	"caixa/backend/internal/ledger"
	"caixa/backend/internal/store"
	"caixa/backend/internal/xid"
)

func toFinancial(r financialRow) domain.FinancialTransaction {
	tx := domain.FinancialTransaction(r)
	tx.DueDate = store.DateOf(tx.DueDate)
	return tx
}

func insertFinancial(tx *gorm.DB, ft domain.FinancialTransaction, actor string) error {
	ft.DueDate = store.DateOf(ft.DueDate)
	row := financialRow(ft)
	if err := tx.Create(&row).Error; err != nil {
		return err
	}
	entry := financialLogRow(store.NewFinancialLog(ft.ID, domain.LogCreated, actor, nil, &ft, ft.CreatedAt))
	return tx.Create(&entry).Error
}

func (s *Store) CreateFinancialTransaction(ctx context.Context, ft domain.FinancialTransaction, actor string) (*domain.FinancialTransaction, error) {
	ft, err := ledger.PrepareFinancial(ft, actor)
	if err != nil {
		return nil, err
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return insertFinancial(tx, ft, actor)
	})
	if err != nil {
		return nil, err
	}
	return &ft, nil
}

func (s *Store) GetFinancialTransaction(ctx context.Context, id string) (*domain.FinancialTransaction, error) {
	return getFinancial(s.db.WithContext(ctx), id)
}

func getFinancial(tx *gorm.DB, id string) (*domain.FinancialTransaction, error) {
	var row financialRow
	if err := tx.Where("id = ?", id).First(&row).Error; err != nil {
		return nil, notFound(err, "financial transaction", id)
	}
	ft := toFinancial(row)
	return &ft, nil
}

func (s *Store) ListFinancialTransactions(ctx context.Context, filter domain.FinancialFilter) ([]domain.FinancialTransaction, error) {
	q := s.db.WithContext(ctx).Model(&financialRow{})
	q = eq(q, "type", filter.Type)
	q = eq(q, "status", filter.Status)
	q = eq(q, "installment_id", filter.InstallmentID)
	q = eq(q, "recurring_id", filter.RecurringID)
	if filter.From != nil {
		q = q.Where("due_date >= ?", store.DateOf(*filter.From))
	}
	if filter.To != nil {
		q = q.Where("due_date <= ?", store.DateOf(*filter.To))
	}

	var rows []financialRow
	if err := limit(q.Order("due_date, created_at, id"), filter.Limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return convert(rows, toFinancial), nil
}

func (s *Store) UpdateFinancialTransaction(ctx context.Context, id string, patch domain.FinancialTransactionPatch, actor string, at time.Time) (*domain.FinancialTransaction, error) {
	return s.transitionFinancial(ctx, id, domain.LogUpdated, actor, at, func(ft domain.FinancialTransaction) (domain.FinancialTransaction, error) {
		return store.ApplyFinancialPatch(ft, patch, at)
	})
}

func (s *Store) PayFinancialTransaction(ctx context.Context, id string, actor string, paidAt time.Time) (*domain.FinancialTransaction, error) {
	return s.transitionFinancial(ctx, id, domain.LogPaid, actor, paidAt, func(ft domain.FinancialTransaction) (domain.FinancialTransaction, error) {
		return ledger.Pay(ft, paidAt)
	})
}

func (s *Store) CancelFinancialTransaction(ctx context.Context, id string, actor string, at time.Time) (*domain.FinancialTransaction, error) {
	return s.transitionFinancial(ctx, id, domain.LogCancelled, actor, at, func(ft domain.FinancialTransaction) (domain.FinancialTransaction, error) {
		return ledger.Cancel(ft, at)
	})
}

func (s *Store) transitionFinancial(ctx context.Context, id string, action string, actor string, at time.Time, apply func(domain.FinancialTransaction) (domain.FinancialTransaction, error)) (*domain.FinancialTransaction, error) {
	var after domain.FinancialTransaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		before, err := getFinancial(tx, id)
		if err != nil {
			return err
		}
		next, err := apply(*before)
		if err != nil {
			return err
		}
		after = next
		return saveTransition(tx, *before, after, action, actor, at)
	})
	if err != nil {
		return nil, err
	}
	return &after, nil
}

func saveTransition(tx *gorm.DB, before domain.FinancialTransaction, after domain.FinancialTransaction, action string, actor string, at time.Time) error {
	after.DueDate = store.DateOf(after.DueDate)
	row := financialRow(after)
	if err := saveColumns(tx, &row); err != nil {
		return err
	}
	entry := financialLogRow(store.NewFinancialLog(after.ID, action, actor, &before, &after, at))
	return tx.Create(&entry).Error
}

func (s *Store) MarkOverdueFinancialTransactions(ctx context.Context, asOf time.Time, actor string) (int, error) {
	marked := 0
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []financialRow
		if err := tx.Where("status = ?", domain.FinancialPending).Order("due_date, id").Find(&rows).Error; err != nil {
			return err
		}
		for _, row := range rows {
			before := toFinancial(row)
			if !ledger.Overdue(before, asOf) {
				continue
			}
			after := before
			after.Status = domain.FinancialOverdue
			after.UpdatedAt = asOf
			if err := saveTransition(tx, before, after, domain.LogOverdue, actor, asOf); err != nil {
				return err
			}
			marked++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return marked, nil
}

func (s *Store) ListFinancialLogs(ctx context.Context, transactionID string) ([]domain.FinancialLog, error) {
	var rows []financialLogRow
	if err := s.db.WithContext(ctx).Where("transaction_id = ?", transactionID).Order("created_at, id").Find(&rows).Error; err != nil {
		return nil, err
	}
	return convert(rows, func(r financialLogRow) domain.FinancialLog { return domain.FinancialLog(r) }), nil
}

func (s *Store) CreateInstallmentPlan(ctx context.Context, plan domain.Installment, txs []domain.FinancialTransaction, actor string) (*domain.InstallmentPlan, error) {
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
	for _, ft := range txs {
		ft.InstallmentID = plan.ID
		ft.CreatedAt = plan.CreatedAt
		next, err := ledger.PrepareFinancial(ft, actor)
		if err != nil {
			return nil, err
		}
		prepared = append(prepared, next)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := installmentRow(plan)
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		for _, ft := range prepared {
			if err := insertFinancial(tx, ft, actor); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &domain.InstallmentPlan{Installment: plan, Transactions: prepared}, nil
}

func (s *Store) GetInstallment(ctx context.Context, id string) (*domain.Installment, error) {
	var row installmentRow
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, notFound(err, "installment", id)
	}
	plan := domain.Installment(row)
	return &plan, nil
}

func (s *Store) ListInstallments(ctx context.Context, filter domain.InstallmentFilter) ([]domain.Installment, error) {
	q := s.db.WithContext(ctx).Model(&installmentRow{})
	q = eq(q, "customer_id", filter.CustomerID)
	q = eq(q, "supplier_id", filter.SupplierID)
	switch filter.Status {
	case "active":
		q = q.Where("active = ?", true)
	case "inactive":
		q = q.Where("active = ?", false)
	}

	var rows []installmentRow
	if err := q.Order("created_at DESC, id DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return convert(rows, func(r installmentRow) domain.Installment { return domain.Installment(r) }), nil
}

func (s *Store) DeactivateInstallment(ctx context.Context, id string) (*domain.Installment, error) {
	var out domain.Installment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row installmentRow
		if err := tx.Where("id = ?", id).First(&row).Error; err != nil {
			return notFound(err, "installment", id)
		}
		if err := tx.Model(&row).Update("active", false).Error; err != nil {
			return err
		}
		row.Active = false
		out = domain.Installment(row)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Store) CreateRecurringEntry(ctx context.Context, entry domain.RecurringEntry) (*domain.RecurringEntry, error) {
	if entry.ID == "" {
		entry.ID = xid.New("rec")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	entry.Active = true
	entry.LastGenerated = nil

	row := recurringRow(entry)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

func (s *Store) GetRecurringEntry(ctx context.Context, id string) (*domain.RecurringEntry, error) {
	return getRecurring(s.db.WithContext(ctx), id)
}

func getRecurring(tx *gorm.DB, id string) (*domain.RecurringEntry, error) {
	var row recurringRow
	if err := tx.Where("id = ?", id).First(&row).Error; err != nil {
		return nil, notFound(err, "recurring entry", id)
	}
	entry := domain.RecurringEntry(row)
	return &entry, nil
}

func (s *Store) ListRecurringEntries(ctx context.Context, activeOnly bool) ([]domain.RecurringEntry, error) {
	q := s.db.WithContext(ctx).Model(&recurringRow{})
	if activeOnly {
		q = q.Where("active = ?", true)
	}
	var rows []recurringRow
	if err := q.Order("created_at, id").Find(&rows).Error; err != nil {
		return nil, err
	}
	return convert(rows, func(r recurringRow) domain.RecurringEntry { return domain.RecurringEntry(r) }), nil
}

func (s *Store) DeactivateRecurringEntry(ctx context.Context, id string) (*domain.RecurringEntry, error) {
	var out domain.RecurringEntry
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		entry, err := getRecurring(tx, id)
		if err != nil {
			return err
		}
		if err := tx.Model(&recurringRow{}).Where("id = ?", id).Update("active", false).Error; err != nil {
			return err
		}
		entry.Active = false
		out = *entry
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Store) GenerateRecurringTransaction(ctx context.Context, entryID string, prevLast *time.Time, today time.Time, ft domain.FinancialTransaction, actor string) (*domain.FinancialTransaction, error) {
	ft.RecurringID = entryID
	ft, err := ledger.PrepareFinancial(ft, actor)
	if err != nil {
		return nil, err
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		entry, err := getRecurring(tx, entryID)
		if err != nil {
			return err
		}
		if !ledger.SameDay(entry.LastGenerated, prevLast) {
			return store.Wrap(store.ErrConflict, "recurring entry %s was generated concurrently", entryID)
		}
		if err := tx.Model(&recurringRow{}).Where("id = ?", entryID).Update("last_generated", store.DateOf(today)).Error; err != nil {
			return err
		}
		return insertFinancial(tx, ft, actor)
	})
	if err != nil {
		return nil, err
	}
	return &ft, nil
}
