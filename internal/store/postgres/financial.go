package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"caixa/backend/internal/domain"
	"caixa/backend/internal/ledger"
	"caixa/backend/internal/store"
	"caixa/backend/internal/xid"
)

const financialColumns = `id, type, description, amount_cents, due_date, paid_at, status, category_id, cost_center_id,
	supplier_id, customer_id, COALESCE(installment_id, ''), COALESCE(recurring_id, ''), created_by, created_at, updated_at`

func scanFinancial(row interface{ Scan(...any) error }) (domain.FinancialTransaction, error) {
	var (
		tx     domain.FinancialTransaction
		paidAt sql.NullTime
	)
	err := row.Scan(&tx.ID, &tx.Type, &tx.Description, &tx.AmountCents, &tx.DueDate, &paidAt, &tx.Status,
		&tx.CategoryID, &tx.CostCenterID, &tx.SupplierID, &tx.CustomerID, &tx.InstallmentID, &tx.RecurringID,
		&tx.CreatedBy, &tx.CreatedAt, &tx.UpdatedAt)
	tx.PaidAt = timePtr(paidAt)
	tx.DueDate = store.DateOf(tx.DueDate)
	tx.CreatedAt, tx.UpdatedAt = tx.CreatedAt.UTC(), tx.UpdatedAt.UTC()
	return tx, err
}

func insertFinancial(ctx context.Context, q queryer, tx domain.FinancialTransaction, actor string) error {
	if _, err := q.ExecContext(ctx, `
		INSERT INTO financial_transactions (id, type, description, amount_cents, due_date, paid_at, status, category_id, cost_center_id,
			supplier_id, customer_id, installment_id, recurring_id, created_by, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
	`, tx.ID, tx.Type, tx.Description, tx.AmountCents, store.DateOf(tx.DueDate), nullTime(tx.PaidAt), tx.Status,
		tx.CategoryID, tx.CostCenterID, tx.SupplierID, tx.CustomerID, nullIfEmpty(tx.InstallmentID), nullIfEmpty(tx.RecurringID),
		tx.CreatedBy, tx.CreatedAt, tx.UpdatedAt); err != nil {
		return err
	}
	return insertLog(ctx, q, store.NewFinancialLog(tx.ID, domain.LogCreated, actor, nil, &tx, tx.CreatedAt))
}

func insertLog(ctx context.Context, q queryer, entry domain.FinancialLog) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO financial_logs (id, transaction_id, action, actor, old_values, new_values, created_at)
		VALUES ($1,$2,$3,$4,$5::jsonb,$6::jsonb,$7)
	`, entry.ID, entry.TransactionID, entry.Action, entry.Actor, nullJSON(entry.OldValues), nullJSON(entry.NewValues), entry.CreatedAt)
	return err
}

func (s *Store) CreateFinancialTransaction(ctx context.Context, tx domain.FinancialTransaction, actor string) (*domain.FinancialTransaction, error) {
	tx, err := ledger.PrepareFinancial(tx, actor)
	if err != nil {
		return nil, err
	}
	err = s.inTx(ctx, func(sqlTx *sql.Tx) error {
		return insertFinancial(ctx, sqlTx, tx, actor)
	})
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

func (s *Store) GetFinancialTransaction(ctx context.Context, id string) (*domain.FinancialTransaction, error) {
	return getFinancial(ctx, s.db, id, "")
}

func getFinancial(ctx context.Context, q queryer, id string, lock string) (*domain.FinancialTransaction, error) {
	tx, err := scanFinancial(q.QueryRowContext(ctx, `SELECT `+financialColumns+` FROM financial_transactions WHERE id = $1`+lock, id))
	if err != nil {
		return nil, notFound(err, "financial transaction", id)
	}
	return &tx, nil
}

func (s *Store) ListFinancialTransactions(ctx context.Context, filter domain.FinancialFilter) ([]domain.FinancialTransaction, error) {
	var where whereBuilder
	where.eq("type", filter.Type)
	where.eq("status", filter.Status)
	where.eq("installment_id", filter.InstallmentID)
	where.eq("recurring_id", filter.RecurringID)
	if filter.From != nil {
		where.add("due_date >= $%d", store.DateOf(*filter.From))
	}
	if filter.To != nil {
		where.add("due_date <= $%d", store.DateOf(*filter.To))
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+financialColumns+` FROM financial_transactions`+where.String()+`
		ORDER BY due_date, created_at, id`+limitClause(filter.Limit), where.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.FinancialTransaction, 0, 32)
	for rows.Next() {
		tx, err := scanFinancial(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

func (s *Store) UpdateFinancialTransaction(ctx context.Context, id string, patch domain.FinancialTransactionPatch, actor string, at time.Time) (*domain.FinancialTransaction, error) {
	return s.transitionFinancial(ctx, id, domain.LogUpdated, actor, at, func(tx domain.FinancialTransaction) (domain.FinancialTransaction, error) {
		return store.ApplyFinancialPatch(tx, patch, at)
	})
}

func (s *Store) PayFinancialTransaction(ctx context.Context, id string, actor string, paidAt time.Time) (*domain.FinancialTransaction, error) {
	return s.transitionFinancial(ctx, id, domain.LogPaid, actor, paidAt, func(tx domain.FinancialTransaction) (domain.FinancialTransaction, error) {
		return ledger.Pay(tx, paidAt)
	})
}

func (s *Store) CancelFinancialTransaction(ctx context.Context, id string, actor string, at time.Time) (*domain.FinancialTransaction, error) {
	return s.transitionFinancial(ctx, id, domain.LogCancelled, actor, at, func(tx domain.FinancialTransaction) (domain.FinancialTransaction, error) {
		return ledger.Cancel(tx, at)
	})
}

func (s *Store) transitionFinancial(ctx context.Context, id string, action string, actor string, at time.Time, apply func(domain.FinancialTransaction) (domain.FinancialTransaction, error)) (*domain.FinancialTransaction, error) {
	var after domain.FinancialTransaction
	err := s.inTx(ctx, func(sqlTx *sql.Tx) error {
		before, err := getFinancial(ctx, sqlTx, id, " FOR UPDATE")
		if err != nil {
			return err
		}
		next, err := apply(*before)
		if err != nil {
			return err
		}
		if err := updateFinancial(ctx, sqlTx, next); err != nil {
			return err
		}
		after = next
		return insertLog(ctx, sqlTx, store.NewFinancialLog(id, action, actor, before, &after, at))
	})
	if err != nil {
		return nil, err
	}
	return &after, nil
}

func updateFinancial(ctx context.Context, q queryer, tx domain.FinancialTransaction) error {
	_, err := q.ExecContext(ctx, `
		UPDATE financial_transactions
		SET description = $2, amount_cents = $3, due_date = $4, paid_at = $5, status = $6, category_id = $7, cost_center_id = $8, updated_at = $9
		WHERE id = $1
	`, tx.ID, tx.Description, tx.AmountCents, store.DateOf(tx.DueDate), nullTime(tx.PaidAt), tx.Status, tx.CategoryID, tx.CostCenterID, tx.UpdatedAt)
	return err
}

func (s *Store) MarkOverdueFinancialTransactions(ctx context.Context, asOf time.Time, actor string) (int, error) {
	marked := 0
	err := s.inTx(ctx, func(sqlTx *sql.Tx) error {
		rows, err := sqlTx.QueryContext(ctx, `SELECT `+financialColumns+` FROM financial_transactions
			WHERE status = 'pending' AND due_date < $1 ORDER BY due_date, id FOR UPDATE`, store.DateOf(asOf))
		if err != nil {
			return err
		}
		pending := make([]domain.FinancialTransaction, 0, 16)
		for rows.Next() {
			tx, err := scanFinancial(rows)
			if err != nil {
				rows.Close()
				return err
			}
			pending = append(pending, tx)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		for _, before := range pending {
			if !ledger.Overdue(before, asOf) {
				continue
			}
			after := before
			after.Status = domain.FinancialOverdue
			after.UpdatedAt = asOf
			if err := updateFinancial(ctx, sqlTx, after); err != nil {
				return err
			}
			if err := insertLog(ctx, sqlTx, store.NewFinancialLog(before.ID, domain.LogOverdue, actor, &before, &after, asOf)); err != nil {
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
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, transaction_id, action, actor, old_values, new_values, created_at
		FROM financial_logs WHERE transaction_id = $1 ORDER BY created_at, id
	`, transactionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.FinancialLog, 0, 8)
	for rows.Next() {
		var (
			entry          domain.FinancialLog
			oldRaw, newRaw []byte
		)
		if err := rows.Scan(&entry.ID, &entry.TransactionID, &entry.Action, &entry.Actor, &oldRaw, &newRaw, &entry.CreatedAt); err != nil {
			return nil, err
		}
		if len(oldRaw) > 0 {
			entry.OldValues = json.RawMessage(oldRaw)
		}
		if len(newRaw) > 0 {
			entry.NewValues = json.RawMessage(newRaw)
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		out = append(out, entry)
	}
	return out, rows.Err()
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
	for _, tx := range txs {
		tx.InstallmentID = plan.ID
		tx.CreatedAt = plan.CreatedAt
		next, err := ledger.PrepareFinancial(tx, actor)
		if err != nil {
			return nil, err
		}
		prepared = append(prepared, next)
	}

	err := s.inTx(ctx, func(sqlTx *sql.Tx) error {
		if _, err := sqlTx.ExecContext(ctx, `
			INSERT INTO installments (id, description, total_cents, count, installment_cents, start_date, customer_id, supplier_id,
				category_id, cost_center_id, active, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,true,$11)
		`, plan.ID, plan.Description, plan.TotalCents, plan.Count, plan.InstallmentCents, store.DateOf(plan.StartDate),
			nullIfEmpty(plan.CustomerID), nullIfEmpty(plan.SupplierID), plan.CategoryID, plan.CostCenterID, plan.CreatedAt); err != nil {
			return err
		}
		for _, tx := range prepared {
			if err := insertFinancial(ctx, sqlTx, tx, actor); err != nil {
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

const installmentColumns = `id, description, total_cents, count, installment_cents, start_date, COALESCE(customer_id, ''),
	COALESCE(supplier_id, ''), category_id, cost_center_id, active, created_at`

func scanInstallment(row interface{ Scan(...any) error }) (domain.Installment, error) {
	var plan domain.Installment
	err := row.Scan(&plan.ID, &plan.Description, &plan.TotalCents, &plan.Count, &plan.InstallmentCents, &plan.StartDate,
		&plan.CustomerID, &plan.SupplierID, &plan.CategoryID, &plan.CostCenterID, &plan.Active, &plan.CreatedAt)
	plan.StartDate = store.DateOf(plan.StartDate)
	plan.CreatedAt = plan.CreatedAt.UTC()
	return plan, err
}

func (s *Store) GetInstallment(ctx context.Context, id string) (*domain.Installment, error) {
	plan, err := scanInstallment(s.db.QueryRowContext(ctx, `SELECT `+installmentColumns+` FROM installments WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "installment", id)
	}
	return &plan, nil
}

func (s *Store) ListInstallments(ctx context.Context, filter domain.InstallmentFilter) ([]domain.Installment, error) {
	var where whereBuilder
	where.eq("customer_id", filter.CustomerID)
	where.eq("supplier_id", filter.SupplierID)
	switch filter.Status {
	case "active":
		where.add("active = $%d", true)
	case "inactive":
		where.add("active = $%d", false)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+installmentColumns+` FROM installments`+where.String()+`
		ORDER BY created_at DESC, id DESC`, where.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Installment, 0, 16)
	for rows.Next() {
		plan, err := scanInstallment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, plan)
	}
	return out, rows.Err()
}

func (s *Store) DeactivateInstallment(ctx context.Context, id string) (*domain.Installment, error) {
	plan, err := scanInstallment(s.db.QueryRowContext(ctx, `
		UPDATE installments SET active = false WHERE id = $1 RETURNING `+installmentColumns, id))
	if err != nil {
		return nil, notFound(err, "installment", id)
	}
	return &plan, nil
}

const recurringColumns = `id, type, description, amount_cents, frequency, start_date, end_date, last_generated,
	category_id, cost_center_id, supplier_id, active, created_at`

func scanRecurring(row interface{ Scan(...any) error }) (domain.RecurringEntry, error) {
	var (
		entry   domain.RecurringEntry
		endDate sql.NullTime
		last    sql.NullTime
	)
	err := row.Scan(&entry.ID, &entry.Type, &entry.Description, &entry.AmountCents, &entry.Frequency, &entry.StartDate,
		&endDate, &last, &entry.CategoryID, &entry.CostCenterID, &entry.SupplierID, &entry.Active, &entry.CreatedAt)
	entry.StartDate = store.DateOf(entry.StartDate)
	entry.EndDate, entry.LastGenerated = timePtr(endDate), timePtr(last)
	entry.CreatedAt = entry.CreatedAt.UTC()
	return entry, err
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

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO recurring_entries (id, type, description, amount_cents, frequency, start_date, end_date,
			category_id, cost_center_id, supplier_id, active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,true,$11)
	`, entry.ID, entry.Type, entry.Description, entry.AmountCents, entry.Frequency, store.DateOf(entry.StartDate),
		nullTime(entry.EndDate), entry.CategoryID, entry.CostCenterID, entry.SupplierID, entry.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (s *Store) GetRecurringEntry(ctx context.Context, id string) (*domain.RecurringEntry, error) {
	return getRecurring(ctx, s.db, id, "")
}

func getRecurring(ctx context.Context, q queryer, id string, lock string) (*domain.RecurringEntry, error) {
	entry, err := scanRecurring(q.QueryRowContext(ctx, `SELECT `+recurringColumns+` FROM recurring_entries WHERE id = $1`+lock, id))
	if err != nil {
		return nil, notFound(err, "recurring entry", id)
	}
	return &entry, nil
}

func (s *Store) ListRecurringEntries(ctx context.Context, activeOnly bool) ([]domain.RecurringEntry, error) {
	query := `SELECT ` + recurringColumns + ` FROM recurring_entries`
	if activeOnly {
		query += ` WHERE active`
	}
	rows, err := s.db.QueryContext(ctx, query+` ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.RecurringEntry, 0, 8)
	for rows.Next() {
		entry, err := scanRecurring(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

func (s *Store) DeactivateRecurringEntry(ctx context.Context, id string) (*domain.RecurringEntry, error) {
	entry, err := scanRecurring(s.db.QueryRowContext(ctx, `
		UPDATE recurring_entries SET active = false WHERE id = $1 RETURNING `+recurringColumns, id))
	if err != nil {
		return nil, notFound(err, "recurring entry", id)
	}
	return &entry, nil
}

func (s *Store) GenerateRecurringTransaction(ctx context.Context, entryID string, prevLast *time.Time, today time.Time, tx domain.FinancialTransaction, actor string) (*domain.FinancialTransaction, error) {
	tx.RecurringID = entryID
	tx, err := ledger.PrepareFinancial(tx, actor)
	if err != nil {
		return nil, err
	}
	err = s.inTx(ctx, func(sqlTx *sql.Tx) error {
		entry, err := getRecurring(ctx, sqlTx, entryID, " FOR UPDATE")
		if err != nil {
			return err
		}
		if !ledger.SameDay(entry.LastGenerated, prevLast) {
			return store.Wrap(store.ErrConflict, "recurring entry %s was generated concurrently", entryID)
		}
		if _, err := sqlTx.ExecContext(ctx, `UPDATE recurring_entries SET last_generated = $2 WHERE id = $1`,
			entryID, store.DateOf(today)); err != nil {
			return err
		}
		return insertFinancial(ctx, sqlTx, tx, actor)
	})
	if err != nil {
		return nil, err
	}
	return &tx, nil
}
