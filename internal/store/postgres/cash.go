package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"caixa/backend/internal/domain"
	"caixa/backend/internal/ledger"
	"caixa/backend/internal/store"
	"caixa/backend/internal/xid"
)

const registerColumns = `id, operator_id, opened_at, closed_at, initial_cents, expected_cents, actual_cents, status`

func scanRegister(row interface{ Scan(...any) error }) (domain.CashRegister, error) {
	var (
		reg      domain.CashRegister
		closedAt sql.NullTime
		actual   sql.NullInt64
	)
	err := row.Scan(&reg.ID, &reg.OperatorID, &reg.OpenedAt, &closedAt, &reg.InitialCents, &reg.ExpectedCents, &actual, &reg.Status)
	reg.OpenedAt = reg.OpenedAt.UTC()
	reg.ClosedAt = timePtr(closedAt)
	if actual.Valid {
		reg.ActualCents = &actual.Int64
	}
	reg.Movements = []domain.CashMovement{}
	return reg, err
}

func (s *Store) OpenCashRegister(ctx context.Context, register domain.CashRegister) (*domain.CashRegister, error) {
	if register.OperatorID == "" {
		return nil, store.Invalid("operator is required")
	}
	if register.InitialCents < 0 {
		return nil, store.Invalid("initial amount must not be negative")
	}
	if register.ID == "" {
		register.ID = xid.New("reg")
	}
	if register.OpenedAt.IsZero() {
		register.OpenedAt = time.Now().UTC()
	}
	register.Status = domain.RegisterOpen
	register.ExpectedCents = register.InitialCents
	register.ClosedAt, register.ActualCents = nil, nil
	register.Movements = []domain.CashMovement{}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cash_registers (id, operator_id, opened_at, initial_cents, expected_cents, status)
		VALUES ($1,$2,$3,$4,$4,$5)
	`, register.ID, register.OperatorID, register.OpenedAt, register.InitialCents, register.Status)
	if isUniqueViolation(err) {
		return nil, store.Wrap(store.ErrAlreadyOpen, "operator %s already has an open register", register.OperatorID)
	}
	if err != nil {
		return nil, err
	}
	return &register, nil
}

func (s *Store) GetCashRegister(ctx context.Context, id string) (*domain.CashRegister, error) {
	return getRegister(ctx, s.db, `WHERE id = $1`, "", id)
}

func (s *Store) GetOpenCashRegister(ctx context.Context, operatorID string) (*domain.CashRegister, error) {
	reg, err := getRegister(ctx, s.db, `WHERE operator_id = $1 AND status = 'open'`, "", operatorID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, store.NotFound("open cash register for operator", operatorID)
	}
	return reg, err
}

func getRegister(ctx context.Context, q queryer, where string, lock string, arg string) (*domain.CashRegister, error) {
	reg, err := scanRegister(q.QueryRowContext(ctx, `SELECT `+registerColumns+` FROM cash_registers `+where+lock, arg))
	if err != nil {
		return nil, notFound(err, "cash register", arg)
	}
	rows, err := q.QueryContext(ctx, `
		SELECT id, register_id, type, amount_cents, description, created_at
		FROM cash_movements WHERE register_id = $1 ORDER BY created_at, id
	`, reg.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var mv domain.CashMovement
		if err := rows.Scan(&mv.ID, &mv.RegisterID, &mv.Type, &mv.AmountCents, &mv.Description, &mv.CreatedAt); err != nil {
			return nil, err
		}
		mv.CreatedAt = mv.CreatedAt.UTC()
		reg.Movements = append(reg.Movements, mv)
	}
	return &reg, rows.Err()
}

func (s *Store) RecordCashMovement(ctx context.Context, movement domain.CashMovement) (*domain.CashRegister, error) {
	var out domain.CashRegister
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		reg, err := getRegister(ctx, tx, `WHERE id = $1`, " FOR UPDATE", movement.RegisterID)
		if err != nil {
			return err
		}
		next, mv, err := ledger.ApplyCashMovement(*reg, movement)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO cash_movements (id, register_id, type, amount_cents, description, created_at)
			VALUES ($1,$2,$3,$4,$5,$6)
		`, mv.ID, mv.RegisterID, mv.Type, mv.AmountCents, mv.Description, mv.CreatedAt); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE cash_registers SET expected_cents = $2 WHERE id = $1`, next.ID, next.ExpectedCents); err != nil {
			return err
		}
		out = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Store) CloseCashRegister(ctx context.Context, id string, actualCents int64, closedAt time.Time) (*domain.CashCloseResult, error) {
	var result domain.CashCloseResult
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		reg, err := getRegister(ctx, tx, `WHERE id = $1`, " FOR UPDATE", id)
		if err != nil {
			return err
		}
		var where whereBuilder
		where.eq("operator_id", reg.OperatorID)
		where.between("created_at", &reg.OpenedAt, &closedAt)
		sales, err := listSales(ctx, tx, where, 0)
		if err != nil {
			return err
		}
		result, err = ledger.Reconcile(*reg, sales, actualCents, closedAt)
		if err != nil {
			return err
		}
		closed := result.Register
		_, err = tx.ExecContext(ctx, `
			UPDATE cash_registers SET status = $2, closed_at = $3, actual_cents = $4, expected_cents = $5 WHERE id = $1
		`, closed.ID, closed.Status, nullTime(closed.ClosedAt), nullInt64(closed.ActualCents), closed.ExpectedCents)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *Store) ListCashRegisters(ctx context.Context, filter domain.CashRegisterFilter) ([]domain.CashRegister, error) {
	var where whereBuilder
	where.eq("operator_id", filter.OperatorID)
	where.between("opened_at", filter.From, filter.To)

	rows, err := s.db.QueryContext(ctx, `SELECT `+registerColumns+` FROM cash_registers`+where.String()+`
		ORDER BY opened_at DESC, id DESC`+limitClause(filter.Limit), where.args...)
	if err != nil {
		return nil, err
	}
	registers := make([]domain.CashRegister, 0, 16)
	index := map[string]int{}
	for rows.Next() {
		reg, err := scanRegister(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		index[reg.ID] = len(registers)
		registers = append(registers, reg)
	}
	rows.Close()
	if err := rows.Err(); err != nil || len(registers) == 0 {
		return registers, err
	}

	ids := make([]string, len(registers))
	for i := range registers {
		ids[i] = registers[i].ID
	}
	mvRows, err := s.db.QueryContext(ctx, `
		SELECT id, register_id, type, amount_cents, description, created_at
		FROM cash_movements WHERE register_id = ANY($1) ORDER BY created_at, id
	`, ids)
	if err != nil {
		return nil, err
	}
	defer mvRows.Close()
	for mvRows.Next() {
		var mv domain.CashMovement
		if err := mvRows.Scan(&mv.ID, &mv.RegisterID, &mv.Type, &mv.AmountCents, &mv.Description, &mv.CreatedAt); err != nil {
			return nil, err
		}
		mv.CreatedAt = mv.CreatedAt.UTC()
		i := index[mv.RegisterID]
		registers[i].Movements = append(registers[i].Movements, mv)
	}
	return registers, mvRows.Err()
}
