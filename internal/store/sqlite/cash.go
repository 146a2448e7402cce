package sqlite

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"caixa/backend/internal/domain"
	"caixa/backend/internal/ledger"
	"caixa/backend/internal/store"
	"caixa/backend/internal/xid"
)

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

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var open []registerRow
		if err := tx.Where("operator_id = ? AND status = ?", register.OperatorID, domain.RegisterOpen).Limit(1).Find(&open).Error; err != nil {
			return err
		}
		if len(open) > 0 {
			return store.Wrap(store.ErrAlreadyOpen, "operator %s has register %s", register.OperatorID, open[0].ID)
		}
		row := newRegisterRow(register)
		return tx.Create(&row).Error
	})
	if err != nil {
		return nil, err
	}
	return &register, nil
}

func (s *Store) GetCashRegister(ctx context.Context, id string) (*domain.CashRegister, error) {
	return getRegister(s.db.WithContext(ctx).Where("id = ?", id), id)
}

func (s *Store) GetOpenCashRegister(ctx context.Context, operatorID string) (*domain.CashRegister, error) {
	q := s.db.WithContext(ctx).Where("operator_id = ? AND status = ?", operatorID, domain.RegisterOpen)
	reg, err := getRegister(q, operatorID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, store.NotFound("open cash register for operator", operatorID)
	}
	return reg, err
}

// getRegister loads the first register matching q along with its movements.
func getRegister(q *gorm.DB, key string) (*domain.CashRegister, error) {
	var row registerRow
	if err := q.First(&row).Error; err != nil {
		return nil, notFound(err, "cash register", key)
	}
	regs := []domain.CashRegister{row.toDomain()}
	if err := loadMovements(q.Session(&gorm.Session{NewDB: true}), regs); err != nil {
		return nil, err
	}
	return &regs[0], nil
}

func loadMovements(tx *gorm.DB, regs []domain.CashRegister) error {
	if len(regs) == 0 {
		return nil
	}
	ids := make([]string, len(regs))
	index := make(map[string]int, len(regs))
	for i := range regs {
		ids[i] = regs[i].ID
		index[regs[i].ID] = i
	}
	var rows []cashMovementRow
	if err := tx.Where("register_id IN ?", ids).Order("created_at, id").Find(&rows).Error; err != nil {
		return err
	}
	for _, row := range rows {
		i := index[row.RegisterID]
		regs[i].Movements = append(regs[i].Movements, domain.CashMovement(row))
	}
	return nil
}

func (s *Store) RecordCashMovement(ctx context.Context, movement domain.CashMovement) (*domain.CashRegister, error) {
	var out domain.CashRegister
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		reg, err := getRegister(tx.Where("id = ?", movement.RegisterID), movement.RegisterID)
		if err != nil {
			return err
		}
		next, mv, err := ledger.ApplyCashMovement(*reg, movement)
		if err != nil {
			return err
		}
		row := cashMovementRow(mv)
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		if err := tx.Model(&registerRow{}).Where("id = ?", next.ID).Update("expected_cents", next.ExpectedCents).Error; err != nil {
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
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		reg, err := getRegister(tx.Where("id = ?", id), id)
		if err != nil {
			return err
		}
		var sales []saleRow
		if err := tx.Where("operator_id = ?", reg.OperatorID).Find(&sales).Error; err != nil {
			return err
		}
		result, err = ledger.Reconcile(*reg, convert(sales, saleRow.toDomain), actualCents, closedAt)
		if err != nil {
			return err
		}
		row := newRegisterRow(result.Register)
		return saveColumns(tx, &row)
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *Store) ListCashRegisters(ctx context.Context, filter domain.CashRegisterFilter) ([]domain.CashRegister, error) {
	db := s.db.WithContext(ctx)
	q := eq(db.Model(&registerRow{}), "operator_id", filter.OperatorID)
	q = between(q, "opened_at", filter.From, filter.To)

	var rows []registerRow
	if err := limit(q.Order("opened_at DESC, id DESC"), filter.Limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	regs := convert(rows, registerRow.toDomain)
	if err := loadMovements(db, regs); err != nil {
		return nil, err
	}
	return regs, nil
}
