package service

import (
	"context"
	"strings"

	"caixa/backend/internal/domain"
	"caixa/backend/internal/report"
	"caixa/backend/internal/validation"
)

func (s *Service) OpenCashRegister(ctx context.Context, req domain.CashOpenRequest) (*domain.CashRegister, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	operator := defaultString(strings.TrimSpace(req.OperatorID), actorName(ctx))
	if !mayActFor(ctx, operator) {
		return nil, ErrForbidden
	}
	reg, err := s.repo.OpenCashRegister(ctx, domain.CashRegister{
		OperatorID:   operator,
		InitialCents: req.InitialCents,
		OpenedAt:     s.now(),
	})
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, "cash.open", "cash_register", reg.ID)
	return reg, nil
}

func (s *Service) Withdraw(ctx context.Context, req domain.CashMovementRequest) (*domain.CashRegister, error) {
	return s.moveCash(ctx, domain.CashWithdrawal, req)
}

func (s *Service) Deposit(ctx context.Context, req domain.CashMovementRequest) (*domain.CashRegister, error) {
	return s.moveCash(ctx, domain.CashDeposit, req)
}

func (s *Service) moveCash(ctx context.Context, movementType string, req domain.CashMovementRequest) (*domain.CashRegister, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	if err := s.checkRegisterOwner(ctx, req.RegisterID); err != nil {
		return nil, err
	}
	reg, err := s.repo.RecordCashMovement(ctx, domain.CashMovement{
		RegisterID:  req.RegisterID,
		Type:        movementType,
		AmountCents: req.AmountCents,
		Description: strings.TrimSpace(req.Description),
		CreatedAt:   s.now(),
	})
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, "cash."+movementType, "cash_register", reg.ID)
	return reg, nil
}

// CloseCashRegister reconciles the drawer. A difference between counted and
// expected cash is reported, not rejected.
func (s *Service) CloseCashRegister(ctx context.Context, req domain.CashCloseRequest) (*domain.CashCloseResult, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	if err := s.checkRegisterOwner(ctx, req.RegisterID); err != nil {
		return nil, err
	}
	result, err := s.repo.CloseCashRegister(ctx, req.RegisterID, req.ActualCents, s.now())
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, "cash.close", "cash_register", result.Register.ID)
	return result, nil
}

func (s *Service) checkRegisterOwner(ctx context.Context, registerID string) error {
	reg, err := s.repo.GetCashRegister(ctx, registerID)
	if err != nil {
		return err
	}
	if !mayActFor(ctx, reg.OperatorID) {
		return ErrForbidden
	}
	return nil
}

func (s *Service) CurrentCashRegister(ctx context.Context, operatorID string) (*domain.CashRegister, error) {
	operator := defaultString(strings.TrimSpace(operatorID), actorName(ctx))
	if !mayActFor(ctx, operator) {
		return nil, ErrForbidden
	}
	return s.repo.GetOpenCashRegister(ctx, operator)
}

// CashRegisterHistory lists registers; cashiers only see their own.
func (s *Service) CashRegisterHistory(ctx context.Context, filter domain.CashRegisterFilter) ([]domain.CashRegister, error) {
	if actor, ok := ActorFromContext(ctx); !ok || actor.Role != domain.RoleAdmin {
		filter.OperatorID = actorName(ctx)
	}
	filter.From, filter.To = dayRange(filter.From, filter.To)
	return s.repo.ListCashRegisters(ctx, filter)
}

func (s *Service) CashMovementReport(ctx context.Context, filter domain.CashRegisterFilter) ([]domain.CashMovementSummary, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}
	filter.From, filter.To = dayRange(filter.From, filter.To)
	parts := []string{filter.OperatorID, optionalKey(filter.From), optionalKey(filter.To)}
	return report.Cached(ctx, s.reports, "cash-movements", parts, func() ([]domain.CashMovementSummary, error) {
		registers, err := s.repo.ListCashRegisters(ctx, filter)
		if err != nil {
			return nil, err
		}
		return report.CashMovementSummary(registers), nil
	})
}
