package service

import (
	"context"

	"caixa/backend/internal/domain"
	"caixa/backend/internal/store"
	"caixa/backend/internal/validation"
)

// UpdateCommission sets how an operator earns commission on future sales.
func (s *Service) UpdateCommission(ctx context.Context, username string, req domain.CommissionUpdateRequest) (*domain.UserAccount, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	switch req.Type {
	case domain.CommissionPercentage:
		if !req.Percent.IsPositive() || req.Percent.GreaterThan(hundredPercent) {
			return nil, store.Invalid("percent must be greater than 0 and at most 100")
		}
		req.FixedCents = 0
	case domain.CommissionFixed:
		if req.FixedCents <= 0 {
			return nil, store.Invalid("fixed_cents must be greater than 0")
		}
		req.Percent = zeroPercent
	default:
		req.Percent, req.FixedCents = zeroPercent, 0
	}
	user, err := s.repo.UpdateUserCommission(ctx, username, req)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, "user.commission", "user", user.Username)
	return user, nil
}
