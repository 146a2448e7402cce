package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"caixa/backend/internal/domain"
	"caixa/backend/internal/money"
	"caixa/backend/internal/report"
	"caixa/backend/internal/store"
	"caixa/backend/internal/validation"
	"caixa/backend/internal/xid"
)

// ProcessSale prices the cart, reconciles payments and persists the sale with
// its stock decrements and commission in one store operation.
func (s *Service) ProcessSale(ctx context.Context, req domain.SaleRequest) (domain.SaleResponse, error) {
	if err := validation.Struct(req); err != nil {
		return domain.SaleResponse{}, err
	}
	operator := defaultString(strings.TrimSpace(req.OperatorID), actorName(ctx))
	if !mayActFor(ctx, operator) {
		return domain.SaleResponse{}, ErrForbidden
	}

	sale := domain.Sale{
		ID:            xid.New("sale"),
		CustomerID:    strings.TrimSpace(req.CustomerID),
		OperatorID:    operator,
		DiscountCents: req.DiscountCents,
		CreatedAt:     s.now(),
	}
	if sale.CustomerID != "" {
		if _, err := s.repo.GetCustomer(ctx, sale.CustomerID); err != nil {
			return domain.SaleResponse{}, err
		}
	}

	wanted := map[string]int{}
	for _, item := range req.Items {
		product, err := s.repo.GetProduct(ctx, item.ProductID)
		if err != nil {
			return domain.SaleResponse{}, err
		}
		wanted[product.ID] += item.Quantity
		if wanted[product.ID] > product.Stock {
			return domain.SaleResponse{}, store.StockShortage(product.ID, wanted[product.ID], product.Stock)
		}
		price := item.UnitPriceCents
		if price == 0 {
			price = product.SalePriceCents
		}
		line := domain.SaleItem{
			ProductID:      product.ID,
			Quantity:       item.Quantity,
			UnitPriceCents: price,
			DiscountCents:  item.DiscountCents,
			TotalCents:     int64(item.Quantity)*price - item.DiscountCents,
		}
		sale.SubtotalCents += line.TotalCents
		sale.Items = append(sale.Items, line)
	}
	sale.TotalCents = sale.SubtotalCents - sale.DiscountCents

	for _, p := range req.Payments {
		sale.Payments = append(sale.Payments, domain.Payment{Method: p.Method, AmountCents: p.AmountCents})
		sale.PaidCents += p.AmountCents
	}
	if sale.PaidCents < sale.TotalCents {
		return domain.SaleResponse{}, fmt.Errorf("%w: total %s, paid %s", store.ErrPaymentInsufficient, money.Format(sale.TotalCents), money.Format(sale.PaidCents))
	}
	change, err := allocateChange(sale.Payments, sale.PaidCents-max(sale.TotalCents, 0))
	if err != nil {
		return domain.SaleResponse{}, err
	}
	sale.ChangeCents = change

	commission, err := s.commissionFor(ctx, operator, sale.TotalCents)
	if err != nil {
		return domain.SaleResponse{}, err
	}
	if commission != nil {
		commission.SaleID, commission.CreatedAt = sale.ID, sale.CreatedAt
	}

	created, err := s.repo.CreateSale(ctx, sale, commission)
	if err != nil {
		return domain.SaleResponse{}, err
	}
	s.logAudit(ctx, "sale.create", "sale", created.ID)
	return domain.SaleResponse{Sale: *created, Commission: commission}, nil
}

// allocateChange hands change back through cash payments only, starting from
// the last one and never beyond a payment's own amount.
func allocateChange(payments []domain.Payment, change int64) (int64, error) {
	if change <= 0 {
		return 0, nil
	}
	remaining := change
	for i := len(payments) - 1; i >= 0 && remaining > 0; i-- {
		if payments[i].Method != domain.PaymentCash {
			continue
		}
		give := min(remaining, payments[i].AmountCents)
		payments[i].ChangeCents = give
		remaining -= give
	}
	if remaining > 0 {
		return 0, store.Invalid("change can only be returned in cash")
	}
	return change, nil
}

func (s *Service) commissionFor(ctx context.Context, operator string, totalCents int64) (*domain.Commission, error) {
	user, err := s.repo.GetUser(ctx, operator)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var amount int64
	switch user.CommissionType {
	case domain.CommissionPercentage:
		amount = money.PercentOf(totalCents, user.CommissionPercent)
	case domain.CommissionFixed:
		amount = user.CommissionFixedCents
	}
	if amount <= 0 {
		return nil, nil
	}
	return &domain.Commission{ID: xid.New("com"), OperatorID: operator, AmountCents: amount, Status: domain.CommissionPending}, nil
}

func (s *Service) GetSale(ctx context.Context, id string) (*domain.Sale, error) {
	return s.repo.GetSale(ctx, id)
}

func (s *Service) ListSales(ctx context.Context, filter domain.SaleFilter) ([]domain.Sale, error) {
	filter.From, filter.To = dayRange(filter.From, filter.To)
	return s.repo.ListSales(ctx, filter)
}

func (s *Service) ListCommissions(ctx context.Context, filter domain.CommissionFilter) ([]domain.Commission, error) {
	if filter.Status != "" && filter.Status != domain.CommissionPending && filter.Status != domain.CommissionPaid {
		return nil, store.Invalid("unsupported commission status %q", filter.Status)
	}
	filter.From, filter.To = dayRange(filter.From, filter.To)
	return s.repo.ListCommissions(ctx, filter)
}

func (s *Service) CommissionSummary(ctx context.Context, filter domain.CommissionFilter) ([]domain.CommissionSummary, error) {
	filter.From, filter.To = dayRange(filter.From, filter.To)
	parts := []string{filter.OperatorID, filter.Status, optionalKey(filter.From), optionalKey(filter.To)}
	return report.Cached(ctx, s.reports, "commissions", parts, func() ([]domain.CommissionSummary, error) {
		commissions, err := s.repo.ListCommissions(ctx, filter)
		if err != nil {
			return nil, err
		}
		return report.CommissionSummary(commissions), nil
	})
}

// ProcessReturn restocks returned sale lines. The manager PIN is checked by
// the HTTP layer before this runs.
func (s *Service) ProcessReturn(ctx context.Context, req domain.ReturnRequest) (*domain.Return, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	sale, err := s.repo.GetSale(ctx, req.SaleID)
	if err != nil {
		return nil, err
	}

	ret := domain.Return{
		SaleID:     sale.ID,
		OperatorID: defaultString(strings.TrimSpace(req.OperatorID), actorName(ctx)),
		CreatedAt:  s.now(),
	}
	for _, item := range req.Items {
		ret.Items = append(ret.Items, domain.ReturnItem{
			SaleItemID: item.SaleItemID,
			Quantity:   item.Quantity,
			Reason:     strings.TrimSpace(item.Reason),
		})
	}
	created, err := s.repo.CreateReturn(ctx, ret)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, "sale.return", "return", created.ID)
	return created, nil
}

func (s *Service) ListReturns(ctx context.Context, saleID string) ([]domain.Return, error) {
	return s.repo.ListReturns(ctx, strings.TrimSpace(saleID))
}

// EarnPointsForSale credits loyalty points for a customer sale under the
// active program. A sale earns at most once.
func (s *Service) EarnPointsForSale(ctx context.Context, saleID string) (domain.EarnForSaleResult, error) {
	sale, err := s.repo.GetSale(ctx, saleID)
	if err != nil {
		return domain.EarnForSaleResult{}, err
	}
	if sale.CustomerID == "" {
		return domain.EarnForSaleResult{}, store.Invalid("sale %s has no customer", sale.ID)
	}
	program, err := s.repo.GetActiveLoyaltyProgram(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return domain.EarnForSaleResult{}, nil
	}
	if err != nil {
		return domain.EarnForSaleResult{}, err
	}
	points := money.PointsFor(sale.TotalCents, program.PointsPerCurrency)
	if points == 0 {
		return domain.EarnForSaleResult{}, nil
	}

	entry, err := s.repo.PostLoyaltyTransaction(ctx, domain.LoyaltyTransaction{
		CustomerID:  sale.CustomerID,
		Type:        domain.LoyaltyEarned,
		Points:      points,
		Description: fmt.Sprintf("%s: sale %s", program.Name, sale.ID),
		SaleID:      sale.ID,
		CreatedAt:   s.now(),
	})
	if err != nil {
		return domain.EarnForSaleResult{}, err
	}
	log.Info().Str("component", "loyalty").Str("sale_id", sale.ID).Str("customer_id", sale.CustomerID).Int64("points", points).Msg("points earned for sale")
	return domain.EarnForSaleResult{Points: points, Transaction: entry}, nil
}
