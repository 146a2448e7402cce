package service

import (
	"context"
	"strings"

	"caixa/backend/internal/domain"
	"caixa/backend/internal/procurement"
	"caixa/backend/internal/report"
	"caixa/backend/internal/store"
	"caixa/backend/internal/validation"
)

func (s *Service) CreateSupplier(ctx context.Context, req domain.SupplierCreateRequest) (*domain.Supplier, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	supplier, err := s.repo.CreateSupplier(ctx, domain.Supplier{
		Name:             strings.TrimSpace(req.Name),
		Document:         strings.TrimSpace(req.Document),
		Email:            strings.TrimSpace(req.Email),
		Phone:            strings.TrimSpace(req.Phone),
		Address:          strings.TrimSpace(req.Address),
		BankDetails:      strings.TrimSpace(req.BankDetails),
		CreditLimitCents: req.CreditLimitCents,
		CreatedAt:        s.now(),
	})
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, "supplier.create", "supplier", supplier.ID)
	return supplier, nil
}

func (s *Service) GetSupplier(ctx context.Context, id string) (*domain.Supplier, error) {
	return s.repo.GetSupplier(ctx, id)
}

func (s *Service) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	return s.repo.ListSuppliers(ctx)
}

func (s *Service) UpdateSupplier(ctx context.Context, id string, req domain.SupplierUpdateRequest) (*domain.Supplier, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}
	current, err := s.repo.GetSupplier(ctx, id)
	if err != nil {
		return nil, err
	}
	next := *current
	setTrimmed(&next.Name, req.Name)
	setTrimmed(&next.Document, req.Document)
	setTrimmed(&next.Email, req.Email)
	setTrimmed(&next.Phone, req.Phone)
	setTrimmed(&next.Address, req.Address)
	setTrimmed(&next.BankDetails, req.BankDetails)
	if req.CreditLimitCents != nil {
		next.CreditLimitCents = *req.CreditLimitCents
	}
	updated, err := s.repo.UpdateSupplier(ctx, next)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, "supplier.update", "supplier", updated.ID)
	return updated, nil
}

func (s *Service) CreatePurchaseOrder(ctx context.Context, req domain.PurchaseOrderCreateRequest) (*domain.PurchaseOrder, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	expected, err := parseOptionalDate("expected_date", req.ExpectedDate)
	if err != nil {
		return nil, err
	}
	now := s.now()
	po := domain.PurchaseOrder{
		SupplierID:   req.SupplierID,
		ExpectedDate: expected,
		Notes:        strings.TrimSpace(req.Notes),
		OrderDate:    now,
		CreatedAt:    now,
	}
	for _, item := range req.Items {
		po.Items = append(po.Items, domain.PurchaseOrderItem{
			ProductID:     item.ProductID,
			Quantity:      item.Quantity,
			UnitCostCents: item.UnitCostCents,
		})
	}
	created, err := s.repo.CreatePurchaseOrder(ctx, po)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, "purchase_order.create", "purchase_order", created.ID)
	return created, nil
}

func (s *Service) GetPurchaseOrder(ctx context.Context, id string) (*domain.PurchaseOrder, error) {
	return s.repo.GetPurchaseOrder(ctx, id)
}

func (s *Service) ListPurchaseOrders(ctx context.Context, supplierID string, status string) ([]domain.PurchaseOrder, error) {
	if status != "" && !procurement.ValidStatus(status) {
		return nil, store.Invalid("unsupported purchase order status %q", status)
	}
	return s.repo.ListPurchaseOrders(ctx, supplierID, status)
}

// UpdatePurchaseOrderStatus moves the order forward. Reaching received
// stocks every outstanding quantity and scores the supplier.
func (s *Service) UpdatePurchaseOrderStatus(ctx context.Context, id string, req domain.PurchaseOrderStatusRequest) (*domain.PurchaseOrder, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	if !procurement.ValidStatus(req.Status) {
		return nil, store.Invalid("unsupported purchase order status %q", req.Status)
	}
	at := s.now()
	if received, err := parseOptionalDate("received_date", req.ReceivedDate); err != nil {
		return nil, err
	} else if received != nil {
		at = *received
	}
	po, err := s.repo.UpdatePurchaseOrderStatus(ctx, id, req.Status, at)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, "purchase_order."+req.Status, "purchase_order", po.ID)
	return po, nil
}

func (s *Service) ReceivePurchaseOrderItem(ctx context.Context, orderID string, itemID string, req domain.PurchaseOrderReceiveItemRequest) (*domain.PurchaseOrder, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	po, err := s.repo.ReceivePurchaseOrderItem(ctx, orderID, itemID, req.ReceivedQuantity, s.now())
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, "purchase_order.receive_item", "purchase_order", po.ID)
	return po, nil
}

func (s *Service) ListReliabilityEvents(ctx context.Context, supplierID string) ([]domain.ReliabilityEvent, error) {
	return s.repo.ListReliabilityEvents(ctx, supplierID)
}

func (s *Service) SupplierReport(ctx context.Context) ([]domain.SupplierReportRow, error) {
	return report.Cached(ctx, s.reports, "suppliers", nil, func() ([]domain.SupplierReportRow, error) {
		suppliers, err := s.repo.ListSuppliers(ctx)
		if err != nil {
			return nil, err
		}
		orders, err := s.repo.ListPurchaseOrders(ctx, "", "")
		if err != nil {
			return nil, err
		}
		return report.SupplierReport(suppliers, orders), nil
	})
}
