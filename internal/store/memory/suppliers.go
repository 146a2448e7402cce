package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"time"

	"caixa/backend/internal/domain"
	"caixa/backend/internal/procurement"
	"caixa/backend/internal/store"
	"caixa/backend/internal/xid"
)

func (s *Store) CreateSupplier(_ context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(supplier.Name) == "" {
		return nil, store.Invalid("supplier name is required")
	}
	if supplier.CreditLimitCents < 0 {
		return nil, store.Invalid("credit limit must not be negative")
	}
	if supplier.ID == "" {
		supplier.ID = xid.New("sup")
	}
	if supplier.CreatedAt.IsZero() {
		supplier.CreatedAt = time.Now().UTC()
	}
	supplier.ReliabilityScore = procurement.MaxScore
	s.suppliersByID[supplier.ID] = supplier
	return &supplier, nil
}

func (s *Store) GetSupplier(_ context.Context, id string) (*domain.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sup, ok := s.suppliersByID[id]
	if !ok {
		return nil, store.NotFound("supplier", id)
	}
	return &sup, nil
}

func (s *Store) ListSuppliers(_ context.Context) ([]domain.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Supplier, 0, len(s.suppliersByID))
	for _, sup := range s.suppliersByID {
		out = append(out, sup)
	}
	slices.SortFunc(out, func(a, b domain.Supplier) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

// UpdateSupplier replaces contact fields and the credit limit; the reliability
// score only changes through received orders.
func (s *Store) UpdateSupplier(_ context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.suppliersByID[supplier.ID]
	if !ok {
		return nil, store.NotFound("supplier", supplier.ID)
	}
	if strings.TrimSpace(supplier.Name) == "" {
		return nil, store.Invalid("supplier name is required")
	}
	if supplier.CreditLimitCents < 0 {
		return nil, store.Invalid("credit limit must not be negative")
	}
	current.Name = supplier.Name
	current.Document = supplier.Document
	current.Email = supplier.Email
	current.Phone = supplier.Phone
	current.Address = supplier.Address
	current.BankDetails = supplier.BankDetails
	current.CreditLimitCents = supplier.CreditLimitCents
	s.suppliersByID[current.ID] = current
	return &current, nil
}

func (s *Store) CreatePurchaseOrder(_ context.Context, po domain.PurchaseOrder) (*domain.PurchaseOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.suppliersByID[po.SupplierID]; !ok {
		return nil, store.NotFound("supplier", po.SupplierID)
	}
	for _, item := range po.Items {
		if _, ok := s.productsByID[item.ProductID]; !ok {
			return nil, store.NotFound("product", item.ProductID)
		}
	}
	po, err := procurement.NewOrder(po, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	s.purchaseOrdersByID[po.ID] = po
	out := cloneOrder(po)
	return &out, nil
}

func (s *Store) GetPurchaseOrder(_ context.Context, id string) (*domain.PurchaseOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	po, ok := s.purchaseOrdersByID[id]
	if !ok {
		return nil, store.NotFound("purchase order", id)
	}
	out := cloneOrder(po)
	return &out, nil
}

func (s *Store) ListPurchaseOrders(_ context.Context, supplierID string, status string) ([]domain.PurchaseOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.PurchaseOrder, 0)
	for _, po := range s.purchaseOrdersByID {
		if supplierID != "" && po.SupplierID != supplierID {
			continue
		}
		if status != "" && po.Status != status {
			continue
		}
		out = append(out, cloneOrder(po))
	}
	slices.SortFunc(out, func(a, b domain.PurchaseOrder) int {
		return cmp.Or(b.OrderDate.Compare(a.OrderDate), cmp.Compare(b.ID, a.ID))
	})
	return out, nil
}

func (s *Store) UpdatePurchaseOrderStatus(_ context.Context, id string, status string, at time.Time) (*domain.PurchaseOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	po, sup, err := s.orderAndSupplierLocked(id)
	if err != nil {
		return nil, err
	}
	out, err := procurement.Transition(po, status, sup.ReliabilityScore, at)
	if err != nil {
		return nil, err
	}
	return s.commitOrderLocked(sup, out)
}

func (s *Store) ReceivePurchaseOrderItem(_ context.Context, orderID string, itemID string, receivedQty int, at time.Time) (*domain.PurchaseOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	po, sup, err := s.orderAndSupplierLocked(orderID)
	if err != nil {
		return nil, err
	}
	out, err := procurement.Receive(po, itemID, receivedQty, sup.ReliabilityScore, at)
	if err != nil {
		return nil, err
	}
	return s.commitOrderLocked(sup, out)
}

func (s *Store) orderAndSupplierLocked(id string) (domain.PurchaseOrder, domain.Supplier, error) {
	po, ok := s.purchaseOrdersByID[id]
	if !ok {
		return po, domain.Supplier{}, store.NotFound("purchase order", id)
	}
	sup, ok := s.suppliersByID[po.SupplierID]
	if !ok {
		return po, sup, store.NotFound("supplier", po.SupplierID)
	}
	return po, sup, nil
}

func (s *Store) commitOrderLocked(sup domain.Supplier, out procurement.Outcome) (*domain.PurchaseOrder, error) {
	if err := s.applyMovementsLocked(out.Receipts); err != nil {
		return nil, err
	}
	if out.Event != nil {
		sup.ReliabilityScore = out.Score
		s.suppliersByID[sup.ID] = sup
		s.reliabilityLog = append(s.reliabilityLog, *out.Event)
	}
	s.purchaseOrdersByID[out.Order.ID] = out.Order
	po := cloneOrder(out.Order)
	return &po, nil
}

func (s *Store) ListReliabilityEvents(_ context.Context, supplierID string) ([]domain.ReliabilityEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.ReliabilityEvent, 0)
	for _, event := range s.reliabilityLog {
		if supplierID == "" || event.SupplierID == supplierID {
			out = append(out, event)
		}
	}
	return out, nil
}

func cloneOrder(src domain.PurchaseOrder) domain.PurchaseOrder {
	dst := src
	dst.Items = append([]domain.PurchaseOrderItem(nil), src.Items...)
	return dst
}
