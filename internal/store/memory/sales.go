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

func (s *Store) CreateSale(_ context.Context, sale domain.Sale, commission *domain.Commission) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(sale.Items) == 0 {
		return nil, store.Invalid("sale requires at least one item")
	}
	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}
	if _, exists := s.salesByID[sale.ID]; exists {
		return nil, store.Wrap(store.ErrConflict, "sale %s already exists", sale.ID)
	}
	sale = cloneSale(sale)
	for i := range sale.Items {
		if sale.Items[i].ID == "" {
			sale.Items[i].ID = xid.New("si")
		}
	}
	for i := range sale.Payments {
		if sale.Payments[i].ID == "" {
			sale.Payments[i].ID = xid.New("pay")
		}
	}

	if err := s.applyMovementsLocked(ledger.SaleMovements(sale)); err != nil {
		return nil, err
	}
	s.salesByID[sale.ID] = sale
	if commission != nil {
		c := *commission
		if c.ID == "" {
			c.ID = xid.New("com")
		}
		c.SaleID = sale.ID
		c.CreatedAt = sale.CreatedAt
		s.commissions = append(s.commissions, c)
	}
	out := cloneSale(sale)
	return &out, nil
}

func (s *Store) GetSale(_ context.Context, id string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, ok := s.salesByID[id]
	if !ok {
		return nil, store.NotFound("sale", id)
	}
	out := cloneSale(sale)
	return &out, nil
}

func (s *Store) ListSales(_ context.Context, filter domain.SaleFilter) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sales := make([]domain.Sale, 0)
	for _, sale := range s.salesByID {
		if filter.OperatorID != "" && sale.OperatorID != filter.OperatorID {
			continue
		}
		if filter.CustomerID != "" && sale.CustomerID != filter.CustomerID {
			continue
		}
		if !inRange(sale.CreatedAt, filter.From, filter.To) {
			continue
		}
		sales = append(sales, cloneSale(sale))
	}
	slices.SortFunc(sales, func(a, b domain.Sale) int {
		return cmp.Or(b.CreatedAt.Compare(a.CreatedAt), cmp.Compare(b.ID, a.ID))
	})
	return truncate(sales, filter.Limit), nil
}

func (s *Store) ListCommissions(_ context.Context, filter domain.CommissionFilter) ([]domain.Commission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Commission, 0)
	for i := len(s.commissions) - 1; i >= 0; i-- {
		c := s.commissions[i]
		if filter.OperatorID != "" && c.OperatorID != filter.OperatorID {
			continue
		}
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		if !inRange(c.CreatedAt, filter.From, filter.To) {
			continue
		}
		out = append(out, c)
	}
	return truncate(out, filter.Limit), nil
}

func (s *Store) CreateReturn(_ context.Context, ret domain.Return) (*domain.Return, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sale, ok := s.salesByID[ret.SaleID]
	if !ok {
		return nil, store.NotFound("sale", ret.SaleID)
	}
	ret, movements, err := ledger.PrepareReturn(sale, s.returnedLocked(sale.ID), ret)
	if err != nil {
		return nil, err
	}
	if err := s.applyMovementsLocked(movements); err != nil {
		return nil, err
	}
	s.returns = append(s.returns, ret)
	out := cloneReturn(ret)
	return &out, nil
}

func (s *Store) returnedLocked(saleID string) map[string]int {
	returned := map[string]int{}
	for _, ret := range s.returns {
		if ret.SaleID != saleID {
			continue
		}
		for _, item := range ret.Items {
			returned[item.SaleItemID] += item.Quantity
		}
	}
	return returned
}

func (s *Store) GetReturnedQtyBySale(_ context.Context, saleID string) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.returnedLocked(saleID), nil
}

func (s *Store) ListReturns(_ context.Context, saleID string) ([]domain.Return, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Return, 0)
	for _, ret := range s.returns {
		if saleID == "" || ret.SaleID == saleID {
			out = append(out, cloneReturn(ret))
		}
	}
	return out, nil
}

func (s *Store) OpenCashRegister(_ context.Context, register domain.CashRegister) (*domain.CashRegister, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if register.OperatorID == "" {
		return nil, store.Invalid("operator is required")
	}
	if register.InitialCents < 0 {
		return nil, store.Invalid("initial amount must not be negative")
	}
	if id, open := s.openByOperator[register.OperatorID]; open {
		return nil, store.Wrap(store.ErrAlreadyOpen, "operator %s has register %s", register.OperatorID, id)
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

	s.registersByID[register.ID] = register
	s.openByOperator[register.OperatorID] = register.ID
	out := cloneRegister(register)
	return &out, nil
}

func (s *Store) GetCashRegister(_ context.Context, id string) (*domain.CashRegister, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reg, ok := s.registersByID[id]
	if !ok {
		return nil, store.NotFound("cash register", id)
	}
	out := cloneRegister(reg)
	return &out, nil
}

func (s *Store) GetOpenCashRegister(_ context.Context, operatorID string) (*domain.CashRegister, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.openByOperator[operatorID]
	if !ok {
		return nil, store.NotFound("open cash register for operator", operatorID)
	}
	out := cloneRegister(s.registersByID[id])
	return &out, nil
}

func (s *Store) RecordCashMovement(_ context.Context, movement domain.CashMovement) (*domain.CashRegister, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reg, ok := s.registersByID[movement.RegisterID]
	if !ok {
		return nil, store.NotFound("cash register", movement.RegisterID)
	}
	next, _, err := ledger.ApplyCashMovement(reg, movement)
	if err != nil {
		return nil, err
	}
	s.registersByID[next.ID] = next
	out := cloneRegister(next)
	return &out, nil
}

func (s *Store) CloseCashRegister(_ context.Context, id string, actualCents int64, closedAt time.Time) (*domain.CashCloseResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reg, ok := s.registersByID[id]
	if !ok {
		return nil, store.NotFound("cash register", id)
	}
	sales := make([]domain.Sale, 0)
	for _, sale := range s.salesByID {
		if sale.OperatorID == reg.OperatorID {
			sales = append(sales, sale)
		}
	}
	result, err := ledger.Reconcile(reg, sales, actualCents, closedAt)
	if err != nil {
		return nil, err
	}
	s.registersByID[id] = result.Register
	delete(s.openByOperator, reg.OperatorID)
	result.Register = cloneRegister(result.Register)
	return &result, nil
}

func (s *Store) ListCashRegisters(_ context.Context, filter domain.CashRegisterFilter) ([]domain.CashRegister, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.CashRegister, 0)
	for _, reg := range s.registersByID {
		if filter.OperatorID != "" && reg.OperatorID != filter.OperatorID {
			continue
		}
		if !inRange(reg.OpenedAt, filter.From, filter.To) {
			continue
		}
		out = append(out, cloneRegister(reg))
	}
	slices.SortFunc(out, func(a, b domain.CashRegister) int {
		return cmp.Or(b.OpenedAt.Compare(a.OpenedAt), cmp.Compare(b.ID, a.ID))
	})
	return truncate(out, filter.Limit), nil
}

func cloneSale(src domain.Sale) domain.Sale {
	dst := src
	dst.Items = append([]domain.SaleItem(nil), src.Items...)
	dst.Payments = append([]domain.Payment(nil), src.Payments...)
	return dst
}

func cloneReturn(src domain.Return) domain.Return {
	dst := src
	dst.Items = append([]domain.ReturnItem(nil), src.Items...)
	return dst
}

func cloneRegister(src domain.CashRegister) domain.CashRegister {
	dst := src
	dst.Movements = append([]domain.CashMovement{}, src.Movements...)
	return dst
}
