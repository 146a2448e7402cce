package memory

import (
	"cmp"
	"context"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"caixa/backend/internal/domain"
	"caixa/backend/internal/procurement"
	"caixa/backend/internal/store"
	"caixa/backend/internal/valuation"
	"caixa/backend/internal/xid"
)

// Store keeps every aggregate in maps behind one RWMutex, so each write is
// linearised and either fully applied or not at all.
var _ store.Repository = (*Store)(nil)

type Store struct {
	mu sync.RWMutex

	usersByUsername map[string]domain.UserAccount

	productsByID map[string]domain.Product
	inventoryLog []domain.InventoryTransaction

	salesByID   map[string]domain.Sale
	commissions []domain.Commission
	returns     []domain.Return

	registersByID  map[string]domain.CashRegister
	openByOperator map[string]string

	customersByID   map[string]domain.Customer
	creditLog       []domain.CreditTransaction
	loyaltyLog      []domain.LoyaltyTransaction
	loyaltyPrograms []domain.LoyaltyProgram

	suppliersByID      map[string]domain.Supplier
	purchaseOrdersByID map[string]domain.PurchaseOrder
	reliabilityLog     []domain.ReliabilityEvent

	financialByID map[string]domain.FinancialTransaction
	financialLogs []domain.FinancialLog
	installments  map[string]domain.Installment
	recurringByID map[string]domain.RecurringEntry
}

// New returns an empty store.
func New() *Store {
	return &Store{
		usersByUsername:    make(map[string]domain.UserAccount),
		productsByID:       make(map[string]domain.Product),
		salesByID:          make(map[string]domain.Sale),
		registersByID:      make(map[string]domain.CashRegister),
		openByOperator:     make(map[string]string),
		customersByID:      make(map[string]domain.Customer),
		suppliersByID:      make(map[string]domain.Supplier),
		purchaseOrdersByID: make(map[string]domain.PurchaseOrder),
		financialByID:      make(map[string]domain.FinancialTransaction),
		installments:       make(map[string]domain.Installment),
		recurringByID:      make(map[string]domain.RecurringEntry),
	}
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials are read from SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD;
// when unset, dev defaults are used and a warning is logged.
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	cashierPwd := envOr("SEED_CASHIER_PASSWORD", "cashier123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CASHIER_PASSWORD") == "" {
		log.Warn().Str("component", "memory-store").Msg("using default dev credentials, set SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD to override")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, domain.RoleAdmin},
		{"cashier", cashierPwd, domain.RoleCashier},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatal().Err(err).Str("username", u.username).Msg("failed to hash seed password")
		}
		users[u.username] = domain.UserAccount{
			Username:       u.username,
			Password:       string(hash),
			Role:           u.role,
			Active:         true,
			CommissionType: domain.CommissionNone,
			CreatedAt:      now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// NewSeeded returns a store with demo users, a small catalogue stocked through
// regular entry movements, one customer, one supplier and an active loyalty program.
func NewSeeded() *Store {
	s := New()
	s.usersByUsername = seedUsers()

	now := time.Now().UTC()
	catalogue := []struct {
		product domain.Product
		stock   int
	}{
		{domain.Product{ID: "prod-arroz-5kg", Name: "Arroz Tipo 1 5kg", Barcode: "7891000100103", Category: "mercearia", CostPriceCents: 1890, SalePriceCents: 2690, MinStock: 10}, 40},
		{domain.Product{ID: "prod-feijao-1kg", Name: "Feijao Carioca 1kg", Barcode: "7891000200209", Category: "mercearia", CostPriceCents: 620, SalePriceCents: 899, MinStock: 15}, 60},
		{domain.Product{ID: "prod-cafe-500g", Name: "Cafe Torrado 500g", Barcode: "7891000300305", Category: "mercearia", CostPriceCents: 1350, SalePriceCents: 1990, MinStock: 8}, 25},
		{domain.Product{ID: "prod-leite-1l", Name: "Leite Integral 1L", Barcode: "7891000400401", Category: "laticinios", CostPriceCents: 410, SalePriceCents: 579, MinStock: 24}, 12},
		{domain.Product{ID: "prod-sabao-1kg", Name: "Sabao em Po 1kg", Barcode: "7891000500507", Category: "limpeza", CostPriceCents: 980, SalePriceCents: 1549, MinStock: 6}, 18},
	}
	for _, item := range catalogue {
		p := item.product
		p.Active = true
		p.CreatedAt, p.UpdatedAt = now, now
		next, row, err := valuation.Apply(p, domain.StockMovement{
			ProductID: p.ID, Type: domain.MovementEntry, Quantity: item.stock,
			UnitCostCents: p.CostPriceCents, Reference: "seed", At: now,
		})
		if err != nil {
			log.Fatal().Err(err).Str("product_id", p.ID).Msg("failed to seed product stock")
		}
		s.productsByID[p.ID] = next
		s.inventoryLog = append(s.inventoryLog, row)
	}

	s.customersByID["cust-balcao"] = domain.Customer{
		ID: "cust-balcao", Name: "Cliente Balcao", Phone: "11999990000",
		CreditLimitCents: 50000, CreatedAt: now, UpdatedAt: now,
	}
	s.suppliersByID["sup-distribuidora"] = domain.Supplier{
		ID: "sup-distribuidora", Name: "Distribuidora Central", Email: "pedidos@distribuidora.example",
		ReliabilityScore: procurement.MaxScore, CreditLimitCents: 1000000, CreatedAt: now,
	}
	s.loyaltyPrograms = append(s.loyaltyPrograms, domain.LoyaltyProgram{
		ID: "loyalty-default", Name: "Pontos Caixa", PointsPerCurrency: decimal.NewFromInt(1), Active: true, CreatedAt: now,
	})
	return s
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.Invalid("username and password are required")
	}
	if _, exists := s.usersByUsername[username]; exists {
		return store.Wrap(store.ErrConflict, "user %s already exists", username)
	}
	user.Username = username
	if user.Role == "" {
		user.Role = domain.RoleCashier
	}
	if user.CommissionType == "" {
		user.CommissionType = domain.CommissionNone
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Active = true
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return cmp.Compare(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) GetUser(_ context.Context, username string) (*domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.usersByUsername[strings.ToLower(strings.TrimSpace(username))]
	if !ok {
		return nil, store.NotFound("user", username)
	}
	return &user, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.Invalid("username and password are required")
	}
	user, exists := s.usersByUsername[username]
	if !exists {
		return store.NotFound("user", username)
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

func (s *Store) UpdateUserCommission(_ context.Context, username string, req domain.CommissionUpdateRequest) (*domain.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	user, exists := s.usersByUsername[username]
	if !exists {
		return nil, store.NotFound("user", username)
	}
	user.CommissionType = req.Type
	user.CommissionPercent = req.Percent
	user.CommissionFixedCents = req.FixedCents
	s.usersByUsername[username] = user
	return &user, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(product.Name) == "" {
		return nil, store.Invalid("product name is required")
	}
	if product.ID == "" {
		product.ID = xid.New("prod")
	}
	if _, exists := s.productsByID[product.ID]; exists {
		return nil, store.Wrap(store.ErrConflict, "product %s already exists", product.ID)
	}
	if err := s.checkBarcodeLocked(product.ID, product.Barcode); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	if product.CreatedAt.IsZero() {
		product.CreatedAt = now
	}
	product.UpdatedAt = product.CreatedAt
	product.Stock, product.AverageCostCents, product.InvestedValueCents = 0, 0, 0
	product.LastSaleAt = nil
	s.productsByID[product.ID] = product
	return &product, nil
}

func (s *Store) checkBarcodeLocked(productID string, barcode string) error {
	if barcode == "" {
		return nil
	}
	for _, p := range s.productsByID {
		if p.Barcode == barcode && p.ID != productID {
			return store.Wrap(store.ErrConflict, "barcode %s already used by product %s", barcode, p.ID)
		}
	}
	return nil
}

func (s *Store) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.productsByID[id]
	if !ok {
		return nil, store.NotFound("product", id)
	}
	return &p, nil
}

func (s *Store) GetProductByBarcode(_ context.Context, barcode string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.productsByID {
		if barcode != "" && p.Barcode == barcode {
			return &p, nil
		}
	}
	return nil, store.NotFound("product with barcode", barcode)
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.productsByID))
	for _, p := range s.productsByID {
		products = append(products, p)
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	})
	return products, nil
}

// UpdateProduct replaces catalogue fields only; stock and valuation stay untouched.
func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.productsByID[product.ID]
	if !ok {
		return nil, store.NotFound("product", product.ID)
	}
	if strings.TrimSpace(product.Name) == "" {
		return nil, store.Invalid("product name is required")
	}
	if err := s.checkBarcodeLocked(product.ID, product.Barcode); err != nil {
		return nil, err
	}
	current.Name = product.Name
	current.Barcode = product.Barcode
	current.Category = product.Category
	current.CostPriceCents = product.CostPriceCents
	current.SalePriceCents = product.SalePriceCents
	current.MinStock = product.MinStock
	current.ExpiresAt = product.ExpiresAt
	current.Active = product.Active
	current.UpdatedAt = time.Now().UTC()
	s.productsByID[current.ID] = current
	return &current, nil
}

func (s *Store) ApplyStockMovement(_ context.Context, movement domain.StockMovement) (*domain.StockMovementResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.productsByID[movement.ProductID]
	if !ok {
		return nil, store.NotFound("product", movement.ProductID)
	}
	next, row, err := valuation.Apply(p, movement)
	if err != nil {
		return nil, err
	}
	s.productsByID[next.ID] = next
	s.inventoryLog = append(s.inventoryLog, row)
	return &domain.StockMovementResult{Product: next, Transaction: row}, nil
}

// applyMovementsLocked runs every movement against a staged copy of the
// touched products. Nothing is written unless all of them succeed.
func (s *Store) applyMovementsLocked(movements []domain.StockMovement) error {
	staged := map[string]domain.Product{}
	rows := make([]domain.InventoryTransaction, 0, len(movements))
	for _, m := range movements {
		p, ok := staged[m.ProductID]
		if !ok {
			if p, ok = s.productsByID[m.ProductID]; !ok {
				return store.NotFound("product", m.ProductID)
			}
		}
		next, row, err := valuation.Apply(p, m)
		if err != nil {
			return err
		}
		staged[next.ID] = next
		rows = append(rows, row)
	}
	for id, p := range staged {
		s.productsByID[id] = p
	}
	s.inventoryLog = append(s.inventoryLog, rows...)
	return nil
}

func (s *Store) ListInventoryTransactions(_ context.Context, filter domain.InventoryFilter) ([]domain.InventoryTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.InventoryTransaction, 0)
	for i := len(s.inventoryLog) - 1; i >= 0; i-- {
		row := s.inventoryLog[i]
		if filter.ProductID != "" && row.ProductID != filter.ProductID {
			continue
		}
		if filter.Type != "" && row.Type != filter.Type {
			continue
		}
		if !inRange(row.CreatedAt, filter.From, filter.To) {
			continue
		}
		out = append(out, row)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

func inRange(t time.Time, from *time.Time, to *time.Time) bool {
	if from != nil && t.Before(*from) {
		return false
	}
	if to != nil && t.After(*to) {
		return false
	}
	return true
}

func truncate[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
