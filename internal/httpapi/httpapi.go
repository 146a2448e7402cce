package httpapi

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"caixa/backend/internal/domain"
	"caixa/backend/internal/logging"
	"caixa/backend/internal/service"
	"caixa/backend/internal/store"
)

type API struct {
	service       *service.Service
	auth          *AuthManager
	allowedOrigin string
	loginLimiter  *attemptLimiter
	pinLimiter    *attemptLimiter
	csrfSecret    []byte
	logger        zerolog.Logger
}

func New(svc *service.Service, auth *AuthManager, allowedOrigin string, logger zerolog.Logger) *API {
	csrfSecret := make([]byte, 32)
	if _, err := rand.Read(csrfSecret); err != nil {
		csrfSecret = []byte("csrf-fallback-secret-change-me!!")
	}
	return &API{
		service:       svc,
		auth:          auth,
		allowedOrigin: allowedOrigin,
		loginLimiter:  newAttemptLimiter(5, time.Minute),
		pinLimiter:    newAttemptLimiter(8, time.Minute),
		csrfSecret:    csrfSecret,
		logger:        logger,
	}
}

// csrfTokenForHour computes an HMAC-SHA256 token for the given hour bucket
// (Unix time truncated to the hour).
func (a *API) csrfTokenForHour(hourBucket int64) string {
	h := hmac.New(sha256.New, a.csrfSecret)
	fmt.Fprintf(h, "%d", hourBucket)
	return hex.EncodeToString(h.Sum(nil))
}

func (a *API) generateCSRFToken() string {
	return a.csrfTokenForHour(time.Now().UTC().Truncate(time.Hour).Unix())
}

// validateCSRFToken accepts the current and the previous hour bucket.
func (a *API) validateCSRFToken(token string) bool {
	if token == "" {
		return false
	}
	current := time.Now().UTC().Truncate(time.Hour).Unix()
	return hmac.Equal([]byte(token), []byte(a.csrfTokenForHour(current))) ||
		hmac.Equal([]byte(token), []byte(a.csrfTokenForHour(current-3600)))
}

type attemptLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	entries map[string][]time.Time
}

func newAttemptLimiter(max int, window time.Duration) *attemptLimiter {
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &attemptLimiter{max: max, window: window, entries: make(map[string][]time.Time)}
}

func (l *attemptLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := time.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	history := l.entries[key]
	kept := make([]time.Time, 0, len(history)+1)
	for _, ts := range history {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.entries[key] = kept
		return false
	}
	l.entries[key] = append(kept, now)
	return true
}

func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddrPort(host); err == nil {
		return addr.Addr().String()
	}
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()
	anyone := []string{domain.RoleCashier, domain.RoleAdmin}
	admin := []string{domain.RoleAdmin}
	handle := func(pattern string, h http.HandlerFunc, roles []string) {
		mux.HandleFunc(pattern, a.requireAuth(h, roles...))
	}

	mux.HandleFunc("GET /healthz", a.handleHealth)
	mux.HandleFunc("POST /api/v1/auth/login", a.handleLogin)
	mux.HandleFunc("GET /api/v1/auth/csrf-token", a.handleCSRFToken)

	handle("POST /api/v1/sales", a.handleCreateSale, anyone)
	handle("GET /api/v1/sales", a.handleListSales, anyone)
	handle("GET /api/v1/sales/{id}", a.handleGetSale, anyone)
	handle("POST /api/v1/sales/{id}/earn-points", a.handleEarnPointsForSale, anyone)
	handle("POST /api/v1/returns", a.handleCreateReturn, anyone)
	handle("GET /api/v1/returns", a.handleListReturns, anyone)
	handle("GET /api/v1/commissions", a.handleListCommissions, admin)
	handle("GET /api/v1/reports/commissions", a.handleCommissionReport, admin)

	handle("GET /api/v1/products", a.handleListProducts, anyone)
	handle("POST /api/v1/products", a.handleCreateProduct, admin)
	handle("GET /api/v1/products/low-stock", a.handleLowStock, anyone)
	handle("GET /api/v1/products/stagnant", a.handleStagnant, anyone)
	handle("GET /api/v1/products/expiring", a.handleExpiring, anyone)
	handle("GET /api/v1/products/barcode/{barcode}", a.handleProductByBarcode, anyone)
	handle("GET /api/v1/products/{id}", a.handleGetProduct, anyone)
	handle("PATCH /api/v1/products/{id}", a.handleUpdateProduct, admin)
	handle("POST /api/v1/inventory/{type}", a.handleStockMovement, anyone)
	handle("GET /api/v1/inventory/movements", a.handleListMovements, anyone)

	handle("POST /api/v1/cash-register/open", a.handleOpenRegister, anyone)
	handle("POST /api/v1/cash-register/withdrawal", a.handleWithdraw, anyone)
	handle("POST /api/v1/cash-register/deposit", a.handleDeposit, anyone)
	handle("POST /api/v1/cash-register/close", a.handleCloseRegister, anyone)
	handle("GET /api/v1/cash-register/current", a.handleCurrentRegister, anyone)
	handle("GET /api/v1/cash-register/history", a.handleRegisterHistory, anyone)
	handle("GET /api/v1/reports/cash-movements", a.handleCashMovementReport, admin)

	handle("GET /api/v1/customers", a.handleListCustomers, anyone)
	handle("POST /api/v1/customers", a.handleCreateCustomer, anyone)
	handle("GET /api/v1/customers/{id}", a.handleGetCustomer, anyone)
	handle("PATCH /api/v1/customers/{id}", a.handleUpdateCustomer, anyone)
	handle("GET /api/v1/customers/{id}/credit", a.handleCreditStatus, anyone)
	handle("POST /api/v1/customers/{id}/credit/sale", a.handleCreditSale, anyone)
	handle("POST /api/v1/customers/{id}/credit/payment", a.handleCreditPayment, anyone)
	handle("GET /api/v1/customers/{id}/loyalty", a.handleLoyaltyStatus, anyone)
	handle("POST /api/v1/customers/{id}/loyalty/earn", a.handleEarnPoints, anyone)
	handle("POST /api/v1/customers/{id}/loyalty/redeem", a.handleRedeemPoints, anyone)
	handle("GET /api/v1/loyalty-programs", a.handleListLoyaltyPrograms, anyone)
	handle("POST /api/v1/loyalty-programs", a.handleCreateLoyaltyProgram, admin)

	handle("GET /api/v1/suppliers", a.handleListSuppliers, admin)
	handle("POST /api/v1/suppliers", a.handleCreateSupplier, admin)
	handle("GET /api/v1/suppliers/{id}", a.handleGetSupplier, admin)
	handle("PATCH /api/v1/suppliers/{id}", a.handleUpdateSupplier, admin)
	handle("GET /api/v1/suppliers/{id}/reliability", a.handleReliabilityEvents, admin)
	handle("GET /api/v1/purchase-orders", a.handleListPurchaseOrders, admin)
	handle("POST /api/v1/purchase-orders", a.handleCreatePurchaseOrder, admin)
	handle("GET /api/v1/purchase-orders/{id}", a.handleGetPurchaseOrder, admin)
	handle("POST /api/v1/purchase-orders/{id}/status", a.handlePurchaseOrderStatus, admin)
	handle("POST /api/v1/purchase-orders/{id}/items/{itemId}/receive", a.handleReceiveItem, admin)
	handle("GET /api/v1/reports/suppliers", a.handleSupplierReport, admin)

	handle("GET /api/v1/financial-transactions", a.handleListFinancial, admin)
	handle("POST /api/v1/financial-transactions", a.handleCreateFinancial, admin)
	handle("GET /api/v1/financial-transactions/{id}", a.handleGetFinancial, admin)
	handle("PATCH /api/v1/financial-transactions/{id}", a.handleUpdateFinancial, admin)
	handle("POST /api/v1/financial-transactions/{id}/pay", a.handlePayFinancial, admin)
	handle("POST /api/v1/financial-transactions/{id}/cancel", a.handleCancelFinancial, admin)
	handle("GET /api/v1/financial-transactions/{id}/logs", a.handleFinancialLogs, admin)
	handle("GET /api/v1/installments", a.handleListInstallments, admin)
	handle("POST /api/v1/installments", a.handleCreateInstallment, admin)
	handle("GET /api/v1/installments/{id}", a.handleGetInstallment, admin)
	handle("DELETE /api/v1/installments/{id}", a.handleDeactivateInstallment, admin)
	handle("GET /api/v1/recurring-entries", a.handleListRecurring, admin)
	handle("POST /api/v1/recurring-entries", a.handleCreateRecurring, admin)
	handle("DELETE /api/v1/recurring-entries/{id}", a.handleDeactivateRecurring, admin)
	handle("POST /api/v1/recurring-entries/process", a.handleProcessRecurring, admin)
	handle("GET /api/v1/alerts/financial", a.handleFinancialAlerts, admin)
	handle("GET /api/v1/reports/cash-flow-forecast", a.handleCashFlowForecast, admin)

	handle("GET /api/v1/users/cashiers", a.handleListCashiers, admin)
	handle("POST /api/v1/users/cashiers", a.handleCreateCashier, admin)
	handle("PATCH /api/v1/users/{username}/commission", a.handleUpdateCommission, admin)

	return logging.Requests(a.logger, a.withMiddleware(mux))
}

func (a *API) requireAuth(next http.HandlerFunc, roles ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}

		actor, err := a.auth.ParseToken(strings.TrimSpace(authorization[len("Bearer "):]))
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}
		if len(roles) > 0 && !isRoleAllowed(actor.Role, roles) {
			writeError(w, http.StatusForbidden, errors.New("forbidden role"))
			return
		}

		next(w, r.WithContext(service.WithActor(r.Context(), actor)))
	}
}

func isRoleAllowed(role string, allowed []string) bool {
	for _, allow := range allowed {
		if role == allow {
			return true
		}
	}
	return false
}

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !a.loginLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many login attempts"))
		return
	}

	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.auth.Login(r.Context(), req)
	if err != nil {
		status := http.StatusUnauthorized
		if !errors.Is(err, ErrInvalidCredentials) && !errors.Is(err, ErrInactiveAccount) {
			status = http.StatusInternalServerError
		}
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleCSRFToken returns a stateless token for the X-CSRF-Token header of
// every mutating request.
func (a *API) handleCSRFToken(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"csrf_token": a.generateCSRFToken(),
	})
}

// Login is called before a client can hold a CSRF token.
var csrfExemptPaths = []string{
	"/api/v1/auth/login",
}

func mutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// checkCSRF writes a 403 and returns false when a mutating request carries
// no valid token.
func (a *API) checkCSRF(w http.ResponseWriter, r *http.Request) bool {
	if !mutating(r.Method) {
		return true
	}
	for _, exempt := range csrfExemptPaths {
		if r.URL.Path == exempt {
			return true
		}
	}
	if !a.validateCSRFToken(strings.TrimSpace(r.Header.Get("X-CSRF-Token"))) {
		writeError(w, http.StatusForbidden, errors.New("missing or invalid CSRF token"))
		return false
	}
	return true
}

// checkManagerPIN enforces the per-client PIN attempt limit before comparing.
func (a *API) checkManagerPIN(w http.ResponseWriter, r *http.Request, scope string, pin string) bool {
	if !a.pinLimiter.Allow("pin:" + scope + ":" + clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many manager pin attempts"))
		return false
	}
	if !a.auth.ValidateManagerPIN(pin) {
		writeError(w, http.StatusForbidden, errors.New("invalid manager pin"))
		return false
	}
	return true
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-CSRF-Token")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PATCH,DELETE,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if mutating(r.Method) && r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if !a.checkCSRF(w, r) {
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusFor maps service and store errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, store.ErrInvalidTransaction):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrInsufficientStock),
		errors.Is(err, store.ErrInsufficientFunds),
		errors.Is(err, store.ErrInsufficientPoints),
		errors.Is(err, store.ErrCreditLimitExceeded),
		errors.Is(err, store.ErrPaymentInsufficient),
		errors.Is(err, store.ErrAlreadyOpen),
		errors.Is(err, store.ErrNotOpen),
		errors.Is(err, store.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, store.ErrRetryable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (a *API) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= 500 {
		a.logger.Error().Err(err).Str("path", r.URL.Path).Int("status_code", status).Msg("request failed")
	}
	writeError(w, status, err)
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	if trimmed := strings.TrimSpace(raw); trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

// queryInt reads a non-negative integer parameter; empty means fallback.
func queryInt(r *http.Request, key string, fallback int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, store.Invalid("%s must be a non-negative integer", key)
	}
	return n, nil
}

var queryDateLayouts = []string{time.RFC3339, "2006-01-02"}

func queryTime(r *http.Request, key string) (*time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil, nil
	}
	for _, layout := range queryDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, store.Invalid("%s must be a date (YYYY-MM-DD) or RFC 3339 timestamp", key)
}

func queryRange(r *http.Request) (*time.Time, *time.Time, error) {
	from, err := queryTime(r, "from")
	if err != nil {
		return nil, nil, err
	}
	to, err := queryTime(r, "to")
	if err != nil {
		return nil, nil, err
	}
	return from, to, nil
}

func writeError(w http.ResponseWriter, status int, err error) {
	// 5xx details stay in the log.
	msg := err.Error()
	if status >= 500 {
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
