package httpapi

import (
	"context"
	"net/http"

	"caixa/backend/internal/domain"
)

func (a *API) handleListCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := a.service.ListCustomers(r.Context())
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": customers})
}

func (a *API) handleCreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req domain.CustomerCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	customer, err := a.service.CreateCustomer(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, customer)
}

func (a *API) handleGetCustomer(w http.ResponseWriter, r *http.Request) {
	customer, err := a.service.GetCustomer(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, customer)
}

func (a *API) handleUpdateCustomer(w http.ResponseWriter, r *http.Request) {
	var req domain.CustomerUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	customer, err := a.service.UpdateCustomer(r.Context(), r.PathValue("id"), req)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, customer)
}

func (a *API) handleCreditStatus(w http.ResponseWriter, r *http.Request) {
	status, err := a.service.CreditStatus(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (a *API) handleCreditSale(w http.ResponseWriter, r *http.Request) {
	a.postCredit(w, r, a.service.RecordCreditSale)
}

func (a *API) handleCreditPayment(w http.ResponseWriter, r *http.Request) {
	a.postCredit(w, r, a.service.RecordCreditPayment)
}

func (a *API) postCredit(w http.ResponseWriter, r *http.Request, post func(context.Context, string, domain.CreditRequest) (*domain.CreditTransaction, error)) {
	var req domain.CreditRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	entry, err := post(r.Context(), r.PathValue("id"), req)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (a *API) handleLoyaltyStatus(w http.ResponseWriter, r *http.Request) {
	status, err := a.service.LoyaltyStatus(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (a *API) handleEarnPoints(w http.ResponseWriter, r *http.Request) {
	a.postPoints(w, r, a.service.EarnPoints)
}

func (a *API) handleRedeemPoints(w http.ResponseWriter, r *http.Request) {
	a.postPoints(w, r, a.service.RedeemPoints)
}

func (a *API) postPoints(w http.ResponseWriter, r *http.Request, post func(context.Context, string, domain.LoyaltyRequest) (*domain.LoyaltyTransaction, error)) {
	var req domain.LoyaltyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	entry, err := post(r.Context(), r.PathValue("id"), req)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (a *API) handleListLoyaltyPrograms(w http.ResponseWriter, r *http.Request) {
	programs, err := a.service.ActiveLoyaltyPrograms(r.Context())
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": programs})
}

func (a *API) handleCreateLoyaltyProgram(w http.ResponseWriter, r *http.Request) {
	var req domain.LoyaltyProgramCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	program, err := a.service.CreateLoyaltyProgram(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, program)
}
