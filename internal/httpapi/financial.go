package httpapi

import (
	"context"
	"net/http"
	"strings"

	"caixa/backend/internal/domain"
)

func (a *API) handleListFinancial(w http.ResponseWriter, r *http.Request) {
	from, to, err := queryRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	query := r.URL.Query()
	txs, err := a.service.ListFinancialTransactions(r.Context(), domain.FinancialFilter{
		Type:          strings.TrimSpace(query.Get("type")),
		Status:        strings.TrimSpace(query.Get("status")),
		From:          from,
		To:            to,
		InstallmentID: strings.TrimSpace(query.Get("installment_id")),
		RecurringID:   strings.TrimSpace(query.Get("recurring_id")),
		Limit:         parsePositiveLimit(query.Get("limit"), 100, 1000),
	})
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": txs})
}

func (a *API) handleCreateFinancial(w http.ResponseWriter, r *http.Request) {
	var req domain.FinancialCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	tx, err := a.service.CreateFinancialTransaction(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

func (a *API) handleGetFinancial(w http.ResponseWriter, r *http.Request) {
	tx, err := a.service.GetFinancialTransaction(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (a *API) handleUpdateFinancial(w http.ResponseWriter, r *http.Request) {
	var req domain.FinancialUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	tx, err := a.service.UpdateFinancialTransaction(r.Context(), r.PathValue("id"), req)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (a *API) handlePayFinancial(w http.ResponseWriter, r *http.Request) {
	a.transitionFinancial(w, r, a.service.PayFinancialTransaction)
}

func (a *API) handleCancelFinancial(w http.ResponseWriter, r *http.Request) {
	a.transitionFinancial(w, r, a.service.CancelFinancialTransaction)
}

func (a *API) transitionFinancial(w http.ResponseWriter, r *http.Request, apply func(context.Context, string) (*domain.FinancialTransaction, error)) {
	tx, err := apply(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (a *API) handleFinancialLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := a.service.ListFinancialLogs(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": logs})
}

func (a *API) handleListInstallments(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	plans, err := a.service.ListInstallments(r.Context(), domain.InstallmentFilter{
		CustomerID: strings.TrimSpace(query.Get("customer_id")),
		SupplierID: strings.TrimSpace(query.Get("supplier_id")),
		Status:     strings.TrimSpace(query.Get("status")),
	})
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": plans})
}

func (a *API) handleCreateInstallment(w http.ResponseWriter, r *http.Request) {
	var req domain.InstallmentCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	plan, err := a.service.CreateInstallmentPlan(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, plan)
}

func (a *API) handleGetInstallment(w http.ResponseWriter, r *http.Request) {
	detail, err := a.service.GetInstallment(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (a *API) handleDeactivateInstallment(w http.ResponseWriter, r *http.Request) {
	plan, err := a.service.DeactivateInstallment(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (a *API) handleListRecurring(w http.ResponseWriter, r *http.Request) {
	activeOnly := strings.TrimSpace(r.URL.Query().Get("active")) != "false"
	entries, err := a.service.ListRecurringEntries(r.Context(), activeOnly)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": entries})
}

func (a *API) handleCreateRecurring(w http.ResponseWriter, r *http.Request) {
	var req domain.RecurringCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	entry, err := a.service.CreateRecurringEntry(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (a *API) handleDeactivateRecurring(w http.ResponseWriter, r *http.Request) {
	entry, err := a.service.DeactivateRecurringEntry(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (a *API) handleProcessRecurring(w http.ResponseWriter, r *http.Request) {
	result, err := a.service.ProcessRecurring(r.Context())
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) handleFinancialAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := a.service.FinancialAlerts(r.Context())
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, alerts)
}

func (a *API) handleCashFlowForecast(w http.ResponseWriter, r *http.Request) {
	months, err := queryInt(r, "months", 3)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	forecast, err := a.service.CashFlowForecast(r.Context(), months)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, forecast)
}
