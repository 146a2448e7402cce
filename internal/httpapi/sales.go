package httpapi

import (
	"net/http"
	"strings"

	"caixa/backend/internal/domain"
)

func (a *API) handleCreateSale(w http.ResponseWriter, r *http.Request) {
	var req domain.SaleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	resp, err := a.service.ProcessSale(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (a *API) handleListSales(w http.ResponseWriter, r *http.Request) {
	from, to, err := queryRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	query := r.URL.Query()
	sales, err := a.service.ListSales(r.Context(), domain.SaleFilter{
		From:       from,
		To:         to,
		OperatorID: strings.TrimSpace(query.Get("operator_id")),
		CustomerID: strings.TrimSpace(query.Get("customer_id")),
		Limit:      parsePositiveLimit(query.Get("limit"), 50, 500),
	})
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": sales})
}

func (a *API) handleGetSale(w http.ResponseWriter, r *http.Request) {
	sale, err := a.service.GetSale(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sale)
}

func (a *API) handleEarnPointsForSale(w http.ResponseWriter, r *http.Request) {
	result, err := a.service.EarnPointsForSale(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) handleCreateReturn(w http.ResponseWriter, r *http.Request) {
	var req domain.ReturnRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if !a.checkManagerPIN(w, r, "return", req.ManagerPIN) {
		return
	}
	ret, err := a.service.ProcessReturn(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ret)
}

func (a *API) handleListReturns(w http.ResponseWriter, r *http.Request) {
	returns, err := a.service.ListReturns(r.Context(), r.URL.Query().Get("sale_id"))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": returns})
}

func commissionFilter(r *http.Request) (domain.CommissionFilter, error) {
	from, to, err := queryRange(r)
	if err != nil {
		return domain.CommissionFilter{}, err
	}
	query := r.URL.Query()
	return domain.CommissionFilter{
		From:       from,
		To:         to,
		OperatorID: strings.TrimSpace(query.Get("operator_id")),
		Status:     strings.TrimSpace(query.Get("status")),
		Limit:      parsePositiveLimit(query.Get("limit"), 100, 1000),
	}, nil
}

func (a *API) handleListCommissions(w http.ResponseWriter, r *http.Request) {
	filter, err := commissionFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	commissions, err := a.service.ListCommissions(r.Context(), filter)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": commissions})
}

func (a *API) handleCommissionReport(w http.ResponseWriter, r *http.Request) {
	filter, err := commissionFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	// The summary covers every matching commission.
	filter.Limit = 0
	summary, err := a.service.CommissionSummary(r.Context(), filter)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": summary})
}
