package httpapi

import (
	"net/http"
	"strings"

	"caixa/backend/internal/domain"
)

func (a *API) handleOpenRegister(w http.ResponseWriter, r *http.Request) {
	var req domain.CashOpenRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	reg, err := a.service.OpenCashRegister(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, reg)
}

func (a *API) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	a.moveCash(w, r, domain.CashWithdrawal)
}

func (a *API) handleDeposit(w http.ResponseWriter, r *http.Request) {
	a.moveCash(w, r, domain.CashDeposit)
}

func (a *API) moveCash(w http.ResponseWriter, r *http.Request, movementType string) {
	var req domain.CashMovementRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	move := a.service.Deposit
	if movementType == domain.CashWithdrawal {
		move = a.service.Withdraw
	}
	reg, err := move(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reg)
}

func (a *API) handleCloseRegister(w http.ResponseWriter, r *http.Request) {
	var req domain.CashCloseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	result, err := a.service.CloseCashRegister(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) handleCurrentRegister(w http.ResponseWriter, r *http.Request) {
	reg, err := a.service.CurrentCashRegister(r.Context(), r.URL.Query().Get("operator_id"))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reg)
}

func registerFilter(r *http.Request) (domain.CashRegisterFilter, error) {
	from, to, err := queryRange(r)
	if err != nil {
		return domain.CashRegisterFilter{}, err
	}
	query := r.URL.Query()
	return domain.CashRegisterFilter{
		OperatorID: strings.TrimSpace(query.Get("operator_id")),
		From:       from,
		To:         to,
		Limit:      parsePositiveLimit(query.Get("limit"), 50, 500),
	}, nil
}

func (a *API) handleRegisterHistory(w http.ResponseWriter, r *http.Request) {
	filter, err := registerFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	registers, err := a.service.CashRegisterHistory(r.Context(), filter)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": registers})
}

func (a *API) handleCashMovementReport(w http.ResponseWriter, r *http.Request) {
	filter, err := registerFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	filter.Limit = 0
	summary, err := a.service.CashMovementReport(r.Context(), filter)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": summary})
}
