package httpapi

import (
	"net/http"
	"strings"

	"caixa/backend/internal/domain"
)

func (a *API) handleListSuppliers(w http.ResponseWriter, r *http.Request) {
	suppliers, err := a.service.ListSuppliers(r.Context())
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": suppliers})
}

func (a *API) handleCreateSupplier(w http.ResponseWriter, r *http.Request) {
	var req domain.SupplierCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	supplier, err := a.service.CreateSupplier(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, supplier)
}

func (a *API) handleGetSupplier(w http.ResponseWriter, r *http.Request) {
	supplier, err := a.service.GetSupplier(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, supplier)
}

func (a *API) handleUpdateSupplier(w http.ResponseWriter, r *http.Request) {
	var req domain.SupplierUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	supplier, err := a.service.UpdateSupplier(r.Context(), r.PathValue("id"), req)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, supplier)
}

func (a *API) handleReliabilityEvents(w http.ResponseWriter, r *http.Request) {
	events, err := a.service.ListReliabilityEvents(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": events})
}

func (a *API) handleListPurchaseOrders(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	orders, err := a.service.ListPurchaseOrders(r.Context(), strings.TrimSpace(query.Get("supplier_id")), strings.TrimSpace(query.Get("status")))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": orders})
}

func (a *API) handleCreatePurchaseOrder(w http.ResponseWriter, r *http.Request) {
	var req domain.PurchaseOrderCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	order, err := a.service.CreatePurchaseOrder(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

func (a *API) handleGetPurchaseOrder(w http.ResponseWriter, r *http.Request) {
	order, err := a.service.GetPurchaseOrder(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (a *API) handlePurchaseOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req domain.PurchaseOrderStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	order, err := a.service.UpdatePurchaseOrderStatus(r.Context(), r.PathValue("id"), req)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (a *API) handleReceiveItem(w http.ResponseWriter, r *http.Request) {
	var req domain.PurchaseOrderReceiveItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	order, err := a.service.ReceivePurchaseOrderItem(r.Context(), r.PathValue("id"), r.PathValue("itemId"), req)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (a *API) handleSupplierReport(w http.ResponseWriter, r *http.Request) {
	rows, err := a.service.SupplierReport(r.Context())
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": rows})
}
