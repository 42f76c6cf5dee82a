package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"durgatraders/m/internal/auth"
	"durgatraders/m/internal/billing"
)

func (h *Handler) createBill(w http.ResponseWriter, r *http.Request) {
	var req billing.OrderRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	receipt, err := h.orders.PlaceOrder(r.Context(), req)
	if err != nil {
		h.respondOrderError(w, r, err)
		return
	}

	if session, ok := r.Context().Value(ctxSession).(auth.Session); ok {
		h.log.Debug("bill placed", zap.String("bill_number", receipt.BillNumber), zap.String("user", session.Username))
	}
	respondJSON(w, http.StatusCreated, map[string]any{
		"message":      "Bill created successfully",
		"bill_id":      receipt.BillID,
		"bill_number":  receipt.BillNumber,
		"total_amount": receipt.TotalAmount,
		"final_amount": receipt.FinalAmount,
	})
}

// respondOrderError maps the order error taxonomy onto HTTP statuses.
func (h *Handler) respondOrderError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validation *billing.ValidationError
		notFound   *billing.NotFoundError
		stock      *billing.InsufficientStockError
		partial    *billing.PartialCommitError
	)
	switch {
	case errors.As(err, &validation):
		respondError(w, http.StatusBadRequest, validation.Error())
	case errors.As(err, &notFound):
		respondError(w, http.StatusNotFound, notFound.Error())
	case errors.As(err, &stock):
		respondJSON(w, http.StatusConflict, map[string]any{
			"error":     stock.Error(),
			"tile_id":   stock.TileID,
			"tile_name": stock.TileName,
			"available": stock.Available,
			"requested": stock.Requested,
		})
	case errors.As(err, &partial):
		h.log.Error("bill needs inventory reconciliation",
			zap.Int64("bill_id", partial.BillID), zap.String("bill_number", partial.BillNumber), zap.Error(partial.Err))
		respondJSON(w, http.StatusInternalServerError, map[string]any{
			"error":       "Bill created but failed to update inventory",
			"bill_id":     partial.BillID,
			"bill_number": partial.BillNumber,
		})
	default:
		h.log.Error("create bill", zap.String("request_id", requestID(r)), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to create bill")
	}
}

func (h *Handler) listBills(w http.ResponseWriter, r *http.Request) {
	bills, err := h.bills.List(r.Context())
	if err != nil {
		h.log.Error("list bills", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to fetch bills")
		return
	}
	respondJSON(w, http.StatusOK, bills)
}

func (h *Handler) getBill(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid bill id")
		return
	}
	bill, err := h.bills.Get(r.Context(), id)
	if errors.Is(err, billing.ErrBillNotFound) {
		respondError(w, http.StatusNotFound, "Bill not found")
		return
	}
	if err != nil {
		h.log.Error("get bill", zap.Int64("bill_id", id), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to fetch bill")
		return
	}
	respondJSON(w, http.StatusOK, bill)
}

// salesReport summarizes bills between start_date and end_date, both inclusive (YYYY-MM-DD).
func (h *Handler) salesReport(w http.ResponseWriter, r *http.Request) {
	var from, to time.Time
	if raw := strings.TrimSpace(r.URL.Query().Get("start_date")); raw != "" {
		d, err := time.Parse("2006-01-02", raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "start_date must be in YYYY-MM-DD format")
			return
		}
		from = d
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("end_date")); raw != "" {
		d, err := time.Parse("2006-01-02", raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "end_date must be in YYYY-MM-DD format")
			return
		}
		to = d.AddDate(0, 0, 1)
	}
	if !from.IsZero() && !to.IsZero() && !from.Before(to) {
		respondError(w, http.StatusBadRequest, "start_date must not be after end_date")
		return
	}

	summary, err := h.bills.Summary(r.Context(), from, to)
	if err != nil {
		h.log.Error("sales report", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "unable to fetch sales report")
		return
	}
	respondJSON(w, http.StatusOK, summary)
}
