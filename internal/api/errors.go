package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/Spok95/scm-ledger/internal/domain/inventory"
	"github.com/Spok95/scm-ledger/internal/stocksheet"
)

var errBadRequest = errors.New("bad request")

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
	// Stocktake — что инвентаризация успела провести до ошибки.
	Stocktake *inventory.StocktakeResult `json:"stocktake,omitempty"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, resp errorResponse) {
	resp.RequestID = middleware.GetReqID(r.Context())
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// fail переводит ошибку домена в HTTP-ответ.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	h.failWith(w, r, err, errorResponse{})
}

// failWith дополняет ответ об ошибке телом resp (например, частичным результатом).
func (h *Handler) failWith(w http.ResponseWriter, r *http.Request, err error, resp errorResponse) {
	resp.Error = err.Error()
	var status int
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, inventory.ErrInvalidTransaction),
		errors.Is(err, stocksheet.ErrFormat):
		status, resp.Code = http.StatusBadRequest, "INVALID"
	case errors.Is(err, inventory.ErrInsufficientStock):
		status, resp.Code = http.StatusConflict, "INSUFFICIENT_STOCK"
	case errors.Is(err, inventory.ErrBusy):
		w.Header().Set("Retry-After", "1")
		status, resp.Code = http.StatusServiceUnavailable, "BUSY"
	case errors.Is(err, inventory.ErrPositionNotFound):
		status, resp.Code = http.StatusNotFound, "NOT_FOUND"
	default:
		h.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		status, resp.Code, resp.Error = http.StatusInternalServerError, "INTERNAL_ERROR", "internal error"
	}
	writeError(w, r, status, resp)
}
