package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"

	"github.com/Spok95/scm-ledger/internal/domain/catalog"
	"github.com/Spok95/scm-ledger/internal/domain/inventory"
)

// Ledger — то, что API использует от движка.
type Ledger interface {
	Apply(ctx context.Context, in inventory.Intent) (inventory.Record, error)
	Positions(ctx context.Context, f inventory.PositionFilter) ([]inventory.Position, error)
	History(ctx context.Context, key inventory.Key) ([]inventory.Record, error)
	Records(ctx context.Context, f inventory.RecordFilter) ([]inventory.Record, error)
	Reconcile(ctx context.Context, key inventory.Key) (inventory.Reconciliation, error)
	SetThreshold(ctx context.Context, key inventory.Key, min decimal.NullDecimal, monitor bool) (inventory.Position, error)
	ProjectUsage(ctx context.Context, materialID, projectID int64) (decimal.Decimal, error)
	Stocktake(ctx context.Context, performedBy int64, counts []inventory.Count, notes string) (inventory.StocktakeResult, error)
}

// Describer — названия для выгрузки; без него в файле только id.
type Describer interface {
	DescribePosition(ctx context.Context, key inventory.Key) (catalog.PositionInfo, error)
}

const performerHeader = "X-Performer-ID"

type Handler struct {
	ledger   Ledger
	describe Describer
	log      *slog.Logger
}

func NewHandler(ledger Ledger, describe Describer, log *slog.Logger) http.Handler {
	h := &Handler{ledger: ledger, describe: describe, log: log}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(h.logRequests)
	r.Use(middleware.Recoverer)

	r.Route("/transactions", func(r chi.Router) {
		r.Post("/", h.createTransaction)
		r.Get("/", h.listTransactions)
	})
	r.Route("/positions", func(r chi.Router) {
		r.Get("/", h.listPositions)
		r.Route("/{material}/{warehouse}", func(r chi.Router) {
			r.Get("/history", h.history)
			r.Get("/reconcile", h.reconcile)
			r.Put("/threshold", h.setThreshold)
		})
	})
	r.Get("/projects/{project}/usage", h.projectUsage)
	r.Get("/warehouses/{id}/stock.xlsx", h.exportStock)
	r.Post("/warehouses/{id}/stock.xlsx", h.importStock)
	return r
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.log.Debug("http request",
			"method", r.Method, "path", r.URL.Path, "status", ww.Status(),
			"duration", time.Since(start), "request_id", middleware.GetReqID(r.Context()))
	})
}

/* params */

func parseID(s, name string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid %s %q", errBadRequest, name, s)
	}
	return id, nil
}

func optionalID(q string, name string) (int64, error) {
	if q == "" {
		return 0, nil
	}
	return parseID(q, name)
}

func performer(r *http.Request) (int64, error) {
	v := r.Header.Get(performerHeader)
	if v == "" {
		return 0, fmt.Errorf("%w: %s header is required", errBadRequest, performerHeader)
	}
	return parseID(v, "performer")
}

// positionKey — ключ из пути и ?location=.
func positionKey(r *http.Request) (inventory.Key, error) {
	mat, err := parseID(chi.URLParam(r, "material"), "material")
	if err != nil {
		return inventory.Key{}, err
	}
	wh, err := parseID(chi.URLParam(r, "warehouse"), "warehouse")
	if err != nil {
		return inventory.Key{}, err
	}
	loc, err := optionalID(r.URL.Query().Get("location"), "location")
	if err != nil {
		return inventory.Key{}, err
	}
	return inventory.Key{MaterialID: mat, WarehouseID: wh, LocationID: loc}, nil
}

/* transactions */

func (h *Handler) createTransaction(w http.ResponseWriter, r *http.Request) {
	var in inventory.Intent
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.fail(w, r, fmt.Errorf("%w: body: %v", errBadRequest, err))
		return
	}
	by, err := performer(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	in.PerformedBy = by

	rec, err := h.ledger.Apply(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (h *Handler) listTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var (
		f   inventory.RecordFilter
		err error
	)
	if f.MaterialID, err = optionalID(q.Get("material"), "material"); err != nil {
		h.fail(w, r, err)
		return
	}
	if f.ProjectID, err = optionalID(q.Get("project"), "project"); err != nil {
		h.fail(w, r, err)
		return
	}
	if f.PurchaseOrderItemID, err = optionalID(q.Get("po_item"), "po_item"); err != nil {
		h.fail(w, r, err)
		return
	}
	if t := q.Get("type"); t != "" {
		f.Type = inventory.Type(t)
		if !f.Type.Valid() {
			h.fail(w, r, fmt.Errorf("%w: unknown type %q", errBadRequest, t))
			return
		}
	}
	if g := q.Get("general_use"); g != "" {
		v, err := strconv.ParseBool(g)
		if err != nil {
			h.fail(w, r, fmt.Errorf("%w: general_use %q", errBadRequest, g))
			return
		}
		f.GeneralUse = &v
	}
	for _, p := range []struct {
		name string
		dst  *time.Time
	}{{"since", &f.Since}, {"until", &f.Until}} {
		if s := q.Get(p.name); s != "" {
			t, err := time.Parse(time.RFC3339, s)
			if err != nil {
				h.fail(w, r, fmt.Errorf("%w: %s must be RFC3339", errBadRequest, p.name))
				return
			}
			*p.dst = t
		}
	}
	if l := q.Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 0 {
			h.fail(w, r, fmt.Errorf("%w: limit %q", errBadRequest, l))
			return
		}
		f.Limit = n
	}

	rs, err := h.ledger.Records(r.Context(), f)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if rs == nil {
		rs = []inventory.Record{}
	}
	writeJSON(w, http.StatusOK, rs)
}

/* positions */

func (h *Handler) listPositions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var (
		f   inventory.PositionFilter
		err error
	)
	if f.MaterialID, err = optionalID(q.Get("material"), "material"); err != nil {
		h.fail(w, r, err)
		return
	}
	if f.WarehouseID, err = optionalID(q.Get("warehouse"), "warehouse"); err != nil {
		h.fail(w, r, err)
		return
	}
	if s := q.Get("location"); s != "" {
		loc, err := strconv.ParseInt(s, 10, 64)
		if err != nil || loc < 0 {
			h.fail(w, r, fmt.Errorf("%w: invalid location %q", errBadRequest, s))
			return
		}
		f.LocationID = &loc
	}
	f.LowOnly = q.Get("low") == "1" || q.Get("low") == "true"

	ps, err := h.ledger.Positions(r.Context(), f)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if ps == nil {
		ps = []inventory.Position{}
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	key, err := positionKey(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	rs, err := h.ledger.History(r.Context(), key)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if rs == nil {
		rs = []inventory.Record{}
	}
	writeJSON(w, http.StatusOK, rs)
}

func (h *Handler) reconcile(w http.ResponseWriter, r *http.Request) {
	key, err := positionKey(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.ledger.Reconcile(r.Context(), key)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type thresholdRequest struct {
	MinQuantity decimal.NullDecimal `json:"min_quantity"`
	Monitor     bool                `json:"monitor"`
}

func (h *Handler) setThreshold(w http.ResponseWriter, r *http.Request) {
	key, err := positionKey(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req thresholdRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, r, fmt.Errorf("%w: body: %v", errBadRequest, err))
		return
	}
	p, err := h.ledger.SetThreshold(r.Context(), key, req.MinQuantity, req.Monitor)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) projectUsage(w http.ResponseWriter, r *http.Request) {
	project, err := parseID(chi.URLParam(r, "project"), "project")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	material, err := parseID(r.URL.Query().Get("material"), "material")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	total, err := h.ledger.ProjectUsage(r.Context(), material, project)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"project_id":  project,
		"material_id": material,
		"issued":      total,
	})
}
