package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Spok95/scm-ledger/internal/domain/inventory"
	"github.com/Spok95/scm-ledger/internal/stocksheet"
)

const xlsxType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const maxSheetSize = 10 << 20

func (h *Handler) exportStock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	whID, err := parseID(chi.URLParam(r, "id"), "warehouse")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ps, err := h.ledger.Positions(ctx, inventory.PositionFilter{WarehouseID: whID})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	sheet := stocksheet.Sheet{WarehouseID: whID}
	for _, p := range ps {
		row := stocksheet.Row{LocationID: p.LocationID, MaterialID: p.MaterialID, Qty: p.Quantity}
		if h.describe != nil {
			info, err := h.describe.DescribePosition(ctx, p.Key)
			if err != nil {
				h.log.Warn("describe position failed", "key", p.Key.String(), "err", err)
			} else {
				sheet.WarehouseName = info.WarehouseName
				row.CategoryID = info.CategoryID
				row.CategoryName = info.CategoryName
				row.MaterialName = info.MaterialName
				row.Unit = string(info.Unit)
			}
		}
		sheet.Rows = append(sheet.Rows, row)
	}

	w.Header().Set("Content-Type", xlsxType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="stock_warehouse_%d.xlsx"`, whID))
	if err := stocksheet.Write(w, sheet); err != nil {
		h.log.Error("stock export failed", "warehouse_id", whID, "err", err)
	}
}

// importStock — инвентаризация по заполненному файлу выгрузки.
func (h *Handler) importStock(w http.ResponseWriter, r *http.Request) {
	whID, err := parseID(chi.URLParam(r, "id"), "warehouse")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	by, err := performer(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	fileWh, counts, err := stocksheet.Read(http.MaxBytesReader(w, r.Body, maxSheetSize))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if fileWh != whID {
		h.fail(w, r, fmt.Errorf("%w: file is for warehouse %d, not %d", errBadRequest, fileWh, whID))
		return
	}

	res, err := h.ledger.Stocktake(r.Context(), by, counts, "stocktake_excel")
	if err != nil {
		// Проведённые строки остаются в журнале: клиент должен их видеть.
		h.log.Warn("stocktake stopped", "warehouse_id", whID, "performed_by", by,
			"adjusted", len(res.Records), "rows", res.Rows, "err", err)
		h.failWith(w, r, err, errorResponse{Stocktake: &res})
		return
	}
	h.log.Info("stocktake imported", "warehouse_id", whID, "performed_by", by, "adjusted", len(res.Records))
	writeJSON(w, http.StatusOK, res)
}
