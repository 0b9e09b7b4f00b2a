// Package stocksheet — выгрузка остатков склада в .xlsx и разбор заполненного
// листа инвентаризации.
package stocksheet

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/Spok95/scm-ledger/internal/domain/inventory"
)

var ErrFormat = errors.New("stocksheet: bad format")

var header = []interface{}{
	"warehouse_id",
	"warehouse_name",
	"location_id",
	"category_id",
	"category_name",
	"material_id",
	"material_name",
	"unit",
	"qty", // текущий остаток; при инвентаризации меняют на фактический
}

const (
	colWarehouse = 0
	colWhName    = 1
	colLocation  = 2
	colMaterial  = 5
	colQty       = 8
)

type Row struct {
	LocationID   int64
	CategoryID   int64
	CategoryName string
	MaterialID   int64
	MaterialName string
	Unit         string
	Qty          decimal.Decimal
}

type Sheet struct {
	WarehouseID   int64
	WarehouseName string
	Rows          []Row
}

func Write(w io.Writer, s Sheet) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("stocksheet: header: %w", err)
	}

	for i, r := range s.Rows {
		excelRow := []interface{}{
			s.WarehouseID,
			s.WarehouseName,
			r.LocationID,
			r.CategoryID,
			r.CategoryName,
			r.MaterialID,
			r.MaterialName,
			r.Unit,
			r.Qty.InexactFloat64(),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("stocksheet: cell: %w", err)
		}
		if err := f.SetSheetRow(sheet, cell, &excelRow); err != nil {
			return fmt.Errorf("stocksheet: row %d: %w", i+2, err)
		}
	}
	_ = f.SetColWidth(sheet, "B", "B", 24)
	_ = f.SetColWidth(sheet, "E", "E", 24)
	_ = f.SetColWidth(sheet, "G", "G", 36)

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("stocksheet: write: %w", err)
	}
	return nil
}

// Read разбирает лист инвентаризации. Файл — по одному складу; пустое qty = 0,
// запятая как десятичный разделитель допускается. Строки без id пропускаются.
func Read(r io.Reader) (warehouseID int64, counts []inventory.Count, err error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: not an .xlsx file: %v", ErrFormat, err)
	}
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(f.GetSheetName(f.GetActiveSheetIndex()))
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	if len(rows) < 2 {
		return 0, nil, fmt.Errorf("%w: no data rows", ErrFormat)
	}
	if len(rows[0]) < len(header) {
		return 0, nil, fmt.Errorf("%w: expected %d columns (warehouse_id ... qty), got %d", ErrFormat, len(header), len(rows[0]))
	}

	for i := 1; i < len(rows); i++ {
		row := rows[i]
		line := i + 1
		cell := func(c int) string {
			if c < len(row) {
				return strings.TrimSpace(row[c])
			}
			return ""
		}

		whStr, matStr := cell(colWarehouse), cell(colMaterial)
		if whStr == "" || matStr == "" {
			continue
		}
		wh, err := strconv.ParseInt(whStr, 10, 64)
		if err != nil || wh <= 0 {
			return 0, nil, fmt.Errorf("%w: row %d: bad warehouse_id %q", ErrFormat, line, whStr)
		}
		if warehouseID == 0 {
			warehouseID = wh
		} else if wh != warehouseID {
			return 0, nil, fmt.Errorf("%w: row %d: another warehouse %d in a file for %d", ErrFormat, line, wh, warehouseID)
		}
		mat, err := strconv.ParseInt(matStr, 10, 64)
		if err != nil || mat <= 0 {
			return 0, nil, fmt.Errorf("%w: row %d: bad material_id %q", ErrFormat, line, matStr)
		}
		var loc int64
		if s := cell(colLocation); s != "" {
			loc, err = strconv.ParseInt(s, 10, 64)
			if err != nil || loc < 0 {
				return 0, nil, fmt.Errorf("%w: row %d: bad location_id %q", ErrFormat, line, s)
			}
		}

		qty := decimal.Zero
		if s := cell(colQty); s != "" {
			qty, err = decimal.NewFromString(strings.ReplaceAll(s, ",", "."))
			if err != nil || qty.IsNegative() {
				return 0, nil, fmt.Errorf("%w: row %d: bad qty %q, expected a non-negative number", ErrFormat, line, s)
			}
		}

		counts = append(counts, inventory.Count{
			Key:     inventory.Key{MaterialID: mat, WarehouseID: wh, LocationID: loc},
			Counted: qty.Round(2),
			Row:     line,
		})
	}
	if warehouseID == 0 {
		return 0, nil, fmt.Errorf("%w: warehouse_id not found", ErrFormat)
	}
	return warehouseID, counts, nil
}
