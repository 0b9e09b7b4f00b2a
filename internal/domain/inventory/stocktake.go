package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Count — фактический остаток по позиции после пересчёта.
type Count struct {
	Key     Key
	Counted decimal.Decimal
	Row     int // строка в файле, для сообщений об ошибках
}

type StocktakeResult struct {
	Rows      int             `json:"rows"`
	Unchanged int             `json:"unchanged"`
	Records   []Record        `json:"records"`
	In        decimal.Decimal `json:"in"`
	Out       decimal.Decimal `json:"out"`
}

// Stocktake проводит инвентаризацию: по корректировке на каждую расходящуюся позицию.
// Останавливается на первой ошибке; уже проведённые корректировки остаются в журнале.
func (e *Engine) Stocktake(ctx context.Context, performedBy int64, counts []Count, notes string) (StocktakeResult, error) {
	res := StocktakeResult{In: decimal.Zero, Out: decimal.Zero}
	for _, c := range counts {
		res.Rows++
		at := c.Key.Side()
		rec, err := e.Apply(ctx, Intent{
			MaterialID:  c.Key.MaterialID,
			Type:        TypeAdjustment,
			At:          &at,
			Target:      decimal.NewNullDecimal(c.Counted),
			PerformedBy: performedBy,
			Notes:       notes,
		})
		if errors.Is(err, ErrNothingToAdjust) {
			res.Unchanged++
			continue
		}
		if err != nil {
			if c.Row > 0 {
				return res, fmt.Errorf("row %d: %w", c.Row, err)
			}
			return res, err
		}
		res.Records = append(res.Records, rec)
		if rec.To != nil {
			res.In = res.In.Add(rec.Quantity)
		} else {
			res.Out = res.Out.Add(rec.Quantity)
		}
	}
	e.log.Info("stocktake done", "rows", res.Rows, "adjusted", len(res.Records), "unchanged", res.Unchanged,
		"in", res.In.String(), "out", res.Out.String())
	return res, nil
}
