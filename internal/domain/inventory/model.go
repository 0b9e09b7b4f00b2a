package inventory

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Type string

const (
	TypeReceipt    Type = "receipt"
	TypeIssue      Type = "issue"
	TypeTransfer   Type = "transfer"
	TypeAdjustment Type = "adjustment"
)

func (t Type) Valid() bool {
	switch t {
	case TypeReceipt, TypeIssue, TypeTransfer, TypeAdjustment:
		return true
	}
	return false
}

// Side — склад и (опционально) ячейка. LocationID == 0 значит «без ячейки».
type Side struct {
	WarehouseID int64 `json:"warehouse_id"`
	LocationID  int64 `json:"location_id,omitempty"`
}

// Key — ключ позиции: материал + склад + ячейка.
type Key struct {
	MaterialID  int64 `json:"material_id"`
	WarehouseID int64 `json:"warehouse_id"`
	LocationID  int64 `json:"location_id"`
}

func KeyOf(materialID int64, s Side) Key {
	return Key{MaterialID: materialID, WarehouseID: s.WarehouseID, LocationID: s.LocationID}
}

func (k Key) Side() Side { return Side{WarehouseID: k.WarehouseID, LocationID: k.LocationID} }

// Less задаёт глобальный порядок захвата блокировок.
func (k Key) Less(o Key) bool {
	if k.MaterialID != o.MaterialID {
		return k.MaterialID < o.MaterialID
	}
	if k.WarehouseID != o.WarehouseID {
		return k.WarehouseID < o.WarehouseID
	}
	return k.LocationID < o.LocationID
}

func (k Key) String() string {
	return fmt.Sprintf("material=%d warehouse=%d location=%d", k.MaterialID, k.WarehouseID, k.LocationID)
}

// Position — остаток материала на складе/в ячейке.
type Position struct {
	Key
	Quantity          decimal.Decimal     `json:"quantity"`
	MinQuantity       decimal.NullDecimal `json:"min_quantity"`
	MonitorStockLevel bool                `json:"monitor_stock_level"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
}

// Monitored — порог задан и мониторинг включён.
func (p Position) Monitored() bool {
	return p.MonitorStockLevel && p.MinQuantity.Valid
}

func (p Position) Low() bool {
	return p.Monitored() && p.Quantity.LessThan(p.MinQuantity.Decimal)
}

// Intent — заявка на движение от закупок, выдачи или ручной корректировки.
type Intent struct {
	MaterialID          int64               `json:"material_id"`
	Type                Type                `json:"type"`
	Quantity            decimal.Decimal     `json:"quantity"`
	From                *Side               `json:"from,omitempty"`
	To                  *Side               `json:"to,omitempty"`
	At                  *Side               `json:"at,omitempty"` // только для adjustment
	Target              decimal.NullDecimal `json:"target"`       // только для adjustment: фактический остаток, обязателен
	ProjectID           int64               `json:"project_id,omitempty"`
	PurchaseOrderItemID int64               `json:"purchase_order_item_id,omitempty"`
	PerformedBy         int64               `json:"performed_by"`
	IsGeneralUse        bool                `json:"is_general_use,omitempty"`
	Notes               string              `json:"notes,omitempty"`
}

// Record — неизменяемая запись журнала.
// Эффект на позицию всегда один: -Quantity по From, +Quantity по To.
type Record struct {
	ID                  int64               `json:"id"`
	MaterialID          int64               `json:"material_id"`
	Type                Type                `json:"type"`
	Quantity            decimal.Decimal     `json:"quantity"`
	From                *Side               `json:"from,omitempty"`
	To                  *Side               `json:"to,omitempty"`
	Counted             decimal.NullDecimal `json:"counted"`
	ProjectID           int64               `json:"project_id,omitempty"`
	PurchaseOrderItemID int64               `json:"purchase_order_item_id,omitempty"`
	PerformedBy         int64               `json:"performed_by"`
	IsGeneralUse        bool                `json:"is_general_use"`
	Notes               string              `json:"notes,omitempty"`
	CreatedAt           time.Time           `json:"created_at"`
}

// Effect — знаковое изменение позиции key от записи r.
func (r Record) Effect(key Key) decimal.Decimal {
	if r.MaterialID != key.MaterialID {
		return decimal.Zero
	}
	d := decimal.Zero
	if r.From != nil && *r.From == key.Side() {
		d = d.Sub(r.Quantity)
	}
	if r.To != nil && *r.To == key.Side() {
		d = d.Add(r.Quantity)
	}
	return d
}

// Touches — затрагивает ли запись позицию key.
func (r Record) Touches(key Key) bool {
	if r.MaterialID != key.MaterialID {
		return false
	}
	return (r.From != nil && *r.From == key.Side()) || (r.To != nil && *r.To == key.Side())
}

// Rebuild восстанавливает остаток позиции по истории.
func Rebuild(key Key, history []Record) decimal.Decimal {
	sum := decimal.Zero
	for _, r := range history {
		sum = sum.Add(r.Effect(key))
	}
	return sum
}

// StockChanged публикуется после каждого принятого движения, по одному на позицию.
type StockChanged struct {
	Key
	TransactionID     int64               `json:"transaction_id"`
	Previous          decimal.Decimal     `json:"previous"`
	Quantity          decimal.Decimal     `json:"quantity"`
	MinQuantity       decimal.NullDecimal `json:"min_quantity"`
	MonitorStockLevel bool                `json:"monitor_stock_level"`
	OccurredAt        time.Time           `json:"occurred_at"`
}

type LowStockAlert struct {
	Key
	TransactionID int64           `json:"transaction_id"`
	Quantity      decimal.Decimal `json:"quantity"`
	Threshold     decimal.Decimal `json:"threshold"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

type PositionFilter struct {
	MaterialID  int64
	WarehouseID int64
	LocationID  *int64
	LowOnly     bool
}

func (f PositionFilter) Match(p Position) bool {
	if f.MaterialID != 0 && p.MaterialID != f.MaterialID {
		return false
	}
	if f.WarehouseID != 0 && p.WarehouseID != f.WarehouseID {
		return false
	}
	if f.LocationID != nil && p.LocationID != *f.LocationID {
		return false
	}
	if f.LowOnly && !p.Low() {
		return false
	}
	return true
}

type RecordFilter struct {
	MaterialID          int64
	Type                Type
	ProjectID           int64
	PurchaseOrderItemID int64
	GeneralUse          *bool
	Since               time.Time
	Until               time.Time
	Limit               int
}

func (f RecordFilter) Match(r Record) bool {
	if f.MaterialID != 0 && r.MaterialID != f.MaterialID {
		return false
	}
	if f.Type != "" && r.Type != f.Type {
		return false
	}
	if f.ProjectID != 0 && r.ProjectID != f.ProjectID {
		return false
	}
	if f.PurchaseOrderItemID != 0 && r.PurchaseOrderItemID != f.PurchaseOrderItemID {
		return false
	}
	if f.GeneralUse != nil && r.IsGeneralUse != *f.GeneralUse {
		return false
	}
	if !f.Since.IsZero() && r.CreatedAt.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && !r.CreatedAt.Before(f.Until) {
		return false
	}
	return true
}
