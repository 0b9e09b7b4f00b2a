package catalog

import (
	"errors"
	"time"
)

var (
	ErrNotFound         = errors.New("catalog: not found")
	ErrInactive         = errors.New("catalog: inactive")
	ErrLocationMismatch = errors.New("catalog: location belongs to another warehouse")
	ErrCategoryCycle    = errors.New("catalog: category cycle")
)

type Unit string

const (
	UnitPcs Unit = "pcs"
	UnitKg  Unit = "kg"
	UnitM   Unit = "m"
	UnitM2  Unit = "m2"
	UnitL   Unit = "l"
)

type Warehouse struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// Location — ячейка склада; код уникален в пределах склада.
type Location struct {
	ID          int64  `json:"id"`
	WarehouseID int64  `json:"warehouse_id"`
	Code        string `json:"code"`
	Name        string `json:"name"`
	Active      bool   `json:"active"`
}

type Category struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	ParentID int64  `json:"parent_id,omitempty"` // 0 — корень
}

type Material struct {
	ID          int64          `json:"id"`
	Code        string         `json:"code"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	CategoryID  int64          `json:"category_id,omitempty"`
	Unit        Unit           `json:"unit"`
	Specs       map[string]any `json:"technical_specs,omitempty"` // свободные характеристики (JSONB)
	Active      bool           `json:"active"`
	CreatedAt   time.Time      `json:"created_at"`
}

// PositionInfo — человекочитаемое описание позиции для уведомлений и выгрузок.
type PositionInfo struct {
	MaterialCode  string `json:"material_code"`
	MaterialName  string `json:"material_name"`
	Unit          Unit   `json:"unit"`
	CategoryID    int64  `json:"category_id"`
	CategoryName  string `json:"category_name"`
	WarehouseCode string `json:"warehouse_code"`
	WarehouseName string `json:"warehouse_name"`
	LocationCode  string `json:"location_code,omitempty"`
}
