package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/Spok95/scm-ledger/internal/domain/catalog"
	"github.com/Spok95/scm-ledger/internal/domain/inventory"
)

type Notification struct {
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Subject   Ref       `json:"subject"`
	Related   []Ref     `json:"related,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Text — для чатов: заголовок и текст.
func (n Notification) Text() string {
	return n.Title + "\n" + n.Message
}

// LowStock собирает уведомление о низком остатке. info может быть пустым —
// тогда в тексте только id.
func LowStock(a inventory.LowStockAlert, info catalog.PositionInfo) Notification {
	material := fmt.Sprintf("#%d", a.MaterialID)
	if info.MaterialName != "" {
		material = fmt.Sprintf("%s (%s)", info.MaterialName, info.MaterialCode)
	}
	place := fmt.Sprintf("склад #%d", a.WarehouseID)
	if info.WarehouseName != "" {
		place = "склад " + info.WarehouseName
	}
	if a.LocationID != 0 {
		loc := fmt.Sprintf("#%d", a.LocationID)
		if info.LocationCode != "" {
			loc = info.LocationCode
		}
		place += ", ячейка " + loc
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s, %s\n", material, place)
	fmt.Fprintf(&b, "Остаток: %s", a.Quantity.StringFixed(2))
	if info.Unit != "" {
		fmt.Fprintf(&b, " %s", info.Unit)
	}
	fmt.Fprintf(&b, ", порог: %s", a.Threshold.StringFixed(2))
	if info.CategoryName != "" {
		fmt.Fprintf(&b, "\nКатегория: %s", info.CategoryName)
	}

	related := []Ref{{Kind: KindWarehouse, ID: a.WarehouseID}}
	if a.LocationID != 0 {
		related = append(related, Ref{Kind: KindLocation, ID: a.LocationID})
	}
	if a.TransactionID != 0 {
		related = append(related, Ref{Kind: KindTransaction, ID: a.TransactionID})
	}

	created := a.OccurredAt
	if created.IsZero() {
		created = time.Now()
	}
	return Notification{
		Title:     "⚠️ Низкий остаток",
		Message:   b.String(),
		Subject:   Ref{Kind: KindMaterial, ID: a.MaterialID},
		Related:   related,
		CreatedAt: created,
	}
}
