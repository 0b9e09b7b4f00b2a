package notify

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Kind — тип сущности, на которую ссылается уведомление.
type Kind string

const (
	KindMaterial          Kind = "material"
	KindWarehouse         Kind = "warehouse"
	KindLocation          Kind = "location"
	KindTransaction       Kind = "transaction"
	KindProject           Kind = "project"
	KindPurchaseOrderItem Kind = "purchase_order_item"
)

func (k Kind) Valid() bool {
	switch k {
	case KindMaterial, KindWarehouse, KindLocation, KindTransaction, KindProject, KindPurchaseOrderItem:
		return true
	}
	return false
}

var ErrBadRef = errors.New("notify: bad reference")

// Ref — ссылка на сущность: тип + id. Печатается как "kind:id".
type Ref struct {
	Kind Kind
	ID   int64
}

func (r Ref) String() string { return fmt.Sprintf("%s:%d", r.Kind, r.ID) }

func ParseRef(s string) (Ref, error) {
	kind, id, ok := strings.Cut(s, ":")
	if !ok {
		return Ref{}, fmt.Errorf("%w: %q", ErrBadRef, s)
	}
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil || n <= 0 {
		return Ref{}, fmt.Errorf("%w: %q", ErrBadRef, s)
	}
	r := Ref{Kind: Kind(kind), ID: n}
	if !r.Kind.Valid() {
		return Ref{}, fmt.Errorf("%w: unknown kind %q", ErrBadRef, kind)
	}
	return r, nil
}

func (r Ref) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

func (r *Ref) UnmarshalText(b []byte) error {
	v, err := ParseRef(string(b))
	if err != nil {
		return err
	}
	*r = v
	return nil
}
