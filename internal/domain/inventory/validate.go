package inventory

import "github.com/shopspring/decimal"

// Validate проверяет заявку до любых обращений к хранилищу.
func Validate(in Intent) error {
	if !in.Type.Valid() {
		return invalidf("unknown transaction type %q", in.Type)
	}
	if in.MaterialID <= 0 {
		return invalidf("material is required")
	}
	if in.PerformedBy <= 0 {
		return invalidf("performer is required")
	}
	if in.IsGeneralUse && in.ProjectID != 0 {
		return invalidf("general-use transaction cannot reference a project")
	}
	for _, s := range []*Side{in.From, in.To, in.At} {
		if s != nil && (s.WarehouseID <= 0 || s.LocationID < 0) {
			return invalidf("bad warehouse/location reference %+v", *s)
		}
	}

	if in.Type == TypeAdjustment {
		switch {
		case in.At == nil:
			return invalidf("adjustment requires a counted position")
		case in.From != nil || in.To != nil:
			return invalidf("adjustment takes no source or destination")
		case !in.Quantity.IsZero():
			return invalidf("adjustment takes a counted target, not a quantity (got quantity %s)", in.Quantity)
		case !in.Target.Valid:
			return invalidf("adjustment requires a counted target")
		case in.Target.Decimal.IsNegative():
			return invalidf("adjustment target must be >= 0, got %s", in.Target.Decimal)
		case !twoPlaces(in.Target.Decimal):
			return invalidf("adjustment target %s has more than 2 decimal places", in.Target.Decimal)
		}
		return nil
	}

	if in.At != nil {
		return invalidf("%s does not take a counted position", in.Type)
	}
	if !in.Quantity.IsPositive() {
		return invalidf("quantity must be > 0, got %s", in.Quantity)
	}
	if !twoPlaces(in.Quantity) {
		return invalidf("quantity %s has more than 2 decimal places", in.Quantity)
	}

	switch in.Type {
	case TypeReceipt:
		if in.To == nil || in.From != nil {
			return invalidf("receipt requires a destination only")
		}
	case TypeIssue:
		if in.From == nil || in.To != nil {
			return invalidf("issue requires a source only")
		}
	case TypeTransfer:
		if in.From == nil || in.To == nil {
			return invalidf("transfer requires source and destination")
		}
		if in.From.WarehouseID == in.To.WarehouseID {
			return invalidf("transfer source and destination warehouses must differ")
		}
	}
	return nil
}

func twoPlaces(d decimal.Decimal) bool { return d.Equal(d.Round(2)) }

// sides — все склады/ячейки, на которые ссылается заявка.
func (in Intent) sides() []Side {
	var out []Side
	for _, s := range []*Side{in.From, in.To, in.At} {
		if s != nil {
			out = append(out, *s)
		}
	}
	return out
}

func (in Intent) keys() []Key {
	sides := in.sides()
	keys := make([]Key, 0, len(sides))
	for _, s := range sides {
		keys = append(keys, KeyOf(in.MaterialID, s))
	}
	return keys
}
