package inventory

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Denomination is one purchasable voucher variant.
//
// Upstream records come in inconsistent shapes: structured objects with
// alternate field names (value/denomination, price/sellingPrice), or bare
// scalar values. Unknown shapes degrade to the scalar form instead of
// failing the whole evaluation.
type Denomination struct {
	Value      string
	Price      string
	Discount   string
	Structured bool
}

// denominationsFromPayload extracts the denomination list from
// inventory.stanValueDenomination. Missing or malformed substructures yield
// an empty list.
func denominationsFromPayload(p Payload) []Denomination {
	if p == nil {
		return nil
	}
	inv, ok := p["inventory"].(map[string]any)
	if !ok {
		return nil
	}
	raw, ok := inv["stanValueDenomination"].([]any)
	if !ok || len(raw) == 0 {
		return nil
	}
	out := make([]Denomination, 0, len(raw))
	for _, v := range raw {
		out = append(out, parseDenomination(v))
	}
	return out
}

func parseDenomination(v any) Denomination {
	if m, ok := v.(map[string]any); ok {
		d := Denomination{Structured: true}
		d.Value = scalarString(firstOf(m, "value", "denomination"))
		d.Price = scalarString(firstOf(m, "price", "sellingPrice"))
		d.Discount = scalarString(m["discount"])
		if d.Value == "" {
			d.Value = "Unknown"
		}
		return d
	}
	return Denomination{Value: scalarString(v)}
}

func firstOf(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func scalarString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}
