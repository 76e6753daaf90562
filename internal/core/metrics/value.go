package metrics

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// ValueKind discriminates the two column value shapes.
type ValueKind string

const (
	// KindScalar is a single numeric value (counts, monetary totals).
	KindScalar ValueKind = "scalar"

	// KindEntities is an ordered list of per-entity counts.
	KindEntities ValueKind = "entities"
)

// EntityCount is one named sub-item of a grouped column, e.g. one seller
// name and their daily count. List order is display order and is preserved.
type EntityCount struct {
	Entity string `json:"entity"`
	Count  int64  `json:"count"`
}

// ColumnValue is the closed tagged variant stored per snapshot column:
// either a scalar or an ordered entity list, decided at decode time.
// The zero value (empty Kind) means "absent".
type ColumnValue struct {
	Kind     ValueKind
	Scalar   decimal.Decimal
	Entities []EntityCount
}

// NewScalar wraps a scalar value.
func NewScalar(v decimal.Decimal) ColumnValue {
	return ColumnValue{Kind: KindScalar, Scalar: v}
}

// NewEntityList wraps an ordered entity list. A nil list is a valid,
// empty grouped value (distinct from an absent column).
func NewEntityList(entities []EntityCount) ColumnValue {
	if entities == nil {
		entities = []EntityCount{}
	}
	return ColumnValue{Kind: KindEntities, Entities: entities}
}

// IsZero reports whether the value is absent.
func (v ColumnValue) IsZero() bool { return v.Kind == "" }

// taggedValue is the persisted JSON shape. The explicit kind tag replaces
// the schema-less "is it an object, is it an array" probing the stored
// configuration format would otherwise force on every reader.
type taggedValue struct {
	Kind     ValueKind       `json:"kind"`
	Value    decimal.Decimal `json:"value,omitempty"`
	Entities []EntityCount   `json:"entities,omitempty"`
}

// MarshalJSON encodes the value in tagged form.
func (v ColumnValue) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindScalar:
		return json.Marshal(taggedValue{Kind: KindScalar, Value: v.Scalar})
	case KindEntities:
		entities := v.Entities
		if entities == nil {
			entities = []EntityCount{}
		}
		return json.Marshal(struct {
			Kind     ValueKind     `json:"kind"`
			Entities []EntityCount `json:"entities"`
		}{Kind: KindEntities, Entities: entities})
	}
	return nil, fmt.Errorf("marshal column value: unknown kind %q", v.Kind)
}

// UnmarshalJSON decodes a tagged value, rejecting unknown kinds.
func (v *ColumnValue) UnmarshalJSON(data []byte) error {
	var tagged taggedValue
	if err := json.Unmarshal(data, &tagged); err != nil {
		return fmt.Errorf("unmarshal column value: %w", err)
	}
	switch tagged.Kind {
	case KindScalar:
		*v = NewScalar(tagged.Value)
	case KindEntities:
		*v = NewEntityList(tagged.Entities)
	default:
		return fmt.Errorf("unmarshal column value: unknown kind %q", tagged.Kind)
	}
	return nil
}

// GroupTotal sums the counts of an entity list. Scalar and absent values
// total zero.
func (v ColumnValue) GroupTotal() int64 {
	var total int64
	for _, ec := range v.Entities {
		total += ec.Count
	}
	return total
}
