package domain

import "encoding/json"

// UnitField names a numeric unit field that may arrive unusable.
type UnitField string

const (
	FieldPrice      UnitField = "price"
	FieldBedrooms   UnitField = "bedrooms"
	FieldBathrooms  UnitField = "bathrooms"
	FieldSquareFeet UnitField = "squareFeet"
)

// Known reports whether f held a usable number when the unit was decoded.
func (u Unit) Known(f UnitField) bool {
	for _, v := range u.Unknown {
		if v == f {
			return false
		}
	}
	return true
}

// UnmarshalJSON accepts numbers, numeric strings ("$615,000", "2") and null
// for the numeric fields. A null or unparsable value leaves the field zero
// and lists it in Unknown instead of failing the decode.
func (u *Unit) UnmarshalJSON(b []byte) error {
	type plain Unit
	var in struct {
		plain
		Price      json.RawMessage `json:"price"`
		Bedrooms   json.RawMessage `json:"bedrooms"`
		Bathrooms  json.RawMessage `json:"bathrooms"`
		SquareFeet json.RawMessage `json:"squareFeet"`
	}
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}

	*u = Unit(in.plain)
	u.Unknown = nil

	fields := []struct {
		name  UnitField
		raw   json.RawMessage
		parse func(Decimal) bool
	}{
		{FieldPrice, in.Price, func(d Decimal) (ok bool) { u.Price, ok = d.Float(); return }},
		{FieldBedrooms, in.Bedrooms, func(d Decimal) (ok bool) { u.Bedrooms, ok = d.Int(); return }},
		{FieldBathrooms, in.Bathrooms, func(d Decimal) (ok bool) { u.Bathrooms, ok = d.Float(); return }},
		{FieldSquareFeet, in.SquareFeet, func(d Decimal) (ok bool) { u.SquareFeet, ok = d.Int(); return }},
	}
	for _, f := range fields {
		if f.raw == nil {
			continue
		}
		var d Decimal
		if err := d.UnmarshalJSON(f.raw); err != nil || !f.parse(d) {
			u.Unknown = append(u.Unknown, f.name)
		}
	}
	return nil
}

// MarshalJSON writes unknown numeric fields as null.
func (u Unit) MarshalJSON() ([]byte, error) {
	type plain Unit
	b, err := json.Marshal(plain(u))
	if err != nil {
		return nil, err
	}
	return nullFields(b, u.Unknown)
}

func (r RankedUnit) MarshalJSON() ([]byte, error) {
	type plain Unit
	b, err := json.Marshal(struct {
		plain
		MatchScore   int      `json:"matchScore"`
		MatchReasons []string `json:"matchReasons"`
		MatchBadge   Badge    `json:"matchBadge,omitempty"`
	}{plain(r.Unit), r.MatchScore, r.MatchReasons, r.MatchBadge})
	if err != nil {
		return nil, err
	}
	return nullFields(b, r.Unknown)
}

func (r *RankedUnit) UnmarshalJSON(b []byte) error {
	if err := r.Unit.UnmarshalJSON(b); err != nil {
		return err
	}
	var m struct {
		MatchScore   int      `json:"matchScore"`
		MatchReasons []string `json:"matchReasons"`
		MatchBadge   Badge    `json:"matchBadge"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	r.MatchScore, r.MatchReasons, r.MatchBadge = m.MatchScore, m.MatchReasons, m.MatchBadge
	return nil
}

func nullFields(b []byte, fields []UnitField) ([]byte, error) {
	if len(fields) == 0 {
		return b, nil
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	for _, f := range fields {
		m[string(f)] = json.RawMessage("null")
	}
	return json.Marshal(m)
}
