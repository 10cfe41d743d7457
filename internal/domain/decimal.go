package domain

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Decimal holds a numeric value as text. It decodes from a JSON number, a
// JSON string or null, so a bad value reaches the scorer as "unset" instead
// of failing the whole request.
type Decimal string

func (d *Decimal) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*d = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*d = Decimal(s)
		return nil
	}
	*d = Decimal(b)
	return nil
}

// Float parses the value, tolerating surrounding space, a leading "$" and
// thousands separators.
func (d Decimal) Float() (float64, bool) {
	s := strings.TrimSpace(string(d))
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Int is Float restricted to whole numbers.
func (d Decimal) Int() (int, bool) {
	v, ok := d.Float()
	if !ok || v != math.Trunc(v) || math.Abs(v) > math.MaxInt32 {
		return 0, false
	}
	return int(v), true
}

func (d Decimal) floatPtr() *float64 {
	v, ok := d.Float()
	if !ok {
		return nil
	}
	return &v
}

// DecimalOf formats v the way the store would return it.
func DecimalOf(v float64) Decimal {
	return Decimal(strconv.FormatFloat(v, 'f', -1, 64))
}
