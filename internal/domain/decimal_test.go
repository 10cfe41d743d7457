package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecimal_Float(t *testing.T) {
	cases := []struct {
		in   Decimal
		want float64
		ok   bool
	}{
		{"500000", 500000, true},
		{" 2.5 ", 2.5, true},
		{"$1,250,000", 1250000, true},
		{"", 0, false},
		{"abc", 0, false},
		{"NaN", 0, false},
		{"Inf", 0, false},
	}
	for _, tc := range cases {
		got, ok := tc.in.Float()
		assert.Equal(t, tc.ok, ok, "input %q", tc.in)
		assert.Equal(t, tc.want, got, "input %q", tc.in)
	}
}

func TestDecimal_Int(t *testing.T) {
	n, ok := Decimal("3").Int()
	assert.True(t, ok)
	assert.Equal(t, 3, n)

	n, ok = Decimal("3.0").Int()
	assert.True(t, ok)
	assert.Equal(t, 3, n)

	_, ok = Decimal("2.5").Int()
	assert.False(t, ok)
}

func TestDecimal_UnmarshalJSON(t *testing.T) {
	var l Lead
	body := `{"name":"Ana","targetPriceMin":500000,"targetPriceMax":"700000","targetBedrooms":null,"targetBathrooms":"two"}`
	require.NoError(t, json.Unmarshal([]byte(body), &l))

	assert.Equal(t, Decimal("500000"), l.TargetPriceMin)
	assert.Equal(t, Decimal("700000"), l.TargetPriceMax)
	assert.Equal(t, Decimal(""), l.TargetBedrooms)
	assert.Equal(t, Decimal("two"), l.TargetBathrooms)
}

func TestLead_Preferences(t *testing.T) {
	l := Lead{
		TargetPriceMin:  "500000",
		TargetPriceMax:  "not a number",
		TargetBedrooms:  "2",
		TargetBathrooms: "1.5",
		TargetSqftMax:   "1200",
		TargetLocations: []string{" THE JACKSON ", "", "  "},
	}
	p := l.Preferences()

	require.NotNil(t, p.TargetPriceMin)
	assert.Equal(t, 500000.0, *p.TargetPriceMin)
	assert.Nil(t, p.TargetPriceMax)
	require.NotNil(t, p.TargetBedrooms)
	assert.Equal(t, 2, *p.TargetBedrooms)
	require.NotNil(t, p.TargetBathrooms)
	assert.Equal(t, 1.5, *p.TargetBathrooms)
	assert.Nil(t, p.TargetSqftMin)
	require.NotNil(t, p.TargetSqftMax)
	assert.Equal(t, 1200.0, *p.TargetSqftMax)
	assert.Equal(t, []string{"THE JACKSON"}, p.TargetLocations)
}

func TestLead_PreferencesEmpty(t *testing.T) {
	assert.Equal(t, Preferences{}, Lead{Name: "x"}.Preferences())
}

func TestUnit_Validate(t *testing.T) {
	ok := Unit{Building: "THE JACKSON", Price: 600000, Bedrooms: 2, Bathrooms: 2, SquareFeet: 950}
	assert.NoError(t, ok.Validate())

	noBuilding := ok
	noBuilding.Building = " "
	assert.Error(t, noBuilding.Validate())

	noPrice := ok
	noPrice.Price = 0
	assert.Error(t, noPrice.Validate())

	badStatus := ok
	badStatus.Status = "gone"
	assert.Error(t, badStatus.Validate())
}
