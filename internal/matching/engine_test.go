package matching

import (
	"encoding/json"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/denisok6893-rgb/condo-unit-matching/internal/domain"
)

func f64(v float64) *float64 { return &v }
func intp(v int) *int        { return &v }

func jackson() domain.Unit {
	return domain.Unit{ID: "u-1", Price: 600000, Bedrooms: 2, Bathrooms: 2, SquareFeet: 950, Building: "THE JACKSON"}
}

func TestScore_FullMatchWithinBudget(t *testing.T) {
	e := NewEngine(DefaultWeights())
	p := domain.Preferences{
		TargetPriceMin:  f64(500000),
		TargetPriceMax:  f64(700000),
		TargetBedrooms:  intp(2),
		TargetLocations: []string{"THE JACKSON"},
	}

	res := e.Score(jackson(), p)

	assert.True(t, res.IsMatch)
	assert.Equal(t, 100, res.Score)
	assert.Equal(t, "u-1", res.UnitID)
	assert.Equal(t, []string{
		"Within budget ($500,000-$700,000)",
		"Preferred building: THE JACKSON",
		"Exact bedroom match (2)",
	}, res.Reasons)
}

func TestScore_HardFilters(t *testing.T) {
	e := NewEngine(DefaultWeights())

	cases := []struct {
		name   string
		unit   domain.Unit
		prefs  domain.Preferences
		reason string
	}{
		{"over max budget", jackson(), domain.Preferences{TargetPriceMax: f64(500000)}, ReasonOverBudget},
		{"under min budget", jackson(), domain.Preferences{TargetPriceMin: f64(650000)}, ReasonUnderBudget},
		{"fewer bedrooms", jackson(), domain.Preferences{TargetBedrooms: intp(3)}, ReasonFewerBedrooms},
		{"max checked before min", jackson(), domain.Preferences{TargetPriceMin: f64(900000), TargetPriceMax: f64(100000)}, ReasonOverBudget},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := e.Score(tc.unit, tc.prefs)
			assert.False(t, res.IsMatch)
			assert.Equal(t, 0, res.Score)
			assert.Equal(t, []string{tc.reason}, res.Reasons)
		})
	}
}

func TestScore_BudgetBoundsAreInclusive(t *testing.T) {
	e := NewEngine(DefaultWeights())
	res := e.Score(jackson(), domain.Preferences{TargetPriceMin: f64(600000), TargetPriceMax: f64(600000)})
	assert.True(t, res.IsMatch)
	assert.Equal(t, 100, res.Score)
}

func TestScore_ExtraBedroomGetsHalfCredit(t *testing.T) {
	e := NewEngine(DefaultWeights())
	u := jackson()
	u.Bedrooms = 3

	res := e.Score(u, domain.Preferences{TargetBedrooms: intp(2)})

	assert.True(t, res.IsMatch)
	assert.Equal(t, 50, res.Score)
	assert.Equal(t, []string{"Close bedroom match (3 vs 2 wanted)"}, res.Reasons)
}

func TestScore_TwoExtraBedroomsEarnNothing(t *testing.T) {
	e := NewEngine(DefaultWeights())
	u := jackson()
	u.Bedrooms = 4

	res := e.Score(u, domain.Preferences{TargetBedrooms: intp(2)})

	assert.True(t, res.IsMatch)
	assert.Equal(t, 0, res.Score)
	assert.Empty(t, res.Reasons)
}

func TestScore_Bathrooms(t *testing.T) {
	e := NewEngine(DefaultWeights())
	u := jackson()

	u.Bathrooms = 2.5
	res := e.Score(u, domain.Preferences{TargetBathrooms: f64(2)})
	assert.Equal(t, 53, res.Score) // 8/15
	assert.Equal(t, []string{"Close bathroom match (2.5 vs 2 wanted)"}, res.Reasons)

	u.Bathrooms = 1.5
	res = e.Score(u, domain.Preferences{TargetBathrooms: f64(2)})
	assert.True(t, res.IsMatch, "bathrooms never exclude")
	assert.Equal(t, 53, res.Score)

	u.Bathrooms = 1
	res = e.Score(u, domain.Preferences{TargetBathrooms: f64(2)})
	assert.True(t, res.IsMatch)
	assert.Equal(t, 0, res.Score)

	u.Bathrooms = 2
	res = e.Score(u, domain.Preferences{TargetBathrooms: f64(2)})
	assert.Equal(t, 100, res.Score)
	assert.Equal(t, []string{"Exact bathroom match (2)"}, res.Reasons)
}

func TestScore_SquareFeetWindow(t *testing.T) {
	e := NewEngine(DefaultWeights())

	res := e.Score(jackson(), domain.Preferences{TargetSqftMin: f64(900)})
	assert.Equal(t, 100, res.Score)
	assert.Equal(t, []string{"Size within range (from 900 sqft)"}, res.Reasons)

	res = e.Score(jackson(), domain.Preferences{TargetSqftMin: f64(1000), TargetSqftMax: f64(1400)})
	assert.True(t, res.IsMatch, "size never excludes")
	assert.Equal(t, 0, res.Score)
}

func TestScore_LocationIsCaseInsensitive(t *testing.T) {
	e := NewEngine(DefaultWeights())

	res := e.Score(jackson(), domain.Preferences{TargetLocations: []string{"the jackson "}})
	assert.Equal(t, 100, res.Score)

	res = e.Score(jackson(), domain.Preferences{TargetLocations: []string{"ONE PARK"}})
	assert.True(t, res.IsMatch)
	assert.Equal(t, 0, res.Score)
}

func TestScore_WeightedAverageOverSpecifiedOnly(t *testing.T) {
	e := NewEngine(DefaultWeights())
	u := jackson()
	u.Building = "ONE PARK"

	// price 25/25 + location 0/20 = 25/45
	res := e.Score(u, domain.Preferences{TargetPriceMax: f64(700000), TargetLocations: []string{"THE JACKSON"}})
	assert.Equal(t, 56, res.Score)
	assert.Equal(t, []string{"Within budget (up to $700,000)"}, res.Reasons)
}

func TestScore_NoCriteria(t *testing.T) {
	e := NewEngine(DefaultWeights())
	res := e.Score(jackson(), domain.Preferences{})

	assert.Equal(t, domain.MatchResult{UnitID: "u-1", Score: 0, Reasons: []string{}, IsMatch: true}, res)
}

func TestScore_ZeroWeightCriterionIsIgnored(t *testing.T) {
	w := DefaultWeights()
	w.Location = 0
	e := NewEngine(w)
	u := jackson()
	u.Building = "ONE PARK"

	res := e.Score(u, domain.Preferences{TargetBedrooms: intp(2), TargetLocations: []string{"THE JACKSON"}})
	assert.Equal(t, 100, res.Score)
}

func TestScore_UnparsableLeadFieldsDegrade(t *testing.T) {
	e := NewEngine(DefaultWeights())
	lead := domain.Lead{TargetPriceMax: "cheap", TargetBedrooms: "2"}

	res := e.Score(jackson(), lead.Preferences())

	assert.True(t, res.IsMatch)
	assert.Equal(t, 100, res.Score)
	assert.Equal(t, []string{"Exact bedroom match (2)"}, res.Reasons)
}

func TestScore_UnknownUnitFieldsDegrade(t *testing.T) {
	e := NewEngine(DefaultWeights())

	var u domain.Unit
	require.NoError(t, json.Unmarshal([]byte(`{"id":"u-2","building":"THE JACKSON","price":"n/a","bedrooms":"two","bathrooms":2,"squareFeet":null}`), &u))
	require.Equal(t, []domain.UnitField{domain.FieldPrice, domain.FieldBedrooms, domain.FieldSquareFeet}, u.Unknown)

	p := domain.Preferences{
		TargetPriceMax:  f64(500000),
		TargetBedrooms:  intp(3),
		TargetBathrooms: f64(2),
		TargetSqftMin:   f64(900),
		TargetLocations: []string{"the jackson"},
	}

	// only location and bathrooms are scored: 20 + 15 of 35
	res := e.Score(u, p)
	assert.True(t, res.IsMatch, "unknown price and bedrooms never exclude")
	assert.Equal(t, 100, res.Score)
	assert.Equal(t, []string{"Preferred building: THE JACKSON", "Exact bathroom match (2)"}, res.Reasons)

	// nothing left to score
	res = e.Score(u, domain.Preferences{TargetPriceMin: f64(1)})
	assert.True(t, res.IsMatch)
	assert.Equal(t, 0, res.Score)
	assert.Empty(t, res.Reasons)
}

func TestRankUnits_UnknownPriceStillRanked(t *testing.T) {
	e := NewEngine(DefaultWeights())

	var units []domain.Unit
	require.NoError(t, json.Unmarshal([]byte(`[
		{"id":"a","building":"X","price":"n/a","bedrooms":2},
		{"id":"b","building":"X","price":500000,"bedrooms":2},
		{"id":"c","building":"X","price":"$450,000","bedrooms":3}
	]`), &units))

	ranked := e.RankUnits(units, domain.Preferences{TargetPriceMax: f64(480000), TargetBedrooms: intp(2)})

	// a: bedrooms only, 20 of 20; c: 25 + 10 of 45; b over budget
	require.Len(t, ranked, 2)
	assert.Equal(t, "a", ranked[0].ID)
	assert.Equal(t, 100, ranked[0].MatchScore)
	assert.Equal(t, "c", ranked[1].ID)
	assert.Equal(t, 78, ranked[1].MatchScore)
}

func TestScore_Properties(t *testing.T) {
	e := NewEngine(DefaultWeights())
	rng := rand.New(rand.NewSource(7))
	buildings := []string{"THE JACKSON", "ONE PARK", "HARBOR VIEW"}

	maybe := func(v float64) *float64 {
		if rng.Intn(2) == 0 {
			return nil
		}
		return &v
	}

	for i := 0; i < 2000; i++ {
		u := domain.Unit{
			ID:         "u",
			Price:      float64(200000 + rng.Intn(800000)),
			Bedrooms:   rng.Intn(5),
			Bathrooms:  float64(rng.Intn(8)) / 2,
			SquareFeet: 400 + rng.Intn(1600),
			Building:   buildings[rng.Intn(len(buildings))],
		}
		p := domain.Preferences{
			TargetPriceMin:  maybe(float64(200000 + rng.Intn(400000))),
			TargetPriceMax:  maybe(float64(500000 + rng.Intn(500000))),
			TargetBathrooms: maybe(float64(rng.Intn(8)) / 2),
			TargetSqftMin:   maybe(float64(400 + rng.Intn(800))),
			TargetSqftMax:   maybe(float64(900 + rng.Intn(1000))),
		}
		if rng.Intn(2) == 0 {
			p.TargetBedrooms = intp(rng.Intn(5))
		}
		if rng.Intn(2) == 0 {
			p.TargetLocations = buildings[:1+rng.Intn(len(buildings))]
		}

		a := e.Score(u, p)
		b := e.Score(u, p)
		require.Equal(t, a, b, "idempotent")
		require.GreaterOrEqual(t, a.Score, 0)
		require.LessOrEqual(t, a.Score, 100)

		if p.TargetPriceMax != nil && u.Price > *p.TargetPriceMax {
			require.False(t, a.IsMatch)
			require.Equal(t, 0, a.Score)
		}
		if !a.IsMatch {
			require.Equal(t, 0, a.Score)
			require.Len(t, a.Reasons, 1)
		}
	}
}

func TestScore_ConcurrentUse(t *testing.T) {
	e := NewEngine(DefaultWeights())
	p := domain.Preferences{TargetBedrooms: intp(2), TargetLocations: []string{"THE JACKSON"}}
	want := e.Score(jackson(), p)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				assert.Equal(t, want, e.Score(jackson(), p))
			}
		}()
	}
	wg.Wait()
}

func TestRankUnits_OrdersAndFilters(t *testing.T) {
	e := NewEngine(DefaultWeights())
	p := domain.Preferences{
		TargetBedrooms:  intp(2),
		TargetBathrooms: f64(2),
		TargetLocations: []string{"THE JACKSON"},
	}

	a := jackson()
	a.ID, a.Bedrooms = "A", 3 // 10 + 15 + 20 of 55 -> 82
	b := jackson()
	b.ID = "B" // 100
	c := jackson()
	c.ID, c.Bedrooms = "C", 1 // excluded

	got := e.RankUnits([]domain.Unit{a, b, c}, p)

	require.Len(t, got, 2)
	assert.Equal(t, "B", got[0].ID)
	assert.Equal(t, 100, got[0].MatchScore)
	assert.Equal(t, domain.BadgePerfect, got[0].MatchBadge)
	assert.Equal(t, "A", got[1].ID)
	assert.Equal(t, 82, got[1].MatchScore)
	assert.Equal(t, domain.BadgeStrong, got[1].MatchBadge)

	for _, r := range got {
		assert.True(t, e.Score(r.Unit, p).IsMatch)
	}
}

func TestRankUnits_StableForEqualScores(t *testing.T) {
	e := NewEngine(DefaultWeights())
	p := domain.Preferences{TargetBedrooms: intp(2)}

	var units []domain.Unit
	for _, id := range []string{"z", "a", "m", "b"} {
		u := jackson()
		u.ID = id
		units = append(units, u)
	}
	weaker := jackson()
	weaker.ID, weaker.Bedrooms = "w", 3
	units = append([]domain.Unit{weaker}, units...)

	got := e.RankUnits(units, p)

	ids := make([]string, len(got))
	for i, r := range got {
		ids[i] = r.ID
	}
	assert.Equal(t, []string{"z", "a", "m", "b", "w"}, ids)
}

func TestRankUnits_Empty(t *testing.T) {
	e := NewEngine(DefaultWeights())
	got := e.RankUnits(nil, domain.Preferences{TargetBedrooms: intp(2)})
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestBadgeFor(t *testing.T) {
	assert.Equal(t, domain.BadgePerfect, BadgeFor(90))
	assert.Equal(t, domain.BadgeStrong, BadgeFor(89))
	assert.Equal(t, domain.BadgeStrong, BadgeFor(70))
	assert.Equal(t, domain.BadgeGood, BadgeFor(50))
	assert.Equal(t, domain.BadgeNone, BadgeFor(49))
	assert.Equal(t, domain.BadgeNone, BadgeFor(0))
}
