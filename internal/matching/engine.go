package matching

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/denisok6893-rgb/condo-unit-matching/internal/domain"
)

const (
	ReasonOverBudget    = "Price exceeds max budget."
	ReasonUnderBudget   = "Price below minimum budget."
	ReasonFewerBedrooms = "Fewer bedrooms than required."
)

// epsilon for comparing bathroom counts (half steps).
const epsilon = 1e-9

// Engine scores units against lead preferences. It holds no mutable state and
// is safe for concurrent use.
type Engine struct {
	weights Weights
}

func NewEngine(w Weights) *Engine {
	return &Engine{weights: w}
}

func (e *Engine) Weights() Weights { return e.weights }

// Score applies the hard filters, then computes a 0..100 weighted average over
// the criteria the lead actually specified.
func (e *Engine) Score(u domain.Unit, p domain.Preferences) domain.MatchResult {
	res := domain.MatchResult{UnitID: u.ID, Reasons: []string{}}

	if reason, ok := passesHardFilters(u, p); !ok {
		res.Reasons = append(res.Reasons, reason)
		return res
	}
	res.IsMatch = true

	// Each criterion contributes earned points out of weight. A criterion is
	// skipped entirely when the lead left it blank or the unit's value is
	// unknown.
	type criterion struct {
		specified bool
		weight    float64
		earned    func() (float64, string)
	}

	criteria := []criterion{
		{
			specified: (p.TargetPriceMin != nil || p.TargetPriceMax != nil) && u.Known(domain.FieldPrice),
			weight:    e.weights.Price,
			earned: func() (float64, string) {
				return e.weights.Price, "Within budget" + windowLabel(p.TargetPriceMin, p.TargetPriceMax, formatMoney)
			},
		},
		{
			specified: len(p.TargetLocations) > 0,
			weight:    e.weights.Location,
			earned: func() (float64, string) {
				if !containsFold(p.TargetLocations, u.Building) {
					return 0, ""
				}
				return e.weights.Location, "Preferred building: " + strings.TrimSpace(u.Building)
			},
		},
		{
			specified: p.TargetBedrooms != nil && u.Known(domain.FieldBedrooms),
			weight:    e.weights.Bedrooms,
			earned: func() (float64, string) {
				want := *p.TargetBedrooms
				switch diff := abs(u.Bedrooms - want); diff {
				case 0:
					return e.weights.Bedrooms, fmt.Sprintf("Exact bedroom match (%d)", u.Bedrooms)
				case 1:
					return e.weights.BedroomsNearMiss, fmt.Sprintf("Close bedroom match (%d vs %d wanted)", u.Bedrooms, want)
				}
				return 0, ""
			},
		},
		{
			specified: p.TargetBathrooms != nil && u.Known(domain.FieldBathrooms),
			weight:    e.weights.Bathrooms,
			earned: func() (float64, string) {
				want := *p.TargetBathrooms
				diff := math.Abs(u.Bathrooms - want)
				switch {
				case diff < epsilon:
					return e.weights.Bathrooms, "Exact bathroom match (" + formatCount(u.Bathrooms) + ")"
				case math.Abs(diff-0.5) < epsilon:
					return e.weights.BathroomsNearMiss, "Close bathroom match (" + formatCount(u.Bathrooms) + " vs " + formatCount(want) + " wanted)"
				}
				return 0, ""
			},
		},
		{
			specified: (p.TargetSqftMin != nil || p.TargetSqftMax != nil) && u.Known(domain.FieldSquareFeet),
			weight:    e.weights.SquareFeet,
			earned: func() (float64, string) {
				if !inWindow(float64(u.SquareFeet), p.TargetSqftMin, p.TargetSqftMax) {
					return 0, ""
				}
				return e.weights.SquareFeet, "Size within range" + windowLabel(p.TargetSqftMin, p.TargetSqftMax, formatSqft)
			},
		},
	}

	var total, sum float64
	for _, c := range criteria {
		if !c.specified || c.weight <= 0 {
			continue
		}
		total += c.weight
		pts, reason := c.earned()
		if pts <= 0 {
			continue
		}
		sum += pts
		res.Reasons = append(res.Reasons, reason)
	}

	if total <= 0 {
		return res
	}
	res.Score = int(clamp(math.Round(100*sum/total), 0, 100))
	return res
}

// RankUnits scores every unit, drops hard-filter failures and orders the rest
// by score, keeping input order among equal scores.
func (e *Engine) RankUnits(units []domain.Unit, p domain.Preferences) []domain.RankedUnit {
	results := make([]domain.MatchResult, len(units))
	for i, u := range units {
		results[i] = e.Score(u, p)
	}
	return Rank(units, results)
}

// RankLead ranks units for a lead's current preferences.
func (e *Engine) RankLead(_ context.Context, lead domain.Lead, units []domain.Unit) ([]domain.RankedUnit, error) {
	return e.RankUnits(units, lead.Preferences()), nil
}

// Rank pairs units with their already computed results (same index), filters
// out non-matches and stable-sorts by score descending.
func Rank(units []domain.Unit, results []domain.MatchResult) []domain.RankedUnit {
	out := make([]domain.RankedUnit, 0, len(units))
	for i, u := range units {
		r := results[i]
		if !r.IsMatch {
			continue
		}
		out = append(out, domain.RankedUnit{
			Unit:         u,
			MatchScore:   r.Score,
			MatchReasons: r.Reasons,
			MatchBadge:   BadgeFor(r.Score),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].MatchScore > out[j].MatchScore })
	return out
}

// BadgeFor maps a score to its display tier.
func BadgeFor(score int) domain.Badge {
	switch {
	case score >= 90:
		return domain.BadgePerfect
	case score >= 70:
		return domain.BadgeStrong
	case score >= 50:
		return domain.BadgeGood
	default:
		return domain.BadgeNone
	}
}

// passesHardFilters never excludes a unit on a field it does not know.
func passesHardFilters(u domain.Unit, p domain.Preferences) (string, bool) {
	knownPrice := u.Known(domain.FieldPrice)
	if knownPrice && p.TargetPriceMax != nil && u.Price > *p.TargetPriceMax {
		return ReasonOverBudget, false
	}
	if knownPrice && p.TargetPriceMin != nil && u.Price < *p.TargetPriceMin {
		return ReasonUnderBudget, false
	}
	if p.TargetBedrooms != nil && u.Known(domain.FieldBedrooms) && u.Bedrooms < *p.TargetBedrooms {
		return ReasonFewerBedrooms, false
	}
	return "", true
}

func inWindow(v float64, lo, hi *float64) bool {
	if lo != nil && v < *lo {
		return false
	}
	if hi != nil && v > *hi {
		return false
	}
	return true
}

func containsFold(set []string, s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	for _, v := range set {
		if strings.EqualFold(strings.TrimSpace(v), s) {
			return true
		}
	}
	return false
}

func windowLabel(lo, hi *float64, format func(float64) string) string {
	switch {
	case lo != nil && hi != nil:
		return " (" + format(*lo) + "-" + format(*hi) + ")"
	case hi != nil:
		return " (up to " + format(*hi) + ")"
	case lo != nil:
		return " (from " + format(*lo) + ")"
	}
	return ""
}

func formatMoney(v float64) string {
	s := strconv.FormatFloat(math.Round(v), 'f', 0, 64)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-$" + b.String()
	}
	return "$" + b.String()
}

func formatSqft(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + " sqft"
}

func formatCount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
