package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Unit is a sellable condominium inventory item. Only Price, Bedrooms,
// Bathrooms, SquareFeet and Building take part in matching.
type Unit struct {
	ID         string    `json:"id"`
	ProjectID  string    `json:"projectId"`
	UnitNumber string    `json:"unitNumber,omitempty"`
	Building   string    `json:"building"`
	Floor      int       `json:"floor,omitempty"`
	Price      float64   `json:"price"`
	Bedrooms   int       `json:"bedrooms"`
	Bathrooms  float64   `json:"bathrooms"`
	SquareFeet int       `json:"squareFeet"`
	Status     string    `json:"status,omitempty"`
	UpdatedAt  time.Time `json:"updatedAt"`

	// Unknown lists the numeric fields that arrived null or unparsable.
	// Scoring treats them as unspecified; Validate rejects them.
	Unknown []UnitField `json:"-"`
}

const (
	UnitAvailable = "available"
	UnitReserved  = "reserved"
	UnitSold      = "sold"
)

// Validate reports the first missing or malformed field. The scorer never
// calls it; it guards the write path.
func (u Unit) Validate() error {
	if len(u.Unknown) > 0 {
		return fmt.Errorf("%s must be a number", u.Unknown[0])
	}
	if strings.TrimSpace(u.Building) == "" {
		return errors.New("building is required")
	}
	if u.Price <= 0 {
		return errors.New("price must be > 0")
	}
	if u.Bedrooms < 0 || u.Bathrooms < 0 || u.SquareFeet < 0 {
		return errors.New("bedrooms, bathrooms and squareFeet must be >= 0")
	}
	switch u.Status {
	case "", UnitAvailable, UnitReserved, UnitSold:
	default:
		return errors.New("status must be one of available, reserved, sold")
	}
	return nil
}

// Lead is a prospective buyer. Numeric preferences are kept as the decimal
// text the store hands back; Preferences converts them.
type Lead struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Status    string `json:"status,omitempty"`
	AgentID   string `json:"agentId,omitempty"`
	ProjectID string `json:"projectId,omitempty"`

	TargetPriceMin  Decimal  `json:"targetPriceMin,omitempty"`
	TargetPriceMax  Decimal  `json:"targetPriceMax,omitempty"`
	TargetBedrooms  Decimal  `json:"targetBedrooms,omitempty"`
	TargetBathrooms Decimal  `json:"targetBathrooms,omitempty"`
	TargetSqftMin   Decimal  `json:"targetSqftMin,omitempty"`
	TargetSqftMax   Decimal  `json:"targetSqftMax,omitempty"`
	TargetLocations []string `json:"targetLocations,omitempty"`

	UpdatedAt time.Time `json:"updatedAt"`
}

const (
	LeadNew       = "new"
	LeadContacted = "contacted"
	LeadQualified = "qualified"
	LeadLost      = "lost"
	LeadWon       = "won"
)

func (l Lead) Validate() error {
	if strings.TrimSpace(l.Name) == "" {
		return errors.New("name is required")
	}
	switch l.Status {
	case "", LeadNew, LeadContacted, LeadQualified, LeadLost, LeadWon:
	default:
		return errors.New("status must be one of new, contacted, qualified, lost, won")
	}
	return nil
}

// Preferences returns the lead's preference snapshot. Blank or unparsable
// fields come back unset.
func (l Lead) Preferences() Preferences {
	var p Preferences
	p.TargetPriceMin = l.TargetPriceMin.floatPtr()
	p.TargetPriceMax = l.TargetPriceMax.floatPtr()
	if n, ok := l.TargetBedrooms.Int(); ok {
		p.TargetBedrooms = &n
	}
	p.TargetBathrooms = l.TargetBathrooms.floatPtr()
	p.TargetSqftMin = l.TargetSqftMin.floatPtr()
	p.TargetSqftMax = l.TargetSqftMax.floatPtr()
	for _, loc := range l.TargetLocations {
		if loc = strings.TrimSpace(loc); loc != "" {
			p.TargetLocations = append(p.TargetLocations, loc)
		}
	}
	return p
}

// Preferences is what a lead asked for. A nil field means "not specified".
type Preferences struct {
	TargetPriceMin  *float64 `json:"targetPriceMin,omitempty"`
	TargetPriceMax  *float64 `json:"targetPriceMax,omitempty"`
	TargetBedrooms  *int     `json:"targetBedrooms,omitempty"`
	TargetBathrooms *float64 `json:"targetBathrooms,omitempty"`
	TargetSqftMin   *float64 `json:"targetSqftMin,omitempty"`
	TargetSqftMax   *float64 `json:"targetSqftMax,omitempty"`
	TargetLocations []string `json:"targetLocations,omitempty"`
}

// MatchResult is computed per (unit, lead) pair and never stored.
type MatchResult struct {
	UnitID  string   `json:"unitId"`
	Score   int      `json:"score"`
	Reasons []string `json:"reasons"`
	IsMatch bool     `json:"isMatch"`
}

// Badge is the UI tier for a score.
type Badge string

const (
	BadgeNone    Badge = ""
	BadgePerfect Badge = "perfect"
	BadgeStrong  Badge = "strong"
	BadgeGood    Badge = "good"
)

// RankedUnit serializes as the unit's own fields plus the match fields.
type RankedUnit struct {
	Unit
	MatchScore   int      `json:"matchScore"`
	MatchReasons []string `json:"matchReasons"`
	MatchBadge   Badge    `json:"matchBadge,omitempty"`
}
