package storage

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/denisok6893-rgb/condo-unit-matching/internal/domain"
)

// Seed is the initial dataset loaded into an empty store.
type Seed struct {
	Units []domain.Unit `json:"units"`
	Leads []domain.Lead `json:"leads"`
}

// LoadSeedFromFile reads a Seed from a JSON file.
func LoadSeedFromFile(path string) (Seed, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Seed{}, fmt.Errorf("read seed file: %w", err)
	}

	var seed Seed
	if err := json.Unmarshal(b, &seed); err != nil {
		return Seed{}, fmt.Errorf("unmarshal seed: %w", err)
	}
	// stored units must carry real numbers
	for _, u := range seed.Units {
		if len(u.Unknown) > 0 {
			return Seed{}, fmt.Errorf("seed unit %q: %s must be a number", u.ID, u.Unknown[0])
		}
	}
	return seed, nil
}

// LoadUnitsFromFile reads a bare JSON array of units.
func LoadUnitsFromFile(path string) ([]domain.Unit, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read units file: %w", err)
	}

	var units []domain.Unit
	if err := json.Unmarshal(b, &units); err != nil {
		return nil, fmt.Errorf("unmarshal units: %w", err)
	}
	return units, nil
}

// LoadLeadFromFile reads a single lead object.
func LoadLeadFromFile(path string) (domain.Lead, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return domain.Lead{}, fmt.Errorf("read lead file: %w", err)
	}

	var lead domain.Lead
	if err := json.Unmarshal(b, &lead); err != nil {
		return domain.Lead{}, fmt.Errorf("unmarshal lead: %w", err)
	}
	return lead, nil
}
