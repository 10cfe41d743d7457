package matching

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/zeebo/blake3"
	"gopkg.in/yaml.v3"
)

// Weights defines the points each criterion is worth and the partial credit
// for near misses.
type Weights struct {
	Price             float64 `json:"price" yaml:"price"`
	Location          float64 `json:"location" yaml:"location"`
	Bedrooms          float64 `json:"bedrooms" yaml:"bedrooms"`
	BedroomsNearMiss  float64 `json:"bedrooms_near_miss" yaml:"bedrooms_near_miss"`
	Bathrooms         float64 `json:"bathrooms" yaml:"bathrooms"`
	BathroomsNearMiss float64 `json:"bathrooms_near_miss" yaml:"bathrooms_near_miss"`
	SquareFeet        float64 `json:"square_feet" yaml:"square_feet"`
}

// DefaultWeights returns the production weighting.
func DefaultWeights() Weights {
	return Weights{
		Price:             25,
		Location:          20,
		Bedrooms:          20,
		BedroomsNearMiss:  10,
		Bathrooms:         15,
		BathroomsNearMiss: 8,
		SquareFeet:        20,
	}
}

// Validate rejects negative weights and near-miss credit above full credit.
func (w Weights) Validate() error {
	for name, v := range map[string]float64{
		"price":               w.Price,
		"location":            w.Location,
		"bedrooms":            w.Bedrooms,
		"bedrooms_near_miss":  w.BedroomsNearMiss,
		"bathrooms":           w.Bathrooms,
		"bathrooms_near_miss": w.BathroomsNearMiss,
		"square_feet":         w.SquareFeet,
	} {
		if v < 0 {
			return fmt.Errorf("weight %s must be >= 0, got %v", name, v)
		}
	}
	if w.BedroomsNearMiss > w.Bedrooms {
		return fmt.Errorf("bedrooms_near_miss (%v) exceeds bedrooms (%v)", w.BedroomsNearMiss, w.Bedrooms)
	}
	if w.BathroomsNearMiss > w.Bathrooms {
		return fmt.Errorf("bathrooms_near_miss (%v) exceeds bathrooms (%v)", w.BathroomsNearMiss, w.Bathrooms)
	}
	return nil
}

// Fingerprint identifies this weighting in cache keys.
func (w Weights) Fingerprint() string {
	b, _ := json.Marshal(w)
	sum := blake3.Sum256(b)
	return fmt.Sprintf("%x", sum[:8])
}

// LoadWeightsFromFile loads weights from a JSON or YAML file (by extension).
// Fields missing from the file keep their default values.
func LoadWeightsFromFile(path string) (Weights, error) {
	w := DefaultWeights()
	b, err := os.ReadFile(path)
	if err != nil {
		return w, fmt.Errorf("read weights file: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &w); err != nil {
			return DefaultWeights(), fmt.Errorf("unmarshal weights: %w", err)
		}
	default:
		if err := json.Unmarshal(b, &w); err != nil {
			return DefaultWeights(), fmt.Errorf("unmarshal weights: %w", err)
		}
	}
	if err := w.Validate(); err != nil {
		return DefaultWeights(), fmt.Errorf("invalid weights: %w", err)
	}
	return w, nil
}
