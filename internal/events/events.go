// Package events carries record-change notifications in and recomputed match
// lists out over Kafka.
package events

import (
	"time"

	"github.com/denisok6893-rgb/condo-unit-matching/internal/domain"
)

const (
	EntityUnit = "unit"
	EntityLead = "lead"

	OpUpsert = "upsert"
	OpDelete = "delete"
)

// ChangeEvent says a unit or lead row changed. PreviousProjectID is set when
// an update moved the record out of another project.
type ChangeEvent struct {
	Entity            string    `json:"entity"`
	ID                string    `json:"id"`
	ProjectID         string    `json:"projectId,omitempty"`
	PreviousProjectID string    `json:"previousProjectId,omitempty"`
	Op                string    `json:"op"`
	At                time.Time `json:"at"`
}

// MatchSummary is the compact form of a ranked unit sent downstream.
type MatchSummary struct {
	UnitID  string       `json:"unitId"`
	Score   int          `json:"score"`
	Badge   domain.Badge `json:"badge,omitempty"`
	Reasons []string     `json:"reasons"`
}

// MatchesUpdated is the full, recomputed match list for one lead.
type MatchesUpdated struct {
	LeadID    string         `json:"leadId"`
	ProjectID string         `json:"projectId,omitempty"`
	Matches   []MatchSummary `json:"matches"`
	At        time.Time      `json:"at"`
}

func summarize(ranked []domain.RankedUnit) []MatchSummary {
	out := make([]MatchSummary, 0, len(ranked))
	for _, r := range ranked {
		out = append(out, MatchSummary{
			UnitID:  r.ID,
			Score:   r.MatchScore,
			Badge:   r.MatchBadge,
			Reasons: r.MatchReasons,
		})
	}
	return out
}
