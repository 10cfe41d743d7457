package storage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/denisok6893-rgb/condo-unit-matching/internal/domain"
)

// UnitFilter narrows ListUnits. Limit <= 0 returns every matching row.
type UnitFilter struct {
	ProjectID string
	Building  string
	Status    string
	Sort      string // "", "price_asc", "price_desc"
	Limit     int
	Offset    int
}

// Repository is the persistence collaborator the matcher reads snapshots
// from. Get* report found=false rather than an error for missing rows.
type Repository interface {
	ListUnits(ctx context.Context, f UnitFilter) ([]domain.Unit, int, error)
	GetUnit(ctx context.Context, id string) (domain.Unit, bool, error)
	PutUnit(ctx context.Context, u domain.Unit) (domain.Unit, error)
	DeleteUnit(ctx context.Context, id string) (bool, error)

	ListLeads(ctx context.Context, projectID string) ([]domain.Lead, error)
	GetLead(ctx context.Context, id string) (domain.Lead, bool, error)
	PutLead(ctx context.Context, l domain.Lead) (domain.Lead, error)
	DeleteLead(ctx context.Context, id string) (bool, error)

	Ping(ctx context.Context) error
	Close() error
}

var (
	_ Repository = (*SQLiteStore)(nil)
	_ Repository = (*PostgresStore)(nil)
)

// now is truncated to what Postgres TIMESTAMPTZ keeps, so a stamp survives a
// round trip through either store unchanged.
func now() time.Time { return time.Now().UTC().Truncate(time.Microsecond) }

func orderClause(sort string) string {
	switch sort {
	case "price_asc":
		return "ORDER BY price ASC, id"
	case "price_desc":
		return "ORDER BY price DESC, id"
	}
	return "ORDER BY id"
}

// stampUnit assigns an id to new records and bumps the version stamp.
func stampUnit(u domain.Unit) domain.Unit {
	if u.ID == "" {
		u.ID = "u-" + uuid.NewString()
	}
	if u.Status == "" {
		u.Status = domain.UnitAvailable
	}
	u.UpdatedAt = now()
	return u
}

func stampLead(l domain.Lead) domain.Lead {
	if l.ID == "" {
		l.ID = "l-" + uuid.NewString()
	}
	if l.Status == "" {
		l.Status = domain.LeadNew
	}
	l.UpdatedAt = now()
	return l
}

// seedUnit is stampUnit that keeps a version stamp already present.
func seedUnit(u domain.Unit) domain.Unit {
	at := u.UpdatedAt
	u = stampUnit(u)
	if !at.IsZero() {
		u.UpdatedAt = at.UTC()
	}
	return u
}

func seedLead(l domain.Lead) domain.Lead {
	at := l.UpdatedAt
	l = stampLead(l)
	if !at.IsZero() {
		l.UpdatedAt = at.UTC()
	}
	return l
}
