package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/denisok6893-rgb/condo-unit-matching/internal/domain"
)

// PostgresStore keeps units and leads in Postgres. Lead preference columns
// are NUMERIC and come back as text, matching the Lead model.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func OpenPostgres(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS units (
  id TEXT PRIMARY KEY,
  project_id TEXT NOT NULL DEFAULT '',
  unit_number TEXT NOT NULL DEFAULT '',
  building TEXT NOT NULL,
  floor INTEGER NOT NULL DEFAULT 0,
  price NUMERIC(14,2) NOT NULL,
  bedrooms INTEGER NOT NULL,
  bathrooms NUMERIC(4,2) NOT NULL,
  square_feet INTEGER NOT NULL,
  status TEXT NOT NULL DEFAULT 'available',
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_units_project ON units(project_id);
CREATE INDEX IF NOT EXISTS idx_units_price ON units(price);

CREATE TABLE IF NOT EXISTS leads (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  email TEXT NOT NULL DEFAULT '',
  phone TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL DEFAULT 'new',
  agent_id TEXT NOT NULL DEFAULT '',
  project_id TEXT NOT NULL DEFAULT '',
  target_price_min NUMERIC(14,2),
  target_price_max NUMERIC(14,2),
  target_bedrooms INTEGER,
  target_bathrooms NUMERIC(4,2),
  target_sqft_min NUMERIC(10,2),
  target_sqft_max NUMERIC(10,2),
  target_locations TEXT[] NOT NULL DEFAULT '{}',
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_leads_project ON leads(project_id);
`
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) CountUnits(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM units`).Scan(&n)
	return n, err
}

// UpsertMany inserts the seed dataset without duplicating by id.
func (s *PostgresStore) UpsertMany(ctx context.Context, seed Seed) error {
	batch := &pgx.Batch{}
	for _, u := range seed.Units {
		batch.Queue(pgUnitInsert+` ON CONFLICT (id) DO NOTHING`, pgUnitArgs(seedUnit(u))...)
	}
	for _, l := range seed.Leads {
		batch.Queue(pgLeadInsert+` ON CONFLICT (id) DO NOTHING`, pgLeadArgs(seedLead(l))...)
	}
	if batch.Len() == 0 {
		return nil
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	return nil
}

const pgUnitSelect = `SELECT id, project_id, unit_number, building, floor, price::float8, bedrooms,
  bathrooms::float8, square_feet, status, updated_at FROM units`

const pgUnitInsert = `INSERT INTO units
(id, project_id, unit_number, building, floor, price, bedrooms, bathrooms, square_feet, status, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

func pgUnitArgs(u domain.Unit) []any {
	return []any{
		u.ID, u.ProjectID, u.UnitNumber, u.Building, u.Floor, u.Price,
		u.Bedrooms, u.Bathrooms, u.SquareFeet, u.Status, u.UpdatedAt,
	}
}

func pgScanUnit(r pgx.Row) (domain.Unit, error) {
	var u domain.Unit
	err := r.Scan(
		&u.ID, &u.ProjectID, &u.UnitNumber, &u.Building, &u.Floor, &u.Price,
		&u.Bedrooms, &u.Bathrooms, &u.SquareFeet, &u.Status, &u.UpdatedAt,
	)
	u.UpdatedAt = u.UpdatedAt.UTC()
	return u, err
}

func (s *PostgresStore) PutUnit(ctx context.Context, u domain.Unit) (domain.Unit, error) {
	u = stampUnit(u)
	_, err := s.pool.Exec(ctx, pgUnitInsert+`
ON CONFLICT (id) DO UPDATE SET
  project_id = EXCLUDED.project_id, unit_number = EXCLUDED.unit_number,
  building = EXCLUDED.building, floor = EXCLUDED.floor, price = EXCLUDED.price,
  bedrooms = EXCLUDED.bedrooms, bathrooms = EXCLUDED.bathrooms,
  square_feet = EXCLUDED.square_feet, status = EXCLUDED.status,
  updated_at = EXCLUDED.updated_at`, pgUnitArgs(u)...)
	if err != nil {
		return domain.Unit{}, fmt.Errorf("put unit: %w", err)
	}
	return u, nil
}

func (s *PostgresStore) DeleteUnit(ctx context.Context, id string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM units WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete unit: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) GetUnit(ctx context.Context, id string) (domain.Unit, bool, error) {
	u, err := pgScanUnit(s.pool.QueryRow(ctx, pgUnitSelect+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Unit{}, false, nil
	}
	if err != nil {
		return domain.Unit{}, false, fmt.Errorf("get unit: %w", err)
	}
	return u, true, nil
}

func (s *PostgresStore) ListUnits(ctx context.Context, f UnitFilter) ([]domain.Unit, int, error) {
	where := make([]string, 0, 3)
	args := make([]any, 0, 5)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if f.ProjectID != "" {
		where = append(where, "project_id = "+arg(f.ProjectID))
	}
	if b := strings.TrimSpace(f.Building); b != "" {
		where = append(where, "LOWER(building) = LOWER("+arg(b)+")")
	}
	if f.Status != "" {
		where = append(where, "status = "+arg(f.Status))
	}

	whereSQL := ""
	if len(where) > 0 {
		whereSQL = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM units"+whereSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count units: %w", err)
	}

	q := pgUnitSelect + whereSQL + "\n" + orderClause(f.Sort)
	if f.Limit > 0 {
		q += "\nLIMIT " + arg(f.Limit) + " OFFSET " + arg(max(f.Offset, 0))
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list units: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Unit, 0)
	for rows.Next() {
		u, err := pgScanUnit(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan unit: %w", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

const pgLeadSelect = `SELECT id, name, email, phone, status, agent_id, project_id,
  target_price_min::text, target_price_max::text, target_bedrooms::text, target_bathrooms::text,
  target_sqft_min::text, target_sqft_max::text, target_locations, updated_at FROM leads`

const pgLeadInsert = `INSERT INTO leads
(id, name, email, phone, status, agent_id, project_id,
 target_price_min, target_price_max, target_bedrooms, target_bathrooms,
 target_sqft_min, target_sqft_max, target_locations, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

// numericArg keeps unparsable preference text out of NUMERIC columns; it is
// stored as NULL, which reads back as "not specified".
func numericArg(d domain.Decimal) any {
	v, ok := d.Float()
	if !ok {
		return nil
	}
	return v
}

func intArg(d domain.Decimal) any {
	v, ok := d.Int()
	if !ok {
		return nil
	}
	return v
}

func pgLeadArgs(l domain.Lead) []any {
	return []any{
		l.ID, l.Name, l.Email, l.Phone, l.Status, l.AgentID, l.ProjectID,
		numericArg(l.TargetPriceMin), numericArg(l.TargetPriceMax), intArg(l.TargetBedrooms), numericArg(l.TargetBathrooms),
		numericArg(l.TargetSqftMin), numericArg(l.TargetSqftMax), nonNil(l.TargetLocations), l.UpdatedAt,
	}
}

func pgScanLead(r pgx.Row) (domain.Lead, error) {
	var l domain.Lead
	var priceMin, priceMax, beds, baths, sqftMin, sqftMax *string
	if err := r.Scan(
		&l.ID, &l.Name, &l.Email, &l.Phone, &l.Status, &l.AgentID, &l.ProjectID,
		&priceMin, &priceMax, &beds, &baths, &sqftMin, &sqftMax, &l.TargetLocations, &l.UpdatedAt,
	); err != nil {
		return domain.Lead{}, err
	}
	l.TargetPriceMin = textDecimal(priceMin)
	l.TargetPriceMax = textDecimal(priceMax)
	l.TargetBedrooms = textDecimal(beds)
	l.TargetBathrooms = textDecimal(baths)
	l.TargetSqftMin = textDecimal(sqftMin)
	l.TargetSqftMax = textDecimal(sqftMax)
	l.UpdatedAt = l.UpdatedAt.UTC()
	return l, nil
}

func textDecimal(s *string) domain.Decimal {
	if s == nil {
		return ""
	}
	return domain.Decimal(*s)
}

func (s *PostgresStore) PutLead(ctx context.Context, l domain.Lead) (domain.Lead, error) {
	l = stampLead(l)
	_, err := s.pool.Exec(ctx, pgLeadInsert+`
ON CONFLICT (id) DO UPDATE SET
  name = EXCLUDED.name, email = EXCLUDED.email, phone = EXCLUDED.phone,
  status = EXCLUDED.status, agent_id = EXCLUDED.agent_id, project_id = EXCLUDED.project_id,
  target_price_min = EXCLUDED.target_price_min, target_price_max = EXCLUDED.target_price_max,
  target_bedrooms = EXCLUDED.target_bedrooms, target_bathrooms = EXCLUDED.target_bathrooms,
  target_sqft_min = EXCLUDED.target_sqft_min, target_sqft_max = EXCLUDED.target_sqft_max,
  target_locations = EXCLUDED.target_locations, updated_at = EXCLUDED.updated_at`, pgLeadArgs(l)...)
	if err != nil {
		return domain.Lead{}, fmt.Errorf("put lead: %w", err)
	}
	return l, nil
}

func (s *PostgresStore) DeleteLead(ctx context.Context, id string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM leads WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete lead: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) GetLead(ctx context.Context, id string) (domain.Lead, bool, error) {
	l, err := pgScanLead(s.pool.QueryRow(ctx, pgLeadSelect+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Lead{}, false, nil
	}
	if err != nil {
		return domain.Lead{}, false, fmt.Errorf("get lead: %w", err)
	}
	return l, true, nil
}

func (s *PostgresStore) ListLeads(ctx context.Context, projectID string) ([]domain.Lead, error) {
	q := pgLeadSelect
	var args []any
	if projectID != "" {
		q += ` WHERE project_id = $1`
		args = append(args, projectID)
	}
	q += ` ORDER BY id`

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Lead, 0)
	for rows.Next() {
		l, err := pgScanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lead: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
