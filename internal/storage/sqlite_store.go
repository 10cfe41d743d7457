package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/denisok6893-rgb/condo-unit-matching/internal/domain"
)

type SQLiteStore struct {
	db *sql.DB
}

func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one writer at a time; also keeps ":memory:" databases on a single connection
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`PRAGMA journal_mode=WAL;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set journal mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys=ON;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLiteStore) EnsureSchema(ctx context.Context) error {
	stmts := []string{`
CREATE TABLE IF NOT EXISTS units (
  id TEXT PRIMARY KEY,
  project_id TEXT NOT NULL DEFAULT '',
  unit_number TEXT NOT NULL DEFAULT '',
  building TEXT NOT NULL,
  floor INTEGER NOT NULL DEFAULT 0,
  price REAL NOT NULL,
  bedrooms INTEGER NOT NULL,
  bathrooms REAL NOT NULL,
  square_feet INTEGER NOT NULL,
  status TEXT NOT NULL DEFAULT 'available',
  updated_at INTEGER NOT NULL
);`, `
CREATE TABLE IF NOT EXISTS leads (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  email TEXT NOT NULL DEFAULT '',
  phone TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL DEFAULT 'new',
  agent_id TEXT NOT NULL DEFAULT '',
  project_id TEXT NOT NULL DEFAULT '',
  target_price_min TEXT NOT NULL DEFAULT '',
  target_price_max TEXT NOT NULL DEFAULT '',
  target_bedrooms TEXT NOT NULL DEFAULT '',
  target_bathrooms TEXT NOT NULL DEFAULT '',
  target_sqft_min TEXT NOT NULL DEFAULT '',
  target_sqft_max TEXT NOT NULL DEFAULT '',
  target_locations_json TEXT NOT NULL DEFAULT '[]',
  updated_at INTEGER NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS idx_units_project ON units(project_id);`,
		`CREATE INDEX IF NOT EXISTS idx_units_price ON units(price);`,
		`CREATE INDEX IF NOT EXISTS idx_leads_project ON leads(project_id);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) CountUnits(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM units`).Scan(&n)
	return n, err
}

// UpsertMany inserts the seed dataset without duplicating by id.
func (s *SQLiteStore) UpsertMany(ctx context.Context, seed Seed) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, u := range seed.Units {
		u = seedUnit(u)
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO units `+unitInsertCols, unitArgs(u)...); err != nil {
			return fmt.Errorf("seed unit %s: %w", u.ID, err)
		}
	}
	for _, l := range seed.Leads {
		l = seedLead(l)
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO leads `+leadInsertCols, leadArgs(l)...); err != nil {
			return fmt.Errorf("seed lead %s: %w", l.ID, err)
		}
	}
	return tx.Commit()
}

const unitCols = `id, project_id, unit_number, building, floor, price, bedrooms, bathrooms, square_feet, status, updated_at`

const unitInsertCols = `(` + unitCols + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func unitArgs(u domain.Unit) []any {
	return []any{
		u.ID, u.ProjectID, u.UnitNumber, u.Building, u.Floor, u.Price,
		u.Bedrooms, u.Bathrooms, u.SquareFeet, u.Status, u.UpdatedAt.UnixNano(),
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUnit(r rowScanner) (domain.Unit, error) {
	var u domain.Unit
	var updated int64
	if err := r.Scan(
		&u.ID, &u.ProjectID, &u.UnitNumber, &u.Building, &u.Floor, &u.Price,
		&u.Bedrooms, &u.Bathrooms, &u.SquareFeet, &u.Status, &updated,
	); err != nil {
		return domain.Unit{}, err
	}
	u.UpdatedAt = time.Unix(0, updated).UTC()
	return u, nil
}

func (s *SQLiteStore) PutUnit(ctx context.Context, u domain.Unit) (domain.Unit, error) {
	u = stampUnit(u)
	_, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO units `+unitInsertCols, unitArgs(u)...)
	if err != nil {
		return domain.Unit{}, fmt.Errorf("put unit: %w", err)
	}
	return u, nil
}

func (s *SQLiteStore) DeleteUnit(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM units WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete unit: %w", err)
	}
	aff, _ := res.RowsAffected()
	return aff > 0, nil
}

func (s *SQLiteStore) GetUnit(ctx context.Context, id string) (domain.Unit, bool, error) {
	u, err := scanUnit(s.db.QueryRowContext(ctx, `SELECT `+unitCols+` FROM units WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return domain.Unit{}, false, nil
	}
	if err != nil {
		return domain.Unit{}, false, fmt.Errorf("get unit: %w", err)
	}
	return u, true, nil
}

func (s *SQLiteStore) ListUnits(ctx context.Context, f UnitFilter) ([]domain.Unit, int, error) {
	where := make([]string, 0, 3)
	args := make([]any, 0, 5)

	if f.ProjectID != "" {
		where = append(where, "project_id = ?")
		args = append(args, f.ProjectID)
	}
	if strings.TrimSpace(f.Building) != "" {
		where = append(where, "LOWER(building) = LOWER(?)")
		args = append(args, strings.TrimSpace(f.Building))
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}

	whereSQL := ""
	if len(where) > 0 {
		whereSQL = "WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM units "+whereSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count units: %w", err)
	}

	rowsSQL := "SELECT " + unitCols + " FROM units " + whereSQL + "\n" + orderClause(f.Sort)
	if f.Limit > 0 {
		rowsSQL += "\nLIMIT ? OFFSET ?"
		args = append(args, f.Limit, max(f.Offset, 0))
	}

	rows, err := s.db.QueryContext(ctx, rowsSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list units: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Unit, 0)
	for rows.Next() {
		u, err := scanUnit(rows)
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

const leadCols = `id, name, email, phone, status, agent_id, project_id,
  target_price_min, target_price_max, target_bedrooms, target_bathrooms,
  target_sqft_min, target_sqft_max, target_locations_json, updated_at`

const leadInsertCols = `(` + leadCols + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func leadArgs(l domain.Lead) []any {
	locs, _ := json.Marshal(nonNil(l.TargetLocations))
	return []any{
		l.ID, l.Name, l.Email, l.Phone, l.Status, l.AgentID, l.ProjectID,
		string(l.TargetPriceMin), string(l.TargetPriceMax), string(l.TargetBedrooms), string(l.TargetBathrooms),
		string(l.TargetSqftMin), string(l.TargetSqftMax), string(locs), l.UpdatedAt.UnixNano(),
	}
}

func scanLead(r rowScanner) (domain.Lead, error) {
	var l domain.Lead
	var priceMin, priceMax, beds, baths, sqftMin, sqftMax, locsJSON string
	var updated int64
	if err := r.Scan(
		&l.ID, &l.Name, &l.Email, &l.Phone, &l.Status, &l.AgentID, &l.ProjectID,
		&priceMin, &priceMax, &beds, &baths, &sqftMin, &sqftMax, &locsJSON, &updated,
	); err != nil {
		return domain.Lead{}, err
	}
	l.TargetPriceMin = domain.Decimal(priceMin)
	l.TargetPriceMax = domain.Decimal(priceMax)
	l.TargetBedrooms = domain.Decimal(beds)
	l.TargetBathrooms = domain.Decimal(baths)
	l.TargetSqftMin = domain.Decimal(sqftMin)
	l.TargetSqftMax = domain.Decimal(sqftMax)
	_ = json.Unmarshal([]byte(locsJSON), &l.TargetLocations)
	l.UpdatedAt = time.Unix(0, updated).UTC()
	return l, nil
}

func (s *SQLiteStore) PutLead(ctx context.Context, l domain.Lead) (domain.Lead, error) {
	l = stampLead(l)
	if _, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO leads `+leadInsertCols, leadArgs(l)...); err != nil {
		return domain.Lead{}, fmt.Errorf("put lead: %w", err)
	}
	return l, nil
}

func (s *SQLiteStore) DeleteLead(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM leads WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete lead: %w", err)
	}
	aff, _ := res.RowsAffected()
	return aff > 0, nil
}

func (s *SQLiteStore) GetLead(ctx context.Context, id string) (domain.Lead, bool, error) {
	l, err := scanLead(s.db.QueryRowContext(ctx, `SELECT `+leadCols+` FROM leads WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return domain.Lead{}, false, nil
	}
	if err != nil {
		return domain.Lead{}, false, fmt.Errorf("get lead: %w", err)
	}
	return l, true, nil
}

func (s *SQLiteStore) ListLeads(ctx context.Context, projectID string) ([]domain.Lead, error) {
	q := `SELECT ` + leadCols + ` FROM leads`
	var args []any
	if projectID != "" {
		q += ` WHERE project_id = ?`
		args = append(args, projectID)
	}
	q += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Lead, 0)
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lead: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
