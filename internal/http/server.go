package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	log "github.com/sirupsen/logrus"

	"github.com/denisok6893-rgb/condo-unit-matching/internal/domain"
	"github.com/denisok6893-rgb/condo-unit-matching/internal/events"
	"github.com/denisok6893-rgb/condo-unit-matching/internal/matching"
	"github.com/denisok6893-rgb/condo-unit-matching/internal/storage"
)

// Ranker ranks stored units for a stored lead. *matching.Engine and
// *cache.Ranker both satisfy it.
type Ranker interface {
	RankLead(ctx context.Context, lead domain.Lead, units []domain.Unit) ([]domain.RankedUnit, error)
}

// ChangeNotifier is told about every successful write.
type ChangeNotifier interface {
	NotifyChange(ctx context.Context, ev events.ChangeEvent) error
}

type Server struct {
	Engine   *matching.Engine
	Ranker   Ranker
	Store    storage.Repository
	Notifier ChangeNotifier

	corsOrigins []string
}

type Option func(*Server)

// WithRanker replaces the engine for stored-lead rankings, e.g. with a cache.
func WithRanker(r Ranker) Option { return func(s *Server) { s.Ranker = r } }

func WithNotifier(n ChangeNotifier) Option { return func(s *Server) { s.Notifier = n } }

func WithCORSOrigins(origins []string) Option {
	return func(s *Server) { s.corsOrigins = origins }
}

func NewServer(engine *matching.Engine, store storage.Repository, opts ...Option) *Server {
	s := &Server{Engine: engine, Ranker: engine, Store: store}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(30 * time.Second))
	if len(s.corsOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.corsOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
			MaxAge:         300,
		}))
	}

	r.Get("/health", s.handleHealth)
	r.Post("/match", s.handleMatch)
	r.Post("/score", s.handleScore)

	r.Route("/units", func(r chi.Router) {
		r.Get("/", s.handleUnitsList)
		r.Post("/", s.handleUnitCreate)
		r.Get("/{unitID}", s.handleUnitGet)
		r.Put("/{unitID}", s.handleUnitPut)
		r.Delete("/{unitID}", s.handleUnitDelete)
	})

	r.Route("/leads", func(r chi.Router) {
		r.Get("/", s.handleLeadsList)
		r.Post("/", s.handleLeadCreate)
		r.Get("/{leadID}", s.handleLeadGet)
		r.Put("/{leadID}", s.handleLeadPut)
		r.Delete("/{leadID}", s.handleLeadDelete)
		r.Get("/{leadID}/matches", s.handleLeadMatches)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.Store != nil {
		if err := s.Store.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ---- Matching ----

// handleLeadMatches ranks the units of a project for a stored lead.
// The project defaults to the lead's own; an empty project ranks every unit.
func (s *Server) handleLeadMatches(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	leadID := chi.URLParam(r, "leadID")

	lead, found, err := s.Store.GetLead(ctx, leadID)
	if err != nil {
		writeInternalError(w, r, err)
		return
	}
	if !found {
		writeNotFound(w, "lead not found")
		return
	}

	projectID := lead.ProjectID
	if q := r.URL.Query(); q.Has("project") {
		projectID = q.Get("project")
	}

	units, _, err := s.Store.ListUnits(ctx, storage.UnitFilter{ProjectID: projectID})
	if err != nil {
		writeInternalError(w, r, err)
		return
	}

	ranked, err := s.Ranker.RankLead(ctx, lead, units)
	if err != nil {
		writeInternalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNilRanked(ranked))
}

type MatchRequest struct {
	Lead  domain.Lead   `json:"lead"`
	Units []domain.Unit `json:"units"`
}

// handleMatch ranks caller-supplied snapshots; nothing is read or cached.
func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	var req MatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON")
		return
	}
	ranked := s.Engine.RankUnits(req.Units, req.Lead.Preferences())
	writeJSON(w, http.StatusOK, nonNilRanked(ranked))
}

type ScoreRequest struct {
	Lead domain.Lead `json:"lead"`
	Unit domain.Unit `json:"unit"`
}

type ScoreResponse struct {
	domain.MatchResult
	Badge domain.Badge `json:"badge,omitempty"`
}

func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	var req ScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON")
		return
	}
	res := s.Engine.Score(req.Unit, req.Lead.Preferences())
	resp := ScoreResponse{MatchResult: res}
	if res.IsMatch {
		resp.Badge = matching.BadgeFor(res.Score)
	}
	writeJSON(w, http.StatusOK, resp)
}

func nonNilRanked(r []domain.RankedUnit) []domain.RankedUnit {
	if r == nil {
		return []domain.RankedUnit{}
	}
	return r
}

// ---- Units ----

const maxPageSize = 200

type UnitsListResponse struct {
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
	Total  int           `json:"total"`
	Items  []domain.Unit `json:"items"`
}

func (s *Server) handleUnitsList(w http.ResponseWriter, r *http.Request) {
	limit, offset := parseLimitOffset(r, 20, 0)
	q := r.URL.Query()

	items, total, err := s.Store.ListUnits(r.Context(), storage.UnitFilter{
		ProjectID: q.Get("project"),
		Building:  q.Get("building"),
		Status:    q.Get("status"),
		Sort:      q.Get("sort"),
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		writeInternalError(w, r, err)
		return
	}
	if items == nil {
		items = []domain.Unit{}
	}

	writeJSON(w, http.StatusOK, UnitsListResponse{
		Limit:  limit,
		Offset: offset,
		Total:  total,
		Items:  items,
	})
}

func (s *Server) handleUnitGet(w http.ResponseWriter, r *http.Request) {
	u, found, err := s.Store.GetUnit(r.Context(), chi.URLParam(r, "unitID"))
	if err != nil {
		writeInternalError(w, r, err)
		return
	}
	if !found {
		writeNotFound(w, "unit not found")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleUnitCreate(w http.ResponseWriter, r *http.Request) {
	var u domain.Unit
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		writeBadRequest(w, "invalid JSON")
		return
	}
	if u.ID != "" {
		if _, exists, err := s.Store.GetUnit(r.Context(), u.ID); err != nil {
			writeInternalError(w, r, err)
			return
		} else if exists {
			writeError(w, http.StatusConflict, "CONFLICT", "unit already exists")
			return
		}
	}
	s.saveUnit(w, r, u, "", http.StatusCreated)
}

func (s *Server) handleUnitPut(w http.ResponseWriter, r *http.Request) {
	var u domain.Unit
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		writeBadRequest(w, "invalid JSON")
		return
	}
	u.ID = chi.URLParam(r, "unitID")

	prev, found, err := s.Store.GetUnit(r.Context(), u.ID)
	if err != nil {
		writeInternalError(w, r, err)
		return
	}
	previousProject := ""
	if found && prev.ProjectID != u.ProjectID {
		previousProject = prev.ProjectID
	}
	s.saveUnit(w, r, u, previousProject, http.StatusOK)
}

// saveUnit validates and stores u. previousProject is the project the unit
// left, if the write moved it.
func (s *Server) saveUnit(w http.ResponseWriter, r *http.Request, u domain.Unit, previousProject string, status int) {
	if err := u.Validate(); err != nil {
		writeValidationError(w, err)
		return
	}
	saved, err := s.Store.PutUnit(r.Context(), u)
	if err != nil {
		writeInternalError(w, r, err)
		return
	}
	s.notify(r.Context(), events.ChangeEvent{
		Entity:            events.EntityUnit,
		ID:                saved.ID,
		ProjectID:         saved.ProjectID,
		PreviousProjectID: previousProject,
		Op:                events.OpUpsert,
	})
	writeJSON(w, status, saved)
}

func (s *Server) handleUnitDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "unitID")

	u, found, err := s.Store.GetUnit(ctx, id)
	if err != nil {
		writeInternalError(w, r, err)
		return
	}
	if !found {
		writeNotFound(w, "unit not found")
		return
	}
	if _, err := s.Store.DeleteUnit(ctx, id); err != nil {
		writeInternalError(w, r, err)
		return
	}
	s.notify(ctx, events.ChangeEvent{Entity: events.EntityUnit, ID: id, ProjectID: u.ProjectID, Op: events.OpDelete})
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// ---- Leads ----

func (s *Server) handleLeadsList(w http.ResponseWriter, r *http.Request) {
	leads, err := s.Store.ListLeads(r.Context(), r.URL.Query().Get("project"))
	if err != nil {
		writeInternalError(w, r, err)
		return
	}
	if leads == nil {
		leads = []domain.Lead{}
	}
	writeJSON(w, http.StatusOK, leads)
}

func (s *Server) handleLeadGet(w http.ResponseWriter, r *http.Request) {
	l, found, err := s.Store.GetLead(r.Context(), chi.URLParam(r, "leadID"))
	if err != nil {
		writeInternalError(w, r, err)
		return
	}
	if !found {
		writeNotFound(w, "lead not found")
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (s *Server) handleLeadCreate(w http.ResponseWriter, r *http.Request) {
	var l domain.Lead
	if err := json.NewDecoder(r.Body).Decode(&l); err != nil {
		writeBadRequest(w, "invalid JSON")
		return
	}
	if l.ID != "" {
		if _, exists, err := s.Store.GetLead(r.Context(), l.ID); err != nil {
			writeInternalError(w, r, err)
			return
		} else if exists {
			writeError(w, http.StatusConflict, "CONFLICT", "lead already exists")
			return
		}
	}
	s.saveLead(w, r, l, http.StatusCreated)
}

func (s *Server) handleLeadPut(w http.ResponseWriter, r *http.Request) {
	var l domain.Lead
	if err := json.NewDecoder(r.Body).Decode(&l); err != nil {
		writeBadRequest(w, "invalid JSON")
		return
	}
	l.ID = chi.URLParam(r, "leadID")
	s.saveLead(w, r, l, http.StatusOK)
}

func (s *Server) saveLead(w http.ResponseWriter, r *http.Request, l domain.Lead, status int) {
	if err := l.Validate(); err != nil {
		writeValidationError(w, err)
		return
	}
	saved, err := s.Store.PutLead(r.Context(), l)
	if err != nil {
		writeInternalError(w, r, err)
		return
	}
	s.notify(r.Context(), events.ChangeEvent{Entity: events.EntityLead, ID: saved.ID, ProjectID: saved.ProjectID, Op: events.OpUpsert})
	writeJSON(w, status, saved)
}

func (s *Server) handleLeadDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "leadID")

	l, found, err := s.Store.GetLead(ctx, id)
	if err != nil {
		writeInternalError(w, r, err)
		return
	}
	if !found {
		writeNotFound(w, "lead not found")
		return
	}
	if _, err := s.Store.DeleteLead(ctx, id); err != nil {
		writeInternalError(w, r, err)
		return
	}
	s.notify(ctx, events.ChangeEvent{Entity: events.EntityLead, ID: id, ProjectID: l.ProjectID, Op: events.OpDelete})
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// notify never fails the request; a missed event only delays re-scoring
// until the next change or read.
func (s *Server) notify(ctx context.Context, ev events.ChangeEvent) {
	if s.Notifier == nil {
		return
	}
	if err := s.Notifier.NotifyChange(ctx, ev); err != nil {
		log.WithError(err).WithFields(log.Fields{"entity": ev.Entity, "id": ev.ID}).Warn("change notification failed")
	}
}

func parseLimitOffset(r *http.Request, defLimit, defOffset int) (int, int) {
	q := r.URL.Query()

	limit := defLimit
	if v := q.Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	if limit <= 0 {
		limit = defLimit
	}
	if limit > maxPageSize {
		limit = 200
	}

	offset := defOffset
	if v := q.Get("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			offset = parsed
		}
	}
	if offset < 0 {
		offset = defOffset
	}

	return limit, offset
}
