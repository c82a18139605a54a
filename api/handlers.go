/*
handlers.go - HTTP API handlers for the prayer ledger

PURPOSE:
  Exposes the streak engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to the user's streak.Session.

ENDPOINTS:
  Check-ins:
    POST   /api/checkins               Record a check-in
    GET    /api/checkins/today         Has the user prayed today
    GET    /api/checkins/recent        Newest check-ins (?limit=, default 5)
    GET    /api/checkins/weekly        Check-ins in the 7-day window

  Stats:
    GET    /api/stats                  Full stats view
    GET    /api/stats/weekly           Weekly progress only

  Reference data:
    GET    /api/mysteries              Mystery categories
    GET    /api/intentions             Intention tags
    GET    /api/content/{category}/{slug}  Rendered article (?locale=)

IDENTITY:
  Check-in and stats routes run behind the identity middleware; handlers
  read the user from the request context. Reference data is public.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Invalid mystery, intention or body
  - 401: No user identity
  - 404: Unknown article
  - 429: Submitting too fast
  - 503: Ledger could not be loaded
  A check-in that was recorded but not saved is still 201, with a
  warning field.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - streak/session.go: What each handler delegates to
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/warp/prayer-ledger/content"
	"github.com/warp/prayer-ledger/generic"
	"github.com/warp/prayer-ledger/streak"
)

const (
	// MaxReflectionLength is counted in runes, after markup is stripped.
	MaxReflectionLength = 2000

	maxBodyBytes = 64 << 10

	persistenceWarning = "check-in recorded but not saved yet; saving will be retried"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Sessions *streak.Registry
	Content  content.Source
	Logger   *zap.Logger

	sanitizer *bluemonday.Policy
}

// NewHandler creates a handler. A nil content source serves no articles.
// "Now" comes from the sessions' clock.
func NewHandler(sessions *streak.Registry, src content.Source, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Sessions:  sessions,
		Content:   src,
		Logger:    logger,
		sanitizer: bluemonday.StrictPolicy(),
	}
}

// session resolves the caller's session, writing the error response
// itself when it fails.
func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*streak.Session, bool) {
	u, ok := UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "user identity required", nil)
		return nil, false
	}
	s, err := h.Sessions.Session(r.Context(), u.ID)
	if err != nil {
		if generic.IsClientError(err) {
			writeError(w, http.StatusBadRequest, "invalid user", err)
			return nil, false
		}
		h.Logger.Error("failed to open ledger", zap.String("user_id", string(u.ID)), zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "ledger unavailable, try again", err)
		return nil, false
	}
	return s, true
}

// =============================================================================
// CHECK-IN ENDPOINTS
// =============================================================================

// SubmitCheckIn handles POST /api/checkins.
func (h *Handler) SubmitCheckIn(w http.ResponseWriter, r *http.Request) {
	var req SubmitCheckInRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	input, err := h.parseCheckIn(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid check-in", err)
		return
	}

	s, ok := h.session(w, r)
	if !ok {
		return
	}

	checkIn, err := s.Submit(r.Context(), input)
	resp := SubmitCheckInResponse{
		CheckIn: toCheckInDTO(checkIn, s.Engine().Location()),
		Stats:   toStatsDTO(s.GetStats(), s.Engine().Location()),
	}
	switch {
	case err == nil:
	case generic.IsWarning(err):
		resp.Warning = persistenceWarning
	default:
		writeError(w, http.StatusInternalServerError, "failed to record check-in", err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *Handler) parseCheckIn(req SubmitCheckInRequest) (generic.CheckInInput, error) {
	mystery, err := generic.ParseMystery(req.Mystery)
	if err != nil {
		return generic.CheckInInput{}, err
	}
	intentions, err := generic.ParseIntentions(req.Intentions)
	if err != nil {
		return generic.CheckInInput{}, err
	}
	reflection := h.plainText(req.Reflection)
	if n := utf8.RuneCountInString(reflection); n > MaxReflectionLength {
		return generic.CheckInInput{}, fmt.Errorf("reflection: %d characters, at most %d allowed", n, MaxReflectionLength)
	}
	return generic.CheckInInput{Mystery: mystery, Reflection: reflection, Intentions: intentions}, nil
}

// plainText strips markup from user text. The sanitizer escapes what it
// keeps, so entities are decoded back before storing.
func (h *Handler) plainText(s string) string {
	return strings.TrimSpace(html.UnescapeString(h.sanitizer.Sanitize(s)))
}

// GetToday handles GET /api/checkins/today.
func (h *Handler) GetToday(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	day, checkedIn := s.Today()
	writeJSON(w, http.StatusOK, TodayDTO{Date: day, CheckedIn: checkedIn})
}

// GetRecent handles GET /api/checkins/recent?limit=N.
func (h *Handler) GetRecent(w http.ResponseWriter, r *http.Request) {
	limit := streak.DefaultRecentLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid limit", err)
			return
		}
		limit = n
	}

	s, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, CheckInListDTO{
		CheckIns: toCheckInDTOs(s.RecentActivity(limit), s.Engine().Location()),
	})
}

// GetWeeklyCheckIns handles GET /api/checkins/weekly.
func (h *Handler) GetWeeklyCheckIns(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, CheckInListDTO{
		CheckIns: toCheckInDTOs(s.WeeklyCheckIns(), s.Engine().Location()),
	})
}

// =============================================================================
// STATS ENDPOINTS
// =============================================================================

// GetStats handles GET /api/stats.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toStatsDTO(s.GetStats(), s.Engine().Location()))
}

// GetWeeklyStats handles GET /api/stats/weekly.
func (h *Handler) GetWeeklyStats(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	view := s.GetStats()
	writeJSON(w, http.StatusOK, WeeklyDTO{
		Progress:       view.WeeklyProgress,
		Target:         streak.WeekDays,
		CompletionRate: view.WeeklyCompletionRate,
		CheckIns:       toCheckInDTOs(s.WeeklyCheckIns(), s.Engine().Location()),
	})
}

// =============================================================================
// REFERENCE DATA
// =============================================================================

// ListMysteries handles GET /api/mysteries.
func (h *Handler) ListMysteries(w http.ResponseWriter, r *http.Request) {
	out := make([]OptionDTO, len(generic.Mysteries))
	for i, m := range generic.Mysteries {
		out[i] = OptionDTO{Value: string(m), Label: label(string(m))}
	}
	writeJSON(w, http.StatusOK, out)
}

// ListIntentions handles GET /api/intentions.
func (h *Handler) ListIntentions(w http.ResponseWriter, r *http.Request) {
	out := make([]OptionDTO, len(generic.Intentions))
	for i, t := range generic.Intentions {
		out[i] = OptionDTO{Value: string(t), Label: label(string(t))}
	}
	writeJSON(w, http.StatusOK, out)
}

// GetArticle handles GET /api/content/{category}/{slug}?locale=.
func (h *Handler) GetArticle(w http.ResponseWriter, r *http.Request) {
	if h.Content == nil {
		writeError(w, http.StatusNotFound, "article not found", nil)
		return
	}
	article, err := h.Content.Article(r.Context(),
		chi.URLParam(r, "category"), chi.URLParam(r, "slug"), r.URL.Query().Get("locale"))
	switch {
	case errors.Is(err, content.ErrNotFound):
		writeError(w, http.StatusNotFound, "article not found", nil)
		return
	case errors.Is(err, content.ErrInvalidPath):
		writeError(w, http.StatusBadRequest, "invalid article path", err)
		return
	case err != nil:
		h.Logger.Error("failed to load article", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load article", err)
		return
	}
	writeJSON(w, http.StatusOK, toArticleDTO(article))
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
