/*
handlers.go - HTTP API handlers for the habit check-in service

PURPOSE:
  Exposes the check-in engine and the reward vault via REST API. Handles
  HTTP request/response, JSON serialization, and delegates to the domain.

ENDPOINTS:
  Profiles:
    GET    /api/profiles                          List the caller's profiles
    POST   /api/profiles                          Create profile + questionnaire
    GET    /api/profiles/{id}                     Get profile
    PUT    /api/profiles/{id}                     Partial update
    DELETE /api/profiles/{id}                     Delete profile and its records

  Questionnaire:
    GET    /api/profiles/{id}/questionnaire       Questions and max score
    PUT    /api/profiles/{id}/questionnaire       Replace questions

  Check-ins:
    POST   /api/profiles/{id}/checkins            Submit today's check-in
    POST   /api/profiles/{id}/checkins/remedial   Make up a missed day
    GET    /api/profiles/{id}/missing             Missed days in the window
    GET    /api/profiles/{id}/streak              Current streak
    GET    /api/profiles/{id}/stats               Aggregate statistics
    GET    /api/checkins                          Record history (paged)
    GET    /api/today                             Today's due profiles

  Vault:
    GET    /api/vault                             Balance summary
    GET    /api/vault/transactions                Transaction history
    POST   /api/vault/withdrawals                 Spend from the vault

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Service: check-in orchestration (checkin.Service)
  - Ledger: vault reads and withdrawals
  - Logger: zap logger for unexpected failures

REQUEST FLOW:
  1. Resolve the user from the auth context
  2. Decode and validate input (validator tags)
  3. Call the service
  4. Serialize response
  5. Map errors through writeServiceError

ERROR HANDLING:
  Errors are returned as JSON with a stable code:
  - 400: VALIDATION_ERROR (bad body, bad query, domain validation)
  - 401: Missing or invalid token
  - 404: NOT_FOUND (profile or questionnaire, always user-scoped)
  - 409: ALREADY_CHECKED_IN
  - 422: INVALID_CHECKIN_DATE, INSUFFICIENT_BALANCE
  - 500: INTERNAL_ERROR (details are logged, not returned)

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - auth.go: User resolution
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/warp/habit-vault/calendar"
	"github.com/warp/habit-vault/checkin"
	"github.com/warp/habit-vault/vault"
	"go.uber.org/zap"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Pinger reports storage health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	Service *checkin.Service
	Ledger  vault.Ledger
	Health  Pinger
	Logger  *zap.Logger

	validate *validator.Validate
}

// NewHandler creates a new handler. health may be nil.
func NewHandler(svc *checkin.Service, ledger vault.Ledger, health Pinger, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Service:  svc,
		Ledger:   ledger,
		Health:   health,
		Logger:   logger,
		validate: newValidator(),
	}
}

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// =============================================================================
// PROFILE HANDLERS
// =============================================================================

func (h *Handler) ListProfiles(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.Service.ListProfiles(r.Context(), UserIDFromContext(r.Context()))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	dtos := make([]ProfileDTO, 0, len(profiles))
	for _, p := range profiles {
		dtos = append(dtos, toProfileDTO(p))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateProfile(w http.ResponseWriter, r *http.Request) {
	var req CreateProfileRequest
	if !h.decode(w, r, &req) {
		return
	}

	p, q, err := h.Service.CreateProfile(r.Context(), UserIDFromContext(r.Context()), req.toInput())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, ProfileDetailResponse{
		Profile:       toProfileDTO(*p),
		Questionnaire: toQuestionnaireDTO(*q),
	})
}

func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := h.Service.GetProfile(r.Context(), UserIDFromContext(r.Context()), profileParam(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileDTO(*p))
}

func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req UpdateProfileRequest
	if !h.decode(w, r, &req) {
		return
	}

	p, err := h.Service.UpdateProfile(r.Context(), UserIDFromContext(r.Context()), profileParam(r), req.toUpdate())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileDTO(*p))
}

func (h *Handler) DeleteProfile(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.DeleteProfile(r.Context(), UserIDFromContext(r.Context()), profileParam(r)); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// QUESTIONNAIRE HANDLERS
// =============================================================================

func (h *Handler) GetQuestionnaire(w http.ResponseWriter, r *http.Request) {
	q, err := h.Service.GetQuestionnaire(r.Context(), UserIDFromContext(r.Context()), profileParam(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toQuestionnaireDTO(*q))
}

// UpdateQuestionnaire replaces the question list. Existing records keep the
// score they were given.
func (h *Handler) UpdateQuestionnaire(w http.ResponseWriter, r *http.Request) {
	var req UpdateQuestionnaireRequest
	if !h.decode(w, r, &req) {
		return
	}

	q, err := h.Service.UpdateQuestionnaire(r.Context(), UserIDFromContext(r.Context()), profileParam(r),
		req.Title, questionsToDomain(req.Questions))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toQuestionnaireDTO(*q))
}

// =============================================================================
// CHECK-IN HANDLERS
// =============================================================================

func (h *Handler) SubmitCheckin(w http.ResponseWriter, r *http.Request) {
	var req SubmitCheckinRequest
	if !h.decode(w, r, &req) {
		return
	}

	rec, err := h.Service.SubmitCheckin(r.Context(), UserIDFromContext(r.Context()), profileParam(r), req.Answers)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRecordDTO(*rec))
}

func (h *Handler) SubmitRemedialCheckin(w http.ResponseWriter, r *http.Request) {
	var req RemedialCheckinRequest
	if !h.decode(w, r, &req) {
		return
	}

	// The datetime tag already checked the layout.
	date := calendar.MustParse(req.Date)

	rec, err := h.Service.SubmitRemedialCheckin(r.Context(), UserIDFromContext(r.Context()), profileParam(r), date, req.Answers)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRecordDTO(*rec))
}

// GetMissingDates lists missed check-in days, oldest first.
// Query: window (1..3, default 3)
func (h *Handler) GetMissingDates(w http.ResponseWriter, r *http.Request) {
	window, err := intQuery(r, "window", checkin.RemedialWindowDays)
	if err != nil {
		writeValidationError(w, "window", err.Error())
		return
	}
	if window < 1 || window > checkin.RemedialWindowDays {
		writeValidationError(w, "window", "must be between 1 and "+strconv.Itoa(checkin.RemedialWindowDays))
		return
	}

	id := profileParam(r)
	dates, err := h.Service.MissingDates(r.Context(), UserIDFromContext(r.Context()), id, window)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MissingDatesResponse{ProfileID: string(id), Dates: nonNilDates(dates)})
}

func (h *Handler) GetStreak(w http.ResponseWriter, r *http.Request) {
	id := profileParam(r)
	streak, err := h.Service.Streak(r.Context(), UserIDFromContext(r.Context()), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, StreakResponse{ProfileID: string(id), Streak: streak})
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Service.Stats(r.Context(), UserIDFromContext(r.Context()), profileParam(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toStatsDTO(*stats))
}

// ListRecords returns check-in history, newest first.
// Query: profile_id, from, to (YYYY-MM-DD), limit, offset
func (h *Handler) ListRecords(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := checkin.RecordFilter{ProfileID: checkin.ProfileID(q.Get("profile_id"))}

	var err error
	if filter.From, err = dateQuery(r, "from"); err != nil {
		writeValidationError(w, "from", "use YYYY-MM-DD")
		return
	}
	if filter.To, err = dateQuery(r, "to"); err != nil {
		writeValidationError(w, "to", "use YYYY-MM-DD")
		return
	}
	if filter.Limit, err = intQuery(r, "limit", defaultPageSize); err != nil {
		writeValidationError(w, "limit", err.Error())
		return
	}
	if filter.Offset, err = intQuery(r, "offset", 0); err != nil {
		writeValidationError(w, "offset", err.Error())
		return
	}
	if filter.Limit == 0 || filter.Limit > maxPageSize {
		filter.Limit = maxPageSize
	}

	page, err := h.Service.ListRecords(r.Context(), UserIDFromContext(r.Context()), filter)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	resp := RecordPageResponse{
		Records: make([]RecordDTO, 0, len(page.Records)),
		Total:   page.Total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}
	for _, rec := range page.Records {
		resp.Records = append(resp.Records, toRecordDTO(rec))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) GetToday(w http.ResponseWriter, r *http.Request) {
	today, items, err := h.Service.TodayStatus(r.Context(), UserIDFromContext(r.Context()))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	resp := TodayResponse{Date: today, Items: make([]TodayItemDTO, 0, len(items))}
	for _, it := range items {
		item := TodayItemDTO{Profile: toProfileDTO(it.Profile), Completed: it.Completed}
		if it.Record != nil {
			rec := toRecordDTO(*it.Record)
			item.Record = &rec
		}
		resp.Items = append(resp.Items, item)
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// VAULT HANDLERS
// =============================================================================

func (h *Handler) GetVault(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Ledger.Summary(r.Context(), UserIDFromContext(r.Context()))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toVaultSummaryDTO(summary))
}

func (h *Handler) GetVaultTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := h.Ledger.History(r.Context(), UserIDFromContext(r.Context()))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	dtos := make([]TransactionDTO, 0, len(txs))
	for _, tx := range txs {
		dtos = append(dtos, toTransactionDTO(tx))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	var req WithdrawRequest
	if !h.decode(w, r, &req) {
		return
	}

	tx, err := h.Ledger.Withdraw(r.Context(), UserIDFromContext(r.Context()), req.Amount, req.Description)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionDTO(tx))
}

// =============================================================================
// HEALTH
// =============================================================================

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	if h.Health != nil {
		if err := h.Health.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "Storage unavailable", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func profileParam(r *http.Request) checkin.ProfileID {
	return checkin.ProfileID(chi.URLParam(r, "id"))
}

func intQuery(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New("must be an integer")
	}
	return n, nil
}

func dateQuery(r *http.Request, name string) (calendar.LocalDate, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return calendar.LocalDate{}, nil
	}
	return calendar.Parse(raw)
}

// decode reads a JSON body into dst and runs tag validation. It writes the
// error response itself and reports whether the handler should continue.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return false
		}
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:    "Validation failed",
			Code:     string(checkin.KindValidation),
			Problems: problemsFrom(verrs),
		})
		return false
	}
	return true
}

// problemsFrom drops the top-level struct name from each namespace, so
// "CreateProfileRequest.questions[0].type" becomes "questions[0].type".
func problemsFrom(verrs validator.ValidationErrors) []checkin.Problem {
	out := make([]checkin.Problem, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		if _, rest, ok := strings.Cut(field, "."); ok {
			field = rest
		}
		reason := fe.Tag()
		if fe.Param() != "" {
			reason += "=" + fe.Param()
		}
		out = append(out, checkin.Problem{Field: field, Reason: reason})
	}
	return out
}

// writeServiceError maps domain errors to HTTP responses.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var shortage *vault.InsufficientBalanceError
	switch {
	case errors.As(err, &shortage):
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "Insufficient balance",
			Code:    "INSUFFICIENT_BALANCE",
			Details: "shortfall " + shortage.Shortfall().String(),
		})
		return
	case errors.Is(err, vault.ErrInvalidAmount):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:    "Validation failed",
			Code:     string(checkin.KindValidation),
			Problems: []checkin.Problem{{Field: "amount", Reason: err.Error()}},
		})
		return
	case errors.Is(err, vault.ErrTransactionNotFound):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: string(checkin.KindNotFound)})
		return
	}

	kind := checkin.KindOf(err)
	resp := ErrorResponse{Error: err.Error(), Code: string(kind)}

	var status int
	switch kind {
	case checkin.KindNotFound:
		status = http.StatusNotFound
	case checkin.KindInvalidCheckinDate:
		status = http.StatusUnprocessableEntity
	case checkin.KindAlreadyCheckedIn:
		status = http.StatusConflict
	case checkin.KindValidation:
		status = http.StatusBadRequest
		resp.Error = "Validation failed"
		resp.Problems = checkin.ProblemsOf(err)
	default:
		status = http.StatusInternalServerError
		resp.Error = "Internal error"
		h.Logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
	}
	writeJSON(w, status, resp)
}

func writeValidationError(w http.ResponseWriter, field, reason string) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{
		Error:    "Validation failed",
		Code:     string(checkin.KindValidation),
		Problems: []checkin.Problem{{Field: field, Reason: reason}},
	})
}

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
