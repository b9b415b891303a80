package http

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"medy-coop-service/internal/app"
	"medy-coop-service/internal/domain"
)

// UserHeader carries the authenticated user id set by the gateway.
const UserHeader = "X-User-ID"

// SessionHandler exposes the coop session use cases over REST.
type SessionHandler struct {
	service  *app.CoopService
	validate *requestValidator
	log      zerolog.Logger
}

func NewSessionHandler(service *app.CoopService, log zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		service:  service,
		validate: newRequestValidator(),
		log:      log.With().Str("component", "session_handler").Logger(),
	}
}

// Register mounts the coop routes on mux.
func (h *SessionHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /coop/sessions", h.create)
	mux.HandleFunc("GET /coop/sessions/{id}", h.get)
	mux.HandleFunc("PATCH /coop/sessions/{id}/filters", h.setFilters)
	mux.HandleFunc("PATCH /coop/sessions/{id}/ready", h.setReadiness)
	mux.HandleFunc("POST /coop/sessions/{id}/launch", h.launch)
	mux.HandleFunc("POST /coop/sessions/{id}/result", h.submit)
	mux.HandleFunc("DELETE /coop/sessions/{id}", h.cancel)
}

type createSessionRequest struct {
	FriendID string `json:"friendId" validate:"required,max=128"`
}

type filtersRequest struct {
	UnitIDs        []string `json:"unitIds" validate:"max=100,dive,max=128"`
	ModuleIDs      []string `json:"moduleIds" validate:"max=100,dive,max=128"`
	CourseIDs      []string `json:"courseIds" validate:"max=100,dive,max=128"`
	StudyYear      *int     `json:"studyYear" validate:"omitempty,min=1,max=12"`
	Speciality     string   `json:"speciality" validate:"max=128"`
	University     string   `json:"university" validate:"max=256"`
	Count          int      `json:"count"`
	CorrectionMode string   `json:"correctionMode"`
	Level          string   `json:"level"`
}

type readinessRequest struct {
	Ready *bool `json:"ready" validate:"required"`
}

type answerRequest struct {
	QuestionID string    `json:"questionId" validate:"required"`
	Selected   []float64 `json:"selected"`
}

type submitRequest struct {
	Answers    []answerRequest `json:"answers" validate:"max=200,dive"`
	DurationMs *float64        `json:"durationMs"`
}

func (h *SessionHandler) create(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	var req createSessionRequest
	if err := h.validate.bind(r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	view, err := h.service.CreateSession(r.Context(), userID, req.FriendID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeData(w, http.StatusCreated, view)
}

func (h *SessionHandler) get(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	view, err := h.service.GetSession(r.Context(), r.PathValue("id"), userID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeData(w, http.StatusOK, view)
}

func (h *SessionHandler) setFilters(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	var req filtersRequest
	if err := h.validate.bind(r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	view, err := h.service.SetFilters(r.Context(), r.PathValue("id"), userID, app.FiltersInput{
		Filters: domain.Filters{
			UnitIDs:    req.UnitIDs,
			ModuleIDs:  req.ModuleIDs,
			CourseIDs:  req.CourseIDs,
			StudyYear:  req.StudyYear,
			Speciality: req.Speciality,
			University: req.University,
			Count:      req.Count,
		},
		CorrectionMode: domain.CorrectionMode(req.CorrectionMode),
		Level:          domain.Level(req.Level),
	})
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeData(w, http.StatusOK, view)
}

func (h *SessionHandler) setReadiness(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	var req readinessRequest
	if err := h.validate.bind(r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	view, err := h.service.SetReadiness(r.Context(), r.PathValue("id"), userID, *req.Ready)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeData(w, http.StatusOK, view)
}

func (h *SessionHandler) launch(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	result, err := h.service.LaunchSession(r.Context(), r.PathValue("id"), userID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeData(w, http.StatusOK, result)
}

func (h *SessionHandler) submit(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	var req submitRequest
	if err := h.validate.bind(r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	answers := make([]domain.AnswerSubmission, len(req.Answers))
	for i, a := range req.Answers {
		answers[i] = domain.AnswerSubmission{QuestionID: a.QuestionID, Selected: a.Selected}
	}
	view, err := h.service.SubmitResult(r.Context(), r.PathValue("id"), userID, app.SubmitInput{
		Answers:    answers,
		DurationMs: req.DurationMs,
	})
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeData(w, http.StatusOK, view)
}

func (h *SessionHandler) cancel(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	view, err := h.service.CancelSession(r.Context(), r.PathValue("id"), userID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeData(w, http.StatusOK, view)
}

func (h *SessionHandler) user(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := userFrom(r)
	if userID == "" {
		writeError(w, h.log, errMissingIdentity)
		return "", false
	}
	return userID, true
}

func userFrom(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(UserHeader)); id != "" {
		return id
	}
	return strings.TrimSpace(r.URL.Query().Get("userId"))
}
