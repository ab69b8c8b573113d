package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/alfredjeanlab/gitterbridge/internal/model"
	"github.com/alfredjeanlab/gitterbridge/internal/store"
)

const (
	// maxEventBytes bounds request bodies carrying a single event.
	maxEventBytes = 1 << 20

	defaultListLimit = 50
)

// NewHTTPHandler returns an http.Handler with all routes registered.
// When authToken is non-empty, requests (except GET /v1/health) must include
// a valid Authorization: Bearer <token> header.
func (s *NormalizerServer) NewHTTPHandler(authToken string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/parse", s.handleParse)
	mux.HandleFunc("POST /v1/validate", s.handleValidate)
	mux.HandleFunc("POST /v1/events", s.handleIngest)
	mux.HandleFunc("GET /v1/activities", s.handleListActivities)
	mux.HandleFunc("GET /v1/activities/{id}", s.handleGetActivity)
	mux.HandleFunc("GET /v1/rejections", s.handleListRejections)
	mux.HandleFunc("GET /v1/events/stream", s.handleEventStream)
	mux.HandleFunc("GET /v1/health", s.handleHealth)
	return AuthMiddleware(authToken, mux)
}

// ListActivitiesResponse is the body of GET /v1/activities.
type ListActivitiesResponse struct {
	Activities []*model.ActivityRecord `json:"activities"`
	Total      int                     `json:"total"`
}

// HealthResponse is the body of GET /v1/health.
type HealthResponse struct {
	Status    string `json:"status"`
	ServiceID string `json:"service_id"`
}

// handleParse handles POST /v1/parse.
func (s *NormalizerServer) handleParse(w http.ResponseWriter, r *http.Request) {
	event, ok := decodeEvent(w, r)
	if !ok {
		return
	}
	act, err := s.parse(r.Context(), event)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, act)
}

// handleValidate handles POST /v1/validate[?category=...].
func (s *NormalizerServer) handleValidate(w http.ResponseWriter, r *http.Request) {
	event, ok := decodeEvent(w, r)
	if !ok {
		return
	}
	out, err := s.validate(r.Context(), event, r.URL.Query().Get("category"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// handleIngest handles POST /v1/events. Accepted events answer 201; rejected
// events are recorded as dead letters and answer 200 with accepted=false.
func (s *NormalizerServer) handleIngest(w http.ResponseWriter, r *http.Request) {
	event, ok := decodeEvent(w, r)
	if !ok {
		return
	}
	outcome, err := s.ingest(r.Context(), event)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	code := http.StatusOK
	if outcome.Accepted {
		code = http.StatusCreated
	}
	writeJSON(w, code, outcome)
}

// handleListActivities handles GET /v1/activities.
func (s *NormalizerServer) handleListActivities(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.ActivityFilter{
		TargetID: q.Get("target"),
		ActorID:  q.Get("actor"),
	}

	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid since, want RFC 3339")
			return
		}
		filter.Since = &t
	}
	var err error
	if filter.Limit, err = intParam(q.Get("limit"), defaultListLimit); err != nil {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	if filter.Offset, err = intParam(q.Get("offset"), 0); err != nil {
		writeError(w, http.StatusBadRequest, "invalid offset")
		return
	}

	recs, total, err := s.listActivities(r.Context(), filter)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if recs == nil {
		recs = []*model.ActivityRecord{}
	}
	writeJSON(w, http.StatusOK, ListActivitiesResponse{Activities: recs, Total: total})
}

// handleGetActivity handles GET /v1/activities/{id}.
func (s *NormalizerServer) handleGetActivity(w http.ResponseWriter, r *http.Request) {
	rec, err := s.getActivity(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleListRejections handles GET /v1/rejections.
func (s *NormalizerServer) handleListRejections(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r.URL.Query().Get("limit"), defaultListLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	rejs, err := s.listRejections(r.Context(), limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if rejs == nil {
		rejs = []*model.Rejection{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"rejections": rejs})
}

// handleHealth handles GET /v1/health.
func (s *NormalizerServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", ServiceID: s.normalizer.ServiceID()})
}

// decodeEvent reads a JSON object body. It writes a 400 and returns false
// when the body is not an object.
func decodeEvent(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	var event map[string]any
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEventBytes)).Decode(&event); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return nil, false
	}
	if event == nil {
		writeError(w, http.StatusBadRequest, "event must be a JSON object")
		return nil, false
	}
	return event, true
}

func intParam(v string, def int) (int, error) {
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	var ie inputError
	var ae absentError
	switch {
	case errors.As(err, &ie):
		return http.StatusBadRequest
	case errors.As(err, &ae):
		return http.StatusUnprocessableEntity
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeServiceError(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err.Error())
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
