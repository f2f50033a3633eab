package httpapi

import (
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"keel/internal/session"
)

// Handler serves the session API.
type Handler struct {
	svc      *session.Service
	log      *zap.Logger
	validate *validator.Validate
}

// NewHandler builds the API handler around a session service.
func NewHandler(svc *session.Service, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		svc:      svc,
		log:      log,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Routes returns the router for mounting under the API prefix.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/sessions", h.createSession)
	r.Get("/users/{userID}/sessions", h.listSessions)

	r.Post("/auth/refresh", h.refresh)
	r.Post("/auth/logout", h.logout)
	r.Post("/auth/logout_all", h.logoutAll)
	r.Post("/auth/introspect", h.introspect)

	return r
}

func (h *Handler) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeValidationError(w, validationDetails(err))
		return
	}

	issued, err := h.svc.CreateSession(r.Context(), time.Now().UTC(), session.CreateParams{
		UserID:     req.UserID,
		DeviceID:   req.DeviceID,
		DeviceInfo: req.DeviceInfo,
		IPAddress:  clientIP(r),
		UserAgent:  r.UserAgent(),
	})
	if err != nil {
		h.writeServiceError(w, err, "create_session")
		return
	}

	writeJSON(w, http.StatusCreated, newTokenResponse(issued))
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeValidationError(w, validationDetails(err))
		return
	}

	issued, err := h.svc.VerifyAndRotate(r.Context(), time.Now().UTC(), req.SessionID, req.RefreshToken, session.DeviceContext{
		DeviceID:  req.DeviceID,
		IPAddress: clientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		h.writeServiceError(w, err, "refresh")
		return
	}

	writeJSON(w, http.StatusOK, newTokenResponse(issued))
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	var req logoutRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeValidationError(w, validationDetails(err))
		return
	}

	revoked, err := h.svc.RevokeSession(r.Context(), time.Now().UTC(), req.SessionID)
	if err != nil {
		h.writeServiceError(w, err, "logout")
		return
	}

	writeJSON(w, http.StatusOK, revokeResponse{Revoked: revoked})
}

func (h *Handler) logoutAll(w http.ResponseWriter, r *http.Request) {
	var req logoutAllRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeValidationError(w, validationDetails(err))
		return
	}

	n, err := h.svc.RevokeAllUserSessions(r.Context(), time.Now().UTC(), req.UserID)
	if err != nil {
		h.writeServiceError(w, err, "logout_all")
		return
	}

	writeJSON(w, http.StatusOK, revokeAllResponse{Revoked: n})
}

func (h *Handler) listSessions(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing user id")
		return
	}

	sessions, err := h.svc.ListUserSessions(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, err, "list_sessions")
		return
	}

	out := make([]sessionResponse, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, newSessionResponse(s))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) introspect(w http.ResponseWriter, r *http.Request) {
	var req introspectRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeValidationError(w, validationDetails(err))
		return
	}

	claims, err := h.svc.ValidateAccessToken(req.AccessToken, time.Now().UTC())
	if err != nil {
		// RFC 7662 style: an unverifiable token is not an error, just inactive.
		writeJSON(w, http.StatusOK, introspectResponse{Active: false})
		return
	}

	writeJSON(w, http.StatusOK, introspectResponse{
		Active:    true,
		UserID:    claims.UserID,
		SessionID: claims.SessionID,
		ExpiresAt: claims.ExpiresAt,
	})
}

// writeServiceError maps engine errors onto HTTP responses. Every refresh
// failure except reuse detection shares one opaque 401.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, session.ErrReuseDetected):
		writeError(w, http.StatusUnauthorized, "reuse_detected", "refresh token reuse detected; all sessions revoked")
	case errors.Is(err, session.ErrInvalidOrExpired):
		writeError(w, http.StatusUnauthorized, "invalid_or_expired", "session is invalid or expired")
	case errors.Is(err, session.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid_request", "missing required fields")
	default:
		h.log.Error("http.op.fail", zap.String("op", op), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
