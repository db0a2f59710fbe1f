package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/sparkly-dev/sparkly-server/internal/common"
	"github.com/sparkly-dev/sparkly-server/internal/logging"
	"github.com/sparkly-dev/sparkly-server/internal/server/auth"
	"github.com/sparkly-dev/sparkly-server/internal/server/models"
	"github.com/sparkly-dev/sparkly-server/internal/server/services"
)

const maxBodyBytes = 1 << 20

type authHandler struct {
	users    UserService
	sessions SessionService
	logger   logging.Logger
}

type registerRequest struct {
	UserName string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type refreshTokenRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type sessionResponse struct {
	AccessToken           string    `json:"access_token"`
	RefreshToken          string    `json:"refresh_token"`
	AccessTokenExpiresAt  time.Time `json:"access_token_expires_at"`
	RefreshTokenExpiresAt time.Time `json:"refresh_token_expires_at"`
}

type userResponse struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	UserName string `json:"username"`
	Role     string `json:"role"`
}

type errorBody struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

type response struct {
	Data  any        `json:"data,omitempty"`
	Error *errorBody `json:"error,omitempty"`
}

// register handles POST /api/v1/auth/register
func (h *authHandler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decode(w, r, &req) {
		return
	}

	u, err := h.users.Register(r.Context(), req.UserName, req.Email, req.Password)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, response{Data: userResponse{ID: u.ID, Email: u.Email, UserName: u.UserName, Role: u.Role}})
}

// login handles POST /api/v1/auth/login
func (h *authHandler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decode(w, r, &req) {
		return
	}

	sess, err := h.sessions.Login(r.Context(), req.Identifier, req.Password)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: toSessionResponse(sess)})
}

// refresh handles POST /api/v1/auth/refresh
func (h *authHandler) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshTokenRequest
	if !decode(w, r, &req) {
		return
	}

	sess, err := h.sessions.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: toSessionResponse(sess)})
}

// logout handles POST /api/v1/auth/logout
func (h *authHandler) logout(w http.ResponseWriter, r *http.Request) {
	var req refreshTokenRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.sessions.Logout(r.Context(), req.RefreshToken); err != nil {
		h.writeAppError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// me handles GET /api/v1/auth/me
func (h *authHandler) me(w http.ResponseWriter, r *http.Request) {
	p := auth.FromContext(r.Context())
	writeJSON(w, http.StatusOK, response{Data: userResponse{ID: p.UserID, Email: p.Email, UserName: p.UserName, Role: p.Role}})
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", "invalid request body")
		return false
	}
	return true
}

func (h *authHandler) writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, response{Error: &errorBody{Code: "VALIDATION_ERROR", Message: "validation failed", Fields: verr.Fields}})
	case errors.Is(err, common.ErrorValidation):
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "validation failed")
	case errors.Is(err, common.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", common.ErrInvalidCredentials.Error())
	case errors.Is(err, common.ErrInvalidOrExpiredToken):
		writeError(w, http.StatusUnauthorized, "INVALID_TOKEN", common.ErrInvalidOrExpiredToken.Error())
	case errors.Is(err, common.ErrorAlreadyExists):
		writeError(w, http.StatusConflict, "ALREADY_EXISTS", "user already exists")
	case errors.Is(err, common.ErrPersistence):
		h.logger.Error(r.Context(), "store unavailable", "path", r.URL.Path, "error", err.Error())
		writeError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "service temporarily unavailable")
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "TIMEOUT", "request timed out")
	default:
		h.logger.Error(r.Context(), "internal error", "path", r.URL.Path, "error", err.Error())
		writeError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
	}
}

func toSessionResponse(s *models.Session) sessionResponse {
	return sessionResponse{
		AccessToken:           s.AccessToken,
		RefreshToken:          s.RefreshToken,
		AccessTokenExpiresAt:  s.AccessTokenExpiresAt,
		RefreshTokenExpiresAt: s.RefreshTokenExpiresAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, response{Error: &errorBody{Code: code, Message: msg}})
}
