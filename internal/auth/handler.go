package auth

import (
	"encoding/json"
	"net"
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-auth/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-auth/internal/requestctx"
)

// Handler exposes the account and session endpoints.
type Handler struct {
	svc    *AuthService
	logger *zap.SugaredLogger
}

func NewHandler(svc *AuthService, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// RegisterRequest request body for the register endpoint.
type RegisterRequest struct {
	Email       string  `json:"email"`
	Password    string  `json:"password"`
	DisplayName *string `json:"display_name"`
}

type LoginRequest struct {
	Email       string  `json:"email"`
	Password    string  `json:"password"`
	DeviceLabel *string `json:"device_label"`
}

// RefreshRequest is the body of both /auth/refresh and /auth/logout.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debugw("invalid register payload", "err", err)
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	u, err := h.svc.Register(r.Context(), req.Email, req.Password, req.DisplayName)
	if err != nil {
		h.writeError(w, r, "register failed", err)
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string]any{"user": u})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debugw("invalid login payload", "err", err)
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	meta := ClientMeta{DeviceLabel: req.DeviceLabel}
	if ua := r.UserAgent(); ua != "" {
		meta.UserAgent = &ua
	}
	if ip := remoteIP(r); ip != "" {
		meta.IPAddress = &ip
	}
	res, err := h.svc.Login(r.Context(), req.Email, req.Password, meta)
	if err != nil {
		h.writeError(w, r, "login failed", err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debugw("invalid refresh payload", "err", err)
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	pair, err := h.svc.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		h.writeError(w, r, "refresh failed", err)
		return
	}
	h.writeJSON(w, http.StatusOK, pair)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debugw("invalid logout payload", "err", err)
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	if err := h.svc.Logout(r.Context(), req.RefreshToken); err != nil {
		h.writeError(w, r, "logout failed", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// Me returns the user bound to the bearer token. It must run behind the
// auth middleware.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	id, ok := requestctx.UserID(r.Context())
	if !ok || id <= 0 {
		h.writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid token"})
		return
	}
	u, err := h.svc.GetMe(r.Context(), id)
	if err != nil {
		h.writeError(w, r, "get current user failed", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"user": u})
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Errorw(msg, "request_id", requestctx.RequestID(r.Context()), "err", err)
	} else {
		h.logger.Debugw(msg, "request_id", requestctx.RequestID(r.Context()), "err", err)
	}
	h.writeJSON(w, status, map[string]string{"error": apperr.PublicMessage(err)})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
