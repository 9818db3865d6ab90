package handler

import (
	"net/http"

	"github.com/sekou/sekou/internal/security"
	"github.com/sekou/sekou/internal/session"
	"github.com/sekou/sekou/internal/tenant"
)

// LoginRequest 登录请求
// 凭据由外部身份系统校验，这里只建立会话
type LoginRequest struct {
	Tenant   string `json:"tenant" validate:"required"`
	UserID   string `json:"userId" validate:"required"`
	UserName string `json:"userName"`
	Role     string `json:"role" validate:"omitempty,oneof=admin dispatcher viewer"`
}

// LoginResponse 登录响应
type LoginResponse struct {
	Session *session.Session `json:"session"`
	Tenant  *tenant.Tenant   `json:"tenant"`
}

// Login 创建会话
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := h.decode(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	t, err := h.deps.Tenants.Get(req.Tenant)
	if err != nil {
		respondError(w, r, err)
		return
	}

	s, err := h.deps.Sessions.Create(r.Context(), t.Code, req.UserID, req.UserName, req.Role)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if t.Settings.APIRateLimit > 0 && h.deps.Limiter != nil {
		h.deps.Limiter.SetLimit(t.Code, t.Settings.APIRateLimit)
	}

	respondJSON(w, http.StatusCreated, LoginResponse{Session: s, Tenant: t})
}

// Logout 注销会话并取消该会话进行中的推荐
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	token := security.ExtractToken(r)
	h.recalcs.Drop(token)
	if err := h.deps.Sessions.Invalidate(r.Context(), token); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"loggedOut": true})
}

// CurrentSession 返回当前会话
func (h *Handler) CurrentSession(w http.ResponseWriter, r *http.Request) {
	s, t, err := scope(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, LoginResponse{Session: s, Tenant: t})
}
