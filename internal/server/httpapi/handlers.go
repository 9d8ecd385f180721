package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"nexus-auth/backend/internal/gate"
	"nexus-auth/backend/internal/identity/domain"
	"nexus-auth/backend/internal/server/interceptors"
	sessionservice "nexus-auth/backend/internal/session/service"
	"nexus-auth/backend/internal/verifycode"
)

const (
	defaultPageSize = 20
	maxPageSize     = 200
)

type handlers struct {
	opts RouterOptions
}

func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	var c domain.Credentials
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		fail(w, http.StatusBadRequest, http.StatusBadRequest, "malformed request body")
		return
	}
	c.IP = clientIP(r)
	c.UserAgent = r.UserAgent()
	res, err := h.opts.Auth.Login(r.Context(), c)
	if err != nil {
		status := loginStatus(err)
		if status == http.StatusInternalServerError {
			slog.Error("login failed", "login_type", c.LoginType.String(), "err", err)
			fail(w, status, status, "login failed")
			return
		}
		fail(w, status, status, err.Error())
		return
	}
	ok(w, res)
}

func loginStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrBadCredential),
		errors.Is(err, domain.ErrExternalAuthFailed):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrAccountDisabled):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrAccountNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrUnknownLoginType),
		errors.Is(err, domain.ErrUnknownPlatform):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *handlers) logout(w http.ResponseWriter, r *http.Request) {
	if err := h.opts.Auth.Logout(r.Context(), r.Header.Get("Authorization")); err != nil {
		slog.Warn("logout failed", "err", err)
		fail(w, http.StatusServiceUnavailable, gate.CodeBackendUnavailable, gate.ErrBackendUnavailable.Error())
		return
	}
	ok(w, nil)
}

func (h *handlers) checkExpired(w http.ResponseWriter, r *http.Request) {
	expired, err := h.opts.Auth.CheckLoginExpired(r.Context(), r.Header.Get("Authorization"))
	if err != nil {
		slog.Warn("check login expired failed", "err", err)
		fail(w, http.StatusServiceUnavailable, gate.CodeBackendUnavailable, gate.ErrBackendUnavailable.Error())
		return
	}
	ok(w, map[string]bool{"expired": expired})
}

type sendCodeRequest struct {
	Email   string             `json:"email"`
	Purpose verifycode.Purpose `json:"purpose"`
}

func (h *handlers) sendCode(w http.ResponseWriter, r *http.Request) {
	var in sendCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		fail(w, http.StatusBadRequest, http.StatusBadRequest, "malformed request body")
		return
	}
	err := h.opts.Codes.Issue(r.Context(), in.Purpose, in.Email)
	switch {
	case err == nil:
		ok(w, nil)
	case errors.Is(err, verifycode.ErrAlreadySent):
		fail(w, http.StatusConflict, http.StatusConflict, err.Error())
	case errors.Is(err, verifycode.ErrInvalidEmail), errors.Is(err, verifycode.ErrUnknownPurpose):
		fail(w, http.StatusBadRequest, http.StatusBadRequest, err.Error())
	default:
		slog.Error("send verification code failed", "err", err)
		fail(w, http.StatusServiceUnavailable, gate.CodeBackendUnavailable, "send verification code failed")
	}
}

// qqAuthorize redirects the browser to the provider's consent page.
func (h *handlers) qqAuthorize(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, h.opts.QQ.AuthCodeURL(uuid.NewString()), http.StatusFound)
}

type meResponse struct {
	User        any      `json:"user"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
}

func (h *handlers) me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess, found := interceptors.GetSession(ctx)
	if !found {
		fail(w, http.StatusUnauthorized, gate.CodeUnauthenticated, gate.ErrUnauthenticated.Error())
		return
	}
	resp := meResponse{User: sess, Roles: []string{}, Permissions: []string{}}
	a, found := interceptors.GetAuthorization(ctx)
	if !found && h.opts.Resolver != nil {
		var err error
		if a, err = h.opts.Resolver.Resolve(ctx, sess.UserID); err != nil {
			slog.Warn("resolve authorization failed", "user_id", sess.UserID, "err", err)
			fail(w, http.StatusServiceUnavailable, gate.CodeBackendUnavailable, gate.ErrBackendUnavailable.Error())
			return
		}
	}
	if a != nil {
		resp.Roles = a.RoleList()
		resp.Permissions = a.PermissionList()
	}
	ok(w, resp)
}

func (h *handlers) myLogins(w http.ResponseWriter, r *http.Request) {
	userID, found := interceptors.GetUserID(r.Context())
	if !found {
		fail(w, http.StatusUnauthorized, gate.CodeUnauthenticated, gate.ErrUnauthenticated.Error())
		return
	}
	limit, offset := page(r)
	logs, err := h.opts.Logins.ListByUser(r.Context(), userID, limit, offset)
	if err != nil {
		slog.Error("list login logs failed", "user_id", userID, "err", err)
		fail(w, http.StatusInternalServerError, http.StatusInternalServerError, "list login logs failed")
		return
	}
	ok(w, logs)
}

func (h *handlers) listOnline(w http.ResponseWriter, r *http.Request) {
	limit, offset := page(r)
	entries, err := h.opts.Online.List(r.Context(), limit, offset)
	if err != nil {
		slog.Error("list online sessions failed", "err", err)
		fail(w, http.StatusInternalServerError, http.StatusInternalServerError, "list online sessions failed")
		return
	}
	ok(w, entries)
}

func (h *handlers) offline(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userId"), 10, 64)
	if err != nil {
		fail(w, http.StatusBadRequest, http.StatusBadRequest, "invalid user id")
		return
	}
	platform := domain.Platform(0)
	if n, err := strconv.Atoi(chi.URLParam(r, "platform")); err == nil {
		platform = domain.Platform(n)
	}
	if !platform.Valid() {
		fail(w, http.StatusBadRequest, http.StatusBadRequest, domain.ErrUnknownPlatform.Error())
		return
	}
	err = h.opts.Online.Offline(r.Context(), userID, int(platform))
	switch {
	case err == nil:
		ok(w, nil)
	case errors.Is(err, sessionservice.ErrNotOnline):
		fail(w, http.StatusNotFound, http.StatusNotFound, err.Error())
	default:
		slog.Error("force offline failed", "user_id", userID, "platform", int(platform), "err", err)
		fail(w, http.StatusServiceUnavailable, gate.CodeBackendUnavailable, gate.ErrBackendUnavailable.Error())
	}
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	if h.opts.Health != nil {
		if err := h.opts.Health(r.Context()); err != nil {
			slog.Warn("health check failed", "err", err)
			fail(w, http.StatusServiceUnavailable, gate.CodeBackendUnavailable, "unhealthy")
			return
		}
	}
	ok(w, map[string]string{"status": "ok"})
}

// page reads limit and offset query parameters.
func page(r *http.Request) (limit, offset int) {
	q := r.URL.Query()
	limit, _ = strconv.Atoi(q.Get("limit"))
	offset, _ = strconv.Atoi(q.Get("offset"))
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
