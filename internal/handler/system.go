package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/forumgate/forumgate/internal/config"
	"github.com/forumgate/forumgate/internal/model"
	"github.com/forumgate/forumgate/internal/server/middleware"
	"github.com/forumgate/forumgate/internal/service"
)

// SystemHandler manages the gateway's own state: admin sessions, API keys,
// admin accounts and the audit log.
type SystemHandler struct {
	store  *config.Store
	auth   *service.Authorizer
	keys   *service.KeyService
	jwtTTL time.Duration
}

func NewSystemHandler(store *config.Store, auth *service.Authorizer, keys *service.KeyService, jwtTTL time.Duration) *SystemHandler {
	if jwtTTL <= 0 {
		jwtTTL = 24 * time.Hour
	}
	return &SystemHandler{
		store:  store,
		auth:   auth,
		keys:   keys,
		jwtTTL: jwtTTL,
	}
}

// ---------------------------------------------------------------------------
// Sessions
// ---------------------------------------------------------------------------

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string `json:"session_token"`
	TokenType string `json:"token_type"`
	ExpiresIn int    `json:"expires_in"`
	AdminID   int64  `json:"admin_id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
}

// Login authenticates an admin and returns a JWT session token.
// POST /api/v1/system/session
func (h *SystemHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	admin, err := h.auth.LoginAdmin(r.Context(), req.Email, req.Password, middleware.GetClientIP(r))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			writeError(w, http.StatusUnauthorized, "Invalid credentials")
		case errors.Is(err, service.ErrAdminDisabled):
			writeError(w, http.StatusUnauthorized, "Account is disabled")
		default:
			writeError(w, http.StatusInternalServerError, "Authentication error")
		}
		return
	}

	token, err := h.auth.IssueJWT(admin.ID, admin.Email, h.jwtTTL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to issue token")
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Token:     token,
		TokenType: "bearer",
		ExpiresIn: int(h.jwtTTL.Seconds()),
		AdminID:   admin.ID,
		Email:     admin.Email,
		Name:      admin.Name,
	})
}

// Logout invalidates the session client-side; JWTs are stateless.
// DELETE /api/v1/system/session
func (h *SystemHandler) Logout(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Session invalidated",
	})
}

// ---------------------------------------------------------------------------
// API key management
// ---------------------------------------------------------------------------

// ListKeys returns every key, values included. Operators retrieve values
// from here; there is no separate reveal step.
// GET /api/v1/system/keys
func (h *SystemHandler) ListKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := h.keys.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list keys")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"resource": keys,
		"meta":     model.ResponseMeta{Count: len(keys)},
	})
}

// CreateKey generates and stores a new key.
// POST /api/v1/system/keys
func (h *SystemHandler) CreateKey(w http.ResponseWriter, r *http.Request) {
	var req service.CreateKeyRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	key, err := h.keys.Create(r.Context(), req, actorLabel(r), middleware.GetClientIP(r))
	if err != nil {
		var verrs model.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make(map[string]interface{}, len(verrs))
			for _, fe := range verrs {
				fields[fe.Field] = string(fe.Reason)
			}
			writeError(w, http.StatusBadRequest, "Validation failed", fields)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to create key")
		return
	}
	writeJSON(w, http.StatusCreated, key)
}

// DeleteKey removes a key. The first call without ?confirm=true only echoes
// what would be deleted; the caller repeats the request with confirm=true to
// actually remove it.
// DELETE /api/v1/system/keys/{keyID}
func (h *SystemHandler) DeleteKey(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "keyID"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid key id")
		return
	}

	if !queryBool(r, "confirm") {
		key, err := h.keys.Get(r.Context(), id)
		if err != nil {
			if errors.Is(err, model.ErrKeyNotFound) {
				writeError(w, http.StatusNotFound, "Key not found")
				return
			}
			writeError(w, http.StatusInternalServerError, "Failed to load key")
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"confirm_required": true,
			"key":              map[string]interface{}{"id": key.ID, "name": key.Name},
			"message":          "Repeat the request with ?confirm=true to delete this key",
		})
		return
	}

	removed, err := h.keys.Delete(r.Context(), id, actorLabel(r), middleware.GetClientIP(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete key")
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, "Key not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"deleted": true})
}

// ---------------------------------------------------------------------------
// Admin accounts
// ---------------------------------------------------------------------------

type createAdminRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// ListAdmins returns all admin accounts.
// GET /api/v1/system/admins
func (h *SystemHandler) ListAdmins(w http.ResponseWriter, r *http.Request) {
	admins, err := h.store.ListAdmins(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list admins")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"resource": admins,
		"meta":     model.ResponseMeta{Count: len(admins)},
	})
}

// CreateAdmin creates an admin account.
// POST /api/v1/system/admins
func (h *SystemHandler) CreateAdmin(w http.ResponseWriter, r *http.Request) {
	var req createAdminRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	hash, err := service.HashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to hash password")
		return
	}

	admin := &model.Admin{
		Email:        req.Email,
		PasswordHash: hash,
		Name:         req.Name,
		IsActive:     true,
	}
	if err := h.store.CreateAdmin(r.Context(), admin); err != nil {
		writeError(w, http.StatusConflict, "Failed to create admin (email may already exist)")
		return
	}
	writeJSON(w, http.StatusCreated, admin)
}

// ---------------------------------------------------------------------------
// Audit log
// ---------------------------------------------------------------------------

// Audit returns the newest audit entries.
// GET /api/v1/system/audit?limit=N
func (h *SystemHandler) Audit(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 100)
	entries, err := h.store.ListAudit(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list audit entries")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"resource": entries,
		"meta":     model.ResponseMeta{Count: len(entries)},
	})
}

// actorLabel names the caller for audit entries: the admin's email, or the
// managing key's name.
func actorLabel(r *http.Request) string {
	p := middleware.GetPrincipal(r.Context())
	if p == nil {
		return "unknown"
	}
	if p.IsAdmin {
		return p.Email
	}
	if p.Key.Name != "" {
		return "key:" + p.Key.Name
	}
	return "unknown"
}
