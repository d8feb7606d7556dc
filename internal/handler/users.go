package handler

import (
	"errors"
	"net/http"

	"github.com/forumgate/forumgate/internal/i18n"
	"github.com/forumgate/forumgate/internal/model"
	"github.com/forumgate/forumgate/internal/server/middleware"
	"github.com/forumgate/forumgate/internal/service"
)

// UsersHandler serves the gated registration and login endpoints. A caller
// whose key lacks the required permission gets the router's plain 404, so
// the endpoints are invisible to anyone not holding a suitable key.
type UsersHandler struct {
	users *service.UserService
}

func NewUsersHandler(users *service.UserService) *UsersHandler {
	return &UsersHandler{users: users}
}

// Register creates a board account.
// POST /api/users/register
func (h *UsersHandler) Register(w http.ResponseWriter, r *http.Request) {
	p := middleware.GetPrincipal(r.Context())
	if p == nil || !p.Key.Perms.Register {
		http.NotFound(w, r)
		return
	}

	var req service.RegisterRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.IPAddress == "" {
		req.IPAddress = middleware.GetClientIP(r)
	}

	res, err := h.users.Register(r.Context(), req)
	if err != nil {
		writeUserError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Login authenticates a board account.
// POST /api/users/login
func (h *UsersHandler) Login(w http.ResponseWriter, r *http.Request) {
	p := middleware.GetPrincipal(r.Context())
	if p == nil || !p.Key.Perms.Login {
		http.NotFound(w, r)
		return
	}

	var req service.LoginRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	res, err := h.users.Login(r.Context(), req)
	if err != nil {
		writeUserError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// writeUserError maps service errors onto the gated endpoints' error shape:
// user-caused failures come back as HTTP 200 with an errors map keyed by
// code, so consuming sites can branch on the code or display the localized
// message. Anything else is a real 500.
func writeUserError(w http.ResponseWriter, err error) {
	var ce *service.CodeError
	if !errors.As(err, &ce) {
		writeError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	msgs := make(map[string]string, len(ce.Codes))
	for _, code := range ce.Codes {
		msgs[code] = i18n.T(code)
	}
	writeJSON(w, http.StatusOK, model.UserErrorResponse{Errors: msgs})
}
