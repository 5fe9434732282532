package httpapi

import (
	"net/http"
	"net/mail"
	"strings"
	"time"

	"harvestbid.org/internal/audit"
	"harvestbid.org/internal/auth"
	"harvestbid.org/internal/directory"
)

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
	Contact  string `json:"contact"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expires_at"`
	User      directory.User `json:"user"`
}

type profileUpdateRequest struct {
	Username *string `json:"username"`
	Contact  *string `json:"contact"`
	Password *string `json:"password"`
}

const tokenTTL = 24 * time.Hour

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if req.Username == "" {
		writeError(w, r, http.StatusBadRequest, "username is required")
		return
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		writeError(w, r, http.StatusBadRequest, "a valid email is required")
		return
	}
	if len(req.Password) < 8 {
		writeError(w, r, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}
	if !auth.ValidRole(req.Role) {
		writeError(w, r, http.StatusBadRequest, "role must be farmer or bidder")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	user := directory.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         req.Role,
		Contact:      strings.TrimSpace(req.Contact),
	}
	if err := a.users.CreateUser(r.Context(), &user); err != nil {
		handleCoreError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "auth.user.registered", map[string]any{
		"user_id": user.ID,
		"role":    user.Role,
	})

	a.issueToken(w, r, user)
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	user, err := a.users.UserByEmail(r.Context(), req.Email)
	if err != nil {
		// Same answer for unknown email and bad password.
		writeError(w, r, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err := auth.VerifyPassword(user.PasswordHash, req.Password); err != nil {
		writeError(w, r, http.StatusUnauthorized, "invalid credentials")
		return
	}

	_ = audit.LogEvent(r.Context(), "auth.user.login", map[string]any{
		"user_id": user.ID,
	})

	a.issueToken(w, r, user)
}

func (a *API) issueToken(w http.ResponseWriter, r *http.Request, user directory.User) {
	token, err := auth.GenerateToken(user.ID, user.Role, tokenTTL)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "token generation failed")
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{
		Token:     token,
		ExpiresAt: time.Now().UTC().Add(tokenTTL),
		User:      user,
	})
}

func (a *API) handleProfile(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		user, err := a.users.UserByID(r.Context(), principal.UserID)
		if err != nil {
			handleCoreError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, user)
	case http.MethodPut:
		var req profileUpdateRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		upd := directory.Update{Username: req.Username, Contact: req.Contact}
		if req.Password != nil {
			if len(*req.Password) < 8 {
				writeError(w, r, http.StatusBadRequest, "password must be at least 8 characters")
				return
			}
			hash, err := auth.HashPassword(*req.Password)
			if err != nil {
				writeError(w, r, http.StatusInternalServerError, "internal error")
				return
			}
			upd.Password = &hash
		}
		user, err := a.users.UpdateUser(r.Context(), principal.UserID, upd)
		if err != nil {
			handleCoreError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "auth.profile.updated", map[string]any{
			"user_id": user.ID,
		})
		writeJSON(w, http.StatusOK, user)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut)
	}
}
