package handlers

import (
	"errors"
	"net/http"

	"github.com/eventeye/server/internal/api/problem"
	"github.com/eventeye/server/internal/audit"
	"github.com/eventeye/server/internal/auth"
	"github.com/eventeye/server/internal/domain/users"
	"github.com/eventeye/server/internal/validation"
)

// AccountsHandler serves the local identity provider.
type AccountsHandler struct {
	Users  *users.Service
	Tokens *auth.JWTManager
	Audit  *audit.Logger
	Env    string
}

func NewAccountsHandler(usersService *users.Service, tokens *auth.JWTManager, env string) *AccountsHandler {
	return &AccountsHandler{Users: usersService, Tokens: tokens, Env: env}
}

type userResponse struct {
	User users.Profile `json:"user"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string        `json:"token"`
	TokenType string        `json:"tokenType"`
	User      users.Profile `json:"user"`
}

// Signup handles POST /signup.
func (h *AccountsHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var input users.SignupInput
	if err := decodeJSON(r, &input); err != nil {
		writeDecodeError(w, r, err, h.Env)
		return
	}

	user, err := h.Users.Signup(r.Context(), input)
	if err != nil {
		if errors.Is(err, users.ErrEmailTaken) {
			fields := []validation.Error{{Field: "email", Message: users.ErrEmailTaken.Error()}}
			problem.Write(w, r, http.StatusBadRequest, problem.TypeConflict, "Signup rejected", err, h.Env,
				problem.WithDetail(users.ErrEmailTaken.Error()), problem.WithErrors(fields))
			return
		}
		writeServiceError(w, r, err, h.Env)
		return
	}

	h.Audit.LogFromRequest(r, user.ID, "user.signup", "user", user.ID, audit.StatusSuccess, nil)
	writeJSON(w, http.StatusCreated, userResponse{User: user.Profile()})
}

// Login handles POST /login and returns an organizer bearer token.
func (h *AccountsHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDecodeError(w, r, err, h.Env)
		return
	}

	user, err := h.Users.Authenticate(r.Context(), req.Email, req.Password)
	switch {
	case errors.Is(err, users.ErrInvalidCredentials):
		h.Audit.LogFromRequest(r, "", "user.login", "user", "", audit.StatusFailure, map[string]string{"reason": "invalid_credentials"})
		problem.Write(w, r, http.StatusUnauthorized, problem.TypeUnauthorized, "Invalid credentials", err, h.Env,
			problem.WithDetail(users.ErrInvalidCredentials.Error()))
		return
	case errors.Is(err, users.ErrUserInactive):
		h.Audit.LogFromRequest(r, "", "user.login", "user", "", audit.StatusFailure, map[string]string{"reason": "inactive"})
		problem.Write(w, r, http.StatusForbidden, problem.TypeForbidden, "Account inactive", err, h.Env,
			problem.WithDetail(users.ErrUserInactive.Error()))
		return
	case err != nil:
		writeServiceError(w, r, err, h.Env)
		return
	}

	token, err := h.Tokens.Generate(user.ID, auth.NormalizeRole(user.Role), user.Email)
	if err != nil {
		writeServiceError(w, r, err, h.Env)
		return
	}

	h.Audit.LogFromRequest(r, user.ID, "user.login", "user", user.ID, audit.StatusSuccess, nil)
	writeJSON(w, http.StatusOK, loginResponse{Token: token, TokenType: "Bearer", User: user.Profile()})
}
