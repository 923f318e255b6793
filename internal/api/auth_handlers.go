package api

import (
	"encoding/json"
	"net/http"

	"codeshare/internal/apperr"
)

type RegisterRequest struct {
	Username string `json:"username" example:"alice"`
	Email    string `json:"email" example:"alice@example.com"`
	Password string `json:"password" example:"password123"`
}

type LoginRequest struct {
	Email    string `json:"email" example:"alice@example.com"`
	Password string `json:"password" example:"password123"`
}

type AuthResponse struct {
	User  UserResponse `json:"user"`
	Token string       `json:"token" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."`
}

// @Summary      Register a new account
// @Description  Creates a user with the "user" role and returns a session token.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        registerRequest  body      RegisterRequest  true  "Account details"
// @Success      201              {object}  AuthResponse
// @Failure      400              {object}  ErrorResponse
// @Failure      409              {object}  ErrorResponse "Username or email already taken"
// @Failure      500              {object}  ErrorResponse
// @Router       /register [post]
func (s *Server) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, apperr.E(apperr.InvalidInput, "invalid request body"))
		return
	}

	res, err := s.identity.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, AuthResponse{User: newUserResponse(res.User), Token: res.Token})
}

// @Summary      Log in
// @Description  Exchanges email and password for a session token.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        loginRequest  body      LoginRequest  true  "Credentials"
// @Success      200           {object}  AuthResponse
// @Failure      400           {object}  ErrorResponse
// @Failure      401           {object}  ErrorResponse "Invalid email or password"
// @Failure      500           {object}  ErrorResponse
// @Router       /login [post]
func (s *Server) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, apperr.E(apperr.InvalidInput, "invalid request body"))
		return
	}

	res, err := s.identity.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, AuthResponse{User: newUserResponse(res.User), Token: res.Token})
}
