package api

import (
	"net/http"
)

// @Summary      Get current user info
// @Description  Returns the account behind the bearer token.
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  UserResponse
// @Failure      401  {object}  ErrorResponse
// @Router       /me [get]
func (s *Server) GetCurrentUserHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newUserResponse(GetUserFromContext(r.Context())))
}
