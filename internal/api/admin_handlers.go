package api

import "net/http"

// @Summary      System statistics
// @Description  Counts of users and shares and the total stored file size. The share counters are mutually consistent; the user count is read separately.
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  models.Stats
// @Failure      401  {object}  ErrorResponse
// @Failure      403  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /admin/stats [get]
func (s *Server) StatsHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := s.stats.Stats(r.Context(), GetUserFromContext(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// @Summary      List all shares
// @Description  Every share in the system, newest first, with its owner's username.
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   AdminShareResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      403  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /admin/shares [get]
func (s *Server) ListAllSharesHandler(w http.ResponseWriter, r *http.Request) {
	shares, err := s.shares.ListAll(r.Context(), GetUserFromContext(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newAdminShareResponses(shares))
}

// @Summary      List all users
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   UserResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      403  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /admin/users [get]
func (s *Server) ListUsersHandler(w http.ResponseWriter, r *http.Request) {
	users, err := s.identity.ListUsers(r.Context(), GetUserFromContext(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newUserResponses(users))
}
