package api

import (
	"net/http"

	"codeshare/internal/apperr"
)

// @Summary      Share event stream
// @Description  Upgrades to a websocket that receives share_created, share_downloaded and share_deleted events for the caller's shares. Browsers cannot set headers on websocket requests, so the token travels in the query string.
// @Tags         events
// @Param        token  query  string  true  "Session token"
// @Success      101
// @Failure      401  {object}  ErrorResponse
// @Router       /ws [get]
func (s *Server) ServeWsHandler(w http.ResponseWriter, r *http.Request) {
	tokenString := r.URL.Query().Get("token")
	if tokenString == "" {
		s.writeError(w, r, apperr.E(apperr.Unauthorized, "token query parameter required"))
		return
	}

	user, err := s.identity.Resolve(r.Context(), tokenString)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.wsHub.Serve(w, r, user.ID); err != nil {
		// The upgrader has already written the error response.
		s.log.WithError(err).WithField("user_id", user.ID).Warn("websocket upgrade failed")
	}
}
