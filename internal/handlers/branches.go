package handlers

import (
	"net/http"

	"github.com/rhenando/maxsmile/internal/transport"
)

// GetBranches serves the branch catalog. The catalog is loaded once at
// startup, so there is nothing to cache or query.
func (s *Server) GetBranches(w http.ResponseWriter, r *http.Request) {
	transport.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"branches": s.Dir.Branches(),
	})
}
