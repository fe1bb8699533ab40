package handlers

import (
	"net/http"

	"github.com/rhenando/maxsmile/internal/transport"
)

func (s *Server) GetServices(w http.ResponseWriter, r *http.Request) {
	transport.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"services": s.Dir.Services(),
	})
}
