package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/rhenando/maxsmile/internal/auth"
	"github.com/rhenando/maxsmile/internal/cache"
	"github.com/rhenando/maxsmile/internal/clinic"
	"github.com/rhenando/maxsmile/internal/config"
	"github.com/rhenando/maxsmile/internal/db"
	"github.com/rhenando/maxsmile/internal/middleware"
	"github.com/rhenando/maxsmile/internal/models"
	"github.com/rhenando/maxsmile/internal/validation"
)

// ContactNotifier forwards a contact message to the clinic inbox. The
// send is best-effort; a failed notification never fails the request.
type ContactNotifier interface {
	SendContactNotification(ctx context.Context, msg models.ContactMessage) (string, error)
}

type Server struct {
	Cfg      *config.Config
	Cols     *db.Collections
	Dir      *clinic.Directory
	Val      *validation.Validator
	Log      *slog.Logger
	Cache    cache.Cache
	Auth     *auth.Manager
	Notifier ContactNotifier
}

func (s *Server) logWithRequest(r *http.Request) *slog.Logger {
	if r == nil {
		return s.Log
	}
	if id := middleware.RequestIDFromContext(r.Context()); id != "" {
		return s.Log.With(slog.String("request_id", id))
	}
	return s.Log
}
