package handlers

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/rhenando/maxsmile/internal/httpx"
	"github.com/rhenando/maxsmile/internal/models"
	"github.com/rhenando/maxsmile/internal/transport"
)

type TestimonialRequest struct {
	Name    string `json:"name" validate:"required,max=120"`
	Rating  int    `json:"rating" validate:"required,gte=1,lte=5"`
	Message string `json:"message" validate:"required,max=2000"`
}

const testimonialsCacheKey = "testimonials:recent"

func (s *Server) GetTestimonials(w http.ResponseWriter, r *http.Request) {
	log := s.logWithRequest(r)

	limit, offset, err := httpx.ParseLimitOffset(r.URL.Query(), 50, 200)
	if err != nil {
		transport.WriteError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	// Only the first default page is cached; deeper pages are rare.
	cacheable := s.Cache != nil && limit == 50 && offset == 0
	if cacheable {
		if cached, ok, err := s.Cache.Get(r.Context(), testimonialsCacheKey); err == nil && ok {
			log.Info("testimonials list: cache hit")
			transport.WriteCachedJSON(w, http.StatusOK, cached)
			return
		}
	}

	ctx, cancel := contextWithTimeout(r)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(limit).
		SetSkip(offset)
	cursor, err := s.Cols.Testimonials.Find(ctx, bson.D{}, opts)
	if err != nil {
		log.Error("testimonials list: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}
	defer cursor.Close(ctx)

	items := []models.Testimonial{}
	if err := cursor.All(ctx, &items); err != nil {
		log.Error("testimonials list: decode error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "decode error", nil)
		return
	}

	response := map[string]interface{}{"testimonials": items}
	if cacheable {
		if payload, err := transport.EncodeJSON(response); err == nil {
			_ = s.Cache.Set(r.Context(), testimonialsCacheKey, payload, time.Duration(s.Cfg.CacheTTLSeconds)*time.Second)
		}
	}

	log.Info("testimonials list: ok", slog.Int("count", len(items)))
	transport.WriteJSON(w, http.StatusOK, response)
}

func (s *Server) CreateTestimonial(w http.ResponseWriter, r *http.Request) {
	log := s.logWithRequest(r)

	var req TestimonialRequest
	if err := decodeJSON(r, &req); err != nil {
		log.Warn("testimonials create: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Message = strings.TrimSpace(req.Message)
	if err := s.Val.Struct(req); err != nil {
		log.Warn("testimonials create: validation error")
		details := validationDetails(s.Val.ValidationErrors(err))
		transport.WriteError(w, http.StatusBadRequest, "validation error", details)
		return
	}

	testimonial := models.Testimonial{
		ID:        primitive.NewObjectID().Hex(),
		Name:      req.Name,
		Rating:    req.Rating,
		Message:   req.Message,
		CreatedAt: time.Now().In(s.Cfg.Timezone),
	}

	ctx, cancel := contextWithTimeout(r)
	defer cancel()

	if _, err := s.Cols.Testimonials.InsertOne(ctx, testimonial); err != nil {
		log.Error("testimonials create: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	if s.Cache != nil {
		_ = s.Cache.Delete(r.Context(), testimonialsCacheKey)
	}

	log.Info("testimonials create: ok", slog.String("testimonial_id", testimonial.ID))
	transport.WriteJSON(w, http.StatusCreated, testimonial)
}
