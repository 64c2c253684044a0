package service

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	apperrors "github.com/comicvault/credits/pkg/app/errors"
	apphttp "github.com/comicvault/credits/pkg/app/http"
	"github.com/comicvault/credits/pkg/auth"
	"github.com/comicvault/credits/pkg/catalog"
	"github.com/comicvault/credits/pkg/unlock"
)

// HTTP wraps the Service to provide HTTP endpoints
type HTTP struct {
	service  Service
	logger   *zap.Logger
	validate *validator.Validate
}

func newHTTP(service Service, logger *zap.Logger) *HTTP {
	return &HTTP{
		service:  service,
		logger:   logger,
		validate: validator.New(),
	}
}

// RegisterRoutes registers the reader-facing unlock endpoints
func RegisterRoutes(r chi.Router, service Service, logger *zap.Logger) {
	h := newHTTP(service, logger)

	r.Post("/chapters/{chapterID}/unlock", apphttp.HandleErrorWithLogger(h.unlock, logger))
	r.Get("/chapters/{chapterID}/access", apphttp.HandleErrorWithLogger(h.access, logger))
	r.Get("/library", apphttp.HandleErrorWithLogger(h.library, logger))
}

// RegisterAdminRoutes registers the chapter pricing endpoint
func RegisterAdminRoutes(r chi.Router, service Service, logger *zap.Logger) {
	h := newHTTP(service, logger)

	r.Put("/admin/chapters/{chapterID}/pricing", apphttp.HandleErrorWithLogger(h.setPricing, logger))
}

type libraryResponse struct {
	Chapters []*unlock.LibraryEntry `json:"chapters"`
}

type chapterResponse struct {
	ID          int64     `json:"id"`
	ComicID     int64     `json:"comic_id"`
	Title       string    `json:"title"`
	UnlockCost  int64     `json:"unlock_cost"`
	IsFree      bool      `json:"is_free"`
	PublishedAt time.Time `json:"published_at"`
}

func (h *HTTP) unlock(w http.ResponseWriter, r *http.Request) error {
	caller, err := auth.FromRequest(r)
	if err != nil {
		return err
	}
	chapterID, err := chapterIDParam(r)
	if err != nil {
		return err
	}

	res, err := h.service.Unlock(r.Context(), caller.UserID, chapterID)
	if err != nil {
		return err
	}

	apphttp.WriteJSON(w, http.StatusOK, res)
	return nil
}

func (h *HTTP) access(w http.ResponseWriter, r *http.Request) error {
	caller, err := auth.FromRequest(r)
	if err != nil {
		return err
	}
	chapterID, err := chapterIDParam(r)
	if err != nil {
		return err
	}

	res, err := h.service.Access(r.Context(), caller.UserID, chapterID)
	if err != nil {
		return err
	}

	apphttp.WriteJSON(w, http.StatusOK, res)
	return nil
}

func (h *HTTP) library(w http.ResponseWriter, r *http.Request) error {
	caller, err := auth.FromRequest(r)
	if err != nil {
		return err
	}

	q := r.URL.Query()
	var limit, offset int
	if v := q.Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil {
			return apperrors.BadRequestError(err, "invalid limit")
		}
	}
	if v := q.Get("offset"); v != "" {
		if offset, err = strconv.Atoi(v); err != nil {
			return apperrors.BadRequestError(err, "invalid offset")
		}
	}

	entries, err := h.service.Library(r.Context(), caller.UserID, limit, offset)
	if err != nil {
		return err
	}
	if entries == nil {
		entries = []*unlock.LibraryEntry{}
	}

	apphttp.WriteJSON(w, http.StatusOK, libraryResponse{Chapters: entries})
	return nil
}

func (h *HTTP) setPricing(w http.ResponseWriter, r *http.Request) error {
	chapterID, err := chapterIDParam(r)
	if err != nil {
		return err
	}

	var req catalog.Pricing
	if err := apphttp.DecodeJSON(r, &req); err != nil {
		return err
	}
	if err := h.validate.Struct(&req); err != nil {
		return apperrors.BadRequestError(err, "unlock_cost must be between 0 and 1000000")
	}

	ch, err := h.service.SetPricing(r.Context(), chapterID, req)
	if err != nil {
		return err
	}

	apphttp.WriteJSON(w, http.StatusOK, chapterResponse{
		ID:          ch.ID,
		ComicID:     ch.ComicID,
		Title:       ch.Title,
		UnlockCost:  ch.UnlockCost,
		IsFree:      ch.IsFree,
		PublishedAt: ch.PublishedAt,
	})
	return nil
}

func chapterIDParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "chapterID"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.BadRequestError(err, "invalid chapter id")
	}
	return id, nil
}
