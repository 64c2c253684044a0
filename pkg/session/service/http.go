package service

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apperrors "github.com/comicvault/credits/pkg/app/errors"
	apphttp "github.com/comicvault/credits/pkg/app/http"
	"github.com/comicvault/credits/pkg/auth"
)

// HTTP wraps the Service to provide HTTP endpoints
type HTTP struct {
	service Service
	logger  *zap.Logger
}

// RegisterRoutes registers the unauthenticated sign-in endpoints
func RegisterRoutes(r chi.Router, service Service, logger *zap.Logger) {
	h := &HTTP{
		service: service,
		logger:  logger,
	}

	r.Post("/auth/nonce", apphttp.HandleErrorWithLogger(h.nonce, logger))
	r.Post("/auth/verify", apphttp.HandleErrorWithLogger(h.verify, logger))
}

// RegisterUserRoutes registers endpoints that need a session token
func RegisterUserRoutes(r chi.Router, service Service, logger *zap.Logger) {
	h := &HTTP{
		service: service,
		logger:  logger,
	}

	r.Get("/auth/me", apphttp.HandleErrorWithLogger(h.me, logger))
}

type nonceRequest struct {
	Address string `json:"address"`
}

func (h *HTTP) nonce(w http.ResponseWriter, r *http.Request) error {
	var req nonceRequest
	if err := apphttp.DecodeJSON(r, &req); err != nil {
		return err
	}
	if req.Address == "" {
		return apperrors.BadRequestError(nil, "address is required")
	}

	challenge, err := h.service.IssueNonce(r.Context(), req.Address)
	if err != nil {
		return err
	}

	apphttp.WriteJSON(w, http.StatusOK, challenge)
	return nil
}

type verifyRequest struct {
	Message   string `json:"message"`
	Signature string `json:"signature"`
}

func (h *HTTP) verify(w http.ResponseWriter, r *http.Request) error {
	var req verifyRequest
	if err := apphttp.DecodeJSON(r, &req); err != nil {
		return err
	}
	if req.Message == "" || req.Signature == "" {
		return apperrors.BadRequestError(nil, "message and signature are required")
	}

	res, err := h.service.Verify(r.Context(), req.Message, req.Signature)
	if err != nil {
		return err
	}

	apphttp.WriteJSON(w, http.StatusOK, res)
	return nil
}

func (h *HTTP) me(w http.ResponseWriter, r *http.Request) error {
	caller, err := auth.FromRequest(r)
	if err != nil {
		return err
	}

	profile, err := h.service.Me(r.Context(), caller.UserID)
	if err != nil {
		return err
	}

	apphttp.WriteJSON(w, http.StatusOK, profile)
	return nil
}
