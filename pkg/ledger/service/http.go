package service

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	apperrors "github.com/comicvault/credits/pkg/app/errors"
	apphttp "github.com/comicvault/credits/pkg/app/http"
	"github.com/comicvault/credits/pkg/auth"
	"github.com/comicvault/credits/pkg/ledger"
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

// RegisterRoutes registers the caller-facing ledger endpoints. The router
// must already authenticate requests with auth.RequireUser.
func RegisterRoutes(r chi.Router, service Service, logger *zap.Logger) {
	h := newHTTP(service, logger)

	r.Get("/credits/balance", apphttp.HandleErrorWithLogger(h.balance, logger))
	r.Get("/credits/history", apphttp.HandleErrorWithLogger(h.history, logger))
}

// RegisterAdminRoutes registers the admin ledger endpoints. The router must
// already enforce auth.RequireUser and auth.RequireAdmin.
func RegisterAdminRoutes(r chi.Router, service Service, logger *zap.Logger) {
	h := newHTTP(service, logger)

	r.Post("/admin/users/{userID}/credits", apphttp.HandleErrorWithLogger(h.adjust, logger))
	r.Post("/admin/users/{userID}/reconcile", apphttp.HandleErrorWithLogger(h.reconcile, logger))
	r.Get("/admin/stats", apphttp.HandleErrorWithLogger(h.stats, logger))
}

type balanceResponse struct {
	Balance int64 `json:"balance"`
}

type historyResponse struct {
	Transactions []ledger.HistoryEntry `json:"transactions"`
}

func (h *HTTP) balance(w http.ResponseWriter, r *http.Request) error {
	caller, err := auth.FromRequest(r)
	if err != nil {
		return err
	}

	balance, err := h.service.Balance(r.Context(), caller.UserID)
	if err != nil {
		return err
	}

	apphttp.WriteJSON(w, http.StatusOK, balanceResponse{Balance: balance})
	return nil
}

func (h *HTTP) history(w http.ResponseWriter, r *http.Request) error {
	caller, err := auth.FromRequest(r)
	if err != nil {
		return err
	}

	limit, err := queryInt(r, "limit")
	if err != nil {
		return err
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		return err
	}

	txs, err := h.service.History(r.Context(), caller.UserID, limit, offset)
	if err != nil {
		return err
	}

	entries := make([]ledger.HistoryEntry, len(txs))
	for i, tx := range txs {
		entries[i] = tx.ToHistoryEntry()
	}

	apphttp.WriteJSON(w, http.StatusOK, historyResponse{Transactions: entries})
	return nil
}

func (h *HTTP) adjust(w http.ResponseWriter, r *http.Request) error {
	caller, err := auth.FromRequest(r)
	if err != nil {
		return err
	}
	userID, err := pathID(r, "userID")
	if err != nil {
		return err
	}

	var req ledger.AdjustmentRequest
	if err := apphttp.DecodeJSON(r, &req); err != nil {
		return err
	}
	if err := h.validate.Struct(&req); err != nil {
		return apperrors.BadRequestError(err, "amount must be non-zero and reason between 3 and 500 characters")
	}
	req.UserID = userID
	req.ActorID = caller.UserID

	balance, err := h.service.AppendAdminAdjustment(r.Context(), nil, &req)
	if err != nil {
		return err
	}

	apphttp.WriteJSON(w, http.StatusOK, balanceResponse{Balance: balance})
	return nil
}

func (h *HTTP) reconcile(w http.ResponseWriter, r *http.Request) error {
	userID, err := pathID(r, "userID")
	if err != nil {
		return err
	}

	res, err := h.service.Reconcile(r.Context(), userID)
	if err != nil {
		return err
	}

	apphttp.WriteJSON(w, http.StatusOK, res)
	return nil
}

func (h *HTTP) stats(w http.ResponseWriter, r *http.Request) error {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		return err
	}

	apphttp.WriteJSON(w, http.StatusOK, stats)
	return nil
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.BadRequestError(err, "invalid "+name)
	}
	return id, nil
}

func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperrors.BadRequestError(err, "invalid "+name)
	}
	return v, nil
}
