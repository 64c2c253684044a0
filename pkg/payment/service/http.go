package service

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apperrors "github.com/comicvault/credits/pkg/app/errors"
	apphttp "github.com/comicvault/credits/pkg/app/http"
	"github.com/comicvault/credits/pkg/auth"
	"github.com/comicvault/credits/pkg/payment"
)

// HTTP wraps the Service to provide HTTP endpoints
type HTTP struct {
	service Service
	logger  *zap.Logger
}

// RegisterRoutes registers the purchase verification endpoint
func RegisterRoutes(r chi.Router, service Service, logger *zap.Logger) {
	h := &HTTP{
		service: service,
		logger:  logger,
	}

	r.Post("/credits/purchase/verify", apphttp.HandleErrorWithLogger(h.verify, logger))
}

type verifyRequest struct {
	TxHash  string `json:"transaction_hash"`
	ChainID int64  `json:"chain_id"`
}

func (h *HTTP) verify(w http.ResponseWriter, r *http.Request) error {
	caller, err := auth.FromRequest(r)
	if err != nil {
		return err
	}

	var req verifyRequest
	if err := apphttp.DecodeJSON(r, &req); err != nil {
		return err
	}
	if req.TxHash == "" {
		return apperrors.BadRequestError(nil, "transaction_hash is required")
	}

	res, err := h.service.VerifyAndCredit(r.Context(), &payment.PurchaseRequest{
		UserID:       caller.UserID,
		BuyerAddress: caller.WalletAddress,
		TxHash:       req.TxHash,
		ChainID:      req.ChainID,
	})
	if err != nil {
		return err
	}

	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	apphttp.WriteJSON(w, status, res)
	return nil
}
