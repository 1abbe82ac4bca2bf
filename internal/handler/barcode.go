package handler

import (
	"context"
	"errors"
	"net/http"

	"pantrypal-api/internal/barcode"
	"pantrypal-api/internal/logging"
	"pantrypal-api/pkg/apierror"
	"pantrypal-api/pkg/response"

	"github.com/go-chi/chi/v5"
)

// ProductLookup finds product data by barcode.
type ProductLookup interface {
	Lookup(ctx context.Context, code string) (*barcode.Product, error)
}

// BarcodeHandler serves barcode lookups used to prefill new items.
type BarcodeHandler struct {
	lookup ProductLookup
	log    logging.Logger
}

// NewBarcodeHandler creates a new barcode handler.
func NewBarcodeHandler(lookup ProductLookup, log logging.Logger) *BarcodeHandler {
	return &BarcodeHandler{lookup: lookup, log: logging.For(log, "barcode_handler")}
}

// Lookup handles GET /api/v1/barcode/{code}
func (h *BarcodeHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	product, err := h.lookup.Lookup(r.Context(), chi.URLParam(r, "code"))
	switch {
	case err == nil:
		response.OK(w, product)
	case errors.Is(err, barcode.ErrInvalidBarcode), errors.Is(err, barcode.ErrProductNotFound):
		writeError(w, r, h.log, err)
	default:
		h.log.Warn("barcode lookup failed", "error", err)
		response.Error(w, apierror.BadGateway("Product lookup failed"))
	}
}
