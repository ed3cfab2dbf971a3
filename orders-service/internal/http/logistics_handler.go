package http

import (
	"bytes"
	"errors"
	"net/http"
	"time"

	"github.com/fjod/go_shop/orders-service/internal/payment"
	"github.com/fjod/go_shop/orders-service/internal/payment/ecpay"
	"go.uber.org/zap"
)

type MapFormer interface {
	MapForm(subType string, now time.Time) (*payment.Form, error)
}

type LogisticsHandler struct {
	maps     MapFormer
	cartPage string
	log      *zap.Logger
	now      func() time.Time
}

func NewLogisticsHandler(maps MapFormer, cartPage string, log *zap.Logger) *LogisticsHandler {
	return &LogisticsHandler{maps: maps, cartPage: cartPage, log: log, now: time.Now}
}

// POST /api/v1/logistics/map
func (h *LogisticsHandler) Map(w http.ResponseWriter, r *http.Request) {
	subType := r.FormValue("logisticsSubType")
	form, err := h.maps.MapForm(subType, h.now())
	if errors.Is(err, ecpay.ErrUnsupportedSubType) {
		respondError(w, http.StatusBadRequest, "invalid_logistics_sub_type", err.Error())
		return
	}
	if err != nil {
		h.log.Error("failed to build map form", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	var page bytes.Buffer
	if err := ecpay.RenderAutoSubmit(&page, form); err != nil {
		h.log.Error("failed to render map form", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = page.WriteTo(w)
}

// POST /api/v1/logistics/map-callback
//
// The store selection arrives unsigned and is only echoed back to the cart page;
// checkout validates the delivery selection again.
func (h *LogisticsHandler) MapCallback(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid form body")
		return
	}
	sel := ecpay.ParseStoreSelection(formParams(r))
	h.log.Info("store selected", zap.String("store_id", sel.StoreID), zap.String("sub_type", sel.SubType))
	http.Redirect(w, r, sel.RedirectURL(h.cartPage), http.StatusFound)
}
