package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/fjod/go_shop/orders-service/internal/domain"
	"github.com/fjod/go_shop/orders-service/internal/service"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Replies the gateway expects on its server-to-server callback.
const (
	callbackAck         = "1|OK"
	callbackBadSig      = "0|CheckMacValue Error"
	callbackRetryLater  = "0|Error"
	maxCallbackBodySize = 64 << 10
)

type PaymentHandler struct {
	payments service.PaymentService
	timeout  time.Duration
	log      *zap.Logger
}

func NewPaymentHandler(payments service.PaymentService, timeout time.Duration, log *zap.Logger) *PaymentHandler {
	return &PaymentHandler{payments: payments, timeout: timeout, log: log}
}

// POST /api/v1/payments/{provider}/checkout/{order_id}
func (h *PaymentHandler) PrepareCheckout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	orderID, ok := pathID(w, r, "order_id")
	if !ok {
		return
	}

	form, err := h.payments.PrepareCheckout(ctx, chi.URLParam(r, "provider"), orderID, userID)
	if err != nil {
		handleServiceError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, form)
}

// POST /api/v1/payments/{provider}/callback
//
// The body is form-encoded and unauthenticated; the gateway signature is the only credential.
func (h *PaymentHandler) Callback(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	r.Body = http.MaxBytesReader(w, r.Body, maxCallbackBodySize)
	if err := r.ParseForm(); err != nil {
		replyText(w, http.StatusBadRequest, callbackRetryLater)
		return
	}

	err := h.payments.HandleCallback(ctx, chi.URLParam(r, "provider"), formParams(r))
	switch {
	case err == nil:
		replyText(w, http.StatusOK, callbackAck)
	case errors.Is(err, domain.ErrSignatureInvalid):
		replyText(w, http.StatusBadRequest, callbackBadSig)
	case errors.Is(err, domain.ErrNotFound):
		replyText(w, http.StatusNotFound, callbackRetryLater)
	default:
		replyText(w, http.StatusInternalServerError, callbackRetryLater)
	}
}

// formParams flattens the posted form, keeping the first value of each field.
func formParams(r *http.Request) map[string]string {
	params := make(map[string]string, len(r.PostForm))
	for k, v := range r.PostForm {
		if len(v) > 0 {
			params[k] = v[0]
		}
	}
	return params
}

func replyText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
