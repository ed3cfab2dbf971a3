package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_shop/orders-service/internal/domain"
	"github.com/fjod/go_shop/orders-service/internal/metrics"
	"github.com/fjod/go_shop/orders-service/internal/payment"
	"github.com/fjod/go_shop/orders-service/internal/repository"
	"github.com/fjod/go_shop/pkg/logger"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type PaymentService interface {
	PrepareCheckout(ctx context.Context, provider string, orderID, userID int64) (*payment.Form, error)
	HandleCallback(ctx context.Context, provider string, params map[string]string) error
}

type PaymentServiceImpl struct {
	store    repository.Store
	gateways *payment.Registry
	guard    OrderLifecycleGuard
	metrics  *metrics.Metrics
	log      *zap.Logger
	now      func() time.Time
}

var _ PaymentService = (*PaymentServiceImpl)(nil)

func NewPaymentService(store repository.Store, gateways *payment.Registry, m *metrics.Metrics, log *zap.Logger) *PaymentServiceImpl {
	return &PaymentServiceImpl{
		store:    store,
		gateways: gateways,
		metrics:  m,
		log:      logger.Component(log, "payment_service"),
		now:      time.Now,
	}
}

func (s *PaymentServiceImpl) gateway(provider string) (payment.Gateway, error) {
	g, ok := s.gateways.Lookup(provider)
	if !ok {
		return nil, domain.NotFound(fmt.Sprintf("unknown payment provider %q", provider))
	}
	return g, nil
}

// PrepareCheckout builds the signed gateway form for an unpaid order and records its merchant trade number.
func (s *PaymentServiceImpl) PrepareCheckout(ctx context.Context, provider string, orderID, userID int64) (*payment.Form, error) {
	g, err := s.gateway(provider)
	if err != nil {
		return nil, err
	}

	var form *payment.Form
	err = s.store.InTx(ctx, func(tx repository.Tx) error {
		o, _, err := s.guard.ValidateOwnership(ctx, tx, orderID, userID)
		if err != nil {
			return err
		}
		if o.Payment.Status == domain.PaymentStatusPaid {
			return domain.BusinessValidation("order is already paid")
		}
		if !o.Status.CanTransitionTo(domain.OrderStatusPaid) {
			return domain.BusinessValidation(fmt.Sprintf("order in status %s cannot be paid", o.Status))
		}

		items, err := tx.OrderItems(ctx, o.ID)
		if err != nil {
			return err
		}
		lines := make([]payment.Item, 0, len(items))
		for _, it := range items {
			lines = append(lines, payment.Item{Name: it.ProductName, Quantity: it.Quantity})
		}

		f, err := g.CheckoutForm(payment.CheckoutOrder{OrderID: o.ID, TotalAmount: o.TotalAmount, Items: lines}, s.now())
		if err != nil {
			return domain.BusinessValidation(err.Error())
		}

		err = tx.SetMerchantTradeNo(ctx, o.ID, f.MerchantTradeNo)
		if errors.Is(err, repository.ErrDuplicateMerchantTradeNo) {
			return domain.BusinessValidation("payment reference collided, please retry")
		}
		if err != nil {
			return err
		}
		form = f
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("checkout form prepared",
		zap.String("provider", provider),
		zap.Int64("order_id", orderID),
		zap.String("merchant_trade_no", form.MerchantTradeNo))
	return form, nil
}

// HandleCallback applies a server-to-server payment notification.
// A nil return means the gateway may be acknowledged; ErrSignatureInvalid means nothing was touched;
// any other error means the gateway should retry.
func (s *PaymentServiceImpl) HandleCallback(ctx context.Context, provider string, params map[string]string) (err error) {
	ctx, span := tracer.Start(ctx, "PaymentService.HandleCallback",
		trace.WithAttributes(attribute.String("payment.provider", provider)))
	defer func() { endSpan(span, err) }()

	g, err := s.gateway(provider)
	if err != nil {
		return err
	}

	if !g.VerifyCallback(params) {
		s.metrics.Settlements.WithLabelValues(provider, "signature_invalid").Inc()
		s.log.Warn("payment callback rejected: signature mismatch",
			zap.String("provider", provider),
			zap.String("merchant_trade_no", params["MerchantTradeNo"]))
		return domain.ErrSignatureInvalid
	}

	n := g.ParseNotification(params)
	log := logger.WithTrace(ctx, s.log).With(zap.String("provider", provider), zap.String("merchant_trade_no", n.MerchantTradeNo))
	span.SetAttributes(attribute.String("payment.merchant_trade_no", n.MerchantTradeNo))

	if n.RawPaymentDate != "" && n.PaymentDate == nil {
		log.Warn("payment date could not be parsed, storing none", zap.String("payment_date", n.RawPaymentDate))
	}

	var outcome string
	err = s.store.InTx(ctx, func(tx repository.Tx) error {
		o, err := tx.OrderByMerchantTradeNo(ctx, n.MerchantTradeNo)
		if errors.Is(err, repository.ErrOrderNotFound) {
			outcome = "unknown_order"
			return nil
		}
		if err != nil {
			return err
		}

		if o.Payment.Status == domain.PaymentStatusPaid {
			outcome = "duplicate"
			return nil
		}

		code, msg := n.ReturnCode, n.ReturnMessage
		update := repository.PaymentUpdate{
			ExpectedStatus:        o.Status,
			ExpectedPaymentStatus: o.Payment.Status,
			Status:                o.Status,
			ReturnCode:            &code,
			ReturnMessage:         &msg,
		}

		eventType := domain.EventOrderPaymentFailed
		if n.Success {
			update.PaymentStatus = domain.PaymentStatusPaid
			update.MerchantTradeNo = nonEmpty(n.MerchantTradeNo)
			update.Method = nonEmpty(n.PaymentType)
			update.GatewayTradeNo = nonEmpty(n.GatewayTradeNo)
			update.ConfirmedAt = n.PaymentDate
			if o.Status.CanTransitionTo(domain.OrderStatusPaid) {
				update.Status = domain.OrderStatusPaid
			} else {
				log.Warn("payment confirmed for order that cannot become PAID, manual refund required",
					zap.Int64("order_id", o.ID), zap.String("status", o.Status.String()))
			}
			eventType = domain.EventOrderPaid
			outcome = "paid"
		} else {
			update.PaymentStatus = domain.PaymentStatusFailed
			outcome = "failed"
		}

		ok, err := tx.ApplyPayment(ctx, o.ID, update)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrConcurrentOrderEdit
		}

		o.Status = update.Status
		o.Payment.Status = update.PaymentStatus
		return enqueueOrderEvent(ctx, tx, eventType, o, s.now())
	})
	if err != nil {
		s.metrics.Settlements.WithLabelValues(provider, "error").Inc()
		log.Error("payment callback not applied", zap.Error(err))
		return err
	}

	s.metrics.Settlements.WithLabelValues(provider, outcome).Inc()
	switch outcome {
	case "unknown_order":
		log.Warn("payment callback for unknown merchant trade number")
	case "duplicate":
		log.Info("duplicate payment callback ignored")
	default:
		log.Info("payment callback applied",
			zap.String("outcome", outcome),
			zap.String("rtn_code", n.ReturnCode),
			zap.String("rtn_msg", n.ReturnMessage))
	}
	return nil
}

func nonEmpty(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
