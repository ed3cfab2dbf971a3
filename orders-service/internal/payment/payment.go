package payment

import (
	"time"
)

type Item struct {
	Name     string
	Quantity int
}

// CheckoutOrder is what a gateway needs to render its hosted checkout form.
type CheckoutOrder struct {
	OrderID     int64
	TotalAmount int64
	Items       []Item
}

// Form is a set of fields the browser posts to Action.
type Form struct {
	Action          string            `json:"action"`
	Fields          map[string]string `json:"fields"`
	MerchantTradeNo string            `json:"merchant_trade_no,omitempty"`
}

// Notification is a gateway callback after its signature has been verified.
type Notification struct {
	MerchantTradeNo string
	Success         bool
	ReturnCode      string
	ReturnMessage   string
	GatewayTradeNo  string
	PaymentType     string
	// PaymentDate is nil when the gateway sent no date or one that did not parse; RawPaymentDate keeps the input.
	PaymentDate    *time.Time
	RawPaymentDate string
}

type Gateway interface {
	Name() string
	CheckoutForm(order CheckoutOrder, now time.Time) (*Form, error)
	VerifyCallback(params map[string]string) bool
	ParseNotification(params map[string]string) Notification
}

// Registry maps a provider name from the URL to its gateway.
type Registry struct {
	gateways map[string]Gateway
}

func NewRegistry(gateways ...Gateway) *Registry {
	r := &Registry{gateways: make(map[string]Gateway, len(gateways))}
	for _, g := range gateways {
		r.gateways[g.Name()] = g
	}
	return r
}

func (r *Registry) Lookup(provider string) (Gateway, bool) {
	g, ok := r.gateways[provider]
	return g, ok
}
