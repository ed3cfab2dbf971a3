package domain

import "fmt"

// Kind is the machine-readable error class surfaced to API callers.
type Kind string

const (
	KindNotFound           Kind = "not_found"
	KindBusinessValidation Kind = "business_validation"
	KindStockNotEnough     Kind = "stock_not_enough"
	KindSignatureInvalid   Kind = "signature_invalid"
	KindNotImplemented     Kind = "not_implemented"
)

type Error struct {
	Kind    Kind
	Message string
	// Product is set for KindStockNotEnough.
	Product string
}

func (e *Error) Error() string {
	if e.Kind == KindStockNotEnough {
		return fmt.Sprintf("not enough stock for product %q", e.Product)
	}
	if e.Message == "" {
		return string(e.Kind)
	}
	return e.Message
}

// Is matches on kind; a target with a message must also match the message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Message == "" || t.Message == e.Message
}

var (
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrBusinessValidation = &Error{Kind: KindBusinessValidation}
	ErrStockNotEnough     = &Error{Kind: KindStockNotEnough}
	ErrSignatureInvalid   = &Error{Kind: KindSignatureInvalid, Message: "check mac value mismatch"}
	ErrNotImplemented     = &Error{Kind: KindNotImplemented}

	ErrEmptyCart           = BusinessValidation("cart is empty, nothing to checkout")
	ErrUserNotFound        = NotFound("user not found")
	ErrOrderNotFound       = NotFound("order not found")
	ErrProductNotFound     = NotFound("product not found")
	ErrShipmentNotFound    = NotFound("shipment not found")
	ErrConcurrentOrderEdit = BusinessValidation("order was modified concurrently, reload and retry")
)

func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

func BusinessValidation(msg string) *Error {
	return &Error{Kind: KindBusinessValidation, Message: msg}
}

func StockNotEnough(productName string) *Error {
	return &Error{Kind: KindStockNotEnough, Product: productName}
}

func NotImplemented(msg string) *Error {
	return &Error{Kind: KindNotImplemented, Message: msg}
}
