package ecpay

import (
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/url"
	"time"

	"github.com/fjod/go_shop/orders-service/internal/payment"
)

var ErrUnsupportedSubType = errors.New("unsupported logistics sub type")

var cvsSubTypes = map[string]bool{
	"UNIMART":    true,
	"FAMI":       true,
	"HILIFE":     true,
	"OKMART":     true,
	"UNIMARTC2C": true,
	"FAMIC2C":    true,
	"HILIFEC2C":  true,
	"OKMARTC2C":  true,
}

var autoSubmit = template.Must(template.New("map").Parse(`<!DOCTYPE html>
<html><body>
<form id="ecpay-form" action="{{.Action}}" method="POST">
{{- range $name, $value := .Fields}}
<input type="hidden" name="{{$name}}" value="{{$value}}" />
{{- end}}
</form>
<script>document.getElementById("ecpay-form").submit();</script>
</body></html>
`))

// MapForm builds the store-picker request. The map step is not signed and nothing is persisted.
func (c *Client) MapForm(subType string, now time.Time) (*payment.Form, error) {
	if !cvsSubTypes[subType] {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedSubType, subType)
	}
	return &payment.Form{
		Action: c.cfg.MapURL,
		Fields: map[string]string{
			"MerchantID":       c.cfg.MerchantID,
			"MerchantTradeNo":  fmt.Sprintf("Map%d", now.UnixMilli()),
			"LogisticsType":    "CVS",
			"LogisticsSubType": subType,
			"IsCollection":     "N",
			"ServerReplyURL":   c.cfg.MapReplyURL,
		},
	}, nil
}

// RenderAutoSubmit writes an HTML page that posts form as soon as it loads.
func RenderAutoSubmit(w io.Writer, form *payment.Form) error {
	return autoSubmit.Execute(w, form)
}

// StoreSelection is what the map posts back once the shopper picks a store.
type StoreSelection struct {
	StoreID   string
	StoreName string
	Address   string
	SubType   string
}

func ParseStoreSelection(params map[string]string) StoreSelection {
	return StoreSelection{
		StoreID:   params["CVSStoreID"],
		StoreName: params["CVSStoreName"],
		Address:   params["CVSAddress"],
		SubType:   params["LogisticsSubType"],
	}
}

// RedirectURL appends the selection to the cart page as query parameters.
func (s StoreSelection) RedirectURL(cartPage string) string {
	q := url.Values{}
	q.Set("storeId", s.StoreID)
	q.Set("storeName", s.StoreName)
	q.Set("address", s.Address)
	q.Set("type", s.SubType)
	return cartPage + "?" + q.Encode()
}
