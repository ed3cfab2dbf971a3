package ecpay

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fjod/go_shop/orders-service/internal/payment"
)

const (
	ProviderName = "ecpay"

	// DateLayout is ECPay's yyyy/MM/dd HH:mm:ss.
	DateLayout = "2006/01/02 15:04:05"

	maxMerchantTradeNoLen = 20
	successCode           = "1"
)

type Config struct {
	MerchantID    string
	HashKey       string
	HashIV        string
	CheckoutURL   string
	MapURL        string
	ReturnURL     string
	ClientBackURL string
	MapReplyURL   string
	TradeDesc     string
	// Location is the gateway's wall-clock zone for MerchantTradeDate and PaymentDate.
	Location *time.Location
}

type Client struct {
	cfg Config
}

var _ payment.Gateway = (*Client)(nil)

func New(cfg Config) *Client {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Client{cfg: cfg}
}

func (c *Client) Name() string {
	return ProviderName
}

// MerchantTradeNo is "TW" + order id + a four digit clock suffix.
func MerchantTradeNo(orderID int64, now time.Time) string {
	return fmt.Sprintf("TW%d%04d", orderID, now.UnixMilli()%10000)
}

func itemName(items []payment.Item) string {
	parts := make([]string, 0, len(items))
	for _, it := range items {
		parts = append(parts, fmt.Sprintf("%s x %d", it.Name, it.Quantity))
	}
	return strings.Join(parts, "#")
}

func (c *Client) CheckoutForm(order payment.CheckoutOrder, now time.Time) (*payment.Form, error) {
	tradeNo := MerchantTradeNo(order.OrderID, now)
	if len(tradeNo) > maxMerchantTradeNoLen {
		return nil, fmt.Errorf("merchant trade number %q exceeds %d characters", tradeNo, maxMerchantTradeNoLen)
	}

	fields := map[string]string{
		"MerchantID":        c.cfg.MerchantID,
		"MerchantTradeNo":   tradeNo,
		"MerchantTradeDate": now.In(c.cfg.Location).Format(DateLayout),
		"PaymentType":       "aio",
		"TotalAmount":       strconv.FormatInt(order.TotalAmount, 10),
		"TradeDesc":         c.cfg.TradeDesc,
		"ItemName":          itemName(order.Items),
		"ReturnURL":         c.cfg.ReturnURL,
		"ClientBackURL":     c.cfg.ClientBackURL,
		"ChoosePayment":     "ALL",
		"EncryptType":       "1",
	}
	fields[checkMacField] = CheckMacValue(fields, c.cfg.HashKey, c.cfg.HashIV)

	return &payment.Form{
		Action:          c.cfg.CheckoutURL,
		Fields:          fields,
		MerchantTradeNo: tradeNo,
	}, nil
}

func (c *Client) VerifyCallback(params map[string]string) bool {
	return Verify(params, c.cfg.HashKey, c.cfg.HashIV)
}

func (c *Client) ParseNotification(params map[string]string) payment.Notification {
	n := payment.Notification{
		MerchantTradeNo: params["MerchantTradeNo"],
		ReturnCode:      params["RtnCode"],
		ReturnMessage:   params["RtnMsg"],
		GatewayTradeNo:  params["TradeNo"],
		PaymentType:     params["PaymentType"],
		RawPaymentDate:  params["PaymentDate"],
	}
	n.Success = n.ReturnCode == successCode

	if n.RawPaymentDate != "" {
		if t, err := time.ParseInLocation(DateLayout, n.RawPaymentDate, c.cfg.Location); err == nil {
			n.PaymentDate = &t
		}
	}
	return n
}
