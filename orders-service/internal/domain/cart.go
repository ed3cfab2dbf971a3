package domain

import (
	"fmt"
	"time"
)

type Product struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       int64  `json:"price"`
	Stock       int    `json:"stock"`
}

// CartLine is one cart entry joined with the product it refers to.
type CartLine struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	ProductID int64     `json:"product_id"`
	Name      string    `json:"product_name"`
	UnitPrice int64     `json:"unit_price"`
	Quantity  int       `json:"quantity"`
	AddedAt   time.Time `json:"added_at"`
}

func (l CartLine) Subtotal() int64 {
	return l.UnitPrice * int64(l.Quantity)
}

type Cart struct {
	UserID int64      `json:"user_id"`
	Lines  []CartLine `json:"lines"`
	Total  int64      `json:"total"`
}

func NewCart(userID int64, lines []CartLine) *Cart {
	c := &Cart{UserID: userID, Lines: lines}
	for _, l := range lines {
		c.Total += l.Subtotal()
	}
	return c
}

const MaxCartQuantity = 99

// DeliverySelection is what the caller picks at checkout.
type DeliverySelection struct {
	LogisticsType string `json:"logistics_type"`
	SubType       string `json:"logistics_sub_type"`
	StoreID       string `json:"store_id"`
	StoreName     string `json:"store_name"`
	Address       string `json:"address"`
}

func (d DeliverySelection) Validate() error {
	switch d.LogisticsType {
	case LogisticsTypeHome:
		if d.Address == "" {
			return BusinessValidation("shipping address is required for home delivery")
		}
	case LogisticsTypeCVS:
		if d.SubType == "" || d.StoreID == "" || d.StoreName == "" || d.Address == "" {
			return BusinessValidation("convenience store delivery requires sub type, store id, name and address")
		}
	default:
		return BusinessValidation(fmt.Sprintf("unsupported logistics type %q", d.LogisticsType))
	}
	return nil
}

// Freeze copies the delivery selection onto a new order.
func (d DeliverySelection) Freeze() (string, Logistics) {
	if d.LogisticsType == LogisticsTypeCVS {
		storeID, storeName, storeAddress := d.StoreID, d.StoreName, d.Address
		return fmt.Sprintf("[%s %s] %s", d.SubType, d.StoreName, d.Address), Logistics{
			Type:         LogisticsTypeCVS,
			SubType:      d.SubType,
			StoreID:      &storeID,
			StoreName:    &storeName,
			StoreAddress: &storeAddress,
		}
	}
	return d.Address, Logistics{Type: LogisticsTypeHome, SubType: HomeSubType}
}
