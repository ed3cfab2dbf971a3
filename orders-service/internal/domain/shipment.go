package domain

import "time"

type ShipmentStatus string

const (
	ShipmentStatusPending   ShipmentStatus = "PENDING_SHIPMENT"
	ShipmentStatusShipped   ShipmentStatus = "SHIPPED"
	ShipmentStatusDelivered ShipmentStatus = "DELIVERED"
	ShipmentStatusArrived   ShipmentStatus = "ARRIVED"
)

var shipmentNext = map[ShipmentStatus]ShipmentStatus{
	ShipmentStatusPending:   ShipmentStatusShipped,
	ShipmentStatusShipped:   ShipmentStatusDelivered,
	ShipmentStatusDelivered: ShipmentStatusArrived,
}

// IsShipped is true for every status past PENDING_SHIPMENT.
func (s ShipmentStatus) IsShipped() bool {
	return s != ShipmentStatusPending
}

// CanAdvanceTo allows exactly one step forward.
func (s ShipmentStatus) CanAdvanceTo(next ShipmentStatus) bool {
	n, ok := shipmentNext[s]
	return ok && n == next
}

func (s ShipmentStatus) Valid() bool {
	_, ok := shipmentNext[s]
	return ok || s == ShipmentStatusArrived
}

func (s ShipmentStatus) String() string {
	return string(s)
}

type Shipment struct {
	ID        int64          `json:"id"`
	OrderID   int64          `json:"order_id"`
	Status    ShipmentStatus `json:"status"`
	UpdatedAt time.Time      `json:"updated_at"`
}
