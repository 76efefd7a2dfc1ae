package enums

import "fmt"

// OrderStatus tracks the lifecycle of a buyer order.
type OrderStatus string

const (
	OrderStatusPendingPayment OrderStatus = "pending_payment"
	OrderStatusProcessing     OrderStatus = "processing"
	OrderStatusReady          OrderStatus = "ready"
	OrderStatusTransferring   OrderStatus = "transferring"
	OrderStatusFinished       OrderStatus = "finished"
	OrderStatusCancelled      OrderStatus = "cancelled"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusPendingPayment,
	OrderStatusProcessing,
	OrderStatusReady,
	OrderStatusTransferring,
	OrderStatusFinished,
	OrderStatusCancelled,
}

// orderTransitions is the single source of truth for the status machine.
// Every status write goes through a guard built from this table; nothing
// mutates orders.status directly.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPendingPayment: {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing:     {OrderStatusReady, OrderStatusTransferring, OrderStatusCancelled},
	OrderStatusReady:          {OrderStatusFinished, OrderStatusCancelled},
	OrderStatusTransferring:   {OrderStatusFinished},
	OrderStatusFinished:       {},
	OrderStatusCancelled:      {},
}

// ActiveOrderStatuses are the non-terminal statuses.
var ActiveOrderStatuses = []OrderStatus{
	OrderStatusPendingPayment,
	OrderStatusProcessing,
	OrderStatusReady,
	OrderStatusTransferring,
}

// CancellableOrderStatuses are the statuses a cancellation may start from.
var CancellableOrderStatuses = []OrderStatus{
	OrderStatusPendingPayment,
	OrderStatusProcessing,
	OrderStatusReady,
}

// String implements fmt.Stringer.
func (s OrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known OrderStatus.
func (s OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status ends the order lifecycle.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusFinished || s == OrderStatusCancelled
}

// CanTransitionTo reports whether to is a legal next status.
func (s OrderStatus) CanTransitionTo(to OrderStatus) bool {
	for _, candidate := range orderTransitions[s] {
		if candidate == to {
			return true
		}
	}
	return false
}

// IsCancellable reports whether a cancellation may start from this status.
func (s OrderStatus) IsCancellable() bool {
	for _, candidate := range CancellableOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
