package enums

// ClaimStatus is the courier provider's claim lifecycle vocabulary. The
// provider owns this state machine; locally we only distinguish terminal
// outcomes from everything else.
type ClaimStatus string

const (
	ClaimStatusNew                  ClaimStatus = "new"
	ClaimStatusEstimating           ClaimStatus = "estimating"
	ClaimStatusReadyForApproval     ClaimStatus = "ready_for_approval"
	ClaimStatusAccepted             ClaimStatus = "accepted"
	ClaimStatusPerformerLookup      ClaimStatus = "performer_lookup"
	ClaimStatusPerformerDraft       ClaimStatus = "performer_draft"
	ClaimStatusPerformerFound       ClaimStatus = "performer_found"
	ClaimStatusPickupArrived        ClaimStatus = "pickup_arrived"
	ClaimStatusReadyForPickup       ClaimStatus = "ready_for_pickup_confirmation"
	ClaimStatusPickuped             ClaimStatus = "pickuped"
	ClaimStatusDeliveryArrived      ClaimStatus = "delivery_arrived"
	ClaimStatusReadyForDelivery     ClaimStatus = "ready_for_delivery_confirmation"
	ClaimStatusDelivering           ClaimStatus = "delivering"
	ClaimStatusPayWaiting           ClaimStatus = "pay_waiting"
	ClaimStatusDeliveredFinish      ClaimStatus = "delivered_finish"
	ClaimStatusReturnedFinish       ClaimStatus = "returned_finish"
	ClaimStatusFailed               ClaimStatus = "failed"
	ClaimStatusCancelled            ClaimStatus = "cancelled"
	ClaimStatusCancelledWithPayment ClaimStatus = "cancelled_with_payment"
	ClaimStatusCancelledByTaxi      ClaimStatus = "cancelled_by_taxi"
)

var terminalClaimStatuses = []ClaimStatus{
	ClaimStatusDeliveredFinish,
	ClaimStatusReturnedFinish,
	ClaimStatusFailed,
	ClaimStatusCancelled,
	ClaimStatusCancelledWithPayment,
	ClaimStatusCancelledByTaxi,
}

// String implements fmt.Stringer.
func (c ClaimStatus) String() string {
	return string(c)
}

// IsTerminal reports whether the provider considers the claim ended.
func (c ClaimStatus) IsTerminal() bool {
	for _, candidate := range terminalClaimStatuses {
		if candidate == c {
			return true
		}
	}
	return false
}

// TerminalOrderStatus maps a terminal claim status onto the local order
// outcome: a completed delivery finishes the order, every other terminal
// (returned, failed, cancelled variants) cancels it. The second return is
// false for non-terminal claim statuses.
func (c ClaimStatus) TerminalOrderStatus() (OrderStatus, bool) {
	if !c.IsTerminal() {
		return "", false
	}
	if c == ClaimStatusDeliveredFinish {
		return OrderStatusFinished, true
	}
	return OrderStatusCancelled, true
}
