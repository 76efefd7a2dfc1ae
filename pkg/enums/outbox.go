package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateOrder   OutboxAggregateType = "order"
	AggregatePayment OutboxAggregateType = "payment"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregatePayment,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventOrderCreated   OutboxEventType = "order_created"
	EventOrderPaid      OutboxEventType = "order_paid"
	EventClaimAccepted  OutboxEventType = "claim_accepted"
	EventOrderFinished  OutboxEventType = "order_finished"
	EventOrderCancelled OutboxEventType = "order_cancelled"
)

var validOutboxEventTypes = []OutboxEventType{
	EventOrderCreated,
	EventOrderPaid,
	EventClaimAccepted,
	EventOrderFinished,
	EventOrderCancelled,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}

// OutboxDLQReason maps to the outbox_dlq_reason enum in Postgres.
type OutboxDLQReason string

const (
	DLQReasonMaxAttempts  OutboxDLQReason = "max_attempts"
	DLQReasonNonRetryable OutboxDLQReason = "non_retryable"
)

var validOutboxDLQReasons = []OutboxDLQReason{
	DLQReasonMaxAttempts,
	DLQReasonNonRetryable,
}

// IsValid reports whether the value matches the canonical outbox_dlq_reason enum.
func (r OutboxDLQReason) IsValid() bool {
	for _, candidate := range validOutboxDLQReasons {
		if candidate == r {
			return true
		}
	}
	return false
}
