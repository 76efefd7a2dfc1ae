package types

import (
	"time"

	cbigquery "cloud.google.com/go/bigquery"
)

// OrderSaleRow mirrors the order_sales BigQuery schema. One row per order
// that reached the finished state.
type OrderSaleRow struct {
	EventID           string             `bigquery:"event_id"`
	OrderID           string             `bigquery:"order_id"`
	BuyerID           string             `bigquery:"buyer_id"`
	FulfillmentMethod string             `bigquery:"fulfillment_method"`
	GoodsTotalCents   int64              `bigquery:"goods_total_cents"`
	DeliveryCostCents int64              `bigquery:"delivery_cost_cents"`
	UsedPoints        int64              `bigquery:"used_points"`
	PaidCents         int64              `bigquery:"paid_cents"`
	FinishedAt        time.Time          `bigquery:"finished_at"`
	OccurredAt        time.Time          `bigquery:"occurred_at"`
	Payload           cbigquery.NullJSON `bigquery:"payload"`
}

// OrderCancellationRow mirrors the order_cancellations BigQuery schema. One
// row per cancellation, whatever path triggered it.
type OrderCancellationRow struct {
	EventID        string             `bigquery:"event_id"`
	OrderID        string             `bigquery:"order_id"`
	BuyerID        string             `bigquery:"buyer_id"`
	PreviousStatus string             `bigquery:"previous_status"`
	Reason         *string            `bigquery:"reason"`
	CancelledAt    time.Time          `bigquery:"cancelled_at"`
	OccurredAt     time.Time          `bigquery:"occurred_at"`
	Payload        cbigquery.NullJSON `bigquery:"payload"`
}
