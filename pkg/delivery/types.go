package delivery

import (
	"time"

	"github.com/angelmondragon/kiosko-backend/pkg/enums"
)

// RoutePoint is one end of the claim route. Porch/Floor/Apartment are
// optional address details the provider renders for the courier.
type RoutePoint struct {
	Fullname     string
	Lat          float64
	Lon          float64
	Porch        *string
	Floor        *string
	Apartment    *string
	ContactName  string
	ContactPhone string
}

// Item is one cargo line. Weight and dimensions come from the stock
// position's physical attributes; cost is the snapshot unit price.
type Item struct {
	Title     string
	CostCents int64
	Currency  string
	Quantity  int
	WeightKG  float64
	LengthM   float64
	WidthM    float64
	HeightM   float64
}

// QuoteRequest asks the provider to price a route without creating a claim.
type QuoteRequest struct {
	Items       []Item
	Source      RoutePoint
	Destination RoutePoint
}

// ClaimRequest creates a delivery claim draft.
type ClaimRequest struct {
	Items       []Item
	Source      RoutePoint
	Destination RoutePoint
	Comment     string
}

// ClaimInfo is the provider's view of a claim. Version guards concurrent
// provider-side edits: accept and cancel must echo the exact version they
// read or the provider rejects the operation.
type ClaimInfo struct {
	ID      string
	Status  enums.ClaimStatus
	Version int
}

// CancellationInfo reports whether a claim can still be cancelled and at
// what cost.
type CancellationInfo struct {
	State    enums.CancelState
	FeeCents int64
}

// CourierContact is the voice-forwarding phone for the assigned courier.
type CourierContact struct {
	Phone string
	Ext   string
}

// ETA is the expected arrival at the destination point.
type ETA struct {
	ExpectedAt time.Time
}
