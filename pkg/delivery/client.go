package delivery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/kiosko-backend/pkg/config"
	"github.com/angelmondragon/kiosko-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/kiosko-backend/pkg/errors"
	"github.com/angelmondragon/kiosko-backend/pkg/logger"
)

const (
	claimsBasePath        = "/b2b/cargo/integration/v2"
	responseBodyLogLimit  = 1024
	defaultRequestTimeout = 10 * time.Second
)

var (
	errTokenRequired  = errors.New("delivery token is required")
	errLoggerRequired = errors.New("delivery logger is required")
)

// Gateway is the courier provider surface the orchestrator depends on.
// The provider owns the claim lifecycle; every call here is a remote
// request with a bounded timeout.
type Gateway interface {
	QuotePrice(ctx context.Context, req QuoteRequest) (int64, error)
	CreateClaim(ctx context.Context, req ClaimRequest) (*ClaimInfo, error)
	AcceptClaim(ctx context.Context, claimID string, version int) (*ClaimInfo, error)
	GetClaimInfo(ctx context.Context, claimID string) (*ClaimInfo, error)
	GetCancellationInfo(ctx context.Context, claimID string) (*CancellationInfo, error)
	CancelClaim(ctx context.Context, claimID string, state enums.CancelState, version int) error
	GetETA(ctx context.Context, claimID string) (*ETA, error)
	GetTrackingLink(ctx context.Context, claimID string) (string, error)
	GetCourierContact(ctx context.Context, claimID string) (*CourierContact, error)
}

// Client talks to the cargo claims API over authenticated HTTPS.
type Client struct {
	rest      *resty.Client
	taxiClass string
	logg      *logger.Logger
}

var _ Gateway = (*Client)(nil)

// NewClient builds the delivery gateway client from configuration.
func NewClient(cfg config.DeliveryConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errTokenRequired
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	taxiClass := strings.TrimSpace(cfg.TaxiClass)
	if taxiClass == "" {
		taxiClass = "express"
	}

	rest := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetAuthToken(token).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept-Language", "en")

	return &Client{rest: rest, taxiClass: taxiClass, logg: logg}, nil
}

// QuotePrice asks the provider to price the route. The provider quotes a
// decimal money string; the result is converted to integer minor units.
func (c *Client) QuotePrice(ctx context.Context, req QuoteRequest) (int64, error) {
	payload := map[string]any{
		"items":        quoteItems(req.Items),
		"route_points": []map[string]any{quotePoint(req.Source), quotePoint(req.Destination)},
		"requirements": map[string]any{"taxi_class": c.taxiClass},
	}

	var out struct {
		Price string `json:"price"`
	}
	resp, err := c.rest.R().
		SetContext(ctx).
		SetBody(payload).
		SetResult(&out).
		Post(claimsBasePath + "/check-price")
	if err := c.checkResponse(ctx, resp, err, "check price"); err != nil {
		return 0, err
	}

	price, err := decimal.NewFromString(out.Price)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "parse delivery price").
			WithDetails(map[string]any{"price": out.Price})
	}
	return price.Mul(decimal.NewFromInt(100)).Round(0).IntPart(), nil
}

// CreateClaim lodges a claim draft with the provider. The draft must still
// be accepted before a courier is dispatched.
func (c *Client) CreateClaim(ctx context.Context, req ClaimRequest) (*ClaimInfo, error) {
	payload := map[string]any{
		"items": claimItems(req.Items),
		"route_points": []map[string]any{
			claimPoint(req.Source, 1, "source"),
			claimPoint(req.Destination, 2, "destination"),
		},
		"client_requirements": map[string]any{"taxi_class": c.taxiClass},
	}
	if comment := strings.TrimSpace(req.Comment); comment != "" {
		payload["comment"] = comment
	}

	var out claimInfoPayload
	resp, err := c.rest.R().
		SetContext(ctx).
		SetQueryParam("request_id", uuid.NewString()).
		SetBody(payload).
		SetResult(&out).
		Post(claimsBasePath + "/claims/create")
	if err := c.checkResponse(ctx, resp, err, "create claim"); err != nil {
		return nil, err
	}
	return out.toClaimInfo(), nil
}

// AcceptClaim confirms a claim draft, starting the courier search. The
// version must match the provider's current claim version.
func (c *Client) AcceptClaim(ctx context.Context, claimID string, version int) (*ClaimInfo, error) {
	var out claimInfoPayload
	resp, err := c.rest.R().
		SetContext(ctx).
		SetQueryParam("claim_id", claimID).
		SetBody(map[string]any{"version": version}).
		SetResult(&out).
		Post(claimsBasePath + "/claims/accept")
	if err := c.checkResponse(ctx, resp, err, "accept claim"); err != nil {
		return nil, err
	}
	return out.toClaimInfo(), nil
}

// GetClaimInfo reads the current provider status and version of a claim.
func (c *Client) GetClaimInfo(ctx context.Context, claimID string) (*ClaimInfo, error) {
	var out claimInfoPayload
	resp, err := c.rest.R().
		SetContext(ctx).
		SetQueryParam("claim_id", claimID).
		SetResult(&out).
		Post(claimsBasePath + "/claims/info")
	if err := c.checkResponse(ctx, resp, err, "claim info"); err != nil {
		return nil, err
	}
	return out.toClaimInfo(), nil
}

// GetCancellationInfo reports the current cancellation eligibility. A
// vocabulary the provider adds later parses to unavailable, never to free.
func (c *Client) GetCancellationInfo(ctx context.Context, claimID string) (*CancellationInfo, error) {
	var out struct {
		CancelState string `json:"cancel_state"`
		Price       string `json:"cancel_price,omitempty"`
	}
	resp, err := c.rest.R().
		SetContext(ctx).
		SetQueryParam("claim_id", claimID).
		SetResult(&out).
		Post(claimsBasePath + "/claims/cancel-info")
	if err := c.checkResponse(ctx, resp, err, "claim cancel info"); err != nil {
		return nil, err
	}

	state, _ := enums.ParseCancelState(out.CancelState)
	info := &CancellationInfo{State: state}
	if out.Price != "" {
		if fee, err := decimal.NewFromString(out.Price); err == nil {
			info.FeeCents = fee.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
		}
	}
	return info, nil
}

// CancelClaim cancels the claim with the eligibility state the caller read.
// A version mismatch comes back as a conflict the caller may retry once with
// fresh claim info; it must never be forced through.
func (c *Client) CancelClaim(ctx context.Context, claimID string, state enums.CancelState, version int) error {
	resp, err := c.rest.R().
		SetContext(ctx).
		SetQueryParam("claim_id", claimID).
		SetBody(map[string]any{"version": version, "cancel_state": state.String()}).
		Post(claimsBasePath + "/claims/cancel")
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delivery cancel claim failed")
	}
	if resp.StatusCode() == http.StatusConflict {
		return pkgerrors.New(pkgerrors.CodeConflict, "claim version changed on provider side")
	}
	return c.checkResponse(ctx, resp, nil, "cancel claim")
}

// GetETA returns the expected arrival at the destination point, or nil when
// the provider has not published one yet.
func (c *Client) GetETA(ctx context.Context, claimID string) (*ETA, error) {
	var out struct {
		RoutePoints []struct {
			Type      string `json:"type"`
			VisitedAt struct {
				Expected string `json:"expected"`
			} `json:"visited_at"`
		} `json:"route_points"`
	}
	resp, err := c.rest.R().
		SetContext(ctx).
		SetQueryParam("claim_id", claimID).
		SetResult(&out).
		Post(claimsBasePath + "/claims/points-eta")
	if err := c.checkResponse(ctx, resp, err, "claim eta"); err != nil {
		return nil, err
	}

	for _, point := range out.RoutePoints {
		if point.Type != "destination" || point.VisitedAt.Expected == "" {
			continue
		}
		expected, err := time.Parse(time.RFC3339, point.VisitedAt.Expected)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "parse eta timestamp")
		}
		return &ETA{ExpectedAt: expected}, nil
	}
	return nil, nil
}

// GetTrackingLink returns the shareable courier map link for the
// destination point, or empty when the provider has not issued one.
func (c *Client) GetTrackingLink(ctx context.Context, claimID string) (string, error) {
	var out struct {
		RoutePoints []struct {
			Type        string `json:"type"`
			SharingLink string `json:"sharing_link"`
		} `json:"route_points"`
	}
	resp, err := c.rest.R().
		SetContext(ctx).
		SetQueryParam("claim_id", claimID).
		SetResult(&out).
		Get(claimsBasePath + "/claims/tracking-links")
	if err := c.checkResponse(ctx, resp, err, "claim tracking links"); err != nil {
		return "", err
	}

	for _, point := range out.RoutePoints {
		if point.Type == "destination" && point.SharingLink != "" {
			return point.SharingLink, nil
		}
	}
	return "", nil
}

// GetCourierContact returns the voice-forwarding phone for the assigned
// courier.
func (c *Client) GetCourierContact(ctx context.Context, claimID string) (*CourierContact, error) {
	var out struct {
		Phone string `json:"phone"`
		Ext   string `json:"ext"`
	}
	resp, err := c.rest.R().
		SetContext(ctx).
		SetBody(map[string]any{"claim_id": claimID}).
		SetResult(&out).
		Post(claimsBasePath + "/driver-voiceforwarding")
	if err := c.checkResponse(ctx, resp, err, "courier contact"); err != nil {
		return nil, err
	}
	if out.Phone == "" {
		return nil, nil
	}
	return &CourierContact{Phone: out.Phone, Ext: out.Ext}, nil
}

// checkResponse maps transport failures and non-2xx answers onto one
// dependency error carrying the raw status and a truncated body for logs.
func (c *Client) checkResponse(ctx context.Context, resp *resty.Response, err error, op string) error {
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("delivery %s failed", op))
	}
	if resp == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("delivery %s failed: empty response", op))
	}
	if resp.IsError() {
		body := resp.Body()
		if len(body) > responseBodyLogLimit {
			body = body[:responseBodyLogLimit]
		}
		trimmed := strings.TrimSpace(string(body))
		c.logg.Warn(c.logg.WithFields(ctx, map[string]any{
			"op":     op,
			"status": resp.StatusCode(),
		}), "delivery provider returned an error")
		return pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("delivery %s failed", op)).
			WithDetails(map[string]any{
				"status": resp.StatusCode(),
				"body":   trimmed,
			})
	}
	return nil
}

type claimInfoPayload struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Version int    `json:"version"`
}

func (p claimInfoPayload) toClaimInfo() *ClaimInfo {
	return &ClaimInfo{
		ID:      p.ID,
		Status:  enums.ClaimStatus(p.Status),
		Version: p.Version,
	}
}

func quoteItems(items []Item) []map[string]any {
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		out = append(out, map[string]any{
			"quantity": item.Quantity,
			"weight":   item.WeightKG,
			"size": map[string]any{
				"length": item.LengthM,
				"width":  item.WidthM,
				"height": item.HeightM,
			},
		})
	}
	return out
}

func claimItems(items []Item) []map[string]any {
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		out = append(out, map[string]any{
			"title":         item.Title,
			"cost_currency": item.Currency,
			"cost_value":    centsToMoneyString(item.CostCents),
			"quantity":      item.Quantity,
			"weight":        item.WeightKG,
			"pickup_point":  1,
			"dropoff_point": 2,
			"size": map[string]any{
				"length": item.LengthM,
				"width":  item.WidthM,
				"height": item.HeightM,
			},
		})
	}
	return out
}

func quotePoint(point RoutePoint) map[string]any {
	return addressPayload(point)
}

func claimPoint(point RoutePoint, id int, kind string) map[string]any {
	return map[string]any{
		"point_id":    id,
		"visit_order": id,
		"type":        kind,
		"address":     addressPayload(point),
		"contact": map[string]any{
			"name":  point.ContactName,
			"phone": point.ContactPhone,
		},
	}
}

// addressPayload builds the provider address object. Coordinates are
// [lon, lat]; that order is the provider's, not a mistake.
func addressPayload(point RoutePoint) map[string]any {
	address := map[string]any{
		"fullname":    point.Fullname,
		"coordinates": []float64{point.Lon, point.Lat},
	}
	if point.Porch != nil && *point.Porch != "" {
		address["porch"] = *point.Porch
	}
	if point.Floor != nil && *point.Floor != "" {
		address["sfloor"] = *point.Floor
	}
	if point.Apartment != nil && *point.Apartment != "" {
		address["sflat"] = *point.Apartment
	}
	return address
}

func centsToMoneyString(cents int64) string {
	return decimal.NewFromInt(cents).Div(decimal.NewFromInt(100)).StringFixed(2)
}

// MoneyStringToCents parses a provider decimal money string into integer
// minor units.
func MoneyStringToCents(value string) (int64, error) {
	parsed, err := decimal.NewFromString(value)
	if err != nil {
		return 0, err
	}
	return parsed.Mul(decimal.NewFromInt(100)).Round(0).IntPart(), nil
}
