package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	sq "github.com/square/square-go-sdk"
	sqclient "github.com/square/square-go-sdk/client"
	sqcore "github.com/square/square-go-sdk/core"
	sqoption "github.com/square/square-go-sdk/option"

	"github.com/angelmondragon/kiosko-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/kiosko-backend/pkg/errors"
	"github.com/angelmondragon/kiosko-backend/pkg/logger"
)

const (
	sandboxEnv    = "sandbox"
	productionEnv = "production"
)

var (
	errAccessTokenRequired  = errors.New("square access token is required")
	errSignatureKeyRequired = errors.New("square webhook signature key is required")
	errInvalidSquareEnv     = fmt.Errorf("square environment must be %q or %q", sandboxEnv, productionEnv)
	errLoggerRequired       = errors.New("payments logger is required")
)

var baseURLs = map[string]string{
	sandboxEnv:    "https://connect.squareupsandbox.com",
	productionEnv: "https://connect.squareup.com",
}

// Invoice is a hosted checkout page the buyer pays through. ProviderRef is
// the gateway's order id, the key the payment webhook later reports against.
type Invoice struct {
	ProviderRef string
	URL         string
}

// Gateway creates payment invoices for orders.
type Gateway interface {
	CreateInvoice(ctx context.Context, params InvoiceCreateParams) (*Invoice, error)
	SigningSecret() string
}

// Client wraps the Square SDK with centralized auth, logging, idempotency,
// and error mapping.
type Client struct {
	sdk          *sqclient.Client
	accessToken  string
	environment  string
	signatureKey string
	locationID   string
	redirectURL  string
	baseURL      string
	logger       *logger.Logger
}

var _ Gateway = (*Client)(nil)

// NewClient initializes the gateway wrapper and validates the credentials.
func NewClient(ctx context.Context, cfg config.SquareConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}

	accessToken := strings.TrimSpace(cfg.AccessToken)
	if accessToken == "" {
		return nil, errAccessTokenRequired
	}

	signatureKey := strings.TrimSpace(cfg.WebhookSignatureKey)
	if signatureKey == "" {
		return nil, errSignatureKeyRequired
	}

	baseURL := baseURLs[env]
	sdk := sqclient.NewClient(
		sqoption.WithBaseURL(baseURL),
		sqoption.WithToken(accessToken),
	)

	c := &Client{
		sdk:          sdk,
		accessToken:  accessToken,
		environment:  env,
		signatureKey: signatureKey,
		locationID:   strings.TrimSpace(cfg.LocationID),
		redirectURL:  strings.TrimSpace(cfg.RedirectURL),
		baseURL:      baseURL,
		logger:       logg,
	}

	logg.Info(ctx, "payments client initialized")
	return c, nil
}

// Environment reports the normalized gateway environment.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// SigningSecret returns the webhook signature key.
func (c *Client) SigningSecret() string {
	if c == nil {
		return ""
	}
	return c.signatureKey
}

// NewIdempotencyKey returns a unique key for gateway operations.
func (c *Client) NewIdempotencyKey(prefix string) string {
	key := strings.TrimSpace(prefix)
	if key == "" {
		key = "kiosko"
	}
	return fmt.Sprintf("%s-%s", key, uuid.NewString())
}

// CreateInvoice creates a hosted payment link for the order amount. The
// returned ProviderRef is the gateway order id the payment webhook carries.
func (c *Client) CreateInvoice(ctx context.Context, params InvoiceCreateParams) (*Invoice, error) {
	req := params.toSquareRequest(
		c.ensureIdempotencyKey("invoice.create", params.IdempotencyKey),
		c.locationID,
		c.redirectURL,
	)
	c.log(ctx, "request", "create_invoice", map[string]any{
		"order_id": params.OrderID,
		"amount":   params.AmountCents,
	})

	resp, err := c.sdk.Checkout.PaymentLinks.Create(ctx, req)
	if err != nil {
		c.log(ctx, "error", "create_invoice", map[string]any{"error": err.Error()})
		return nil, c.mapSquareError(err, "create invoice")
	}

	link := resp.GetPaymentLink()
	if link == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "square create invoice returned no payment link")
	}

	invoice := &Invoice{
		ProviderRef: stringValue(link.GetOrderID()),
		URL:         stringValue(link.GetURL()),
	}
	c.log(ctx, "response", "create_invoice", map[string]any{
		"payment_link_id": stringValue(link.GetID()),
		"provider_ref":    invoice.ProviderRef,
	})
	return invoice, nil
}

func (c *Client) ensureIdempotencyKey(prefix, provided string) string {
	if strings.TrimSpace(provided) != "" {
		return provided
	}
	return c.NewIdempotencyKey(prefix)
}

func (c *Client) log(ctx context.Context, phase, op string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	logFields := map[string]any{
		"operation": op,
		"phase":     phase,
	}
	for k, v := range fields {
		logFields[k] = c.redact(k, v)
	}
	ctx = c.logger.WithFields(ctx, logFields)
	switch phase {
	case "error":
		c.logger.Error(ctx, fmt.Sprintf("square %s", op), errors.New(fmt.Sprint(fields["error"])))
	default:
		c.logger.Info(ctx, fmt.Sprintf("square %s", phase))
	}
}

func (c *Client) redact(key string, value any) any {
	lower := strings.ToLower(key)
	for _, sensitive := range []string{"card", "nonce", "token", "cvv", "cvc", "secret", "email", "phone"} {
		if strings.Contains(lower, sensitive) {
			return "[REDACTED]"
		}
	}
	return value
}

func (c *Client) mapSquareError(err error, op string) error {
	if err == nil {
		return nil
	}
	var apiErr *sqcore.APIError
	if errors.As(err, &apiErr) {
		code := domainCodeForStatus(apiErr.StatusCode)
		for _, sqErr := range c.extractSquareErrors(apiErr) {
			if sqErr == nil {
				continue
			}
			if sqErr.Code == sq.ErrorCodeIdempotencyKeyReused {
				code = pkgerrors.CodeConflict
				break
			}
			if sqErr.Category == sq.ErrorCategoryAuthenticationError {
				code = pkgerrors.CodeUnauthorized
				break
			}
		}
		return pkgerrors.Wrap(code, err, fmt.Sprintf("square %s failed", op))
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("square %s failed", op))
}

func (c *Client) extractSquareErrors(apiErr *sqcore.APIError) []*sq.Error {
	if apiErr == nil {
		return nil
	}
	inner := apiErr.Unwrap()
	if inner == nil {
		return nil
	}
	raw := strings.TrimSpace(inner.Error())
	if raw == "" {
		return nil
	}
	var payload struct {
		Errors []*sq.Error `json:"errors"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil
	}
	return payload.Errors
}

func domainCodeForStatus(status int) pkgerrors.Code {
	switch status {
	case http.StatusUnauthorized:
		return pkgerrors.CodeUnauthorized
	case http.StatusForbidden:
		return pkgerrors.CodeForbidden
	case http.StatusNotFound:
		return pkgerrors.CodeNotFound
	case http.StatusConflict:
		return pkgerrors.CodeConflict
	case http.StatusTooManyRequests:
		return pkgerrors.CodeRateLimit
	case http.StatusBadRequest:
		return pkgerrors.CodeValidation
	case http.StatusUnprocessableEntity:
		return pkgerrors.CodeStateConflict
	default:
		if status >= 400 && status < 500 {
			return pkgerrors.CodeValidation
		}
		return pkgerrors.CodeDependency
	}
}

func stringValue(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		env = sandboxEnv
	}
	switch env {
	case sandboxEnv, productionEnv:
		return env, nil
	default:
		return "", errInvalidSquareEnv
	}
}
