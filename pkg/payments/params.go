package payments

import (
	"strings"

	sq "github.com/square/square-go-sdk"
	"github.com/square/square-go-sdk/checkout"
)

// InvoiceCreateParams contains the fields required to open a payment link
// for an order.
type InvoiceCreateParams struct {
	OrderID        string
	AmountCents    int64
	Currency       string
	BuyerRef       string
	Description    string
	IdempotencyKey string
}

func (p InvoiceCreateParams) toSquareRequest(idempotencyKey, locationID, redirectURL string) *checkout.CreatePaymentLinkRequest {
	name := strings.TrimSpace(p.Description)
	if name == "" {
		name = "Order " + p.OrderID
	}

	req := &checkout.CreatePaymentLinkRequest{
		IdempotencyKey: ptrString(idempotencyKey),
		QuickPay: &sq.QuickPay{
			Name:       name,
			LocationID: locationID,
			PriceMoney: moneyPtr(p.AmountCents, p.Currency),
		},
	}
	if trimmed := strings.TrimSpace(p.BuyerRef); trimmed != "" {
		req.PaymentNote = ptrString(trimmed)
	}
	if trimmed := strings.TrimSpace(redirectURL); trimmed != "" {
		req.CheckoutOptions = &sq.CheckoutOptions{RedirectURL: ptrString(trimmed)}
	}
	return req
}

func ptrString(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return &value
}

func int64Ptr(value int64) *int64 {
	return &value
}

func currencyPtr(code string) *sq.Currency {
	trimmed := strings.ToUpper(strings.TrimSpace(code))
	if trimmed == "" {
		trimmed = "RUB"
	}
	c := sq.Currency(trimmed)
	return &c
}

func moneyPtr(amount int64, currency string) *sq.Money {
	if amount == 0 {
		return nil
	}
	return &sq.Money{
		Amount:   int64Ptr(amount),
		Currency: currencyPtr(currency),
	}
}
