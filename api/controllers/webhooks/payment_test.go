package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	paymentwebhook "github.com/angelmondragon/kiosko-backend/internal/webhooks/payment"
	pkgerrors "github.com/angelmondragon/kiosko-backend/pkg/errors"
)

func TestPaymentWebhook_SuccessAndIdempotent(t *testing.T) {
	payload := buildPaymentEvent(t, "COMPLETED")
	header := buildPaymentSignature(payload, "secret")
	service := &fakePaymentWebhookService{}
	guard := newTestGuard(t)
	handler := PaymentWebhook(service, &fakeSigningClient{secret: "secret"}, guard, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payment", bytes.NewReader(payload))
	req.Header.Set("Square-Signature", header)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if service.calls != 1 {
		t.Fatalf("expected service called once, got %d", service.calls)
	}

	req2 := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payment", bytes.NewReader(payload))
	req2.Header.Set("Square-Signature", header)
	rec2 := httptest.NewRecorder()
	handler.ServeHTTP(rec2, req2)
	if rec2.Code != http.StatusOK {
		t.Fatalf("expected 200 on duplicate, got %d", rec2.Code)
	}
	if service.calls != 1 {
		t.Fatalf("duplicate should not increment calls, got %d", service.calls)
	}
}

func TestPaymentWebhook_InvalidSignature(t *testing.T) {
	payload := buildPaymentEvent(t, "COMPLETED")
	service := &fakePaymentWebhookService{}
	handler := PaymentWebhook(service, &fakeSigningClient{secret: "secret"}, newTestGuard(t), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payment", bytes.NewReader(payload))
	req.Header.Set("Square-Signature", "invalid")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 for invalid signature, got %d", rec.Code)
	}
	if service.calls != 0 {
		t.Fatalf("service should not be invoked on invalid signature")
	}
}

func TestPaymentWebhook_MissingSignature(t *testing.T) {
	payload := buildPaymentEvent(t, "COMPLETED")
	service := &fakePaymentWebhookService{}
	handler := PaymentWebhook(service, &fakeSigningClient{secret: "secret"}, newTestGuard(t), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payment", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing signature, got %d", rec.Code)
	}
}

func TestPaymentWebhook_HandlerFailureRollsBackMark(t *testing.T) {
	payload := buildPaymentEvent(t, "COMPLETED")
	header := buildPaymentSignature(payload, "secret")
	service := &fakePaymentWebhookService{
		err: pkgerrors.New(pkgerrors.CodeDependency, "database down"),
	}
	guard := newTestGuard(t)
	handler := PaymentWebhook(service, &fakeSigningClient{secret: "secret"}, guard, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payment", bytes.NewReader(payload))
	req.Header.Set("Square-Signature", header)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}

	// the mark was rolled back, so the provider retry reaches the service
	service.err = nil
	req2 := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payment", bytes.NewReader(payload))
	req2.Header.Set("Square-Signature", header)
	rec2 := httptest.NewRecorder()
	handler.ServeHTTP(rec2, req2)
	if rec2.Code != http.StatusOK {
		t.Fatalf("expected 200 on retry, got %d", rec2.Code)
	}
	if service.calls != 2 {
		t.Fatalf("expected retry to reach the service, got %d calls", service.calls)
	}
}

func newTestGuard(t *testing.T) *paymentwebhook.IdempotencyGuard {
	t.Helper()
	guard, err := paymentwebhook.NewIdempotencyGuard(newInMemoryStore(), time.Minute, "payment-webhook")
	if err != nil {
		t.Fatalf("guard setup: %v", err)
	}
	return guard
}

func buildPaymentEvent(t *testing.T, status string) []byte {
	t.Helper()
	event := &paymentwebhook.WebhookEvent{
		MerchantID: "merchant-1",
		Type:       paymentwebhook.EventTypePaymentUpdated,
		EventID:    "evt_" + uuid.NewString(),
		CreatedAt:  time.Now().UTC(),
		Data: paymentwebhook.EventData{
			Type: "payment",
			ID:   "pay_" + uuid.NewString(),
			Object: paymentwebhook.EventObject{
				Payment: paymentwebhook.PaymentSnapshot{
					ID:      "pay_" + uuid.NewString(),
					OrderID: "order-ref-" + uuid.NewString(),
					Status:  status,
					AmountMoney: paymentwebhook.Money{
						Amount:   22500,
						Currency: "USD",
					},
					UpdatedAt: time.Now().UTC().Format(time.RFC3339),
				},
			},
		},
	}
	payload, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return payload
}

func buildPaymentSignature(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

type fakePaymentWebhookService struct {
	calls int
	err   error
}

func (f *fakePaymentWebhookService) HandleEvent(ctx context.Context, event *paymentwebhook.WebhookEvent) error {
	f.calls++
	return f.err
}

type fakeSigningClient struct {
	secret string
}

func (c *fakeSigningClient) SigningSecret() string {
	return c.secret
}

type inMemoryStore struct {
	mu   sync.Mutex
	data map[string]string
}

func newInMemoryStore() *inMemoryStore {
	return &inMemoryStore{data: make(map[string]string)}
}

func (s *inMemoryStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data[key], nil
}

func (s *inMemoryStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.data[key]; exists {
		return false, nil
	}
	s.data[key] = fmt.Sprintf("%v", value)
	return true, nil
}

func (s *inMemoryStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("kiosko:idempotency:%s:%s", scope, id)
}

func (s *inMemoryStore) Del(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.data, key)
	}
	return nil
}
