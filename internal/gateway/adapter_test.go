package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/kioskly/kiosk-backend/pkg/config"
	"github.com/kioskly/kiosk-backend/pkg/enums"
	pkgerrors "github.com/kioskly/kiosk-backend/pkg/errors"
	"github.com/kioskly/kiosk-backend/pkg/logger"
	"github.com/kioskly/kiosk-backend/pkg/mercadopago"
)

func newAdapterWithServer(t *testing.T, handler http.Handler) Adapter {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	logg := logger.New(logger.Options{Output: io.Discard})
	mp, err := mercadopago.NewClient(config.MercadoPagoConfig{
		BaseURL: srv.URL,
		Timeout: time.Second,
	}, logg)
	if err != nil {
		t.Fatalf("client constructor failed: %v", err)
	}

	adapter, err := NewAdapter(mp, logg, nil)
	if err != nil {
		t.Fatalf("adapter constructor failed: %v", err)
	}
	return adapter
}

func testCreds() mercadopago.Credentials {
	return mercadopago.Credentials{AccessToken: "token", DeviceID: "dev-1"}
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, body any) {
	t.Helper()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		t.Fatalf("encoding response: %v", err)
	}
}

func TestInitiatePixReturnsQRPayload(t *testing.T) {
	orderID := uuid.New()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/payments", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer token" {
			t.Error("missing bearer token")
		}
		if r.Header.Get("X-Idempotency-Key") == "" {
			t.Error("missing idempotency key")
		}
		var req mercadopago.CreatePaymentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		if req.ExternalReference != orderID.String() {
			t.Errorf("unexpected external reference %s", req.ExternalReference)
		}
		if req.TransactionAmount.String() != "25.9" {
			t.Errorf("unexpected amount %s", req.TransactionAmount)
		}
		writeJSON(t, w, http.StatusCreated, map[string]any{
			"id":     700123,
			"status": "pending",
			"point_of_interaction": map[string]any{
				"transaction_data": map[string]any{
					"qr_code":        "00020126pix-code",
					"qr_code_base64": "aGVsbG8=",
				},
			},
		})
	})

	adapter := newAdapterWithServer(t, mux)
	initiation, err := adapter.Initiate(context.Background(), testCreds(), InitiateParams{
		OrderID:      orderID,
		Method:       enums.PaymentMethodPix,
		AmountCents:  2590,
		Description:  "order for Joana",
		CustomerName: "Joana",
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if initiation.PaymentRef != "700123" {
		t.Fatalf("unexpected payment ref %s", initiation.PaymentRef)
	}
	if initiation.PixQRText == nil || *initiation.PixQRText != "00020126pix-code" {
		t.Fatalf("unexpected qr text %v", initiation.PixQRText)
	}
	if initiation.PixQRImage == nil || *initiation.PixQRImage != "aGVsbG8=" {
		t.Fatalf("unexpected qr image %v", initiation.PixQRImage)
	}
}

func TestInitiateTerminalPushesIntent(t *testing.T) {
	orderID := uuid.New()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /point/integration-api/devices/dev-1/payment-intents", func(w http.ResponseWriter, r *http.Request) {
		var req mercadopago.CreateIntentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		if req.Amount != 2590 {
			t.Errorf("unexpected amount %d", req.Amount)
		}
		if req.AdditionalInfo == nil || req.AdditionalInfo.ExternalReference != orderID.String() {
			t.Errorf("unexpected additional info %+v", req.AdditionalInfo)
		}
		writeJSON(t, w, http.StatusCreated, map[string]any{"id": "intent-1", "state": "OPEN"})
	})

	adapter := newAdapterWithServer(t, mux)
	initiation, err := adapter.Initiate(context.Background(), testCreds(), InitiateParams{
		OrderID:     orderID,
		Method:      enums.PaymentMethodCardTerminal,
		AmountCents: 2590,
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if initiation.PaymentRef != "intent-1" {
		t.Fatalf("unexpected payment ref %s", initiation.PaymentRef)
	}
	if initiation.PixQRText != nil {
		t.Fatal("terminal initiation must not carry a qr payload")
	}
}

func TestLookupIntentFinishedResolvesPayment(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /point/integration-api/payment-intents/intent-1", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]any{
			"id":      "intent-1",
			"state":   "FINISHED",
			"payment": map[string]any{"id": 700123},
		})
	})
	mux.HandleFunc("GET /v1/payments/700123", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]any{
			"id":                 700123,
			"status":             "approved",
			"status_detail":      "accredited",
			"external_reference": "order-ref",
		})
	})

	adapter := newAdapterWithServer(t, mux)
	result, err := adapter.Lookup(context.Background(), testCreds(), "intent-1", enums.PaymentMethodCardTerminal, "order-ref")
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if result.Status != StatusApproved {
		t.Fatalf("expected approved got %s", result.Status)
	}
	if result.ProviderPaymentID != "700123" {
		t.Fatalf("unexpected provider payment id %s", result.ProviderPaymentID)
	}
	if result.ExternalReference != "order-ref" {
		t.Fatalf("unexpected external reference %s", result.ExternalReference)
	}
}

func TestLookupIntentCanceledStates(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /point/integration-api/payment-intents/intent-1", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]any{"id": "intent-1", "state": "ABANDONED"})
	})

	adapter := newAdapterWithServer(t, mux)
	result, err := adapter.Lookup(context.Background(), testCreds(), "intent-1", enums.PaymentMethodCardTerminal, "order-ref")
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if result.Status != StatusCanceled {
		t.Fatalf("expected canceled got %s", result.Status)
	}
	if result.Reason != "ABANDONED" {
		t.Fatalf("unexpected reason %s", result.Reason)
	}
}

func TestLookupDirectFallsBackToSearch(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/payments/700123", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusNotFound, map[string]any{"message": "not found", "error": "not_found"})
	})
	mux.HandleFunc("GET /v1/payments/search", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("external_reference") != "order-ref" {
			t.Errorf("unexpected search query %s", r.URL.RawQuery)
		}
		writeJSON(t, w, http.StatusOK, map[string]any{
			"results": []map[string]any{
				{"id": 700124, "status": "approved", "external_reference": "order-ref"},
			},
		})
	})

	adapter := newAdapterWithServer(t, mux)
	result, err := adapter.Lookup(context.Background(), testCreds(), "700123", enums.PaymentMethodPix, "order-ref")
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if result.Status != StatusApproved {
		t.Fatalf("expected approved got %s", result.Status)
	}
	if result.ProviderPaymentID != "700124" {
		t.Fatalf("unexpected provider payment id %s", result.ProviderPaymentID)
	}
}

func TestLookupGatewayErrorIsTyped(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/payments/700123", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusInternalServerError, map[string]any{"message": "boom"})
	})

	adapter := newAdapterWithServer(t, mux)
	_, err := adapter.Lookup(context.Background(), testCreds(), "700123", enums.PaymentMethodPix, "order-ref")
	if !pkgerrors.HasCode(err, pkgerrors.CodeGateway) {
		t.Fatalf("expected gateway error got %v", err)
	}
}

func TestCancelPendingTreatsMissingIntentAsSuccess(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("DELETE /point/integration-api/devices/dev-1/payment-intents/intent-1", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusNotFound, map[string]any{"message": "not found"})
	})

	adapter := newAdapterWithServer(t, mux)
	err := adapter.CancelPending(context.Background(), testCreds(), "intent-1", enums.PaymentMethodCardTerminal)
	if err != nil {
		t.Fatalf("missing intent must count as canceled: %v", err)
	}
}

func TestClearPendingQueueCancelsQueuedIntents(t *testing.T) {
	var canceled []string
	mux := http.NewServeMux()
	mux.HandleFunc("GET /point/integration-api/devices/dev-1/payment-intents", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]any{
			"events": []map[string]any{
				{"id": "intent-1", "state": "OPEN"},
				{"id": "intent-2", "state": "FINISHED"},
				{"id": "intent-3", "state": "ON_TERMINAL"},
			},
		})
	})
	mux.HandleFunc("DELETE /point/integration-api/devices/dev-1/payment-intents/{intentId}", func(w http.ResponseWriter, r *http.Request) {
		canceled = append(canceled, r.PathValue("intentId"))
		writeJSON(t, w, http.StatusOK, map[string]any{})
	})

	adapter := newAdapterWithServer(t, mux)
	cleared, err := adapter.ClearPendingQueue(context.Background(), testCreds())
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if cleared != 2 {
		t.Fatalf("expected 2 cleared intents, got %d", cleared)
	}
	if len(canceled) != 2 || canceled[0] != "intent-1" || canceled[1] != "intent-3" {
		t.Fatalf("unexpected cancellations %v", canceled)
	}
}

func TestClearPendingQueueSkipsFailedCancels(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /point/integration-api/devices/dev-1/payment-intents", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]any{
			"events": []map[string]any{
				{"id": "intent-1", "state": "OPEN"},
				{"id": "intent-2", "state": "OPEN"},
			},
		})
	})
	mux.HandleFunc("DELETE /point/integration-api/devices/dev-1/payment-intents/intent-1", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusConflict, map[string]any{"message": "on terminal"})
	})
	mux.HandleFunc("DELETE /point/integration-api/devices/dev-1/payment-intents/intent-2", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]any{})
	})

	adapter := newAdapterWithServer(t, mux)
	cleared, err := adapter.ClearPendingQueue(context.Background(), testCreds())
	if err != nil {
		t.Fatalf("one stuck intent must not fail the clear: %v", err)
	}
	if cleared != 1 {
		t.Fatalf("expected 1 cleared intent, got %d", cleared)
	}
}

func TestClearPendingQueueWithoutDevice(t *testing.T) {
	adapter := newAdapterWithServer(t, http.NewServeMux())

	cleared, err := adapter.ClearPendingQueue(context.Background(), mercadopago.Credentials{AccessToken: "token"})
	if err != nil {
		t.Fatalf("expected noop got %v", err)
	}
	if cleared != 0 {
		t.Fatalf("expected 0 cleared intents, got %d", cleared)
	}
}

func TestCancelPendingPixIsNoop(t *testing.T) {
	adapter := newAdapterWithServer(t, http.NewServeMux())

	err := adapter.CancelPending(context.Background(), testCreds(), "700123", enums.PaymentMethodPix)
	if err != nil {
		t.Fatalf("pix cancel must be a local noop: %v", err)
	}
}
