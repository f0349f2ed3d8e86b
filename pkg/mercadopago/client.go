// Package mercadopago is a thin HTTP client for the Mercado Pago payments
// and Point integration APIs. Credentials are passed per call rather than
// fixed at construction so a single client can serve multiple accounts.
package mercadopago

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/kioskly/kiosk-backend/pkg/config"
	"github.com/kioskly/kiosk-backend/pkg/logger"
)

const defaultBaseURL = "https://api.mercadopago.com"

type Client struct {
	baseURL    string
	httpClient *http.Client
	logg       *logger.Logger
}

type APIError struct {
	StatusCode int    `json:"-"`
	Message    string `json:"message"`
	ErrorCode  string `json:"error"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("mercadopago: %d %s (%s)", e.StatusCode, e.Message, e.ErrorCode)
}

// IsNotFound reports whether err is an API 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

func NewClient(cfg config.MercadoPagoConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger is required")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logg:       logg,
	}, nil
}

// CreatePayment creates a direct payment. Used for PIX charges, where the
// response carries the QR payload under point_of_interaction.
func (c *Client) CreatePayment(ctx context.Context, creds Credentials, req CreatePaymentRequest) (*Payment, error) {
	var out Payment
	headers := map[string]string{"X-Idempotency-Key": uuid.NewString()}
	if err := c.do(ctx, creds, http.MethodPost, "/v1/payments", req, &out, headers); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetPayment fetches a payment by provider id.
func (c *Client) GetPayment(ctx context.Context, creds Credentials, paymentID string) (*Payment, error) {
	var out Payment
	path := "/v1/payments/" + url.PathEscape(paymentID)
	if err := c.do(ctx, creds, http.MethodGet, path, nil, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

// SearchPaymentsByReference returns payments carrying the given external
// reference, newest first.
func (c *Client) SearchPaymentsByReference(ctx context.Context, creds Credentials, externalRef string) ([]Payment, error) {
	var out searchPaymentsResponse
	q := url.Values{}
	q.Set("external_reference", externalRef)
	q.Set("sort", "date_created")
	q.Set("criteria", "desc")
	path := "/v1/payments/search?" + q.Encode()
	if err := c.do(ctx, creds, http.MethodGet, path, nil, &out, nil); err != nil {
		return nil, err
	}
	return out.Results, nil
}

// CreatePaymentIntent pushes a charge to the Point terminal configured in the
// credentials. Amount is in cents, as the Point API expects.
func (c *Client) CreatePaymentIntent(ctx context.Context, creds Credentials, req CreateIntentRequest) (*PaymentIntent, error) {
	if creds.DeviceID == "" {
		return nil, fmt.Errorf("device id is required for payment intents")
	}
	var out PaymentIntent
	path := fmt.Sprintf("/point/integration-api/devices/%s/payment-intents", url.PathEscape(creds.DeviceID))
	if err := c.do(ctx, creds, http.MethodPost, path, req, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetPaymentIntent fetches a Point payment intent by id.
func (c *Client) GetPaymentIntent(ctx context.Context, creds Credentials, intentID string) (*PaymentIntent, error) {
	var out PaymentIntent
	path := "/point/integration-api/payment-intents/" + url.PathEscape(intentID)
	if err := c.do(ctx, creds, http.MethodGet, path, nil, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListDeviceIntents returns the intents currently queued on the Point
// terminal configured in the credentials.
func (c *Client) ListDeviceIntents(ctx context.Context, creds Credentials) ([]PaymentIntent, error) {
	if creds.DeviceID == "" {
		return nil, fmt.Errorf("device id is required for payment intents")
	}
	var out intentQueueResponse
	path := fmt.Sprintf("/point/integration-api/devices/%s/payment-intents", url.PathEscape(creds.DeviceID))
	if err := c.do(ctx, creds, http.MethodGet, path, nil, &out, nil); err != nil {
		return nil, err
	}
	return out.Events, nil
}

// CancelPaymentIntent removes a pending intent from the terminal queue. A 404
// means the intent is already gone, which callers treat as success.
func (c *Client) CancelPaymentIntent(ctx context.Context, creds Credentials, intentID string) error {
	if creds.DeviceID == "" {
		return fmt.Errorf("device id is required for payment intents")
	}
	path := fmt.Sprintf("/point/integration-api/devices/%s/payment-intents/%s",
		url.PathEscape(creds.DeviceID), url.PathEscape(intentID))
	err := c.do(ctx, creds, http.MethodDelete, path, nil, nil, nil)
	if err != nil && IsNotFound(err) {
		return nil
	}
	return err
}

func (c *Client) do(ctx context.Context, creds Credentials, method, path string, body, out any, headers map[string]string) error {
	if creds.AccessToken == "" {
		return fmt.Errorf("access token is required")
	}

	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+creds.AccessToken)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}

	c.logg.Debug(ctx, fmt.Sprintf("mercadopago %s %s -> %d", method, path, resp.StatusCode))

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if decodeErr := json.Unmarshal(raw, apiErr); decodeErr != nil || apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decoding response body: %w", err)
		}
	}
	return nil
}
