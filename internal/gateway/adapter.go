// Package gateway normalizes Mercado Pago's two payment surfaces (direct
// payments for PIX, Point intents for card terminals) into one status shape
// the reconciliation engine can reason about.
package gateway

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kioskly/kiosk-backend/pkg/enums"
	pkgerrors "github.com/kioskly/kiosk-backend/pkg/errors"
	"github.com/kioskly/kiosk-backend/pkg/logger"
	"github.com/kioskly/kiosk-backend/pkg/mercadopago"
	"github.com/kioskly/kiosk-backend/pkg/metrics"
)

// Status is the normalized payment state.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusCanceled Status = "canceled"
)

// StatusResult is the normalized outcome of a gateway lookup.
type StatusResult struct {
	Status            Status
	Reason            string
	ProviderPaymentID string
	ExternalReference string
}

// Initiation carries what order creation needs back from the gateway.
type Initiation struct {
	PaymentRef string
	PixQRText  *string
	PixQRImage *string
}

// InitiateParams describes the charge to create.
type InitiateParams struct {
	OrderID      uuid.UUID
	Method       enums.PaymentMethod
	AmountCents  int
	Description  string
	CustomerName string
}

// Adapter is the gateway surface consumed by orders and payments.
type Adapter interface {
	Initiate(ctx context.Context, creds mercadopago.Credentials, params InitiateParams) (*Initiation, error)
	Lookup(ctx context.Context, creds mercadopago.Credentials, paymentRef string, method enums.PaymentMethod, externalRef string) (*StatusResult, error)
	LookupPayment(ctx context.Context, creds mercadopago.Credentials, providerPaymentID string) (*StatusResult, error)
	CancelPending(ctx context.Context, creds mercadopago.Credentials, paymentRef string, method enums.PaymentMethod) error
	ClearPendingQueue(ctx context.Context, creds mercadopago.Credentials) (int, error)
}

type adapter struct {
	mp      *mercadopago.Client
	logg    *logger.Logger
	metrics *metrics.PaymentMetrics
}

// NewAdapter builds a gateway adapter over the Mercado Pago client.
func NewAdapter(mp *mercadopago.Client, logg *logger.Logger, pm *metrics.PaymentMetrics) (Adapter, error) {
	if mp == nil {
		return nil, fmt.Errorf("mercadopago client is required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &adapter{mp: mp, logg: logg, metrics: pm}, nil
}

// Initiate creates the provider-side charge. PIX produces a QR payload;
// card_terminal pushes an intent to the store's Point device.
func (a *adapter) Initiate(ctx context.Context, creds mercadopago.Credentials, params InitiateParams) (*Initiation, error) {
	switch params.Method {
	case enums.PaymentMethodPix:
		return a.initiatePix(ctx, creds, params)
	case enums.PaymentMethodCardTerminal:
		return a.initiateTerminal(ctx, creds, params)
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unsupported payment method").
			WithDetails(map[string]any{"method": params.Method})
	}
}

func (a *adapter) initiatePix(ctx context.Context, creds mercadopago.Credentials, params InitiateParams) (*Initiation, error) {
	amount := decimal.NewFromInt(int64(params.AmountCents)).Div(decimal.NewFromInt(100))
	payment, err := a.mp.CreatePayment(ctx, creds, mercadopago.CreatePaymentRequest{
		TransactionAmount: amount,
		Description:       params.Description,
		PaymentMethodID:   "pix",
		ExternalReference: params.OrderID.String(),
		Payer:             &mercadopago.Payer{FirstName: params.CustomerName},
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "creating pix payment")
	}

	out := &Initiation{PaymentRef: strconv.FormatInt(payment.ID, 10)}
	if poi := payment.PointOfInteraction; poi != nil && poi.TransactionData != nil {
		if poi.TransactionData.QRCode != "" {
			qr := poi.TransactionData.QRCode
			out.PixQRText = &qr
		}
		if poi.TransactionData.QRCodeBase64 != "" {
			img := poi.TransactionData.QRCodeBase64
			out.PixQRImage = &img
		}
	}
	return out, nil
}

func (a *adapter) initiateTerminal(ctx context.Context, creds mercadopago.Credentials, params InitiateParams) (*Initiation, error) {
	intent, err := a.mp.CreatePaymentIntent(ctx, creds, mercadopago.CreateIntentRequest{
		Amount: int64(params.AmountCents),
		AdditionalInfo: &mercadopago.IntentAdditionalInfo{
			ExternalReference: params.OrderID.String(),
			PrintOnTerminal:   true,
		},
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "creating terminal payment intent")
	}
	return &Initiation{PaymentRef: intent.ID}, nil
}

// Lookup resolves the current state of the charge referenced by paymentRef.
// Terminal intents that report FINISHED without a settled payment id are
// resolved through a secondary search by external reference; if that also
// yields nothing terminal the result stays pending.
func (a *adapter) Lookup(ctx context.Context, creds mercadopago.Credentials, paymentRef string, method enums.PaymentMethod, externalRef string) (*StatusResult, error) {
	switch method {
	case enums.PaymentMethodCardTerminal:
		return a.lookupIntent(ctx, creds, paymentRef, externalRef)
	default:
		return a.lookupDirect(ctx, creds, paymentRef, externalRef)
	}
}

// LookupPayment resolves a direct payment by provider id, as delivered by
// webhooks.
func (a *adapter) LookupPayment(ctx context.Context, creds mercadopago.Credentials, providerPaymentID string) (*StatusResult, error) {
	payment, err := a.mp.GetPayment(ctx, creds, providerPaymentID)
	if err != nil {
		if mercadopago.IsNotFound(err) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "payment not found at gateway")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "fetching payment")
	}
	return resultFromPayment(payment), nil
}

func (a *adapter) lookupDirect(ctx context.Context, creds mercadopago.Credentials, paymentRef, externalRef string) (*StatusResult, error) {
	payment, err := a.mp.GetPayment(ctx, creds, paymentRef)
	if err == nil {
		return resultFromPayment(payment), nil
	}
	if !mercadopago.IsNotFound(err) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "fetching payment")
	}
	return a.searchByReference(ctx, creds, externalRef)
}

func (a *adapter) lookupIntent(ctx context.Context, creds mercadopago.Credentials, intentID, externalRef string) (*StatusResult, error) {
	intent, err := a.mp.GetPaymentIntent(ctx, creds, intentID)
	if err != nil {
		if mercadopago.IsNotFound(err) {
			// The intent may have been garbage-collected after settling.
			return a.searchByReference(ctx, creds, externalRef)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "fetching payment intent")
	}

	switch intent.State {
	case mercadopago.IntentStateCanceled, mercadopago.IntentStateAbandoned, mercadopago.IntentStateError:
		return &StatusResult{Status: StatusCanceled, Reason: intent.State}, nil
	case mercadopago.IntentStateFinished:
		if intent.Payment != nil && intent.Payment.ID != 0 {
			return a.LookupPayment(ctx, creds, strconv.FormatInt(intent.Payment.ID, 10))
		}
		res, err := a.searchByReference(ctx, creds, externalRef)
		if err != nil {
			return nil, err
		}
		if res.Status == StatusPending {
			a.metrics.IncAmbiguous()
			a.logg.Warn(ctx, "intent finished but no settled payment found, treating as pending")
		}
		return res, nil
	default:
		return &StatusResult{Status: StatusPending}, nil
	}
}

func (a *adapter) searchByReference(ctx context.Context, creds mercadopago.Credentials, externalRef string) (*StatusResult, error) {
	if externalRef == "" {
		return &StatusResult{Status: StatusPending}, nil
	}
	payments, err := a.mp.SearchPaymentsByReference(ctx, creds, externalRef)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "searching payments by reference")
	}
	for i := range payments {
		res := resultFromPayment(&payments[i])
		if res.Status != StatusPending {
			return res, nil
		}
	}
	return &StatusResult{Status: StatusPending, ExternalReference: externalRef}, nil
}

// CancelPending best-effort removes a pending charge at the provider. A
// missing resource counts as already canceled.
func (a *adapter) CancelPending(ctx context.Context, creds mercadopago.Credentials, paymentRef string, method enums.PaymentMethod) error {
	if paymentRef == "" {
		return nil
	}
	if method == enums.PaymentMethodCardTerminal {
		if err := a.mp.CancelPaymentIntent(ctx, creds, paymentRef); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeGateway, err, "canceling payment intent")
		}
	}
	// Direct PIX charges expire on their own; nothing to cancel upstream.
	return nil
}

// ClearPendingQueue cancels every intent still queued on the store's Point
// device and returns how many were removed. Individual cancel failures are
// logged and skipped so one stuck intent cannot block the rest.
func (a *adapter) ClearPendingQueue(ctx context.Context, creds mercadopago.Credentials) (int, error) {
	if creds.DeviceID == "" {
		return 0, nil
	}
	intents, err := a.mp.ListDeviceIntents(ctx, creds)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "listing device intents")
	}

	cleared := 0
	for i := range intents {
		switch intents[i].State {
		case mercadopago.IntentStateOpen, mercadopago.IntentStateOnTerminal:
			if err := a.mp.CancelPaymentIntent(ctx, creds, intents[i].ID); err != nil {
				a.logg.Warn(ctx, fmt.Sprintf("canceling queued intent %s failed", intents[i].ID))
				continue
			}
			cleared++
		}
	}
	return cleared, nil
}

func resultFromPayment(payment *mercadopago.Payment) *StatusResult {
	res := &StatusResult{
		ProviderPaymentID: strconv.FormatInt(payment.ID, 10),
		ExternalReference: payment.ExternalReference,
		Reason:            payment.StatusDetail,
	}
	switch payment.Status {
	case mercadopago.PaymentStatusApproved:
		res.Status = StatusApproved
	case mercadopago.PaymentStatusRejected:
		res.Status = StatusRejected
	case mercadopago.PaymentStatusCancelled, mercadopago.PaymentStatusRefunded, mercadopago.PaymentStatusChargedBack:
		res.Status = StatusCanceled
	default:
		res.Status = StatusPending
	}
	return res
}
