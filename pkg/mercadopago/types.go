package mercadopago

import "github.com/shopspring/decimal"

// Payment statuses returned by the payments API.
const (
	PaymentStatusPending     = "pending"
	PaymentStatusInProcess   = "in_process"
	PaymentStatusAuthorized  = "authorized"
	PaymentStatusApproved    = "approved"
	PaymentStatusRejected    = "rejected"
	PaymentStatusCancelled   = "cancelled"
	PaymentStatusRefunded    = "refunded"
	PaymentStatusChargedBack = "charged_back"
)

// Point payment intent states.
const (
	IntentStateOpen       = "OPEN"
	IntentStateOnTerminal = "ON_TERMINAL"
	IntentStateProcessing = "PROCESSING"
	IntentStateFinished   = "FINISHED"
	IntentStateCanceled   = "CANCELED"
	IntentStateAbandoned  = "ABANDONED"
	IntentStateError      = "ERROR"
)

// Credentials identify the account a request is executed against. Every call
// takes them explicitly so one client can serve many stores.
type Credentials struct {
	AccessToken string
	DeviceID    string
}

// CreatePaymentRequest creates a direct payment (PIX).
type CreatePaymentRequest struct {
	TransactionAmount decimal.Decimal `json:"transaction_amount"`
	Description       string          `json:"description,omitempty"`
	PaymentMethodID   string          `json:"payment_method_id"`
	ExternalReference string          `json:"external_reference"`
	Payer             *Payer          `json:"payer,omitempty"`
	DateOfExpiration  string          `json:"date_of_expiration,omitempty"`
}

type Payer struct {
	Email     string `json:"email,omitempty"`
	FirstName string `json:"first_name,omitempty"`
}

// Payment is the subset of the payments API response we consume.
type Payment struct {
	ID                 int64               `json:"id"`
	Status             string              `json:"status"`
	StatusDetail       string              `json:"status_detail"`
	ExternalReference  string              `json:"external_reference"`
	TransactionAmount  decimal.Decimal     `json:"transaction_amount"`
	DateApproved       string              `json:"date_approved,omitempty"`
	PointOfInteraction *PointOfInteraction `json:"point_of_interaction,omitempty"`
}

type PointOfInteraction struct {
	TransactionData *TransactionData `json:"transaction_data,omitempty"`
}

type TransactionData struct {
	QRCode       string `json:"qr_code"`
	QRCodeBase64 string `json:"qr_code_base64"`
	TicketURL    string `json:"ticket_url,omitempty"`
}

type searchPaymentsResponse struct {
	Results []Payment `json:"results"`
}

// CreateIntentRequest creates a Point payment intent on a terminal device.
type CreateIntentRequest struct {
	Amount         int64                 `json:"amount"`
	AdditionalInfo *IntentAdditionalInfo `json:"additional_info,omitempty"`
}

type IntentAdditionalInfo struct {
	ExternalReference string `json:"external_reference"`
	PrintOnTerminal   bool   `json:"print_on_terminal"`
}

// PaymentIntent is the Point integration API response.
type PaymentIntent struct {
	ID       string         `json:"id"`
	State    string         `json:"state"`
	Amount   int64          `json:"amount"`
	DeviceID string         `json:"device_id"`
	Payment  *IntentPayment `json:"payment,omitempty"`
}

type IntentPayment struct {
	ID int64 `json:"id"`
}

type intentQueueResponse struct {
	Events []PaymentIntent `json:"events"`
}

// WebhookEvent is the body delivered to webhook endpoints.
type WebhookEvent struct {
	ID     int64  `json:"id"`
	Type   string `json:"type"`
	Action string `json:"action"`
	Data   struct {
		ID string `json:"id"`
	} `json:"data"`
}
