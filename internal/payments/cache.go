package payments

import (
	"context"
	"time"

	"github.com/kioskly/kiosk-backend/internal/gateway"
)

// Snapshot is a cached gateway observation. Snapshots are hints: the engine
// may act on them without re-querying the gateway, but correctness never
// depends on the cache since every transition is guarded by the CAS.
type Snapshot struct {
	Status            gateway.Status `json:"status"`
	Reason            string         `json:"reason,omitempty"`
	ProviderPaymentID string         `json:"provider_payment_id,omitempty"`
	ExternalReference string         `json:"external_reference,omitempty"`
	ObservedAt        time.Time      `json:"observed_at"`
}

// Cache stores short-lived payment snapshots keyed by payment reference.
// A miss is (nil, nil).
type Cache interface {
	Put(ctx context.Context, paymentRef string, snap Snapshot) error
	Get(ctx context.Context, paymentRef string) (*Snapshot, error)
	Delete(ctx context.Context, paymentRef string) error
}
