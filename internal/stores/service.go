// Package stores resolves tenants and their gateway credentials. Credentials
// come from the store row when present; otherwise the deployment-wide
// defaults apply. A store never inherits another store's credentials.
package stores

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kioskly/kiosk-backend/pkg/config"
	"github.com/kioskly/kiosk-backend/pkg/db/models"
	pkgerrors "github.com/kioskly/kiosk-backend/pkg/errors"
	"github.com/kioskly/kiosk-backend/pkg/logger"
	"github.com/kioskly/kiosk-backend/pkg/mercadopago"
)

// Service exposes tenant lookup and credential resolution.
type Service interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Store, error)
	Credentials(ctx context.Context, store *models.Store) (mercadopago.Credentials, error)
}

type service struct {
	repo     Repository
	defaults config.MercadoPagoConfig
	logg     *logger.Logger
}

// NewService builds a store service with the provided repository.
func NewService(repo Repository, defaults config.MercadoPagoConfig, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &service{repo: repo, defaults: defaults, logg: logg}, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Store, error) {
	store, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "store not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading store")
	}
	if !store.Active {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "store not found")
	}
	return store, nil
}

// Credentials returns the gateway credentials for a store. Stores without
// their own access token fall back to the deployment defaults, and the
// fallback is logged so misconfigured tenants are visible.
func (s *service) Credentials(ctx context.Context, store *models.Store) (mercadopago.Credentials, error) {
	if store == nil {
		return mercadopago.Credentials{}, fmt.Errorf("store is required")
	}

	creds := mercadopago.Credentials{}
	if store.MPAccessToken != nil && *store.MPAccessToken != "" {
		creds.AccessToken = *store.MPAccessToken
		if store.MPDeviceID != nil {
			creds.DeviceID = *store.MPDeviceID
		}
		return creds, nil
	}

	if s.defaults.AccessToken == "" {
		return mercadopago.Credentials{}, pkgerrors.New(pkgerrors.CodeDependency, "gateway credentials not configured").
			WithDetails(map[string]any{"store_id": store.ID})
	}

	ctx = s.logg.WithStoreID(ctx, store.ID.String())
	s.logg.Warn(ctx, "store has no gateway credentials, using deployment defaults")

	creds.AccessToken = s.defaults.AccessToken
	creds.DeviceID = s.defaults.DeviceID
	if store.MPDeviceID != nil && *store.MPDeviceID != "" {
		creds.DeviceID = *store.MPDeviceID
	}
	return creds, nil
}
