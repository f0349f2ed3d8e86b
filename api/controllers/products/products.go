package products

import (
	"net/http"

	"github.com/kioskly/kiosk-backend/api/middleware"
	"github.com/kioskly/kiosk-backend/api/responses"
	internalproducts "github.com/kioskly/kiosk-backend/internal/products"
	"github.com/kioskly/kiosk-backend/pkg/db/models"
	pkgerrors "github.com/kioskly/kiosk-backend/pkg/errors"
	"github.com/kioskly/kiosk-backend/pkg/logger"
)

type productView struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description *string  `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	ImageURL    *string  `json:"image_url,omitempty"`
	PriceCents  int      `json:"price_cents"`
	Available   *int     `json:"available,omitempty"`
	Unlimited   bool     `json:"unlimited"`
}

// List returns the active menu for the store in context.
func List(repo internalproducts.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, ok := middleware.StoreFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "store missing from context"))
			return
		}

		rows, err := repo.ListActiveByStore(r.Context(), store.ID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products"))
			return
		}

		views := make([]productView, 0, len(rows))
		for i := range rows {
			views = append(views, toView(&rows[i]))
		}
		responses.WriteSuccess(w, map[string]any{"products": views})
	}
}

func toView(p *models.Product) productView {
	return productView{
		ID:          p.ID.String(),
		Name:        p.Name,
		Description: p.Description,
		Tags:        p.Tags,
		ImageURL:    p.ImageURL,
		PriceCents:  p.PriceCents,
		Available:   p.Available(),
		Unlimited:   p.Stock == nil,
	}
}
