package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/kiosko-backend/api/responses"
	"github.com/angelmondragon/kiosko-backend/api/validators"
	"github.com/angelmondragon/kiosko-backend/internal/buyers"
	pkgerrors "github.com/angelmondragon/kiosko-backend/pkg/errors"
	"github.com/angelmondragon/kiosko-backend/pkg/logger"
)

type upsertBuyerRequest struct {
	DisplayName string  `json:"display_name" validate:"required,min=1,max=128"`
	Phone       string  `json:"phone" validate:"required,min=5,max=32"`
	Address     *string `json:"address,omitempty" validate:"omitempty,max=512"`
	Porch       *string `json:"porch,omitempty" validate:"omitempty,max=16"`
	Floor       *string `json:"floor,omitempty" validate:"omitempty,max=16"`
	Apartment   *string `json:"apartment,omitempty" validate:"omitempty,max=16"`
}

// UpsertBuyer creates or refreshes the profile the storefront gateway knows
// by its own external reference.
func UpsertBuyer(svc buyers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "buyers service unavailable"))
			return
		}

		externalRef := strings.TrimSpace(chi.URLParam(r, "externalRef"))
		if externalRef == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "external ref is required"))
			return
		}

		var body upsertBuyerRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		buyer, err := svc.Upsert(r.Context(), externalRef, buyers.UpsertInput{
			DisplayName: body.DisplayName,
			Phone:       body.Phone,
			Address:     body.Address,
			Porch:       body.Porch,
			Floor:       body.Floor,
			Apartment:   body.Apartment,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, buyer)
	}
}
