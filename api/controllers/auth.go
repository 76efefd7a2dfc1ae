package controllers

import (
	"net/http"

	"github.com/angelmondragon/kiosko-backend/api/responses"
	"github.com/angelmondragon/kiosko-backend/api/validators"
	"github.com/angelmondragon/kiosko-backend/internal/operators"
	pkgerrors "github.com/angelmondragon/kiosko-backend/pkg/errors"
	"github.com/angelmondragon/kiosko-backend/pkg/logger"
)

type loginRequest struct {
	Login    string `json:"login" validate:"required,min=3,max=64"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

// AuthLogin wires the operator login endpoint into the HTTP layer.
func AuthLogin(svc operators.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "operators service unavailable"))
			return
		}

		var body loginRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Login(r.Context(), operators.LoginInput{
			Login:    body.Login,
			Password: body.Password,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}
