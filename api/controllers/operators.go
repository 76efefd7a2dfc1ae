package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/kiosko-backend/api/responses"
	"github.com/angelmondragon/kiosko-backend/api/validators"
	"github.com/angelmondragon/kiosko-backend/internal/operators"
	"github.com/angelmondragon/kiosko-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/kiosko-backend/pkg/errors"
	"github.com/angelmondragon/kiosko-backend/pkg/logger"
)

type createOperatorRequest struct {
	Login       string   `json:"login" validate:"required,min=3,max=64"`
	Password    string   `json:"password" validate:"required,min=8,max=128"`
	DisplayName string   `json:"display_name" validate:"required,min=1,max=128"`
	Role        string   `json:"role" validate:"required,oneof=admin operator"`
	Scopes      []string `json:"scopes,omitempty" validate:"omitempty,dive,min=1,max=64"`
}

// operatorResponse keeps the password hash out of the payload.
type operatorResponse struct {
	ID          uuid.UUID          `json:"id"`
	Login       string             `json:"login"`
	DisplayName string             `json:"display_name"`
	Role        enums.OperatorRole `json:"role"`
	Scopes      []string           `json:"scopes,omitempty"`
	IsActive    bool               `json:"is_active"`
	CreatedAt   time.Time          `json:"created_at"`
}

// CreateOperator provisions a staff account. The route is admin-gated.
func CreateOperator(svc operators.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "operators service unavailable"))
			return
		}

		var body createOperatorRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		operator, err := svc.CreateOperator(r.Context(), operators.CreateOperatorInput{
			Login:       body.Login,
			Password:    body.Password,
			DisplayName: body.DisplayName,
			Role:        enums.OperatorRole(body.Role),
			Scopes:      body.Scopes,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, operatorResponse{
			ID:          operator.ID,
			Login:       operator.Login,
			DisplayName: operator.DisplayName,
			Role:        operator.Role,
			Scopes:      operator.Scopes,
			IsActive:    operator.IsActive,
			CreatedAt:   operator.CreatedAt,
		})
	}
}
