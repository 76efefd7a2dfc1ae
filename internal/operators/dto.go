package operators

import (
	"time"

	"github.com/angelmondragon/kiosko-backend/pkg/enums"
)

// LoginInput carries the operator credentials.
type LoginInput struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// LoginResult is the minted session.
type LoginResult struct {
	Token       string             `json:"token"`
	ExpiresAt   time.Time          `json:"expires_at"`
	OperatorID  string             `json:"operator_id"`
	DisplayName string             `json:"display_name"`
	Role        enums.OperatorRole `json:"role"`
}

// CreateOperatorInput is the admin-only account creation payload.
type CreateOperatorInput struct {
	Login       string             `json:"login"`
	Password    string             `json:"password"`
	DisplayName string             `json:"display_name"`
	Role        enums.OperatorRole `json:"role"`
	Scopes      []string           `json:"scopes"`
}
