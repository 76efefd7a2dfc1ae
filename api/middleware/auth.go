package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/angelmondragon/kiosko-backend/api/responses"
	pkgAuth "github.com/angelmondragon/kiosko-backend/pkg/auth"
	"github.com/angelmondragon/kiosko-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/kiosko-backend/pkg/errors"
	"github.com/angelmondragon/kiosko-backend/pkg/logger"
)

// Auth validates an operator bearer token and seeds the request context with
// the claims.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := operatorClaims(cfg, r)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}

			ctx := WithOperatorID(r.Context(), claims.OperatorID.String())
			ctx = WithRole(ctx, string(claims.Role))
			if logg != nil {
				ctx = logg.WithOperatorID(ctx, claims.OperatorID.String())
				ctx = logg.WithField(ctx, "actor_role", string(claims.Role))
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ServiceAuth validates the shared gateway token carried by
// service-to-service requests.
func ServiceAuth(gateway config.GatewayConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !serviceTokenValid(gateway, r) {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}
			ctx := WithRole(r.Context(), "gateway")
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ServiceOrOperatorAuth accepts either surface: the gateway token for buyer
// traffic, or an operator JWT. Used on routes both actors may call.
func ServiceOrOperatorAuth(gateway config.GatewayConfig, cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if serviceTokenValid(gateway, r) {
				ctx := WithRole(r.Context(), "gateway")
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			claims, err := operatorClaims(cfg, r)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			ctx := WithOperatorID(r.Context(), claims.OperatorID.String())
			ctx = WithRole(ctx, string(claims.Role))
			if logg != nil {
				ctx = logg.WithOperatorID(ctx, claims.OperatorID.String())
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func operatorClaims(cfg config.JWTConfig, r *http.Request) (*pkgAuth.AccessTokenClaims, error) {
	token := bearerToken(r)
	if token == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	claims, err := pkgAuth.ParseAccessToken(cfg, token)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token")
	}
	return claims, nil
}

func bearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(raw), "bearer ") {
		return strings.TrimSpace(raw[7:])
	}
	return raw
}

func serviceTokenValid(gateway config.GatewayConfig, r *http.Request) bool {
	if gateway.ServiceToken == "" {
		return false
	}
	provided := strings.TrimSpace(r.Header.Get("X-Service-Token"))
	if provided == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(provided), []byte(gateway.ServiceToken)) == 1
}
