package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/wavelink/gateway-server-go/internal/model"
	"github.com/wavelink/gateway-server-go/internal/repository"
	"github.com/wavelink/gateway-server-go/internal/util"
)

type contextKey string

const TenantContextKey contextKey = "tenant"

func GetTenant(ctx context.Context) *model.Tenant {
	if tenant, ok := ctx.Value(TenantContextKey).(*model.Tenant); ok {
		return tenant
	}
	return nil
}

type AuthMiddleware struct {
	tenantRepo repository.TenantRepository
}

func NewAuthMiddleware(tenantRepo repository.TenantRepository) *AuthMiddleware {
	return &AuthMiddleware{tenantRepo: tenantRepo}
}

func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Missing authentication token",
			})
			return
		}

		tokenHash := util.HashToken(token)
		tenant, err := m.tenantRepo.FindByTokenHash(r.Context(), tokenHash)
		if err != nil {
			log.Error().Err(err).Msg("auth middleware: database error")
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "Authentication failed",
			})
			return
		}

		// Re-verify the fetched row's hash in constant time; the indexed
		// lookup is not a comparison primitive.
		if tenant == nil || !util.ConstantTimeEqual(tokenHash, tenant.APITokenHash) {
			log.Warn().Msg("auth middleware: invalid token attempt")
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Invalid token",
			})
			return
		}

		ctx := context.WithValue(r.Context(), TenantContextKey, tenant)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// extractToken reads the bearer header first, falling back to a query
// parameter for EventSource clients that cannot set headers.
func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}

	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}

	return ""
}
