package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wavelink/gateway-server-go/internal/model"
	"github.com/wavelink/gateway-server-go/internal/util"
)

type mockTenantRepo struct {
	findByTokenHashFunc func(ctx context.Context, tokenHash string) (*model.Tenant, error)
}

func (m *mockTenantRepo) FindByID(ctx context.Context, id string) (*model.Tenant, error) {
	return nil, nil
}

func (m *mockTenantRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*model.Tenant, error) {
	if m.findByTokenHashFunc != nil {
		return m.findByTokenHashFunc(ctx, tokenHash)
	}
	return nil, nil
}

func (m *mockTenantRepo) Create(ctx context.Context, params model.CreateTenantParams) (*model.Tenant, error) {
	return nil, nil
}

func TestAuthMiddleware(t *testing.T) {
	token := "test-token"
	tokenHash := util.HashToken(token)
	tenant := &model.Tenant{ID: "tenant-1", Name: "acme", APITokenHash: tokenHash}

	repo := &mockTenantRepo{
		findByTokenHashFunc: func(ctx context.Context, hash string) (*model.Tenant, error) {
			if hash == tokenHash {
				return tenant, nil
			}
			return nil, nil
		},
	}
	mw := NewAuthMiddleware(repo)

	var seen *model.Tenant
	handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetTenant(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("rejects a missing token", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/v1/chats", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("accepts a bearer token", func(t *testing.T) {
		seen = nil
		r := httptest.NewRequest("GET", "/v1/chats", nil)
		r.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "tenant-1", seen.ID)
	})

	t.Run("accepts a query parameter token", func(t *testing.T) {
		seen = nil
		r := httptest.NewRequest("GET", "/v1/events?token="+token, nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "tenant-1", seen.ID)
	})

	t.Run("rejects an unknown token", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/v1/chats", nil)
		r.Header.Set("Authorization", "Bearer wrong-token")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("rejects a row whose stored hash does not match", func(t *testing.T) {
		stale := &mockTenantRepo{
			findByTokenHashFunc: func(ctx context.Context, hash string) (*model.Tenant, error) {
				return &model.Tenant{ID: "tenant-1", APITokenHash: util.HashToken("rotated")}, nil
			},
		}
		h := NewAuthMiddleware(stale).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

		r := httptest.NewRequest("GET", "/v1/chats", nil)
		r.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("surfaces repository errors as 500", func(t *testing.T) {
		failing := &mockTenantRepo{
			findByTokenHashFunc: func(ctx context.Context, hash string) (*model.Tenant, error) {
				return nil, errors.New("connection refused")
			},
		}
		h := NewAuthMiddleware(failing).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

		r := httptest.NewRequest("GET", "/v1/chats", nil)
		r.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}
