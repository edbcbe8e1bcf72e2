package handler

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePagination(t *testing.T) {
	t.Run("applies defaults", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/v1/chats", nil)
		p := ParsePagination(r)

		assert.Equal(t, DefaultPageSize, p.Limit)
		assert.Equal(t, 0, p.Offset)
	})

	t.Run("reads query parameters", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/v1/chats?limit=20&offset=40", nil)
		p := ParsePagination(r)

		assert.Equal(t, 20, p.Limit)
		assert.Equal(t, 40, p.Offset)
	})

	t.Run("clamps oversized limits", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/v1/chats?limit=5000", nil)
		p := ParsePagination(r)

		assert.Equal(t, MaxPageSize, p.Limit)
	})

	t.Run("rejects negative offsets", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/v1/chats?limit=-1&offset=-5", nil)
		p := ParsePagination(r)

		assert.Equal(t, DefaultPageSize, p.Limit)
		assert.Equal(t, 0, p.Offset)
	})
}
