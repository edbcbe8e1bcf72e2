package handler

import (
	"net/http"
	"strconv"
)

// Chat, message and AI conversation listings share one limit/offset scheme.
const (
	DefaultPageSize = 50
	MaxPageSize     = 100
)

type PaginationParams struct {
	Limit  int
	Offset int
}

// ParsePagination reads limit/offset from the query string. A missing or
// nonsensical limit falls back to DefaultPageSize; an oversized one is
// clamped to MaxPageSize rather than rejected.
func ParsePagination(r *http.Request) PaginationParams {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	switch {
	case limit <= 0:
		limit = DefaultPageSize
	case limit > MaxPageSize:
		limit = MaxPageSize
	}

	if offset < 0 {
		offset = 0
	}

	return PaginationParams{Limit: limit, Offset: offset}
}
