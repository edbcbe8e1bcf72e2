package middleware

import (
	"net/http"
)

// maxRequestBody caps JSON request bodies. Send payloads are short text
// messages and settings updates, so 1MB leaves ample headroom.
const maxRequestBody int64 = 1 << 20

// BodyLimit rejects oversized requests up front when Content-Length is
// declared and hard-caps streamed bodies either way.
func BodyLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil && r.ContentLength > maxRequestBody {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{
				"error": "Request body too large",
			})
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
		next.ServeHTTP(w, r)
	})
}
