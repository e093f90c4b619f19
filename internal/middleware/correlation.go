package middleware

import (
	"net/http"

	"github.com/rs/xid"

	"bff-service/internal/logger"
)

const maxCorrelationIDLen = 128

// CorrelationID reuses the caller's X-Correlation-ID or mints one, echoes it
// on the response and stores it in the request context.
func CorrelationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(logger.CorrelationIDHeader)
		if id == "" || len(id) > maxCorrelationIDLen {
			id = xid.New().String()
		}
		w.Header().Set(logger.CorrelationIDHeader, id)

		ctx := logger.WithCorrelationID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
