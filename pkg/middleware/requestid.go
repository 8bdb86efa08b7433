package middleware

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"

	"github.com/arlobridge/invertex/pkg/logger"
)

type requestIDKey struct{}

const requestIDHeader = "X-Request-Id"

// RequestID assigns a request id (reusing an inbound X-Request-Id header if
// present) and stores it both under its own context key and under
// logger.WithRequestID, so logger.FromContext picks it up automatically.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = generateRequestID()
		}
		w.Header().Set(requestIDHeader, id)
		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		ctx = logger.WithRequestID(ctx, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID returns the request id stored in ctx by RequestID, or "" if
// none is present.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// generateRequestID returns a cryptographically random 16-byte hex-encoded
// string, in the same style as apikey.generateRawKey.
func generateRequestID() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
