package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/josh-kwaku/payment-orchestrator/internal/logging"
)

const traceIDHeader = "X-Request-ID"

func Tracing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get(traceIDHeader)
		if traceID == "" {
			traceID = uuid.New().String()
		}

		w.Header().Set(traceIDHeader, traceID)
		ctx := logging.WithRequestID(r.Context(), traceID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func TraceIDFromContext(ctx context.Context) string {
	return logging.RequestID(ctx)
}
