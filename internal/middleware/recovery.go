package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/josh-kwaku/payment-orchestrator/internal/handler"
	"github.com/josh-kwaku/payment-orchestrator/internal/logging"
)

// Recovery turns a panic into a 500 envelope. A panic inside a payment
// workflow leaves the payment in whatever state it last recorded.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				logging.FromContext(r.Context()).Error("panic recovered",
					"request_id", logging.RequestID(r.Context()),
					"method", r.Method,
					"path", r.URL.Path,
					"error", err,
					"stack", string(debug.Stack()),
				)
				handler.RespondAppError(w, handler.ErrInternalError, nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
