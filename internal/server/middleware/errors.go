package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"

	gferrors "github.com/fulmenhq/gofulmen/errors"
	"go.uber.org/zap"

	"github.com/theOGognf/finagg/internal/metrics"
	"github.com/theOGognf/finagg/internal/observability"
)

// Recovery turns a handler panic into a 500 error envelope. The stack trace
// is logged but never sent to the client.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			recovered := recover()
			if recovered == nil {
				return
			}
			if recovered == http.ErrAbortHandler {
				panic(recovered)
			}

			requestID := GetRequestID(r.Context())
			endpoint := EndpointPattern(r)
			if logger := observability.Logger(); logger != nil {
				logger.Error("Recovered handler panic",
					zap.Any("panic", recovered),
					zap.String("endpoint", endpoint),
					zap.String("requestID", requestID),
					zap.ByteString("stack", debug.Stack()))
			}
			metrics.RecordPanic(endpoint)

			envelope := gferrors.NewErrorEnvelope("INTERNAL_ERROR", fmt.Sprintf("panic: %v", recovered)).
				WithCorrelationID(requestID)
			envelope, _ = envelope.WithSeverity(gferrors.SeverityCritical)
			writePanicResponse(w, envelope)
		}()

		next.ServeHTTP(w, r)
	})
}

// panicResponse mirrors errors.HTTPErrorResponse, which this package cannot
// import.
type panicResponse struct {
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"request_id,omitempty"`
	} `json:"error"`
}

func writePanicResponse(w http.ResponseWriter, envelope *gferrors.ErrorEnvelope) {
	var body panicResponse
	body.Error.Code = envelope.Code
	body.Error.Message = envelope.Message
	body.Error.RequestID = envelope.CorrelationID

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	_ = json.NewEncoder(w).Encode(body)
}
