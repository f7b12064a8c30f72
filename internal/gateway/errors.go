package gateway

import (
	"context"
	"errors"
	"net/http"

	"github.com/rickgao/market-gateway/internal/model"
)

const tooManyRequestsMessage = "Too many requests from this IP, please try again later."

var errInvalidTime = errors.New("must be RFC3339, YYYY-MM-DD or epoch milliseconds")

// errorResponse is the body of every failed request.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// kindOf classifies err, treating an unclassified deadline as an upstream timeout.
func kindOf(err error) model.Kind {
	kind := model.KindOf(err)
	if kind == model.KindUnknown && errors.Is(err, context.DeadlineExceeded) {
		return model.KindUpstreamTimeout
	}
	return kind
}

// statusFor maps an error kind to its HTTP status.
func statusFor(kind model.Kind) int {
	switch kind {
	case model.KindRateLimited:
		return http.StatusTooManyRequests
	case model.KindInvalidArgument:
		return http.StatusBadRequest
	case model.KindUpstreamTimeout:
		return http.StatusGatewayTimeout
	case model.KindUpstreamRateLimitExhausted:
		return http.StatusServiceUnavailable
	case model.KindUpstreamFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// clientMessage is the error text shown to callers. Only invalid arguments
// echo their cause; upstream details stay in the log.
func clientMessage(err error, kind model.Kind) string {
	switch kind {
	case model.KindRateLimited:
		return tooManyRequestsMessage
	case model.KindInvalidArgument:
		var e *model.Error
		if errors.As(err, &e) && e.Err != nil {
			return e.Err.Error()
		}
		return "invalid request"
	case model.KindUpstreamTimeout:
		return "upstream request timed out"
	case model.KindUpstreamRateLimitExhausted:
		return "upstream rate limit exhausted, try again later"
	case model.KindUpstreamFailed:
		return "upstream request failed"
	default:
		return "internal error"
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := kindOf(err)
	status := statusFor(kind)

	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			"request_id", RequestID(r.Context()),
			"path", r.URL.Path,
			"kind", kind,
			"error", err,
		)
	}

	s.writeJSON(w, status, errorResponse{Error: clientMessage(err, kind), Code: kind.String()})
}

func invalidArgument(op, msg string) error {
	return model.NewError(model.KindInvalidArgument, op, errors.New(msg))
}
