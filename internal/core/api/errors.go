package api

import (
	"context"
	"errors"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/solatis/experiences/internal/types"
)

// ErrEventLogDisabled indicates Events was called without a configured log.
var ErrEventLogDisabled = errors.New("event log not configured")

// ErrInvalidRequest indicates a malformed request body.
var ErrInvalidRequest = errors.New("invalid request")

// Code maps service errors to gRPC codes.
// Not-found errors map to NOT_FOUND.
// Validation errors map to INVALID_ARGUMENT.
// Storage errors map to UNAVAILABLE.
// Context timeouts map to DEADLINE_EXCEEDED.
func Code(err error) codes.Code {
	switch {
	case err == nil:
		return codes.OK
	case errors.Is(err, types.ErrNotFound):
		return codes.NotFound
	case errors.Is(err, types.ErrUnknownEvent),
		errors.Is(err, types.ErrReservedEvent),
		errors.Is(err, ErrInvalidRequest):
		return codes.InvalidArgument
	case errors.Is(err, ErrEventLogDisabled):
		return codes.FailedPrecondition
	case errors.Is(err, types.ErrStorageUnavailable):
		return codes.Unavailable
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	default:
		return codes.Internal
	}
}

// Status converts err into a gRPC status error.
func Status(err error) error {
	if err == nil {
		return nil
	}
	return status.Error(Code(err), err.Error())
}

// HTTPStatus maps service errors to HTTP status codes.
func HTTPStatus(err error) int {
	switch Code(err) {
	case codes.OK:
		return http.StatusOK
	case codes.NotFound:
		return http.StatusNotFound
	case codes.InvalidArgument:
		return http.StatusBadRequest
	case codes.FailedPrecondition:
		return http.StatusConflict
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
