package handler

import (
	"context"
	"errors"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/rl1809/book-order/internal/core/domain"
)

var ErrDuplicateRequest = errors.New("duplicate request")

// Error codes of the HTTP error envelope.
const (
	CodeValidation        = "VALIDATION_ERROR"
	CodeNotFound          = "NOT_FOUND"
	CodeInsufficientStock = "INSUFFICIENT_STOCK"
	CodeConflict          = "CONCURRENCY_CONFLICT"
	CodeDuplicateRequest  = "DUPLICATE_REQUEST"
	CodeInternal          = "INTERNAL_ERROR"
)

func httpStatus(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, CodeValidation
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, domain.ErrInsufficientStock):
		return http.StatusConflict, CodeInsufficientStock
	case errors.Is(err, domain.ErrConcurrencyConflict):
		return http.StatusConflict, CodeConflict
	case errors.Is(err, ErrDuplicateRequest):
		return http.StatusConflict, CodeDuplicateRequest
	}
	return http.StatusInternalServerError, CodeInternal
}

func grpcError(err error) error {
	var code codes.Code
	switch {
	case errors.Is(err, domain.ErrValidation):
		code = codes.InvalidArgument
	case errors.Is(err, domain.ErrNotFound):
		code = codes.NotFound
	case errors.Is(err, domain.ErrInsufficientStock):
		code = codes.FailedPrecondition
	case errors.Is(err, domain.ErrConcurrencyConflict):
		code = codes.Aborted
	default:
		return status.Error(codes.Internal, "internal error")
	}
	return status.Error(code, err.Error())
}

// retryOnConflict runs op again once when it lost an optimistic-lock race.
func retryOnConflict[T any](ctx context.Context, op func(ctx context.Context) (T, error)) (T, error) {
	out, err := op(ctx)
	if errors.Is(err, domain.ErrConcurrencyConflict) && ctx.Err() == nil {
		return op(ctx)
	}
	return out, err
}
