package grpcapi

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/signalsfoundry/regionwatch/core"
	"github.com/signalsfoundry/regionwatch/internal/markerwire"
)

// ToStatusError maps region membership errors onto gRPC status codes.
func ToStatusError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, core.ErrMalformedPosition),
		errors.Is(err, markerwire.ErrMalformedMarker):
		return status.Error(codes.InvalidArgument, err.Error())

	case errors.Is(err, core.ErrSlotOutOfRange):
		return status.Error(codes.NotFound, err.Error())

	case errors.Is(err, core.ErrConfiguration):
		return status.Error(codes.FailedPrecondition, err.Error())

	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())

	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())

	default:
		return status.Error(codes.Internal, err.Error())
	}
}
