package api

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"

	"github.com/madhurmehta007/Chatalyst-AI-sub000/internal/outbox"
	"github.com/madhurmehta007/Chatalyst-AI-sub000/internal/remote"
	intsync "github.com/madhurmehta007/Chatalyst-AI-sub000/internal/sync"
)

// toStatus maps domain errors to gRPC status codes.
func toStatus(op string, err error) error {
	if err == nil {
		return nil
	}
	code := codes.Internal
	switch {
	case errors.Is(err, intsync.ErrNotSyncing):
		code = codes.FailedPrecondition
	case errors.Is(err, intsync.ErrNotCreator):
		code = codes.PermissionDenied
	case errors.Is(err, intsync.ErrNotFound), errors.Is(err, outbox.ErrNotPending):
		code = codes.NotFound
	case errors.Is(err, remote.ErrInvalidPath):
		code = codes.InvalidArgument
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	}
	return grpcstatus.Errorf(code, "%s: %v", op, err)
}

func invalid(format string, args ...any) error {
	return grpcstatus.Errorf(codes.InvalidArgument, format, args...)
}
