package grpc

import (
	"context"
	"errors"

	"github.com/beesrs/identity/internal/common"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var errorCodes = []struct {
	err  error
	code codes.Code
}{
	{common.ErrValidation, codes.InvalidArgument},
	{common.ErrInvalidCredentials, codes.Unauthenticated},
	{common.ErrTokenInvalidOrExpired, codes.Unauthenticated},
	{common.ErrIdentityAssertionInvalid, codes.Unauthenticated},
	{common.ErrAccountLocked, codes.PermissionDenied},
	{common.ErrAccountDisabled, codes.PermissionDenied},
	{common.ErrDomainNotAllowed, codes.PermissionDenied},
	{common.ErrEmailNotVerified, codes.FailedPrecondition},
	{common.ErrDirectoryRecordInactive, codes.FailedPrecondition},
	{common.ErrNoPasswordCredential, codes.FailedPrecondition},
	{common.ErrEmailAlreadyUsed, codes.AlreadyExists},
	{common.ErrAlreadyRegistered, codes.AlreadyExists},
	{common.ErrDirectoryRecordNotFound, codes.NotFound},
}

// toStatus converts a service error into a gRPC status. Domain failures keep
// their message; anything else becomes a bare Internal.
func toStatus(err error) error {
	for _, m := range errorCodes {
		if errors.Is(err, m.err) {
			return status.Error(m.code, err.Error())
		}
	}
	switch {
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "request canceled")
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "deadline exceeded")
	default:
		return status.Error(codes.Internal, "internal error")
	}
}
