package client

import (
	"errors"
	"fmt"

	"github.com/dmitrijs2005/storefront-auth/internal/common"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrMalformedResponse is returned when a reply lacks a required field.
var ErrMalformedResponse = errors.New("malformed response")

func mapError(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.Unauthenticated:
		if st.Message() == common.ErrTokenExpired.Error() {
			return common.ErrTokenExpired
		}
		return common.ErrUnauthorized
	case codes.PermissionDenied:
		return common.ErrUnauthorized
	case codes.Unavailable, codes.DeadlineExceeded:
		return common.ErrUnavailable
	case codes.NotFound:
		return common.ErrNotFound
	case codes.AlreadyExists:
		return common.ErrDuplicateAccount
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}

// mapVerifyError narrows errors of VerifyOneTimeCode: a rejected code is not
// a transport failure.
func mapVerifyError(err error) error {
	switch status.Code(err) {
	case codes.InvalidArgument, codes.Unauthenticated, codes.NotFound, codes.FailedPrecondition:
		return fmt.Errorf("%w: %s", common.ErrInvalidOrExpiredCode, status.Convert(err).Message())
	}
	return mapError(err)
}
