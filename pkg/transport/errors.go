package transport

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/chazu/obstacled/pkg/engine"
	"github.com/chazu/obstacled/pkg/obstacle"
)

// Codes used for failure kinds. GeometryConstructionFailed has no natural
// gRPC code; FailedPrecondition is the closest.
var kindCodes = []struct {
	kind error
	code codes.Code
}{
	{obstacle.ErrDuplicateName, codes.AlreadyExists},
	{obstacle.ErrNotFound, codes.NotFound},
	{obstacle.ErrGeometryConstructionFailed, codes.FailedPrecondition},
	{obstacle.ErrInvalidArgument, codes.InvalidArgument},
	{engine.ErrBusy, codes.ResourceExhausted},
}

// codeOf returns the gRPC code for a registry error.
func codeOf(err error) codes.Code {
	for _, kc := range kindCodes {
		if errors.Is(err, kc.kind) {
			return kc.code
		}
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	}
	return codes.Internal
}

// toStatus converts a registry error to a gRPC status error.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	return status.Error(codeOf(err), err.Error())
}

// kindOf returns the registry failure kind for a code, or nil.
func kindOf(c codes.Code) error {
	for _, kc := range kindCodes {
		if kc.code == c {
			return kc.kind
		}
	}
	return nil
}

// fromStatus converts a gRPC status error back into an error that wraps the
// matching registry failure kind, so errors.Is works on both sides of the
// wire.
func fromStatus(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	if kind := kindOf(st.Code()); kind != nil {
		return &RemoteError{Code: st.Code(), Message: st.Message(), kind: kind}
	}
	switch st.Code() {
	case codes.DeadlineExceeded:
		return fmt.Errorf("%s: %w", st.Message(), context.DeadlineExceeded)
	case codes.Canceled:
		return fmt.Errorf("%s: %w", st.Message(), context.Canceled)
	}
	return err
}

// RemoteError is a registry failure reported by the server.
type RemoteError struct {
	Code    codes.Code
	Message string
	kind    error
}

func (e *RemoteError) Error() string {
	return e.Message
}

func (e *RemoteError) Unwrap() error {
	return e.kind
}

// GRPCStatus lets status.FromError see the original code.
func (e *RemoteError) GRPCStatus() *status.Status {
	return status.New(e.Code, e.Message)
}
