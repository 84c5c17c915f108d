package grpc

import (
	"context"

	"github.com/teranos/gauntlet/errors"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrorDomain is the ErrorInfo domain of errors raised by the pipeline service.
const ErrorDomain = "gauntlet.pipeline"

const reasonRateLimited = "RATE_LIMITED"

type mapping struct {
	sentinel error
	code     codes.Code
	reason   string
}

// Checked in order; the first sentinel the error matches wins.
var taxonomy = []mapping{
	{errors.ErrResolution, codes.NotFound, "RESOLUTION"},
	{errors.ErrCapability, codes.FailedPrecondition, "CAPABILITY"},
	{errors.ErrAbort, codes.Aborted, "ABORT"},
	{errors.ErrCallback, codes.Unknown, "CALLBACK"},
	{errors.ErrInvalidRequest, codes.InvalidArgument, "INVALID_REQUEST"},
	{errors.ErrConflict, codes.AlreadyExists, "CONFLICT"},
	{errors.ErrIncompatible, codes.AlreadyExists, "CONFLICT"},
	{errors.ErrNotFound, codes.NotFound, "NOT_FOUND"},
}

// toStatus converts a domain error into a gRPC status error carrying an
// ErrorInfo whose reason names the error kind. Hints travel as metadata.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	code, reason := codes.Internal, "INTERNAL"
	for _, m := range taxonomy {
		if errors.Is(err, m.sentinel) {
			code, reason = m.code, m.reason
			break
		}
	}
	if code == codes.Internal && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return status.FromContextError(err).Err()
	}
	return newStatus(code, reason, err.Error(), errors.FlattenHints(err))
}

func newStatus(code codes.Code, reason, message, hint string) error {
	info := &errdetails.ErrorInfo{Reason: reason, Domain: ErrorDomain}
	if hint != "" {
		info.Metadata = map[string]string{"hint": hint}
	}

	st := status.New(code, message)
	if detailed, err := st.WithDetails(info); err == nil {
		st = detailed
	}
	return st.Err()
}

// fromStatus converts an error returned by a gRPC call back into the
// domain taxonomy, so errors.Is behaves the same on both sides.
func fromStatus(err error) error {
	if err == nil {
		return nil
	}

	st, ok := status.FromError(err)
	if !ok {
		return errors.Mark(errors.Wrap(err, "rpc failed"), errors.ErrTransport)
	}

	var info *errdetails.ErrorInfo
	for _, d := range st.Details() {
		if ei, ok := d.(*errdetails.ErrorInfo); ok && ei.GetDomain() == ErrorDomain {
			info = ei
			break
		}
	}

	if info == nil {
		switch st.Code() {
		case codes.Unavailable, codes.DeadlineExceeded, codes.Canceled, codes.Internal, codes.Unimplemented:
			return errors.Mark(errors.Newf("%s: %s", st.Code(), st.Message()), errors.ErrTransport)
		}
		return errors.Newf("remote error %s: %s", st.Code(), st.Message())
	}

	var out error
	switch info.GetReason() {
	case reasonRateLimited:
		out = errors.WithHint(
			errors.Mark(errors.New(st.Message()), errors.ErrTransport),
			"the server is rate limited; retry later",
		)
	default:
		out = errors.New(st.Message())
		for _, m := range taxonomy {
			if m.reason == info.GetReason() {
				out = errors.Mark(out, m.sentinel)
				break
			}
		}
	}

	if hint := info.GetMetadata()["hint"]; hint != "" {
		out = errors.WithHint(out, hint)
	}
	return out
}
