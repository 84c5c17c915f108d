package grpc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teranos/gauntlet/errors"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		code     codes.Code
		sentinel error
	}{
		{"resolution", errors.NewResolutionError("no instance %q", "x"), codes.NotFound, errors.ErrResolution},
		{"capability", errors.NewCapabilityError("cannot repair"), codes.FailedPrecondition, errors.ErrCapability},
		{"abort", errors.Abort("operator stop"), codes.Aborted, errors.ErrAbort},
		{"callback", errors.Mark(errors.New("boom"), errors.ErrCallback), codes.Unknown, errors.ErrCallback},
		{"invalid request", errors.NewInvalidRequestError("pluginId is required"), codes.InvalidArgument, errors.ErrInvalidRequest},
		{"conflict", errors.Wrap(errors.ErrConflict, "dup"), codes.AlreadyExists, errors.ErrConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wire := toStatus(tt.err)
			st, ok := status.FromError(wire)
			require.True(t, ok)
			assert.Equal(t, tt.code, st.Code())
			assert.Equal(t, tt.err.Error(), st.Message())

			back := fromStatus(wire)
			assert.True(t, errors.Is(back, tt.sentinel), "sentinel survives the boundary")
			assert.Equal(t, tt.err.Error(), back.Error())
		})
	}
}

func TestStatusMapping_Hints(t *testing.T) {
	err := errors.WithHint(errors.NewCapabilityError("nothing to repair"), "run process first")

	back := fromStatus(toStatus(err))
	assert.True(t, errors.IsCapabilityError(back))
	assert.Contains(t, errors.FlattenHints(back), "run process first")
}

func TestStatusMapping_Unclassified(t *testing.T) {
	st, ok := status.FromError(toStatus(errors.New("surprise")))
	require.True(t, ok)
	assert.Equal(t, codes.Internal, st.Code())

	st, ok = status.FromError(toStatus(context.Canceled))
	require.True(t, ok)
	assert.Equal(t, codes.Canceled, st.Code())
}

func TestFromStatus_Transport(t *testing.T) {
	for _, code := range []codes.Code{codes.Unavailable, codes.DeadlineExceeded, codes.Canceled, codes.Unimplemented} {
		err := fromStatus(status.Error(code, "connection refused"))
		assert.True(t, errors.IsTransportError(err), code.String())
	}

	assert.True(t, errors.IsTransportError(fromStatus(errors.New("not a status"))))
	assert.NoError(t, fromStatus(nil))
}

func TestFromStatus_RateLimited(t *testing.T) {
	err := fromStatus(newStatus(codes.ResourceExhausted, reasonRateLimited, "request rate limit exceeded", ""))
	assert.True(t, errors.IsTransportError(err))
	assert.NotEmpty(t, errors.GetAllHints(err))
}
