package grpc

import (
	"context"
	"crypto/subtle"
	"time"

	"github.com/teranos/gauntlet/errors"
	"github.com/teranos/gauntlet/logger"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// TokenHeader is the metadata key carrying the shared auth token.
const TokenHeader = "x-gauntlet-token"

// ValidateToken performs constant-time comparison of authentication tokens.
func ValidateToken(providedToken, storedToken string) error {
	if subtle.ConstantTimeCompare([]byte(providedToken), []byte(storedToken)) != 1 {
		return errors.New("invalid authentication token")
	}
	return nil
}

// rateLimitInterceptor rejects calls beyond the limiter's budget with
// ResourceExhausted.
func rateLimitInterceptor(limiter *rate.Limiter) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if !limiter.Allow() {
			return nil, newStatus(codes.ResourceExhausted, reasonRateLimited,
				"request rate limit exceeded for "+methodName(info.FullMethod), "")
		}
		return handler(ctx, req)
	}
}

// authInterceptor requires every call to present token in TokenHeader.
func authInterceptor(token string) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		md, _ := metadata.FromIncomingContext(ctx)
		var provided string
		if values := md.Get(TokenHeader); len(values) > 0 {
			provided = values[0]
		}
		if err := ValidateToken(provided, token); err != nil {
			return nil, status.Error(codes.Unauthenticated, err.Error())
		}
		return handler(ctx, req)
	}
}

// loggingInterceptor converts handler errors to statuses and logs each call.
func loggingInterceptor(log *zap.SugaredLogger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		ctx = logger.WithMethod(ctx, methodName(info.FullMethod))
		resp, err := handler(ctx, req)
		callLog := logger.FromContext(ctx, log)
		if err != nil {
			callLog.Debugw("Call failed",
				logger.FieldDurationMS, time.Since(start).Milliseconds(),
				logger.FieldError, err,
			)
			return nil, toStatus(err)
		}
		callLog.Debugw("Call served", logger.FieldDurationMS, time.Since(start).Milliseconds())
		return resp, nil
	}
}

// tokenClientInterceptor attaches token to every outgoing call.
func tokenClientInterceptor(token string) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		ctx = metadata.AppendToOutgoingContext(ctx, TokenHeader, token)
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}
