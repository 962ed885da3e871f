package grpc

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/grpc"
	grpcCodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/turtacn/authz/internal/infrastructure/monitoring"
	apperrors "github.com/turtacn/authz/pkg/errors"
	"github.com/turtacn/authz/pkg/logger"
)

// InterceptorChain 拦截器链
type InterceptorChain struct {
	log     logger.Logger
	tracing *monitoring.TracingManager
}

// NewInterceptorChain creates the chain. tracing may be nil.
func NewInterceptorChain(log logger.Logger, tracing *monitoring.TracingManager) *InterceptorChain {
	return &InterceptorChain{log: log.WithComponent("GRPC"), tracing: tracing}
}

// UnaryRecoveryInterceptor 恢复拦截器(捕获 panic)
func (ic *InterceptorChain) UnaryRecoveryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp interface{}, err error) {
		defer func() {
			if r := recover(); r != nil {
				ic.log.Error(ctx, "gRPC handler panic recovered", fmt.Errorf("%v", r),
					logger.String("method", info.FullMethod))
				err = status.Error(grpcCodes.Internal, "internal server error")
			}
		}()
		return handler(ctx, req)
	}
}

// UnaryTracingInterceptor continues the caller's trace from the request metadata.
func (ic *InterceptorChain) UnaryTracingInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			ctx = monitoring.ExtractTraceContext(ctx, metadataCarrier(md))
		}
		ctx, span := ic.tracing.StartSpan(ctx, info.FullMethod)
		resp, err := handler(ctx, req)
		monitoring.EndSpan(span, err)
		return resp, err
	}
}

// UnaryLoggingInterceptor 日志拦截器
func (ic *InterceptorChain) UnaryLoggingInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		var remote string
		if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
			remote = p.Addr.String()
		}
		ic.log.Debug(ctx, "gRPC request completed",
			logger.String("method", info.FullMethod),
			logger.String("peer", remote),
			logger.Int64("duration_ms", time.Since(start).Milliseconds()),
			logger.String("status", status.Code(err).String()),
		)
		return resp, err
	}
}

// UnaryErrorInterceptor maps authz errors onto gRPC status codes. Status errors
// pass through untouched.
func (ic *InterceptorChain) UnaryErrorInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		resp, err := handler(ctx, req)
		if err == nil {
			return resp, nil
		}
		if _, ok := status.FromError(err); ok {
			return resp, err
		}
		return resp, convertDomainErrorToGRPC(err)
	}
}

var grpcCodeByHTTPStatus = map[int]grpcCodes.Code{
	http.StatusBadRequest:         grpcCodes.InvalidArgument,
	http.StatusUnauthorized:       grpcCodes.Unauthenticated,
	http.StatusForbidden:          grpcCodes.PermissionDenied,
	http.StatusNotFound:           grpcCodes.NotFound,
	http.StatusConflict:           grpcCodes.FailedPrecondition,
	http.StatusTooManyRequests:    grpcCodes.ResourceExhausted,
	http.StatusServiceUnavailable: grpcCodes.Unavailable,
}

// convertDomainErrorToGRPC keeps the OAuth error code in the status message,
// e.g. "invalid_client: bad secret". Unknown errors become a bare Internal.
func convertDomainErrorToGRPC(err error) error {
	authzErr, ok := apperrors.AsAuthzError(err)
	if !ok {
		return status.Error(grpcCodes.Internal, "internal server error")
	}
	code, ok := grpcCodeByHTTPStatus[authzErr.HTTPStatus()]
	if !ok {
		return status.Error(grpcCodes.Internal, "internal server error")
	}
	return status.Error(code, fmt.Sprintf("%s: %s", authzErr.Code(), authzErr.Description()))
}

// ChainUnaryInterceptors orders the chain outermost first.
func (ic *InterceptorChain) ChainUnaryInterceptors() grpc.ServerOption {
	return grpc.ChainUnaryInterceptor(
		ic.UnaryRecoveryInterceptor(),
		ic.UnaryTracingInterceptor(),
		ic.UnaryLoggingInterceptor(),
		ic.UnaryErrorInterceptor(),
	)
}

// metadataCarrier exposes incoming gRPC metadata to the trace propagator.
type metadataCarrier metadata.MD

func (m metadataCarrier) Get(key string) string {
	if v := metadata.MD(m).Get(key); len(v) > 0 {
		return v[0]
	}
	return ""
}

func (m metadataCarrier) Set(key, value string) { metadata.MD(m).Set(key, value) }

func (m metadataCarrier) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}
