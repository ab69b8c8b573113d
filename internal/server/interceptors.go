package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"path"
	"runtime/debug"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/alfredjeanlab/gitterbridge/internal/rpc"
)

// Call outcomes recorded by the logging interceptor.
const (
	outcomeOK           = "ok"
	outcomeAccepted     = "accepted"
	outcomeDeadLettered = "dead_lettered"
	outcomeAbsent       = "absent"
	outcomeRefused      = "refused"
	outcomeCanceled     = "canceled"
	outcomeFailed       = "failed"
)

// rpcOutcome classifies a finished call. An event that produced no result is
// "absent", not a failure; Ingest responses report whether the relay accepted
// or dead-lettered the event.
func rpcOutcome(fullMethod string, resp any, err error) string {
	if err == nil {
		st, ok := resp.(*structpb.Struct)
		if !ok || fullMethod != rpc.MethodIngest {
			return outcomeOK
		}
		accepted, ok := st.GetFields()["accepted"]
		if !ok {
			return outcomeOK
		}
		if accepted.GetBoolValue() {
			return outcomeAccepted
		}
		return outcomeDeadLettered
	}
	switch status.Code(err) {
	case codes.FailedPrecondition:
		return outcomeAbsent
	case codes.InvalidArgument, codes.Unauthenticated:
		return outcomeRefused
	case codes.Canceled, codes.DeadlineExceeded:
		return outcomeCanceled
	}
	return outcomeFailed
}

// categoryFromMetadata returns the schema category requested by the caller,
// or "" when none was sent.
func categoryFromMetadata(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if vals := md.Get(rpc.CategoryMetadataKey); len(vals) > 0 {
		return vals[0]
	}
	return ""
}

// loggingInterceptor logs each call with its outcome. Absent and dead-lettered
// events are normal traffic and log at debug; refused calls log at warn with
// the reason; only failures carry an error.
func (s *NormalizerServer) loggingInterceptor(
	ctx context.Context,
	req any,
	info *grpc.UnaryServerInfo,
	handler grpc.UnaryHandler,
) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)

	outcome := rpcOutcome(info.FullMethod, resp, err)
	attrs := []any{
		"method", path.Base(info.FullMethod),
		"duration", time.Since(start),
		"outcome", outcome,
	}
	if category := categoryFromMetadata(ctx); category != "" {
		attrs = append(attrs, "category", category)
	}

	switch outcome {
	case outcomeFailed:
		s.logger.Error("rpc failed", append(attrs, "code", status.Code(err).String(), "err", err)...)
	case outcomeRefused:
		s.logger.Warn("rpc refused", append(attrs, "code", status.Code(err).String(), "reason", status.Convert(err).Message())...)
	default:
		s.logger.Debug("rpc completed", attrs...)
	}
	return resp, err
}

// recoveryInterceptor turns a panic in a handler into codes.Internal and logs
// the stack with the method that raised it.
func (s *NormalizerServer) recoveryInterceptor(
	ctx context.Context,
	req any,
	info *grpc.UnaryServerInfo,
	handler grpc.UnaryHandler,
) (resp any, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic in rpc handler",
				"method", path.Base(info.FullMethod),
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)
			err = status.Errorf(codes.Internal, "internal error in %s", path.Base(info.FullMethod))
		}
	}()
	return handler(ctx, req)
}

var (
	errMissingAuth   = errors.New("missing authorization header")
	errInvalidScheme = errors.New("invalid authorization scheme")
	errInvalidToken  = errors.New("invalid token")
)

// checkBearer validates an Authorization header value against token.
func checkBearer(header, token string) error {
	if header == "" {
		return errMissingAuth
	}
	provided, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return errInvalidScheme
	}
	if subtle.ConstantTimeCompare([]byte(provided), []byte(token)) != 1 {
		return errInvalidToken
	}
	return nil
}

// AuthInterceptor requires a bearer token on every RPC except Health. An
// empty token disables auth.
func AuthInterceptor(token string) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if token == "" || info.FullMethod == rpc.MethodHealth {
			return handler(ctx, req)
		}
		var header string
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if vals := md.Get("authorization"); len(vals) > 0 {
				header = vals[0]
			}
		}
		if err := checkBearer(header, token); err != nil {
			return nil, status.Error(codes.Unauthenticated, err.Error())
		}
		return handler(ctx, req)
	}
}

// AuthMiddleware is AuthInterceptor for the HTTP API. GET /v1/health is exempt.
func AuthMiddleware(token string, next http.Handler) http.Handler {
	if token == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet && r.URL.Path == "/v1/health" {
			next.ServeHTTP(w, r)
			return
		}
		if err := checkBearer(r.Header.Get("Authorization"), token); err != nil {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}
