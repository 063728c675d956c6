package auth

import (
	"context"
	"net/http"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	engerr "github.com/MarwanELAdawy/graphql-engine/pkg/errors"
)

// UnaryServerInterceptor returns a gRPC unary server interceptor that
// authenticates incoming requests from their metadata and stores the
// resulting [ResolvedIdentity] in the handler context.
//
// Rejected requests receive a gRPC status mapped from the error code:
// Unauthenticated for authentication failures, PermissionDenied for a
// disallowed role, InvalidArgument for malformed claims.
func UnaryServerInterceptor(authenticator *Authenticator) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		ctx, err := authenticateGRPC(ctx, authenticator)
		if err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

// StreamServerInterceptor returns a gRPC stream server interceptor that
// performs the same authentication as [UnaryServerInterceptor], wrapping
// the stream to carry the enriched context.
func StreamServerInterceptor(authenticator *Authenticator) grpc.StreamServerInterceptor {
	return func(
		srv any,
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		ctx, err := authenticateGRPC(ss.Context(), authenticator)
		if err != nil {
			return err
		}
		return handler(srv, &wrappedServerStream{ServerStream: ss, ctx: ctx})
	}
}

// authenticateGRPC authenticates one call from its incoming metadata.
// Metadata keys translate directly to the header view the authenticator
// consumes, so cookie- and header-located sources behave identically over
// both transports.
func authenticateGRPC(ctx context.Context, authenticator *Authenticator) (context.Context, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		md = metadata.MD{}
	}

	identity, err := authenticator.Authenticate(ctx, headerFromMetadata(md))
	if err != nil {
		e := engerr.FromError(err)
		return ctx, status.Error(grpcCode(e), e.Message)
	}
	return ContextWithIdentity(ctx, identity), nil
}

// headerFromMetadata converts gRPC metadata into an [http.Header] view,
// skipping gRPC pseudo-headers.
func headerFromMetadata(md metadata.MD) http.Header {
	hdr := make(http.Header, len(md))
	for key, values := range md {
		if strings.HasPrefix(key, ":") {
			continue
		}
		hdr[http.CanonicalHeaderKey(key)] = values
	}
	return hdr
}

// grpcCode maps an error code category to its gRPC status code.
func grpcCode(e *engerr.Error) codes.Code {
	switch e.Code.Category() {
	case "AUTH":
		return codes.Unauthenticated
	case "AUTHZ":
		return codes.PermissionDenied
	case "VAL":
		return codes.InvalidArgument
	case "UNAVAIL":
		return codes.Unavailable
	case "TIMEOUT":
		return codes.DeadlineExceeded
	default:
		return codes.Internal
	}
}

// wrappedServerStream overrides the stream's context with the enriched one.
type wrappedServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *wrappedServerStream) Context() context.Context {
	return s.ctx
}
