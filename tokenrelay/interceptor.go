package tokenrelay

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

// UnaryClientInterceptor returns a gRPC unary client interceptor that relays the
// caller's credentials as "authorization" metadata.
//
// The security context is read from the RPC context. Calls made without an
// authenticated principal are sent unchanged. If no header can be produced the
// RPC is aborted with the *AuthorizationError.
//
// Usage:
//
//	conn, err := grpc.NewClient(
//	    "accounts:9090",
//	    grpc.WithUnaryInterceptor(supplier.UnaryClientInterceptor()),
//	)
func (s *Supplier) UnaryClientInterceptor() grpc.UnaryClientInterceptor {
	return func(
		ctx context.Context,
		method string,
		req, reply interface{},
		cc *grpc.ClientConn,
		invoker grpc.UnaryInvoker,
		opts ...grpc.CallOption,
	) error {
		ctx, err := s.outgoingContext(ctx)
		if err != nil {
			return err
		}
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// StreamClientInterceptor returns a gRPC stream client interceptor that relays
// the caller's credentials as "authorization" metadata.
//
// Usage:
//
//	conn, err := grpc.NewClient(
//	    "accounts:9090",
//	    grpc.WithStreamInterceptor(supplier.StreamClientInterceptor()),
//	)
func (s *Supplier) StreamClientInterceptor() grpc.StreamClientInterceptor {
	return func(
		ctx context.Context,
		desc *grpc.StreamDesc,
		cc *grpc.ClientConn,
		method string,
		streamer grpc.Streamer,
		opts ...grpc.CallOption,
	) (grpc.ClientStream, error) {
		ctx, err := s.outgoingContext(ctx)
		if err != nil {
			return nil, err
		}
		return streamer(ctx, desc, cc, method, opts...)
	}
}

func (s *Supplier) outgoingContext(ctx context.Context) (context.Context, error) {
	header, ok, err := s.AuthorizationHeaderFromContext(ctx)
	if err != nil {
		return ctx, fmt.Errorf("tokenrelay: failed to get authorization header: %w", err)
	}
	if !ok {
		return ctx, nil
	}
	return metadata.AppendToOutgoingContext(ctx, "authorization", header), nil
}
