package rpc

import (
	"context"

	"google.golang.org/grpc"
)

// FullMethod formats the wire path a client Invoke call and a server
// MethodDesc must agree on: "/service/method".
func FullMethod(serviceName, methodName string) string {
	return "/" + serviceName + "/" + methodName
}

// NewUnaryMethod builds a grpc.MethodDesc for a single unary RPC. methodName
// is the bare method name (no service prefix) as grpc.ServiceDesc expects.
// newReq must return a pointer to a fresh zero value of the request
// message; invoke dispatches the decoded request to the registered server
// implementation.
func NewUnaryMethod(serviceName, methodName string, newReq func() any, invoke func(srv any, ctx context.Context, req any) (any, error)) grpc.MethodDesc {
	full := FullMethod(serviceName, methodName)
	return grpc.MethodDesc{
		MethodName: methodName,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			req := newReq()
			if err := dec(req); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return invoke(srv, ctx, req)
			}
			info := &grpc.UnaryServerInfo{FullMethod: full}
			handler := func(ctx context.Context, req any) (any, error) {
				return invoke(srv, ctx, req)
			}
			return interceptor(ctx, req, info, handler)
		},
	}
}

// CallOptions returns the per-call options required to select jsonCodec.
func CallOptions() []grpc.CallOption {
	return []grpc.CallOption{grpc.CallContentSubtype(CodecName)}
}
