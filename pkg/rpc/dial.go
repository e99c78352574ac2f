package rpc

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// DialOptions returns the grpc.DialOption set every internal RPC client in
// this module dials with: insecure transport (internal network only — TLS
// termination happens at the mesh/ingress layer, out of scope here) plus
// bearer-token propagation is added per-call by the caller via
// grpc.PerRPCCredentials or an explicit metadata header, not here.
func DialOptions() []grpc.DialOption {
	return []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}
}
