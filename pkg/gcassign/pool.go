package gcassign

import (
	"sync"

	"google.golang.org/grpc"

	"github.com/nbuckles13/dark-tower-sub010/pkg/rpc"
)

// ChannelPool caches one *grpc.ClientConn per MC endpoint (spec §4.7:
// "per-endpoint channels are cached in a shared map... failure does not
// invalidate the cache; the transport layer reconnects").
type ChannelPool struct {
	mu    sync.Mutex
	conns map[string]*grpc.ClientConn
}

// NewChannelPool creates an empty ChannelPool.
func NewChannelPool() *ChannelPool {
	return &ChannelPool{conns: make(map[string]*grpc.ClientConn)}
}

// Get returns the cached connection for endpoint, dialing one on first
// use.
func (p *ChannelPool) Get(endpoint string) (*grpc.ClientConn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if cc, ok := p.conns[endpoint]; ok {
		return cc, nil
	}
	cc, err := grpc.NewClient(endpoint, rpc.DialOptions()...)
	if err != nil {
		return nil, err
	}
	p.conns[endpoint] = cc
	return cc, nil
}

// Close tears down every cached connection. Used only at process shutdown.
func (p *ChannelPool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, cc := range p.conns {
		_ = cc.Close()
	}
	p.conns = make(map[string]*grpc.ClientConn)
}
