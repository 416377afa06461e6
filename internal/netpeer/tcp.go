package netpeer

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/danmuck/aoalink/internal/link"
)

const DefaultDialTimeout = 2 * time.Second

var _ link.PeerProvider = (*TCPProvider)(nil)

// TCPProvider offers a single configured TCP endpoint as the peer. The endpoint is
// always listed; whether it is really there is only known when it is dialed.
type TCPProvider struct {
	addr   string
	dialer net.Dialer
}

func NewTCPProvider(addr string, timeout time.Duration) *TCPProvider {
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}
	return &TCPProvider{addr: addr, dialer: net.Dialer{Timeout: timeout}}
}

func (p *TCPProvider) ListPeers(context.Context) ([]link.Peer, error) {
	return []link.Peer{{ID: p.addr, Description: "tcp"}}, nil
}

func (p *TCPProvider) OpenPeer(ctx context.Context, peer link.Peer) (link.Handle, error) {
	conn, err := p.dialer.DialContext(ctx, "tcp", peer.ID)
	if err != nil {
		return nil, fmt.Errorf("netpeer: dial tcp %s: %w", peer.ID, err)
	}
	return newConnHandle(conn), nil
}
