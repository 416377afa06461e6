package netpeer

import (
	"context"
	"fmt"
	"net/url"

	"golang.org/x/net/websocket"

	"github.com/danmuck/aoalink/internal/link"
)

var _ link.PeerProvider = (*WSProvider)(nil)

// WSProvider dials a WebSocket endpoint and carries the frame stream in binary
// messages. Message boundaries carry no meaning; the stream is read as bytes.
type WSProvider struct {
	url    string
	origin string
}

// NewWSProvider builds a provider for rawURL ("ws://host:port/path"). An empty origin
// defaults to http://host/.
func NewWSProvider(rawURL, origin string) (*WSProvider, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("netpeer: parse websocket url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("netpeer: websocket url scheme %q", u.Scheme)
	}
	if origin == "" {
		origin = fmt.Sprintf("http://%s/", u.Host)
	}
	return &WSProvider{url: rawURL, origin: origin}, nil
}

func (p *WSProvider) ListPeers(context.Context) ([]link.Peer, error) {
	return []link.Peer{{ID: p.url, Description: "websocket"}}, nil
}

func (p *WSProvider) OpenPeer(_ context.Context, peer link.Peer) (link.Handle, error) {
	cfg, err := websocket.NewConfig(peer.ID, p.origin)
	if err != nil {
		return nil, fmt.Errorf("netpeer: websocket config: %w", err)
	}
	ws, err := websocket.DialConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("netpeer: dial websocket %s: %w", peer.ID, err)
	}
	ws.PayloadType = websocket.BinaryFrame
	return newConnHandle(ws), nil
}
