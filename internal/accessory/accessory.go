// Package accessory serves the accessory side of the link: the character device the
// USB accessory gadget function exposes once a host has switched the device into
// accessory mode.
package accessory

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/danmuck/aoalink/internal/link"
	"github.com/danmuck/aoalink/internal/logging"
)

const DefaultPath = "/dev/usb_accessory"

// ErrUnsupported is returned by OpenPeer on platforms without the accessory driver.
var ErrUnsupported = errors.New("accessory: not supported on this platform")

var _ link.PeerProvider = (*Provider)(nil)

// Identity is the set of strings the host announced during the accessory handshake.
type Identity struct {
	Manufacturer string
	Model        string
	Description  string
	Version      string
	URI          string
	Serial       string
}

func (id Identity) String() string {
	if id == (Identity{}) {
		return "unknown"
	}
	return fmt.Sprintf("%s %s %s (serial=%s)", id.Manufacturer, id.Model, id.Version, id.Serial)
}

// Provider lists the accessory device node when present and opens it with separate
// read and write descriptors.
type Provider struct {
	path string

	mu       sync.Mutex
	identity Identity
}

func NewProvider(path string) *Provider {
	if path == "" {
		path = DefaultPath
	}
	return &Provider{path: path}
}

func (p *Provider) Path() string { return p.path }

// Identity returns the identity read on the most recent successful open.
func (p *Provider) Identity() Identity {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.identity
}

// ListPeers reports the device node as the single peer when it exists.
func (p *Provider) ListPeers(context.Context) ([]link.Peer, error) {
	if _, err := os.Stat(p.path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("accessory: stat %s: %w", p.path, err)
	}
	return []link.Peer{{ID: p.path, Description: "usb accessory"}}, nil
}

func (p *Provider) OpenPeer(_ context.Context, peer link.Peer) (link.Handle, error) {
	h, id, err := openAccessory(peer.ID)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.identity = id
	p.mu.Unlock()
	logging.Infof("accessory.Provider.OpenPeer path=%s identity=%q uri=%q", peer.ID, id.String(), id.URI)
	return h, nil
}
