package link

import (
	"context"
	"io"
)

// Peer describes one attachable accessory as reported by a PeerProvider.
type Peer struct {
	ID          string
	Description string
}

// Handle is an opened transport to one peer. Reader and Writer are separate ends of
// the same underlying descriptor; Close releases the descriptor itself.
type Handle interface {
	Reader() io.ReadCloser
	Writer() io.WriteCloser
	io.Closer
}

// PeerProvider is the platform capability used to discover and open peers.
type PeerProvider interface {
	// ListPeers returns the peers available right now, possibly none.
	ListPeers(ctx context.Context) ([]Peer, error)

	// OpenPeer opens peer for exclusive use by one session.
	OpenPeer(ctx context.Context, peer Peer) (Handle, error)
}

// NewHandle assembles a Handle from separate ends. closer may be nil when the ends
// own the descriptor.
func NewHandle(r io.ReadCloser, w io.WriteCloser, closer io.Closer) Handle {
	return &handle{r: r, w: w, c: closer}
}

type handle struct {
	r io.ReadCloser
	w io.WriteCloser
	c io.Closer
}

func (h *handle) Reader() io.ReadCloser  { return h.r }
func (h *handle) Writer() io.WriteCloser { return h.w }

func (h *handle) Close() error {
	if h.c == nil {
		return nil
	}
	return h.c.Close()
}
