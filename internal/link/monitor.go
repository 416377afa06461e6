package link

import (
	"context"
	"time"

	"github.com/danmuck/aoalink/internal/logging"
	"github.com/danmuck/aoalink/internal/observability"
)

// AttachmentMonitor polls a PeerProvider for an accessory to attach to.
type AttachmentMonitor struct {
	provider PeerProvider
	cooldown time.Duration
}

func NewAttachmentMonitor(provider PeerProvider, cooldown time.Duration) *AttachmentMonitor {
	if cooldown <= 0 {
		cooldown = DefaultConnectCooldown
	}
	return &AttachmentMonitor{provider: provider, cooldown: cooldown}
}

// PollAndAttach performs a single poll. It opens the first listed peer and reports
// whether a handle was obtained. A failure to list or open counts as no candidate.
func (m *AttachmentMonitor) PollAndAttach(ctx context.Context) (Handle, bool) {
	peers, err := m.provider.ListPeers(ctx)
	if err != nil {
		logging.Debugf("link.AttachmentMonitor.PollAndAttach list failed err=%v", err)
		observability.RecordAttachPoll(observability.AttachListError)
		return nil, false
	}
	if len(peers) == 0 {
		observability.RecordAttachPoll(observability.AttachNone)
		return nil, false
	}
	if len(peers) > 1 {
		logging.Warnf("link.AttachmentMonitor.PollAndAttach peers=%d using=%q; only one accessory is served", len(peers), peers[0].ID)
	}

	peer := peers[0]
	h, err := m.provider.OpenPeer(ctx, peer)
	if err != nil || h == nil {
		logging.Debugf("link.AttachmentMonitor.PollAndAttach open failed peer=%q err=%v", peer.ID, err)
		observability.RecordAttachPoll(observability.AttachOpenError)
		return nil, false
	}
	observability.RecordAttachPoll(observability.AttachAttached)
	logging.Infof("link.AttachmentMonitor.PollAndAttach attached peer=%q desc=%q", peer.ID, peer.Description)
	return h, true
}

// WaitAttach polls every cooldown until a peer is attached or ctx is done.
func (m *AttachmentMonitor) WaitAttach(ctx context.Context) (Handle, error) {
	timer := time.NewTimer(m.cooldown)
	defer timer.Stop()
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if h, ok := m.PollAndAttach(ctx); ok {
			return h, nil
		}
		timer.Reset(m.cooldown)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}
