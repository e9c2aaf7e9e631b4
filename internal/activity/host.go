package activity

import (
	"context"

	"github.com/capturecabinet/cabinet/internal/realtime"
)

// Host presents activity sessions on an ephemeral display surface. Starting a
// session can fail when the surface refuses new presentations; updates and
// ends are best effort.
type Host interface {
	Start(ctx context.Context, snapshot Snapshot) error
	Update(ctx context.Context, snapshot Snapshot) error
	End(ctx context.Context, snapshot Snapshot) error
}

// HubHost broadcasts session transitions over the realtime activity stream.
// Widget clients subscribe and mirror the latest snapshot.
type HubHost struct {
	hub *realtime.Hub
}

// NewHubHost wraps a realtime hub as an activity host.
func NewHubHost(hub *realtime.Hub) *HubHost {
	return &HubHost{hub: hub}
}

func (h *HubHost) Start(ctx context.Context, snapshot Snapshot) error {
	h.broadcast("session.started", snapshot)
	return nil
}

func (h *HubHost) Update(ctx context.Context, snapshot Snapshot) error {
	h.broadcast("session.updated", snapshot)
	return nil
}

func (h *HubHost) End(ctx context.Context, snapshot Snapshot) error {
	h.broadcast("session.ended", snapshot)
	return nil
}

func (h *HubHost) broadcast(event string, snapshot Snapshot) {
	if h.hub == nil {
		return
	}
	h.hub.Broadcast(realtime.StreamActivity, realtime.Message{
		Stream: realtime.StreamActivity,
		Event:  event,
		Data:   snapshot,
	})
}
