package websocket

import (
	appsync "github.com/sonartrack/api/internal/app/sync"
	"github.com/sonartrack/api/pkg/domain/shared"
)

// ProgressNotifier fans sync state transitions out to subscribed clients on
// the project's sync channel. Broadcast does not block, so the sync engine is
// never held up by a slow consumer.
type ProgressNotifier struct {
	hub *Hub
}

// NewProgressNotifier creates a notifier backed by the hub.
func NewProgressNotifier(hub *Hub) *ProgressNotifier {
	return &ProgressNotifier{hub: hub}
}

// SyncProgress broadcasts the registry status on sync:{project_id}.
func (n *ProgressNotifier) SyncProgress(projectID shared.ID, status appsync.Status) {
	channel := MakeChannel(ChannelTypeSync, projectID.String())
	n.hub.BroadcastEvent(channel, status)
}
