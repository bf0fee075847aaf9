package websocket

import (
	"stickforstats/internal/operations"
)

// ProgressBroadcaster adapts the hub to the operations queue's
// ProgressSink contract.
type ProgressBroadcaster struct {
	hub *Hub
}

// NewProgressBroadcaster wires a hub as the queue's progress sink.
func NewProgressBroadcaster(hub *Hub) *ProgressBroadcaster {
	return &ProgressBroadcaster{hub: hub}
}

// JobProgress translates a job state change into a hub broadcast.
func (b *ProgressBroadcaster) JobProgress(job *operations.Job) {
	eventType := TypeJobProgress
	switch job.Status {
	case operations.JobStatusCompleted:
		eventType = TypeJobComplete
	case operations.JobStatusFailed:
		eventType = TypeJobFailed
	}
	b.hub.Broadcast(eventType, job)
}
