package api

import (
	"github.com/hbomb79/Curator/internal/event"
	"github.com/hbomb79/Curator/internal/http/websocket"
)

// activityBroadcaster forwards run lifecycle events from the event bus to
// every client connected to the activity socket.
type activityBroadcaster struct {
	socket *websocket.SocketHub
}

func newActivityBroadcaster(socket *websocket.SocketHub, events event.EventHandler) *activityBroadcaster {
	broadcaster := &activityBroadcaster{socket: socket}
	for _, ev := range []event.Event{event.RUN_START, event.BATCH_COMPLETE, event.ITEM_FAILED, event.RUN_COMPLETE} {
		events.RegisterHandlerFunction(ev, broadcaster.handle)
	}

	return broadcaster
}

func (broadcaster *activityBroadcaster) handle(ev event.Event, payload event.Payload) {
	body := activityBody(payload)
	if body == nil {
		log.Warnf("No activity representation for %s payload %T\n", ev, payload)
		return
	}

	broadcaster.socket.Send(&websocket.SocketMessage{Title: string(ev), Body: body, Type: websocket.Update})
}

func activityBody(payload event.Payload) map[string]any {
	switch p := payload.(type) {
	case event.RunPayload:
		return map[string]any{"run_id": p.RunID, "library_id": p.LibraryID, "kind": p.Kind}
	case event.BatchPayload:
		return map[string]any{
			"run_id":    p.RunID,
			"batch":     p.Batch,
			"processed": p.Processed,
			"created":   p.Created,
			"skipped":   p.Skipped,
			"failed":    p.Failed,
		}
	case event.ItemFailedPayload:
		body := map[string]any{"run_id": p.RunID, "item_id": p.ItemID, "stage": p.Stage}
		if p.Err != nil {
			body["error"] = p.Err.Error()
		}
		return body
	default:
		return nil
	}
}
