package live

import (
	"bufio"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
)

const heartbeatInterval = 15 * time.Second

// Stream serves the collection as server-sent events: the current items
// first, then one event per applied snapshot. The stream ends when a write
// to the client fails or when the collection stops running, so server
// shutdown does not wait on open streams.
func Stream[T any](c *fiber.Ctx, coll *Collection[T], event string) error {
	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	updates, stop := coll.Watch()
	initial := coll.Snapshot()

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer stop()
		if err := writeEvent(w, event, initial); err != nil {
			return
		}
		heartbeat := time.NewTicker(heartbeatInterval)
		defer heartbeat.Stop()
		for {
			select {
			case items, ok := <-updates:
				if !ok {
					return
				}
				if err := writeEvent(w, event, items); err != nil {
					return
				}
			case <-heartbeat.C:
				if _, err := w.WriteString(": ping\n\n"); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	})
	return nil
}

func writeEvent(w *bufio.Writer, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	return w.Flush()
}
