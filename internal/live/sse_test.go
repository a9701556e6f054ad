package live

import (
	"bufio"
	"context"
	"log/slog"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wichananm65/jai-storefront/internal/store"
)

func TestStream_ShutdownWithOpenStream(t *testing.T) {
	s := store.NewMemoryStore()
	coll := NewCollection(store.Query{Collection: "products"}, decodeItem, slog.Default())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stopped := make(chan error, 1)
	go func() { stopped <- coll.Run(ctx, s) }()
	select {
	case <-coll.Ready():
	case <-time.After(time.Second):
		t.Fatal("collection never became ready")
	}

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Get("/stream", func(c *fiber.Ctx) error { return Stream(c, coll, "products") })
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go app.Listener(ln)

	res, err := http.Get("http://" + ln.Addr().String() + "/stream")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, "text/event-stream", res.Header.Get("Content-Type"))

	line, err := bufio.NewReader(res.Body).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: products\n", line)

	cancel()
	select {
	case err := <-stopped:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}

	start := time.Now()
	require.NoError(t, app.ShutdownWithTimeout(2*time.Second))
	assert.Less(t, time.Since(start), time.Second)
}
