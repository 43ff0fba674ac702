package events

import (
	"context"
	"net/http"

	"github.com/zishang520/socket.io/v2/socket"

	"github.com/vlm/flowforge/internal/ctxlog"
)

// SocketGateway broadcasts run events to web UI clients over socket.io.
// Every event goes to all connected clients on the default namespace; the
// UI filters by project id.
type SocketGateway struct {
	io *socket.Server
}

// NewSocketGateway creates a gateway with its own socket.io server.
func NewSocketGateway() *SocketGateway {
	io := socket.NewServer(nil, nil)
	g := &SocketGateway{io: io}
	io.On("connection", func(clients ...any) {
		client := clients[0].(*socket.Socket)
		client.On("disconnect", func(...any) {})
	})
	return g
}

// Handler returns the http.Handler to mount at /socket.io/.
func (g *SocketGateway) Handler() http.Handler {
	return g.io.ServeHandler(nil)
}

// Emit implements Emitter. Broadcasting is handled on socket.io's own
// goroutines, so the caller never blocks on slow clients.
func (g *SocketGateway) Emit(ctx context.Context, ev Event) {
	if err := g.io.Sockets().Emit(string(TypeFlowEventChannel), ev); err != nil {
		ctxlog.FromContext(ctx).Warn("Failed to broadcast run event.", "type", ev.Type, "error", err)
	}
}

// TypeFlowEventChannel is the socket.io event name all run events share.
const TypeFlowEventChannel Type = "flow_event"

// Close shuts the socket.io server down.
func (g *SocketGateway) Close() {
	g.io.Close(nil)
}
