package events

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/url"
	"sync"

	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

// SocketIOEvent is the Socket.IO event name change notifications are emitted under.
const SocketIOEvent = "graph_change"

// SocketIOPublisher pushes change events to a Socket.IO server, typically the
// one serving the interactive canvas.
type SocketIOPublisher struct {
	mu sync.Mutex
	io *socket.Socket
}

// SocketIOOptions configures NewSocketIOPublisher.
type SocketIOOptions struct {
	Namespace          string
	InsecureSkipVerify bool
}

// NewSocketIOPublisher connects to rawURL over WebSocket. The connection is
// established asynchronously; events emitted before it is up are buffered by
// the client.
func NewSocketIOPublisher(rawURL string, o SocketIOOptions) (*SocketIOPublisher, error) {
	target, err := parseSocketIOTarget(rawURL, o.Namespace)
	if err != nil {
		return nil, err
	}

	opts := socket.DefaultOptions()
	if target.path != "" {
		opts.SetPath(target.path)
	}
	if o.InsecureSkipVerify {
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	manager := socket.NewManager(target.baseURL, opts)
	io := manager.Socket(target.namespace, opts)
	io.Connect()

	return &SocketIOPublisher{io: io}, nil
}

type socketIOTarget struct {
	baseURL   string
	path      string
	namespace string
}

// parseSocketIOTarget splits rawURL into the server address and the
// Socket.IO endpoint path. An empty namespace means the root namespace.
func parseSocketIOTarget(rawURL, namespace string) (socketIOTarget, error) {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return socketIOTarget{}, fmt.Errorf("failed to parse URL: %w", err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return socketIOTarget{}, fmt.Errorf("socket.io URL %q must be absolute", rawURL)
	}
	if namespace == "" {
		namespace = "/"
	}
	return socketIOTarget{
		baseURL:   fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host),
		path:      parsedURL.Path,
		namespace: namespace,
	}, nil
}

// payload is the JSON object emitted for ev.
func payload(ev Event) map[string]any {
	return map[string]any{
		"kind":     string(ev.Kind),
		"node_ids": ev.NodeIDs,
		"edge_ids": ev.EdgeIDs,
		"revision": ev.Revision,
		"time":     ev.Time,
	}
}

func (p *SocketIOPublisher) Publish(ctx context.Context, ev Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.io.Emit(SocketIOEvent, payload(ev))
	return nil
}

func (p *SocketIOPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.io.Disconnect()
	return nil
}
