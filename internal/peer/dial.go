package peer

import (
	"context"
	"fmt"
	"net/url"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
)

// Dial connects to a host. Plain host:port and http(s) URLs are accepted and
// pointed at the /ws endpoint.
func Dial(ctx context.Context, target string, logger *log.Logger) (Transport, error) {
	logger = logger.WithPrefix("peer")

	u, err := wsURL(target)
	if err != nil {
		return nil, err
	}

	logger.Info("Connecting to host", "url", u)
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	return newConn(ws, logger), nil
}

func wsURL(target string) (string, error) {
	u, err := url.Parse(target)
	if err != nil || u.Host == "" {
		u, err = url.Parse("ws://" + target)
		if err != nil {
			return "", fmt.Errorf("invalid host address %q: %w", target, err)
		}
	}

	// Convert http/https to ws/wss
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/ws"
	}
	return u.String(), nil
}
