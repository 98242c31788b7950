// Package peer carries protocol messages between the two players of a
// round set, over a websocket or in memory.
package peer

import (
	"errors"

	"github.com/lox/colorbets/internal/protocol"
)

var (
	ErrClosed         = errors.New("peer: link closed")
	ErrSendBufferFull = errors.New("peer: send buffer full")
	ErrPeerTaken      = errors.New("peer: a player is already connected")
)

// Transport is an ordered, reliable message link to the other player.
type Transport interface {
	// Send queues a message without blocking.
	Send(msg *protocol.Message) error
	// Inbound delivers messages in the order the remote sent them.
	Inbound() <-chan *protocol.Message
	// Done is closed once the link is gone, for any reason.
	Done() <-chan struct{}
	Close() error
}

const sendBufferSize = 256
