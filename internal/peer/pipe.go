package peer

import (
	"sync"

	"github.com/lox/colorbets/internal/protocol"
)

// pipeEnd is one side of an in-memory link.
type pipeEnd struct {
	in    chan *protocol.Message
	out   chan *protocol.Message
	done  chan struct{}
	close func()
}

// Pipe returns two connected in-memory transports. Closing either end
// closes both.
func Pipe() (Transport, Transport) {
	ab := make(chan *protocol.Message, sendBufferSize)
	ba := make(chan *protocol.Message, sendBufferSize)
	done := make(chan struct{})
	var once sync.Once
	closeFn := func() { once.Do(func() { close(done) }) }

	a := &pipeEnd{in: ba, out: ab, done: done, close: closeFn}
	b := &pipeEnd{in: ab, out: ba, done: done, close: closeFn}
	return a, b
}

func (p *pipeEnd) Send(msg *protocol.Message) error {
	select {
	case <-p.done:
		return ErrClosed
	default:
	}
	select {
	case p.out <- msg:
		return nil
	default:
		return ErrSendBufferFull
	}
}

func (p *pipeEnd) Inbound() <-chan *protocol.Message { return p.in }
func (p *pipeEnd) Done() <-chan struct{}             { return p.done }

func (p *pipeEnd) Close() error {
	p.close()
	return nil
}
