package session

import (
	"github.com/lox/colorbets/internal/betting"
	"github.com/lox/colorbets/internal/peer"
	"github.com/lox/colorbets/internal/protocol"
)

// remotePeer turns coordinator notifications into protocol messages.
type remotePeer struct {
	transport peer.Transport
}

func (r remotePeer) send(msg *protocol.Message, err error) error {
	if err != nil {
		return err
	}
	return r.transport.Send(msg)
}

func (r remotePeer) SelectChips(chips []int) error {
	return r.send(protocol.SelectChips(chips))
}

func (r remotePeer) ReturnChips(chips []int) error {
	return r.send(protocol.ReturnChips(chips))
}

func (r remotePeer) PickedColor(color betting.Color) error {
	return r.send(protocol.PickedColor(color))
}

func (r remotePeer) PlacedBet(bet betting.Bet) error {
	return r.send(protocol.PlacedBet(bet))
}

func (r remotePeer) RoundReset() error {
	return r.send(protocol.RoundReset())
}

func (r remotePeer) OutcomeAnnounced(color betting.Color) error {
	return r.send(protocol.OutcomeAnnounced(color))
}

func (r remotePeer) PlayerLeft() error {
	return r.send(protocol.PlayerLeft())
}
