// Package protocol defines the messages two peers exchange while playing a
// round set.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lox/colorbets/internal/betting"
)

// Version is bumped whenever a payload changes shape.
const Version = 1

// MessageType identifies the payload carried by a Message.
type MessageType string

const (
	TypeHello            MessageType = "hello"
	TypeSelectChips      MessageType = "select_chips"
	TypeReturnChips      MessageType = "return_chips"
	TypePickedColor      MessageType = "picked_color"
	TypePlacedBet        MessageType = "placed_bet"
	TypeRoundReset       MessageType = "round_reset"
	TypeOutcomeAnnounced MessageType = "outcome_announced"
	TypePlayerLeft       MessageType = "player_left"
)

func (mt MessageType) String() string { return string(mt) }

var (
	ErrUnknownMessageType = errors.New("unknown message type")
	ErrInvalidPayload     = errors.New("invalid message payload")
)

// Message is the envelope every payload travels in.
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewMessage creates a new message with the current timestamp. A nil data
// produces an empty payload.
func NewMessage(messageType MessageType, data any) (*Message, error) {
	msg := &Message{
		Type:      messageType,
		Timestamp: time.Now(),
	}
	if data == nil {
		return msg, nil
	}

	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", messageType, err)
	}
	msg.Data = dataBytes
	return msg, nil
}

// HelloData opens a link. Both peers must agree on Version and Fingerprint.
type HelloData struct {
	Name        string `json:"name"`
	RoundSetID  string `json:"roundSetId,omitempty"`
	Version     int    `json:"version"`
	Fingerprint string `json:"fingerprint"`
	Authority   bool   `json:"authority"`
}

type ChipsData struct {
	Chips []int `json:"chips"`
}

type ColorData struct {
	Color betting.Color `json:"color"`
}

type BetData struct {
	Bet betting.Bet `json:"bet"`
}

func Hello(h HelloData) (*Message, error) {
	return NewMessage(TypeHello, h)
}

func SelectChips(chips []int) (*Message, error) {
	return NewMessage(TypeSelectChips, ChipsData{Chips: chips})
}

func ReturnChips(chips []int) (*Message, error) {
	return NewMessage(TypeReturnChips, ChipsData{Chips: chips})
}

func PickedColor(c betting.Color) (*Message, error) {
	return NewMessage(TypePickedColor, ColorData{Color: c})
}

func PlacedBet(bet betting.Bet) (*Message, error) {
	return NewMessage(TypePlacedBet, BetData{Bet: bet})
}

func OutcomeAnnounced(c betting.Color) (*Message, error) {
	return NewMessage(TypeOutcomeAnnounced, ColorData{Color: c})
}

func RoundReset() (*Message, error) { return NewMessage(TypeRoundReset, nil) }
func PlayerLeft() (*Message, error) { return NewMessage(TypePlayerLeft, nil) }

// Payload decodes the message data into the type matching m.Type. Messages
// without a payload decode to nil.
func (m *Message) Payload() (any, error) {
	var v any
	switch m.Type {
	case TypeHello:
		v = &HelloData{}
	case TypeSelectChips, TypeReturnChips:
		v = &ChipsData{}
	case TypePickedColor, TypeOutcomeAnnounced:
		v = &ColorData{}
	case TypePlacedBet:
		v = &BetData{}
	case TypeRoundReset, TypePlayerLeft:
		return nil, nil
	default:
		return nil, fmt.Errorf("%q: %w", m.Type, ErrUnknownMessageType)
	}

	if len(m.Data) == 0 {
		return nil, fmt.Errorf("%s without data: %w", m.Type, ErrInvalidPayload)
	}
	if err := json.Unmarshal(m.Data, v); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", m.Type, ErrInvalidPayload, err)
	}
	return v, nil
}
