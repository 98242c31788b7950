package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"
)

// Pool of buffers shared by concurrent writers
var bufferPool = sync.Pool{
	New: func() any {
		return &bytes.Buffer{}
	},
}

// Marshal encodes a message for the wire.
func Marshal(m *Message) ([]byte, error) {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer bufferPool.Put(buf)

	if err := json.NewEncoder(buf).Encode(m); err != nil {
		return nil, fmt.Errorf("marshal %s: %w", m.Type, err)
	}

	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}

// Unmarshal decodes a wire message and rejects types this version does not
// know about.
func Unmarshal(data []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	if !m.Type.Known() {
		return nil, fmt.Errorf("%q: %w", m.Type, ErrUnknownMessageType)
	}
	return &m, nil
}

// Known reports whether mt is one of the message types defined here.
func (mt MessageType) Known() bool {
	switch mt {
	case TypeHello, TypeSelectChips, TypeReturnChips, TypePickedColor,
		TypePlacedBet, TypeRoundReset, TypeOutcomeAnnounced, TypePlayerLeft:
		return true
	}
	return false
}
