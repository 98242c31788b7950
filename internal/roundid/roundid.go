// Package roundid issues identifiers for round sets. An ID is a UUIDv7
// written as 26 characters of Crockford base32, so IDs sort by creation
// time.
package roundid

import (
	crand "crypto/rand"
	"fmt"
	rand "math/rand/v2"
	"strings"
	"time"

	"github.com/coder/quartz"
)

// Base32 alphabet used by TypeID (Crockford's base32)
const alphabet = "0123456789abcdefghjkmnpqrstvwxyz"

const encodedLen = 26

// Generator issues IDs from a clock and an optional deterministic source.
type Generator struct {
	clock quartz.Clock
	rng   *rand.Rand
}

// NewGenerator creates a generator. A nil rng uses crypto/rand.
func NewGenerator(clock quartz.Clock, rng *rand.Rand) *Generator {
	if clock == nil {
		clock = quartz.NewReal()
	}
	return &Generator{clock: clock, rng: rng}
}

// New returns an ID stamped with the wall clock.
func New() string {
	return NewGenerator(nil, nil).Next()
}

// Next returns a fresh ID.
func (g *Generator) Next() string {
	var uuid [16]byte

	// 48-bit millisecond timestamp, then random bits
	now := g.clock.Now().UnixMilli()
	for i := 0; i < 6; i++ {
		uuid[i] = byte(now >> (40 - 8*i))
	}
	if g.rng != nil {
		for i := 6; i < 16; i++ {
			uuid[i] = byte(g.rng.UintN(256))
		}
	} else if _, err := crand.Read(uuid[6:]); err != nil {
		panic("failed to generate random bytes: " + err.Error())
	}

	uuid[6] = (uuid[6] & 0x0f) | 0x70 // version 7
	uuid[8] = (uuid[8] & 0x3f) | 0x80 // variant 10

	return encode(uuid)
}

// encode writes 128 bits as 26 base32 digits, most significant first. The
// leading digit carries only 3 bits.
func encode(data [16]byte) string {
	out := make([]byte, encodedLen)
	var acc uint16
	bits := 2 // two zero pad bits in front of the value
	pos := 0
	for _, b := range data {
		acc = acc<<8 | uint16(b)
		bits += 8
		for bits >= 5 {
			bits -= 5
			out[pos] = alphabet[(acc>>bits)&0x1f]
			pos++
		}
	}
	return string(out)
}

func decode(id string) ([16]byte, error) {
	var data [16]byte
	if err := Validate(id); err != nil {
		return data, err
	}

	var acc uint32
	bits := -2 // drop the pad bits
	pos := 0
	for i := 0; i < len(id); i++ {
		acc = acc<<5 | uint32(strings.IndexByte(alphabet, id[i]))
		bits += 5
		if bits >= 8 {
			bits -= 8
			data[pos] = byte(acc >> bits)
			pos++
		}
	}
	return data, nil
}

// Validate checks that id is 26 base32 digits whose first digit is 0-7.
func Validate(id string) error {
	if len(id) != encodedLen {
		return fmt.Errorf("round set ID must be exactly %d characters, got %d", encodedLen, len(id))
	}
	if id[0] > '7' {
		return fmt.Errorf("round set ID first character must be 0-7, got %c", id[0])
	}
	for i := 0; i < len(id); i++ {
		if strings.IndexByte(alphabet, id[i]) < 0 {
			return fmt.Errorf("invalid character %c at position %d", id[i], i)
		}
	}
	return nil
}

// Time returns the creation time embedded in id.
func Time(id string) (time.Time, error) {
	data, err := decode(id)
	if err != nil {
		return time.Time{}, err
	}
	var ms int64
	for i := 0; i < 6; i++ {
		ms = ms<<8 | int64(data[i])
	}
	return time.UnixMilli(ms), nil
}
