// Package codegen draws share codes.
//
// Codes are 8 characters from the case-sensitive alphabet 0-9A-Za-z, so
// "aB3x9QzK" and "ab3x9qzk" are different codes. Every draw comes from
// crypto/rand via nanoid; nothing about a code depends on when its share was
// created. Uniqueness is not promised here: the share registry enforces it
// and asks for a new draw on collision.
package codegen

import (
	"fmt"

	"github.com/jaevor/go-nanoid"
)

const (
	Alphabet      = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
	DefaultLength = 8
)

type Generator interface {
	Generate() string
}

type NanoID struct {
	draw func() string
}

func New(length int) (*NanoID, error) {
	if length < 6 || length > 32 {
		return nil, fmt.Errorf("share code length must be between 6 and 32, got %d", length)
	}
	draw, err := nanoid.CustomASCII(Alphabet, length)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize nanoid generator: %w", err)
	}
	return &NanoID{draw: draw}, nil
}

func (g *NanoID) Generate() string {
	return g.draw()
}

// Valid reports whether code could have been produced by a generator of the
// given length.
func Valid(code string, length int) bool {
	if len(code) != length {
		return false
	}
	for i := 0; i < len(code); i++ {
		c := code[i]
		if !(c >= '0' && c <= '9' || c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z') {
			return false
		}
	}
	return true
}
