// Package input holds the VM bytecode handed to both harnesses.
package input

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// ErrEmpty is returned when decoding an empty program.
var ErrEmpty = errors.New("input: empty bytecode")

// ByteCode is one generated VM program.
type ByteCode []byte

// Encode returns the canonical encoding of the program: standard, padded base64.
// This is the form passed to the harnesses on the command line and stored in triage records.
func (b ByteCode) Encode() string {
	return base64.StdEncoding.EncodeToString(b)
}

func (b ByteCode) String() string {
	return b.Encode()
}

// Decode parses a base64 program. Both the standard and the URL-safe alphabet are accepted,
// with or without padding, so corpus file names can be fed back directly.
func Decode(s string) (ByteCode, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrEmpty
	}
	encodings := []*base64.Encoding{
		base64.StdEncoding,
		base64.URLEncoding,
		base64.RawStdEncoding,
		base64.RawURLEncoding,
	}
	var firstErr error
	for _, enc := range encodings {
		b, err := enc.DecodeString(s)
		if err == nil {
			return ByteCode(b), nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, fmt.Errorf("input: decode %q: %w", s, firstErr)
}
