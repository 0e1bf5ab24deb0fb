package decoder

import (
	"encoding/hex"
	"fmt"
	"math"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Primitive parsers for struct log words. Stack words arrive as hex with or
// without a 0x prefix and with leading zeros stripped; memory arrives as
// unprefixed 32-byte words.

// stripHex removes the 0x prefix and left-pads odd-length input with a zero.
func stripHex(word string) string {
	s := strings.TrimPrefix(strings.TrimPrefix(word, "0x"), "0X")
	if len(s)%2 == 1 {
		s = "0" + s
	}

	return s
}

// ParseWordBytes decodes a hex word into at most 32 big-endian bytes.
func ParseWordBytes(word string) ([]byte, error) {
	b, err := hex.DecodeString(stripHex(word))
	if err != nil {
		return nil, fmt.Errorf("invalid hex word %q: %w", word, err)
	}

	// Drop redundant leading zero bytes before the width check.
	for len(b) > 32 && b[0] == 0 {
		b = b[1:]
	}

	if len(b) > 32 {
		return nil, fmt.Errorf("word %q exceeds 32 bytes", word)
	}

	return b, nil
}

// ParseUint parses a stack word as a 256-bit unsigned integer.
func ParseUint(word string) (*uint256.Int, error) {
	b, err := ParseWordBytes(word)
	if err != nil {
		return nil, err
	}

	return new(uint256.Int).SetBytes(b), nil
}

// ParseNumber parses a stack word that must fit into a uint64 (offsets, sizes, gas).
func ParseNumber(word string) (uint64, error) {
	v, err := ParseUint(word)
	if err != nil {
		return 0, err
	}

	if !v.IsUint64() {
		return 0, fmt.Errorf("word %q overflows uint64", word)
	}

	return v.Uint64(), nil
}

// ParseAddress parses a stack word as an address: the word is left-padded to
// 32 bytes and the low 20 bytes are kept.
func ParseAddress(word string) (common.Address, error) {
	b, err := ParseWordBytes(word)
	if err != nil {
		return common.Address{}, err
	}

	return common.BytesToAddress(b), nil
}

// ParseBytes32 parses a stack word as a left-padded 32-byte word.
func ParseBytes32(word string) (common.Hash, error) {
	b, err := ParseWordBytes(word)
	if err != nil {
		return common.Hash{}, err
	}

	return common.BytesToHash(b), nil
}

// ParseMemory concatenates memory words into a byte buffer.
func ParseMemory(words []string) ([]byte, error) {
	if len(words) == 0 {
		return []byte{}, nil
	}

	buf := make([]byte, 0, len(words)*32)

	for i, w := range words {
		b, err := hex.DecodeString(stripHex(w))
		if err != nil {
			return nil, fmt.Errorf("invalid memory word %d: %w", i, err)
		}

		buf = append(buf, b...)
	}

	return buf, nil
}

// SliceMemory returns a copy of memory[offset:offset+size]. Bytes past the end
// of the captured buffer read as zero, matching EVM memory semantics. Reads
// larger than limit are rejected.
func SliceMemory(memory []byte, offset, size, limit uint64) ([]byte, error) {
	if size == 0 {
		return []byte{}, nil
	}

	if size > limit {
		return nil, fmt.Errorf("memory read of %d bytes exceeds limit %d", size, limit)
	}

	if offset > math.MaxUint64-size {
		return nil, fmt.Errorf("memory range %d+%d overflows", offset, size)
	}

	out := make([]byte, size)

	if offset < uint64(len(memory)) {
		copy(out, memory[offset:min(offset+size, uint64(len(memory)))])
	}

	return out, nil
}
